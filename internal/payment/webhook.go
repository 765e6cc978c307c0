package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
)

// ErrMalformedEvent is returned for webhook bodies that cannot be interpreted.
var ErrMalformedEvent = errors.New("malformed payment event")

// Event is a decoded gateway notification.
type Event struct {
	// Type is the raw event name, e.g. "payment.succeeded".
	Type      string
	State     RemoteState
	PaymentID string
	OrderID   int64
}

type eventJSON struct {
	Type   string      `json:"type"`
	Event  string      `json:"event"`
	Object paymentJSON `json:"object"`
}

// ParseEvent decodes a webhook body. The state comes from the event name,
// falling back to the object's status.
func ParseEvent(body []byte) (Event, error) {
	var raw eventJSON
	if err := json.Unmarshal(body, &raw); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if raw.Event == "" {
		return Event{}, fmt.Errorf("%w: missing event", ErrMalformedEvent)
	}
	ev := Event{Type: raw.Event, PaymentID: raw.Object.ID}

	name := strings.TrimPrefix(raw.Event, "payment.")
	switch st := ParseRemoteState(name); st {
	case StateSucceeded, StateCanceled, StateWaitingForCapture, StateExpired:
		ev.State = st
	default:
		ev.State = ParseRemoteState(raw.Object.Status)
	}

	if id := strings.TrimSpace(raw.Object.Metadata["order_id"]); id != "" {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil || n <= 0 {
			return Event{}, fmt.Errorf("%w: bad order_id %q", ErrMalformedEvent, id)
		}
		ev.OrderID = n
	}
	return ev, nil
}

// Allowlist checks webhook callers against trusted networks.
type Allowlist struct {
	prefixes       []netip.Prefix
	trustForwarded bool
}

// NewAllowlist parses CIDRs or bare addresses.
func NewAllowlist(entries []string, trustForwarded bool) (*Allowlist, error) {
	a := &Allowlist{trustForwarded: trustForwarded}
	for _, raw := range entries {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "/") {
			addr, err := netip.ParseAddr(raw)
			if err != nil {
				return nil, fmt.Errorf("webhook allow-list: %q: %w", raw, err)
			}
			a.prefixes = append(a.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		p, err := netip.ParsePrefix(raw)
		if err != nil {
			return nil, fmt.Errorf("webhook allow-list: %q: %w", raw, err)
		}
		a.prefixes = append(a.prefixes, p.Masked())
	}
	return a, nil
}

// Contains reports whether ip belongs to a trusted network.
func (a *Allowlist) Contains(ip string) bool {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range a.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP extracts the caller address. X-Forwarded-For is honoured only when
// the allow-list was built to trust a fronting proxy, and then only its
// rightmost entry: the one that proxy appended. Entries to the left come
// from the client.
func (a *Allowlist) ClientIP(r *http.Request) string {
	if a.trustForwarded {
		if ip := lastForwarded(r.Header.Values("X-Forwarded-For")); ip != "" {
			return ip
		}
		if real := r.Header.Get("X-Real-IP"); real != "" {
			return strings.TrimSpace(real)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func lastForwarded(values []string) string {
	for i := len(values) - 1; i >= 0; i-- {
		hops := strings.Split(values[i], ",")
		if ip := strings.TrimSpace(hops[len(hops)-1]); ip != "" {
			return ip
		}
	}
	return ""
}

// Allowed combines ClientIP and Contains.
func (a *Allowlist) Allowed(r *http.Request) (string, bool) {
	ip := a.ClientIP(r)
	return ip, a.Contains(ip)
}
