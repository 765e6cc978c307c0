// Package deeplink decodes /start parameters and web app payloads into order requests.
package deeplink

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// Kind classifies a decoded link.
type Kind string

const (
	// KindOrder asks for an order, possibly resuming one by token.
	KindOrder Kind = "order"
	// KindQuickOrder asks for an immediate order from the storefront.
	KindQuickOrder Kind = "quick_order"
	// KindWebApp is a JSON payload from the storefront web app.
	KindWebApp Kind = "web_app"
	// KindLegacy is the old "<id>_<price>" form; the price is ignored.
	KindLegacy Kind = "legacy"
	// KindPainting is a bare painting id.
	KindPainting Kind = "painting"
)

// ErrInvalid means the parameter matches no known form.
var ErrInvalid = errors.New("invalid deep link")

// Link is a decoded start parameter.
type Link struct {
	Kind       Kind
	PaintingID int64
	// Token identifies an order created from the site; empty when absent.
	Token string
}

// webAppPayload is what the storefront sends; only the painting id is trusted.
type webAppPayload struct {
	Action   string `json:"action"`
	Painting struct {
		ID json.Number `json:"id"`
	} `json:"painting"`
}

const actionCreateOrder = "create_order"

// Parse decodes a start parameter. Accepted forms are JSON (raw or
// base64url), quick_order_<id>, order_<id>[_<token>], <id>_<price> and <id>.
func Parse(param string) (Link, error) {
	param = strings.TrimSpace(param)
	if param == "" {
		return Link{}, ErrInvalid
	}
	if link, ok := parseJSON(param); ok {
		return link, nil
	}
	switch {
	case strings.HasPrefix(param, "quick_order_"):
		id, err := parseID(strings.TrimPrefix(param, "quick_order_"))
		if err != nil {
			return Link{}, err
		}
		return Link{Kind: KindQuickOrder, PaintingID: id}, nil
	case strings.HasPrefix(param, "order_"):
		rest := strings.TrimPrefix(param, "order_")
		idPart, token, _ := strings.Cut(rest, "_")
		id, err := parseID(idPart)
		if err != nil {
			return Link{}, err
		}
		return Link{Kind: KindOrder, PaintingID: id, Token: token}, nil
	case strings.Contains(param, "_"):
		idPart, _, _ := strings.Cut(param, "_")
		if id, err := parseID(idPart); err == nil {
			return Link{Kind: KindLegacy, PaintingID: id}, nil
		}
	}
	if link, ok := parseBase64JSON(param); ok {
		return link, nil
	}
	id, err := parseID(param)
	if err != nil {
		return Link{}, err
	}
	return Link{Kind: KindPainting, PaintingID: id}, nil
}

// ParseWebAppData decodes the JSON a web app sends through web_app_data.
func ParseWebAppData(data string) (Link, error) {
	link, ok := parseJSON(strings.TrimSpace(data))
	if !ok {
		return Link{}, ErrInvalid
	}
	return link, nil
}

func parseJSON(raw string) (Link, bool) {
	if !strings.HasPrefix(raw, "{") || !strings.HasSuffix(raw, "}") {
		return Link{}, false
	}
	var p webAppPayload
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return Link{}, false
	}
	if p.Action != actionCreateOrder {
		return Link{}, false
	}
	id, err := parseID(p.Painting.ID.String())
	if err != nil {
		return Link{}, false
	}
	return Link{Kind: KindWebApp, PaintingID: id}, true
}

// parseBase64JSON accepts base64url-encoded JSON, which Telegram allows in
// start parameters where raw braces are not.
func parseBase64JSON(param string) (Link, bool) {
	if _, err := strconv.ParseInt(param, 10, 64); err == nil {
		return Link{}, false
	}
	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(param, "="))
	if err != nil {
		return Link{}, false
	}
	return parseJSON(string(decoded))
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalid
	}
	return id, nil
}

// StartParam builds the quick-order parameter the storefront links to.
func StartParam(paintingID int64) string {
	return "quick_order_" + strconv.FormatInt(paintingID, 10)
}
