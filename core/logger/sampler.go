package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// ratioSampler passes the first n of every d events. A zero ratio passes
// everything.
type ratioSampler struct {
	ratio   atomic.Pointer[[2]uint64]
	counter atomic.Uint64
}

func newRatioSampler(n, d int) *ratioSampler {
	s := &ratioSampler{}
	s.Set(n, d)
	return s
}

func (s *ratioSampler) Set(n, d int) {
	if n <= 0 || d <= 0 {
		s.ratio.Store(nil)
		return
	}
	s.ratio.Store(&[2]uint64{uint64(min(n, d)), uint64(d)})
	s.counter.Store(0)
}

func (s *ratioSampler) Allow() bool {
	r := s.ratio.Load()
	if r == nil {
		return true
	}
	return (s.counter.Add(1)-1)%r[1] < r[0]
}

// parseRatio reads "n/d" or "d" (meaning 1/d). Anything else yields 0, 0.
func parseRatio(raw string) (int, int) {
	raw = strings.TrimSpace(raw)
	if num, den, ok := strings.Cut(raw, "/"); ok {
		n, err1 := strconv.Atoi(strings.TrimSpace(num))
		d, err2 := strconv.Atoi(strings.TrimSpace(den))
		if err1 != nil || err2 != nil {
			return 0, 0
		}
		return n, d
	}
	if d, err := strconv.Atoi(raw); err == nil && d > 0 {
		return 1, d
	}
	return 0, 0
}
