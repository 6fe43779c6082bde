package ledger

import (
	"sort"
	"time"

	"github.com/atmx/vault-engine/internal/model"
)

// History is a fixed-capacity ring buffer of NAV-per-share samples kept in
// time order. When full, the oldest sample is overwritten.
type History struct {
	buf   []model.NavSample
	start int
	n     int
}

// NewHistory creates an empty history retaining at most capacity samples.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{buf: make([]model.NavSample, capacity)}
}

// Add appends a sample. Samples older than the latest one are dropped and
// Add reports false.
func (h *History) Add(s model.NavSample) bool {
	if latest, ok := h.Latest(); ok && s.At.Before(latest.At) {
		return false
	}
	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = s
		h.n++
		return true
	}
	h.buf[h.start] = s
	h.start = (h.start + 1) % len(h.buf)
	return true
}

func (h *History) Len() int { return h.n }
func (h *History) Cap() int { return len(h.buf) }

func (h *History) at(i int) model.NavSample {
	return h.buf[(h.start+i)%len(h.buf)]
}

// Samples returns a copy of the retained samples, oldest first.
func (h *History) Samples() []model.NavSample {
	out := make([]model.NavSample, h.n)
	for i := range out {
		out[i] = h.at(i)
	}
	return out
}

// Oldest returns the oldest retained sample.
func (h *History) Oldest() (model.NavSample, bool) {
	if h.n == 0 {
		return model.NavSample{}, false
	}
	return h.at(0), true
}

// Latest returns the newest sample.
func (h *History) Latest() (model.NavSample, bool) {
	if h.n == 0 {
		return model.NavSample{}, false
	}
	return h.at(h.n - 1), true
}

// AtOrBefore returns the most recent sample taken at or before t.
func (h *History) AtOrBefore(t time.Time) (model.NavSample, bool) {
	i := sort.Search(h.n, func(i int) bool { return h.at(i).At.After(t) })
	if i == 0 {
		return model.NavSample{}, false
	}
	return h.at(i - 1), true
}
