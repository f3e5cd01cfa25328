package server

import (
	"net/http"
	"sync/atomic"
)

// SwapHandler serves whichever handler was stored last. Config reloads
// store a freshly built handler; in-flight requests finish on the old one.
type SwapHandler struct {
	current atomic.Pointer[http.Handler]
}

// NewSwapHandler creates a SwapHandler serving h.
func NewSwapHandler(h http.Handler) *SwapHandler {
	s := &SwapHandler{}
	s.Store(h)
	return s
}

// Store replaces the served handler.
func (s *SwapHandler) Store(h http.Handler) {
	s.current.Store(&h)
}

func (s *SwapHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h := s.current.Load()
	if h == nil || *h == nil {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	(*h).ServeHTTP(w, r)
}
