package kernel

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/tjfontaine/restkit/internal/core/domain"
)

// ControllerFunc handles a request by returning a value or an error. Writing
// to w instead produces a finished response that is passed through as is.
type ControllerFunc func(w http.ResponseWriter, r *http.Request) (any, error)

// PanicError is the outcome of a controller that panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("controller panic: %v", e.Value)
}

// Unwrap exposes panics raised with an error value.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

type slotKey struct{}

// slot receives the return values of a ControllerFunc. It lives in the
// request context of a single dispatch.
type slot struct {
	set   bool
	value any
	err   error
}

// Handle adapts a ControllerFunc to http.Handler so it can be mounted on any
// router served by a Kernel. Outside a Kernel, values are dropped and errors
// answer 500.
func Handle(fn ControllerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		value, err := fn(w, r)
		s, ok := r.Context().Value(slotKey{}).(*slot)
		if !ok {
			if err != nil {
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
			return
		}
		s.set = true
		s.value = value
		s.err = err
	}
}

// run calls the handler and turns whatever it did into an Outcome.
func run(h http.Handler, r *http.Request) (outcome domain.Outcome) {
	s := &slot{}
	w := newBufferedWriter()

	defer func() {
		if rec := recover(); rec != nil {
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			outcome = domain.ErrorOutcome(&PanicError{Value: rec, Stack: debug.Stack()})
		}
	}()

	h.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), slotKey{}, s)))

	switch {
	case s.set && s.err != nil:
		return domain.ErrorOutcome(s.err)
	case w.written:
		return domain.ResponseOutcome(w.Response())
	case s.set:
		if resp, ok := s.value.(*domain.Response); ok && resp != nil {
			return domain.ResponseOutcome(resp)
		}
		return domain.ResultOutcome(s.value)
	default:
		return domain.ResponseOutcome(w.Response())
	}
}
