package kernel

import "fmt"

// Listener is any value implementing at least one of the phase interfaces
// below. The kernel calls listeners in the order they were registered.
type Listener any

// RequestListener runs before the controller.
type RequestListener interface {
	OnRequest(c *Context) error
}

// ExceptionListener runs when the controller (or a request listener) failed.
// The first listener that sets a response ends the phase.
type ExceptionListener interface {
	OnException(c *Context) error
}

// ViewListener runs when the controller returned a value instead of writing
// a response. The first listener that sets a response ends the phase.
type ViewListener interface {
	OnView(c *Context) error
}

// ResponseListener runs on every response, in order.
type ResponseListener interface {
	OnResponse(c *Context) error
}

// chain holds the listeners split by phase, preserving order.
type chain struct {
	request   []RequestListener
	exception []ExceptionListener
	view      []ViewListener
	response  []ResponseListener
}

func newChain(listeners []Listener) (*chain, error) {
	c := &chain{}
	for i, l := range listeners {
		matched := false
		if rl, ok := l.(RequestListener); ok {
			c.request = append(c.request, rl)
			matched = true
		}
		if el, ok := l.(ExceptionListener); ok {
			c.exception = append(c.exception, el)
			matched = true
		}
		if vl, ok := l.(ViewListener); ok {
			c.view = append(c.view, vl)
			matched = true
		}
		if rl, ok := l.(ResponseListener); ok {
			c.response = append(c.response, rl)
			matched = true
		}
		if !matched {
			return nil, fmt.Errorf("listener %d (%T) implements no phase", i, l)
		}
	}
	return c, nil
}
