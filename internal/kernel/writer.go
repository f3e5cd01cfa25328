package kernel

import (
	"bytes"
	"net/http"

	"github.com/tjfontaine/restkit/internal/core/domain"
)

// bufferedWriter captures what a controller writes so the response phases
// can see it before anything reaches the client.
type bufferedWriter struct {
	header     http.Header
	body       bytes.Buffer
	statusCode int
	written    bool
}

func newBufferedWriter() *bufferedWriter {
	return &bufferedWriter{
		header:     make(http.Header),
		statusCode: http.StatusOK,
	}
}

func (w *bufferedWriter) Header() http.Header {
	return w.header
}

// WriteHeader captures the status code. Only the first call takes effect.
func (w *bufferedWriter) WriteHeader(code int) {
	if w.written {
		return
	}
	w.statusCode = code
	w.written = true
}

func (w *bufferedWriter) Write(b []byte) (int, error) {
	w.written = true
	return w.body.Write(b)
}

// Response returns the captured response.
func (w *bufferedWriter) Response() *domain.Response {
	resp := domain.NewResponse(w.statusCode)
	resp.Header = w.header.Clone()
	if w.body.Len() > 0 {
		resp.Body = bytes.Clone(w.body.Bytes())
	}
	return resp
}
