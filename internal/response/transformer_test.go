package response

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/tjfontaine/restkit/internal/core/domain"
	"github.com/tjfontaine/restkit/internal/envelope"
)

func newTransformer() *Transformer {
	return NewTransformer(envelope.NewFactory())
}

func requestWithFormat(target string, f domain.Format) *http.Request {
	return domain.WithFormat(httptest.NewRequest(http.MethodGet, target, nil), f)
}

func TestCreateResponse(t *testing.T) {
	tr := newTransformer()

	t.Run("result", func(t *testing.T) {
		resp := tr.CreateResponse(domain.ResultOutcome(map[string]any{"id": 1}))
		require.NotNil(t, resp.Envelope)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, domain.CodeSuccess, resp.Envelope.Code)
	})

	t.Run("error", func(t *testing.T) {
		resp := tr.CreateResponse(domain.ErrorOutcome(domain.ErrNotFound()))
		require.NotNil(t, resp.Envelope)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("existing response passes through", func(t *testing.T) {
		existing := domain.NewResponse(http.StatusTeapot)
		existing.Body = []byte("short and stout")

		resp := tr.CreateResponse(domain.ResponseOutcome(existing))
		assert.Same(t, existing, resp)
		assert.Nil(t, resp.Envelope)
	})
}

func TestTransformEarly_Formats(t *testing.T) {
	tests := []struct {
		format      domain.Format
		contentType string
	}{
		{domain.FormatJSON, "application/json"},
		{domain.FormatMsgpack, "application/x-msgpack"},
		{domain.FormatXML, "application/xml"},
	}

	tr := newTransformer()
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			resp := tr.CreateResponse(domain.ResultOutcome("x"))
			out, err := tr.TransformEarly(requestWithFormat("/api", tt.format), resp)
			require.NoError(t, err)

			assert.Equal(t, tt.contentType, out.Header.Get("Content-Type"))
			assert.NotEmpty(t, out.Body)
			assert.True(t, out.IsEarlyTransformed())
		})
	}
}

func TestTransformEarly_Idempotent(t *testing.T) {
	tr := newTransformer()
	resp := tr.CreateResponse(domain.ResultOutcome(map[string]any{"id": 1}))

	once, err := tr.TransformEarly(requestWithFormat("/api", domain.FormatJSON), resp)
	require.NoError(t, err)
	body := string(once.Body)

	// A second pass with a different format must not renegotiate.
	twice, err := tr.TransformEarly(requestWithFormat("/api", domain.FormatXML), once)
	require.NoError(t, err)

	assert.Same(t, once, twice)
	assert.Equal(t, body, string(twice.Body))
	assert.Equal(t, "application/json", twice.Header.Get("Content-Type"))
}

func TestTransformEarly_NoContent(t *testing.T) {
	tr := newTransformer()
	resp := tr.CreateResponse(domain.ResultOutcome(nil))

	out, err := tr.TransformEarly(requestWithFormat("/api", domain.FormatJSON), resp)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, out.StatusCode)
	assert.Empty(t, out.Body)
}

func TestTransformEarly_ForceStatusOK(t *testing.T) {
	tr := newTransformer()
	req := requestWithFormat("/api", domain.FormatJSON)
	req.Header.Set(HeaderForceStatusOK, "1")

	resp := tr.CreateResponse(domain.ErrorOutcome(domain.ErrNotFound()))
	out, err := tr.TransformEarly(req, resp)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, out.StatusCode)
	assert.Equal(t, "404", out.Header.Get(HeaderStatusCode))
	assert.Contains(t, string(out.Body), `"statusCode":404`)
}

func TestTransformEarly_UnencodableDataDegrades(t *testing.T) {
	tr := newTransformer()
	resp := tr.CreateResponse(domain.ResultOutcome(map[string]any{"ch": make(chan int)}))

	out, err := tr.TransformEarly(requestWithFormat("/api", domain.FormatJSON), resp)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, out.StatusCode)
	assert.Contains(t, string(out.Body), domain.CodeInternal)
}

func TestTransformEarly_MsgpackBody(t *testing.T) {
	tr := newTransformer()
	resp := tr.CreateResponse(domain.ResultOutcome(map[string]any{"id": 1}))

	out, err := tr.TransformEarly(requestWithFormat("/api", domain.FormatMsgpack), resp)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, msgpack.Unmarshal(out.Body, &decoded))
	assert.Equal(t, domain.CodeSuccess, decoded["code"])
}

func TestTransformLate(t *testing.T) {
	tr := newTransformer()

	t.Run("requires early", func(t *testing.T) {
		resp := tr.CreateResponse(domain.ResultOutcome("x"))
		err := tr.TransformLate(requestWithFormat("/api", domain.FormatJSON), resp)
		assert.ErrorIs(t, err, ErrNotEarlyTransformed)
	})

	t.Run("headers", func(t *testing.T) {
		req := requestWithFormat("/api", domain.FormatJSON)
		resp, err := tr.TransformEarly(req, tr.CreateResponse(domain.ResultOutcome("x")))
		require.NoError(t, err)

		require.NoError(t, tr.TransformLate(req, resp))
		assert.Equal(t, domain.CodeSuccess, resp.Header.Get(HeaderCode))
		assert.Equal(t, "59", resp.Header.Get("Content-Length"))
		assert.True(t, resp.IsLateTransformed())
	})

	t.Run("runs once", func(t *testing.T) {
		req := requestWithFormat("/api?callback=cb", domain.FormatJSON)
		resp, err := tr.TransformEarly(req, tr.CreateResponse(domain.ResultOutcome("x")))
		require.NoError(t, err)

		require.NoError(t, tr.TransformLate(req, resp))
		body := string(resp.Body)
		require.NoError(t, tr.TransformLate(req, resp))
		assert.Equal(t, body, string(resp.Body))
	})

	t.Run("jsonp", func(t *testing.T) {
		req := requestWithFormat("/api?callback=app.handle", domain.FormatJSON)
		resp, err := tr.TransformEarly(req, tr.CreateResponse(domain.ErrorOutcome(domain.ErrNotFound())))
		require.NoError(t, err)

		require.NoError(t, tr.TransformLate(req, resp))
		assert.Equal(t, `/**/app.handle({"statusCode":404,"code":"error.http.not_found","message":"Not Found","errors":[]});`, string(resp.Body))
		assert.Equal(t, "application/javascript", resp.Header.Get("Content-Type"))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "404", resp.Header.Get(HeaderStatusCode))
	})

	t.Run("invalid jsonp callback is ignored", func(t *testing.T) {
		req := requestWithFormat("/api?callback=alert(1)", domain.FormatJSON)
		resp, err := tr.TransformEarly(req, tr.CreateResponse(domain.ResultOutcome("x")))
		require.NoError(t, err)

		require.NoError(t, tr.TransformLate(req, resp))
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		assert.JSONEq(t, `{"statusCode":200,"code":"success","message":"","data":"x"}`, string(resp.Body))
	})

	t.Run("jsonp only for json", func(t *testing.T) {
		req := requestWithFormat("/api?callback=cb", domain.FormatXML)
		resp, err := tr.TransformEarly(req, tr.CreateResponse(domain.ResultOutcome("x")))
		require.NoError(t, err)

		require.NoError(t, tr.TransformLate(req, resp))
		assert.Equal(t, "application/xml", resp.Header.Get("Content-Type"))
	})

	t.Run("pass-through untouched", func(t *testing.T) {
		req := requestWithFormat("/api?callback=cb", domain.FormatJSON)
		existing := domain.NewResponse(http.StatusOK)
		existing.Body = []byte("raw")

		resp, err := tr.TransformEarly(req, tr.CreateResponse(domain.ResponseOutcome(existing)))
		require.NoError(t, err)
		require.NoError(t, tr.TransformLate(req, resp))

		assert.Equal(t, "raw", string(resp.Body))
		assert.Empty(t, resp.Header.Get(HeaderCode))
	})
}
