package app

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/tjfontaine/restkit/internal/config"
	"github.com/tjfontaine/restkit/internal/demo"
	"github.com/tjfontaine/restkit/internal/kernel"
	"github.com/tjfontaine/restkit/internal/metrics"
)

type envelopeBody struct {
	StatusCode int             `json:"statusCode"`
	Code       string          `json:"code"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Errors     []struct {
		Field string `json:"field"`
		Code  string `json:"code"`
	} `json:"errors"`
}

func testConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{Port: 8080},
		Matcher: config.MatcherConfig{Prefixes: []string{"/api"}, SubRequests: true},
		Request: config.RequestConfig{
			Formats:       []string{"json", "msgpack", "xml"},
			DefaultFormat: "json",
			MaxBodyBytes:  1 << 20,
		},
		Log: config.LogConfig{Level: "info"},
	}
}

func build(t *testing.T, cfg *config.Config, m *metrics.Metrics) *kernel.Kernel {
	t.Helper()
	k, err := Build(cfg, Deps{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics: m,
		Store:   demo.NewStore(demo.User{Name: "a", Email: "a@example.com"}),
	})
	require.NoError(t, err)
	return k
}

func do(k http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	k.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelopeBody {
	t.Helper()
	var env envelopeBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func TestBuild_UserAPI(t *testing.T) {
	k := build(t, testConfig(), nil)

	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		wantStatus int
		wantCode   string
		wantData   string
		wantFields []string
	}{
		{
			name: "list", method: http.MethodGet, target: "/api/users",
			wantStatus: http.StatusOK, wantCode: "success",
			wantData: `[{"id":1,"name":"a","email":"a@example.com"}]`,
		},
		{
			name: "get", method: http.MethodGet, target: "/api/users/1",
			wantStatus: http.StatusOK, wantCode: "success",
			wantData: `{"id":1,"name":"a","email":"a@example.com"}`,
		},
		{
			name: "missing user", method: http.MethodGet, target: "/api/users/42",
			wantStatus: http.StatusNotFound, wantCode: "error.http.not_found",
		},
		{
			name: "invalid id", method: http.MethodGet, target: "/api/users/abc",
			wantStatus: http.StatusBadRequest, wantCode: "error.user.invalid_id",
			wantFields: []string{"id"},
		},
		{
			name: "unknown route", method: http.MethodGet, target: "/api/nothing",
			wantStatus: http.StatusNotFound, wantCode: "error.http.not_found",
		},
		{
			name: "wrong method", method: http.MethodPut, target: "/api/users",
			wantStatus: http.StatusMethodNotAllowed, wantCode: "error.http.method_not_allowed",
		},
		{
			name: "empty form", method: http.MethodPost, target: "/api/users", body: `{}`,
			wantStatus: http.StatusBadRequest, wantCode: "error.form.validation",
			wantFields: []string{"name", "email"},
		},
		{
			name: "invalid email", method: http.MethodPost, target: "/api/users", body: `{"name":"b","email":"nope"}`,
			wantStatus: http.StatusBadRequest, wantCode: "error.form.validation",
			wantFields: []string{"email"},
		},
		{
			name: "duplicate email", method: http.MethodPost, target: "/api/users", body: `{"name":"b","email":"a@example.com"}`,
			wantStatus: http.StatusConflict, wantCode: "error.user.exists",
			wantFields: []string{"email"},
		},
		{
			name: "malformed body", method: http.MethodPost, target: "/api/users", body: `{"name"`,
			wantStatus: http.StatusBadRequest, wantCode: "error.http.bad_request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(k, tt.method, tt.target, tt.body)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantCode, rec.Header().Get("X-Api-Code"))

			env := decode(t, rec)
			assert.Equal(t, tt.wantStatus, env.StatusCode)
			assert.Equal(t, tt.wantCode, env.Code)
			if tt.wantData != "" {
				assert.JSONEq(t, tt.wantData, string(env.Data))
				assert.Nil(t, env.Errors)
			}
			if tt.wantStatus >= http.StatusBadRequest {
				require.NotNil(t, env.Errors)
				fields := make([]string, 0, len(env.Errors))
				for _, e := range env.Errors {
					fields = append(fields, e.Field)
				}
				if tt.wantFields == nil {
					tt.wantFields = []string{}
				}
				assert.Equal(t, tt.wantFields, fields)
			}
		})
	}
}

func TestBuild_CreateAndDelete(t *testing.T) {
	k := build(t, testConfig(), nil)

	rec := do(k, http.MethodPost, "/api/users", `{"name":"b","email":"b@example.com"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	env := decode(t, rec)
	assert.JSONEq(t, `{"id":2,"name":"b","email":"b@example.com"}`, string(env.Data))

	rec = do(k, http.MethodDelete, "/api/users/2", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, "success", rec.Header().Get("X-Api-Code"))

	rec = do(k, http.MethodDelete, "/api/users/2", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBuild_Profile(t *testing.T) {
	k := build(t, testConfig(), nil)

	rec := do(k, http.MethodGet, "/api/users/1/profile", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	env := decode(t, rec)
	assert.JSONEq(t, `{
		"user": {"id":1,"name":"a","email":"a@example.com"},
		"links": {"self":"/api/users/1/profile","user":"/api/users/1"}
	}`, string(env.Data))

	rec = do(k, http.MethodGet, "/api/users/9/profile", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "error.http.not_found", decode(t, rec).Code)
}

func TestBuild_ProfileWithoutSubRequestMatching(t *testing.T) {
	cfg := testConfig()
	cfg.Matcher.SubRequests = false
	k := build(t, cfg, nil)

	// The unmatched sub-request answers with the bare host fallback; the
	// matched outer request still gets an envelope.
	rec := do(k, http.MethodGet, "/api/users/1/profile", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "error.user.profile_unavailable", rec.Header().Get("X-Api-Code"))
	assert.JSONEq(t,
		`{"statusCode":502,"code":"error.user.profile_unavailable","message":"The user profile could not be loaded.","errors":[]}`,
		rec.Body.String())
}

func TestBuild_AdminIsUntouched(t *testing.T) {
	k := build(t, testConfig(), nil)

	rec := do(k, http.MethodGet, "/admin?callback=cb", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "restkit admin\n", rec.Body.String())
	assert.Empty(t, rec.Header().Get("X-Api-Code"))

	rec = do(k, http.MethodGet, "/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not Found\n", rec.Body.String())
}

func TestBuild_Msgpack(t *testing.T) {
	k := build(t, testConfig(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/users/1", nil)
	req.Header.Set("Accept", "application/x-msgpack")
	rec := httptest.NewRecorder()
	k.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-msgpack", rec.Header().Get("Content-Type"))

	var out map[string]any
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "success", out["code"])
	data, ok := out["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "a", data["name"])
}

func TestBuild_ForceStatusOK(t *testing.T) {
	k := build(t, testConfig(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/users/42", nil)
	req.Header.Set("X-Force-Status-Code-200", "1")
	rec := httptest.NewRecorder()
	k.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "404", rec.Header().Get("X-Status-Code"))
	assert.Equal(t, http.StatusNotFound, decode(t, rec).StatusCode)
}

func TestBuild_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg, reg)
	k := build(t, testConfig(), m)

	do(k, http.MethodGet, "/api/users", "")
	do(k, http.MethodGet, "/api/users/42", "")
	do(k, http.MethodGet, "/admin", "")

	expected := `
# HELP restkit_envelopes_total REST envelopes produced, by code and status.
# TYPE restkit_envelopes_total counter
restkit_envelopes_total{code="error.http.not_found",status="404"} 1
restkit_envelopes_total{code="success",status="200"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "restkit_envelopes_total"))
	series, err := testutil.GatherAndCount(reg, "restkit_dispatch_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, series)
}

func TestBuild_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Matcher.Blacklist = []string{"("}

	_, err := Build(cfg, Deps{})
	assert.Error(t, err)
}
