package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/clientdesk/pkg/composables"
	"github.com/iota-uz/clientdesk/pkg/configuration"
	"github.com/iota-uz/clientdesk/pkg/httpapi"
)

func chain(h http.Handler, mws ...mux.MiddlewareFunc) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func testLoggerOptions() LoggerOptions {
	opts := DefaultLoggerOptions()
	opts.RequestIDHeader = "X-Request-ID"
	opts.RealIPHeader = "X-Real-IP"
	return opts
}

func TestRequireTenant(t *testing.T) {
	var seen uuid.UUID
	h := chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := composables.UseTenantID(r.Context())
		require.NoError(t, err)
		seen = id
	}), RequireTenant("X-Tenant-ID"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), httpapi.CodeTenantMissing)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Tenant-ID", "not-a-uuid")
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	id := uuid.New()
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Tenant-ID", id.String())
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, seen)
}

func TestWithSubject(t *testing.T) {
	var subject string
	var ok bool
	h := chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, ok = composables.UseSubject(r.Context())
	}), WithSubject("X-Actor-Role"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Actor-Role", " manager ")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.True(t, ok)
	assert.Equal(t, "manager", subject)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, ok)
}

func TestWithLogger_RecoversPanic(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := logrus.New()
	logger.SetOutput(buf)

	h := chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), WithLogger(logger, testLoggerOptions()))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/clients/api/assignments", nil)
	req.Header.Set("X-Request-ID", "req-1")
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), httpapi.CodeInternal)
	assert.Contains(t, rec.Body.String(), "req-1")
	assert.Equal(t, "req-1", rec.Header().Get("X-Request-Id"))
	assert.Contains(t, buf.String(), "panic recovered in request handler")
}

func TestWithLogger_AttachesLoggerAndKeepsBody(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := logrus.New()
	logger.SetOutput(buf)

	var body string
	h := chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		composables.UseLogger(r.Context()).Info("inside handler")
		b := new(bytes.Buffer)
		_, _ = b.ReadFrom(r.Body)
		body = b.String()
		w.WriteHeader(http.StatusAccepted)
	}), WithLogger(logger, testLoggerOptions()))

	req := httptest.NewRequest(http.MethodPut, "/x", strings.NewReader(`{"a":1}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, `{"a":1}`, body)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.Contains(t, buf.String(), "inside handler")
	assert.Contains(t, buf.String(), "request completed")
}

func TestRateLimit(t *testing.T) {
	h := chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}), RateLimit(RateLimitConfig{
		RequestsPerPeriod: 2,
		Store:             NewMemoryStore(),
		KeyFunc:           func(r *http.Request) string { return r.Header.Get("X-Key") },
	}))

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Key", "a")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Key", "b")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOpsGuard(t *testing.T) {
	conf := &configuration.Configuration{
		GoAppEnvironment: configuration.Production,
		OpsGuardEnabled:  true,
		OpsGuardToken:    "secret",
		OpsGuardCIDRs:    "10.0.0.0/8",
		RealIPHeader:     "X-Real-IP",
	}
	h := chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}), OpsGuard(conf, "/debug/"))

	tests := []struct {
		name   string
		path   string
		header map[string]string
		want   int
	}{
		{"non ops path", "/clients/api/assignments", nil, http.StatusOK},
		{"ops path without credentials", "/debug/prometheus", nil, http.StatusNotFound},
		{"ops path with token", "/debug/prometheus", map[string]string{"X-Ops-Token": "secret"}, http.StatusOK},
		{"ops path with bearer", "/debug/prometheus", map[string]string{"Authorization": "Bearer secret"}, http.StatusOK},
		{"ops path from allowed cidr", "/debug/prometheus", map[string]string{"X-Real-IP": "10.1.2.3"}, http.StatusOK},
		{"ops path wrong token", "/debug/prometheus", map[string]string{"X-Ops-Token": "nope"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestCors(t *testing.T) {
	h := chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}), Cors("http://app.test"))
	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "http://app.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "http://app.test", rec.Header().Get("Access-Control-Allow-Origin"))
}
