package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/BaSui01/zigen/config"
	"github.com/BaSui01/zigen/types"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte("ok"))
})

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	return body.Error.Code
}

func TestSecurityHeaders(t *testing.T) {
	w := serve(SecurityHeaders()(okHandler), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.Equal(t, "default-src 'self'", w.Header().Get("Content-Security-Policy"))
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	w := serve(Chain(okHandler, mark("a"), mark("b"), SecurityHeaders(), RequestID()), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = types.RequestID(r.Context())
	}))

	w := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, strings.HasPrefix(seen, "req-"))
	assert.Equal(t, seen, w.Header().Get("X-Request-ID"))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", "client-42")
	w = serve(h, r)
	assert.Equal(t, "client-42", seen)
	assert.Equal(t, "client-42", w.Header().Get("X-Request-ID"))
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	h := Recovery(zap.New(core))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, string(types.ErrInternalError), errorCode(t, w))
	assert.NotContains(t, w.Body.String(), "boom")
	require.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
}

func TestRecovery_AbortHandlerPropagates(t *testing.T) {
	h := Recovery(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("hello"))
	}), RequestID(), RequestLogger(zap.New(core)))

	serve(h, httptest.NewRequest(http.MethodPost, "/api/v1/images/generations", nil))

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "POST", fields["method"])
	assert.Equal(t, int64(http.StatusCreated), fields["status"])
	assert.Equal(t, int64(5), fields["bytes"])
	assert.Contains(t, fields, "request_id")
}

func TestAPIKeyAuth(t *testing.T) {
	skip := []string{"/health"}
	tests := []struct {
		name       string
		keys       []string
		allowQuery bool
		path       string
		header     string
		wantStatus int
	}{
		{"no keys configured", nil, false, "/api/v1/settings", "", http.StatusOK},
		{"valid header", []string{"k1", "k2"}, false, "/api/v1/settings", "k2", http.StatusOK},
		{"missing key", []string{"k1"}, false, "/api/v1/settings", "", http.StatusUnauthorized},
		{"wrong key", []string{"k1"}, false, "/api/v1/settings", "nope", http.StatusUnauthorized},
		{"skip path", []string{"k1"}, false, "/health", "", http.StatusOK},
		{"query key allowed", []string{"k1"}, true, "/api/v1/jobs?api_key=k1", "", http.StatusOK},
		{"query key disallowed", []string{"k1"}, false, "/api/v1/jobs?api_key=k1", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := APIKeyAuth(tt.keys, skip, tt.allowQuery, zap.NewNop())(okHandler)
			r := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				r.Header.Set("X-API-Key", tt.header)
			}
			w := serve(h, r)
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Equal(t, string(types.ErrUnauthorized), errorCode(t, w))
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := RateLimiter(ctx, 0.001, 2, zap.NewNop())(okHandler)

	req := func(addr string) int {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = addr
		return serve(h, r).Code
	}

	assert.Equal(t, http.StatusOK, req("10.0.0.1:1000"))
	assert.Equal(t, http.StatusOK, req("10.0.0.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, req("10.0.0.1:1002"))
	// 不同 IP 独立计数
	assert.Equal(t, http.StatusOK, req("10.0.0.2:1000"))
}

// =============================================================================
// JWT
// =============================================================================

func signHS256(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func subjectEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub, _ := types.Subject(r.Context())
		_, _ = w.Write([]byte(sub))
	})
}

func withBearer(token string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/v1/settings", nil)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

func TestJWTAuth_HS256(t *testing.T) {
	cfg := config.JWTConfig{Secret: "s3cret", Issuer: "zigen-admin", Audience: "zigen"}
	h := JWTAuth(cfg, zap.NewNop())(subjectEcho())

	valid := jwt.MapClaims{
		"sub": "ops@example.com",
		"iss": "zigen-admin",
		"aud": "zigen",
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	w := serve(h, withBearer(signHS256(t, "s3cret", valid)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ops@example.com", w.Body.String())

	clone := func(edit func(jwt.MapClaims)) jwt.MapClaims {
		c := jwt.MapClaims{}
		for k, v := range valid {
			c[k] = v
		}
		edit(c)
		return c
	}

	tests := []struct {
		name  string
		token string
	}{
		{"missing header", ""},
		{"garbage", "not-a-jwt"},
		{"wrong secret", signHS256(t, "other", valid)},
		{"expired", signHS256(t, "s3cret", clone(func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-time.Minute).Unix() }))},
		{"no exp", signHS256(t, "s3cret", clone(func(c jwt.MapClaims) { delete(c, "exp") }))},
		{"wrong issuer", signHS256(t, "s3cret", clone(func(c jwt.MapClaims) { c["iss"] = "someone" }))},
		{"wrong audience", signHS256(t, "s3cret", clone(func(c jwt.MapClaims) { c["aud"] = "other" }))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(h, withBearer(tt.token))
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, string(types.ErrUnauthorized), errorCode(t, w))
		})
	}
}

func TestJWTAuth_RS256(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))

	h := JWTAuth(config.JWTConfig{PublicKey: pubPEM}, zap.NewNop())(subjectEcho())

	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub": "admin",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(key)
	require.NoError(t, err)

	w := serve(h, withBearer(token))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "admin", w.Body.String())

	// 只配置了公钥时 HS256 token 无效
	w = serve(h, withBearer(signHS256(t, "anything", jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// =============================================================================
// Metrics & tracing
// =============================================================================

type httpCall struct {
	method, path string
	status       int
	reqSize      int64
	respSize     int64
}

type fakeHTTPRecorder struct {
	mu    sync.Mutex
	calls []httpCall
}

func (f *fakeHTTPRecorder) RecordHTTPRequest(method, path string, status int, _ time.Duration, reqSize, respSize int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, httpCall{method, path, status, reqSize, respSize})
}

func TestMetricsMiddleware(t *testing.T) {
	rec := &fakeHTTPRecorder{}
	h := MetricsMiddleware(rec)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("fail"))
	}))

	serve(h, httptest.NewRequest(http.MethodPost, "/api/v1/images/generations", strings.NewReader(`{"prompt":"x"}`)))

	require.Len(t, rec.calls, 1)
	assert.Equal(t, httpCall{
		method: http.MethodPost, path: "/api/v1/images/generations", status: http.StatusBadGateway,
		reqSize: int64(len(`{"prompt":"x"}`)), respSize: 4,
	}, rec.calls[0])
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/api/v1/images/generations", "/api/v1/images/generations"},
		{"/api/v1/settings", "/api/v1/settings"},
		{"/api/v1/jobs/2b1f6c1e-4f0e-4c52-9a9e-0c1f7d3b9d11", "/api/v1/jobs/:id"},
		{"/api/v1/jobs/12345", "/api/v1/jobs/:id"},
		{"/api/v1/jobs/deadbeefcafe", "/api/v1/jobs/:id"},
		{"/api/v1/unknown/route", "/api/v1/unknown/route"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizePath(tt.in), tt.in)
	}
}

func TestOTelTracing(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	var traceID string
	h := OTelTracing()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID, _ = types.TraceID(r.Context())
		w.WriteHeader(http.StatusBadGateway)
	}))

	serve(h, httptest.NewRequest(http.MethodPost, "/api/v1/images/generations", nil))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "POST /api/v1/images/generations", spans[0].Name())
	assert.Equal(t, spans[0].SpanContext().TraceID().String(), traceID)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestRateLimiter_Disabled(t *testing.T) {
	h := RateLimiter(context.Background(), 0, 0, zap.NewNop())(okHandler)
	for i := 0; i < 50; i++ {
		require.Equal(t, http.StatusOK, serve(h, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
	}
}
