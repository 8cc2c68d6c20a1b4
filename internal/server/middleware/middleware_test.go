package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestCORS(t *testing.T) {
	handler := CORS([]string{"http://localhost:5173"})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "http://localhost:5173", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))

	preflight := httptest.NewRequest(http.MethodOptions, "/api/applications", nil)
	preflight.Header.Set("Origin", "http://localhost:5173")
	preflight.Header.Set("Access-Control-Request-Method", http.MethodPut)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, preflight)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), "PUT")
}

func newRouter(mw ...func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(mw...)
	r.Get("/api/applications/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/boom", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	return r
}

func TestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	router := newRouter(Logger(zap.New(core)))

	req := httptest.NewRequest(http.MethodGet, "/api/applications/abc", nil)
	req.RemoteAddr = "192.168.1.100:5555"
	router.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "request completed", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "192.168.*.*", fields["client_ip"])
	assert.Equal(t, int64(http.StatusNotFound), fields["status"])
	assert.Equal(t, "/api/applications/{id}", fields["route"])

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Equal(t, 2, logs.Len())
	assert.Equal(t, zapcore.ErrorLevel, logs.All()[1].Level)
}

func TestRecoverer(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	var handed error
	onPanic := func(w http.ResponseWriter, _ *http.Request, err error) {
		handed = err
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false}`))
	}
	handler := Recoverer(zap.New(core), onPanic)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("slice bounds out of range")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/applications", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"success":false}`, rr.Body.String())
	assert.ErrorIs(t, handed, ErrPanic)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "slice bounds out of range", logs.All()[0].ContextMap()["panic"])

	abort := Recoverer(nil, onPanic)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		abort.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestHTTPMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewHTTPMetrics(HTTPMetricsOptions{Registerer: reg})
	require.NoError(t, err)

	again, err := NewHTTPMetrics(HTTPMetricsOptions{Registerer: reg})
	require.NoError(t, err)
	assert.Same(t, m.Requests, again.Requests, "re-registration reuses collectors")

	router := newRouter(m.Handler)
	for i := 0; i < 3; i++ {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/applications/"+string(rune('a'+i)), nil))
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(m.Requests.WithLabelValues(http.MethodGet, "/api/applications/{id}", "404")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.InFlight))
}

func TestHTTPMetrics_NilPassesThrough(t *testing.T) {
	var m *HTTPMetrics
	called := false
	m.Handler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
}
