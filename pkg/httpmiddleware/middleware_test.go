package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func decodeEnvelope(t *testing.T, data []byte) (success bool, message string) {
	t.Helper()
	err := jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "success":
			success, err = d.Bool()
		case "message":
			message, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	require.NoError(t, err)
	return success, message
}

func TestWrap_Order(t *testing.T) {
	var calls []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls = append(calls, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Wrap(okHandler(), mw("outer"), mw("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"outer", "inner"}, calls)
}

func newTestRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Get("/api/orders/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Post("/api/orders", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	return r
}

func TestMakeRouteFinder(t *testing.T) {
	find := MakeRouteFinder(newTestRouter())

	tests := []struct {
		method string
		target string
		route  string
		ok     bool
	}{
		{http.MethodGet, "/api/orders/42", "/api/orders/{id}", true},
		{http.MethodPost, "/api/orders", "/api/orders", true},
		{http.MethodDelete, "/api/orders", "", false},
		{http.MethodGet, "/nope", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			route, ok := find(req.Method, req.URL)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.route, route)
		})
	}
}

func TestLogRequests(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	router := newTestRouter()
	h := Wrap(router,
		InjectLogger(zap.New(core)),
		RequestID(),
		LogRequests(MakeRouteFinder(router)),
	)

	req := httptest.NewRequest(http.MethodGet, "/api/orders/7", nil)
	req.Header.Set("X-Request-ID", "req-1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "http request", entry.Message)

	fields := entry.ContextMap()
	assert.Equal(t, "/api/orders/{id}", fields["http.route"])
	assert.Equal(t, int64(http.StatusOK), fields["http.response.status_code"])
	assert.Equal(t, "req-1", fields["request_id"])
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	h := Wrap(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }),
		InjectLogger(zap.New(core)),
		Recovery(),
	)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	success, message := decodeEnvelope(t, w.Body.Bytes())
	assert.False(t, success)
	assert.Equal(t, "Internal server error", message)
	assert.Equal(t, 1, logs.FilterMessage("Panic recovered").Len())
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Len(t, seen, 36)
		assert.Equal(t, seen, w.Header().Get("X-Request-ID"))
	})

	t.Run("reused", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "abc")
		h.ServeHTTP(httptest.NewRecorder(), req)
		assert.Equal(t, "abc", seen)
	})

	t.Run("invalid replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "bad\x01id")
		h.ServeHTTP(httptest.NewRecorder(), req)
		assert.NotEqual(t, "bad\x01id", seen)
	})
}

func TestInjectLogger(t *testing.T) {
	lg := zap.NewNop()
	var got *zap.Logger
	h := InjectLogger(lg)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = zctx.From(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotNil(t, got)
}

func TestCORS_Preflight(t *testing.T) {
	h := CORS(CORSConfig{AllowOrigins: []string{"https://cafe.example"}, MaxAge: 600})(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/orders/1/status", nil)
	req.Header.Set("Origin", "https://CAFE.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://cafe.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")
	assert.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	h := CORS(CORSConfig{AllowOrigins: []string{"https://cafe.example"}})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", w.Header().Get("Vary"))
}

func TestCORS_ActualRequest(t *testing.T) {
	h := CORS(CORSConfig{AllowOrigins: []string{"*"}, AllowCredentials: true})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/food", nil)
	req.Header.Set("Origin", "https://cafe.example")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	// Credentials disable the wildcard and nothing else is configured.
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	h = CORS(CORSConfig{AllowOrigins: []string{"https://cafe.example"}, AllowCredentials: true})(okHandler())
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "https://cafe.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "X-Request-ID")
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "Retry-After")
}
