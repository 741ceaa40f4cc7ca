package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passing(context.Context) error { return nil }

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func serve(t *testing.T, handler http.HandlerFunc) (int, statusResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body statusResponse
	require.NoError(t, body.Decode(jx.DecodeBytes(w.Body.Bytes())))
	return w.Code, body
}

func runTimes(c *check, n int) {
	for range n {
		c.run(context.Background())
	}
}

func TestLiveEndpoint(t *testing.T) {
	h := New()
	code, body := serve(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code, "no checks")
	assert.Equal(t, "ok", body.Status)

	h.AddLivenessCheck("gc", time.Second, passing)
	h.AddLivenessCheck("postgres", time.Second, failing("connection refused"))
	failingCheck := h.liveness.checks[1]

	runTimes(failingCheck, 2)
	code, _ = serve(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code, "below the failure threshold")

	runTimes(failingCheck, 1)
	code, body = serve(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, map[string]string{"postgres": "connection refused"}, body.Checks)
}

func TestReadyEndpoint(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, passing)
	h.AddReadinessCheck("mongo", time.Second, failing("no primary"), WithThresholds(1, 1))

	code, body := serve(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "service is not ready", body.Checks["_readiness"])

	h.SetReady(true)
	code, _ = serve(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, code, "checks start healthy")
	assert.True(t, h.IsReady())

	runTimes(h.readiness.checks[1], 1)
	code, body = serve(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, map[string]string{"mongo": "no primary"}, body.Checks)
	assert.False(t, h.IsReady())
}

func TestCheckThresholds(t *testing.T) {
	down := true
	c := newCheck("flaky", time.Second, func(context.Context) error {
		if down {
			return errors.New("down")
		}
		return nil
	}, []CheckOption{WithThresholds(2, 2)})

	runTimes(c, 1)
	assert.Empty(t, c.failure())
	runTimes(c, 1)
	assert.Equal(t, "down", c.failure())

	down = false
	runTimes(c, 1)
	assert.NotEmpty(t, c.failure(), "one success is not enough")
	runTimes(c, 1)
	assert.Empty(t, c.failure())
}

func TestStartUnhealthy(t *testing.T) {
	c := newCheck("warmup", time.Second, passing, []CheckOption{StartUnhealthy()})
	assert.Equal(t, "check is unhealthy", c.failure())
	runTimes(c, 1)
	assert.Empty(t, c.failure())
}

func TestCheckTimeout(t *testing.T) {
	c := newCheck("slow", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, []CheckOption{WithThresholds(1, 1)})

	runTimes(c, 1)
	assert.Contains(t, c.failure(), "deadline exceeded")
}

func TestStartStop(t *testing.T) {
	h := New()
	h.AddLivenessCheck("live", time.Second, failing("boom"), WithThresholds(1, 1))
	h.AddReadinessCheck("ready", time.Second, passing)
	h.SetReady(true)

	h.Start(context.Background(), 10*time.Millisecond)
	require.Eventually(t, func() bool {
		code, _ := serve(t, h.LiveEndpoint)
		return code == http.StatusServiceUnavailable
	}, time.Second, 5*time.Millisecond)

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			for range 50 {
				h.IsReady()
				h.ReadyEndpoint(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/readyz", nil))
			}
		})
	}
	wg.Wait()

	h.Stop()
	h.Stop()
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))

	err := GoroutineCountCheck(0)(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds threshold")
}

func TestGCMaxPauseCheck(t *testing.T) {
	runtime.GC()
	check := GCMaxPauseCheck(0)
	assert.Error(t, check(context.Background()), "pauses since start are reported")

	assert.NoError(t, GCMaxPauseCheck(time.Hour)(context.Background()))
}
