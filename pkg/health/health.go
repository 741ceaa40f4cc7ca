// Package health serves liveness and readiness probes.
//
// Checks run periodically in the background and flip state only after a run
// of consecutive failures or successes, so a single slow ping does not pull a
// replica out of rotation. Endpoints report the last known state and never
// run checks inline.
package health

import (
	"context"
	"maps"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
)

// CheckFunc returns nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

// CheckOption tunes a registered check.
type CheckOption func(c *check)

// WithThresholds sets how many consecutive failures mark a check unhealthy and
// how many consecutive successes mark it healthy again. Defaults are 3 and 1.
func WithThresholds(failures, successes int) CheckOption {
	return func(c *check) {
		c.failureThreshold = max(1, failures)
		c.successThreshold = max(1, successes)
	}
}

// StartUnhealthy makes the check report unhealthy until it first passes.
func StartUnhealthy() CheckOption {
	return func(c *check) { c.healthy.Store(false) }
}

type check struct {
	name             string
	timeout          time.Duration
	fn               CheckFunc
	failureThreshold int
	successThreshold int

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	// Owned by the goroutine calling run.
	fails int
	oks   int
}

func newCheck(name string, timeout time.Duration, fn CheckFunc, opts []CheckOption) *check {
	c := &check{
		name:             name,
		timeout:          timeout,
		fn:               fn,
		failureThreshold: 3,
		successThreshold: 1,
	}
	c.healthy.Store(true)
	for _, o := range opts {
		o(c)
	}
	return c
}

// run executes the check once. Calls must not overlap.
func (c *check) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.fn(ctx)
	c.lastErr.Store(&err)
	if err != nil {
		c.oks = 0
		if c.fails++; c.fails >= c.failureThreshold {
			c.healthy.Store(false)
		}
		return
	}
	c.fails = 0
	if c.oks++; c.oks >= c.successThreshold {
		c.healthy.Store(true)
	}
}

// failure describes why the check is unhealthy, or "" when it is healthy.
func (c *check) failure() string {
	if c.healthy.Load() {
		return ""
	}
	if p := c.lastErr.Load(); p != nil && *p != nil {
		return (*p).Error()
	}
	return "check is unhealthy"
}

func (c *check) loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.run(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.run(ctx)
		}
	}
}

// probe is a named set of checks.
type probe struct {
	mu     sync.RWMutex
	checks []*check
}

func (p *probe) add(c *check) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checks = append(p.checks, c)
}

func (p *probe) snapshot() []*check {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.checks)
}

// failures maps unhealthy check names to their last error.
func (p *probe) failures() map[string]string {
	out := make(map[string]string)
	for _, c := range p.snapshot() {
		if msg := c.failure(); msg != "" {
			out[c.name] = msg
		}
	}
	return out
}

// Health holds the liveness and readiness probes of a service.
type Health struct {
	ready     atomic.Bool
	liveness  probe
	readiness probe

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New creates a Health that is not ready until SetReady(true).
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a check that tells whether the process should be
// restarted, e.g. goroutine leaks or GC pressure.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc, opts ...CheckOption) {
	h.liveness.add(newCheck(name, timeout, fn, opts))
}

// AddReadinessCheck registers a check that tells whether the process should
// receive traffic, e.g. store or cache connectivity.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc, opts ...CheckOption) {
	h.readiness.add(newCheck(name, timeout, fn, opts))
}

// Start runs every registered check each interval until Stop or ctx is done.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	if h.cancel != nil {
		h.cancel()
	}
	h.cancel = cancel
	h.mu.Unlock()

	for _, c := range append(h.liveness.snapshot(), h.readiness.snapshot()...) {
		go c.loop(ctx, interval)
	}
}

// Stop cancels the background checks. It is safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady marks the service as ready after startup, or not ready during
// shutdown draining.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the service is marked ready and every readiness
// check passes.
func (h *Health) IsReady() bool {
	return h.ready.Load() && len(h.readiness.failures()) == 0
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeResponse(w, h.liveness.failures())
}

// ReadyEndpoint serves /readyz.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	failures := h.readiness.failures()
	if !h.ready.Load() {
		failures["_readiness"] = "service is not ready"
	}
	writeResponse(w, failures)
}

// statusResponse is {"status":"ok"} or {"status":"unhealthy","checks":{...}}.
type statusResponse struct {
	Status string
	Checks map[string]string
}

// Encode writes the body with checks sorted by name.
func (s statusResponse) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("status")
	e.Str(s.Status)
	if len(s.Checks) > 0 {
		e.FieldStart("checks")
		e.ObjStart()
		for _, name := range slices.Sorted(maps.Keys(s.Checks)) {
			e.FieldStart(name)
			e.Str(s.Checks[name])
		}
		e.ObjEnd()
	}
	e.ObjEnd()
}

// Decode reads a body produced by Encode.
func (s *statusResponse) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "status":
			v, err := d.Str()
			s.Status = v
			return err
		case "checks":
			s.Checks = map[string]string{}
			return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
				v, err := d.Str()
				s.Checks[string(key)] = v
				return err
			})
		default:
			return d.Skip()
		}
	})
}

func writeResponse(w http.ResponseWriter, failures map[string]string) {
	resp := statusResponse{Status: "ok"}
	code := http.StatusOK
	if len(failures) > 0 {
		resp = statusResponse{Status: "unhealthy", Checks: failures}
		code = http.StatusServiceUnavailable
	}

	var e jx.Encoder
	resp.Encode(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}
