package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock implementations ---

var _ Pinger = pingerFunc(nil)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// --- Helpers ---

func passingCheck() CheckFunc {
	return func(context.Context) error { return nil }
}

func failingCheck(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func runTimes(p *probe, n int) {
	for range n {
		p.run(context.Background())
	}
}

func get(t *testing.T, handler http.HandlerFunc, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

// --- Tests ---

func TestLiveEndpoint_AllPassing(t *testing.T) {
	h := New()
	h.AddLivenessCheck("goroutines", time.Second, passingCheck())

	w := get(t, h.LiveEndpoint, "/livez")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestLiveEndpoint_FailingCheck(t *testing.T) {
	h := New()
	h.AddLivenessCheck("goroutines", time.Second, failingCheck("too many"))
	runTimes(h.liveness[0], defaultFailureThreshold)

	w := get(t, h.LiveEndpoint, "/livez")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"goroutines":"too many"}}`, w.Body.String())
}

func TestLiveEndpoint_FailureBelowThreshold(t *testing.T) {
	h := New()
	h.AddLivenessCheck("goroutines", time.Second, failingCheck("too many"))
	runTimes(h.liveness[0], defaultFailureThreshold-1)

	assert.Equal(t, http.StatusOK, get(t, h.LiveEndpoint, "/livez").Code)
}

func TestReadyEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		ready    bool
		checks   map[string]CheckFunc
		wantCode int
		wantBody string
	}{
		{
			name:     "ready and passing",
			ready:    true,
			checks:   map[string]CheckFunc{"catalog": passingCheck()},
			wantCode: http.StatusOK,
			wantBody: `{"status":"ok"}`,
		},
		{
			name:     "not marked ready",
			checks:   map[string]CheckFunc{"catalog": passingCheck()},
			wantCode: http.StatusServiceUnavailable,
			wantBody: `{"status":"unhealthy","checks":{"_readiness":"service is not ready"}}`,
		},
		{
			name:  "one dependency down",
			ready: true,
			checks: map[string]CheckFunc{
				"catalog": passingCheck(),
				"amqp":    failingCheck("connection closed"),
			},
			wantCode: http.StatusServiceUnavailable,
			wantBody: `{"status":"unhealthy","checks":{"amqp":"connection closed"}}`,
		},
		{
			name:     "no checks",
			ready:    true,
			wantCode: http.StatusOK,
			wantBody: `{"status":"ok"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New()
			for name, check := range tt.checks {
				h.AddReadinessCheck(name, time.Second, check)
			}
			for _, p := range h.readiness {
				runTimes(p, defaultFailureThreshold)
			}
			h.SetReady(tt.ready)

			w := get(t, h.ReadyEndpoint, "/readyz")

			assert.Equal(t, tt.wantCode, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
			assert.Equal(t, tt.wantCode == http.StatusOK, h.IsReady())
		})
	}
}

func TestSetReadyFalseDuringShutdown(t *testing.T) {
	h := New()
	h.SetReady(true)
	require.True(t, h.IsReady())

	h.SetReady(false)

	assert.False(t, h.IsReady())
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h.ReadyEndpoint, "/readyz").Code)
}

func TestProbeRecovers(t *testing.T) {
	failing := true
	h := New()
	h.AddReadinessCheck("redis", time.Second, func(context.Context) error {
		if failing {
			return errors.New("down")
		}
		return nil
	})
	p := h.readiness[0]

	runTimes(p, defaultFailureThreshold)
	require.False(t, p.isHealthy())
	assert.EqualError(t, p.lastError(), "down")

	failing = false
	p.run(context.Background())
	assert.True(t, p.isHealthy())
	assert.NoError(t, p.lastError())
}

func TestProbeTimeout(t *testing.T) {
	h := New()
	h.AddReadinessCheck("slow", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	h.readiness[0].run(context.Background())

	assert.ErrorIs(t, h.readiness[0].lastError(), context.DeadlineExceeded)
}

func TestRegister(t *testing.T) {
	h := New()
	h.SetReady(true)
	mux := http.NewServeMux()
	h.Register(mux)

	for _, path := range []string{"/livez", "/readyz"} {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestStartAndStop(t *testing.T) {
	h := New()
	calls := make(chan struct{}, 16)
	h.AddReadinessCheck("catalog", time.Second, func(context.Context) error {
		select {
		case calls <- struct{}{}:
		default:
		}
		return nil
	})

	h.Start(context.Background(), 5*time.Millisecond)
	select {
	case <-calls:
	case <-time.After(time.Second):
		t.Fatal("check never ran")
	}
	h.Stop()
	h.Stop()
}

func TestConcurrentAccess(t *testing.T) {
	h := New()
	h.AddLivenessCheck("goroutines", time.Second, failingCheck("err"))
	h.AddReadinessCheck("catalog", time.Second, passingCheck())
	h.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx, time.Millisecond)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				h.IsReady()
				get(t, h.LiveEndpoint, "/livez")
				get(t, h.ReadyEndpoint, "/readyz")
			}
		}()
	}
	wg.Wait()
	h.Stop()
}

func TestPingCheck(t *testing.T) {
	ok := PingCheck("redis", pingerFunc(func(context.Context) error { return nil }))
	assert.NoError(t, ok(context.Background()))

	down := PingCheck("redis", pingerFunc(func(context.Context) error { return errors.New("refused") }))
	assert.EqualError(t, down(context.Background()), "ping redis: refused")
}

func TestLoadCheck(t *testing.T) {
	ok := LoadCheck(func(context.Context) ([]string, error) { return []string{"1"}, nil })
	assert.NoError(t, ok(context.Background()))

	broken := LoadCheck(func(context.Context) ([]string, error) { return nil, errors.New("bad json") })
	assert.EqualError(t, broken(context.Background()), "bad json")
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))

	err := GoroutineCountCheck(0)(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds threshold")
}
