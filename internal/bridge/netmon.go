package bridge

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"
)

// ProbeFunc reports whether the backend currently looks reachable.
type ProbeFunc func(ctx context.Context) bool

// Monitor continuously observes backend reachability. Its judgment is only a
// hint: the bridge still attempts real requests and reacts to the concrete
// failure, feeding the outcome back through Observe.
type Monitor struct {
	online   atomic.Bool
	probe    ProbeFunc
	interval time.Duration
}

func NewMonitor(probe ProbeFunc, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	m := &Monitor{probe: probe, interval: interval}
	// Optimistic until the first probe: a cold start should try the backend.
	m.online.Store(true)
	return m
}

// Start launches the periodic prober. It exits when ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	if m.probe == nil {
		return
	}
	m.online.Store(m.probe(ctx))
	ticker := time.NewTicker(m.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.online.Store(m.probe(ctx))
			}
		}
	}()
}

func (m *Monitor) Online() bool {
	return m.online.Load()
}

// Observe records the outcome of a concrete backend attempt.
func (m *Monitor) Observe(reachable bool) {
	m.online.Store(reachable)
}

// DefaultProbe issues a short HEAD request to the backend base URL. Any HTTP
// response, including an error status, counts as reachable.
func DefaultProbe(baseURL string, timeout time.Duration) ProbeFunc {
	client := &http.Client{Timeout: timeout}
	return func(ctx context.Context) bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, baseURL, nil)
		if err != nil {
			return false
		}
		res, err := client.Do(req)
		if err != nil {
			return false
		}
		_ = res.Body.Close()
		return true
	}
}
