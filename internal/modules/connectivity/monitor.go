package connectivity

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/Mani87-nq/yardbooks-web-sub005/internal/metrics"
)

// Status classifies the terminal's network state.
type Status string

const (
	StatusOnline   Status = "ONLINE"
	StatusDegraded Status = "DEGRADED"
	StatusOffline  Status = "OFFLINE"
)

// State is the published connectivity snapshot. Consumers only read it;
// the monitor is its sole mutator.
type State struct {
	Status           Status        `json:"status"`
	LastOnlineAt     time.Time     `json:"last_online_at"`
	LastCheckedAt    time.Time     `json:"last_checked_at"`
	Latency          time.Duration `json:"latency"`
	PendingSyncCount int           `json:"pending_sync_count"`
}

// Listener receives every state change, synchronously, in subscription
// order.
type Listener func(State)

// Prober measures one round trip to the liveness endpoint.
type Prober interface {
	Probe(ctx context.Context) (time.Duration, error)
}

// Tunables. Polling is faster while offline so recovery is noticed
// quickly, slower otherwise to limit overhead.
const (
	probeTimeout      = 5 * time.Second
	degradedThreshold = 3 * time.Second
	offlineInterval   = 10 * time.Second
	onlineInterval    = 30 * time.Second
)

// Monitor is the connectivity oracle every other terminal component
// consults before deciding to act or queue. Construct one per process and
// inject it; there is no package-level instance.
type Monitor struct {
	prober Prober
	now    func() time.Time

	mu        sync.Mutex
	state     State
	listeners []Listener

	kick chan struct{}
}

// NewMonitor creates a monitor. The initial state is optimistic: online
// until a probe says otherwise.
func NewMonitor(prober Prober) *Monitor {
	m := &Monitor{
		prober: prober,
		now:    time.Now,
		kick:   make(chan struct{}, 1),
	}
	m.state = State{Status: StatusOnline, LastOnlineAt: m.now()}
	return m
}

// Start launches the periodic probe loop. It returns immediately; the loop
// stops when ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	go m.loop(ctx)
}

func (m *Monitor) loop(ctx context.Context) {
	timer := time.NewTimer(m.interval())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			m.CheckNow(ctx)
		case <-m.kick:
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(m.interval())
	}
}

// CheckNow forces an immediate probe and returns the resulting state.
// Probe failures are evidence of offline, never an error to the caller.
func (m *Monitor) CheckNow(ctx context.Context) State {
	latency, err := m.prober.Probe(ctx)

	status := StatusOnline
	switch {
	case err != nil:
		status = StatusOffline
		latency = 0
	case latency > degradedThreshold:
		status = StatusDegraded
	}
	return m.transition(status, latency)
}

// State returns the current snapshot.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers a listener and immediately replays the current
// state to it.
func (m *Monitor) Subscribe(l Listener) {
	m.mu.Lock()
	m.listeners = append(m.listeners, l)
	snapshot := m.state
	m.mu.Unlock()
	l(snapshot)
}

// SetPendingCount publishes the outbound queue depth for display.
func (m *Monitor) SetPendingCount(n int) {
	m.mu.Lock()
	m.state.PendingSyncCount = n
	snapshot := m.state
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()

	metrics.PendingQueueDepth.Set(float64(n))
	for _, l := range listeners {
		l(snapshot)
	}
}

// ReportDown is the low-level network-down signal: the state flips to
// offline immediately instead of waiting for the next probe.
func (m *Monitor) ReportDown() {
	m.transition(StatusOffline, 0)
}

// ReportUp requests an immediate re-probe on the next loop turn after an
// external hint that the network came back.
func (m *Monitor) ReportUp() {
	select {
	case m.kick <- struct{}{}:
	default:
	}
}

func (m *Monitor) transition(status Status, latency time.Duration) State {
	m.mu.Lock()
	now := m.now()
	changed := m.state.Status != status
	m.state.Status = status
	m.state.LastCheckedAt = now
	m.state.Latency = latency
	if status == StatusOnline {
		m.state.LastOnlineAt = now
	}
	snapshot := m.state
	var listeners []Listener
	if changed {
		listeners = append([]Listener(nil), m.listeners...)
	}
	m.mu.Unlock()

	metrics.ConnectivityState.Set(gaugeValue(status))

	if changed {
		// A transition reschedules the probe interval right away.
		select {
		case m.kick <- struct{}{}:
		default:
		}
		for _, l := range listeners {
			l(snapshot)
		}
	}
	return snapshot
}

func (m *Monitor) interval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Status == StatusOffline {
		return offlineInterval
	}
	return onlineInterval
}

func gaugeValue(s Status) float64 {
	switch s {
	case StatusOnline:
		return 2
	case StatusDegraded:
		return 1
	default:
		return 0
	}
}

// HTTPProber probes a cheap liveness endpoint over HTTP.
type HTTPProber struct {
	URL    string
	Client *http.Client
}

// NewHTTPProber creates a prober with the bounded probe timeout.
func NewHTTPProber(url string) *HTTPProber {
	return &HTTPProber{URL: url, Client: &http.Client{Timeout: probeTimeout}}
}

func (p *HTTPProber) Probe(ctx context.Context) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	resp, err := p.Client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return time.Since(start), nil
}
