package connectivity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProber replays a fixed sequence of probe results.
type scriptedProber struct {
	results []probeResult
	calls   int
}

type probeResult struct {
	latency time.Duration
	err     error
}

func (p *scriptedProber) Probe(ctx context.Context) (time.Duration, error) {
	r := p.results[p.calls%len(p.results)]
	p.calls++
	return r.latency, r.err
}

func TestCheckNow_Classification(t *testing.T) {
	tests := []struct {
		name   string
		result probeResult
		want   Status
	}{
		{"fast response is online", probeResult{latency: 40 * time.Millisecond}, StatusOnline},
		{"slow response is degraded", probeResult{latency: 3500 * time.Millisecond}, StatusDegraded},
		{"probe error is offline", probeResult{err: errors.New("dial tcp: no route")}, StatusOffline},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMonitor(&scriptedProber{results: []probeResult{tt.result}})
			state := m.CheckNow(context.Background())
			assert.Equal(t, tt.want, state.Status)
			assert.False(t, state.LastCheckedAt.IsZero())
		})
	}
}

func TestProbeFailureIsNotAnError(t *testing.T) {
	// The call yields a state, never a surfaced error.
	m := NewMonitor(&scriptedProber{results: []probeResult{{err: errors.New("timeout")}}})
	state := m.CheckNow(context.Background())
	assert.Equal(t, StatusOffline, state.Status)
	assert.Zero(t, state.Latency)
}

func TestSubscribe_ReplaysCurrentState(t *testing.T) {
	m := NewMonitor(&scriptedProber{results: []probeResult{{latency: time.Millisecond}}})

	var got []Status
	m.Subscribe(func(s State) { got = append(got, s.Status) })

	// Replay happens at subscription time, before any probe.
	require.Len(t, got, 1)
	assert.Equal(t, StatusOnline, got[0])
}

func TestTransitions_NotifyInSubscriptionOrder(t *testing.T) {
	p := &scriptedProber{results: []probeResult{
		{err: errors.New("down")},
		{latency: 10 * time.Millisecond},
	}}
	m := NewMonitor(p)

	var order []string
	m.Subscribe(func(s State) { order = append(order, "first:"+string(s.Status)) })
	m.Subscribe(func(s State) { order = append(order, "second:"+string(s.Status)) })
	order = nil // drop the subscription replays

	m.CheckNow(context.Background()) // online -> offline
	m.CheckNow(context.Background()) // offline -> online

	assert.Equal(t, []string{
		"first:OFFLINE", "second:OFFLINE",
		"first:ONLINE", "second:ONLINE",
	}, order)
}

func TestNoNotificationWithoutTransition(t *testing.T) {
	m := NewMonitor(&scriptedProber{results: []probeResult{{latency: time.Millisecond}}})

	calls := 0
	m.Subscribe(func(State) { calls++ })
	calls = 0

	m.CheckNow(context.Background()) // already online, no change
	m.CheckNow(context.Background())
	assert.Zero(t, calls)
}

func TestAdaptiveInterval(t *testing.T) {
	m := NewMonitor(&scriptedProber{results: []probeResult{{err: errors.New("down")}}})
	assert.Equal(t, onlineInterval, m.interval())

	m.CheckNow(context.Background())
	assert.Equal(t, offlineInterval, m.interval())

	// Degraded polls at the slow cadence: the link works, just poorly.
	m.transition(StatusDegraded, 4*time.Second)
	assert.Equal(t, onlineInterval, m.interval())
}

func TestReportDown_FlipsImmediately(t *testing.T) {
	m := NewMonitor(&scriptedProber{results: []probeResult{{latency: time.Millisecond}}})

	var seen []Status
	m.Subscribe(func(s State) { seen = append(seen, s.Status) })
	seen = nil

	m.ReportDown()
	require.Len(t, seen, 1)
	assert.Equal(t, StatusOffline, seen[0])
	assert.Equal(t, StatusOffline, m.State().Status)
}

func TestSetPendingCount_Publishes(t *testing.T) {
	m := NewMonitor(&scriptedProber{results: []probeResult{{latency: time.Millisecond}}})

	var last State
	m.Subscribe(func(s State) { last = s })

	m.SetPendingCount(7)
	assert.Equal(t, 7, last.PendingSyncCount)
	assert.Equal(t, StatusOnline, last.Status)
}

func TestLastOnlineAt_TracksRecovery(t *testing.T) {
	p := &scriptedProber{results: []probeResult{
		{err: errors.New("down")},
		{latency: time.Millisecond},
	}}
	m := NewMonitor(p)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.state.LastOnlineAt = base
	step := 0
	m.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Minute)
	}

	offline := m.CheckNow(context.Background())
	recovered := m.CheckNow(context.Background())

	assert.True(t, offline.LastOnlineAt.Before(recovered.LastOnlineAt))
	assert.Equal(t, recovered.LastCheckedAt, recovered.LastOnlineAt)
}
