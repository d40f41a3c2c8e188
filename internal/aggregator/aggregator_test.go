package aggregator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dennisdiepolder/callbridge/internal/alerts"
	"github.com/dennisdiepolder/callbridge/internal/metrics"
	"github.com/dennisdiepolder/callbridge/internal/types"
	"github.com/rs/zerolog"
)

type fakeSource struct {
	snap    types.Snapshot
	err     error
	sampled atomic.Int32
}

func (f *fakeSource) Snapshot() types.Snapshot {
	f.sampled.Add(1)
	return f.snap
}

func (f *fakeSource) CheckInvariants() error { return f.err }

func TestSampleAppliesAlerts(t *testing.T) {
	now := time.Now()
	src := &fakeSource{snap: types.Snapshot{
		Timestamp: now,
		Agents: []types.AgentInfo{
			{AgentID: "a1", State: types.AgentOffered, StateStart: now.Add(-time.Minute)},
		},
		Queue: []types.QueueEntry{{SupplierID: "s1", WaitSecs: 300}},
	}}

	agg := NewAggregator(src, time.Second, alerts.Thresholds{
		OfferUnanswered: 30 * time.Second,
		QueueWait:       2 * time.Minute,
	}, zerolog.Nop())

	snap := agg.Sample()

	if len(snap.Agents[0].Alerts) != 1 {
		t.Errorf("expected agent alert, got %+v", snap.Agents[0].Alerts)
	}
	if len(snap.Queue[0].Alerts) != 1 {
		t.Errorf("expected queue alert, got %+v", snap.Queue[0].Alerts)
	}
	if agg.lastAlerts != 2 {
		t.Errorf("expected 2 tracked alerts, got %d", agg.lastAlerts)
	}
}

func TestSampleRecordsInvariantFailures(t *testing.T) {
	src := &fakeSource{err: errors.New("s1 is both queued and paired")}
	agg := NewAggregator(src, time.Second, alerts.Thresholds{}, zerolog.Nop())

	before := metrics.Get().InvariantFailures
	agg.Sample()

	if got := metrics.Get().InvariantFailures; got != before+1 {
		t.Errorf("expected invariant failure to be counted, got %d (before %d)", got, before)
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	src := &fakeSource{}
	agg := NewAggregator(src, 5*time.Millisecond, alerts.Thresholds{}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		agg.Start(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("aggregator did not stop")
	}

	if src.sampled.Load() == 0 {
		t.Error("expected at least one sample")
	}
}
