package aggregator

import (
	"context"
	"time"

	"github.com/dennisdiepolder/callbridge/internal/alerts"
	"github.com/dennisdiepolder/callbridge/internal/metrics"
	"github.com/dennisdiepolder/callbridge/internal/types"
	"github.com/rs/zerolog"
)

// Source is the matching state being sampled
type Source interface {
	Snapshot() types.Snapshot
	CheckInvariants() error
}

// Aggregator periodically samples the matching engine into metrics and
// evaluates alert rules
type Aggregator struct {
	source     Source
	interval   time.Duration
	thresholds alerts.Thresholds
	lastAlerts int
	logger     zerolog.Logger
}

// NewAggregator creates a new aggregator
func NewAggregator(source Source, interval time.Duration, th alerts.Thresholds, logger zerolog.Logger) *Aggregator {
	if interval <= 0 {
		interval = time.Second
	}
	return &Aggregator{
		source:     source,
		interval:   interval,
		thresholds: th,
		logger:     logger.With().Str("component", "aggregator").Logger(),
	}
}

// Start samples on every tick until ctx is cancelled
func (a *Aggregator) Start(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.logger.Info().Dur("interval", a.interval).Msg("aggregator started")

	for {
		select {
		case <-ctx.Done():
			a.logger.Info().Msg("aggregator stopped")
			return

		case <-ticker.C:
			a.Sample()
		}
	}
}

// Sample runs one cycle and returns the snapshot with alerts attached
func (a *Aggregator) Sample() types.Snapshot {
	m := metrics.Get()
	cycleStart := time.Now()

	snap := a.source.Snapshot()
	raised := alerts.Apply(&snap, a.thresholds)
	m.UpdateEngineStats(snap)

	if err := a.source.CheckInvariants(); err != nil {
		m.RecordInvariantFailure()
		a.logger.Error().Err(err).Msg("matching state inconsistent")
	}

	if raised != a.lastAlerts {
		ev := a.logger.Info()
		if raised > a.lastAlerts {
			ev = a.logger.Warn()
		}
		ev.Int("alerts", raised).
			Int("queue_depth", len(snap.Queue)).
			Float64("longest_wait_secs", snap.LongestWaitSecs).
			Msg("alert count changed")
		a.lastAlerts = raised
	}

	m.RecordSampleCycle(time.Since(cycleStart))

	a.logger.Debug().
		Int("agents", len(snap.Agents)).
		Int("queue_depth", len(snap.Queue)).
		Int("pairs", len(snap.Pairings)/2).
		Float64("service_level", snap.ServiceLevel.CurrentSL).
		Msg("sampled")

	return snap
}
