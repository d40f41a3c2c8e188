package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrAlreadyRunning = errors.New("simulation already running")
	ErrNotRunning     = errors.New("simulation not running")
)

// Status describes the current run
type Status struct {
	Running   bool       `json:"running"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
	Agents    int        `json:"agents"`
	Suppliers int        `json:"suppliers"`
	ServerURL string     `json:"serverUrl"`
}

// Simulator drives a running server with synthetic agents and suppliers
type Simulator struct {
	serverURL string
	logger    zerolog.Logger

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	scenario  Scenario
	startedAt time.Time
	stats     *counters
}

// NewSimulator creates an idle simulator targeting serverURL (http[s]://host:port)
func NewSimulator(serverURL string, logger zerolog.Logger) *Simulator {
	return &Simulator{
		serverURL: serverURL,
		logger:    logger.With().Str("component", "simulator").Logger(),
		stats:     &counters{},
	}
}

// Start launches one goroutine per participant and returns immediately.
// Counters are reset for every run.
func (s *Simulator) Start(sc Scenario) error {
	if err := sc.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true
	s.scenario = sc
	s.startedAt = time.Now()
	s.stats = &counters{}

	seed := s.startedAt.UnixNano()
	for i := 0; i < sc.Agents; i++ {
		p := newParticipant(fmt.Sprintf("sim-agent-%03d", i+1), s.serverURL, s.stats, s.logger)
		s.spawn(ctx, p, newSimAgent(p, sc, seed+int64(i)))
	}
	for i := 0; i < sc.Suppliers; i++ {
		p := newParticipant(fmt.Sprintf("sim-supplier-%03d", i+1), s.serverURL, s.stats, s.logger)
		s.spawn(ctx, p, newSimSupplier(p, sc))
	}

	s.logger.Info().
		Int("agents", sc.Agents).
		Int("suppliers", sc.Suppliers).
		Str("talk_time", sc.TalkTime.String()).
		Float64("reject_rate", sc.RejectRate).
		Msg("simulation started")
	return nil
}

func (s *Simulator) spawn(ctx context.Context, p *participant, b behavior) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		p.run(ctx, b)
	}()
}

// Stop disconnects every participant and waits for them to exit
func (s *Simulator) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return ErrNotRunning
	}

	s.cancel()
	s.wg.Wait()
	s.running = false

	s.logger.Info().
		Dur("ran_for", time.Since(s.startedAt)).
		Int64("calls_ended", s.stats.callsEnded.Load()).
		Msg("simulation stopped")
	return nil
}

// Running reports whether a run is in progress
func (s *Simulator) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Status returns the current run description
func (s *Simulator) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{Running: s.running, ServerURL: s.serverURL}
	if s.running {
		started := s.startedAt
		st.StartedAt = &started
		st.Agents = s.scenario.Agents
		st.Suppliers = s.scenario.Suppliers
	}
	return st
}

// Stats returns the counters of the current (or last) run
func (s *Simulator) Stats() Stats {
	s.mu.Lock()
	stats := s.stats
	s.mu.Unlock()
	return stats.snapshot()
}
