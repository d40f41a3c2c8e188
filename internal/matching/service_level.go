package matching

import (
	"time"

	"github.com/dennisdiepolder/callbridge/internal/types"
)

// ServiceLevel measures how quickly supplier requests reach an agent. Each
// request is judged once, on its first accept, against the threshold that was
// in force at that moment; the verdict is stamped on the Call so the persisted
// record agrees with the live counters.
type ServiceLevel struct {
	target    int // percent
	threshold time.Duration

	answered     int
	answeredInSL int
	abandoned    int // requests that ended without any accept
}

func NewServiceLevel(targetPct int, threshold time.Duration) *ServiceLevel {
	return &ServiceLevel{target: targetPct, threshold: threshold}
}

// Answer records a request's first accept. Later accepts of the same request
// (after a reassignment) do not count again.
func (s *ServiceLevel) Answer(call *types.Call, now time.Time) {
	if call.Answered {
		return
	}

	wait := now.Sub(call.RequestTime)
	call.Answered = true
	call.WaitTime = wait.Seconds()
	call.AnsweredInSL = wait <= s.threshold

	s.answered++
	if call.AnsweredInSL {
		s.answeredInSL++
	}
}

// Abandon records a request that is closing; only unanswered ones count
func (s *ServiceLevel) Abandon(call *types.Call) {
	if !call.Answered {
		s.abandoned++
	}
}

// Percent returns the share of answered requests that met the threshold.
// With nothing answered yet the level is 100.
func (s *ServiceLevel) Percent() float64 {
	if s.answered == 0 {
		return 100.0
	}
	return float64(s.answeredInSL) / float64(s.answered) * 100.0
}

func (s *ServiceLevel) Snapshot() types.ServiceLevel {
	return types.ServiceLevel{
		Target:        s.target,
		ThresholdSecs: int(s.threshold / time.Second),
		AnsweredInSL:  s.answeredInSL,
		TotalAnswered: s.answered,
		Abandoned:     s.abandoned,
		CurrentSL:     s.Percent(),
	}
}
