package matching

import (
	"fmt"

	"github.com/dennisdiepolder/callbridge/internal/types"
)

// SelectionPolicy names a RoutingStrategy
type SelectionPolicy string

const (
	SelectLongestIdle       SelectionPolicy = "longest_idle"
	SelectRegistrationOrder SelectionPolicy = "registration_order"
)

// RoutingStrategy selects which free agent gets the next supplier
type RoutingStrategy interface {
	SelectAgent(available []types.AgentInfo) *types.AgentInfo
}

// NewRoutingStrategy returns the strategy for a policy name
func NewRoutingStrategy(policy SelectionPolicy) (RoutingStrategy, error) {
	switch policy {
	case SelectLongestIdle, "":
		return &LongestIdleFirst{}, nil
	case SelectRegistrationOrder:
		return &RegistrationOrder{}, nil
	default:
		return nil, fmt.Errorf("unknown selection policy %q", policy)
	}
}

// LongestIdleFirst selects the agent who has been idle the longest.
// Ties go to the earlier registration.
type LongestIdleFirst struct{}

// SelectAgent picks the available agent with the oldest StateStart time
func (l *LongestIdleFirst) SelectAgent(available []types.AgentInfo) *types.AgentInfo {
	if len(available) == 0 {
		return nil
	}

	oldest := &available[0]
	for i := 1; i < len(available); i++ {
		a := &available[i]
		if a.StateStart.Before(oldest.StateStart) ||
			(a.StateStart.Equal(oldest.StateStart) && a.Seq < oldest.Seq) {
			oldest = a
		}
	}
	return oldest
}

// RegistrationOrder selects the earliest registered free agent
type RegistrationOrder struct{}

// SelectAgent picks the available agent with the lowest registration sequence
func (RegistrationOrder) SelectAgent(available []types.AgentInfo) *types.AgentInfo {
	if len(available) == 0 {
		return nil
	}

	first := &available[0]
	for i := 1; i < len(available); i++ {
		if available[i].Seq < first.Seq {
			first = &available[i]
		}
	}
	return first
}
