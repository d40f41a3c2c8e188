package types

import "time"

// AgentState represents where an agent is in the offer/call cycle
type AgentState string

const (
	AgentIdle    AgentState = "idle"
	AgentOffered AgentState = "offered" // supplier offered, not yet accepted
	AgentInCall  AgentState = "in_call"
)

// Busy reports whether the agent is unavailable for new offers
func (s AgentState) Busy() bool {
	return s != AgentIdle
}

// SupplierState represents where a supplier is in its request lifecycle
type SupplierState string

const (
	SupplierIdle    SupplierState = "idle"
	SupplierQueued  SupplierState = "queued"
	SupplierOffered SupplierState = "offered"
	SupplierInCall  SupplierState = "in_call"
)

// AlertSeverity represents the severity of an alert
type AlertSeverity string

const (
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// Alert represents an alert condition on an agent or a queued supplier
type Alert struct {
	Rule     string        `json:"rule"`
	Severity AlertSeverity `json:"severity"`
	Message  string        `json:"message"`
}

// AgentInfo is a point-in-time view of one registered agent
type AgentInfo struct {
	AgentID      string     `json:"agentId"`
	Name         string     `json:"name"`
	State        AgentState `json:"state"`
	PartnerID    string     `json:"partnerId,omitempty"`
	Seq          uint64     `json:"seq"`          // registration order
	RegisteredAt time.Time  `json:"registeredAt"`
	StateStart   time.Time  `json:"stateStart"` // when current state started
	Alerts       []Alert    `json:"alerts,omitempty"`
}

// QueueEntry is a point-in-time view of one waiting supplier
type QueueEntry struct {
	SupplierID  string    `json:"supplierId"`
	Position    int       `json:"position"`
	EnqueueTime time.Time `json:"enqueueTime"`
	WaitSecs    float64   `json:"waitSecs"`
	Alerts      []Alert   `json:"alerts,omitempty"`
}

// ServiceLevel tracks SL metrics for the engine
type ServiceLevel struct {
	Target        int     `json:"target"`        // target percentage (e.g., 80)
	ThresholdSecs int     `json:"thresholdSecs"` // threshold in seconds (e.g., 20)
	AnsweredInSL  int     `json:"answeredInSL"`  // calls answered within threshold
	TotalAnswered int     `json:"totalAnswered"` // total calls answered
	Abandoned     int     `json:"abandoned"`     // requests ended before any accept
	CurrentSL     float64 `json:"currentSL"`     // calculated SL percentage
}

// EngineTotals are monotonically increasing counters kept by the engine
type EngineTotals struct {
	Offers        int `json:"offers"`
	Accepts       int `json:"accepts"`
	Rejects       int `json:"rejects"`
	Requeues      int `json:"requeues"`
	Promotions    int `json:"promotions"`
	Reassignments int `json:"reassignments"`
	CallsEnded    int `json:"callsEnded"`
}

// Snapshot is the full state of the matching engine at one instant
type Snapshot struct {
	Timestamp       time.Time         `json:"timestamp"`
	Agents          []AgentInfo       `json:"agents"`
	Queue           []QueueEntry      `json:"queue"`
	Pairings        map[string]string `json:"pairings"`
	Calls           []Call            `json:"calls"` // open supplier requests
	LongestWaitSecs float64           `json:"longestWaitSecs"`
	ServiceLevel    ServiceLevel      `json:"serviceLevel"`
	Totals          EngineTotals      `json:"totals"`
}

// AgentsByState counts agents per state
func (s *Snapshot) AgentsByState() map[AgentState]int {
	counts := map[AgentState]int{
		AgentIdle:    0,
		AgentOffered: 0,
		AgentInCall:  0,
	}
	for _, a := range s.Agents {
		counts[a.State]++
	}
	return counts
}
