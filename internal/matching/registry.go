package matching

import (
	"sort"
	"time"

	"github.com/dennisdiepolder/callbridge/internal/types"
)

// agentRecord is the registry entry for one agent connection
type agentRecord struct {
	id           string
	name         string
	state        types.AgentState
	seq          uint64
	registeredAt time.Time
	stateStart   time.Time
}

// Registry tracks availability of every connection that registered as an agent
type Registry struct {
	agents  map[string]*agentRecord // connID -> agent
	nextSeq uint64
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		agents: make(map[string]*agentRecord),
	}
}

// Register creates an agent record in the given state, or refreshes the name of
// an existing one. An existing record keeps its state and registration order.
func (r *Registry) Register(id, name string, state types.AgentState, now time.Time) {
	if existing, ok := r.agents[id]; ok {
		existing.name = name
		return
	}

	r.nextSeq++
	r.agents[id] = &agentRecord{
		id:           id,
		name:         name,
		state:        state,
		seq:          r.nextSeq,
		registeredAt: now,
		stateStart:   now,
	}
}

// IsAgent reports whether id is a registered agent
func (r *Registry) IsAgent(id string) bool {
	_, ok := r.agents[id]
	return ok
}

// State returns the agent's state; ok is false for non-agents
func (r *Registry) State(id string) (types.AgentState, bool) {
	a, ok := r.agents[id]
	if !ok {
		return "", false
	}
	return a.state, true
}

// Name returns the agent's display name
func (r *Registry) Name(id string) string {
	if a, ok := r.agents[id]; ok {
		return a.name
	}
	return ""
}

// SetState updates one agent's state. No-op for non-agents.
func (r *Registry) SetState(id string, state types.AgentState, now time.Time) {
	a, ok := r.agents[id]
	if !ok {
		return
	}
	if a.state != state {
		a.stateStart = now
	}
	a.state = state
}

// Deregister removes an agent record
func (r *Registry) Deregister(id string) {
	delete(r.agents, id)
}

// Len returns the number of registered agents
func (r *Registry) Len() int {
	return len(r.agents)
}

// FreeAgents returns idle agents in registration order, skipping excluded ids
func (r *Registry) FreeAgents(exclude ...string) []types.AgentInfo {
	free := make([]types.AgentInfo, 0, len(r.agents))
	for _, a := range r.agents {
		if a.state.Busy() || contains(exclude, a.id) {
			continue
		}
		free = append(free, a.info())
	}
	sort.Slice(free, func(i, j int) bool { return free[i].Seq < free[j].Seq })
	return free
}

// All returns every agent in registration order
func (r *Registry) All() []types.AgentInfo {
	all := make([]types.AgentInfo, 0, len(r.agents))
	for _, a := range r.agents {
		all = append(all, a.info())
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Seq < all[j].Seq })
	return all
}

func (a *agentRecord) info() types.AgentInfo {
	return types.AgentInfo{
		AgentID:      a.id,
		Name:         a.name,
		State:        a.state,
		Seq:          a.seq,
		RegisteredAt: a.registeredAt,
		StateStart:   a.stateStart,
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
