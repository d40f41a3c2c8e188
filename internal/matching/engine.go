package matching

import (
	"fmt"
	"sync"
	"time"

	"github.com/dennisdiepolder/callbridge/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultAgentName is used when agent-register carries no name
const DefaultAgentName = "Agent"

// CallStore is the subset of storage.Store needed by the Engine
type CallStore interface {
	SaveCallRecord(record types.CallRecord) error
}

// PromotionMode controls how many queued suppliers move to free agents at once
type PromotionMode string

const (
	PromoteSingle PromotionMode = "single" // at most one supplier per event
	PromoteDrain  PromotionMode = "drain"  // until agents or queue run out
)

// Options configures an Engine
type Options struct {
	Selection   SelectionPolicy
	Promotion   PromotionMode
	SLTarget    int // percent
	SLThreshold int // seconds
}

// Engine owns the agent registry, waiting queue and pairing table and applies
// every lifecycle event to them. Each exported event method runs under one lock,
// so a compound transition (reject -> search -> pair) is never interleaved.
type Engine struct {
	registry  *Registry
	queue     *WaitingQueue
	pairings  *PairingTable
	calls     map[string]*types.Call // supplierID -> open request
	routing   RoutingStrategy
	promotion PromotionMode
	sl        *ServiceLevel
	totals    types.EngineTotals
	store     CallStore
	now       func() time.Time
	mu        sync.Mutex
	logger    zerolog.Logger
}

// NewEngine creates an engine with empty state
func NewEngine(opts Options, logger zerolog.Logger) (*Engine, error) {
	routing, err := NewRoutingStrategy(opts.Selection)
	if err != nil {
		return nil, err
	}

	promotion := opts.Promotion
	switch promotion {
	case "":
		promotion = PromoteSingle
	case PromoteSingle, PromoteDrain:
	default:
		return nil, fmt.Errorf("unknown promotion mode %q", promotion)
	}

	if opts.SLTarget == 0 {
		opts.SLTarget = 80
	}
	if opts.SLThreshold == 0 {
		opts.SLThreshold = 20
	}

	return &Engine{
		registry:  NewRegistry(),
		queue:     NewWaitingQueue(),
		pairings:  NewPairingTable(),
		calls:     make(map[string]*types.Call),
		routing:   routing,
		promotion: promotion,
		sl:        NewServiceLevel(opts.SLTarget, time.Duration(opts.SLThreshold)*time.Second),
		now:       time.Now,
		logger:    logger.With().Str("component", "matching").Logger(),
	}, nil
}

// SetStore sets the persistence store for call records
func (e *Engine) SetStore(store CallStore) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.store = store
}

// outbox collects notifications in emission order
type outbox []types.Outbound

func (o *outbox) send(to, event string, data interface{}) {
	*o = append(*o, types.Outbound{To: to, Event: event, Data: data})
}

// RegisterAgent handles agent-register
func (e *Engine) RegisterAgent(id, name string) []types.Outbound {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out outbox
	now := e.now()

	if name == "" {
		name = DefaultAgentName
	}

	// Pairs are always agent <-> supplier
	if e.pairings.IsPaired(id) && !e.registry.IsAgent(id) {
		e.logger.Debug().Str("supplier_id", id).Msg("agent-register from paired supplier, ignoring")
		return nil
	}

	// A waiting supplier that turns into an agent gives up its place
	if e.queue.Remove(id) {
		e.closeCall(id, types.EndReasonCancelled, now)
	}

	e.registry.Register(id, name, types.AgentIdle, now)

	out.send(id, types.EventAgentRegistered, types.AgentRegistered{
		Name:        name,
		QueueLength: e.queue.Len(),
	})

	e.logger.Info().
		Str("agent_id", id).
		Str("name", name).
		Int("queue_depth", e.queue.Len()).
		Msg("agent registered")

	e.promote(&out, now)
	return out
}

// RequestCall handles supplier-call
func (e *Engine) RequestCall(supplierID string) []types.Outbound {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out outbox
	now := e.now()

	if pos, ok := e.queue.PositionOf(supplierID); ok {
		out.send(supplierID, types.EventQueueStatus, types.QueueStatus{Position: pos})
		return out
	}

	if e.pairings.IsPaired(supplierID) || e.registry.IsAgent(supplierID) {
		e.logger.Debug().Str("supplier_id", supplierID).Msg("supplier-call out of context, ignoring")
		return nil
	}

	e.openCall(supplierID, now)

	if agentID, ok := e.findFreeAgent(); ok {
		e.offer(&out, supplierID, agentID, now)
		return out
	}

	e.enqueue(&out, supplierID, now)
	return out
}

// Accept handles agent-accept
func (e *Engine) Accept(agentID, supplierID string) []types.Outbound {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.registry.IsAgent(agentID) || !e.pairedWith(agentID, supplierID) {
		e.logger.Debug().
			Str("agent_id", agentID).
			Str("supplier_id", supplierID).
			Msg("agent-accept out of context, ignoring")
		return nil
	}

	var out outbox
	now := e.now()

	e.pairings.Pair(supplierID, agentID)
	if state, _ := e.registry.State(agentID); state != types.AgentInCall {
		e.totals.Accepts++
	}
	e.registry.SetState(agentID, types.AgentInCall, now)

	if call, ok := e.calls[supplierID]; ok && call.Status != types.SupplierInCall {
		call.Status = types.SupplierInCall
		call.AcceptTime = &now
		e.sl.Answer(call, now)
	}

	out.send(supplierID, types.EventCallAccepted, types.CallAccepted{AgentID: agentID})
	out.send(agentID, types.EventCallStarted, types.CallStarted{SupplierID: supplierID})

	e.logger.Debug().
		Str("agent_id", agentID).
		Str("supplier_id", supplierID).
		Msg("call accepted")

	return out
}

// Reject handles agent-reject. The supplier goes to another free agent or to
// the tail of the queue; the rejecting agent is never re-offered the same supplier.
func (e *Engine) Reject(agentID, supplierID string) []types.Outbound {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.registry.IsAgent(agentID) || !e.pairedWith(agentID, supplierID) {
		e.logger.Debug().
			Str("agent_id", agentID).
			Str("supplier_id", supplierID).
			Msg("agent-reject out of context, ignoring")
		return nil
	}

	var out outbox
	now := e.now()

	e.pairings.Unpair(agentID)
	e.registry.SetState(agentID, types.AgentIdle, now)
	e.totals.Rejects++

	if call, ok := e.calls[supplierID]; ok {
		call.Rejections++
	}

	e.logger.Debug().
		Str("agent_id", agentID).
		Str("supplier_id", supplierID).
		Msg("call rejected")

	e.reassign(&out, supplierID, now, agentID)
	return out
}

// EndCall handles end-call. A queued caller leaves the queue; a caller paired
// with partnerID tears the pair down and the partner is told who hung up.
func (e *Engine) EndCall(callerID, partnerID string) []types.Outbound {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out outbox
	now := e.now()

	if e.queue.Remove(callerID) {
		e.closeCall(callerID, types.EndReasonCancelled, now)
		e.logger.Debug().Str("supplier_id", callerID).Msg("queued supplier cancelled")
	}

	if e.pairedWith(callerID, partnerID) {
		e.pairings.Unpair(callerID)
		e.registry.SetState(callerID, types.AgentIdle, now)
		e.registry.SetState(partnerID, types.AgentIdle, now)
		e.totals.CallsEnded++

		out.send(partnerID, types.EventCallEnded, types.CallEnded{By: callerID})

		if _, ok := e.calls[callerID]; ok {
			e.closeCall(callerID, types.EndReasonHangup, now)
		} else {
			e.closeCall(partnerID, types.EndReasonHangup, now)
		}

		e.logger.Debug().
			Str("caller_id", callerID).
			Str("partner_id", partnerID).
			Msg("call ended")
	}

	e.promote(&out, now)
	return out
}

// Disconnect cleans up after a connection is gone
func (e *Engine) Disconnect(id string) []types.Outbound {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out outbox
	now := e.now()

	if e.registry.IsAgent(id) {
		e.queue.Remove(id)
		if supplierID, ok := e.pairings.Unpair(id); ok {
			out.send(supplierID, types.EventAgentDisconnected, types.AgentDisconnected{})
			if call, ok := e.calls[supplierID]; ok {
				call.Reassignments++
			}
			e.totals.Reassignments++
			e.reassign(&out, supplierID, now, id)
		}
		e.registry.Deregister(id)

		e.logger.Info().
			Str("agent_id", id).
			Int("agents", e.registry.Len()).
			Msg("agent disconnected")
		return out
	}

	e.queue.Remove(id)
	if partnerID, ok := e.pairings.Unpair(id); ok {
		out.send(partnerID, types.EventSupplierDisconnected, types.SupplierDisconnected{SupplierID: id})
		if e.registry.IsAgent(partnerID) {
			e.registry.SetState(partnerID, types.AgentIdle, now)
			e.promote(&out, now)
		}
	}
	e.closeCall(id, types.EndReasonSupplierDisconnected, now)

	return out
}

// Snapshot returns a copy of the current state
func (e *Engine) Snapshot() types.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	agents := e.registry.All()
	for i := range agents {
		agents[i].PartnerID, _ = e.pairings.PartnerOf(agents[i].AgentID)
	}

	calls := make([]types.Call, 0, len(e.calls))
	for _, c := range e.calls {
		calls = append(calls, *c)
	}

	return types.Snapshot{
		Timestamp:       now,
		Agents:          agents,
		Queue:           e.queue.Entries(now),
		Pairings:        e.pairings.Copy(),
		Calls:           calls,
		LongestWaitSecs: e.queue.LongestWaitSecs(now),
		ServiceLevel:    e.sl.Snapshot(),
		Totals:          e.totals,
	}
}

// QueueLength returns the number of waiting suppliers
func (e *Engine) QueueLength() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue.Len()
}

// pairedWith reports whether a and b are currently partners
func (e *Engine) pairedWith(a, b string) bool {
	partner, ok := e.pairings.PartnerOf(a)
	return ok && b != "" && partner == b
}

// findFreeAgent picks an idle agent using the routing strategy
func (e *Engine) findFreeAgent(exclude ...string) (string, bool) {
	agent := e.routing.SelectAgent(e.registry.FreeAgents(exclude...))
	if agent == nil {
		return "", false
	}
	return agent.AgentID, true
}

// offer pairs a supplier with a free agent and notifies both sides
func (e *Engine) offer(out *outbox, supplierID, agentID string, now time.Time) {
	e.registry.SetState(agentID, types.AgentOffered, now)
	e.pairings.Pair(supplierID, agentID)
	e.totals.Offers++

	call := e.openCall(supplierID, now)
	call.AgentID = agentID
	call.AgentName = e.registry.Name(agentID)
	call.Status = types.SupplierOffered
	call.OfferTime = &now
	call.Offers++

	out.send(agentID, types.EventIncomingCall, types.IncomingCall{SupplierID: supplierID})
	out.send(supplierID, types.EventCallRequested, types.CallRequested{AgentID: agentID})

	e.logger.Debug().
		Str("supplier_id", supplierID).
		Str("agent_id", agentID).
		Msg("supplier offered to agent")
}

// enqueue puts a supplier at the tail of the queue and reports its position
func (e *Engine) enqueue(out *outbox, supplierID string, now time.Time) {
	e.queue.Enqueue(supplierID, now)
	pos, _ := e.queue.PositionOf(supplierID)

	if call, ok := e.calls[supplierID]; ok {
		call.Status = types.SupplierQueued
	}

	out.send(supplierID, types.EventQueueStatus, types.QueueStatus{Position: pos})

	e.logger.Debug().
		Str("supplier_id", supplierID).
		Int("position", pos).
		Int("queue_depth", e.queue.Len()).
		Msg("supplier queued")
}

// reassign offers an orphaned supplier to another free agent, or queues it
func (e *Engine) reassign(out *outbox, supplierID string, now time.Time, exclude ...string) {
	if agentID, ok := e.findFreeAgent(exclude...); ok {
		e.offer(out, supplierID, agentID, now)
		return
	}
	e.totals.Requeues++
	e.enqueue(out, supplierID, now)
}

// promote moves queued suppliers to free agents, one or all depending on mode
func (e *Engine) promote(out *outbox, now time.Time) {
	for e.queue.Len() > 0 {
		agentID, ok := e.findFreeAgent()
		if !ok {
			return
		}
		supplierID, _ := e.queue.DequeueFront()
		e.totals.Promotions++
		e.offer(out, supplierID, agentID, now)

		if e.promotion != PromoteDrain {
			return
		}
	}
}

// openCall returns the supplier's open call, creating it if needed
func (e *Engine) openCall(supplierID string, now time.Time) *types.Call {
	if call, ok := e.calls[supplierID]; ok {
		return call
	}
	call := &types.Call{
		CallID:      uuid.New().String(),
		SupplierID:  supplierID,
		Status:      types.SupplierIdle,
		RequestTime: now,
	}
	e.calls[supplierID] = call
	return call
}

// closeCall finishes a supplier's open call and persists it
func (e *Engine) closeCall(supplierID string, reason types.EndReason, now time.Time) {
	call, ok := e.calls[supplierID]
	if !ok {
		return
	}
	delete(e.calls, supplierID)

	if call.Status == types.SupplierInCall && call.AcceptTime != nil {
		call.TalkTime = now.Sub(*call.AcceptTime).Seconds()
	}
	call.Status = types.SupplierIdle
	call.EndTime = &now
	call.EndReason = reason
	e.sl.Abandon(call)

	if e.store == nil {
		return
	}

	record := callToRecord(call)
	store := e.store
	go func() {
		if err := store.SaveCallRecord(record); err != nil {
			e.logger.Error().Err(err).Str("call_id", record.CallID).Msg("failed to save call record")
		}
	}()
}

// callToRecord converts a finished Call to a CallRecord for persistence
func callToRecord(call *types.Call) types.CallRecord {
	record := types.CallRecord{
		CallID:        call.CallID,
		SupplierID:    call.SupplierID,
		AgentID:       call.AgentID,
		AgentName:     call.AgentName,
		WaitTime:      call.WaitTime,
		TalkTime:      call.TalkTime,
		Offers:        call.Offers,
		Rejections:    call.Rejections,
		Reassignments: call.Reassignments,
		EndReason:     string(call.EndReason),
		Answered:      call.Answered,
		AnsweredInSL:  call.AnsweredInSL,
	}

	record.DateKey = call.RequestTime.Format("2006-01-02")
	record.RequestTime = call.RequestTime.Format(time.RFC3339)
	if call.OfferTime != nil {
		record.OfferTime = call.OfferTime.Format(time.RFC3339)
	}
	if call.AcceptTime != nil {
		record.AcceptTime = call.AcceptTime.Format(time.RFC3339)
	}
	if call.EndTime != nil {
		record.EndTime = call.EndTime.Format(time.RFC3339)
	}

	return record
}
