package sim

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/dennisdiepolder/callbridge/internal/types"
	"github.com/pion/webrtc/v4"
)

// simSupplier requests a call, opens the WebRTC session once accepted, hangs
// up after TalkTime and calls again after CallGap
type simSupplier struct {
	*participant
	scenario Scenario

	mu      sync.Mutex
	peer    *peer
	agentID string
	queued  bool
	gen     int // bumps on every call change; stale timers compare against it
	talk    *time.Timer
	next    *time.Timer
}

func newSimSupplier(p *participant, sc Scenario) *simSupplier {
	return &simSupplier{participant: p, scenario: sc}
}

func (s *simSupplier) onConnect() {
	s.requestCall()
}

func (s *simSupplier) onDisconnect() {
	s.mu.Lock()
	s.gen++
	s.agentID = ""
	stopTimer(s.talk)
	stopTimer(s.next)
	s.mu.Unlock()

	s.closePeer()
}

func (s *simSupplier) handle(env types.Envelope) {
	switch env.Event {
	case types.EventQueueStatus:
		s.mu.Lock()
		first := !s.queued
		s.queued = true
		s.mu.Unlock()
		if first {
			s.stats.queued.Add(1)
		}

	case types.EventCallAccepted:
		var accepted types.CallAccepted
		if err := json.Unmarshal(env.Data, &accepted); err != nil {
			return
		}
		s.startCall(accepted.AgentID)

	case types.EventWebRTCAnswer:
		var fwd types.SignalForward
		if err := json.Unmarshal(env.Data, &fwd); err != nil {
			return
		}
		var answer webrtc.SessionDescription
		if err := json.Unmarshal(fwd.SDP, &answer); err != nil {
			return
		}
		if p := s.currentPeer(); p != nil {
			if err := p.acceptAnswer(answer); err != nil {
				s.logger.Debug().Err(err).Msg("failed to apply answer")
			}
		}

	case types.EventWebRTCCandidate:
		var fwd types.SignalForward
		if err := json.Unmarshal(env.Data, &fwd); err != nil {
			return
		}
		var c webrtc.ICECandidateInit
		if err := json.Unmarshal(fwd.Candidate, &c); err != nil {
			return
		}
		if p := s.currentPeer(); p != nil {
			if err := p.addCandidate(c); err != nil {
				s.logger.Debug().Err(err).Msg("failed to add candidate")
			}
		}

	case types.EventAgentDisconnected:
		// the server re-offers or requeues us; wait for the next call-accepted
		s.stats.agentsLost.Add(1)
		s.dropCall()

	case types.EventCallEnded:
		s.stats.callsEnded.Add(1)
		s.dropCall()
		s.scheduleNext()
	}
}

func (s *simSupplier) requestCall() {
	s.mu.Lock()
	s.queued = false
	s.mu.Unlock()

	if err := s.send(types.EventSupplierCall, nil); err != nil {
		s.logger.Debug().Err(err).Msg("failed to request call")
		return
	}
	s.stats.callRequests.Add(1)
}

func (s *simSupplier) startCall(agentID string) {
	s.closePeer()

	p, err := newPeer(s.scenario, s.stats, s.logger, func(c webrtc.ICECandidateInit) {
		s.sendCandidate(agentID, c)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to create peer")
		return
	}

	offer, err := p.offer()
	if err != nil {
		s.logger.Error().Err(err).Str("agent_id", agentID).Msg("failed to create offer")
		p.close()
		return
	}

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.peer = p
	s.agentID = agentID
	stopTimer(s.talk)
	s.talk = time.AfterFunc(s.scenario.TalkTime.D(), func() { s.hangup(gen) })
	s.mu.Unlock()

	s.stats.callsAccepted.Add(1)

	if err := s.sendDescription(types.EventWebRTCOffer, agentID, offer); err != nil {
		s.logger.Debug().Err(err).Msg("failed to send offer")
	}
}

// hangup ends the call started in generation gen, if it is still current
func (s *simSupplier) hangup(gen int) {
	s.mu.Lock()
	if gen != s.gen || s.agentID == "" {
		s.mu.Unlock()
		return
	}
	agentID := s.agentID
	s.mu.Unlock()

	if err := s.send(types.EventEndCall, types.EndCallPayload{PartnerID: agentID}); err != nil {
		s.logger.Debug().Err(err).Msg("failed to end call")
	}
	s.stats.callsEnded.Add(1)

	s.dropCall()
	s.scheduleNext()
}

// dropCall forgets the current call without notifying anyone
func (s *simSupplier) dropCall() {
	s.mu.Lock()
	s.gen++
	s.agentID = ""
	stopTimer(s.talk)
	s.mu.Unlock()

	s.closePeer()
}

func (s *simSupplier) scheduleNext() {
	s.mu.Lock()
	defer s.mu.Unlock()

	stopTimer(s.next)
	s.next = time.AfterFunc(s.scenario.CallGap.D(), s.requestCall)
}

func (s *simSupplier) currentPeer() *peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peer
}

func (s *simSupplier) closePeer() {
	s.mu.Lock()
	p := s.peer
	s.peer = nil
	s.mu.Unlock()

	if p != nil {
		p.close()
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}
