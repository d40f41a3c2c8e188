package sim

import (
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/dennisdiepolder/callbridge/internal/types"
	"github.com/pion/webrtc/v4"
)

// simAgent registers, answers offers after AcceptDelay and answers the
// supplier's WebRTC offer
type simAgent struct {
	*participant
	scenario Scenario

	mu       sync.Mutex
	rng      *rand.Rand
	peer     *peer
	supplier string
}

func newSimAgent(p *participant, sc Scenario, seed int64) *simAgent {
	return &simAgent{
		participant: p,
		scenario:    sc,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

func (a *simAgent) onConnect() {
	if err := a.send(types.EventAgentRegister, types.AgentRegisterPayload{Name: a.name}); err != nil {
		a.logger.Warn().Err(err).Msg("failed to register")
	}
}

func (a *simAgent) onDisconnect() {
	a.hangup()
}

func (a *simAgent) handle(env types.Envelope) {
	switch env.Event {
	case types.EventAgentRegistered:
		a.stats.registrations.Add(1)

	case types.EventIncomingCall:
		var in types.IncomingCall
		if err := json.Unmarshal(env.Data, &in); err != nil {
			return
		}
		a.stats.offers.Add(1)
		time.AfterFunc(a.scenario.AcceptDelay.D(), func() { a.decide(in.SupplierID) })

	case types.EventCallStarted:
		var started types.CallStarted
		if err := json.Unmarshal(env.Data, &started); err != nil {
			return
		}
		a.mu.Lock()
		a.supplier = started.SupplierID
		a.mu.Unlock()

	case types.EventWebRTCOffer:
		var fwd types.SignalForward
		if err := json.Unmarshal(env.Data, &fwd); err != nil {
			return
		}
		a.answerOffer(fwd)

	case types.EventWebRTCCandidate:
		var fwd types.SignalForward
		if err := json.Unmarshal(env.Data, &fwd); err != nil {
			return
		}
		a.addCandidate(fwd)

	case types.EventCallEnded, types.EventSupplierDisconnected:
		a.hangup()
	}
}

// decide accepts or rejects an offered supplier according to RejectRate
func (a *simAgent) decide(supplierID string) {
	a.mu.Lock()
	reject := a.rng.Float64() < a.scenario.RejectRate
	a.mu.Unlock()

	event := types.EventAgentAccept
	if reject {
		event = types.EventAgentReject
	}
	if err := a.send(event, types.SupplierPayload{SupplierID: supplierID}); err != nil {
		a.logger.Debug().Err(err).Str("event", event).Msg("failed to answer offer")
		return
	}

	if reject {
		a.stats.rejects.Add(1)
	} else {
		a.stats.accepts.Add(1)
	}
}

func (a *simAgent) answerOffer(fwd types.SignalForward) {
	var offer webrtc.SessionDescription
	if err := json.Unmarshal(fwd.SDP, &offer); err != nil {
		a.logger.Debug().Err(err).Msg("ignoring malformed offer")
		return
	}

	a.closePeer()

	p, err := newPeer(a.scenario, a.stats, a.logger, func(c webrtc.ICECandidateInit) {
		a.sendCandidate(fwd.From, c)
	})
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to create peer")
		return
	}

	answer, err := p.answer(offer)
	if err != nil {
		a.logger.Error().Err(err).Str("supplier_id", fwd.From).Msg("failed to answer offer")
		p.close()
		return
	}

	a.mu.Lock()
	a.peer = p
	a.mu.Unlock()

	if err := a.sendDescription(types.EventWebRTCAnswer, fwd.From, answer); err != nil {
		a.logger.Debug().Err(err).Msg("failed to send answer")
	}
}

func (a *simAgent) addCandidate(fwd types.SignalForward) {
	var c webrtc.ICECandidateInit
	if err := json.Unmarshal(fwd.Candidate, &c); err != nil {
		return
	}

	a.mu.Lock()
	p := a.peer
	a.mu.Unlock()

	if p == nil {
		return
	}
	if err := p.addCandidate(c); err != nil {
		a.logger.Debug().Err(err).Msg("failed to add candidate")
	}
}

func (a *simAgent) hangup() {
	a.mu.Lock()
	a.supplier = ""
	a.mu.Unlock()
	a.closePeer()
}

func (a *simAgent) closePeer() {
	a.mu.Lock()
	p := a.peer
	a.peer = nil
	a.mu.Unlock()

	if p != nil {
		p.close()
	}
}
