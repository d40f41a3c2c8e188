package sim

import (
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

// dataChannelLabel is the channel suppliers open so the offer carries an
// SCTP section; no media tracks are negotiated
const dataChannelLabel = "call"

// peer wraps the PeerConnection of one simulated call. Remote candidates
// that arrive before the remote description are buffered.
type peer struct {
	pc     *webrtc.PeerConnection
	stats  *counters
	logger zerolog.Logger

	mu        sync.Mutex
	remoteSet bool
	pending   []webrtc.ICECandidateInit
	connected sync.Once
}

func newPeer(sc Scenario, stats *counters, logger zerolog.Logger, onCandidate func(webrtc.ICECandidateInit)) (*peer, error) {
	settingEngine := webrtc.SettingEngine{}
	if sc.IncludeLoopback {
		settingEngine.SetIncludeLoopbackCandidate(true)
	}
	api := webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine))

	pc, err := api.NewPeerConnection(sc.webrtcConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	p := &peer{pc: pc, stats: stats, logger: logger}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		onCandidate(c.ToJSON())
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		p.logger.Debug().Str("state", state.String()).Msg("peer connection state changed")

		switch state {
		case webrtc.PeerConnectionStateConnected:
			p.connected.Do(func() { stats.peersConnected.Add(1) })
		case webrtc.PeerConnectionStateFailed:
			stats.peersFailed.Add(1)
		}
	})

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		dc.OnMessage(func(webrtc.DataChannelMessage) {
			stats.dataMessages.Add(1)
		})
	})

	return p, nil
}

// offer opens the call data channel and returns the local offer
func (p *peer) offer() (webrtc.SessionDescription, error) {
	dc, err := p.pc.CreateDataChannel(dataChannelLabel, nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("failed to create data channel: %w", err)
	}
	dc.OnOpen(func() {
		if err := dc.SendText("hello"); err != nil {
			p.logger.Debug().Err(err).Msg("failed to greet over data channel")
		}
	})

	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("failed to create offer: %w", err)
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("failed to set local description: %w", err)
	}
	return offer, nil
}

// answer applies a remote offer and returns the local answer
func (p *peer) answer(offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	if err := p.setRemote(offer); err != nil {
		return webrtc.SessionDescription{}, err
	}

	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("failed to create answer: %w", err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("failed to set local description: %w", err)
	}
	return answer, nil
}

// acceptAnswer applies the partner's answer to our offer
func (p *peer) acceptAnswer(answer webrtc.SessionDescription) error {
	return p.setRemote(answer)
}

func (p *peer) setRemote(desc webrtc.SessionDescription) error {
	if err := p.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("failed to set remote description: %w", err)
	}

	p.mu.Lock()
	p.remoteSet = true
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()

	for _, c := range pending {
		if err := p.pc.AddICECandidate(c); err != nil {
			p.logger.Debug().Err(err).Msg("failed to add buffered candidate")
		}
	}
	return nil
}

func (p *peer) addCandidate(c webrtc.ICECandidateInit) error {
	p.mu.Lock()
	if !p.remoteSet {
		p.pending = append(p.pending, c)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	return p.pc.AddICECandidate(c)
}

func (p *peer) close() {
	if err := p.pc.Close(); err != nil {
		p.logger.Debug().Err(err).Msg("failed to close peer connection")
	}
}
