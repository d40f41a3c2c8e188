package matching

import (
	"bytes"
	"encoding/json"

	"github.com/dennisdiepolder/callbridge/internal/types"
)

// Relay forwards a webrtc-offer, webrtc-answer or webrtc-candidate to its
// target with the sender stamped in. The pairing table is not consulted and
// a missing target is dropped by the transport.
func Relay(from, event string, payload types.SignalPayload) []types.Outbound {
	if payload.To == "" {
		return nil
	}

	fwd := types.SignalForward{From: from}
	if event == types.EventWebRTCCandidate {
		fwd.Candidate = opaque(payload.Candidate)
	} else {
		fwd.SDP = opaque(payload.SDP)
	}

	return []types.Outbound{{To: payload.To, Event: event, Data: fwd}}
}

// opaque passes a payload field through untouched, except that an explicit
// JSON null is forwarded as absent, the same as an omitted field.
func opaque(raw json.RawMessage) json.RawMessage {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	return raw
}
