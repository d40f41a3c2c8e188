package matching

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dennisdiepolder/callbridge/internal/types"
)

var (
	ErrUnknownEvent     = errors.New("unknown event")
	ErrMalformedPayload = errors.New("malformed payload")
)

// Handle decodes one inbound envelope from connID and applies it.
// The returned notifications must be delivered in order.
func (e *Engine) Handle(connID string, env types.Envelope) ([]types.Outbound, error) {
	switch env.Event {
	case types.EventAgentRegister:
		var p types.AgentRegisterPayload
		if err := decodePayload(env.Data, &p); err != nil {
			return nil, err
		}
		return e.RegisterAgent(connID, p.Name), nil

	case types.EventSupplierCall:
		return e.RequestCall(connID), nil

	case types.EventAgentAccept, types.EventAgentReject:
		var p types.SupplierPayload
		if err := decodePayload(env.Data, &p); err != nil {
			return nil, err
		}
		if env.Event == types.EventAgentAccept {
			return e.Accept(connID, p.SupplierID), nil
		}
		return e.Reject(connID, p.SupplierID), nil

	case types.EventEndCall:
		var p types.EndCallPayload
		if err := decodePayload(env.Data, &p); err != nil {
			return nil, err
		}
		return e.EndCall(connID, p.PartnerID), nil

	case types.EventWebRTCOffer, types.EventWebRTCAnswer, types.EventWebRTCCandidate:
		var p types.SignalPayload
		if err := decodePayload(env.Data, &p); err != nil {
			return nil, err
		}
		return Relay(connID, env.Event, p), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
}

// decodePayload unmarshals data into v; a missing payload leaves v zeroed
func decodePayload(data json.RawMessage, v interface{}) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}
