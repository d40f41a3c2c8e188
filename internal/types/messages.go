package types

import "encoding/json"

// Inbound event names (client -> server)
const (
	EventAgentRegister   = "agent-register"
	EventSupplierCall    = "supplier-call"
	EventAgentAccept     = "agent-accept"
	EventAgentReject     = "agent-reject"
	EventWebRTCOffer     = "webrtc-offer"
	EventWebRTCAnswer    = "webrtc-answer"
	EventWebRTCCandidate = "webrtc-candidate"
	EventEndCall         = "end-call"
)

// Outbound event names (server -> client). The three webrtc-* names are shared
// with the inbound side.
const (
	EventAgentRegistered      = "agent-registered"
	EventQueueStatus          = "queue-status"
	EventIncomingCall         = "incoming-call"
	EventCallRequested        = "call-requested"
	EventCallAccepted         = "call-accepted"
	EventCallStarted          = "call-started"
	EventAgentDisconnected    = "agent-disconnected"
	EventSupplierDisconnected = "supplier-disconnected"
	EventCallEnded            = "call-ended"
)

// Envelope is the frame used for every WebSocket message in both directions
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Outbound is a notification addressed to a single connection
type Outbound struct {
	To    string
	Event string
	Data  interface{}
}

// AgentRegisterPayload is the body of agent-register
type AgentRegisterPayload struct {
	Name string `json:"name,omitempty"`
}

// SupplierPayload is the body of agent-accept and agent-reject
type SupplierPayload struct {
	SupplierID string `json:"supplierId"`
}

// EndCallPayload is the body of end-call
type EndCallPayload struct {
	PartnerID string `json:"partnerId"`
}

// SignalPayload is the body of the three inbound webrtc-* events.
// SDP and Candidate are opaque and forwarded verbatim; null is treated as absent.
type SignalPayload struct {
	To        string          `json:"to"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// AgentRegistered acknowledges agent-register
type AgentRegistered struct {
	Name        string `json:"name"`
	QueueLength int    `json:"queueLength"`
}

// QueueStatus reports a supplier's 1-based position in the waiting queue
type QueueStatus struct {
	Position int `json:"position"`
}

// IncomingCall is sent to an agent when a supplier is offered to it
type IncomingCall struct {
	SupplierID string `json:"supplierId"`
}

// CallRequested tells a supplier which agent it was offered to
type CallRequested struct {
	AgentID string `json:"agentId"`
}

// CallAccepted tells a supplier the agent accepted
type CallAccepted struct {
	AgentID string `json:"agentId"`
}

// CallStarted tells an agent the call is live
type CallStarted struct {
	SupplierID string `json:"supplierId"`
}

// AgentDisconnected tells a supplier its agent vanished
type AgentDisconnected struct{}

// SupplierDisconnected tells an agent its supplier vanished
type SupplierDisconnected struct {
	SupplierID string `json:"supplierId"`
}

// CallEnded tells the remaining party who hung up
type CallEnded struct {
	By string `json:"by"`
}

// SignalForward is the relayed form of an offer, answer or candidate
type SignalForward struct {
	From      string          `json:"from"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}
