package sim

import "sync/atomic"

// Stats is a point-in-time copy of the simulation counters
type Stats struct {
	Connected      int64 `json:"connected"`
	DialFailures   int64 `json:"dialFailures"`
	Registrations  int64 `json:"registrations"`
	CallRequests   int64 `json:"callRequests"`
	Queued         int64 `json:"queued"`
	Offers         int64 `json:"offers"`
	Accepts        int64 `json:"accepts"`
	Rejects        int64 `json:"rejects"`
	CallsAccepted  int64 `json:"callsAccepted"`
	CallsEnded     int64 `json:"callsEnded"`
	AgentsLost     int64 `json:"agentsLost"`
	SignalsSent    int64 `json:"signalsSent"`
	PeersConnected int64 `json:"peersConnected"`
	PeersFailed    int64 `json:"peersFailed"`
	DataMessages   int64 `json:"dataMessages"`
}

type counters struct {
	connected      atomic.Int64
	dialFailures   atomic.Int64
	registrations  atomic.Int64
	callRequests   atomic.Int64
	queued         atomic.Int64
	offers         atomic.Int64
	accepts        atomic.Int64
	rejects        atomic.Int64
	callsAccepted  atomic.Int64
	callsEnded     atomic.Int64
	agentsLost     atomic.Int64
	signalsSent    atomic.Int64
	peersConnected atomic.Int64
	peersFailed    atomic.Int64
	dataMessages   atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Connected:      c.connected.Load(),
		DialFailures:   c.dialFailures.Load(),
		Registrations:  c.registrations.Load(),
		CallRequests:   c.callRequests.Load(),
		Queued:         c.queued.Load(),
		Offers:         c.offers.Load(),
		Accepts:        c.accepts.Load(),
		Rejects:        c.rejects.Load(),
		CallsAccepted:  c.callsAccepted.Load(),
		CallsEnded:     c.callsEnded.Load(),
		AgentsLost:     c.agentsLost.Load(),
		SignalsSent:    c.signalsSent.Load(),
		PeersConnected: c.peersConnected.Load(),
		PeersFailed:    c.peersFailed.Load(),
		DataMessages:   c.dataMessages.Load(),
	}
}
