package types

import "time"

// EndReason records why a supplier's request lifecycle finished
type EndReason string

const (
	EndReasonHangup               EndReason = "hangup"                // end-call while paired
	EndReasonCancelled            EndReason = "cancelled"             // end-call while queued
	EndReasonSupplierDisconnected EndReason = "supplier_disconnected" // supplier connection lost
)

// Call tracks one supplier request from supplier-call until it ends.
// It is bookkeeping only; the pairing table decides who is connected.
type Call struct {
	CallID        string        `json:"callId"`
	SupplierID    string        `json:"supplierId"`
	AgentID       string        `json:"agentId,omitempty"`
	AgentName     string        `json:"agentName,omitempty"`
	Status        SupplierState `json:"status"`
	RequestTime   time.Time     `json:"requestTime"`
	OfferTime     *time.Time    `json:"offerTime,omitempty"`  // most recent offer
	AcceptTime    *time.Time    `json:"acceptTime,omitempty"` // most recent accept
	EndTime       *time.Time    `json:"endTime,omitempty"`
	Offers        int           `json:"offers"`
	Rejections    int           `json:"rejections"`
	Reassignments int           `json:"reassignments"` // agent disconnected mid-call
	Answered      bool          `json:"answered"`
	AnsweredInSL  bool          `json:"answeredInSL"`
	WaitTime      float64       `json:"waitTime,omitempty"` // seconds from request to first accept
	TalkTime      float64       `json:"talkTime,omitempty"` // seconds from last accept to end
	EndReason     EndReason     `json:"endReason,omitempty"`
}

// CallRecord represents a finished call for DynamoDB persistence
type CallRecord struct {
	DateKey       string  `json:"dateKey" dynamodbav:"DateKey"` // YYYY-MM-DD (partition key)
	CallID        string  `json:"callId" dynamodbav:"CallID"`   // sort key
	SupplierID    string  `json:"supplierId" dynamodbav:"SupplierID"`
	AgentID       string  `json:"agentId" dynamodbav:"AgentID"`
	AgentName     string  `json:"agentName" dynamodbav:"AgentName"`
	RequestTime   string  `json:"requestTime" dynamodbav:"RequestTime"` // RFC3339
	OfferTime     string  `json:"offerTime" dynamodbav:"OfferTime"`     // RFC3339
	AcceptTime    string  `json:"acceptTime" dynamodbav:"AcceptTime"`   // RFC3339
	EndTime       string  `json:"endTime" dynamodbav:"EndTime"`         // RFC3339
	WaitTime      float64 `json:"waitTime" dynamodbav:"WaitTime"`       // seconds
	TalkTime      float64 `json:"talkTime" dynamodbav:"TalkTime"`       // seconds
	Offers        int     `json:"offers" dynamodbav:"Offers"`
	Rejections    int     `json:"rejections" dynamodbav:"Rejections"`
	Reassignments int     `json:"reassignments" dynamodbav:"Reassignments"`
	EndReason     string  `json:"endReason" dynamodbav:"EndReason"`
	Answered      bool    `json:"answered" dynamodbav:"Answered"`
	AnsweredInSL  bool    `json:"answeredInSL" dynamodbav:"AnsweredInSL"`
}
