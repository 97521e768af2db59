package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	InboundTypeHeartbeat = "heartbeat"
	InboundTypeCheckIn   = "check_in"
	InboundTypeCheckOut  = "check_out"
	InboundTypeBatch     = "batch"

	OutboundTypeInitialStats     = "initial_stats"
	OutboundTypeHeartbeatAck     = "heartbeat_ack"
	OutboundTypeCheckInSuccess   = "check_in_success"
	OutboundTypeCheckInError     = "check_in_error"
	OutboundTypeCheckOutSuccess  = "check_out_success"
	OutboundTypeCheckOutError    = "check_out_error"
	OutboundTypeMemberCheckedIn  = "member_checked_in"
	OutboundTypeMemberCheckedOut = "member_checked_out"
	OutboundTypeStatsUpdate      = "stats_update"
	OutboundTypeError            = "error"
)

// Record status values carried on check-in payloads.
const (
	StatusCheckedIn  = "checked_in"
	StatusCheckedOut = "checked_out"
)

// CheckInData is the payload of an inbound check_in message.
type CheckInData struct {
	MemberID string `json:"member_id"`
	Location string `json:"location,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// CheckOutData is the payload of an inbound check_out message.
type CheckOutData struct {
	CheckInID string `json:"check_in_id"`
	Notes     string `json:"notes,omitempty"`
}

// BatchData maps an inbound message type to an ordered list of payloads to be
// dispatched one by one.
type BatchData map[string][]json.RawMessage

// Outbound is the envelope for messages sent to the client. Message is set
// only for protocol-level errors (type "error").
type Outbound struct {
	Type      string `json:"type"`
	Payload   any    `json:"payload,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// MemberPayload is the member summary embedded in check-in payloads.
type MemberPayload struct {
	ID               string `json:"id"`
	FullName         string `json:"full_name"`
	MembershipNumber string `json:"membership_number"`
}

// CheckInPayload describes one check-in record on the wire.
type CheckInPayload struct {
	ID           string        `json:"id"`
	Member       MemberPayload `json:"member"`
	CheckInTime  string        `json:"check_in_time"`
	CheckOutTime *string       `json:"check_out_time"`
	Location     string        `json:"location"`
	Notes        string        `json:"notes"`
	Status       string        `json:"status"`
}

// StatsPayload is the occupancy snapshot sent as initial_stats and stats_update.
type StatsPayload struct {
	CurrentlyIn        int `json:"currentlyIn"`
	TodayTotal         int `json:"todayTotal"`
	AverageStayMinutes int `json:"averageStayMinutes"`
}

// ErrorPayload carries a business error on *_error messages.
type ErrorPayload struct {
	Error string `json:"error"`
}
