package core

import (
	"time"

	"github.com/gymstack/checkin-server/internal/store"
)

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventInitialStats delivers the occupancy snapshot right after joining.
	EventInitialStats EventKind = iota
	// EventHeartbeatAck answers a heartbeat, sender only.
	EventHeartbeatAck
	// EventCheckInSuccess confirms a check-in to the sender.
	EventCheckInSuccess
	// EventCheckInError reports a failed check-in to the sender.
	EventCheckInError
	// EventCheckOutSuccess confirms a check-out to the sender.
	EventCheckOutSuccess
	// EventCheckOutError reports a failed check-out to the sender.
	EventCheckOutError
	// EventMemberCheckedIn notifies the whole group about a new check-in.
	EventMemberCheckedIn
	// EventMemberCheckedOut notifies the whole group about a check-out.
	EventMemberCheckedOut
	// EventStatsUpdate fans out a refreshed snapshot after a mutation.
	EventStatsUpdate
	// EventProtocolError reports a protocol-level problem (e.g. bad JSON).
	EventProtocolError
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind   EventKind
	Record *store.CheckIn
	Member *store.Member
	Stats  *Stats
	ErrMsg string
	At     time.Time
}
