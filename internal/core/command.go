package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandHeartbeat requests a liveness acknowledgement.
	CommandHeartbeat CommandKind = iota
	// CommandCheckIn opens a check-in record for a member.
	CommandCheckIn
	// CommandCheckOut closes an open check-in record.
	CommandCheckOut
)

// Command represents an action requested by a client.
type Command struct {
	Kind      CommandKind
	MemberID  string
	CheckInID string
	Location  string
	Notes     string
}
