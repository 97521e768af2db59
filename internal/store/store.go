package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyCheckedIn is returned when a member already has an open check-in.
	ErrAlreadyCheckedIn = errors.New("member already checked in")
	// ErrAlreadyCheckedOut is returned when closing a check-in that is not open.
	ErrAlreadyCheckedOut = errors.New("check-in not found or already checked out")
)

// User represents a staff account that can authenticate against the API
// and open the realtime check-in channel.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// MemberStatus defines a member's standing.
type MemberStatus string

const (
	MemberStatusActive   MemberStatus = "active"
	MemberStatusInactive MemberStatus = "inactive"
)

// Member represents a gym member.
type Member struct {
	ID               string // UUID
	MembershipNumber string
	FullName         string
	Phone            string
	Address          string
	Status           MemberStatus
	Notes            string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CheckIn represents one member presence interval. CheckOutTime is nil while
// the record is open.
type CheckIn struct {
	ID           string // UUID
	MemberID     string
	CheckInTime  time.Time
	CheckOutTime *time.Time
	Location     string
	Notes        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Open reports whether the record has no check-out time yet.
func (c *CheckIn) Open() bool {
	return c.CheckOutTime == nil
}

// CheckInFilter narrows ListCheckIns results. Zero values mean no filtering.
type CheckInFilter struct {
	MemberID string
	// Day restricts results to check-ins whose check-in time falls on the
	// given calendar date (server-local).
	Day *time.Time
}

// UserStore handles staff account persistence.
type UserStore interface {
	// CreateUser creates a new staff user with hashed password.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

// MemberStore handles member persistence.
type MemberStore interface {
	// CreateMember creates a member with a fresh UUID.
	CreateMember(ctx context.Context, m *Member) (*Member, error)

	// GetMemberByID retrieves a member by UUID.
	GetMemberByID(ctx context.Context, id string) (*Member, error)

	// ListMembers lists all members ordered by full name.
	ListMembers(ctx context.Context) ([]*Member, error)
}

// CheckInStore handles check-in record persistence. Implementations must
// guarantee at most one open record per member even under concurrent
// CreateCheckIn calls, and must make CloseCheckIn a single atomic
// open-to-closed transition.
type CheckInStore interface {
	// CreateCheckIn opens a new record for the member with a server-assigned
	// check-in time. Returns ErrAlreadyCheckedIn if the member already has an
	// open record.
	CreateCheckIn(ctx context.Context, memberID, location, notes string) (*CheckIn, error)

	// FindOpenCheckInByMember returns the member's open record, or ErrNotFound.
	FindOpenCheckInByMember(ctx context.Context, memberID string) (*CheckIn, error)

	// CloseCheckIn sets the check-out time on an open record and appends
	// notes. Returns ErrAlreadyCheckedOut if the id is unknown or the record
	// is already closed.
	CloseCheckIn(ctx context.Context, id, notes string) (*CheckIn, error)

	// ListCheckIns lists records matching the filter, newest first.
	ListCheckIns(ctx context.Context, filter CheckInFilter) ([]*CheckIn, error)

	// CountOpenCheckIns counts records with no check-out time, regardless of day.
	CountOpenCheckIns(ctx context.Context) (int, error)

	// CountCheckInsBetween counts records whose check-in time is in [start, end).
	CountCheckInsBetween(ctx context.Context, start, end time.Time) (int, error)

	// CompletedCheckInsBetween returns closed records whose check-in time is
	// in [start, end).
	CompletedCheckInsBetween(ctx context.Context, start, end time.Time) ([]*CheckIn, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	MemberStore
	CheckInStore

	// Close closes the underlying database connection.
	Close() error
}
