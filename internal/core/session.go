package core

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/gymstack/checkin-server/internal/store"
)

// Business error messages sent back to the originating client. Other clients
// are never informed of a failed operation.
const (
	msgMemberNotFound   = "Member not found"
	msgAlreadyCheckedIn = "Member already checked in"
	msgCheckOutNotOpen  = "Check-in not found or already checked out"
	msgInternalError    = "Internal error"
)

// RecordStore is the slice of the store a session needs.
type RecordStore interface {
	GetMemberByID(ctx context.Context, id string) (*store.Member, error)
	FindOpenCheckInByMember(ctx context.Context, memberID string) (*store.CheckIn, error)
	CreateCheckIn(ctx context.Context, memberID, location, notes string) (*store.CheckIn, error)
	CloseCheckIn(ctx context.Context, id, notes string) (*store.CheckIn, error)
}

// Session is the per-connection check-in protocol. The transport calls Handle
// synchronously from its read loop, so commands from one connection are
// processed strictly in arrival order. Replies go to the session's own client,
// mutations additionally fan out to the group.
type Session struct {
	client *Client
	group  *Group
	store  RecordStore
	stats  *Aggregator
	log    *zerolog.Logger
}

// NewSession builds a session for an authenticated client.
func NewSession(client *Client, group *Group, st RecordStore, stats *Aggregator, logger *zerolog.Logger) *Session {
	return &Session{
		client: client,
		group:  group,
		store:  st,
		stats:  stats,
		log:    logger,
	}
}

// Client returns the session's client.
func (s *Session) Client() *Client {
	return s.client
}

// Start joins the broadcast group and sends the initial stats snapshot to this
// client only. A stats failure is reported as a non-fatal error message.
func (s *Session) Start(ctx context.Context) {
	s.group.Join(s.client)

	snapshot, err := s.stats.ComputeStats(ctx)
	if err != nil {
		s.log.Error().Err(err).Str("client_id", s.client.ID).Msg("compute initial stats")
		s.client.send(&Event{Kind: EventProtocolError, ErrMsg: "Failed to compute stats"})
		return
	}
	s.client.send(&Event{Kind: EventInitialStats, Stats: snapshot})
}

// Close deregisters from the broadcast group. Idempotent.
func (s *Session) Close() {
	s.group.Leave(s.client)
}

// ProtocolError reports a protocol-level problem (e.g. malformed JSON) to the
// client. The connection stays open.
func (s *Session) ProtocolError(msg string) {
	s.client.send(&Event{Kind: EventProtocolError, ErrMsg: msg})
}

// Handle dispatches a single command. Errors never escape: every failure is
// reported to the sender as an event and the session stays usable.
func (s *Session) Handle(ctx context.Context, cmd *Command) {
	switch cmd.Kind {
	case CommandHeartbeat:
		s.client.send(&Event{Kind: EventHeartbeatAck, At: time.Now()})
	case CommandCheckIn:
		s.handleCheckIn(ctx, cmd)
	case CommandCheckOut:
		s.handleCheckOut(ctx, cmd)
	}
}

func (s *Session) handleCheckIn(ctx context.Context, cmd *Command) {
	member, err := s.store.GetMemberByID(ctx, cmd.MemberID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.client.send(&Event{Kind: EventCheckInError, ErrMsg: msgMemberNotFound})
			return
		}
		s.log.Error().Err(err).Str("member_id", cmd.MemberID).Msg("member lookup")
		s.client.send(&Event{Kind: EventCheckInError, ErrMsg: msgInternalError})
		return
	}

	// Friendly pre-check for the common case. The store's unique constraint
	// on open records is the authority under concurrent check-ins.
	if _, err := s.store.FindOpenCheckInByMember(ctx, member.ID); err == nil {
		s.client.send(&Event{Kind: EventCheckInError, ErrMsg: msgAlreadyCheckedIn})
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		s.log.Error().Err(err).Str("member_id", member.ID).Msg("open check-in lookup")
		s.client.send(&Event{Kind: EventCheckInError, ErrMsg: msgInternalError})
		return
	}

	record, err := s.store.CreateCheckIn(ctx, member.ID, cmd.Location, cmd.Notes)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyCheckedIn) {
			s.client.send(&Event{Kind: EventCheckInError, ErrMsg: msgAlreadyCheckedIn})
			return
		}
		s.log.Error().Err(err).Str("member_id", member.ID).Msg("create check-in")
		s.client.send(&Event{Kind: EventCheckInError, ErrMsg: msgInternalError})
		return
	}

	s.client.send(&Event{Kind: EventCheckInSuccess, Record: record, Member: member})
	s.group.Broadcast(&Event{Kind: EventMemberCheckedIn, Record: record, Member: member})
	s.broadcastStats(ctx)
}

func (s *Session) handleCheckOut(ctx context.Context, cmd *Command) {
	record, err := s.store.CloseCheckIn(ctx, cmd.CheckInID, cmd.Notes)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyCheckedOut) || errors.Is(err, store.ErrNotFound) {
			s.client.send(&Event{Kind: EventCheckOutError, ErrMsg: msgCheckOutNotOpen})
			return
		}
		s.log.Error().Err(err).Str("check_in_id", cmd.CheckInID).Msg("close check-in")
		s.client.send(&Event{Kind: EventCheckOutError, ErrMsg: msgInternalError})
		return
	}

	// Member lookup is best-effort for the payload; the record already closed.
	member, err := s.store.GetMemberByID(ctx, record.MemberID)
	if err != nil {
		s.log.Warn().Err(err).Str("member_id", record.MemberID).Msg("member lookup after check-out")
		member = nil
	}

	s.client.send(&Event{Kind: EventCheckOutSuccess, Record: record, Member: member})
	s.group.Broadcast(&Event{Kind: EventMemberCheckedOut, Record: record, Member: member})
	s.broadcastStats(ctx)
}

// broadcastStats recomputes the snapshot and fans it out. On failure the
// sender gets a non-fatal error and the broadcast is skipped.
func (s *Session) broadcastStats(ctx context.Context) {
	snapshot, err := s.stats.ComputeStats(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("compute stats after mutation")
		s.client.send(&Event{Kind: EventProtocolError, ErrMsg: "Failed to compute stats"})
		return
	}
	s.group.Broadcast(&Event{Kind: EventStatsUpdate, Stats: snapshot})
}
