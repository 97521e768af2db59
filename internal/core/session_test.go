package core

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/gymstack/checkin-server/internal/store"
	"github.com/gymstack/checkin-server/internal/store/sqlite"
)

type sessionFixture struct {
	store *sqlite.SQLiteStore
	group *Group
	stats *Aggregator
	log   zerolog.Logger
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	return &sessionFixture{
		store: st,
		group: NewGroup(GroupCheckIns),
		stats: NewAggregator(st),
		log:   zerolog.Nop(),
	}
}

func (f *sessionFixture) newSession(t *testing.T, id string) *Session {
	t.Helper()

	client := NewClient(id, 1, "frontdesk")
	sess := NewSession(client, f.group, f.store, f.stats, &f.log)
	sess.Start(context.Background())

	// Drain the initial snapshot so tests only see what they trigger.
	mustEvent(t, client.Events, EventInitialStats)
	return sess
}

func (f *sessionFixture) createMember(t *testing.T, name, number string) *store.Member {
	t.Helper()

	m, err := f.store.CreateMember(context.Background(), &store.Member{
		MembershipNumber: number,
		FullName:         name,
	})
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	return m
}

func TestSessionHeartbeat(t *testing.T) {
	f := newSessionFixture(t)
	a := f.newSession(t, "a")
	b := f.newSession(t, "b")

	a.Handle(context.Background(), &Command{Kind: CommandHeartbeat})

	ack := mustEvent(t, a.Client().Events, EventHeartbeatAck)
	if ack.At.IsZero() {
		t.Fatalf("expected timestamp on heartbeat ack")
	}
	mustNoEvent(t, b.Client().Events)
}

func TestSessionCheckInFansOutToGroup(t *testing.T) {
	f := newSessionFixture(t)
	a := f.newSession(t, "a")
	b := f.newSession(t, "b")

	m := f.createMember(t, "Alice Example", "M001")

	a.Handle(context.Background(), &Command{Kind: CommandCheckIn, MemberID: m.ID, Location: "Gym"})

	success := mustEvent(t, a.Client().Events, EventCheckInSuccess)
	if success.Record == nil || success.Record.MemberID != m.ID || !success.Record.Open() {
		t.Fatalf("unexpected success record: %+v", success.Record)
	}
	if success.Member == nil || success.Member.FullName != "Alice Example" {
		t.Fatalf("unexpected member on success event: %+v", success.Member)
	}

	// Both connections, including the sender, see the fan-out.
	for _, sess := range []*Session{a, b} {
		checked := mustEvent(t, sess.Client().Events, EventMemberCheckedIn)
		if checked.Record.ID != success.Record.ID {
			t.Fatalf("broadcast carries wrong record: %+v", checked.Record)
		}
		stats := mustEvent(t, sess.Client().Events, EventStatsUpdate)
		if stats.Stats.CurrentlyIn != 1 {
			t.Fatalf("expected currentlyIn 1, got %d", stats.Stats.CurrentlyIn)
		}
	}
}

func TestSessionDuplicateCheckInIsSenderOnlyError(t *testing.T) {
	f := newSessionFixture(t)
	a := f.newSession(t, "a")
	b := f.newSession(t, "b")

	m := f.createMember(t, "Alice Example", "M001")

	ctx := context.Background()
	a.Handle(ctx, &Command{Kind: CommandCheckIn, MemberID: m.ID})
	mustEvent(t, a.Client().Events, EventStatsUpdate)
	mustEvent(t, b.Client().Events, EventStatsUpdate)

	a.Handle(ctx, &Command{Kind: CommandCheckIn, MemberID: m.ID})

	ev := mustEvent(t, a.Client().Events, EventCheckInError)
	if ev.ErrMsg != "Member already checked in" {
		t.Fatalf("unexpected error message: %q", ev.ErrMsg)
	}
	mustNoEvent(t, b.Client().Events)
}

func TestSessionCheckInUnknownMember(t *testing.T) {
	f := newSessionFixture(t)
	a := f.newSession(t, "a")
	b := f.newSession(t, "b")

	a.Handle(context.Background(), &Command{Kind: CommandCheckIn, MemberID: "00000000-0000-0000-0000-000000000000"})

	ev := mustEvent(t, a.Client().Events, EventCheckInError)
	if ev.ErrMsg != "Member not found" {
		t.Fatalf("unexpected error message: %q", ev.ErrMsg)
	}
	mustNoEvent(t, b.Client().Events)
}

func TestSessionCheckOutRoundTrip(t *testing.T) {
	f := newSessionFixture(t)
	a := f.newSession(t, "a")

	m := f.createMember(t, "Alice Example", "M001")
	ctx := context.Background()

	a.Handle(ctx, &Command{Kind: CommandCheckIn, MemberID: m.ID})
	success := mustEvent(t, a.Client().Events, EventCheckInSuccess)
	mustEvent(t, a.Client().Events, EventStatsUpdate)

	a.Handle(ctx, &Command{Kind: CommandCheckOut, CheckInID: success.Record.ID, Notes: "done"})

	out := mustEvent(t, a.Client().Events, EventCheckOutSuccess)
	if out.Record.CheckOutTime == nil {
		t.Fatalf("expected check-out time to be set")
	}
	if out.Record.CheckOutTime.Before(out.Record.CheckInTime) {
		t.Fatalf("check-out before check-in: %+v", out.Record)
	}
	checkedOut := mustEvent(t, a.Client().Events, EventMemberCheckedOut)
	if checkedOut.Record.ID != success.Record.ID {
		t.Fatalf("broadcast carries wrong record: %+v", checkedOut.Record)
	}
	stats := mustEvent(t, a.Client().Events, EventStatsUpdate)
	if stats.Stats.CurrentlyIn != 0 {
		t.Fatalf("expected currentlyIn 0 after checkout, got %d", stats.Stats.CurrentlyIn)
	}

	// Exactly one record with both timestamps.
	records, err := f.store.ListCheckIns(ctx, store.CheckInFilter{MemberID: m.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 || records[0].CheckOutTime == nil {
		t.Fatalf("expected one closed record, got %+v", records)
	}
}

func TestSessionCheckOutUnknownOrClosed(t *testing.T) {
	f := newSessionFixture(t)
	a := f.newSession(t, "a")
	b := f.newSession(t, "b")

	m := f.createMember(t, "Alice Example", "M001")
	ctx := context.Background()

	a.Handle(ctx, &Command{Kind: CommandCheckOut, CheckInID: "missing"})
	ev := mustEvent(t, a.Client().Events, EventCheckOutError)
	if ev.ErrMsg != "Check-in not found or already checked out" {
		t.Fatalf("unexpected error message: %q", ev.ErrMsg)
	}
	mustNoEvent(t, b.Client().Events)

	// Checking out twice never succeeds twice.
	a.Handle(ctx, &Command{Kind: CommandCheckIn, MemberID: m.ID})
	success := mustEvent(t, a.Client().Events, EventCheckInSuccess)
	mustEvent(t, a.Client().Events, EventStatsUpdate)
	mustEvent(t, b.Client().Events, EventStatsUpdate)

	a.Handle(ctx, &Command{Kind: CommandCheckOut, CheckInID: success.Record.ID})
	mustEvent(t, a.Client().Events, EventCheckOutSuccess)

	a.Handle(ctx, &Command{Kind: CommandCheckOut, CheckInID: success.Record.ID})
	mustEvent(t, a.Client().Events, EventCheckOutError)
}

func TestSessionCloseLeavesGroupIdempotently(t *testing.T) {
	f := newSessionFixture(t)
	a := f.newSession(t, "a")
	b := f.newSession(t, "b")

	a.Close()
	a.Close()

	m := f.createMember(t, "Alice Example", "M001")
	b.Handle(context.Background(), &Command{Kind: CommandCheckIn, MemberID: m.ID})

	mustEvent(t, b.Client().Events, EventMemberCheckedIn)
	// The departed client receives nothing.
	mustNoEvent(t, a.Client().Events)
}
