package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/gymstack/checkin-server/internal/store"
)

// Schema is the database schema applied by Migrate. The partial unique index
// on open check-ins is what guarantees at most one open record per member,
// including under concurrent writers.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS members (
	id                TEXT PRIMARY KEY,
	membership_number TEXT NOT NULL UNIQUE,
	full_name         TEXT NOT NULL,
	phone             TEXT NOT NULL DEFAULT '',
	address           TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL DEFAULT 'active',
	notes             TEXT NOT NULL DEFAULT '',
	created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS checkins (
	id             TEXT PRIMARY KEY,
	member_id      TEXT NOT NULL,
	check_in_time  DATETIME NOT NULL,
	check_out_time DATETIME,
	location       TEXT NOT NULL DEFAULT '',
	notes          TEXT NOT NULL DEFAULT '',
	created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (member_id) REFERENCES members(id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_checkins_open_member
	ON checkins(member_id) WHERE check_out_time IS NULL;

CREATE INDEX IF NOT EXISTS idx_checkins_time ON checkins(check_in_time DESC);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// NewWithSetup creates a new SQLite store and runs a setup function instead of
// the default schema. Useful for tests.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isConstraintErr(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}

// ==== UserStore implementation ====

// CreateUser creates a new staff user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (username, password_hash)
		VALUES (?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, username, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, created_at
		FROM users
		WHERE id = ?
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, created_at
		FROM users
		WHERE username = ?
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// ==== MemberStore implementation ====

// CreateMember creates a member with a fresh UUID.
func (s *SQLiteStore) CreateMember(ctx context.Context, m *store.Member) (*store.Member, error) {
	id := uuid.NewString()
	status := m.Status
	if status == "" {
		status = store.MemberStatusActive
	}

	query := `
		INSERT INTO members (id, membership_number, full_name, phone, address, status, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		id, m.MembershipNumber, m.FullName, m.Phone, m.Address, status, m.Notes)
	if err != nil {
		return nil, fmt.Errorf("insert member: %w", err)
	}

	return s.GetMemberByID(ctx, id)
}

// GetMemberByID retrieves a member by UUID.
func (s *SQLiteStore) GetMemberByID(ctx context.Context, id string) (*store.Member, error) {
	query := `
		SELECT id, membership_number, full_name, phone, address, status, notes, created_at, updated_at
		FROM members
		WHERE id = ?
	`
	var m store.Member
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&m.ID,
		&m.MembershipNumber,
		&m.FullName,
		&m.Phone,
		&m.Address,
		&m.Status,
		&m.Notes,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query member: %w", err)
	}

	return &m, nil
}

// ListMembers lists all members ordered by full name.
func (s *SQLiteStore) ListMembers(ctx context.Context) ([]*store.Member, error) {
	query := `
		SELECT id, membership_number, full_name, phone, address, status, notes, created_at, updated_at
		FROM members
		ORDER BY full_name
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []*store.Member
	for rows.Next() {
		var m store.Member
		if err := rows.Scan(
			&m.ID,
			&m.MembershipNumber,
			&m.FullName,
			&m.Phone,
			&m.Address,
			&m.Status,
			&m.Notes,
			&m.CreatedAt,
			&m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, &m)
	}

	return members, rows.Err()
}

// ==== CheckInStore implementation ====

// CreateCheckIn opens a new record for the member. The partial unique index on
// open records makes the "one open record per member" check atomic with the
// insert; a violation maps to store.ErrAlreadyCheckedIn.
func (s *SQLiteStore) CreateCheckIn(ctx context.Context, memberID, location, notes string) (*store.CheckIn, error) {
	id := uuid.NewString()
	now := time.Now()

	query := `
		INSERT INTO checkins (id, member_id, check_in_time, location, notes)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query, id, memberID, now, location, notes)
	if err != nil {
		if isConstraintErr(err) {
			return nil, store.ErrAlreadyCheckedIn
		}
		return nil, fmt.Errorf("insert checkin: %w", err)
	}

	return s.getCheckInByID(ctx, id)
}

// FindOpenCheckInByMember returns the member's open record, or store.ErrNotFound.
func (s *SQLiteStore) FindOpenCheckInByMember(ctx context.Context, memberID string) (*store.CheckIn, error) {
	query := checkinSelect + `
		WHERE member_id = ? AND check_out_time IS NULL
	`
	return s.scanOneCheckIn(s.db.QueryRowContext(ctx, query, memberID))
}

// CloseCheckIn closes an open record in a single conditional UPDATE, so
// repeating it never succeeds twice. Notes are appended on a new line.
func (s *SQLiteStore) CloseCheckIn(ctx context.Context, id, notes string) (*store.CheckIn, error) {
	now := time.Now()

	query := `
		UPDATE checkins
		SET check_out_time = ?,
		    notes = CASE
		        WHEN ? = '' THEN notes
		        WHEN notes = '' THEN ?
		        ELSE notes || char(10) || ?
		    END,
		    updated_at = ?
		WHERE id = ? AND check_out_time IS NULL
	`
	result, err := s.db.ExecContext(ctx, query, now, notes, notes, notes, now, id)
	if err != nil {
		return nil, fmt.Errorf("close checkin: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, store.ErrAlreadyCheckedOut
	}

	return s.getCheckInByID(ctx, id)
}

// ListCheckIns lists records matching the filter, newest first.
func (s *SQLiteStore) ListCheckIns(ctx context.Context, filter store.CheckInFilter) ([]*store.CheckIn, error) {
	query := checkinSelect + ` WHERE 1=1`
	var args []any

	if filter.MemberID != "" {
		query += ` AND member_id = ?`
		args = append(args, filter.MemberID)
	}
	if filter.Day != nil {
		start, end := dayBounds(*filter.Day)
		query += ` AND check_in_time >= ? AND check_in_time < ?`
		args = append(args, start, end)
	}
	query += ` ORDER BY check_in_time DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query checkins: %w", err)
	}
	defer rows.Close()

	return scanCheckIns(rows)
}

// CountOpenCheckIns counts records with no check-out time.
func (s *SQLiteStore) CountOpenCheckIns(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM checkins WHERE check_out_time IS NULL`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count open checkins: %w", err)
	}
	return n, nil
}

// CountCheckInsBetween counts records whose check-in time is in [start, end).
func (s *SQLiteStore) CountCheckInsBetween(ctx context.Context, start, end time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM checkins WHERE check_in_time >= ? AND check_in_time < ?`,
		start, end).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count checkins: %w", err)
	}
	return n, nil
}

// CompletedCheckInsBetween returns closed records whose check-in time is in
// [start, end).
func (s *SQLiteStore) CompletedCheckInsBetween(ctx context.Context, start, end time.Time) ([]*store.CheckIn, error) {
	query := checkinSelect + `
		WHERE check_in_time >= ? AND check_in_time < ? AND check_out_time IS NOT NULL
		ORDER BY check_in_time
	`
	rows, err := s.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query completed checkins: %w", err)
	}
	defer rows.Close()

	return scanCheckIns(rows)
}

const checkinSelect = `
	SELECT id, member_id, check_in_time, check_out_time, location, notes, created_at, updated_at
	FROM checkins
`

func (s *SQLiteStore) getCheckInByID(ctx context.Context, id string) (*store.CheckIn, error) {
	query := checkinSelect + ` WHERE id = ?`
	return s.scanOneCheckIn(s.db.QueryRowContext(ctx, query, id))
}

func (s *SQLiteStore) scanOneCheckIn(row *sql.Row) (*store.CheckIn, error) {
	var c store.CheckIn
	var checkOut sql.NullTime
	err := row.Scan(
		&c.ID,
		&c.MemberID,
		&c.CheckInTime,
		&checkOut,
		&c.Location,
		&c.Notes,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query checkin: %w", err)
	}
	if checkOut.Valid {
		t := checkOut.Time
		c.CheckOutTime = &t
	}
	return &c, nil
}

func scanCheckIns(rows *sql.Rows) ([]*store.CheckIn, error) {
	var checkins []*store.CheckIn
	for rows.Next() {
		var c store.CheckIn
		var checkOut sql.NullTime
		if err := rows.Scan(
			&c.ID,
			&c.MemberID,
			&c.CheckInTime,
			&checkOut,
			&c.Location,
			&c.Notes,
			&c.CreatedAt,
			&c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan checkin: %w", err)
		}
		if checkOut.Valid {
			t := checkOut.Time
			c.CheckOutTime = &t
		}
		checkins = append(checkins, &c)
	}
	return checkins, rows.Err()
}

func dayBounds(day time.Time) (time.Time, time.Time) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return start, start.AddDate(0, 0, 1)
}
