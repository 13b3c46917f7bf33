// Package store provides SQLite persistence for events, community
// submissions, event flags, and trust feedback.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jeffkirdeikis/pulse-verify/internal/model"
	_ "modernc.org/sqlite"
)

// ErrSubmissionLinked is returned when an event already exists for a
// community submission id. Retrying an approved submission must not create a
// second stored event.
var ErrSubmissionLinked = errors.New("event already exists for submission")

// ErrNotFound is returned when a lookup matches nothing
var ErrNotFound = errors.New("not found")

// Store handles SQLite persistence. All methods are safe for concurrent use.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewID returns a fresh opaque identifier
func NewID() string {
	return uuid.NewString()
}

// Open creates a Store at the given database path, creating tables as
// needed. Uses WAL mode for better concurrent read performance.
func Open(dbPath string) (*Store, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		// Shared cache so all pooled connections see the same database
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		start_date TEXT NOT NULL,
		start_time TEXT,
		end_time TEXT,
		venue_name TEXT,
		venue_address TEXT,
		price TEXT,
		category TEXT,
		description TEXT,
		instructor TEXT,
		source_tag TEXT NOT NULL,
		confidence_hint REAL DEFAULT 0,
		flag TEXT,
		annotations TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		confidence_score REAL DEFAULT 0,
		verified_at DATETIME,
		verification_sources TEXT,
		community_submission_id TEXT UNIQUE,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_events_date ON events(start_date);
	CREATE INDEX IF NOT EXISTS idx_events_date_venue ON events(start_date, venue_name);
	CREATE INDEX IF NOT EXISTS idx_events_status ON events(status);
	CREATE INDEX IF NOT EXISTS idx_events_unverified ON events(verified_at) WHERE verified_at IS NULL;

	CREATE TABLE IF NOT EXISTS submissions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		event_data TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'received',
		ai_confidence REAL DEFAULT 0,
		ai_reasoning TEXT,
		ai_issues TEXT,
		reviewed_by TEXT,
		reviewed_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_submissions_status ON submissions(status, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_submissions_user ON submissions(user_id);

	CREATE TABLE IF NOT EXISTS event_flags (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		issue_type TEXT NOT NULL,
		description TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (event_id) REFERENCES events(id)
	);

	CREATE INDEX IF NOT EXISTS idx_flags_event ON event_flags(event_id, status);

	CREATE TABLE IF NOT EXISTS trust_feedback (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_tag TEXT NOT NULL,
		accurate INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_trust_feedback_source ON trust_feedback(source_tag);
	`
	_, err := s.db.Exec(schema)
	return err
}

// InsertEvent stores a new event. An empty ID is assigned one. An event
// linked to a community submission that already produced an event returns
// ErrSubmissionLinked.
func (s *Store) InsertEvent(ctx context.Context, ev model.StoredEvent) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.ID == "" {
		ev.ID = NewID()
	}
	if ev.Status == "" {
		ev.Status = model.StatusActive
	}

	annotations, err := json.Marshal(ev.Annotations)
	if err != nil {
		return "", fmt.Errorf("marshal annotations: %w", err)
	}
	sources, err := json.Marshal(ev.VerificationSources)
	if err != nil {
		return "", fmt.Errorf("marshal verification sources: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (id, title, start_date, start_time, end_time, venue_name, venue_address,
			price, category, description, instructor, source_tag, confidence_hint, flag, annotations,
			status, confidence_score, verified_at, verification_sources, community_submission_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULLIF(?, ''))
	`, ev.ID, ev.Title, ev.StartDate, ev.StartTime, ev.EndTime, ev.VenueName, ev.VenueAddress,
		ev.Price, ev.Category, ev.Description, ev.Instructor, ev.SourceTag, ev.ConfidenceHint,
		ev.Flag, string(annotations), string(ev.Status), ev.ConfidenceScore, ev.VerifiedAt,
		string(sources), ev.CommunitySubmissionID)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: events.community_submission_id") {
			return "", ErrSubmissionLinked
		}
		return "", fmt.Errorf("insert event: %w", err)
	}

	return ev.ID, nil
}

const eventColumns = `id, title, start_date, COALESCE(start_time,''), COALESCE(end_time,''),
	COALESCE(venue_name,''), COALESCE(venue_address,''), COALESCE(price,''), COALESCE(category,''),
	COALESCE(description,''), COALESCE(instructor,''), source_tag, confidence_hint, COALESCE(flag,''),
	COALESCE(annotations,''), status, confidence_score, verified_at, COALESCE(verification_sources,''),
	COALESCE(community_submission_id,''), created_at`

func scanEvent(scanner interface{ Scan(...any) error }) (model.StoredEvent, error) {
	var ev model.StoredEvent
	var status, annotations, sources string
	var verifiedAt sql.NullTime

	err := scanner.Scan(&ev.ID, &ev.Title, &ev.StartDate, &ev.StartTime, &ev.EndTime,
		&ev.VenueName, &ev.VenueAddress, &ev.Price, &ev.Category,
		&ev.Description, &ev.Instructor, &ev.SourceTag, &ev.ConfidenceHint, &ev.Flag,
		&annotations, &status, &ev.ConfidenceScore, &verifiedAt, &sources,
		&ev.CommunitySubmissionID, &ev.CreatedAt)
	if err != nil {
		return ev, err
	}

	ev.Status = model.EventStatus(status)
	if verifiedAt.Valid {
		t := verifiedAt.Time
		ev.VerifiedAt = &t
	}
	if annotations != "" {
		_ = json.Unmarshal([]byte(annotations), &ev.Annotations)
	}
	if sources != "" {
		_ = json.Unmarshal([]byte(sources), &ev.VerificationSources)
	}

	return ev, nil
}

func (s *Store) queryEvents(ctx context.Context, where string, args ...any) ([]model.StoredEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+eventColumns+" FROM events "+where, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var events []model.StoredEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// GetEvent returns one event by id
func (s *Store) GetEvent(ctx context.Context, id string) (*model.StoredEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+eventColumns+" FROM events WHERE id = ?", id)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &ev, nil
}

// EventsBetween returns events with from <= start_date <= to (ISO dates sort
// lexicographically)
func (s *Store) EventsBetween(ctx context.Context, from, to string) ([]model.StoredEvent, error) {
	return s.queryEvents(ctx, "WHERE start_date >= ? AND start_date <= ? ORDER BY start_date, id", from, to)
}

// EventsByDateVenue returns events on a date at a venue (case-insensitive)
func (s *Store) EventsByDateVenue(ctx context.Context, date, venue string) ([]model.StoredEvent, error) {
	return s.queryEvents(ctx, "WHERE start_date = ? AND venue_name = ? COLLATE NOCASE ORDER BY id", date, venue)
}

// UnverifiedEvents returns active events with no verification pass yet
func (s *Store) UnverifiedEvents(ctx context.Context, limit int) ([]model.StoredEvent, error) {
	if limit <= 0 {
		limit = 500
	}
	return s.queryEvents(ctx, "WHERE verified_at IS NULL AND status = 'active' ORDER BY created_at LIMIT ?", limit)
}

// EventBySubmission returns the event created for a community submission, if any
func (s *Store) EventBySubmission(ctx context.Context, submissionID string) (*model.StoredEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+eventColumns+" FROM events WHERE community_submission_id = ?", submissionID)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("event by submission: %w", err)
	}
	return &ev, nil
}

// UpdateVerification persists one verification pass. Keyed by event id and
// idempotent: re-verification overwrites confidence, timestamp, and sources.
func (s *Store) UpdateVerification(ctx context.Context, id string, confidence float64, verifiedAt time.Time, sources []model.SourceMatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("marshal verification sources: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE events SET confidence_score = ?, verified_at = ?, verification_sources = ? WHERE id = ?
	`, confidence, verifiedAt, string(data), id)
	if err != nil {
		return fmt.Errorf("update verification: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateEventStatus sets an event's lifecycle status
func (s *Store) UpdateEventStatus(ctx context.Context, id string, status model.EventStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "UPDATE events SET status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
