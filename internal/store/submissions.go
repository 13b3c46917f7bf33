package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jeffkirdeikis/pulse-verify/internal/model"
)

// InsertSubmission stores a new community submission in the received state
func (s *Store) InsertSubmission(ctx context.Context, sub model.CommunitySubmission) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sub.ID == "" {
		sub.ID = NewID()
	}
	if sub.Status == "" {
		sub.Status = model.SubmissionReceived
	}

	eventData, err := json.Marshal(sub.Event)
	if err != nil {
		return "", fmt.Errorf("marshal event data: %w", err)
	}
	issues, err := json.Marshal(sub.AIIssues)
	if err != nil {
		return "", fmt.Errorf("marshal issues: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO submissions (id, user_id, event_data, status, ai_confidence, ai_reasoning, ai_issues)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, sub.ID, sub.UserID, string(eventData), string(sub.Status), sub.AIConfidence, sub.AIReasoning, string(issues))
	if err != nil {
		return "", fmt.Errorf("insert submission: %w", err)
	}

	return sub.ID, nil
}

const submissionColumns = `id, user_id, event_data, status, ai_confidence, COALESCE(ai_reasoning,''),
	COALESCE(ai_issues,''), COALESCE(reviewed_by,''), reviewed_at, created_at`

func scanSubmission(scanner interface{ Scan(...any) error }) (model.CommunitySubmission, error) {
	var sub model.CommunitySubmission
	var eventData, status, issues string
	var reviewedAt sql.NullTime

	err := scanner.Scan(&sub.ID, &sub.UserID, &eventData, &status, &sub.AIConfidence,
		&sub.AIReasoning, &issues, &sub.ReviewedBy, &reviewedAt, &sub.CreatedAt)
	if err != nil {
		return sub, err
	}

	sub.Status = model.SubmissionStatus(status)
	if reviewedAt.Valid {
		t := reviewedAt.Time
		sub.ReviewedAt = &t
	}
	_ = json.Unmarshal([]byte(eventData), &sub.Event)
	if issues != "" {
		_ = json.Unmarshal([]byte(issues), &sub.AIIssues)
	}

	return sub, nil
}

// GetSubmission returns one submission by id
func (s *Store) GetSubmission(ctx context.Context, id string) (*model.CommunitySubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+submissionColumns+" FROM submissions WHERE id = ?", id)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return &sub, nil
}

func (s *Store) querySubmissions(ctx context.Context, where string, args ...any) ([]model.CommunitySubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+submissionColumns+" FROM submissions "+where, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var subs []model.CommunitySubmission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// PendingSubmissions returns review-state submissions, newest first
func (s *Store) PendingSubmissions(ctx context.Context, limit int) ([]model.CommunitySubmission, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.querySubmissions(ctx, "WHERE status = 'review' ORDER BY created_at DESC LIMIT ?", limit)
}

// QueuedSubmissions returns submissions awaiting routing (received or error),
// oldest first. Error submissions are retry eligible.
func (s *Store) QueuedSubmissions(ctx context.Context, limit int) ([]model.CommunitySubmission, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.querySubmissions(ctx, "WHERE status IN ('received', 'error') ORDER BY created_at LIMIT ?", limit)
}

// UpdateSubmissionDecision persists the automatic routing decision
func (s *Store) UpdateSubmissionDecision(ctx context.Context, id string, status model.SubmissionStatus, confidence float64, reasoning string, issues []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	issueData, err := json.Marshal(issues)
	if err != nil {
		return fmt.Errorf("marshal issues: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE submissions SET status = ?, ai_confidence = ?, ai_reasoning = ?, ai_issues = ? WHERE id = ?
	`, string(status), confidence, reasoning, string(issueData), id)
	if err != nil {
		return fmt.Errorf("update submission decision: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateSubmissionEvent replaces a submission's event payload. Used when
// routing amends the record (suggested fixes, resolved source tag) so a later
// admin approval publishes the corrected event.
func (s *Store) UpdateSubmissionEvent(ctx context.Context, id string, event model.CandidateEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	eventData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE submissions SET event_data = ? WHERE id = ?", string(eventData), id)
	if err != nil {
		return fmt.Errorf("update submission event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateSubmissionReview persists a synchronous admin decision
func (s *Store) UpdateSubmissionReview(ctx context.Context, id string, status model.SubmissionStatus, reviewedBy string, reviewedAt time.Time, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE submissions SET status = ?, reviewed_by = ?, reviewed_at = ?,
			ai_reasoning = CASE WHEN ? != '' THEN ? ELSE ai_reasoning END
		WHERE id = ?
	`, string(status), reviewedBy, reviewedAt, reason, reason, id)
	if err != nil {
		return fmt.Errorf("update submission review: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// HasApprovedSubmission reports whether a user has a previously approved
// submission. Drives the community-verified trust tier.
func (s *Store) HasApprovedSubmission(ctx context.Context, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM submissions WHERE user_id = ? AND status = 'approved' AND reviewed_by != ''",
		userID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count approved submissions: %w", err)
	}
	return count > 0, nil
}

// InsertFlag records a user-reported issue against an event
func (s *Store) InsertFlag(ctx context.Context, flag model.EventFlag) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if flag.ID == "" {
		flag.ID = NewID()
	}
	if flag.Status == "" {
		flag.Status = model.FlagPending
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO event_flags (id, event_id, user_id, issue_type, description, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`, flag.ID, flag.EventID, flag.UserID, string(flag.IssueType), flag.Description, string(flag.Status))
	if err != nil {
		return "", fmt.Errorf("insert flag: %w", err)
	}

	return flag.ID, nil
}

// PendingFlagCount counts unresolved flags against one event
func (s *Store) PendingFlagCount(ctx context.Context, eventID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM event_flags WHERE event_id = ? AND status = 'pending'",
		eventID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count flags: %w", err)
	}
	return count, nil
}

// EventFlags returns all flags against one event, newest first
func (s *Store) EventFlags(ctx context.Context, eventID string) ([]model.EventFlag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_id, user_id, issue_type, COALESCE(description,''), status, created_at
		FROM event_flags WHERE event_id = ? ORDER BY created_at DESC
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("query flags: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var flags []model.EventFlag
	for rows.Next() {
		var f model.EventFlag
		var issueType, status string
		if err := rows.Scan(&f.ID, &f.EventID, &f.UserID, &issueType, &f.Description, &status, &f.CreatedAt); err != nil {
			return nil, err
		}
		f.IssueType = model.FlagIssue(issueType)
		f.Status = model.FlagStatus(status)
		flags = append(flags, f)
	}
	return flags, rows.Err()
}

// RecordTrustFeedback appends one accuracy observation for a source.
// Consumed by the offline recalibration job, never applied synchronously.
func (s *Store) RecordTrustFeedback(ctx context.Context, sourceTag string, accurate bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	val := 0
	if accurate {
		val = 1
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO trust_feedback (source_tag, accurate) VALUES (?, ?)", sourceTag, val)
	if err != nil {
		return fmt.Errorf("record trust feedback: %w", err)
	}
	return nil
}

// FeedbackCount tallies accuracy observations for one source
type FeedbackCount struct {
	Accurate   int
	Inaccurate int
}

// TrustFeedbackSummary aggregates recorded feedback per source
func (s *Store) TrustFeedbackSummary(ctx context.Context) (map[string]FeedbackCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT source_tag, SUM(accurate), COUNT(*) - SUM(accurate)
		FROM trust_feedback GROUP BY source_tag
	`)
	if err != nil {
		return nil, fmt.Errorf("query trust feedback: %w", err)
	}
	defer func() { _ = rows.Close() }()

	summary := make(map[string]FeedbackCount)
	for rows.Next() {
		var tag string
		var fc FeedbackCount
		if err := rows.Scan(&tag, &fc.Accurate, &fc.Inaccurate); err != nil {
			return nil, err
		}
		summary[tag] = fc
	}
	return summary, rows.Err()
}
