// Package route drives community submissions through the validation state
// machine: received -> validated -> {approved | review | rejected | error},
// with admin-driven review -> {approved | rejected}.
package route

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jeffkirdeikis/pulse-verify/internal/extract"
	"github.com/jeffkirdeikis/pulse-verify/internal/model"
	"github.com/jeffkirdeikis/pulse-verify/internal/store"
	"github.com/jeffkirdeikis/pulse-verify/internal/trust"
	"github.com/jeffkirdeikis/pulse-verify/internal/worker"
)

// AICorrectedAnnotation marks events whose fields were amended by validation
const AICorrectedAnnotation = "ai-corrected"

// Store is the persistence surface the router needs. *store.Store satisfies
// it; tests substitute fakes.
type Store interface {
	InsertSubmission(ctx context.Context, sub model.CommunitySubmission) (string, error)
	GetSubmission(ctx context.Context, id string) (*model.CommunitySubmission, error)
	QueuedSubmissions(ctx context.Context, limit int) ([]model.CommunitySubmission, error)
	PendingSubmissions(ctx context.Context, limit int) ([]model.CommunitySubmission, error)
	UpdateSubmissionDecision(ctx context.Context, id string, status model.SubmissionStatus, confidence float64, reasoning string, issues []string) error
	UpdateSubmissionEvent(ctx context.Context, id string, event model.CandidateEvent) error
	UpdateSubmissionReview(ctx context.Context, id string, status model.SubmissionStatus, reviewedBy string, reviewedAt time.Time, reason string) error
	HasApprovedSubmission(ctx context.Context, userID string) (bool, error)

	InsertEvent(ctx context.Context, ev model.StoredEvent) (string, error)
	EventBySubmission(ctx context.Context, submissionID string) (*model.StoredEvent, error)
	EventsByDateVenue(ctx context.Context, date, venue string) ([]model.StoredEvent, error)
	EventsBetween(ctx context.Context, from, to string) ([]model.StoredEvent, error)
	GetEvent(ctx context.Context, id string) (*model.StoredEvent, error)
	UpdateEventStatus(ctx context.Context, id string, status model.EventStatus) error
	InsertFlag(ctx context.Context, flag model.EventFlag) (string, error)
	PendingFlagCount(ctx context.Context, eventID string) (int, error)
	RecordTrustFeedback(ctx context.Context, sourceTag string, accurate bool) error
}

// Validator is the single-record validation capability of the extractor
type Validator interface {
	ValidateCandidate(ctx context.Context, candidate model.CandidateEvent, nearby []model.StoredEvent) *extract.Validation
}

// Router applies validation to community submissions and persists the
// decision plus reasoning, auto-publishing high-confidence submissions.
type Router struct {
	store     Store
	validator Validator
	trust     *trust.Table
	cfg       model.ThresholdConfig
	pacer     *worker.Pacer
	nowFunc   func() time.Time
	logf      func(format string, args ...any)
}

// NewRouter creates a submission router
func NewRouter(st Store, validator Validator, table *trust.Table, cfg model.ThresholdConfig) *Router {
	return &Router{
		store:     st,
		validator: validator,
		trust:     table,
		cfg:       cfg,
		nowFunc:   time.Now,
		logf:      func(string, ...any) {},
	}
}

// WithPacer adds backend pacing between queue items
func (r *Router) WithPacer(p *worker.Pacer) *Router {
	r.pacer = p
	return r
}

// WithLogger directs per-item progress messages
func (r *Router) WithLogger(logf func(format string, args ...any)) *Router {
	r.logf = logf
	return r
}

// Submit records a new community submission in the received state
func (r *Router) Submit(ctx context.Context, userID string, event model.CandidateEvent) (string, error) {
	if event.Title == "" || event.StartDate == "" {
		return "", fmt.Errorf("submission requires a title and a start date")
	}

	return r.store.InsertSubmission(ctx, model.CommunitySubmission{
		UserID: userID,
		Event:  event,
		Status: model.SubmissionReceived,
	})
}

// Outcome is the result of routing one submission
type Outcome struct {
	SubmissionID string                 `json:"submission_id"`
	Status       model.SubmissionStatus `json:"status"`
	Confidence   float64                `json:"confidence"`
	Reasoning    string                 `json:"reasoning,omitempty"`
	Issues       []string               `json:"issues,omitempty"`
	EventID      string                 `json:"event_id,omitempty"` // Set when auto-approved
}

// Route validates one submission and applies the decision. Safe to retry: an
// approved submission that already produced a stored event keeps that event.
func (r *Router) Route(ctx context.Context, submissionID string) (*Outcome, error) {
	sub, err := r.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, fmt.Errorf("load submission: %w", err)
	}

	switch sub.Status {
	case model.SubmissionReceived, model.SubmissionError:
		// Routable; error submissions are retry eligible.
	default:
		return nil, fmt.Errorf("submission %s is %s, not routable", sub.ID, sub.Status)
	}

	event := sub.Event
	event.SourceTag = r.communityTag(ctx, sub.UserID, event.SourceTag)

	nearby, err := r.nearbyEvents(ctx, event)
	if err != nil {
		return nil, fmt.Errorf("query nearby events: %w", err)
	}

	validation := r.validator.ValidateCandidate(ctx, event, nearby)

	outcome := &Outcome{
		SubmissionID: sub.ID,
		Confidence:   validation.Confidence,
		Reasoning:    validation.Reasoning,
		Issues:       validation.Issues,
	}

	switch {
	case validation.IsDuplicateOf != "":
		outcome.Status = model.SubmissionRejected
		outcome.Reasoning = fmt.Sprintf("duplicate of event %s: %s", validation.IsDuplicateOf, validation.Reasoning)
	case !validation.IsValid, validation.Confidence < r.cfg.Review:
		outcome.Status = model.SubmissionRejected
	case validation.Confidence >= r.cfg.AutoApprove:
		outcome.Status = model.SubmissionApproved
	default:
		outcome.Status = model.SubmissionReview
	}

	if len(validation.SuggestedFixes) > 0 {
		event = extract.ApplyFixes(event, validation.SuggestedFixes).Annotate(AICorrectedAnnotation)
	}

	// Review submissions keep the corrected record (fixes applied, source tag
	// resolved) so a later admin approval publishes exactly what validation
	// judged, not the raw intake.
	if outcome.Status == model.SubmissionReview {
		if err := r.store.UpdateSubmissionEvent(ctx, sub.ID, event); err != nil {
			return nil, fmt.Errorf("persist corrected event: %w", err)
		}
	}

	if outcome.Status == model.SubmissionApproved {
		eventID, err := r.publish(ctx, sub.ID, event, validation.Confidence)
		if err != nil {
			// Submission record exists, event does not: error state, retryable.
			if updErr := r.store.UpdateSubmissionDecision(ctx, sub.ID, model.SubmissionError,
				validation.Confidence, "publish failed: "+err.Error(), validation.Issues); updErr != nil {
				return nil, fmt.Errorf("publish failed (%v) and decision update failed: %w", err, updErr)
			}
			outcome.Status = model.SubmissionError
			outcome.Reasoning = "publish failed: " + err.Error()
			return outcome, nil
		}
		outcome.EventID = eventID
	}

	if err := r.store.UpdateSubmissionDecision(ctx, sub.ID, outcome.Status,
		validation.Confidence, outcome.Reasoning, validation.Issues); err != nil {
		return nil, fmt.Errorf("persist decision: %w", err)
	}

	return outcome, nil
}

// RouteAll drains the submissions awaiting routing. Per-item failures are
// logged and skipped; cancellation stops between items.
func (r *Router) RouteAll(ctx context.Context, limit int) ([]Outcome, error) {
	queued, err := r.store.QueuedSubmissions(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list queued submissions: %w", err)
	}

	var outcomes []Outcome
	for _, sub := range queued {
		if ctx.Err() != nil {
			return outcomes, ctx.Err()
		}
		if r.pacer != nil {
			if err := r.pacer.Wait(ctx, "validation"); err != nil {
				return outcomes, err
			}
		}

		outcome, err := r.Route(ctx, sub.ID)
		if err != nil {
			r.logf("skip submission %s: %v", sub.ID, err)
			continue
		}
		r.logf("submission %s: %s (confidence %.2f)", sub.ID, outcome.Status, outcome.Confidence)
		outcomes = append(outcomes, *outcome)
	}

	return outcomes, nil
}

// RecordSourceFeedback records accuracy feedback for a source, both in the
// in-memory table and durably for the offline recalibration job. No
// synchronous effect on trust scores.
func (r *Router) RecordSourceFeedback(ctx context.Context, sourceTag string, accurate bool) error {
	r.trust.RecordFeedback(sourceTag, accurate)
	return r.store.RecordTrustFeedback(ctx, sourceTag, accurate)
}

// publish creates the stored event for an approved submission, at most once.
// A retry that finds an existing event for the submission returns it.
func (r *Router) publish(ctx context.Context, submissionID string, event model.CandidateEvent, confidence float64) (string, error) {
	if existing, err := r.store.EventBySubmission(ctx, submissionID); err == nil {
		return existing.ID, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}

	now := r.nowFunc()
	id, err := r.store.InsertEvent(ctx, model.StoredEvent{
		CandidateEvent:        event,
		Status:                model.StatusActive,
		ConfidenceScore:       confidence,
		VerifiedAt:            &now,
		CommunitySubmissionID: submissionID,
	})
	if errors.Is(err, store.ErrSubmissionLinked) {
		// Lost a race with a concurrent retry; the unique constraint kept
		// publication at-most-once.
		existing, getErr := r.store.EventBySubmission(ctx, submissionID)
		if getErr != nil {
			return "", getErr
		}
		return existing.ID, nil
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// communityTag resolves the trust tag for a submitter: verified when an
// admin previously approved one of their submissions.
func (r *Router) communityTag(ctx context.Context, userID, current string) string {
	if current != "" && current != "community" {
		return current
	}

	verified, err := r.store.HasApprovedSubmission(ctx, userID)
	if err == nil && verified {
		return "community-verified"
	}
	return "community"
}

// nearbyEvents collects the existing events validation compares against:
// same date and venue when a venue is given, same date otherwise.
func (r *Router) nearbyEvents(ctx context.Context, event model.CandidateEvent) ([]model.StoredEvent, error) {
	if event.VenueName != "" {
		return r.store.EventsByDateVenue(ctx, event.StartDate, event.VenueName)
	}
	return r.store.EventsBetween(ctx, event.StartDate, event.StartDate)
}
