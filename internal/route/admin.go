package route

import (
	"context"
	"errors"
	"fmt"

	"github.com/jeffkirdeikis/pulse-verify/internal/model"
	"github.com/jeffkirdeikis/pulse-verify/internal/store"
)

// Pending returns review-state submissions for the admin queue, newest first,
// with the AI confidence and reasoning attached for the human decision.
func (r *Router) Pending(ctx context.Context, limit int) ([]model.CommunitySubmission, error) {
	return r.store.PendingSubmissions(ctx, limit)
}

// Approve applies a synchronous admin approval. Admin decisions bypass the
// confidence gate entirely; they are final regardless of score.
func (r *Router) Approve(ctx context.Context, submissionID, adminID string) (string, error) {
	sub, err := r.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return "", fmt.Errorf("load submission: %w", err)
	}
	if sub.Status != model.SubmissionReview {
		return "", fmt.Errorf("submission %s is %s, only review submissions can be approved", sub.ID, sub.Status)
	}

	eventID, err := r.publish(ctx, sub.ID, sub.Event, sub.AIConfidence)
	if err != nil {
		return "", fmt.Errorf("publish approved event: %w", err)
	}

	if err := r.store.UpdateSubmissionReview(ctx, sub.ID, model.SubmissionApproved, adminID, r.nowFunc(), ""); err != nil {
		return "", fmt.Errorf("persist approval: %w", err)
	}

	return eventID, nil
}

// Reject applies a synchronous admin rejection with a reason shown to the
// submitter.
func (r *Router) Reject(ctx context.Context, submissionID, adminID, reason string) error {
	sub, err := r.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return fmt.Errorf("load submission: %w", err)
	}
	if sub.Status != model.SubmissionReview {
		return fmt.Errorf("submission %s is %s, only review submissions can be rejected", sub.ID, sub.Status)
	}

	if err := r.store.UpdateSubmissionReview(ctx, sub.ID, model.SubmissionRejected, adminID, r.nowFunc(), reason); err != nil {
		return fmt.Errorf("persist rejection: %w", err)
	}
	return nil
}

// FlagEvent records a user-reported issue against a stored event. Reaching
// the pending-flag threshold pulls the event from default listings
// (status=flagged) pending admin review. Returns the flag id and whether the
// event transitioned.
func (r *Router) FlagEvent(ctx context.Context, eventID, userID string, issueType model.FlagIssue, description string) (string, bool, error) {
	if !model.ValidFlagIssue(string(issueType)) {
		return "", false, fmt.Errorf("unknown issue type %q", issueType)
	}

	event, err := r.store.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", false, fmt.Errorf("event %s not found", eventID)
		}
		return "", false, fmt.Errorf("load event: %w", err)
	}

	flagID, err := r.store.InsertFlag(ctx, model.EventFlag{
		EventID:     eventID,
		UserID:      userID,
		IssueType:   issueType,
		Description: description,
		Status:      model.FlagPending,
	})
	if err != nil {
		return "", false, fmt.Errorf("insert flag: %w", err)
	}

	count, err := r.store.PendingFlagCount(ctx, eventID)
	if err != nil {
		return flagID, false, fmt.Errorf("count flags: %w", err)
	}

	if count >= r.cfg.FlagThreshold && event.Status == model.StatusActive {
		if err := r.store.UpdateEventStatus(ctx, eventID, model.StatusFlagged); err != nil {
			return flagID, false, fmt.Errorf("flag event: %w", err)
		}
		return flagID, true, nil
	}

	return flagID, false, nil
}
