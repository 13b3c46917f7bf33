package model

import "time"

// SubmissionStatus is the state of a community submission. Transitions:
// received -> validated -> {approved | review | rejected | error}, plus the
// admin-driven review -> {approved | rejected}. Approved and rejected are
// terminal for automatic processing; error submissions are retry eligible.
type SubmissionStatus string

const (
	SubmissionReceived SubmissionStatus = "received"
	SubmissionApproved SubmissionStatus = "approved"
	SubmissionReview   SubmissionStatus = "review"
	SubmissionRejected SubmissionStatus = "rejected"
	SubmissionError    SubmissionStatus = "error"
)

// CommunitySubmission wraps a user-submitted CandidateEvent with moderation
// metadata.
type CommunitySubmission struct {
	ID           string           `json:"id"`
	UserID       string           `json:"user_id"`
	Event        CandidateEvent   `json:"event"`
	Status       SubmissionStatus `json:"status"`
	AIConfidence float64          `json:"ai_confidence"`
	AIReasoning  string           `json:"ai_reasoning,omitempty"`
	AIIssues     []string         `json:"ai_issues,omitempty"`
	ReviewedBy   string           `json:"reviewed_by,omitempty"`
	ReviewedAt   *time.Time       `json:"reviewed_at,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// FlagIssue enumerates the reasons a user can report an event
type FlagIssue string

const (
	FlagWrongDate     FlagIssue = "wrong_date"
	FlagWrongTime     FlagIssue = "wrong_time"
	FlagWrongLocation FlagIssue = "wrong_location"
	FlagCancelled     FlagIssue = "cancelled"
	FlagDuplicate     FlagIssue = "duplicate"
	FlagSpam          FlagIssue = "spam"
	FlagOther         FlagIssue = "other"
)

// ValidFlagIssue reports whether s is a recognized issue type.
func ValidFlagIssue(s string) bool {
	switch FlagIssue(s) {
	case FlagWrongDate, FlagWrongTime, FlagWrongLocation, FlagCancelled, FlagDuplicate, FlagSpam, FlagOther:
		return true
	}
	return false
}

// FlagStatus is the moderation state of an event flag
type FlagStatus string

const (
	FlagPending  FlagStatus = "pending"
	FlagResolved FlagStatus = "resolved"
)

// EventFlag is a user-reported issue against a stored event. Never
// auto-deleted; resolved by admin tooling.
type EventFlag struct {
	ID          string     `json:"id"`
	EventID     string     `json:"event_id"`
	UserID      string     `json:"user_id"`
	IssueType   FlagIssue  `json:"issue_type"`
	Description string     `json:"description,omitempty"`
	Status      FlagStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
}
