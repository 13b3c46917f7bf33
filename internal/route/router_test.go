package route

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jeffkirdeikis/pulse-verify/internal/extract"
	"github.com/jeffkirdeikis/pulse-verify/internal/model"
	"github.com/jeffkirdeikis/pulse-verify/internal/store"
	"github.com/jeffkirdeikis/pulse-verify/internal/trust"
)

type fakeValidator struct {
	validation *extract.Validation
	lastInput  model.CandidateEvent
	lastNearby []model.StoredEvent
}

func (f *fakeValidator) ValidateCandidate(ctx context.Context, candidate model.CandidateEvent, nearby []model.StoredEvent) *extract.Validation {
	f.lastInput = candidate
	f.lastNearby = nearby
	if f.validation != nil {
		return f.validation
	}
	return &extract.Validation{IsValid: true, Confidence: 0.5}
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestRouter(st Store, v Validator) *Router {
	cfg := model.DefaultConfig()
	return NewRouter(st, v, trust.NewTable(cfg.Trust), cfg.Thresholds)
}

func triviaNight() model.CandidateEvent {
	return model.CandidateEvent{
		Title:     "Trivia Night",
		StartDate: "2025-06-20",
		StartTime: "19:00",
		VenueName: "The Local",
		SourceTag: "community",
	}
}

func submitOne(t *testing.T, r *Router, userID string) string {
	t.Helper()
	id, err := r.Submit(context.Background(), userID, triviaNight())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return id
}

func TestSubmit_RequiresTitleAndDate(t *testing.T) {
	r := newTestRouter(openStore(t), &fakeValidator{})

	if _, err := r.Submit(context.Background(), "u1", model.CandidateEvent{StartDate: "2025-06-20"}); err == nil {
		t.Error("submission without a title was accepted")
	}
	if _, err := r.Submit(context.Background(), "u1", model.CandidateEvent{Title: "X"}); err == nil {
		t.Error("submission without a date was accepted")
	}
}

func TestRoute_AutoApprovePublishes(t *testing.T) {
	st := openStore(t)
	v := &fakeValidator{validation: &extract.Validation{
		IsValid:        true,
		Confidence:     0.90,
		SuggestedFixes: map[string]string{"start_time": "18:30"},
		Reasoning:      "matches venue schedule",
	}}
	r := newTestRouter(st, v)
	ctx := context.Background()

	subID := submitOne(t, r, "u1")
	outcome, err := r.Route(ctx, subID)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}

	if outcome.Status != model.SubmissionApproved {
		t.Fatalf("status %s, want approved at 0.90", outcome.Status)
	}
	if outcome.EventID == "" {
		t.Fatal("approved submission produced no event")
	}

	ev, err := st.GetEvent(ctx, outcome.EventID)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if ev.StartTime != "18:30" {
		t.Errorf("suggested fix not applied: start time %q", ev.StartTime)
	}
	if !ev.HasAnnotation(AICorrectedAnnotation) {
		t.Errorf("amended event missing %q annotation", AICorrectedAnnotation)
	}
	if ev.CommunitySubmissionID != subID {
		t.Errorf("event not linked to submission: %q", ev.CommunitySubmissionID)
	}
	if ev.ConfidenceScore != 0.90 || ev.VerifiedAt == nil {
		t.Errorf("published event %+v, want confidence and verified_at set", ev)
	}

	// Terminal states are not routable again.
	if _, err := r.Route(ctx, subID); err == nil {
		t.Error("approved submission was routed twice")
	}
}

func TestRoute_ReviewQueuesWithoutPublishing(t *testing.T) {
	st := openStore(t)
	v := &fakeValidator{validation: &extract.Validation{
		IsValid:    true,
		Confidence: 0.70,
		Issues:     []string{"no corroborating listing"},
	}}
	r := newTestRouter(st, v)
	ctx := context.Background()

	subID := submitOne(t, r, "u1")
	outcome, err := r.Route(ctx, subID)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}

	if outcome.Status != model.SubmissionReview {
		t.Fatalf("status %s, want review at 0.70", outcome.Status)
	}
	if outcome.EventID != "" {
		t.Error("review submission published an event")
	}
	if _, err := st.EventBySubmission(ctx, subID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("EventBySubmission err = %v, want ErrNotFound", err)
	}

	pending, err := r.Pending(ctx, 10)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 1 || pending[0].AIConfidence != 0.70 {
		t.Errorf("admin queue %+v, want the review submission with its confidence", pending)
	}
}

func TestRoute_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		validation *extract.Validation
		wantReason string
	}{
		{
			name:       "low confidence",
			validation: &extract.Validation{IsValid: true, Confidence: 0.30},
		},
		{
			name:       "invalid despite high confidence",
			validation: &extract.Validation{IsValid: false, Confidence: 0.95},
		},
		{
			name: "duplicate overrides confidence",
			validation: &extract.Validation{
				IsValid:       true,
				Confidence:    0.95,
				IsDuplicateOf: "evt-123",
				Reasoning:     "same title, date and venue",
			},
			wantReason: "duplicate of event evt-123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(openStore(t), &fakeValidator{validation: tt.validation})

			subID := submitOne(t, r, "u1")
			outcome, err := r.Route(context.Background(), subID)
			if err != nil {
				t.Fatalf("Route: %v", err)
			}
			if outcome.Status != model.SubmissionRejected {
				t.Fatalf("status %s, want rejected", outcome.Status)
			}
			if outcome.EventID != "" {
				t.Error("rejected submission published an event")
			}
			if tt.wantReason != "" && !strings.Contains(outcome.Reasoning, tt.wantReason) {
				t.Errorf("reasoning %q, want mention of %q", outcome.Reasoning, tt.wantReason)
			}
		})
	}
}

// flakyStore injects an InsertEvent failure into an otherwise real store
type flakyStore struct {
	Store
	failInsert bool
}

func (f *flakyStore) InsertEvent(ctx context.Context, ev model.StoredEvent) (string, error) {
	if f.failInsert {
		return "", errors.New("disk full")
	}
	return f.Store.InsertEvent(ctx, ev)
}

func TestRoute_PublishFailureIsRetryable(t *testing.T) {
	st := &flakyStore{Store: openStore(t), failInsert: true}
	v := &fakeValidator{validation: &extract.Validation{IsValid: true, Confidence: 0.90}}
	r := newTestRouter(st, v)
	ctx := context.Background()

	subID := submitOne(t, r, "u1")

	outcome, err := r.Route(ctx, subID)
	if err != nil {
		t.Fatalf("Route with failing publish: %v", err)
	}
	if outcome.Status != model.SubmissionError {
		t.Fatalf("status %s, want error when publish fails", outcome.Status)
	}

	// The failure is persisted, and the submission stays retry eligible.
	sub, err := st.GetSubmission(ctx, subID)
	if err != nil {
		t.Fatalf("GetSubmission: %v", err)
	}
	if sub.Status != model.SubmissionError {
		t.Fatalf("persisted status %s, want error", sub.Status)
	}

	st.failInsert = false
	retry, err := r.Route(ctx, subID)
	if err != nil {
		t.Fatalf("retry Route: %v", err)
	}
	if retry.Status != model.SubmissionApproved || retry.EventID == "" {
		t.Fatalf("retry outcome %+v, want approval with an event", retry)
	}

	// A further retry must not publish a second event.
	sub, _ = st.GetSubmission(ctx, subID)
	if sub.Status != model.SubmissionApproved {
		t.Fatalf("status after retry %s", sub.Status)
	}
}

func TestRoute_CommunityVerifiedTag(t *testing.T) {
	st := openStore(t)
	v := &fakeValidator{validation: &extract.Validation{IsValid: true, Confidence: 0.70}}
	r := newTestRouter(st, v)
	ctx := context.Background()

	// First-time submitter routes as plain community.
	subID := submitOne(t, r, "u1")
	if _, err := r.Route(ctx, subID); err != nil {
		t.Fatalf("Route: %v", err)
	}
	if v.lastInput.SourceTag != "community" {
		t.Errorf("first submission tagged %q, want community", v.lastInput.SourceTag)
	}

	// An admin approval upgrades the submitter's standing.
	if _, err := r.Approve(ctx, subID, "admin-1"); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	second := submitOne(t, r, "u1")
	if _, err := r.Route(ctx, second); err != nil {
		t.Fatalf("Route second: %v", err)
	}
	if v.lastInput.SourceTag != "community-verified" {
		t.Errorf("second submission tagged %q, want community-verified", v.lastInput.SourceTag)
	}

	// The resolved tag sticks to the queued record for the admin path.
	sub, err := st.GetSubmission(ctx, second)
	if err != nil {
		t.Fatalf("GetSubmission: %v", err)
	}
	if sub.Event.SourceTag != "community-verified" {
		t.Errorf("queued event tagged %q, want the resolved tag persisted", sub.Event.SourceTag)
	}
}

func TestRoute_NearbyEventsByDateAndVenue(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	sameVenue := model.StoredEvent{CandidateEvent: model.CandidateEvent{
		Title: "Quiz League", StartDate: "2025-06-20", VenueName: "The Local", SourceTag: "scrape-venue-site",
	}}
	otherVenue := model.StoredEvent{CandidateEvent: model.CandidateEvent{
		Title: "Open Mic", StartDate: "2025-06-20", VenueName: "Riverside Hall", SourceTag: "scrape-generic",
	}}
	for _, ev := range []model.StoredEvent{sameVenue, otherVenue} {
		if _, err := st.InsertEvent(ctx, ev); err != nil {
			t.Fatalf("InsertEvent: %v", err)
		}
	}

	v := &fakeValidator{validation: &extract.Validation{IsValid: true, Confidence: 0.70}}
	r := newTestRouter(st, v)

	subID := submitOne(t, r, "u1")
	if _, err := r.Route(ctx, subID); err != nil {
		t.Fatalf("Route: %v", err)
	}

	if len(v.lastNearby) != 1 || v.lastNearby[0].Title != "Quiz League" {
		t.Errorf("validation saw %+v, want only the same-venue event", v.lastNearby)
	}
}

func TestRouteAll_DrainsQueue(t *testing.T) {
	st := openStore(t)
	v := &fakeValidator{validation: &extract.Validation{IsValid: true, Confidence: 0.70}}
	r := newTestRouter(st, v)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		submitOne(t, r, "u1")
	}

	outcomes, err := r.RouteAll(ctx, 10)
	if err != nil {
		t.Fatalf("RouteAll: %v", err)
	}
	if len(outcomes) != 3 {
		t.Fatalf("routed %d submissions, want 3", len(outcomes))
	}

	// The queue is empty afterwards.
	again, err := r.RouteAll(ctx, 10)
	if err != nil {
		t.Fatalf("second RouteAll: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second pass routed %d submissions, want 0", len(again))
	}
}

func TestAdminApproveAndReject(t *testing.T) {
	st := openStore(t)
	v := &fakeValidator{validation: &extract.Validation{IsValid: true, Confidence: 0.70}}
	r := newTestRouter(st, v)
	ctx := context.Background()

	first := submitOne(t, r, "u1")
	second := submitOne(t, r, "u2")

	// Only review submissions are actionable.
	if _, err := r.Approve(ctx, first, "admin-1"); err == nil {
		t.Error("approved a submission that was never routed")
	}

	for _, id := range []string{first, second} {
		if _, err := r.Route(ctx, id); err != nil {
			t.Fatalf("Route: %v", err)
		}
	}

	eventID, err := r.Approve(ctx, first, "admin-1")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	ev, err := st.GetEvent(ctx, eventID)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if ev.CommunitySubmissionID != first {
		t.Errorf("published event linked to %q, want %q", ev.CommunitySubmissionID, first)
	}

	if err := r.Reject(ctx, second, "admin-1", "venue confirmed no such event"); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	sub, err := st.GetSubmission(ctx, second)
	if err != nil {
		t.Fatalf("GetSubmission: %v", err)
	}
	if sub.Status != model.SubmissionRejected || sub.ReviewedBy != "admin-1" {
		t.Errorf("rejected submission %+v", sub)
	}
	if _, err := st.EventBySubmission(ctx, second); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("rejected submission produced an event")
	}
}

func TestAdminApprove_PublishesCorrectedEvent(t *testing.T) {
	st := openStore(t)
	v := &fakeValidator{validation: &extract.Validation{
		IsValid:        true,
		Confidence:     0.70,
		SuggestedFixes: map[string]string{"start_time": "18:30"},
		Reasoning:      "venue schedule lists 18:30",
	}}
	r := newTestRouter(st, v)
	ctx := context.Background()

	subID := submitOne(t, r, "u1")
	outcome, err := r.Route(ctx, subID)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if outcome.Status != model.SubmissionReview {
		t.Fatalf("status %s, want review at 0.70", outcome.Status)
	}

	// The review submission carries the corrected record, not the raw intake.
	sub, err := st.GetSubmission(ctx, subID)
	if err != nil {
		t.Fatalf("GetSubmission: %v", err)
	}
	if sub.Event.StartTime != "18:30" {
		t.Errorf("queued event start time %q, want the suggested fix applied", sub.Event.StartTime)
	}
	if !sub.Event.HasAnnotation(AICorrectedAnnotation) {
		t.Errorf("queued event missing %q annotation", AICorrectedAnnotation)
	}

	eventID, err := r.Approve(ctx, subID, "admin-1")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}

	ev, err := st.GetEvent(ctx, eventID)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if ev.StartTime != "18:30" {
		t.Errorf("admin-approved event start time %q, want suggested fix applied", ev.StartTime)
	}
	if !ev.HasAnnotation(AICorrectedAnnotation) {
		t.Errorf("admin-approved event missing %q annotation", AICorrectedAnnotation)
	}
	if ev.SourceTag != "community" {
		t.Errorf("published source tag %q, want the tag validation judged", ev.SourceTag)
	}
}

func TestFlagEvent_ThresholdTransition(t *testing.T) {
	st := openStore(t)
	r := newTestRouter(st, &fakeValidator{})
	ctx := context.Background()

	eventID, err := st.InsertEvent(ctx, model.StoredEvent{CandidateEvent: triviaNight()})
	if err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}

	if _, _, err := r.FlagEvent(ctx, eventID, "u1", "nonsense", ""); err == nil {
		t.Error("unknown issue type was accepted")
	}
	if _, _, err := r.FlagEvent(ctx, "missing", "u1", model.FlagWrongTime, ""); err == nil {
		t.Error("flag against a missing event was accepted")
	}

	// Two flags leave the event active.
	for i, user := range []string{"u1", "u2"} {
		_, transitioned, err := r.FlagEvent(ctx, eventID, user, model.FlagWrongTime, "starts at 8 not 7")
		if err != nil {
			t.Fatalf("FlagEvent %d: %v", i, err)
		}
		if transitioned {
			t.Fatalf("event transitioned after %d flags, threshold is 3", i+1)
		}
	}
	ev, _ := st.GetEvent(ctx, eventID)
	if ev.Status != model.StatusActive {
		t.Fatalf("status %s after 2 flags, want active", ev.Status)
	}

	// The third flag crosses the threshold.
	_, transitioned, err := r.FlagEvent(ctx, eventID, "u3", model.FlagCancelled, "")
	if err != nil {
		t.Fatalf("FlagEvent: %v", err)
	}
	if !transitioned {
		t.Fatal("third flag did not transition the event")
	}
	ev, _ = st.GetEvent(ctx, eventID)
	if ev.Status != model.StatusFlagged {
		t.Fatalf("status %s, want flagged", ev.Status)
	}

	// Further flags are recorded but the event is already out of listings.
	_, transitioned, err = r.FlagEvent(ctx, eventID, "u4", model.FlagSpam, "")
	if err != nil {
		t.Fatalf("FlagEvent: %v", err)
	}
	if transitioned {
		t.Error("already-flagged event reported a second transition")
	}
	if n, _ := st.PendingFlagCount(ctx, eventID); n != 4 {
		t.Errorf("pending flags %d, want all 4 recorded", n)
	}
}

func TestRecordSourceFeedback(t *testing.T) {
	st := openStore(t)
	cfg := model.DefaultConfig()
	table := trust.NewTable(cfg.Trust)
	r := NewRouter(st, &fakeValidator{}, table, cfg.Thresholds)
	ctx := context.Background()

	before := table.Lookup("scrape-generic")
	if err := r.RecordSourceFeedback(ctx, "scrape-generic", false); err != nil {
		t.Fatalf("RecordSourceFeedback: %v", err)
	}

	// Feedback is recorded durably but never moves the live score.
	if after := table.Lookup("scrape-generic"); after != before {
		t.Errorf("trust score changed synchronously: %v -> %v", before, after)
	}
	summary, err := st.TrustFeedbackSummary(ctx)
	if err != nil {
		t.Fatalf("TrustFeedbackSummary: %v", err)
	}
	if summary["scrape-generic"].Inaccurate != 1 {
		t.Errorf("feedback %+v, want one inaccurate observation", summary["scrape-generic"])
	}
}
