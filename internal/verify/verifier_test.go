package verify

import (
	"context"
	"testing"

	"github.com/jeffkirdeikis/pulse-verify/internal/match"
	"github.com/jeffkirdeikis/pulse-verify/internal/model"
	"github.com/jeffkirdeikis/pulse-verify/internal/trust"
)

type fakeSource struct {
	events []model.StoredEvent
}

func (f *fakeSource) EventsBetween(ctx context.Context, from, to string) ([]model.StoredEvent, error) {
	var out []model.StoredEvent
	for _, ev := range f.events {
		if ev.StartDate >= from && ev.StartDate <= to {
			out = append(out, ev)
		}
	}
	return out, nil
}

func newTestVerifier(events []model.StoredEvent) *Verifier {
	cfg := model.DefaultConfig()
	table := trust.NewTable(cfg.Trust)
	finder := match.NewFinder(&fakeSource{events: events}, cfg.Thresholds)
	return NewVerifier(table, finder, cfg.Thresholds)
}

func vinyasa(source string) model.CandidateEvent {
	return model.CandidateEvent{
		Title:     "Morning Vinyasa Flow",
		StartDate: "2025-06-10",
		StartTime: "09:00",
		VenueName: "Shala Yoga",
		SourceTag: source,
	}
}

func storedVinyasa(id, title, startTime, source string) model.StoredEvent {
	return model.StoredEvent{
		ID: id,
		CandidateEvent: model.CandidateEvent{
			Title:     title,
			StartDate: "2025-06-10",
			StartTime: startTime,
			VenueName: "Shala Yoga",
			SourceTag: source,
		},
	}
}

func TestVerifier_NoCorroboratingSources(t *testing.T) {
	v := newTestVerifier(nil)

	result, err := v.Verify(context.Background(), vinyasa("scrape-generic"), "")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	if result.FinalConfidence != result.BaseTrust {
		t.Errorf("final confidence %v, want base trust %v with no matches", result.FinalConfidence, result.BaseTrust)
	}
	if result.CorroborationScore != 0 {
		t.Errorf("corroboration score %v, want 0", result.CorroborationScore)
	}
	if len(result.Details) == 0 || result.Details[0] != "no corroborating sources" {
		t.Errorf("details %v, want a no-corroborating-sources note", result.Details)
	}
}

func TestVerifier_CorroborationRaisesConfidence(t *testing.T) {
	v := newTestVerifier([]model.StoredEvent{
		storedVinyasa("e1", "Morning Vinyasa", "09:15", "firecrawl-aggregator"),
	})

	candidate := vinyasa("scrape-generic") // base trust 0.60
	result, err := v.Verify(context.Background(), candidate, "")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	if result.MatchCount != 1 {
		t.Fatalf("match count %d, want 1", result.MatchCount)
	}
	if result.FinalConfidence <= result.BaseTrust {
		t.Errorf("corroborated confidence %v did not exceed base trust %v", result.FinalConfidence, result.BaseTrust)
	}

	// similarity 0.85 x trust 0.75 x 0.1 damping
	wantBoost := 0.85 * 0.75 * 0.1
	if diff := result.CorroborationScore - wantBoost; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("corroboration score %v, want %v", result.CorroborationScore, wantBoost)
	}
	if len(result.Matches) != 1 || result.Matches[0].EventID != "e1" {
		t.Errorf("recorded matches %+v, want e1", result.Matches)
	}
}

func TestVerifier_CorroborationCap(t *testing.T) {
	// Ten exact duplicates from the highest-trust source would contribute
	// 10 x 1.0 x 0.95 x 0.1 = 0.95 uncapped.
	var stored []model.StoredEvent
	for i := 0; i < 10; i++ {
		stored = append(stored, storedVinyasa(string(rune('a'+i)), "Morning Vinyasa Flow", "09:00", "mindbody-api"))
	}
	v := newTestVerifier(stored)

	result, err := v.Verify(context.Background(), vinyasa("community"), "")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	if result.CorroborationScore != 0.3 {
		t.Errorf("corroboration score %v, want capped 0.3", result.CorroborationScore)
	}
	if diff := result.FinalConfidence - 0.8; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("final confidence %v, want base 0.5 + cap 0.3", result.FinalConfidence)
	}
}

func TestVerifier_ConfidenceCeiling(t *testing.T) {
	var stored []model.StoredEvent
	for i := 0; i < 20; i++ {
		stored = append(stored, storedVinyasa(string(rune('a'+i)), "Morning Vinyasa Flow", "09:00", "mindbody-api"))
	}
	v := newTestVerifier(stored)

	result, err := v.Verify(context.Background(), vinyasa("mindbody-api"), "")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	if result.FinalConfidence != 0.99 {
		t.Errorf("final confidence %v, want ceiling 0.99", result.FinalConfidence)
	}
}

func TestVerifier_MonotonicCorroboration(t *testing.T) {
	base := []model.StoredEvent{
		storedVinyasa("e1", "Morning Vinyasa", "09:15", "scrape-generic"),
	}
	withExtra := append([]model.StoredEvent{
		storedVinyasa("e2", "Morning Vinyasa Flow", "09:00", "mindbody-api"),
	}, base...)

	candidate := vinyasa("community")

	without, err := newTestVerifier(base).Verify(context.Background(), candidate, "")
	if err != nil {
		t.Fatalf("Verify without extra match: %v", err)
	}
	with, err := newTestVerifier(withExtra).Verify(context.Background(), candidate, "")
	if err != nil {
		t.Fatalf("Verify with extra match: %v", err)
	}

	if with.FinalConfidence < without.FinalConfidence {
		t.Errorf("adding a higher-trust match decreased confidence: %v -> %v",
			without.FinalConfidence, with.FinalConfidence)
	}
}

func TestVerifier_IdempotentReVerification(t *testing.T) {
	v := newTestVerifier([]model.StoredEvent{
		storedVinyasa("e1", "Morning Vinyasa", "09:15", "firecrawl-aggregator"),
		storedVinyasa("e2", "Vinyasa Flow", "09:30", "allevents"),
	})

	candidate := vinyasa("city-recreation")

	first, err := v.Verify(context.Background(), candidate, "")
	if err != nil {
		t.Fatalf("first Verify: %v", err)
	}
	second, err := v.Verify(context.Background(), candidate, "")
	if err != nil {
		t.Fatalf("second Verify: %v", err)
	}

	if first.FinalConfidence != second.FinalConfidence {
		t.Errorf("re-verification changed confidence: %v != %v", first.FinalConfidence, second.FinalConfidence)
	}
}

func TestVerifier_Decision(t *testing.T) {
	v := newTestVerifier(nil)

	tests := []struct {
		confidence float64
		want       model.Decision
	}{
		{0.90, model.DecisionApprove},
		{0.85, model.DecisionApprove},
		{0.70, model.DecisionReview},
		{0.60, model.DecisionReview},
		{0.30, model.DecisionReject},
	}

	for _, tt := range tests {
		if got := v.Decision(tt.confidence); got != tt.want {
			t.Errorf("Decision(%v) = %v, want %v", tt.confidence, got, tt.want)
		}
	}
}
