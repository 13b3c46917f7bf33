package merge

import (
	"context"
	"errors"
	"testing"

	"github.com/jeffkirdeikis/pulse-verify/internal/extract"
	"github.com/jeffkirdeikis/pulse-verify/internal/model"
	"github.com/jeffkirdeikis/pulse-verify/internal/trust"
)

type fakeReconciler struct {
	rec   *extract.Reconciliation
	err   error
	calls int
}

func (f *fakeReconciler) ReconcileDuplicates(ctx context.Context, events []model.CandidateEvent) (*extract.Reconciliation, error) {
	f.calls++
	return f.rec, f.err
}

func defaultTable() *trust.Table {
	return trust.NewTable(model.DefaultConfig().Trust)
}

func marketFrom(source, startTime string) model.CandidateEvent {
	return model.CandidateEvent{
		Title:     "Farmers Market",
		StartDate: "2025-06-14",
		StartTime: startTime,
		VenueName: "Town Square",
		SourceTag: source,
	}
}

func TestMerge_EmptyAndSingle(t *testing.T) {
	m := NewMerger(&fakeReconciler{}, defaultTable())

	if got := m.Merge(context.Background(), nil); got.Event.Title != "" {
		t.Errorf("empty input produced a record: %+v", got)
	}

	single := marketFrom("community", "08:00")
	got := m.Merge(context.Background(), []model.CandidateEvent{single})
	if got.Event.Title != single.Title || got.Fallback {
		t.Errorf("single record not passed through unchanged: %+v", got)
	}
	if got.Event.HasAnnotation(MultiSourceAnnotation) {
		t.Errorf("single record must not be tagged multi-source")
	}
}

func TestMerge_ReconciledRecord(t *testing.T) {
	reconciler := &fakeReconciler{
		rec: &extract.Reconciliation{
			Merged: model.CandidateEvent{
				Title:     "Farmers Market",
				StartDate: "2025-06-14",
				StartTime: "08:00",
				VenueName: "Town Square",
			},
			SourceTags: []string{"city-recreation", "scrape-generic"},
			Notes:      "kept the earlier start time",
		},
	}
	m := NewMerger(reconciler, defaultTable())

	result := m.Merge(context.Background(), []model.CandidateEvent{
		marketFrom("scrape-generic", "08:30"),
		marketFrom("city-recreation", "08:00"),
	})

	if result.Fallback {
		t.Fatal("reconciliation succeeded but result is marked fallback")
	}
	if !result.Event.HasAnnotation(MultiSourceAnnotation) {
		t.Errorf("merged record missing %q annotation", MultiSourceAnnotation)
	}
	// The merged record is attributed to the most trusted contributor.
	if result.Event.SourceTag != "city-recreation" {
		t.Errorf("source tag %q, want highest-trust contributor", result.Event.SourceTag)
	}
	if len(result.MergedSources) != 2 {
		t.Errorf("merged sources %v, want both contributors", result.MergedSources)
	}
	if result.Rationale != "kept the earlier start time" {
		t.Errorf("rationale %q, want reconciliation notes", result.Rationale)
	}
}

func TestMerge_FallbackOnReconcilerError(t *testing.T) {
	m := NewMerger(&fakeReconciler{err: errors.New("backend down")}, defaultTable())

	inputs := []model.CandidateEvent{
		marketFrom("community", "08:30"),
		marketFrom("mindbody-api", "08:00"),
		marketFrom("scrape-generic", "09:00"),
	}
	result := m.Merge(context.Background(), inputs)

	if !result.Fallback {
		t.Fatal("reconciler failure should produce a fallback result")
	}
	if result.Event.SourceTag != "mindbody-api" {
		t.Errorf("fallback kept %q, want the highest-trust source", result.Event.SourceTag)
	}
	if result.Event.StartTime != "08:00" {
		t.Errorf("fallback record was altered: %+v", result.Event)
	}
	if result.Event.HasAnnotation(MultiSourceAnnotation) {
		t.Errorf("fallback record must not claim multi-source verification")
	}
}

func TestMerge_NilReconcilerFallsBack(t *testing.T) {
	m := NewMerger(nil, defaultTable())

	result := m.Merge(context.Background(), []model.CandidateEvent{
		marketFrom("scrape-generic", "08:30"),
		marketFrom("city-recreation", "08:00"),
	})

	if !result.Fallback || result.Event.SourceTag != "city-recreation" {
		t.Errorf("nil reconciler: got %+v, want highest-trust fallback", result)
	}
}

func TestMerge_TieFirstWins(t *testing.T) {
	m := NewMerger(nil, defaultTable())

	first := marketFrom("unknown-a", "08:00")
	second := marketFrom("unknown-b", "09:00")
	result := m.Merge(context.Background(), []model.CandidateEvent{first, second})

	// Both unknown sources sit at the trust floor; the first record wins.
	if result.Event.SourceTag != "unknown-a" {
		t.Errorf("tie broken to %q, want first input", result.Event.SourceTag)
	}
}
