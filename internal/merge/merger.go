// Package merge reconciles confirmed duplicate event records into one
// authoritative record.
package merge

import (
	"context"

	"github.com/jeffkirdeikis/pulse-verify/internal/extract"
	"github.com/jeffkirdeikis/pulse-verify/internal/model"
	"github.com/jeffkirdeikis/pulse-verify/internal/trust"
)

// MultiSourceAnnotation tags records assembled from more than one source
const MultiSourceAnnotation = "multi-source-verified"

// Reconciler is the free-text reconciliation capability of the extractor
type Reconciler interface {
	ReconcileDuplicates(ctx context.Context, events []model.CandidateEvent) (*extract.Reconciliation, error)
}

// Merger combines duplicate records, preferring higher-trust sources.
// Merge never fails and never drops all records: when reconciliation is
// unavailable it falls back to the single highest-trust input unchanged.
type Merger struct {
	reconciler Reconciler
	trust      *trust.Table
}

// Result is the outcome of one merge
type Result struct {
	Event         model.CandidateEvent `json:"event"`
	MergedSources []string             `json:"merged_sources,omitempty"`
	Rationale     string               `json:"rationale,omitempty"`
	Fallback      bool                 `json:"fallback,omitempty"` // True when reconciliation failed
}

// NewMerger creates a merger. reconciler may be nil (always falls back).
func NewMerger(reconciler Reconciler, table *trust.Table) *Merger {
	return &Merger{reconciler: reconciler, trust: table}
}

// Merge combines records already confirmed as duplicates. A single record is
// returned unchanged; an empty input yields an empty result.
func (m *Merger) Merge(ctx context.Context, events []model.CandidateEvent) Result {
	if len(events) == 0 {
		return Result{}
	}
	if len(events) == 1 {
		return Result{Event: events[0]}
	}

	if m.reconciler != nil {
		rec, err := m.reconciler.ReconcileDuplicates(ctx, events)
		if err == nil {
			merged := rec.Merged
			merged.SourceTag = m.highestTrust(events).SourceTag
			merged = merged.Annotate(MultiSourceAnnotation)

			sources := rec.SourceTags
			if len(sources) == 0 {
				sources = sourceTags(events)
			}

			return Result{
				Event:         merged,
				MergedSources: sources,
				Rationale:     rec.Notes,
			}
		}
	}

	// Deterministic fallback: the record from the most trusted source wins,
	// unchanged.
	best := m.highestTrust(events)
	return Result{
		Event:         best,
		MergedSources: []string{best.SourceTag},
		Rationale:     "reconciliation unavailable; kept highest-trust source " + best.SourceTag,
		Fallback:      true,
	}
}

// highestTrust picks the record whose source has the highest base trust,
// first wins on ties
func (m *Merger) highestTrust(events []model.CandidateEvent) model.CandidateEvent {
	best := events[0]
	bestTrust := m.trust.Lookup(best.SourceTag)

	for _, ev := range events[1:] {
		if t := m.trust.Lookup(ev.SourceTag); t > bestTrust {
			best = ev
			bestTrust = t
		}
	}
	return best
}

func sourceTags(events []model.CandidateEvent) []string {
	seen := make(map[string]bool)
	var tags []string
	for _, ev := range events {
		if ev.SourceTag != "" && !seen[ev.SourceTag] {
			seen[ev.SourceTag] = true
			tags = append(tags, ev.SourceTag)
		}
	}
	return tags
}
