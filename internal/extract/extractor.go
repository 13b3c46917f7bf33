package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jeffkirdeikis/pulse-verify/internal/llm"
	"github.com/jeffkirdeikis/pulse-verify/internal/model"
)

// maxContentChars bounds how much page text goes into one prompt
const maxContentChars = 12000

// Extractor turns raw page content into structured candidate events through
// an LLM backend, and provides the single-record validation and multi-record
// reconciliation capabilities built on the same backend.
type Extractor struct {
	provider llm.Provider
	nowFunc  func() time.Time // injectable for year-inference tests
}

// NewExtractor creates an extractor over the given backend
func NewExtractor(provider llm.Provider) *Extractor {
	return &Extractor{
		provider: provider,
		nowFunc:  time.Now,
	}
}

// ExtractionResult is the output of one extraction pass
type ExtractionResult struct {
	Events []model.CandidateEvent `json:"events"`
	Notes  string                 `json:"extraction_notes,omitempty"`
}

// Validation is the backend's judgment of a single candidate against nearby
// stored events.
type Validation struct {
	IsValid        bool              `json:"is_valid"`
	Confidence     float64           `json:"confidence"`
	Issues         []string          `json:"issues,omitempty"`
	SuggestedFixes map[string]string `json:"suggested_fixes,omitempty"`
	IsDuplicateOf  string            `json:"is_duplicate_of,omitempty"`
	Reasoning      string            `json:"reasoning,omitempty"`
}

// Reconciliation is the backend's field-by-field merge of confirmed duplicates
type Reconciliation struct {
	Merged     model.CandidateEvent `json:"merged_event"`
	SourceTags []string             `json:"source_ids"`
	Notes      string               `json:"merge_notes,omitempty"`
}

// wire shape for extraction replies
type extractionPayload struct {
	Events []struct {
		model.CandidateEvent
		Confidence float64 `json:"confidence"`
	} `json:"events"`
	ExtractionNotes string `json:"extraction_notes"`
}

// ExtractEvents extracts candidate events from raw page content. venueName,
// when known, anchors the extraction and filters out the venue itself being
// mis-read as an event. A backend transport error is returned to the caller
// (batch sweeps skip and continue); an unparsable reply is a soft failure:
// empty result with Notes set, never an error.
func (e *Extractor) ExtractEvents(ctx context.Context, content, sourceURL, venueName, sourceTag string) (*ExtractionResult, error) {
	if e.provider == nil {
		return nil, fmt.Errorf("no extraction backend configured")
	}

	text := VisibleText(content)
	if len(text) > maxContentChars {
		text = text[:maxContentChars]
	}

	resp, err := e.provider.Complete(ctx, llm.CompletionRequest{
		System: "You are an event data extractor for a local community directory. You respond with a single JSON object and nothing else.",
		Prompt: buildExtractPrompt(text, sourceURL, venueName),
	})
	if err != nil {
		return nil, fmt.Errorf("extraction backend: %w", err)
	}

	raw, ok := FirstJSONObject(resp.Text)
	if !ok {
		return &ExtractionResult{Notes: "Parse failed"}, nil
	}

	var payload extractionPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return &ExtractionResult{Notes: "Parse failed"}, nil
	}

	result := &ExtractionResult{Notes: payload.ExtractionNotes}
	for _, entry := range payload.Events {
		ev := entry.CandidateEvent

		// An extraction with no title or no date is discarded, not emitted.
		ev.Title = strings.TrimSpace(ev.Title)
		if ev.Title == "" {
			continue
		}
		date, ok := normalizeDate(ev.StartDate, e.nowFunc())
		if !ok {
			continue
		}
		ev.StartDate = date

		// A "title" that is just the venue name is the page header leaking
		// through, not a real event. Dropped entirely.
		if venueName != "" && strings.EqualFold(ev.Title, strings.TrimSpace(venueName)) {
			continue
		}

		ev.SourceTag = sourceTag
		ev.ConfidenceHint = clamp01(entry.Confidence)
		result.Events = append(result.Events, ev)
	}

	return result, nil
}

// ValidateCandidate judges one candidate against nearby stored events.
// Backend failure is deliberately neutral: valid at confidence 0.5 so routing
// lands in the review queue instead of silently approving or rejecting.
func (e *Extractor) ValidateCandidate(ctx context.Context, candidate model.CandidateEvent, nearby []model.StoredEvent) *Validation {
	if e.provider == nil {
		return neutralValidation()
	}

	resp, err := e.provider.Complete(ctx, llm.CompletionRequest{
		System: "You validate community-submitted events for a local directory. You respond with a single JSON object and nothing else.",
		Prompt: buildValidatePrompt(candidate, nearby),
	})
	if err != nil {
		return neutralValidation()
	}

	raw, ok := FirstJSONObject(resp.Text)
	if !ok {
		return neutralValidation()
	}

	var v Validation
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return neutralValidation()
	}

	v.Confidence = clamp01(v.Confidence)
	return &v
}

// ReconcileDuplicates asks the backend to pick the most complete and accurate
// value per field across confirmed duplicates. Unlike extraction, failure is
// returned as an error so the merger can apply its deterministic fallback.
func (e *Extractor) ReconcileDuplicates(ctx context.Context, events []model.CandidateEvent) (*Reconciliation, error) {
	if e.provider == nil {
		return nil, fmt.Errorf("no extraction backend configured")
	}

	resp, err := e.provider.Complete(ctx, llm.CompletionRequest{
		System: "You reconcile duplicate event records from multiple sources into one authoritative record. You respond with a single JSON object and nothing else.",
		Prompt: buildReconcilePrompt(events),
	})
	if err != nil {
		return nil, fmt.Errorf("reconciliation backend: %w", err)
	}

	raw, ok := FirstJSONObject(resp.Text)
	if !ok {
		return nil, fmt.Errorf("reconciliation: no JSON object in response")
	}

	var rec Reconciliation
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("reconciliation: %w", err)
	}

	if strings.TrimSpace(rec.Merged.Title) == "" || rec.Merged.StartDate == "" {
		return nil, fmt.Errorf("reconciliation: merged record missing title or date")
	}

	return &rec, nil
}

// ApplyFixes returns a copy of the event with suggested field overrides
// applied. Keys match the JSON field names the backend sees.
func ApplyFixes(event model.CandidateEvent, fixes map[string]string) model.CandidateEvent {
	fixed := event
	for field, value := range fixes {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		switch field {
		case "title":
			fixed.Title = value
		case "start_date":
			fixed.StartDate = value
		case "start_time":
			fixed.StartTime = value
		case "end_time":
			fixed.EndTime = value
		case "venue_name":
			fixed.VenueName = value
		case "venue_address":
			fixed.VenueAddress = value
		case "price":
			fixed.Price = value
		case "category":
			fixed.Category = value
		case "description":
			fixed.Description = value
		case "instructor":
			fixed.Instructor = value
		}
	}
	return fixed
}

func neutralValidation() *Validation {
	return &Validation{
		IsValid:    true,
		Confidence: 0.5,
		Issues:     []string{"Validation failed"},
		Reasoning:  "Parse error",
	}
}

// dateLayouts are tried in order when normalizing extracted dates
var dateLayouts = []string{"2006-01-02", "2006/01/02", "January 2, 2006", "Jan 2, 2006", "January 2 2006"}

// yearlessLayouts cover sources that state only a month and day
var yearlessLayouts = []string{"01-02", "1-2", "January 2", "Jan 2"}

// normalizeDate normalizes an extracted date to "2006-01-02". When the source
// omits the year, the nearest future occurrence of the stated month/day is
// assumed: listings advertise upcoming events, not past ones.
func normalizeDate(raw string, now time.Time) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02"), true
		}
	}

	for _, layout := range yearlessLayouts {
		t, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		candidate := time.Date(now.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		if candidate.Before(today) {
			candidate = candidate.AddDate(1, 0, 0)
		}
		return candidate.Format("2006-01-02"), true
	}

	return "", false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
