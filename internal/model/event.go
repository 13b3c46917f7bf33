package model

import "time"

// SourceKind classifies where an event record came from
type SourceKind string

const (
	SourceVendorAPI  SourceKind = "vendor_api"  // Direct vendor APIs (Mindbody, Eventbrite)
	SourceMunicipal  SourceKind = "municipal"   // Official municipal/tourism widgets
	SourceAggregator SourceKind = "aggregator"  // Third-party aggregators
	SourceScrape     SourceKind = "scrape"      // General web scraping
	SourceCommunity  SourceKind = "community"   // User submissions
	SourceUnknown    SourceKind = "unknown"     // Unrecognized provenance
)

// EventStatus is the lifecycle state of a stored event
type EventStatus string

const (
	StatusActive   EventStatus = "active"
	StatusFlagged  EventStatus = "flagged"  // Pulled from default listings, awaiting admin review
	StatusArchived EventStatus = "archived"
)

// CandidateEvent is an unverified event record produced by extraction or a
// community submission. Title and StartDate are always present; records
// without both are discarded at the extraction boundary, not emitted.
// Dates are ISO calendar dates ("2006-01-02"), times 24h "15:04" local.
type CandidateEvent struct {
	Title          string   `json:"title"`
	StartDate      string   `json:"start_date"`
	StartTime      string   `json:"start_time,omitempty"`
	EndTime        string   `json:"end_time,omitempty"`
	VenueName      string   `json:"venue_name,omitempty"`
	VenueAddress   string   `json:"venue_address,omitempty"`
	Price          string   `json:"price,omitempty"` // Free-form: "25", "Free", "$15-$20"
	Category       string   `json:"category,omitempty"`
	Description    string   `json:"description,omitempty"`
	Instructor     string   `json:"instructor,omitempty"`
	SourceTag      string   `json:"source_tag"`
	ConfidenceHint float64  `json:"confidence_hint,omitempty"` // Extractor's own 0..1 estimate
	Flag           string   `json:"flag,omitempty"`            // Extractor-raised suspicion, e.g. implausible time
	Annotations    []string `json:"annotations,omitempty"`     // Ordered provenance notes ("ai-corrected", ...)
}

// Annotate returns a copy of the event with an extra provenance note.
// Candidate records are never mutated in place.
func (e CandidateEvent) Annotate(note string) CandidateEvent {
	annotated := e
	annotated.Annotations = append(append([]string(nil), e.Annotations...), note)
	return annotated
}

// HasAnnotation reports whether a provenance note is present.
func (e CandidateEvent) HasAnnotation(note string) bool {
	for _, a := range e.Annotations {
		if a == note {
			return true
		}
	}
	return false
}

// StoredEvent is a CandidateEvent that has been assigned an identity in the
// event store.
type StoredEvent struct {
	ID                    string        `json:"id"`
	CandidateEvent
	Status                EventStatus   `json:"status"`
	ConfidenceScore       float64       `json:"confidence_score"`
	VerifiedAt            *time.Time    `json:"verified_at,omitempty"`
	VerificationSources   []SourceMatch `json:"verification_sources,omitempty"`
	CommunitySubmissionID string        `json:"community_submission_id,omitempty"`
	CreatedAt             time.Time     `json:"created_at"`
}

// SourceMatch records one corroborating source at verification time
type SourceMatch struct {
	SourceTag  string  `json:"source_tag"`
	EventID    string  `json:"event_id"`
	Similarity float64 `json:"similarity"`
	Trust      float64 `json:"trust"`
}

// MatchResult pairs a candidate with a stored event it resembles.
// Transient: recomputed on demand, never persisted.
type MatchResult struct {
	Event      StoredEvent `json:"event"`
	Similarity float64     `json:"similarity"`
}

// VerificationResult is the transparent breakdown of one verification pass
type VerificationResult struct {
	BaseTrust          float64       `json:"base_trust"`
	MatchCount         int           `json:"match_count"`
	CorroborationScore float64       `json:"corroboration_score"`
	FinalConfidence    float64       `json:"final_confidence"`
	Decision           Decision      `json:"decision"`
	Matches            []SourceMatch `json:"matches,omitempty"`
	Details            []string      `json:"details,omitempty"`
}

// Decision is the confidence-based routing outcome
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReview  Decision = "review"
	DecisionReject  Decision = "reject"
)
