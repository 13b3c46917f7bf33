package trust

import (
	"strings"
	"sync"

	"github.com/jeffkirdeikis/pulse-verify/internal/model"
)

// Table maps source tags to base trust scores in [0,1], with a conservative
// floor for unrecognized sources. Injected configuration, not a module-level
// singleton, so tests can substitute deterministic values. Lookup is a pure
// read; feedback is recorded for offline recalibration and never changes
// scores within a verification pass.
type Table struct {
	mu       sync.RWMutex
	scores   map[string]float64
	floor    float64
	feedback map[string]*Accuracy
}

// Accuracy tallies verification feedback for one source
type Accuracy struct {
	Accurate   int `json:"accurate"`
	Inaccurate int `json:"inaccurate"`
}

// Rate returns the observed accuracy rate, or -1 with no samples
func (a Accuracy) Rate() float64 {
	total := a.Accurate + a.Inaccurate
	if total == 0 {
		return -1
	}
	return float64(a.Accurate) / float64(total)
}

// NewTable creates a trust table from configuration
func NewTable(cfg model.TrustConfig) *Table {
	scores := make(map[string]float64, len(cfg.Scores))
	for tag, score := range cfg.Scores {
		scores[normalizeTag(tag)] = clamp01(score)
	}

	floor := cfg.Floor
	if floor <= 0 || floor > 1 {
		floor = 0.40
	}

	return &Table{
		scores:   scores,
		floor:    floor,
		feedback: make(map[string]*Accuracy),
	}
}

// Lookup returns the base trust for a source tag, falling back to the floor
// for anything unrecognized.
func (t *Table) Lookup(sourceTag string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if score, ok := t.scores[normalizeTag(sourceTag)]; ok {
		return score
	}
	return t.floor
}

// Floor returns the unknown-source trust floor
func (t *Table) Floor() float64 {
	return t.floor
}

// RecordFeedback records whether a source's record turned out accurate.
// Feedback only accumulates here; recalibration happens offline.
func (t *Table) RecordFeedback(sourceTag string, accurate bool) {
	tag := normalizeTag(sourceTag)

	t.mu.Lock()
	defer t.mu.Unlock()

	acc, ok := t.feedback[tag]
	if !ok {
		acc = &Accuracy{}
		t.feedback[tag] = acc
	}
	if accurate {
		acc.Accurate++
	} else {
		acc.Inaccurate++
	}
}

// Feedback returns a copy of the accumulated per-source accuracy tallies
func (t *Table) Feedback() map[string]Accuracy {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]Accuracy, len(t.feedback))
	for tag, acc := range t.feedback {
		out[tag] = *acc
	}
	return out
}

// KindOf classifies a source tag into its provenance tier. Tags outside the
// known set, including typos, land in SourceUnknown and get the trust floor.
func KindOf(sourceTag string) model.SourceKind {
	tag := normalizeTag(sourceTag)
	switch {
	case tag == "mindbody-api" || tag == "eventbrite-api" || tag == "wellnessliving":
		return model.SourceVendorAPI
	case tag == "city-recreation" || tag == "tourism-board" || tag == "library-feed":
		return model.SourceMunicipal
	case tag == "firecrawl-aggregator" || tag == "allevents" || tag == "eventful":
		return model.SourceAggregator
	case strings.HasPrefix(tag, "scrape-"):
		return model.SourceScrape
	case tag == "community" || tag == "community-verified":
		return model.SourceCommunity
	}
	return model.SourceUnknown
}

func normalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
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
