package trust

import (
	"testing"

	"github.com/jeffkirdeikis/pulse-verify/internal/model"
)

func TestTable_Lookup(t *testing.T) {
	table := NewTable(model.TrustConfig{
		Scores: map[string]float64{
			"mindbody-api": 0.95,
			"community":    0.50,
		},
		Floor: 0.40,
	})

	tests := []struct {
		tag  string
		want float64
	}{
		{"mindbody-api", 0.95},
		{"MindBody-API", 0.95}, // tags normalize case
		{" community ", 0.50},
		{"never-seen-before", 0.40},
		{"", 0.40},
	}

	for _, tt := range tests {
		if got := table.Lookup(tt.tag); got != tt.want {
			t.Errorf("Lookup(%q) = %v, want %v", tt.tag, got, tt.want)
		}
	}
}

func TestTable_DefaultScoresTiers(t *testing.T) {
	table := NewTable(model.DefaultConfig().Trust)

	// Vendor APIs outrank aggregators, which outrank scrapes, which outrank
	// the unknown floor.
	vendor := table.Lookup("mindbody-api")
	aggregator := table.Lookup("firecrawl-aggregator")
	scrape := table.Lookup("scrape-generic")
	unknown := table.Lookup("mystery-source")

	if !(vendor > aggregator && aggregator > scrape && scrape > unknown) {
		t.Errorf("tier ordering violated: vendor=%v aggregator=%v scrape=%v unknown=%v",
			vendor, aggregator, scrape, unknown)
	}

	if verified, unverified := table.Lookup("community-verified"), table.Lookup("community"); verified <= unverified {
		t.Errorf("community-verified (%v) should outrank community (%v)", verified, unverified)
	}
}

func TestTable_FeedbackDoesNotChangeScores(t *testing.T) {
	table := NewTable(model.DefaultConfig().Trust)

	before := table.Lookup("scrape-generic")
	for i := 0; i < 10; i++ {
		table.RecordFeedback("scrape-generic", false)
	}
	if after := table.Lookup("scrape-generic"); after != before {
		t.Errorf("feedback changed trust synchronously: %v -> %v", before, after)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		tag  string
		want model.SourceKind
	}{
		{"mindbody-api", model.SourceVendorAPI},
		{"City-Recreation", model.SourceMunicipal},
		{"allevents", model.SourceAggregator},
		{"scrape-venue-site", model.SourceScrape},
		{"scrape-anything-new", model.SourceScrape},
		{"community", model.SourceCommunity},
		{"community-verified", model.SourceCommunity},
		{"mystery-feed", model.SourceUnknown},
		{"", model.SourceUnknown},
	}

	for _, tt := range tests {
		if got := KindOf(tt.tag); got != tt.want {
			t.Errorf("KindOf(%q) = %s, want %s", tt.tag, got, tt.want)
		}
	}
}

func TestTable_FeedbackTallies(t *testing.T) {
	table := NewTable(model.DefaultConfig().Trust)

	table.RecordFeedback("allevents", true)
	table.RecordFeedback("allevents", true)
	table.RecordFeedback("allevents", false)
	table.RecordFeedback("library-feed", true)

	feedback := table.Feedback()

	acc := feedback["allevents"]
	if acc.Accurate != 2 || acc.Inaccurate != 1 {
		t.Errorf("allevents tallies = %+v, want 2 accurate / 1 inaccurate", acc)
	}
	if rate := acc.Rate(); rate < 0.66 || rate > 0.67 {
		t.Errorf("allevents rate = %v, want ~0.667", rate)
	}

	if rate := (Accuracy{}).Rate(); rate != -1 {
		t.Errorf("empty accuracy rate = %v, want -1", rate)
	}
}
