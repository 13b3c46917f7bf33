package match

import (
	"strings"
	"time"

	"github.com/jeffkirdeikis/pulse-verify/internal/model"
)

// Per-dimension point budgets out of 100. A weighted sum, not an average:
// each dimension contributes an absolute share so a missing optional field
// costs exactly its budget and nothing more.
const (
	titleExactPoints   = 30
	titleContainPoints = 20
	titleWordPoints    = 5
	titleWordCap       = 15

	// Date is binary: a genuine duplicate essentially always shares its
	// calendar date, and partial credit would conflate a weekly recurring
	// class with its own duplicate.
	dateExactPoints = 30

	timeExactPoints    = 20
	timeWithin30Points = 15
	timeWithin60Points = 10

	venueExactPoints   = 20
	venueContainPoints = 15

	totalPoints = 100
)

// Similarity computes a 0..1 similarity between two event-like records using
// weighted field comparison. Pure and symmetric; an event is always fully
// similar to itself (absent optional fields count as mutually matching).
func Similarity(a, b model.CandidateEvent) float64 {
	points := titleScore(a.Title, b.Title) +
		dateScore(a.StartDate, b.StartDate) +
		timeScore(a.StartTime, b.StartTime) +
		venueScore(a.VenueName, b.VenueName)

	return float64(points) / totalPoints
}

// titleScore tolerates "Yoga Flow" vs "Yoga Flow with Jane" via containment
func titleScore(a, b string) int {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))

	if a == b {
		return titleExactPoints
	}
	if a == "" || b == "" {
		return 0
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return titleContainPoints
	}

	score := wordOverlap(a, b) * titleWordPoints
	if score > titleWordCap {
		score = titleWordCap
	}
	return score
}

func dateScore(a, b string) int {
	if a != "" && a == b {
		return dateExactPoints
	}
	return 0
}

// timeScore gives proximity credit in 30-minute bands. Two records that both
// omit a time count as matching; one-sided times contribute nothing.
func timeScore(a, b string) int {
	if a == "" && b == "" {
		return timeExactPoints
	}
	if a == "" || b == "" {
		return 0
	}

	ta, errA := time.Parse("15:04", a)
	tb, errB := time.Parse("15:04", b)
	if errA != nil || errB != nil {
		return 0
	}

	diff := ta.Sub(tb)
	if diff < 0 {
		diff = -diff
	}

	switch {
	case diff == 0:
		return timeExactPoints
	case diff <= 30*time.Minute:
		return timeWithin30Points
	case diff <= 60*time.Minute:
		return timeWithin60Points
	default:
		return 0
	}
}

func venueScore(a, b string) int {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))

	if a == b {
		return venueExactPoints
	}
	if a == "" || b == "" {
		return 0
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return venueContainPoints
	}
	return 0
}

// wordOverlap counts distinct words present in both titles
func wordOverlap(a, b string) int {
	wordsA := make(map[string]bool)
	for _, w := range strings.Fields(a) {
		wordsA[w] = true
	}

	seen := make(map[string]bool)
	count := 0
	for _, w := range strings.Fields(b) {
		if wordsA[w] && !seen[w] {
			seen[w] = true
			count++
		}
	}
	return count
}
