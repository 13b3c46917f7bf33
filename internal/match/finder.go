package match

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/jeffkirdeikis/pulse-verify/internal/cache"
	"github.com/jeffkirdeikis/pulse-verify/internal/model"
)

// EventSource is the event-store query surface the finder needs. Pure reads.
type EventSource interface {
	// EventsBetween returns stored events with from <= start_date <= to
	EventsBetween(ctx context.Context, from, to string) ([]model.StoredEvent, error)
}

// Finder searches a bounded date window around a candidate's date and ranks
// stored events by similarity. No side effects.
type Finder struct {
	source     EventSource
	threshold  float64
	windowDays int
	cache      cache.Cache
	cacheTTL   time.Duration
}

// NewFinder creates a finder with the configured match threshold and window
func NewFinder(source EventSource, cfg model.ThresholdConfig) *Finder {
	threshold := cfg.MatchThreshold
	if threshold <= 0 {
		threshold = 0.6
	}
	windowDays := cfg.MatchWindowDays
	if windowDays <= 0 {
		windowDays = 1
	}

	return &Finder{
		source:     source,
		threshold:  threshold,
		windowDays: windowDays,
	}
}

// WithCache enables window-query caching for batch sweeps, where consecutive
// items frequently share a date window.
func (f *Finder) WithCache(c cache.Cache, ttl time.Duration) *Finder {
	f.cache = c
	f.cacheTTL = ttl
	return f
}

// FindMatches returns all stored events within ±windowDays of the candidate's
// date scoring at or above the match threshold, sorted descending by
// similarity. excludeID keeps an already-stored event from matching itself.
func (f *Finder) FindMatches(ctx context.Context, candidate model.CandidateEvent, excludeID string) ([]model.MatchResult, error) {
	day, err := time.Parse("2006-01-02", candidate.StartDate)
	if err != nil {
		return nil, fmt.Errorf("invalid candidate date %q: %w", candidate.StartDate, err)
	}

	from := day.AddDate(0, 0, -f.windowDays).Format("2006-01-02")
	to := day.AddDate(0, 0, f.windowDays).Format("2006-01-02")

	stored, err := f.windowEvents(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("query window [%s, %s]: %w", from, to, err)
	}

	var matches []model.MatchResult
	for _, ev := range stored {
		if excludeID != "" && ev.ID == excludeID {
			continue
		}
		sim := Similarity(candidate, ev.CandidateEvent)
		if sim >= f.threshold {
			matches = append(matches, model.MatchResult{Event: ev, Similarity: sim})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	return matches, nil
}

// windowEvents queries the store, going through the cache when enabled
func (f *Finder) windowEvents(ctx context.Context, from, to string) ([]model.StoredEvent, error) {
	if f.cache == nil {
		return f.source.EventsBetween(ctx, from, to)
	}

	key := cache.Key(from + "|" + to)
	if data, found := f.cache.Get(key); found {
		var events []model.StoredEvent
		if err := json.Unmarshal(data, &events); err == nil {
			return events, nil
		}
		// Corrupt entry: drop it and fall through to the store
		_ = f.cache.Delete(key)
	}

	events, err := f.source.EventsBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(events); err == nil {
		_ = f.cache.Set(key, data, f.cacheTTL)
	}

	return events, nil
}
