package verify

import (
	"context"
	"fmt"
	"time"

	"github.com/jeffkirdeikis/pulse-verify/internal/model"
	"github.com/jeffkirdeikis/pulse-verify/internal/worker"
)

// backendKey identifies the shared rate budget all sweep items draw from
const backendKey = "verification"

// EventStore is the write surface the sweep needs
type EventStore interface {
	UnverifiedEvents(ctx context.Context, limit int) ([]model.StoredEvent, error)
	UpdateVerification(ctx context.Context, id string, confidence float64, verifiedAt time.Time, sources []model.SourceMatch) error
}

// Sweep runs batch verification over unverified stored events. Each item is
// a complete, independent unit: a failure is logged and skipped, and
// cancellation between items leaves the store consistent.
type Sweep struct {
	store    EventStore
	verifier *Verifier
	pacer    *worker.Pacer
	workers  int
	limit    int
	nowFunc  func() time.Time
	logf     func(format string, args ...any)
}

// SweepStats summarizes one sweep run
type SweepStats struct {
	Processed int
	Skipped   int
	Approve   int
	Review    int
	Reject    int
}

// NewSweep creates a batch verification sweep
func NewSweep(store EventStore, verifier *Verifier, pacer *worker.Pacer, cfg model.SweepConfig) *Sweep {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	return &Sweep{
		store:    store,
		verifier: verifier,
		pacer:    pacer,
		workers:  workers,
		limit:    500,
		nowFunc:  time.Now,
		logf:     func(string, ...any) {},
	}
}

// WithLogger directs per-item progress and skip messages
func (s *Sweep) WithLogger(logf func(format string, args ...any)) *Sweep {
	s.logf = logf
	return s
}

type itemOutcome struct {
	decision model.Decision
	skipped  bool
}

// Run verifies all unverified events, persisting confidence, verifiedAt, and
// the corroborating source list for each. Returns stats plus ctx.Err() when
// interrupted.
func (s *Sweep) Run(ctx context.Context) (*SweepStats, error) {
	events, err := s.store.UnverifiedEvents(ctx, s.limit)
	if err != nil {
		return nil, fmt.Errorf("list unverified events: %w", err)
	}

	pool := worker.NewPool(s.workers, s.verifyOne)
	outcomes := pool.Run(ctx, events)

	stats := &SweepStats{}
	for _, out := range outcomes {
		// A zero-value slot means the pool never fed the item (cancellation).
		if out.skipped || out.decision == "" {
			stats.Skipped++
			continue
		}
		stats.Processed++
		switch out.decision {
		case model.DecisionApprove:
			stats.Approve++
		case model.DecisionReview:
			stats.Review++
		case model.DecisionReject:
			stats.Reject++
		}
	}

	return stats, ctx.Err()
}

func (s *Sweep) verifyOne(ctx context.Context, ev model.StoredEvent) itemOutcome {
	if err := s.pacer.Wait(ctx, backendKey); err != nil {
		return itemOutcome{skipped: true}
	}

	result, err := s.verifier.Verify(ctx, ev.CandidateEvent, ev.ID)
	if err != nil {
		// Per-item failure must not abort the batch
		s.logf("skip %s (%s): %v", ev.ID, ev.Title, err)
		return itemOutcome{skipped: true}
	}

	if err := s.store.UpdateVerification(ctx, ev.ID, result.FinalConfidence, s.nowFunc(), result.Matches); err != nil {
		s.logf("skip %s (%s): persist: %v", ev.ID, ev.Title, err)
		return itemOutcome{skipped: true}
	}

	s.logf("verified %s (%s): confidence %.2f, %d matches, %s",
		ev.ID, ev.Title, result.FinalConfidence, result.MatchCount, result.Decision)

	return itemOutcome{decision: result.Decision}
}
