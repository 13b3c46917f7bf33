package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jeffkirdeikis/pulse-verify/internal/merge"
	"github.com/jeffkirdeikis/pulse-verify/internal/model"
	"github.com/spf13/cobra"
)

var (
	mergeDryRun  bool
	mergeTimeout time.Duration
)

// mergeCmd reconciles a stored event with its duplicates
var mergeCmd = &cobra.Command{
	Use:   "merge <event-id>",
	Short: "Merge an event with its duplicates from other sources",
	Long: `Merge finds stored events that duplicate the given one (similarity at
or above the match threshold, within the date window) and reconciles
them into a single record tagged multi-source-verified.

With an LLM backend configured, the most complete value is chosen per
field; without one, the record from the most trusted source is kept
unchanged. The merged record replaces the originals, which are
archived.

Example:
  pulse-verify merge 2f1c9a7e-... --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runMerge,
}

func init() {
	rootCmd.AddCommand(mergeCmd)

	mergeCmd.Flags().BoolVar(&mergeDryRun, "dry-run", false, "print the merged record without storing it")
	mergeCmd.Flags().DurationVar(&mergeTimeout, "timeout", 2*time.Minute, "merge timeout")
}

func runMerge(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), mergeTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	c, err := buildComponents(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	event, err := c.store.GetEvent(ctx, args[0])
	if err != nil {
		return fmt.Errorf("load event: %w", err)
	}

	matches, err := c.finder.FindMatches(ctx, event.CandidateEvent, event.ID)
	if err != nil {
		return fmt.Errorf("find duplicates: %w", err)
	}
	if len(matches) == 0 {
		fmt.Fprintf(os.Stderr, "No duplicates found for %s (%s)\n", event.ID, event.Title)
		return nil
	}

	records := []model.CandidateEvent{event.CandidateEvent}
	sourceIDs := []string{event.ID}
	for _, m := range matches {
		records = append(records, m.Event.CandidateEvent)
		sourceIDs = append(sourceIDs, m.Event.ID)
		fmt.Fprintf(os.Stderr, "duplicate %s (%s, %s, similarity %.2f)\n",
			m.Event.ID, m.Event.Title, m.Event.SourceTag, m.Similarity)
	}

	merger := merge.NewMerger(c.extract, c.trust)
	result := merger.Merge(ctx, records)

	fmt.Printf("%s  %s %s  %s  [%s]\n",
		result.Event.Title, result.Event.StartDate, result.Event.StartTime,
		result.Event.VenueName, result.Event.SourceTag)
	if result.Rationale != "" {
		fmt.Fprintf(os.Stderr, "Rationale: %s\n", result.Rationale)
	}
	if result.Fallback {
		fmt.Fprintf(os.Stderr, "Reconciliation unavailable; kept the highest-trust record\n")
	}

	if mergeDryRun {
		return nil
	}

	confidence := event.ConfidenceScore
	for _, m := range matches {
		if m.Event.ConfidenceScore > confidence {
			confidence = m.Event.ConfidenceScore
		}
	}

	mergedID, err := c.store.InsertEvent(ctx, model.StoredEvent{
		CandidateEvent:  result.Event,
		Status:          model.StatusActive,
		ConfidenceScore: confidence,
	})
	if err != nil {
		return fmt.Errorf("store merged event: %w", err)
	}

	for _, id := range sourceIDs {
		if err := c.store.UpdateEventStatus(ctx, id, model.StatusArchived); err != nil {
			return fmt.Errorf("archive %s: %w", id, err)
		}
	}

	fmt.Fprintf(os.Stderr, "Merged %d records into %s, sources archived\n", len(records), mergedID)
	return nil
}
