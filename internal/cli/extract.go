package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jeffkirdeikis/pulse-verify/internal/model"
	"github.com/spf13/cobra"
)

var (
	extractSourceURL string
	extractVenue     string
	extractSourceTag string
	extractDryRun    bool
	extractTimeout   time.Duration
)

// extractCmd turns scraped page content into unverified stored events
var extractCmd = &cobra.Command{
	Use:   "extract <content-file>",
	Short: "Extract candidate events from scraped page content",
	Long: `Extract reads raw page content (HTML or text) saved by a scraper and
turns it into candidate events through the extraction backend. Candidates
are stored unverified; run 'pulse-verify verify' afterwards to score them.

Navigation text, generic service descriptions, and page headers
mis-read as events are excluded. An unparsable backend reply yields
zero events with a note, not an error.

Example:
  pulse-verify extract page.html --source-url https://shalayoga.ca/schedule --venue "Shala Yoga" --source-tag scrape-venue-site`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVar(&extractSourceURL, "source-url", "", "URL the content was fetched from")
	extractCmd.Flags().StringVar(&extractVenue, "venue", "", "known venue name, if any")
	extractCmd.Flags().StringVar(&extractSourceTag, "source-tag", "scrape-generic", "provenance tag for extracted events")
	extractCmd.Flags().BoolVar(&extractDryRun, "dry-run", false, "print candidates without storing them")
	extractCmd.Flags().DurationVar(&extractTimeout, "timeout", 2*time.Minute, "extraction timeout")
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), extractTimeout)
	defer cancel()

	content, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read content: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.LLM.Provider == "" {
		return fmt.Errorf("extract requires an LLM backend; set llm.provider in config or PULSE_LLM_PROVIDER")
	}

	c, err := buildComponents(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	result, err := c.extract.ExtractEvents(ctx, string(content), extractSourceURL, extractVenue, extractSourceTag)
	if err != nil {
		return err
	}

	if len(result.Events) == 0 {
		fmt.Fprintf(os.Stderr, "No events extracted")
		if result.Notes != "" {
			fmt.Fprintf(os.Stderr, " (%s)", result.Notes)
		}
		fmt.Fprintln(os.Stderr)
		return nil
	}

	for _, ev := range result.Events {
		fmt.Printf("%s  %s %s  %s  (confidence %.2f)\n",
			ev.Title, ev.StartDate, ev.StartTime, ev.VenueName, ev.ConfidenceHint)
		if ev.Flag != "" {
			fmt.Printf("    flagged: %s\n", ev.Flag)
		}

		if extractDryRun {
			continue
		}
		id, err := c.store.InsertEvent(ctx, model.StoredEvent{
			CandidateEvent: ev,
			Status:         model.StatusActive,
		})
		if err != nil {
			return fmt.Errorf("store %q: %w", ev.Title, err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "    stored as %s\n", id)
		}
	}

	if result.Notes != "" {
		fmt.Fprintf(os.Stderr, "Notes: %s\n", result.Notes)
	}
	fmt.Fprintf(os.Stderr, "Extracted %d events\n", len(result.Events))
	return nil
}
