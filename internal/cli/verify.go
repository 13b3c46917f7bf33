package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jeffkirdeikis/pulse-verify/internal/verify"
	"github.com/spf13/cobra"
)

var (
	sweepTimeout time.Duration
	sweepWorkers int
)

// verifyCmd runs the batch verification sweep
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify all unverified events in the store",
	Long: `Verify sweeps every unverified stored event:
- Resolve the event's source to its base trust score
- Find corroborating events from other sources in a ±1 day window
- Combine trust and corroboration into a final confidence score
- Persist the score, timestamp, and corroborating source list

Items are paced to respect backend API quotas. Failed items are
skipped and logged; the sweep continues.

Example:
  pulse-verify verify
  pulse-verify verify --workers 4 --timeout 30m`,
	Args: cobra.NoArgs,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().DurationVar(&sweepTimeout, "timeout", 15*time.Minute, "total sweep timeout")
	verifyCmd.Flags().IntVar(&sweepWorkers, "workers", 0, "parallel workers (0 = from config)")
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if sweepWorkers > 0 {
		cfg.Sweep.Workers = sweepWorkers
	}

	c, err := buildComponents(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	sweep := verify.NewSweep(c.store, c.verifier, c.pacer, cfg.Sweep).WithLogger(logf(cfg))

	stats, err := sweep.Run(ctx)
	if err != nil && stats == nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Verified %d events (%d approve, %d review, %d reject), %d skipped\n",
		stats.Processed, stats.Approve, stats.Review, stats.Reject, stats.Skipped)

	if err != nil {
		fmt.Fprintf(os.Stderr, "Sweep interrupted: %v\n", err)
	}
	return nil
}
