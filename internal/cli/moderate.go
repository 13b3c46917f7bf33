package cli

import (
	"context"
	"fmt"

	"github.com/jeffkirdeikis/pulse-verify/internal/model"
	"github.com/jeffkirdeikis/pulse-verify/internal/trust"
	"github.com/spf13/cobra"
)

var (
	flagUserID      string
	flagIssue       string
	flagDescription string
	feedbackInacc   bool
)

// flagCmd records a user report against a stored event
var flagCmd = &cobra.Command{
	Use:   "flag <event-id>",
	Short: "Report an issue with a stored event",
	Long: `Flag records a user-reported issue against an event. An event with
three pending flags is pulled from default listings and held for
admin review.

Issue types: wrong_date, wrong_time, wrong_location, cancelled,
duplicate, spam, other.`,
	Args: cobra.ExactArgs(1),
	RunE: runFlag,
}

// trustCmd groups trust-table tooling
var trustCmd = &cobra.Command{
	Use:   "trust",
	Short: "Inspect source trust and record accuracy feedback",
}

var trustFeedbackCmd = &cobra.Command{
	Use:   "feedback <source-tag>",
	Short: "Record accuracy feedback for a source (offline recalibration input)",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrustFeedback,
}

var trustShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show accumulated per-source accuracy feedback",
	Args:  cobra.NoArgs,
	RunE:  runTrustShow,
}

func init() {
	rootCmd.AddCommand(flagCmd)
	rootCmd.AddCommand(trustCmd)
	trustCmd.AddCommand(trustFeedbackCmd)
	trustCmd.AddCommand(trustShowCmd)

	flagCmd.Flags().StringVar(&flagUserID, "user", "", "reporting user id (required)")
	flagCmd.Flags().StringVar(&flagIssue, "issue", "", "issue type (required)")
	flagCmd.Flags().StringVar(&flagDescription, "description", "", "free-text description")
	_ = flagCmd.MarkFlagRequired("user")
	_ = flagCmd.MarkFlagRequired("issue")

	trustFeedbackCmd.Flags().BoolVar(&feedbackInacc, "inaccurate", false, "record the source as inaccurate (default records accurate)")
}

func runFlag(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	c, err := buildComponents(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	flagID, flagged, err := c.router.FlagEvent(ctx, args[0], flagUserID, model.FlagIssue(flagIssue), flagDescription)
	if err != nil {
		return err
	}

	fmt.Printf("Recorded flag %s\n", flagID)
	if flagged {
		fmt.Printf("Event %s reached the flag threshold and was pulled from listings\n", args[0])
	}
	return nil
}

func runTrustFeedback(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	c, err := buildComponents(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.router.RecordSourceFeedback(ctx, args[0], !feedbackInacc); err != nil {
		return err
	}

	fmt.Printf("Recorded feedback for %s (base trust %.2f unchanged until recalibration)\n",
		args[0], c.trust.Lookup(args[0]))
	return nil
}

func runTrustShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	c, err := buildComponents(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	summary, err := c.store.TrustFeedbackSummary(ctx)
	if err != nil {
		return err
	}

	if len(summary) == 0 {
		fmt.Println("No feedback recorded.")
		return nil
	}

	for tag, fc := range summary {
		total := fc.Accurate + fc.Inaccurate
		fmt.Printf("%-24s %-10s base %.2f  accurate %d/%d (%.0f%%)\n",
			tag, trust.KindOf(tag), c.trust.Lookup(tag), fc.Accurate, total,
			100*float64(fc.Accurate)/float64(total))
	}
	return nil
}
