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
	routeLimit   int
	routeTimeout time.Duration
	pendingLimit int
	rejectReason string
	adminID      string
)

// routeCmd drains the community submission queue
var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Route queued community submissions",
	Long: `Route validates each queued community submission through the
extraction backend against nearby stored events, then applies the
decision:

- high confidence, no duplicate  -> auto-published
- medium confidence              -> moderation queue
- duplicate, invalid, or low     -> rejected with reasoning

Error-state submissions are retried; a retry never publishes a
second event for the same submission.

Example:
  pulse-verify route
  pulse-verify route --limit 20`,
	Args: cobra.NoArgs,
	RunE: runRoute,
}

// submissionsCmd groups the admin queue actions
var submissionsCmd = &cobra.Command{
	Use:   "submissions",
	Short: "Inspect and decide the moderation queue",
}

var submissionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List submissions awaiting admin review, newest first",
	Args:  cobra.NoArgs,
	RunE:  runSubmissionsList,
}

var submissionsApproveCmd = &cobra.Command{
	Use:   "approve <submission-id>",
	Short: "Approve a review-state submission and publish its event",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubmissionsApprove,
}

var submissionsRejectCmd = &cobra.Command{
	Use:   "reject <submission-id>",
	Short: "Reject a review-state submission with a reason",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubmissionsReject,
}

func init() {
	rootCmd.AddCommand(routeCmd)
	rootCmd.AddCommand(submissionsCmd)
	submissionsCmd.AddCommand(submissionsListCmd)
	submissionsCmd.AddCommand(submissionsApproveCmd)
	submissionsCmd.AddCommand(submissionsRejectCmd)

	routeCmd.Flags().IntVar(&routeLimit, "limit", 100, "max submissions to route")
	routeCmd.Flags().DurationVar(&routeTimeout, "timeout", 15*time.Minute, "total routing timeout")

	submissionsListCmd.Flags().IntVar(&pendingLimit, "limit", 50, "max submissions to list")

	submissionsApproveCmd.Flags().StringVar(&adminID, "admin", "", "admin identifier (required)")
	_ = submissionsApproveCmd.MarkFlagRequired("admin")

	submissionsRejectCmd.Flags().StringVar(&adminID, "admin", "", "admin identifier (required)")
	submissionsRejectCmd.Flags().StringVar(&rejectReason, "reason", "", "rejection reason shown to the submitter (required)")
	_ = submissionsRejectCmd.MarkFlagRequired("admin")
	_ = submissionsRejectCmd.MarkFlagRequired("reason")
}

func runRoute(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), routeTimeout)
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

	outcomes, err := c.router.RouteAll(ctx, routeLimit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Routing interrupted: %v\n", err)
	}

	var approved, review, rejected, errored int
	for _, o := range outcomes {
		switch o.Status {
		case model.SubmissionApproved:
			approved++
		case model.SubmissionReview:
			review++
		case model.SubmissionRejected:
			rejected++
		case model.SubmissionError:
			errored++
		}
	}

	fmt.Fprintf(os.Stderr, "Routed %d submissions: %d approved, %d review, %d rejected, %d errors\n",
		len(outcomes), approved, review, rejected, errored)
	return nil
}

func runSubmissionsList(cmd *cobra.Command, args []string) error {
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

	pending, err := c.router.Pending(ctx, pendingLimit)
	if err != nil {
		return err
	}

	if len(pending) == 0 {
		fmt.Println("No submissions awaiting review.")
		return nil
	}

	for _, sub := range pending {
		fmt.Printf("%s  %s\n", sub.ID, sub.Event.Title)
		fmt.Printf("    %s %s at %s, submitted by %s\n",
			sub.Event.StartDate, sub.Event.StartTime, sub.Event.VenueName, sub.UserID)
		fmt.Printf("    confidence %.2f: %s\n", sub.AIConfidence, sub.AIReasoning)
		for _, issue := range sub.AIIssues {
			fmt.Printf("    - %s\n", issue)
		}
	}
	return nil
}

func runSubmissionsApprove(cmd *cobra.Command, args []string) error {
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

	eventID, err := c.router.Approve(ctx, args[0], adminID)
	if err != nil {
		return err
	}

	fmt.Printf("Approved %s -> event %s\n", args[0], eventID)
	return nil
}

func runSubmissionsReject(cmd *cobra.Command, args []string) error {
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

	if err := c.router.Reject(ctx, args[0], adminID, rejectReason); err != nil {
		return err
	}

	fmt.Printf("Rejected %s\n", args[0])
	return nil
}
