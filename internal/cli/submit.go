package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jeffkirdeikis/pulse-verify/internal/model"
	"github.com/spf13/cobra"
)

var submitUserID string

// submitCmd records a community event submission
var submitCmd = &cobra.Command{
	Use:   "submit <event-file>",
	Short: "Submit a community event for validation",
	Long: `Submit reads an event as JSON and records it in the received state.
Run 'pulse-verify route' to validate and decide queued submissions.

The file holds one event object:

  {
    "title": "Trivia Night",
    "start_date": "2025-06-20",
    "start_time": "19:00",
    "venue_name": "The Local"
  }`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)

	submitCmd.Flags().StringVar(&submitUserID, "user", "", "submitting user id (required)")
	_ = submitCmd.MarkFlagRequired("user")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read event: %w", err)
	}

	var event model.CandidateEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("parse event: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	c, err := buildComponents(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	id, err := c.router.Submit(ctx, submitUserID, event)
	if err != nil {
		return err
	}

	fmt.Printf("Submission %s received\n", id)
	return nil
}
