package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/danielolaszy/tasklane/internal/config"
	"github.com/danielolaszy/tasklane/pkg/models"
	"github.com/spf13/cobra"
)

// remindCmd runs the reminder job once, immediately.
var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Send the due-issue digest once, now",
	Long: `Query the tracker for open issues that are overdue or due today and push
one digest to MY_LINE_USER_ID. Nothing is sent when no issue matches.

"Today" is the current date in REMINDER_TIMEZONE.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		if err := config.ValidateReminderConfig(cfg); err != nil {
			return err
		}

		job, _, err := newReminderJob(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		run := job.Run(cmd.Context())
		printRun(cmd.OutOrStdout(), run)
		return runError(run)
	},
}

func init() {
	rootCmd.AddCommand(remindCmd)
}

func printRun(w io.Writer, run models.ReminderRun) {
	fmt.Fprintf(w, "Reminder %s: %d issue(s) found in %s\n",
		run.DeliveryStatus, run.IssuesFound, run.Duration.Round(time.Millisecond))
}

// runError turns a failed run into a command error for the exit code.
func runError(run models.ReminderRun) error {
	switch run.DeliveryStatus {
	case models.StatusFailedQuery, models.StatusFailedDelivery:
		return run.Err
	default:
		return nil
	}
}
