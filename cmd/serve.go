package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/danielolaszy/tasklane/internal/config"
	"github.com/danielolaszy/tasklane/internal/logging"
	"github.com/danielolaszy/tasklane/internal/reminder"
	"github.com/spf13/cobra"
)

// serveCmd runs the reminder scheduler until the process is signalled.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the daily reminder scheduler",
	Long: `Run the reminder scheduler in the foreground.

The digest is sent every day at REMINDER_TIME in REMINDER_TIMEZONE, or on the
cron expression in REMINDER_CRON when it is set. A run that is still going when
the next trigger fires causes that trigger to be skipped.

On SIGINT or SIGTERM the scheduler stops and waits up to SHUTDOWN_TIMEOUT for a
digest in progress to finish.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		if err := config.ValidateReminderConfig(cfg); err != nil {
			return err
		}

		spec, err := reminder.DailySpec(cfg.Reminder.Time, cfg.Reminder.Cron)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		job, location, err := newReminderJob(ctx, cfg)
		if err != nil {
			return err
		}

		scheduler, err := reminder.NewScheduler(job, reminder.SchedulerOptions{
			Spec:            spec,
			Location:        location,
			ShutdownTimeout: cfg.Reminder.ShutdownTimeout,
		})
		if err != nil {
			return err
		}

		if err := scheduler.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()
		logging.Info("shutdown signal received")
		return scheduler.Stop()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
