// Package cmd provides the command-line interface for tasklane.
package cmd

import (
	"os"
	"strings"

	"github.com/danielolaszy/tasklane/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tasklane",
	Short: "Tasklane turns plain-text requests into tracker tickets and sends due-date reminders",
	Long: `Tasklane is a CLI tool that files issue-tracker tickets from free-form text
and pushes a daily digest of overdue and due-today issues to a messaging channel.

Tickets are filed in Redmine or JIRA (TRACKER_KIND). Fields are extracted with
Gemini, and tickets can optionally be routed through an MCP protocol bridge.
Reminders are delivered through the LINE Messaging API.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Logs go to stderr so command output on stdout stays parseable.
		level, _ := cmd.Flags().GetString("log-level")
		format, _ := cmd.Flags().GetString("log-format")
		if level == "" {
			level = os.Getenv("LOG_LEVEL")
		}
		if format == "" {
			format = os.Getenv("LOG_FORMAT")
		}
		logging.Setup(os.Stderr, logging.LogLevel(strings.ToLower(level)), logging.Format(strings.ToLower(format)))
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error (overrides LOG_LEVEL)")
	rootCmd.PersistentFlags().String("log-format", "", "log format: text or json (overrides LOG_FORMAT)")
}
