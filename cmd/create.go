package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/danielolaszy/tasklane/internal/config"
	"github.com/danielolaszy/tasklane/internal/logging"
	"github.com/danielolaszy/tasklane/internal/ticket"
	"github.com/spf13/cobra"
)

// createCmd files one ticket from free-form text.
var createCmd = &cobra.Command{
	Use:   "create [--advanced] <text...>",
	Short: "Create a tracker ticket from a plain-text request",
	Long: `Create a tracker ticket from a plain-text request.

The request is turned into a subject, description, priority, due date and
assignee hint with Gemini. Words such as "urgent", "asap", "critical",
"緊急" or "至急" raise the priority by one level. When Gemini is unreachable
the ticket is still filed with default fields and the request text as its
description.

By default the ticket is filed with a direct REST call to the tracker. With
--advanced it is filed through the MCP bridge at BRIDGE_ENDPOINT instead; if
the bridge is not configured or not reachable the command fails rather than
falling back to REST.

Example:
  tasklane create "Renew the TLS certificate for the intranet by Friday, urgent"
  tasklane create --advanced "Order toner for the 3F printer"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		advanced, err := cmd.Flags().GetBool("advanced")
		if err != nil {
			return err
		}

		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		if err := config.ValidateCreateConfig(cfg); err != nil {
			return err
		}

		creator, cleanup, err := newCreator(cmd.Context(), cfg, advanced)
		if err != nil {
			return err
		}
		defer cleanup()

		text := strings.Join(args, " ")
		logging.Info("creating ticket", "tracker", cfg.TrackerKind, "advanced", advanced, "length", len(text))

		created, err := creator.Create(cmd.Context(), text, advanced)
		if err != nil {
			return err
		}

		printCreation(cmd.OutOrStdout(), created)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(createCmd)
	createCmd.Flags().Bool("advanced", false, "file the ticket through the MCP protocol bridge")
}

func printCreation(w io.Writer, created ticket.Creation) {
	fmt.Fprintf(w, "Created issue %s: %s\n", created.Issue.ID, created.Draft.Subject)
	fmt.Fprintf(w, "  Priority:  %s\n", created.Draft.Priority)
	if due := created.Draft.DueDateString(); due != "" {
		fmt.Fprintf(w, "  Due:       %s\n", due)
	}
	if created.Draft.AssigneeHint != "" {
		fmt.Fprintf(w, "  Assignee:  %s (requested)\n", created.Draft.AssigneeHint)
	}
	fmt.Fprintf(w, "  Transport: %s\n", created.Transport)
	if created.Issue.URL != "" {
		fmt.Fprintf(w, "  Link:      %s\n", created.Issue.URL)
	}
	if created.Degraded != nil {
		fmt.Fprintf(w, "  Note: fields were filled with defaults (%v)\n", created.Degraded)
	}
}
