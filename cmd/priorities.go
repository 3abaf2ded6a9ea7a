package cmd

import (
	"fmt"
	"io"
	"sort"

	"github.com/danielolaszy/tasklane/internal/config"
	"github.com/danielolaszy/tasklane/internal/jira"
	"github.com/danielolaszy/tasklane/internal/redmine"
	"github.com/danielolaszy/tasklane/internal/tracker"
	"github.com/danielolaszy/tasklane/pkg/models"
	"github.com/spf13/cobra"
)

var ticketPriorities = []models.Priority{
	models.PriorityLow,
	models.PriorityNormal,
	models.PriorityHigh,
	models.PriorityUrgent,
}

// prioritiesCmd lists tracker priorities and how tickets map onto them.
var prioritiesCmd = &cobra.Command{
	Use:   "priorities",
	Short: "List tracker priorities and the ticket priority mapping",
	Long: `List the priorities defined on the tracker and show which one each ticket
priority (Low, Normal, High, Urgent) is filed with. Use it to verify the
REDMINE_PRIORITY_* settings against the server.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		if err := config.ValidateTrackerConfig(cfg); err != nil {
			return err
		}

		if cfg.TrackerKind == config.TrackerJira {
			client, err := jira.NewClient(jira.Options{
				URL:        cfg.Jira.URL,
				Username:   cfg.Jira.Username,
				Token:      cfg.Jira.Token,
				ProjectKey: cfg.ProjectID,
				Timeout:    cfg.TrackerTimeout,
			})
			if err != nil {
				return err
			}
			names, err := client.Priorities(cmd.Context())
			if err != nil {
				return err
			}
			writeJiraPriorities(cmd.OutOrStdout(), names)
			return nil
		}

		client, err := tracker.NewRedmineClient(cfg)
		if err != nil {
			return err
		}
		priorities, err := client.Priorities(cmd.Context())
		if err != nil {
			return err
		}
		writeRedminePriorities(cmd.OutOrStdout(), priorities, tracker.PriorityNames(cfg))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(prioritiesCmd)
}

func writeRedminePriorities(w io.Writer, priorities []redmine.Priority, names map[models.Priority]string) {
	sorted := append([]redmine.Priority(nil), priorities...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	fmt.Fprintln(w, "Redmine priorities:")
	for _, p := range sorted {
		suffix := ""
		if p.IsDefault {
			suffix = " (default)"
		}
		fmt.Fprintf(w, "  %3d  %s%s\n", p.ID, p.Name, suffix)
	}

	resolved := redmine.ResolvePriorities(priorities, names)
	fmt.Fprintln(w, "\nTicket priority mapping:")
	for _, priority := range ticketPriorities {
		if id, ok := resolved[priority]; ok {
			fmt.Fprintf(w, "  %-7s -> %s (id %d)\n", priority, names[priority], id)
		} else {
			fmt.Fprintf(w, "  %-7s -> %q not found, tracker default is used\n", priority, names[priority])
		}
	}
}

func writeJiraPriorities(w io.Writer, names []string) {
	fmt.Fprintln(w, "JIRA priorities:")
	available := make(map[string]bool, len(names))
	for _, name := range names {
		available[name] = true
		fmt.Fprintf(w, "  %s\n", name)
	}

	fmt.Fprintln(w, "\nTicket priority mapping:")
	for _, priority := range ticketPriorities {
		name := jira.PriorityName(priority)
		if available[name] {
			fmt.Fprintf(w, "  %-7s -> %s\n", priority, name)
		} else {
			fmt.Fprintf(w, "  %-7s -> %q not found on server\n", priority, name)
		}
	}
}
