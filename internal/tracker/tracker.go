// Package tracker defines the issue tracker seam and builds the configured backend.
package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/danielolaszy/tasklane/internal/config"
	"github.com/danielolaszy/tasklane/internal/jira"
	"github.com/danielolaszy/tasklane/internal/logging"
	"github.com/danielolaszy/tasklane/internal/redmine"
	"github.com/danielolaszy/tasklane/pkg/models"
)

// Tracker is the issue tracker as seen by ticket creation and reminders.
type Tracker interface {
	// CreateIssue files one issue. Implementations issue exactly one
	// creation call and never retry.
	CreateIssue(ctx context.Context, draft models.TicketDraft) (models.IssueRecord, error)

	// DueIssues returns unresolved issues due on or before today, in the
	// order the tracker returned them.
	DueIssues(ctx context.Context, today time.Time) ([]models.IssueRecord, error)

	// Name identifies the backend in logs.
	Name() string
}

var (
	_ Tracker = (*redmine.IssueStore)(nil)
	_ Tracker = (*jira.Client)(nil)
)

// Open builds the tracker selected by cfg.TrackerKind. For Redmine it
// resolves the priority enumeration once, so it contacts the server.
func Open(ctx context.Context, cfg *config.Config) (Tracker, error) {
	if err := config.ValidateTrackerConfig(cfg); err != nil {
		return nil, err
	}

	if cfg.TrackerKind == config.TrackerJira {
		client, err := jira.NewClient(jira.Options{
			URL:        cfg.Jira.URL,
			Username:   cfg.Jira.Username,
			Token:      cfg.Jira.Token,
			ProjectKey: cfg.ProjectID,
			IssueType:  cfg.Jira.IssueType,
			Timeout:    cfg.TrackerTimeout,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	store, err := openRedmine(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func openRedmine(ctx context.Context, cfg *config.Config) (*redmine.IssueStore, error) {
	client, err := NewRedmineClient(cfg)
	if err != nil {
		return nil, err
	}

	priorities, err := client.Priorities(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to verify redmine priorities: %w", err)
	}

	resolved := redmine.ResolvePriorities(priorities, PriorityNames(cfg))
	if _, ok := resolved[models.PriorityNormal]; !ok {
		return nil, fmt.Errorf("redmine priority %q (normal) not found on server", cfg.Redmine.Priorities.Normal)
	}
	logging.Info("resolved redmine priorities", "count", len(resolved))

	return redmine.NewIssueStore(client, cfg.ProjectID, cfg.Redmine.OpenStatus, resolved), nil
}

// NewRedmineClient builds the raw Redmine REST client from configuration.
func NewRedmineClient(cfg *config.Config) (*redmine.Client, error) {
	return redmine.NewClient(redmine.Options{
		BaseURL:   cfg.Redmine.URL,
		PublicURL: cfg.Redmine.PublicURL,
		APIKey:    cfg.Redmine.APIKey,
		Timeout:   cfg.TrackerTimeout,
	})
}

// PriorityNames returns the configured tracker-side name for each priority.
func PriorityNames(cfg *config.Config) map[models.Priority]string {
	return map[models.Priority]string{
		models.PriorityLow:    cfg.Redmine.Priorities.Low,
		models.PriorityNormal: cfg.Redmine.Priorities.Normal,
		models.PriorityHigh:   cfg.Redmine.Priorities.High,
		models.PriorityUrgent: cfg.Redmine.Priorities.Urgent,
	}
}
