// Package reminder runs the daily due-issue digest.
package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/danielolaszy/tasklane/internal/logging"
	"github.com/danielolaszy/tasklane/internal/notify"
	"github.com/danielolaszy/tasklane/pkg/models"
)

// IssueSource lists unresolved issues due on or before a date.
type IssueSource interface {
	DueIssues(ctx context.Context, today time.Time) ([]models.IssueRecord, error)
}

// Job queries due issues and pushes one digest to a fixed recipient.
// Failures end the run with a terminal status; Run never panics on a
// failed dependency and never returns an error to its caller.
type Job struct {
	source       IssueSource
	notifier     notify.Notifier
	recipientID  string
	location     *time.Location
	queryTimeout time.Duration
	pushTimeout  time.Duration
	maxLength    int
	now          func() time.Time
}

// JobOptions configures a Job.
type JobOptions struct {
	RecipientID     string
	Location        *time.Location
	QueryTimeout    time.Duration
	PushTimeout     time.Duration
	DigestMaxLength int
}

// NewJob creates a reminder job.
func NewJob(source IssueSource, notifier notify.Notifier, opts JobOptions) *Job {
	location := opts.Location
	if location == nil {
		location = time.Local
	}
	queryTimeout := opts.QueryTimeout
	if queryTimeout <= 0 {
		queryTimeout = 30 * time.Second
	}
	pushTimeout := opts.PushTimeout
	if pushTimeout <= 0 {
		pushTimeout = 15 * time.Second
	}
	return &Job{
		source:       source,
		notifier:     notifier,
		recipientID:  opts.RecipientID,
		location:     location,
		queryTimeout: queryTimeout,
		pushTimeout:  pushTimeout,
		maxLength:    opts.DigestMaxLength,
		now:          time.Now,
	}
}

// Run executes the job for the current time.
func (j *Job) Run(ctx context.Context) models.ReminderRun {
	return j.RunScheduled(ctx, j.now())
}

// RunScheduled executes the job for a tick scheduled at scheduledAt.
// "Today" is the calendar date of scheduledAt in the job's time zone.
func (j *Job) RunScheduled(ctx context.Context, scheduledAt time.Time) models.ReminderRun {
	started := j.now()
	run := j.execute(ctx, scheduledAt.In(j.location))
	run.Duration = j.now().Sub(started)
	logRun(run)
	return run
}

func (j *Job) execute(ctx context.Context, scheduledAt time.Time) models.ReminderRun {
	run := models.ReminderRun{ScheduledAt: scheduledAt}
	today := time.Date(scheduledAt.Year(), scheduledAt.Month(), scheduledAt.Day(), 0, 0, 0, 0, j.location)

	queryCtx, cancel := context.WithTimeout(ctx, j.queryTimeout)
	issues, err := j.source.DueIssues(queryCtx, today)
	cancel()
	if err != nil {
		run.DeliveryStatus = models.StatusFailedQuery
		run.Err = fmt.Errorf("failed to query due issues: %w", err)
		return run
	}
	issues = openIssues(issues)

	run.IssuesFound = len(issues)
	if len(issues) == 0 {
		run.DeliveryStatus = models.StatusSkippedEmpty
		return run
	}

	digest := FormatDigest(issues, today, j.maxLength)

	pushCtx, cancel := context.WithTimeout(ctx, j.pushTimeout)
	err = j.notifier.Push(pushCtx, j.recipientID, digest)
	cancel()
	if err != nil {
		run.DeliveryStatus = models.StatusFailedDelivery
		run.Err = fmt.Errorf("failed to deliver digest: %w", err)
		return run
	}

	run.DeliveryStatus = models.StatusSent
	return run
}

// openIssues drops issues the tracker reports as closed, keeping query
// order. The query already filters on status, but a tracker whose open
// status list is misconfigured can still return resolved issues.
func openIssues(issues []models.IssueRecord) []models.IssueRecord {
	open := issues[:0:0]
	for _, issue := range issues {
		if issue.Closed {
			logging.Debug("closed issue left out of reminder", "issue_id", issue.ID, "status", issue.Status)
			continue
		}
		open = append(open, issue)
	}
	return open
}

func logRun(run models.ReminderRun) {
	args := []any{
		"status", string(run.DeliveryStatus),
		"issues_found", run.IssuesFound,
		"scheduled_at", run.ScheduledAt.Format(time.RFC3339),
		"duration", run.Duration.String(),
	}

	switch run.DeliveryStatus {
	case models.StatusFailedQuery, models.StatusFailedDelivery:
		logging.Error("reminder run failed", append(args, "error", run.Err)...)
	case models.StatusSkippedEmpty:
		logging.Info("reminder run skipped, no due issues", args...)
	default:
		logging.Info("reminder digest sent", args...)
	}
}
