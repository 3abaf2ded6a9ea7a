package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/danielolaszy/tasklane/internal/bridge"
	"github.com/danielolaszy/tasklane/internal/config"
	"github.com/danielolaszy/tasklane/internal/extract"
	"github.com/danielolaszy/tasklane/internal/notify"
	"github.com/danielolaszy/tasklane/internal/reminder"
	"github.com/danielolaszy/tasklane/internal/ticket"
	"github.com/danielolaszy/tasklane/internal/tracker"
)

// newCreator wires the ticket pipeline from configuration. The returned
// cleanup closes the bridge connection, if one was opened.
func newCreator(ctx context.Context, cfg *config.Config, useBridge bool) (*ticket.Creator, func(), error) {
	cleanup := func() {}

	tr, err := tracker.Open(ctx, cfg)
	if err != nil {
		return nil, cleanup, fmt.Errorf("failed to initialize %s tracker: %w", cfg.TrackerKind, err)
	}

	completer, err := extract.NewGeminiCompleter(ctx, cfg.AI.APIKey, cfg.AI.Model)
	if err != nil {
		return nil, cleanup, err
	}

	location, err := time.LoadLocation(cfg.Reminder.Timezone)
	if err != nil {
		return nil, cleanup, fmt.Errorf("invalid REMINDER_TIMEZONE %q: %w", cfg.Reminder.Timezone, err)
	}

	extractor := extract.New(completer, extract.Options{
		ProjectID:      cfg.ProjectID,
		MaxInputLength: cfg.AI.MaxInputLength,
		Timeout:        cfg.AI.Timeout,
		Location:       location,
	})

	// The bridge is probed once per process and only when it may be used.
	var submitter ticket.Submitter
	var prober ticket.Prober
	if useBridge && cfg.Bridge.Endpoint != "" {
		client, err := bridge.NewClient(bridge.Options{
			Endpoint: cfg.Bridge.Endpoint,
			Tool:     cfg.Bridge.Tool,
			Timeout:  cfg.Bridge.Timeout,
		})
		if err != nil {
			return nil, cleanup, err
		}
		submitter = client
		prober = client
		cleanup = func() { client.Close() }
	}

	selector := ticket.ProbeSelector(ctx, prober)
	return ticket.NewCreator(extractor, selector, tr, submitter), cleanup, nil
}

// newReminderJob wires the reminder job from configuration.
func newReminderJob(ctx context.Context, cfg *config.Config) (*reminder.Job, *time.Location, error) {
	location, err := time.LoadLocation(cfg.Reminder.Timezone)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid REMINDER_TIMEZONE %q: %w", cfg.Reminder.Timezone, err)
	}

	tr, err := tracker.Open(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize %s tracker: %w", cfg.TrackerKind, err)
	}

	notifier, err := notify.NewLineNotifier(notify.LineOptions{
		ChannelAccessToken: cfg.Line.ChannelAccessToken,
		Timeout:            cfg.Line.Timeout,
	})
	if err != nil {
		return nil, nil, err
	}

	job := reminder.NewJob(tr, notifier, reminder.JobOptions{
		RecipientID:     cfg.Reminder.RecipientID,
		Location:        location,
		QueryTimeout:    cfg.TrackerTimeout,
		PushTimeout:     cfg.Line.Timeout,
		DigestMaxLength: cfg.Reminder.DigestMaxLength,
	})
	return job, location, nil
}
