package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danielolaszy/tasklane/internal/logging"
	"github.com/danielolaszy/tasklane/pkg/models"
	"github.com/robfig/cron/v3"
)

// Runner executes one reminder run for a tick.
type Runner interface {
	RunScheduled(ctx context.Context, scheduledAt time.Time) models.ReminderRun
}

var dailyTimePattern = regexp.MustCompile(`^([01]?\d|2[0-3]):([0-5]\d)$`)

// DailySpec converts an HH:MM trigger time into a cron expression. A
// non-empty override is returned unchanged.
func DailySpec(dailyTime, override string) (string, error) {
	if override = strings.TrimSpace(override); override != "" {
		return override, nil
	}
	match := dailyTimePattern.FindStringSubmatch(strings.TrimSpace(dailyTime))
	if match == nil {
		return "", fmt.Errorf("invalid reminder time %q, expected HH:MM", dailyTime)
	}
	hour := strings.TrimPrefix(match[1], "0")
	if hour == "" {
		hour = "0"
	}
	minute := strings.TrimPrefix(match[2], "0")
	if minute == "" {
		minute = "0"
	}
	return fmt.Sprintf("%s %s * * *", minute, hour), nil
}

// Scheduler fires a Runner on a cron schedule in a fixed time zone. At
// most one run is in flight; a tick that fires while a run is in
// progress is dropped, and a tick whose minute was already run is
// ignored.
type Scheduler struct {
	runner          Runner
	cron            *cron.Cron
	entryID         cron.EntryID
	schedule        cron.Schedule
	spec            string
	location        *time.Location
	shutdownTimeout time.Duration

	now func() time.Time

	running      atomic.Bool
	runningSince atomic.Int64

	// Runs never inherit the Start context so Stop can let an in-flight
	// digest finish; cancelRun aborts them once the shutdown timeout passes.
	runCtx    context.Context
	cancelRun context.CancelFunc

	mu       sync.Mutex
	lastTick time.Time
	started  bool
	stopped  bool
	quit     chan struct{}
}

// SchedulerOptions configures a Scheduler.
type SchedulerOptions struct {
	// Spec is a standard 5-field cron expression evaluated in Location.
	Spec            string
	Location        *time.Location
	ShutdownTimeout time.Duration
}

// NewScheduler parses the schedule and registers the reminder entry. It
// does not start the cron runner.
func NewScheduler(runner Runner, opts SchedulerOptions) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(opts.Spec)
	if err != nil {
		return nil, fmt.Errorf("invalid reminder schedule %q: %w", opts.Spec, err)
	}
	return newScheduler(runner, schedule, opts), nil
}

func newScheduler(runner Runner, schedule cron.Schedule, opts SchedulerOptions) *Scheduler {
	location := opts.Location
	if location == nil {
		location = time.Local
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}

	runCtx, cancelRun := context.WithCancel(context.Background())
	s := &Scheduler{
		runner:          runner,
		schedule:        schedule,
		spec:            opts.Spec,
		location:        location,
		shutdownTimeout: shutdownTimeout,
		now:             time.Now,
		runCtx:          runCtx,
		cancelRun:       cancelRun,
		quit:            make(chan struct{}),
	}

	logger := cronLogger{logger: logging.With("component", "reminder-scheduler")}
	s.cron = cron.New(
		cron.WithLocation(location),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), s.singleFlight),
	)
	s.entryID = s.cron.Schedule(schedule, cron.FuncJob(s.tick))
	return s
}

// Next returns the first fire time after t, in the scheduler's time zone.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t.In(s.location))
}

// Running reports whether a run is in flight.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// Start begins firing ticks until ctx is cancelled or Stop is called.
// Cancelling ctx stops new ticks but does not abort a run in flight.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("reminder scheduler already started")
	}
	s.started = true

	s.cron.Start()
	logging.Info("reminder scheduler started",
		"schedule", s.spec,
		"timezone", s.location.String(),
		"next", s.Next(s.now()).Format(time.RFC3339))

	go func() {
		select {
		case <-ctx.Done():
			s.cron.Stop()
		case <-s.quit:
		}
	}()
	return nil
}

// tickTime is the scheduled minute of the tick being handled.
func (s *Scheduler) tickTime() time.Time {
	return s.now().In(s.location).Truncate(time.Minute)
}

// singleFlight drops a tick while a run is in flight instead of queuing it.
func (s *Scheduler) singleFlight(job cron.Job) cron.Job {
	return cron.FuncJob(func() {
		if !s.running.CompareAndSwap(false, true) {
			logging.Warn("reminder tick skipped",
				"scheduled_at", s.tickTime().Format(time.RFC3339),
				"running_since", time.Unix(0, s.runningSince.Load()).In(s.location).Format(time.RFC3339))
			return
		}
		defer s.running.Store(false)
		s.runningSince.Store(s.now().UnixNano())
		job.Run()
	})
}

// tick runs the reminder once for the current scheduled minute. A wall
// clock stepped backwards can make the runner wake again for a minute
// that already ran; that wake-up is ignored.
func (s *Scheduler) tick() {
	scheduledAt := s.tickTime()

	s.mu.Lock()
	last := s.lastTick
	if !scheduledAt.After(last) {
		s.mu.Unlock()
		logging.Warn("reminder tick already handled",
			"scheduled_at", scheduledAt.Format(time.RFC3339),
			"last_tick", last.Format(time.RFC3339))
		return
	}
	s.lastTick = scheduledAt
	s.mu.Unlock()

	s.runner.RunScheduled(s.runCtx, scheduledAt)
}

// Stop stops the cron runner and waits for an in-flight run to finish, up
// to the shutdown timeout. When the timeout expires the run's context is
// cancelled and an error is returned.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	close(s.quit)
	s.mu.Unlock()

	defer s.cancelRun()
	select {
	case <-s.cron.Stop().Done():
		logging.Info("reminder scheduler stopped")
		return nil
	case <-time.After(s.shutdownTimeout):
		return fmt.Errorf("reminder run still in progress after %s", s.shutdownTimeout)
	}
}

// cronLogger routes the cron runner's logs through slog. Its routine
// scheduling chatter is kept at debug level.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("reminder run "+msg, append([]any{"error", err}, keysAndValues...)...)
}
