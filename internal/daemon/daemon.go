package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"flight_replay/internal/config"
	"flight_replay/internal/scheduler"
	"flight_replay/internal/tasks"
)

// Daemon runs the feed recorder on its schedule until it is stopped or the
// configured recording window closes.
type Daemon struct {
	ctx       context.Context
	cancel    context.CancelFunc
	scheduler *scheduler.Scheduler
	startAt   time.Time
	endAt     time.Time // zero when recording is open-ended
}

// Config holds daemon configuration
type Config struct {
	Feed     config.FeedConfig
	StartAt  time.Time // zero starts immediately
	Fetcher  tasks.Fetcher
	Ingester tasks.Ingester // optional
}

// New creates a new daemon instance
func New(parent context.Context, cfg Config) (*Daemon, error) {
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if cfg.Feed.Interval <= 0 {
		return nil, fmt.Errorf("feed interval must be greater than 0")
	}

	startAt := cfg.StartAt
	if startAt.IsZero() {
		startAt = time.Now()
	}

	var (
		ctx    context.Context
		cancel context.CancelFunc
		endAt  time.Time
	)
	if cfg.Feed.Duration > 0 {
		endAt = startAt.Add(cfg.Feed.Duration)
		ctx, cancel = context.WithDeadline(parent, endAt)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}

	sched := scheduler.New(ctx)
	sched.StartAt(cfg.StartAt)
	sched.AddTask(tasks.NewRecorder(cfg.Fetcher, cfg.Ingester, cfg.Feed))

	return &Daemon{
		ctx:       ctx,
		cancel:    cancel,
		scheduler: sched,
		startAt:   startAt,
		endAt:     endAt,
	}, nil
}

func (d *Daemon) Start() error {
	slog.Info("Starting recorder", "start", d.startAt.UTC(), "end", d.endAt.UTC())
	d.scheduler.Start()
	return nil
}

// Done is closed when recording has finished, either because the window
// closed or because Stop was called.
func (d *Daemon) Done() <-chan struct{} {
	return d.scheduler.Done()
}

// Stop gracefully stops the daemon
func (d *Daemon) Stop() error {
	slog.Info("Stopping recorder")
	d.cancel()
	d.scheduler.Stop()
	slog.Info("Recorder stopped")
	return nil
}
