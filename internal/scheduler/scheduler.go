package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"flight_replay/internal/metrics"
)

// Task interface for scheduled tasks
type Task interface {
	Run(ctx context.Context) error
	Interval() time.Duration
	Name() string
}

// Scheduler runs tasks on fixed intervals until its context ends.
type Scheduler struct {
	ctx     context.Context
	cancel  context.CancelFunc
	tasks   []Task
	startAt time.Time
	wg      sync.WaitGroup
	started bool
	done    chan struct{}
}

// New creates a new task scheduler
func New(ctx context.Context) *Scheduler {
	ctx, cancel := context.WithCancel(ctx)
	return &Scheduler{
		ctx:    ctx,
		cancel: cancel,
		tasks:  make([]Task, 0),
		done:   make(chan struct{}),
	}
}

// AddTask adds a task to the scheduler
func (s *Scheduler) AddTask(task Task) {
	s.tasks = append(s.tasks, task)
}

// StartAt delays the first run of every task until t. A zero or past t runs immediately.
func (s *Scheduler) StartAt(t time.Time) {
	s.startAt = t
}

// Start begins running all scheduled tasks
func (s *Scheduler) Start() {
	slog.Info("Starting task scheduler", "task_count", len(s.tasks))
	s.started = true
	for _, task := range s.tasks {
		s.wg.Add(1)
		go s.runTask(task)
	}
	go func() {
		s.wg.Wait()
		close(s.done)
	}()
}

// Done is closed once every task goroutine has returned.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Stop cancels all tasks and waits for them to return.
func (s *Scheduler) Stop() {
	slog.Info("Stopping task scheduler")
	s.cancel()
	s.wg.Wait()
	if s.started {
		<-s.done
	}
	slog.Info("Task scheduler stopped")
}

func (s *Scheduler) runTask(task Task) {
	defer s.wg.Done()

	if wait := time.Until(s.startAt); wait > 0 {
		slog.Info("Waiting for start time", "task", task.Name(), "start", s.startAt.UTC(), "wait", wait.Round(time.Second))
		timer := time.NewTimer(wait)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	ticker := time.NewTicker(task.Interval())
	defer ticker.Stop()

	// Run immediately on start
	s.runOnce(task)

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(task)
		}
	}
}

func (s *Scheduler) runOnce(task Task) {
	if err := task.Run(s.ctx); err != nil {
		if s.ctx.Err() != nil {
			return
		}
		metrics.TaskRunsTotal.WithLabelValues(task.Name(), "error").Inc()
		slog.Error("Error running task", "task", task.Name(), "error", err)
		return
	}
	metrics.TaskRunsTotal.WithLabelValues(task.Name(), "ok").Inc()
}
