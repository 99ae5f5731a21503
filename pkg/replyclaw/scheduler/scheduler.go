// Package scheduler runs periodic maintenance jobs on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrUnknownJob is returned by RunNow for names that were never added.
var ErrUnknownJob = errors.New("scheduler: unknown job")

// Job is one named periodic task.
type Job struct {
	// Name identifies the job in logs.
	Name string

	// Schedule is a cron expression or descriptor ("@every 10m", "@hourly").
	Schedule string

	// Run does the work. Returned errors are logged.
	Run func(ctx context.Context) error
}

// Status is the observable state of a job.
type Status struct {
	Name      string
	Schedule  string
	LastRunAt time.Time
	LastError string
	Next      time.Time
}

type entry struct {
	job       Job
	id        cron.EntryID
	running   bool
	lastRunAt time.Time
	lastError string
}

// Scheduler wraps robfig/cron with overlap protection and panic isolation.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	parser  cron.Parser
	entries map[string]*entry
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *slog.Logger
}

// New creates a stopped scheduler.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithParser(parser)),
		parser:  parser,
		entries: make(map[string]*entry),
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger.With("component", "scheduler"),
	}
}

// Add registers a job. The schedule is validated immediately.
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" || job.Run == nil {
		return errors.New("scheduler: job needs a name and a run function")
	}
	if _, err := s.parser.Parse(job.Schedule); err != nil {
		return fmt.Errorf("scheduler: job %s: invalid schedule %q: %w", job.Name, job.Schedule, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.entries[job.Name]; dup {
		return fmt.Errorf("scheduler: job %s already registered", job.Name)
	}

	e := &entry{job: job}
	id, err := s.cron.AddFunc(job.Schedule, func() { s.execute(e) })
	if err != nil {
		return fmt.Errorf("scheduler: job %s: %w", job.Name, err)
	}
	e.id = id
	s.entries[job.Name] = e
	s.logger.Info("job added", "job", job.Name, "schedule", job.Schedule)
	return nil
}

// Start begins firing jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop halts the cron loop and waits (bounded) for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(10 * time.Second):
		s.logger.Warn("scheduler stop timed out")
	}
	s.cancel()
	s.logger.Info("scheduler stopped")
}

// RunNow executes the named job synchronously.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	e, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	s.execute(e)
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.lastError != "" {
		return errors.New(e.lastError)
	}
	return nil
}

// Jobs returns the job states sorted by name.
func (s *Scheduler) Jobs() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Status, 0, len(s.entries))
	for _, e := range s.entries {
		next := s.cron.Entry(e.id).Next
		if next.IsZero() {
			// Not started yet; project from now.
			if sched, err := s.parser.Parse(e.job.Schedule); err == nil {
				next = sched.Next(time.Now())
			}
		}
		out = append(out, Status{
			Name:      e.job.Name,
			Schedule:  e.job.Schedule,
			LastRunAt: e.lastRunAt,
			LastError: e.lastError,
			Next:      next,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// execute runs a job unless it is already running, isolating panics.
func (s *Scheduler) execute(e *entry) {
	s.mu.Lock()
	if e.running {
		s.mu.Unlock()
		s.logger.Warn("skipping job (already running)", "job", e.job.Name)
		return
	}
	e.running = true
	s.mu.Unlock()

	start := time.Now()
	var runErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				runErr = fmt.Errorf("panic: %v", r)
			}
		}()
		runErr = e.job.Run(s.ctx)
	}()

	s.mu.Lock()
	e.running = false
	e.lastRunAt = start
	e.lastError = ""
	if runErr != nil {
		e.lastError = runErr.Error()
	}
	s.mu.Unlock()

	if runErr != nil {
		s.logger.Error("scheduled job failed", "job", e.job.Name, "error", runErr)
		return
	}
	s.logger.Debug("scheduled job completed", "job", e.job.Name, "duration_ms", time.Since(start).Milliseconds())
}
