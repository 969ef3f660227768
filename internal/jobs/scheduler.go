// Package jobs runs the periodic maintenance work of the portal on a cron
// schedule.
package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"design-desk/request-portal/request-portal-backend/internal/metrics"
)

// Job is one unit of scheduled work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler runs registered jobs in UTC. A run still in progress when its
// next tick arrives makes that tick a no-op.
type Scheduler struct {
	cron    *cron.Cron
	jobs    map[string]Job
	entries map[string]cron.EntryID
	metrics *metrics.Metrics
	logger  *zap.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
}

func NewScheduler(m *metrics.Metrics, logger *zap.Logger) *Scheduler {
	cronLog := cronLogger{logger.Sugar()}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(time.UTC),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		jobs:    make(map[string]Job),
		entries: make(map[string]cron.EntryID),
		metrics: m,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Add registers job and schedules it on spec. A job added with an empty
// spec only runs when triggered.
func (s *Scheduler) Add(spec string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.Name()]; exists {
		return fmt.Errorf("job %s already registered", job.Name())
	}
	if spec != "" {
		id, err := s.cron.AddFunc(spec, func() { s.RunNow(job) })
		if err != nil {
			return fmt.Errorf("failed to schedule %s: %w", job.Name(), err)
		}
		s.entries[job.Name()] = id
	} else {
		s.logger.Info("Job not scheduled", zap.String("job", job.Name()))
	}
	s.jobs[job.Name()] = job
	return nil
}

// Job returns the registered job called name.
func (s *Scheduler) Job(name string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[name]
	return job, ok
}

// Status describes a registered job.
type Status struct {
	Name      string     `json:"name"`
	Scheduled bool       `json:"scheduled"`
	NextRun   *time.Time `json:"next_run,omitempty"`
}

// List returns every registered job sorted by name.
func (s *Scheduler) List() []Status {
	s.mu.Lock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	s.mu.Unlock()
	sort.Strings(names)

	out := make([]Status, 0, len(names))
	for _, name := range names {
		st := Status{Name: name}
		if next, ok := s.Next(name); ok {
			st.Scheduled = true
			if !next.IsZero() {
				st.NextRun = &next
			}
		}
		out = append(out, st)
	}
	return out
}

// RunNow executes job synchronously with the scheduler's context.
func (s *Scheduler) RunNow(job Job) error {
	start := time.Now()
	err := job.Run(s.ctx)
	s.metrics.JobRun(job.Name(), err)
	if err != nil {
		s.logger.Error("Job failed", zap.String("job", job.Name()), zap.Error(err))
		return err
	}
	s.logger.Info("Job finished", zap.String("job", job.Name()), zap.Duration("elapsed", time.Since(start)))
	return nil
}

// Next returns the next scheduled run of the named job.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.logger.Info("Starting job scheduler", zap.Int("jobs", len(s.entries)))
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel()
	if !s.running {
		return
	}
	s.logger.Info("Stopping job scheduler")
	<-s.cron.Stop().Done()
	s.running = false
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
