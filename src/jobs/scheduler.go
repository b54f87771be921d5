// Package jobs runs the periodic maintenance tasks: outbox drain, tally
// reconciliation and proposal finalization.
package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type Func func(ctx context.Context) error

type Scheduler struct {
	cron *cron.Cron
	log  *zap.SugaredLogger

	mu   sync.Mutex
	ctx  context.Context
	jobs map[string]Func
}

func New(log *zap.SugaredLogger) *Scheduler {
	l := cronLogger{log}
	return &Scheduler{
		cron: cron.New(cron.WithLogger(l), cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l))),
		log:  log,
		ctx:  context.Background(),
		jobs: make(map[string]Func),
	}
}

// Add registers fn under name and schedules it with a cron spec such as
// "@every 15s". An empty spec registers the job for Trigger only.
func (s *Scheduler) Add(name, spec string, fn Func) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.jobs[name]; dup {
		return fmt.Errorf("job %q already registered", name)
	}
	if spec != "" {
		if _, err := s.cron.AddFunc(spec, func() { s.run(name, fn) }); err != nil {
			return fmt.Errorf("schedule %s: %w", name, err)
		}
	}
	s.jobs[name] = fn
	return nil
}

// Names lists the registered jobs.
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for n := range s.jobs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Trigger runs a job once, synchronously, outside the schedule.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	s.mu.Lock()
	fn, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return fn(ctx)
}

// Start runs the schedule until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()
}

// Stop halts the schedule and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) run(name string, fn Func) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	if err := fn(ctx); err != nil {
		s.log.Errorw("job failed", "job", name, "duration", time.Since(start), "error", err)
		return
	}
	s.log.Debugw("job finished", "job", name, "duration", time.Since(start))
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
