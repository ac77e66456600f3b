package job

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs periodic jobs. Each job is wrapped so a panic is
// recovered and a run that is still going skips the next tick, so one
// slow or failing job never affects another.
type Scheduler struct {
	cron *cron.Cron
	log  *zap.Logger
	ctx  context.Context
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

// NewScheduler evaluates cron specs in loc. Jobs receive ctx.
func NewScheduler(ctx context.Context, loc *time.Location, log *zap.Logger) *Scheduler {
	log = log.Named("scheduler")
	cl := cronLogger{s: log.Sugar()}
	if loc == nil {
		loc = time.Local
	}

	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		log: log,
		ctx: ctx,
	}
}

// AddCron registers fn under a standard five-field cron spec.
func (s *Scheduler) AddCron(name, spec string, fn func(context.Context) error) error {
	if _, err := s.cron.AddFunc(spec, s.wrap(name, fn)); err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	s.log.Info("job scheduled", zap.String("job", name), zap.String("spec", spec))
	return nil
}

// AddEvery registers fn to run every interval.
func (s *Scheduler) AddEvery(name string, interval time.Duration, fn func(context.Context) error) error {
	if interval <= 0 {
		return fmt.Errorf("schedule %s: interval must be positive, got %v", name, interval)
	}
	s.cron.Schedule(cron.Every(interval), cron.FuncJob(s.wrap(name, fn)))
	s.log.Info("job scheduled", zap.String("job", name), zap.Duration("every", interval))
	return nil
}

func (s *Scheduler) wrap(name string, fn func(context.Context) error) func() {
	return func() {
		if s.ctx.Err() != nil {
			return
		}
		if err := fn(s.ctx); err != nil {
			s.log.Error("job failed", zap.String("job", name), zap.Error(err))
		}
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and returns a context that is done once the
// running jobs finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
