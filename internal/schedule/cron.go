package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultRunTimeout bounds a single scheduled fetch.
const DefaultRunTimeout = 5 * time.Minute

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Runner triggers jobs on standard five-field cron specs. A tick that fires
// while the previous run of the same job is still going is skipped.
type Runner struct {
	log     zerolog.Logger
	timeout time.Duration
	loc     *time.Location
	c       *cron.Cron
}

type Option func(*Runner)

func WithLocation(loc *time.Location) Option {
	return func(r *Runner) {
		r.loc = loc
		r.c = newCron(loc, r.log)
	}
}

func WithTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

func NewRunner(log zerolog.Logger, opts ...Option) *Runner {
	r := &Runner{log: log, timeout: DefaultRunTimeout, loc: time.Local}
	r.c = newCron(r.loc, log)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func newCron(loc *time.Location, log zerolog.Logger) *cron.Cron {
	return cron.New(
		cron.WithLocation(loc),
		cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
		cron.WithChain(cron.Recover(cronLogger{log}), cron.SkipIfStillRunning(cronLogger{log})),
	)
}

// Add registers job under name on spec.
func (r *Runner) Add(spec, name string, job Job) error {
	_, err := r.c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		start := time.Now()
		r.log.Info().Str("job", name).Msg("cron: run")
		if err := job(ctx); err != nil {
			r.log.Error().Err(err).Str("job", name).Msg("cron: run failed")
			return
		}
		r.log.Info().Str("job", name).Dur("took", time.Since(start)).Msg("cron: run finished")
	})
	if err != nil {
		return fmt.Errorf("cron spec %q: %w", spec, err)
	}
	return nil
}

// Next reports when the earliest registered job fires next. Before Start it
// is computed from the specs.
func (r *Runner) Next() time.Time {
	now := time.Now().In(r.loc)
	var next time.Time
	for _, e := range r.c.Entries() {
		at := e.Next
		if at.IsZero() {
			at = e.Schedule.Next(now)
		}
		if next.IsZero() || at.Before(next) {
			next = at
		}
	}
	return next
}

func (r *Runner) Start() { r.c.Start() }

// Stop halts the scheduler and waits for running jobs to finish.
func (r *Runner) Stop() {
	<-r.c.Stop().Done()
}

// Run starts the scheduler and blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	r.Start()
	<-ctx.Done()
	r.Stop()
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
