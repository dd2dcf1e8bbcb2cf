package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/stupid-simple/medialib/config"
	"github.com/stupid-simple/medialib/database"
	"github.com/stupid-simple/medialib/lock"
	"github.com/stupid-simple/medialib/staging"
)

// ErrJobless is returned by a job that found nothing to do. The run is then
// neither a success nor a failure and nobody is notified.
var ErrJobless = errors.New("nothing to do")

// Job is one kind of batch run, partitioned by a discriminator.
type Job interface {
	Kind() string
	DiscriminatorName() string
	DiscriminatorValue() string
	Execute(ctx context.Context, rc *RunContext) (Status, error)
	SummaryLine(status Status, err error) string
}

// RunContext carries what a job needs during one run.
type RunContext struct {
	Logger zerolog.Logger
	Lock   *lock.Lock
	Start  time.Time
	Config *config.Config
	DB     *database.Database
}

type Runner struct {
	cfg       *config.Config
	db        *database.Database
	logger    zerolog.Logger
	logOutput io.Writer
	notifier  Notifier
	recorders []Recorder
	now       func() time.Time
}

type Option func(*Runner)

func WithNotifier(n Notifier) Option {
	return func(r *Runner) {
		r.notifier = n
	}
}

func WithRecorder(rec Recorder) Option {
	return func(r *Runner) {
		r.recorders = append(r.recorders, rec)
	}
}

// WithLogOutput is the writer the logger writes to, needed to tee into the
// per-run log file.
func WithLogOutput(w io.Writer) Option {
	return func(r *Runner) {
		r.logOutput = w
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

func New(cfg *config.Config, db *database.Database, logger zerolog.Logger, opts ...Option) *Runner {
	r := &Runner{
		cfg:      cfg,
		db:       db,
		logger:   logger,
		notifier: LogNotifier{Logger: logger},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the job while holding its lock. A busy lock is returned as
// lock.ErrBusy. Interruptions, by lock marker removal or by cancelling ctx,
// and jobless runs return nil without notifying.
func (r *Runner) Run(ctx context.Context, job Job) (err error) {
	start := r.now()
	discriminator := job.DiscriminatorValue()

	logger := r.logger.With().
		Str("job", job.Kind()).
		Str(job.DiscriminatorName(), discriminator).
		Logger()

	if r.cfg.LogDirectory != "" {
		f, ferr := r.openLogFile(job.Kind(), discriminator, start)
		if ferr != nil {
			logger.Warn().Err(ferr).Msg("could not open run log file")
		} else {
			defer f.Close()
			var w io.Writer = f
			if r.logOutput != nil {
				w = zerolog.MultiLevelWriter(r.logOutput, f)
			}
			logger = logger.Output(w)
		}
	}

	l, err := lock.Acquire(r.cfg.Lock.Directory, job.Kind(), discriminator, logger,
		lock.WithReclaimStale(r.cfg.Lock.ReclaimStale))
	if err != nil {
		if errors.Is(err, lock.ErrBusy) {
			logger.Error().Err(err).Msg("job is already running")
		}
		return err
	}
	defer l.Release()

	logger = logger.With().Str("run_id", l.Identity().RunID).Logger()
	logger.Info().Msgf("starting %s", job.Kind())

	rc := &RunContext{
		Logger: logger,
		Lock:   l,
		Start:  start,
		Config: r.cfg,
		DB:     r.db,
	}

	status, err := r.execute(ctx, job, rc)
	elapsed := r.now().Sub(start).Seconds()

	switch {
	case errors.Is(err, lock.ErrInterrupted),
		errors.Is(err, context.Canceled) && ctx.Err() != nil:
		logger.Warn().Float64("seconds", elapsed).Object("status", status).Msgf("%s interrupted", job.Kind())
		return nil
	case errors.Is(err, ErrJobless):
		logger.Info().Float64("seconds", elapsed).Msgf("%s found nothing to do", job.Kind())
		return nil
	case errors.Is(err, lock.ErrBusy):
		logger.Error().Err(err).Msg("lock was taken over during the run")
		return err
	}

	report := Report{
		Kind:           job.Kind(),
		Discriminator:  discriminator,
		RunID:          l.Identity().RunID,
		Succeeded:      err == nil,
		Status:         status,
		ElapsedSeconds: elapsed,
		Subject:        job.SummaryLine(status, err),
	}
	if err != nil {
		logger.Error().Err(err).Float64("seconds", elapsed).Msgf("%s failed", job.Kind())
	} else {
		logger.Info().Float64("seconds", elapsed).Msgf("%s done", job.Kind())
	}

	for _, rec := range r.recorders {
		if rerr := rec.Record(report); rerr != nil {
			logger.Warn().Err(rerr).Msg("could not record run statistics")
		}
	}
	if nerr := r.notifier.Notify(ctx, report); nerr != nil {
		logger.Error().Err(nerr).Msg("could not send notification")
	}
	return err
}

// execute turns a panic in the job into an error so the lock is still released.
func (r *Runner) execute(ctx context.Context, job Job, rc *RunContext) (status Status, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%s panicked: %v", job.Kind(), p)
		}
	}()
	return job.Execute(ctx, rc)
}

func (r *Runner) openLogFile(kind, discriminator string, start time.Time) (*os.File, error) {
	if err := os.MkdirAll(r.cfg.LogDirectory, 0755); err != nil {
		return nil, err
	}
	name := fmt.Sprintf("%s.%s.%s.log", staging.RunStamp(start), kind, discriminator)
	return os.OpenFile(filepath.Join(r.cfg.LogDirectory, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
}
