package masters

import (
	"context"
	"fmt"
	"time"

	"github.com/stupid-simple/medialib/config"
	"github.com/stupid-simple/medialib/runner"
	"github.com/stupid-simple/medialib/transcode"
)

// Job publishes the master files of the configured producer.
type Job struct {
	cfg        *config.Config
	transcoder transcode.Transcoder
	opts       []DeriverOption
}

func NewJob(cfg *config.Config, transcoder transcode.Transcoder, opts ...DeriverOption) *Job {
	return &Job{cfg: cfg, transcoder: transcoder, opts: opts}
}

func (j *Job) Kind() string               { return "masters" }
func (j *Job) DiscriminatorName() string  { return "producer" }
func (j *Job) DiscriminatorValue() string { return j.cfg.Producer }

func (j *Job) Execute(ctx context.Context, rc *runner.RunContext) (runner.Status, error) {
	status := runner.Status{}
	opts := append([]DeriverOption{WithClock(func() time.Time { return rc.Start })}, j.opts...)
	d := NewDeriver(rc.DB, j.cfg, j.transcoder, rc.Lock, rc.Logger, opts...)

	stats, err := d.CreateMasterFiles(ctx)
	status.Set("processed", stats.Processed)
	status.Set("published", stats.Published)
	status.Set("stale", stats.Stale)
	status.Errors = stats.Errors
	status.Bytes = stats.Bytes
	if err != nil {
		return status, err
	}
	if stats.Processed == 0 {
		return status, runner.ErrJobless
	}
	return status, nil
}

func (j *Job) SummaryLine(status runner.Status, err error) string {
	if err != nil {
		return "ERROR: creation of master files aborted unexpectedly"
	}
	if status.Errors > 0 {
		return fmt.Sprintf("WARNING: %d errors while creating master files, see the dead images directory", status.Errors)
	}
	return fmt.Sprintf("SUCCESS: %d master files created", status.Count("published"))
}
