package web

import (
	"context"
	"fmt"
	"time"

	"github.com/stupid-simple/medialib/config"
	"github.com/stupid-simple/medialib/runner"
	"github.com/stupid-simple/medialib/transcode"
)

// Job publishes the masters of the configured producer to the web directory.
type Job struct {
	cfg        *config.Config
	transcoder transcode.Transcoder
}

func NewJob(cfg *config.Config, transcoder transcode.Transcoder) *Job {
	return &Job{cfg: cfg, transcoder: transcoder}
}

func (j *Job) Kind() string               { return "www" }
func (j *Job) DiscriminatorName() string  { return "producer" }
func (j *Job) DiscriminatorValue() string { return j.cfg.Producer }

func (j *Job) Execute(ctx context.Context, rc *runner.RunContext) (runner.Status, error) {
	status := runner.Status{}
	d := NewDeriver(rc.DB, j.cfg, j.transcoder, rc.Lock, rc.Logger,
		WithClock(func() time.Time { return rc.Start }))

	stats, err := d.CreateWebFiles(ctx)
	status.Set("processed", stats.Processed)
	status.Set("published", stats.Published)
	status.Set("stale", stats.Stale)
	status.Errors = stats.Errors
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
		return "ERROR: creation of web files aborted unexpectedly"
	}
	if status.Errors > 0 {
		return fmt.Sprintf("WARNING: %d errors while creating web files, see the dead images directory", status.Errors)
	}
	return fmt.Sprintf("SUCCESS: %d media files published to the web", status.Count("published"))
}
