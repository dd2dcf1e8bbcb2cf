package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/stupid-simple/medialib/config"
	"github.com/stupid-simple/medialib/runner"
)

// Job sweeps the staging area, then the tar area.
type Job struct {
	cfg *config.Config
}

func NewJob(cfg *config.Config) *Job {
	return &Job{cfg: cfg}
}

func (j *Job) Kind() string               { return "cleanup" }
func (j *Job) DiscriminatorName() string  { return "producer" }
func (j *Job) DiscriminatorValue() string { return j.cfg.Producer }

func (j *Job) Execute(ctx context.Context, rc *runner.RunContext) (runner.Status, error) {
	status := runner.Status{}
	c := NewCleaner(rc.DB, j.cfg, rc.Lock, rc.Logger, WithClock(func() time.Time { return rc.Start }))

	total := Stats{}
	record := func(s Stats) {
		total.Add(s)
		status.Set("inspected", total.Inspected)
		status.Set("removed", total.Removed)
		status.Set("files", total.Files)
		status.Errors = total.Kept
	}

	stats, _, err := c.CleanStaging(ctx)
	record(stats)
	if err != nil {
		return status, err
	}
	stats, _, err = c.CleanTarArea(ctx)
	record(stats)
	if err != nil {
		return status, err
	}

	if total.Inspected == 0 {
		return status, runner.ErrJobless
	}
	return status, nil
}

func (j *Job) SummaryLine(status runner.Status, err error) string {
	if err != nil {
		return "ERROR: cleanup of the staging area aborted unexpectedly"
	}
	if status.Errors > 0 {
		return fmt.Sprintf("WARNING: %d staging directories could not be removed", status.Errors)
	}
	return fmt.Sprintf("SUCCESS: %d staging directories removed", status.Count("removed"))
}
