package harvest

import (
	"context"
	"fmt"

	"github.com/stupid-simple/medialib/config"
	"github.com/stupid-simple/medialib/fileutils"
	"github.com/stupid-simple/medialib/runner"
	"github.com/stupid-simple/medialib/staging"
)

// Job moves resubmitted and new media into a fresh staging area and
// indexes them, resubmits first.
type Job struct {
	cfg  *config.Config
	opts []IndexerOption
}

func NewJob(cfg *config.Config, opts ...IndexerOption) *Job {
	return &Job{cfg: cfg, opts: opts}
}

func (j *Job) Kind() string               { return "harvest" }
func (j *Job) DiscriminatorName() string  { return "producer" }
func (j *Job) DiscriminatorValue() string { return j.cfg.Producer }

func (j *Job) Execute(ctx context.Context, rc *runner.RunContext) (runner.Status, error) {
	status := runner.Status{}

	area := staging.NewArea(j.cfg.StagingDirectory, j.cfg.Producer, rc.Start)
	if err := area.Create(); err != nil {
		return status, fmt.Errorf("could not create staging area: %w", err)
	}
	if err := fileutils.VerifyWritable(area.Phase1()); err != nil {
		return status, fmt.Errorf("staging area is not writable: %w", err)
	}
	rc.Logger.Info().Str("staging_area", area.Root()).Msg("staging area created")

	ix := NewIndexer(rc.DB, j.cfg, area, rc.Lock, rc.Logger, j.opts...)
	total := Stats{}

	passes := []struct {
		dir      string
		resubmit bool
		count    string
	}{
		{j.cfg.ResubmitDirectory, true, "resubmitted"},
		{j.cfg.HarvestDirectory, false, "new"},
	}
	for _, pass := range passes {
		if _, err := Intake(ctx, pass.dir, area.Phase1(), j.cfg.FileTypes, rc.Logger); err != nil {
			return status, err
		}
		stats, err := ix.IndexFiles(ctx, pass.resubmit)
		total.Add(stats)
		status.Set(pass.count, stats.Indexed)
		status.Set("processed", total.Processed)
		status.Errors = total.Rejected
		status.Bytes = total.Bytes
		if err != nil {
			return status, err
		}
	}

	if total.Processed == 0 {
		return status, runner.ErrJobless
	}
	return status, nil
}

func (j *Job) SummaryLine(status runner.Status, err error) string {
	if err != nil {
		return "ERROR: processing of the harvest and resubmit directories aborted unexpectedly"
	}
	if status.Errors > 0 {
		return fmt.Sprintf("WARNING: %d errors while processing the harvest and resubmit directories", status.Errors)
	}
	return fmt.Sprintf("SUCCESS: %d new media files processed; %d resubmitted media files processed",
		status.Count("new"), status.Count("resubmitted"))
}
