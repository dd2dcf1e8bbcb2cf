package offload

import (
	"context"
	"fmt"
	"strconv"

	"github.com/stupid-simple/medialib/config"
	"github.com/stupid-simple/medialib/runner"
	"github.com/stupid-simple/medialib/staging"
	"github.com/stupid-simple/medialib/tararchiver/tarwriter"
)

type bucketEnsurer interface {
	EnsureBucket(ctx context.Context) error
}

// Job offloads one backup group: fill buckets, then archive them remotely.
type Job struct {
	cfg   *config.Config
	group int
	store ObjectStore
	opts  []ArchiverOption
}

func NewJob(cfg *config.Config, group int, store ObjectStore, opts ...ArchiverOption) *Job {
	return &Job{cfg: cfg, group: group, store: store, opts: opts}
}

func (j *Job) Kind() string               { return "offload" }
func (j *Job) DiscriminatorName() string  { return "backup_group" }
func (j *Job) DiscriminatorValue() string { return strconv.Itoa(j.group) }

func (j *Job) Execute(ctx context.Context, rc *runner.RunContext) (runner.Status, error) {
	status := runner.Status{}

	if j.group < 0 || j.group >= j.cfg.NumBackupGroups {
		return status, fmt.Errorf("%w: backup group %d out of range [0, %d)", config.ErrInvalid, j.group, j.cfg.NumBackupGroups)
	}
	compression, err := tarwriter.ParseCompression(j.cfg.Offload.Compression)
	if err != nil {
		return status, fmt.Errorf("%w: %w", config.ErrInvalid, err)
	}

	area := staging.NewTarArea(j.cfg.StagingDirectory, j.group, rc.Start)
	if err := area.Create(); err != nil {
		return status, fmt.Errorf("could not create tar area: %w", err)
	}

	bucketer := NewBucketer(rc.DB, area, j.cfg.Offload.MaxBucketSize.Size, j.cfg.Offload.MaxBucketFiles, rc.Lock, rc.Logger,
		WithCopyFiles(j.cfg.Offload.CopyFiles))
	buckets, bstats, err := bucketer.Fill(ctx)
	status.Set("buckets", len(buckets))
	status.Set("stale", bstats.Stale)
	if err != nil {
		return status, err
	}
	if bstats.Files == 0 {
		return status, runner.ErrJobless
	}

	if ensurer, ok := j.store.(bucketEnsurer); ok {
		if err := ensurer.EnsureBucket(ctx); err != nil {
			return status, err
		}
	}

	opts := append([]ArchiverOption{
		WithCompression(compression),
		WithParallel(j.cfg.Offload.Parallel),
		WithRemoteDirectory(j.cfg.Offload.RemoteDirectory),
	}, j.opts...)
	archiver := NewArchiver(rc.DB, j.store, area, rc.Lock, rc.Logger, opts...)

	var astats ArchiveStats
	if j.cfg.Offload.Method == config.OffloadMethodFile {
		astats, err = archiver.SendFiles(ctx, buckets)
	} else {
		astats, err = archiver.SendTars(ctx, buckets)
	}
	status.Set("files", astats.Files)
	status.Set("tars", astats.Tars)
	status.Set("skipped", astats.Skipped)
	status.Bytes = astats.Bytes
	status.Errors = astats.Missing
	return status, err
}

func (j *Job) SummaryLine(status runner.Status, err error) string {
	if err != nil {
		return fmt.Sprintf("ERROR: backup of group %d aborted unexpectedly", j.group)
	}
	return fmt.Sprintf("SUCCESS: %d files of backup group %d sent to remote storage", status.Count("files"), j.group)
}
