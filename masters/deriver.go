package masters

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"github.com/stupid-simple/medialib/config"
	"github.com/stupid-simple/medialib/database"
	"github.com/stupid-simple/medialib/fileutils"
	"github.com/stupid-simple/medialib/media"
	"github.com/stupid-simple/medialib/staging"
	"github.com/stupid-simple/medialib/transcode"
)

// Action is what happens to a source file on its way to the master store.
type Action int

const (
	// ActionMove copies the file unchanged.
	ActionMove Action = iota + 1
	// ActionConvert transcodes to JPEG keeping the dimensions.
	ActionConvert
	// ActionResize transcodes to JPEG within the maximum image size.
	ActionResize
)

func (a Action) String() string {
	switch a {
	case ActionMove:
		return "move"
	case ActionConvert:
		return "convert"
	case ActionResize:
		return "resize"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

const masterExtension = ".jpg"

// ErrTooManyErrors ends a run once the transcode error budget is spent.
var ErrTooManyErrors = media.ErrTooManyErrors

type Canceller interface {
	Check(ctx context.Context) error
}

// Deriver produces the master copy of the source files of one producer.
type Deriver struct {
	db          *database.Database
	transcoder  transcode.Transcoder
	masterRoot  string
	producer    string
	resizeTypes []string
	maxSize     int
	maxErrors   int
	deadLetter  staging.DeadLetter
	canceller   Canceller
	logger      zerolog.Logger
	now         func() time.Time
	probe       func(path string) (int, int, error)
}

type DeriverOption func(*Deriver)

func WithClock(now func() time.Time) DeriverOption {
	return func(d *Deriver) {
		d.now = now
	}
}

// WithProbe replaces the image header reader.
func WithProbe(probe func(path string) (int, int, error)) DeriverOption {
	return func(d *Deriver) {
		d.probe = probe
	}
}

func NewDeriver(
	db *database.Database,
	cfg *config.Config,
	transcoder transcode.Transcoder,
	canceller Canceller,
	logger zerolog.Logger,
	opts ...DeriverOption,
) *Deriver {
	d := &Deriver{
		db:          db,
		transcoder:  transcoder,
		masterRoot:  cfg.MasterDirectory,
		producer:    cfg.Producer,
		resizeTypes: cfg.ResizeWhen.FileTypes,
		maxSize:     cfg.ResizeWhen.ImageSize,
		maxErrors:   cfg.ImageMagick.MaxErrors,
		deadLetter:  staging.DeadLetter{Root: cfg.DeadImagesDirectory},
		canceller:   canceller,
		logger:      logger,
		now:         time.Now,
		probe:       transcode.Probe,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// TargetDir is <master>/<producer>/<day>.
func (d *Deriver) TargetDir() string {
	return filepath.Join(d.masterRoot, d.producer, d.now().Format(staging.DayLayout))
}

// Action decides once per file. Non raster files are moved. Rasters larger
// than the maximum size are resized, other rasters are moved when already
// JPEG and converted otherwise. A raster whose header cannot be read is
// resized, the transcoder never enlarges.
func (d *Deriver) Action(path string) Action {
	ext := media.Extension(path)
	if !slices.Contains(d.resizeTypes, ext) {
		return ActionMove
	}
	w, h, err := d.probe(path)
	if err != nil {
		d.logger.Debug().Err(err).Str("file", path).Msg("could not probe image")
		return ActionResize
	}
	if w > d.maxSize || h > d.maxSize {
		return ActionResize
	}
	if ext == "jpg" || ext == "jpeg" {
		return ActionMove
	}
	return ActionConvert
}

// ProcessFile writes the master copy of the record's source file into
// targetDir and flags the record. A missing source file deletes the record.
// A file the transcoder rejects is quarantined and its record deleted.
func (d *Deriver) ProcessFile(ctx context.Context, m *database.Media, targetDir string) (string, media.Outcome, error) {
	logger := d.logger.With().Uint64("id", m.ID).Str("file", m.SourceFile).Logger()

	if !fileutils.Exists(m.SourceFile) {
		logger.Warn().Object("media", m).Msg("stale database record, source file is missing")
		return "", media.OutcomeStale, d.db.DeleteMedia(ctx, m, database.ReasonStaleSource)
	}
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return "", media.OutcomeOK, err
	}

	action := d.Action(m.SourceFile)
	var master string
	switch action {
	case ActionMove:
		master = filepath.Join(targetDir, filepath.Base(m.SourceFile))
		if err := os.Remove(master); err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", media.OutcomeOK, err
		}
		if err := fileutils.Copy(m.SourceFile, master); err != nil {
			return "", media.OutcomeOK, err
		}
	default:
		master = filepath.Join(targetDir, media.Regno(m.SourceFile)+masterExtension)
		out := transcode.Output{Path: master}
		if action == ActionResize {
			out.MaxDimension = d.maxSize
		}
		err := d.transcoder.Transcode(ctx, m.SourceFile, out)
		var terr *transcode.Error
		if errors.As(err, &terr) {
			logger.Error().Err(err).Str("output", terr.Output).Msg("could not create master file")
			logger.Debug().Str("command", terr.CommandLine()).Msg("failed command")
			return "", media.OutcomeTranscodeError, d.quarantine(ctx, m)
		}
		if err != nil {
			return "", media.OutcomeOK, err
		}
	}

	ok, err := d.db.SetMasterFile(ctx, m.ID, master)
	if err != nil {
		return "", media.OutcomeOK, err
	}
	if !ok {
		logger.Warn().Msg("media record vanished while creating master file")
		return master, media.OutcomeStale, nil
	}
	logger.Debug().Stringer("action", action).Str("master", master).Msg("master file created")
	return master, media.OutcomeOK, nil
}

func (d *Deriver) quarantine(ctx context.Context, m *database.Media) error {
	if err := d.db.DeleteMedia(ctx, m, database.ReasonTranscodeError); err != nil {
		return err
	}
	path, err := fileutils.MoveAside(m.SourceFile, d.deadLetter.SourceFile(d.producer, d.now(), m.SourceFile), staging.RunStamp(d.now()))
	if err != nil {
		return err
	}
	d.logger.Info().Uint64("id", m.ID).Str("dead_letter", path).Msg("file quarantined")
	return nil
}

// CreateMasterFiles processes every record of the producer without a master
// file. Stale records are skipped, transcode errors are counted and end the
// run with ErrTooManyErrors once the configured maximum is reached.
func (d *Deriver) CreateMasterFiles(ctx context.Context) (Stats, error) {
	stats := Stats{}
	logger := d.logger.With().Str("producer", d.producer).Logger()
	targetDir := d.TargetDir()

	logger.Info().Str("target", targetDir).Msg("publishing master files")
	start := time.Now()
	defer func() {
		ev := logger.Info()
		if stats.Errors > 0 {
			ev = logger.Warn()
		}
		ev.Object("stats", stats).
			Float64("seconds", time.Since(start).Seconds()).
			Msg("publishing master files done")
	}()

	progress := logger.Sample(&zerolog.BurstSampler{
		Burst:  1,
		Period: 10 * time.Second,
	})
	for m, err := range d.db.Pending(ctx, database.StageMaster, database.WithProducer(d.producer)) {
		if err != nil {
			return stats, err
		}
		if err := d.canceller.Check(ctx); err != nil {
			return stats, err
		}

		_, outcome, err := d.ProcessFile(ctx, m, targetDir)
		if err != nil {
			return stats, err
		}
		stats.record(outcome, m.SourceFileSize)
		progress.Debug().Int("processed", stats.Processed).Msg("creating master files")

		if outcome == media.OutcomeTranscodeError && d.maxErrors > 0 && stats.Errors >= d.maxErrors {
			return stats, ErrTooManyErrors
		}
	}
	return stats, ctx.Err()
}
