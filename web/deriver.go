package web

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/stupid-simple/medialib/config"
	"github.com/stupid-simple/medialib/database"
	"github.com/stupid-simple/medialib/fileutils"
	"github.com/stupid-simple/medialib/media"
	"github.com/stupid-simple/medialib/staging"
	"github.com/stupid-simple/medialib/transcode"
)

type Action int

const (
	ActionMove Action = iota + 1
	ActionDerive
)

func (a Action) String() string {
	if a == ActionDerive {
		return "derive"
	}
	return "move"
}

// ActionFor derives JPEG masters and moves everything else as is.
func ActionFor(path string) Action {
	switch media.Extension(path) {
	case "jpg", "jpeg":
		return ActionDerive
	default:
		return ActionMove
	}
}

// Variant is one size of a derived web image.
type Variant struct {
	Name string
	config.Variant
}

type Canceller interface {
	Check(ctx context.Context) error
}

// Deriver publishes master files to the web directory.
type Deriver struct {
	db         *database.Database
	transcoder transcode.Transcoder
	wwwRoot    string
	producer   string
	variants   []Variant
	maxErrors  int
	deadLetter staging.DeadLetter
	canceller  Canceller
	logger     zerolog.Logger
	now        func() time.Time
}

type DeriverOption func(*Deriver)

func WithClock(now func() time.Time) DeriverOption {
	return func(d *Deriver) {
		d.now = now
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
		db:         db,
		transcoder: transcoder,
		wwwRoot:    cfg.WWWDirectory,
		producer:   cfg.Producer,
		variants: []Variant{
			{"large", cfg.ImageMagick.Large},
			{"medium", cfg.ImageMagick.Medium},
			{"small", cfg.ImageMagick.Small},
		},
		maxErrors:  cfg.ImageMagick.MaxErrors,
		deadLetter: staging.DeadLetter{Root: cfg.DeadImagesDirectory},
		canceller:  canceller,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// WWWDir is <www>/<producer>/<day>. Derived images go into one subdirectory
// per variant, moved files into the directory itself.
func (d *Deriver) WWWDir() string {
	return filepath.Join(d.wwwRoot, d.producer, d.now().Format(staging.DayLayout))
}

func (d *Deriver) createDirs(wwwDir string) error {
	if err := os.MkdirAll(wwwDir, 0755); err != nil {
		return err
	}
	for _, v := range d.variants {
		if err := os.MkdirAll(filepath.Join(wwwDir, v.Name), 0755); err != nil {
			return err
		}
	}
	return nil
}

// ProcessFile publishes the master file of one record. A missing master
// deletes the record, a master the transcoder rejects is quarantined and
// its record deleted.
func (d *Deriver) ProcessFile(ctx context.Context, m *database.Media, wwwDir string) (media.Outcome, error) {
	logger := d.logger.With().Uint64("id", m.ID).Str("file", m.MasterFile).Logger()

	if m.MasterFile == "" || !fileutils.Exists(m.MasterFile) {
		logger.Warn().Object("media", m).Msg("stale database record, master file is missing")
		return media.OutcomeStale, d.db.DeleteMedia(ctx, m, database.ReasonStaleMaster)
	}
	if err := d.createDirs(wwwDir); err != nil {
		return media.OutcomeOK, err
	}

	name := filepath.Base(m.MasterFile)
	action := ActionFor(m.MasterFile)
	if action == ActionMove {
		target := filepath.Join(wwwDir, name)
		if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
			return media.OutcomeOK, err
		}
		if err := fileutils.Copy(m.MasterFile, target); err != nil {
			return media.OutcomeOK, err
		}
	} else {
		outputs := make([]transcode.Output, 0, len(d.variants))
		for _, v := range d.variants {
			outputs = append(outputs, transcode.Output{
				Path:         filepath.Join(wwwDir, v.Name, name),
				MaxDimension: v.Size,
				Quality:      v.Quality,
			})
		}
		err := d.transcoder.Transcode(ctx, m.MasterFile, outputs...)
		var terr *transcode.Error
		if errors.As(err, &terr) {
			logger.Error().Err(err).Str("output", terr.Output).Msg("could not create web files")
			logger.Debug().Str("command", terr.CommandLine()).Msg("failed command")
			return media.OutcomeTranscodeError, d.quarantine(ctx, m)
		}
		if err != nil {
			return media.OutcomeOK, err
		}
	}

	ok, err := d.db.SetWebFile(ctx, m.ID, wwwDir, name)
	if err != nil {
		return media.OutcomeOK, err
	}
	if !ok {
		logger.Warn().Msg("media record vanished while creating web files")
		return media.OutcomeStale, nil
	}
	logger.Debug().Stringer("action", action).Str("www_dir", wwwDir).Msg("web files created")
	return media.OutcomeOK, nil
}

func (d *Deriver) quarantine(ctx context.Context, m *database.Media) error {
	if err := d.db.DeleteMedia(ctx, m, database.ReasonTranscodeError); err != nil {
		return err
	}
	path, err := fileutils.MoveAside(m.MasterFile, d.deadLetter.MasterFile(d.producer, d.now(), m.MasterFile), staging.RunStamp(d.now()))
	if err != nil {
		return err
	}
	d.logger.Info().Uint64("id", m.ID).Str("dead_letter", path).Msg("file quarantined")
	return nil
}

// CreateWebFiles publishes every mastered record of the producer that is
// not on the web yet.
func (d *Deriver) CreateWebFiles(ctx context.Context) (Stats, error) {
	stats := Stats{}
	logger := d.logger.With().Str("producer", d.producer).Logger()
	wwwDir := d.WWWDir()

	logger.Info().Str("www_dir", wwwDir).Msg("publishing media to web")
	start := time.Now()
	defer func() {
		ev := logger.Info()
		if stats.Errors > 0 {
			ev = logger.Warn()
		}
		ev.Object("stats", stats).
			Float64("seconds", time.Since(start).Seconds()).
			Msg("publishing media to web done")
	}()

	progress := logger.Sample(&zerolog.BurstSampler{
		Burst:  1,
		Period: 10 * time.Second,
	})
	for m, err := range d.db.Pending(ctx, database.StageWeb, database.WithProducer(d.producer)) {
		if err != nil {
			return stats, err
		}
		if err := d.canceller.Check(ctx); err != nil {
			return stats, err
		}

		outcome, err := d.ProcessFile(ctx, m, wwwDir)
		if err != nil {
			return stats, err
		}
		stats.record(outcome)
		progress.Debug().Int("processed", stats.Processed).Msg("creating web files")

		if outcome == media.OutcomeTranscodeError && d.maxErrors > 0 && stats.Errors >= d.maxErrors {
			return stats, media.ErrTooManyErrors
		}
	}
	return stats, ctx.Err()
}

type Stats struct {
	Processed int
	Published int
	Stale     int
	Errors    int
}

func (s *Stats) record(o media.Outcome) {
	s.Processed++
	switch o {
	case media.OutcomeOK:
		s.Published++
	case media.OutcomeStale:
		s.Stale++
	case media.OutcomeTranscodeError:
		s.Errors++
	}
}

func (s Stats) MarshalZerologObject(e *zerolog.Event) {
	e.Int("processed", s.Processed)
	e.Int("published", s.Published)
	e.Int("stale", s.Stale)
	e.Int("errors", s.Errors)
}
