package harvest

import (
	"context"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/stupid-simple/medialib/asset"
	"github.com/stupid-simple/medialib/config"
	"github.com/stupid-simple/medialib/database"
	"github.com/stupid-simple/medialib/fileutils"
	"github.com/stupid-simple/medialib/media"
	"github.com/stupid-simple/medialib/staging"
)

// Canceller is polled before every file.
type Canceller interface {
	Check(ctx context.Context) error
}

// Indexer registers the files of a phase1 tree and moves them to phase2.
type Indexer struct {
	db            *database.Database
	area          *staging.Area
	deadLetter    staging.DeadLetter
	duplicatesDir string
	producer      string
	owner         string
	fileTypes     []string
	backupGroups  int
	canceller     Canceller
	logger        zerolog.Logger
	now           func() time.Time
}

type IndexerOption func(*Indexer)

func WithClock(now func() time.Time) IndexerOption {
	return func(ix *Indexer) {
		ix.now = now
	}
}

func NewIndexer(
	db *database.Database,
	cfg *config.Config,
	area *staging.Area,
	canceller Canceller,
	logger zerolog.Logger,
	opts ...IndexerOption,
) *Indexer {
	ix := &Indexer{
		db:            db,
		area:          area,
		deadLetter:    staging.DeadLetter{Root: cfg.DeadImagesDirectory},
		duplicatesDir: cfg.DuplicatesDirectory,
		producer:      cfg.Producer,
		owner:         cfg.Owner,
		fileTypes:     cfg.FileTypes,
		backupGroups:  cfg.NumBackupGroups,
		canceller:     canceller,
		logger:        logger,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// IndexFiles indexes every file below the area's phase1 directory whose
// extension is allowed. Rejected files are relocated and counted; only
// store or filesystem failures end the pass early.
func (ix *Indexer) IndexFiles(ctx context.Context, isResubmit bool) (Stats, error) {
	stats := Stats{}
	logger := ix.logger.With().Bool("resubmit", isResubmit).Logger()

	logger.Info().Msg("starting indexing")
	start := time.Now()
	defer func() {
		ev := logger.Info()
		if stats.Rejected > 0 {
			ev = logger.Warn()
		}
		ev.Object("stats", stats).
			Float64("seconds", time.Since(start).Seconds()).
			Msg("indexing done")
	}()

	spinner := media.NewSpinner(ix.backupGroups)
	files := asset.ScanDirectory(ctx, ix.area.Phase1(), logger, asset.WithExtensions(ix.fileTypes))
	for a := range files {
		if err := ix.canceller.Check(ctx); err != nil {
			return stats, err
		}

		outcome, err := ix.index(ctx, a, spinner.Next(), isResubmit)
		if err != nil {
			logger.Error().Err(err).Object("file", a).Msg("could not index file")
			return stats, err
		}
		stats.record(outcome, a.Size())
	}
	return stats, ctx.Err()
}

func (ix *Indexer) index(ctx context.Context, a asset.Asset, group int, isResubmit bool) (media.Outcome, error) {
	logger := ix.logger.With().Str("file", a.Path()).Logger()

	regno := media.Regno(a.Name())
	if len(regno) > media.MaxRegnoLength {
		logger.Error().Int("length", len(regno)).Msgf("file name too long, maximum is %d", media.MaxRegnoLength)
		return media.OutcomeFileNameTooLong, ix.moveAside(a.Path(), ix.deadLetter.FileNameTooLong(a.Path()))
	}

	existing, err := ix.db.FindByRegno(ctx, regno)
	if err != nil {
		return media.OutcomeOK, err
	}

	now := ix.now().UTC()

	switch {
	case existing == nil && isResubmit:
		logger.Error().Str("regno", regno).Msg("resubmitted file has no media record")
		return media.OutcomeMediaNotFound, ix.moveAside(a.Path(), ix.deadLetter.Resubmit(ix.producer, ix.now(), a.Path()))

	case existing != nil && !isResubmit:
		logger.Error().Object("media", existing).Msg("duplicate media file")
		return media.OutcomeDuplicate, ix.moveAside(a.Path(), filepath.Join(ix.duplicatesDir, a.Name()))

	case existing == nil:
		hash, err := fileutils.ComputeFileHash(a.Path())
		if err != nil {
			return media.OutcomeOK, err
		}
		m := &database.Media{
			Regno:             regno,
			Producer:          ix.producer,
			Owner:             ix.owner,
			BackupGroup:       group,
			SourceFile:        a.Path(),
			SourceFileSize:    a.Size(),
			SourceFileHash:    int64(hash),
			SourceFileCreated: now,
		}
		if err := ix.db.CreateMedia(ctx, m); err != nil {
			return media.OutcomeOK, err
		}
		target := ix.area.Phase2Path(m.ID, a.Name())
		if err := fileutils.Move(a.Path(), target); err != nil {
			return media.OutcomeOK, err
		}
		if _, err := ix.db.SetSourceFile(ctx, m.ID, target); err != nil {
			return media.OutcomeOK, err
		}
		logger.Debug().Object("media", m).Msg("indexed new media file")
		return media.OutcomeOK, nil

	default:
		hash, err := fileutils.ComputeFileHash(a.Path())
		if err != nil {
			return media.OutcomeOK, err
		}
		target := ix.area.Phase2Path(existing.ID, a.Name())
		if err := fileutils.Move(a.Path(), target); err != nil {
			return media.OutcomeOK, err
		}
		ok, err := ix.db.ResetMedia(ctx, existing.ID, database.Resubmission{
			Producer:    ix.producer,
			Owner:       ix.owner,
			SourceFile:  target,
			Size:        a.Size(),
			Hash:        int64(hash),
			Created:     now,
			BackupGroup: group,
		})
		if err != nil {
			return media.OutcomeOK, err
		}
		if !ok {
			// deleted since the lookup; the phase2 copy is an orphan for cleanup
			logger.Warn().Uint64("id", existing.ID).Msg("media record vanished while resubmitting")
			return media.OutcomeMediaNotFound, nil
		}
		logger.Debug().Uint64("id", existing.ID).Msg("indexed resubmitted media file")
		return media.OutcomeOK, nil
	}
}

// moveAside relocates a rejected file, keeping earlier rejects of the same
// name.
func (ix *Indexer) moveAside(src, dst string) error {
	path, err := fileutils.MoveAside(src, dst, staging.RunStamp(ix.now()))
	if err != nil {
		return err
	}
	if path != dst {
		ix.logger.Warn().Str("file", src).Str("moved_to", path).Msg("name already taken, file moved under another name")
	}
	return nil
}
