package offload

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/stupid-simple/medialib/database"
	"github.com/stupid-simple/medialib/fileutils"
	"github.com/stupid-simple/medialib/media"
	"github.com/stupid-simple/medialib/staging"
)

// Canceller is polled before every record and bucket.
type Canceller interface {
	Check(ctx context.Context) error
}

// Bucket is a directory of files archived together.
type Bucket struct {
	Number int
	Dir    string
	Files  int
	Bytes  int64
}

func (b *Bucket) admits(size, maxSize int64, maxFiles int) bool {
	if b.Files == 0 {
		return true
	}
	return b.Bytes+size <= maxSize && b.Files+1 <= maxFiles
}

func (b *Bucket) MarshalZerologObject(e *zerolog.Event) {
	e.Int("bucket", b.Number)
	e.Int("files", b.Files)
	e.Str("size", humanize.Bytes(uint64(b.Bytes)))
}

// Bucketer fills the buckets of a tar area from the offloadable records
// of its backup group.
type Bucketer struct {
	db        *database.Database
	area      *staging.TarArea
	maxSize   int64
	maxFiles  int
	copyFiles bool
	canceller Canceller
	logger    zerolog.Logger
}

type BucketerOption func(*Bucketer)

// Copy files into buckets instead of linking them, for archivers that do
// not follow symbolic links.
func WithCopyFiles(copyFiles bool) BucketerOption {
	return func(b *Bucketer) {
		b.copyFiles = copyFiles
	}
}

func NewBucketer(
	db *database.Database,
	area *staging.TarArea,
	maxSize int64,
	maxFiles int,
	canceller Canceller,
	logger zerolog.Logger,
	opts ...BucketerOption,
) *Bucketer {
	b := &Bucketer{
		db:        db,
		area:      area,
		maxSize:   maxSize,
		maxFiles:  maxFiles,
		canceller: canceller,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BucketStats sums up one Fill.
type BucketStats struct {
	Files int
	Bytes int64
	Stale int
}

// Fill distributes the records of the group over new buckets. A bucket is
// closed before admitting a file that would push it past the size or file
// limit. The first file of a bucket is always admitted. Records whose
// source file is gone are deleted.
func (b *Bucketer) Fill(ctx context.Context) ([]*Bucket, BucketStats, error) {
	stats := BucketStats{}
	buckets := []*Bucket{}
	logger := b.logger.With().Str("buckets_dir", b.area.Buckets()).Logger()

	logger.Info().Msg("moving media to tar area")
	start := time.Now()
	defer func() {
		logger.Info().
			Int("files", stats.Files).
			Int("stale", stats.Stale).
			Int("buckets", len(buckets)).
			Str("size", humanize.Bytes(uint64(stats.Bytes))).
			Float64("seconds", time.Since(start).Seconds()).
			Msg("done moving media to tar area")
	}()

	var current *Bucket
	for m, err := range b.db.Pending(ctx, database.StageBackup, database.WithBackupGroup(b.area.Group())) {
		if err != nil {
			return buckets, stats, err
		}
		if err := b.canceller.Check(ctx); err != nil {
			return buckets, stats, err
		}

		info, err := os.Stat(m.SourceFile)
		if err != nil {
			logger.Warn().Err(err).Object("media", m).Msg("stale database record, it will be removed from the media database")
			if err := b.db.DeleteMedia(ctx, m, database.ReasonStaleSource); err != nil {
				return buckets, stats, err
			}
			stats.Stale++
			continue
		}

		size := info.Size()
		if current == nil || !current.admits(size, b.maxSize, b.maxFiles) {
			current = &Bucket{Number: len(buckets) + 1}
			current.Dir = b.area.Bucket(current.Number)
			if err := os.MkdirAll(current.Dir, 0755); err != nil {
				return buckets, stats, err
			}
			buckets = append(buckets, current)
			logger.Debug().Int("bucket", current.Number).Msg("new bucket")
		}

		target := filepath.Join(current.Dir, bucketName(m))
		if b.copyFiles {
			err = fileutils.Copy(m.SourceFile, target)
		} else {
			err = fileutils.Symlink(m.SourceFile, target)
		}
		if err != nil {
			return buckets, stats, err
		}

		current.Files++
		current.Bytes += size
		stats.Files++
		stats.Bytes += size
	}

	return buckets, stats, ctx.Err()
}

// bucketName is the id-prefixed name of the record's file inside a bucket.
// A record indexed but never moved out of phase1 still has a bare name.
func bucketName(m *database.Media) string {
	name := filepath.Base(m.SourceFile)
	if id, original, err := media.DecodeName(name); err == nil && id == m.ID {
		name = original
	}
	return media.EncodeName(m.ID, name)
}
