package offload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stupid-simple/medialib/database"
	"github.com/stupid-simple/medialib/media"
	"github.com/stupid-simple/medialib/s3store"
	"github.com/stupid-simple/medialib/staging"
	"github.com/stupid-simple/medialib/tararchiver"
	"github.com/stupid-simple/medialib/tararchiver/tarwriter"
	"golang.org/x/sync/errgroup"
)

// ObjectStore is the remote side of an offload.
type ObjectStore interface {
	Put(ctx context.Context, key, localPath string) (s3store.Upload, error)
	Stat(ctx context.Context, key string) (s3store.Info, error)
	URI(key string) string
}

// ErrNotConfirmed is returned when an uploaded object does not match what
// was sent.
var ErrNotConfirmed = errors.New("upload not confirmed by remote store")

// ArchiveStats sums up one archival pass.
type ArchiveStats struct {
	Tars    int
	Files   int
	Bytes   int64
	Skipped int // empty buckets
	Missing int // records deleted while archiving
}

func (s ArchiveStats) MarshalZerologObject(e *zerolog.Event) {
	e.Int("tars", s.Tars)
	e.Int("files", s.Files)
	e.Int64("bytes", s.Bytes)
	e.Int("skipped", s.Skipped)
	e.Int("missing", s.Missing)
}

// Archiver sends filled buckets to the object store and flags the records
// they carried.
type Archiver struct {
	db          *database.Database
	store       ObjectStore
	area        *staging.TarArea
	remoteDir   string
	compression tarwriter.Compression
	parallel    int
	canceller   Canceller
	logger      zerolog.Logger
	now         func() time.Time

	mu    sync.Mutex
	stats ArchiveStats
}

type ArchiverOption func(*Archiver)

func WithCompression(c tarwriter.Compression) ArchiverOption {
	return func(a *Archiver) {
		a.compression = c
	}
}

// Number of buckets or files uploaded at the same time.
func WithParallel(n int) ArchiverOption {
	return func(a *Archiver) {
		a.parallel = max(1, n)
	}
}

// Prefix of every object key.
func WithRemoteDirectory(dir string) ArchiverOption {
	return func(a *Archiver) {
		a.remoteDir = dir
	}
}

func WithClock(now func() time.Time) ArchiverOption {
	return func(a *Archiver) {
		a.now = now
	}
}

func NewArchiver(
	db *database.Database,
	store ObjectStore,
	area *staging.TarArea,
	canceller Canceller,
	logger zerolog.Logger,
	opts ...ArchiverOption,
) *Archiver {
	a := &Archiver{
		db:        db,
		store:     store,
		area:      area,
		parallel:  1,
		canceller: canceller,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// TarName is <run>_<bucket>_<group>.tar, with the compression's extension.
func TarName(stamp string, bucket, group int, c tarwriter.Compression) string {
	return fmt.Sprintf("%s_%s_%03d%s", stamp, staging.BucketName(bucket), group, c.Extension())
}

// SendTars bundles every bucket into a tar, uploads it and registers it.
// The first failure stops the pass; buckets already registered stay
// registered.
func (a *Archiver) SendTars(ctx context.Context, buckets []*Bucket) (ArchiveStats, error) {
	return a.run(ctx, "tar", buckets, a.sendTar)
}

// SendFiles uploads the files of every bucket one by one.
func (a *Archiver) SendFiles(ctx context.Context, buckets []*Bucket) (ArchiveStats, error) {
	return a.run(ctx, "file", buckets, a.sendBucketFiles)
}

func (a *Archiver) run(ctx context.Context, method string, buckets []*Bucket, send func(context.Context, *Bucket) error) (ArchiveStats, error) {
	a.stats = ArchiveStats{}
	logger := a.logger.With().Str("method", method).Logger()

	logger.Info().Int("buckets", len(buckets)).Msg("sending buckets to remote store")
	start := time.Now()
	defer func() {
		logger.Info().
			Object("stats", a.stats).
			Float64("seconds", time.Since(start).Seconds()).
			Msg("done sending buckets")
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.parallel)
	for _, b := range buckets {
		if err := a.canceller.Check(ctx); err != nil {
			_ = g.Wait()
			return a.stats, err
		}
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return send(gctx, b)
		})
	}
	err := g.Wait()
	return a.stats, err
}

func (a *Archiver) sendTar(ctx context.Context, b *Bucket) error {
	logger := a.logger.With().Int("bucket", b.Number).Logger()
	tarPath := filepath.Join(a.area.Tars(), TarName(a.area.Stamp(), b.Number, a.area.Group(), a.compression))

	archive, err := tararchiver.ArchiveDirectory(ctx, b.Dir, tarPath, logger, tararchiver.WithCompression(a.compression))
	if errors.Is(err, tararchiver.ErrEmpty) {
		logger.Warn().Str("dir", b.Dir).Msg("empty bucket, skipped")
		a.update(func(s *ArchiveStats) { s.Skipped++ })
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not create tar file for bucket %d: %w", b.Number, err)
	}

	key := s3store.ObjectKey(a.remoteDir, tarPath)
	if _, err := a.upload(ctx, key, tarPath, archive.Size); err != nil {
		return err
	}

	ids := make([]uint64, 0, len(archive.Members))
	for _, member := range archive.Members {
		id, _, err := media.DecodeName(member.Name)
		if err != nil {
			return fmt.Errorf("could not extract database id from %s: %w", member.Path, err)
		}
		ids = append(ids, id)
	}

	tar := &database.TarFile{
		Name:          filepath.Base(tarPath),
		RemoteDir:     a.store.URI(key),
		BackupGroup:   a.area.Group(),
		Size:          archive.Size,
		FileCount:     len(archive.Members),
		BackupCreated: a.now().UTC(),
	}
	missing, err := a.db.RegisterTarFile(ctx, tar, ids)
	if err != nil {
		return fmt.Errorf("could not register tar file %s: %w", tar.Name, err)
	}
	for _, id := range missing {
		logger.Warn().Uint64("id", id).Msg("archived media record no longer exists")
	}

	logger.Info().Str("tar", tar.Name).Int("files", tar.FileCount).Msg("tar file offloaded")
	a.update(func(s *ArchiveStats) {
		s.Tars++
		s.Files += len(ids) - len(missing)
		s.Bytes += archive.Size
		s.Missing += len(missing)
	})
	return nil
}

func (a *Archiver) sendBucketFiles(ctx context.Context, b *Bucket) error {
	entries, err := os.ReadDir(b.Dir)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		a.logger.Warn().Str("dir", b.Dir).Msg("empty bucket, skipped")
		a.update(func(s *ArchiveStats) { s.Skipped++ })
		return nil
	}

	for _, entry := range entries {
		if err := a.canceller.Check(ctx); err != nil {
			return err
		}
		if err := a.sendFile(ctx, filepath.Join(b.Dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func (a *Archiver) sendFile(ctx context.Context, path string) error {
	id, _, err := media.DecodeName(path)
	if err != nil {
		return fmt.Errorf("could not extract database id from %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	key := s3store.ObjectKey(a.remoteDir, path)
	stat, err := a.upload(ctx, key, path, info.Size())
	if err != nil {
		return err
	}

	ok, err := a.db.SetBackupOK(ctx, id, database.BackupConfirmation{
		ETag:        stat.ETag,
		RemoteURI:   a.store.URI(key),
		ConfirmedAt: stat.LastModified,
	})
	if err != nil {
		return err
	}
	if !ok {
		a.logger.Warn().Uint64("id", id).Str("file", path).Msg("archived media record no longer exists")
		a.update(func(s *ArchiveStats) { s.Missing++ })
		return nil
	}
	a.update(func(s *ArchiveStats) {
		s.Files++
		s.Bytes += info.Size()
	})
	return nil
}

// upload puts the file and checks the stored object matches it.
func (a *Archiver) upload(ctx context.Context, key, path string, size int64) (s3store.Info, error) {
	up, err := a.store.Put(ctx, key, path)
	if err != nil {
		return s3store.Info{}, err
	}
	stat, err := a.store.Stat(ctx, key)
	if err != nil {
		return stat, fmt.Errorf("%w: %s: %w", ErrNotConfirmed, key, err)
	}
	if stat.Size != size || (up.ETag != "" && stat.ETag != "" && up.ETag != stat.ETag) {
		return stat, fmt.Errorf("%w: %s: stored %d bytes, etag %q, sent %d bytes, etag %q",
			ErrNotConfirmed, key, stat.Size, stat.ETag, size, up.ETag)
	}
	a.logger.Debug().Str("key", key).Str("etag", stat.ETag).Msg("upload confirmed")
	return stat, nil
}

func (a *Archiver) update(fn func(*ArchiveStats)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fn(&a.stats)
}
