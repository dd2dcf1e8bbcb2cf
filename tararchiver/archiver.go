package tararchiver

import (
	"archive/tar"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/stupid-simple/medialib/asset"
	"github.com/stupid-simple/medialib/fileutils"
	"github.com/stupid-simple/medialib/tararchiver/tarwriter"
)

// ErrEmpty is returned for a directory without files; no archive is created.
var ErrEmpty = errors.New("nothing to archive")

// Member is one file stored in an archive.
type Member struct {
	Name string
	Path string
	Size int64
	Hash uint64
}

func (m Member) MarshalZerologObject(e *zerolog.Event) {
	e.Str("name", m.Name)
	e.Str("path", m.Path)
	e.Int64("size", m.Size)
	e.Uint64("hash", m.Hash)
}

type Archive struct {
	Path    string
	Size    int64 // size of the archive file
	Members []Member
}

type archiveOptions struct {
	compression tarwriter.Compression
}

type ArchiveOption func(*archiveOptions)

func WithCompression(c tarwriter.Compression) ArchiveOption {
	return func(o *archiveOptions) {
		o.compression = c
	}
}

// ArchiveDirectory writes every file below dir into a tar at dest. Symbolic
// links are archived as the files they point to, under the link's name.
// A failure removes the partial archive.
func ArchiveDirectory(ctx context.Context, dir, dest string, logger zerolog.Logger, opts ...ArchiveOption) (archive *Archive, err error) {
	o := archiveOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	logger = logger.With().Str("dir", dir).Str("archive", dest).Logger()
	tarFile := tarwriter.NewLazyTarFile(dest, o.compression)
	archive = &Archive{Path: dest}

	start := time.Now()
	defer func() {
		closeErr := tarFile.Close()
		err = errors.Join(err, closeErr)
		if err == nil && ctx.Err() != nil {
			err = ctx.Err()
		}
		if err != nil {
			if delErr := tarFile.Delete(); delErr != nil {
				logger.Warn().Err(delErr).Msg("could not delete partial archive")
			}
			return
		}
		if len(archive.Members) == 0 {
			err = ErrEmpty
			return
		}
		info, statErr := os.Stat(dest)
		if statErr != nil {
			err = statErr
			return
		}
		archive.Size = info.Size()
		logger.Info().
			Int("files_count", len(archive.Members)).
			Int64("archive_size", archive.Size).
			Float64("seconds", time.Since(start).Seconds()).
			Msg("successfully written archive")
	}()

	for a := range asset.ScanDirectory(ctx, dir, logger, asset.WithSymlinks()) {
		name, err := filepath.Rel(dir, a.Path())
		if err != nil {
			return archive, err
		}
		member, err := writeMember(tarFile, a.Path(), filepath.ToSlash(name))
		if err != nil {
			logger.Error().Err(err).Object("asset", a).Msg("could not archive file")
			return archive, err
		}
		logger.Debug().Object("member", member).Msg("archived file")
		archive.Members = append(archive.Members, member)
	}

	return archive, nil
}

func writeMember(tarFile *tarwriter.TarFile, path, name string) (Member, error) {
	f, err := os.Open(path)
	if err != nil {
		return Member{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Member{}, err
	}

	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return Member{}, err
	}
	hdr.Name = name

	w, err := tarFile.WriteHeader(hdr)
	if err != nil {
		return Member{}, err
	}

	// Write to the tar as well as compute hash.
	h, err := fileutils.ComputeHash(io.TeeReader(f, w))
	if err != nil {
		return Member{}, err
	}

	return Member{Name: name, Path: path, Size: info.Size(), Hash: h}, nil
}
