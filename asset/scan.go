package asset

import (
	"context"
	"io/fs"
	"iter"
	"path/filepath"
	"slices"
	"time"

	"github.com/rs/zerolog"
)

type scanOptions struct {
	extensions []string
	symlinks   bool
}

type ScanOption func(*scanOptions)

// Only yield files with one of the extensions, compared case insensitively.
func WithExtensions(extensions []string) ScanOption {
	return func(o *scanOptions) {
		o.extensions = extensions
	}
}

// Yield symbolic links too, without following them.
func WithSymlinks() ScanOption {
	return func(o *scanOptions) {
		o.symlinks = true
	}
}

// ScanDirectory walks dirPath in lexical order.
func ScanDirectory(ctx context.Context, dirPath string, logger zerolog.Logger, opts ...ScanOption) iter.Seq[Asset] {
	o := scanOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	return func(yield func(Asset) bool) {
		var scannedCount int
		var statFiles int

		logger = logger.With().Str("dir", dirPath).Logger()
		logger.Debug().Msg("start scanning for assets")
		defer func() {
			logger.Debug().
				Int("scanned", statFiles).
				Int("scanned_success", scannedCount).
				Msgf("done scanning assets")
		}()

		throttledLogger := logger.Sample(&zerolog.BurstSampler{
			Burst:  1,
			Period: 1 * time.Second,
		})
		err := filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return filepath.SkipAll
			}

			if err != nil {
				logger.Warn().Err(err).Str("path", path).Msg("could not scan path")
				return nil
			}
			if d.IsDir() {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				logger.Warn().Err(err).Str("path", path).Msg("could not stat path")
				return nil
			}
			mode := info.Mode()
			if !mode.IsRegular() && !(o.symlinks && mode&fs.ModeSymlink != 0) {
				return nil
			}
			statFiles++

			newAsset, err := NewFromFS(path, info)
			if err != nil {
				logger.Warn().Err(err).Str("path", path).Msg("could not create asset")
				return nil
			}
			if len(o.extensions) > 0 && !slices.Contains(o.extensions, newAsset.Extension()) {
				return nil
			}

			if !yield(newAsset) {
				return filepath.SkipAll
			}
			scannedCount++
			logger.Trace().Object("asset", newAsset).Msg("scanned asset")
			throttledLogger.Info().
				Int("scanned", statFiles).
				Int("scanned_success", scannedCount).
				Msg("scanning assets")

			return nil
		})
		if err != nil {
			logger.Error().Err(err).Msg("could not scan path")
		}
	}
}
