package harvest

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/rs/zerolog"
	"github.com/stupid-simple/medialib/asset"
	"github.com/stupid-simple/medialib/fileutils"
)

// Intake moves the allowed files below from into dest, keeping the
// directory structure. Other files are left where they are.
func Intake(ctx context.Context, from, dest string, fileTypes []string, logger zerolog.Logger) (int, error) {
	logger = logger.With().Str("from", from).Str("to", dest).Logger()
	if !fileutils.Exists(from) {
		logger.Warn().Msg("source directory does not exist")
		return 0, nil
	}

	var moved int
	for a := range asset.ScanDirectory(ctx, from, logger, asset.WithExtensions(fileTypes)) {
		rel, err := filepath.Rel(from, a.Path())
		if err != nil {
			return moved, err
		}
		if err := fileutils.Move(a.Path(), filepath.Join(dest, rel)); err != nil {
			logger.Error().Err(err).Object("file", a).Msg("could not move file into staging area")
			return moved, err
		}
		moved++
	}
	logger.Info().Int("moved", moved).Msg("moved media into staging area")
	if err := ctx.Err(); err != nil {
		return moved, err
	}
	pruneEmptyDirs(from, logger)
	return moved, nil
}

// pruneEmptyDirs removes the directories below root left empty by the
// intake, deepest first. root itself stays.
func pruneEmptyDirs(root string, logger zerolog.Logger) {
	var dirs []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err == nil && d.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})
	for _, dir := range slices.Backward(dirs) {
		empty, err := fileutils.IsEmptyDir(dir)
		if err != nil || !empty {
			continue
		}
		if err := os.Remove(dir); err != nil {
			logger.Warn().Err(err).Str("dir", dir).Msg("could not remove empty directory")
		}
	}
}
