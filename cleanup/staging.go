package cleanup

import (
	"context"
	"path/filepath"
	"time"

	"github.com/stupid-simple/medialib/media"
	"github.com/stupid-simple/medialib/staging"
)

// CleanStaging removes run directories of the staging area whose files are
// all backed up, mastered and published, superseded, or orphaned. Without
// sweep only the configured producer is considered and a run directory
// that also holds other producers is kept.
func (c *Cleaner) CleanStaging(ctx context.Context) (Stats, bool, error) {
	stats := Stats{}
	clean := true
	logger := c.logger.With().Str("staging", c.stagingDir).Logger()

	logger.Info().Msg("cleaning staging area")
	start := time.Now()
	defer func() {
		logger.Info().
			Object("stats", stats).
			Bool("clean", clean).
			Float64("seconds", time.Since(start).Seconds()).
			Msg("cleaning staging area done")
	}()

	entries, ok, err := readDir(c.stagingDir)
	if err != nil {
		return stats, false, err
	}
	if !ok {
		logger.Warn().Msg("no staging area at configured location")
		return stats, true, nil
	}

	for _, entry := range entries {
		if err := c.canceller.Check(ctx); err != nil {
			return stats, false, err
		}
		if entry.Name() == staging.TarAreaDir {
			continue
		}
		dir := filepath.Join(c.stagingDir, entry.Name())
		stamp, expired, err := c.expired(entry.Name())
		if err != nil || !entry.IsDir() {
			logger.Warn().Str("path", dir).Msg("unexpected entry in staging area")
			stats.Kept++
			clean = false
			continue
		}
		if !expired {
			logger.Info().Str("run", entry.Name()).Dur("min_age", c.minAge).Msg("ignoring staging area, too young")
			continue
		}

		stats.Inspected++
		ok, err := c.cleanRunDir(ctx, dir, stamp, &stats)
		if err != nil {
			return stats, false, err
		}
		if !ok {
			clean = false
		}
	}
	return stats, clean, nil
}

func (c *Cleaner) cleanRunDir(ctx context.Context, dir string, stamp time.Time, stats *Stats) (bool, error) {
	logger := c.logger.With().Str("run", filepath.Base(dir)).Logger()
	logger.Info().Time("created", stamp).Msg("cleaning staging area of run")

	entries, _, err := readDir(dir)
	if err != nil {
		return false, err
	}
	if len(entries) == 0 {
		logger.Info().Msg("empty staging area, removing")
		stats.Removed++
		return true, c.remove(ctx, dir)
	}

	clean := true
	alien := false
	for _, entry := range entries {
		if err := c.canceller.Check(ctx); err != nil {
			return false, err
		}
		if !c.sweep && entry.Name() != c.producer {
			logger.Info().Str("producer", entry.Name()).Msg("ignoring staging area of another producer")
			alien = true
			continue
		}
		if !entry.IsDir() {
			logger.Warn().Str("file", entry.Name()).Msg("file found at unexpected location in staging area")
			stats.Kept++
			clean = false
			continue
		}
		ok, err := c.cleanProducerDir(ctx, filepath.Join(dir, entry.Name()), stamp, stats)
		if err != nil {
			return false, err
		}
		if !ok {
			clean = false
		}
	}

	switch {
	case !clean:
		logger.Warn().Msg("staging area of run not removed")
	case alien:
		logger.Info().Msg("staging area of run not removed, it is also used by other producers")
	default:
		if err := c.remove(ctx, dir); err != nil {
			return false, err
		}
		stats.Removed++
		logger.Info().Msg("staging area of run removed")
	}
	return clean, nil
}

// cleanProducerDir removes the whole producer subtree when every phase2
// file can go.
func (c *Cleaner) cleanProducerDir(ctx context.Context, dir string, stamp time.Time, stats *Stats) (bool, error) {
	producer := filepath.Base(dir)
	logger := c.logger.With().Str("producer", producer).Str("dir", dir).Logger()

	files, ok, err := readDir(filepath.Join(dir, staging.Phase2Dir))
	if err != nil {
		return false, err
	}
	if !ok {
		logger.Warn().Msg("no phase2 directory for producer, cannot proceed")
		stats.Kept++
		return false, nil
	}

	clean := true
	for _, f := range files {
		stats.Files++
		v, m, err := c.judge(ctx, f.Name(), stamp, media.StateComplete)
		if err != nil {
			return false, err
		}
		switch v {
		case junk:
			logger.Warn().Str("file", f.Name()).Msg("file without record id in staging area")
		case orphan:
			logger.Debug().Str("file", f.Name()).Msg("marked for deletion, no matching record")
		case superseded:
			logger.Debug().Str("file", f.Name()).Msg("marked for deletion, a newer version has been indexed")
		case keep:
			logger.Warn().Str("file", f.Name()).Stringer("state", m.State()).Msg("cannot remove file")
			clean = false
		}
	}

	if !clean {
		logger.Warn().Msg("staging area of producer not removed")
		stats.Kept++
		return false, nil
	}
	if err := c.remove(ctx, dir); err != nil {
		return false, err
	}
	stats.Removed++
	logger.Info().Msg("staging area of producer removed")
	return true, nil
}
