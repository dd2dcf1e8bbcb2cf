package cleanup

import (
	"context"
	"path/filepath"
	"time"

	"github.com/stupid-simple/medialib/media"
	"github.com/stupid-simple/medialib/staging"
)

// CleanTarArea removes backup group directories of the tar area whose
// bucketed files are all backed up, superseded or orphaned.
func (c *Cleaner) CleanTarArea(ctx context.Context) (Stats, bool, error) {
	stats := Stats{}
	clean := true
	root := filepath.Join(c.stagingDir, staging.TarAreaDir)
	logger := c.logger.With().Str("tar_area", root).Logger()

	logger.Info().Msg("cleaning tar area")
	start := time.Now()
	defer func() {
		logger.Info().
			Object("stats", stats).
			Bool("clean", clean).
			Float64("seconds", time.Since(start).Seconds()).
			Msg("cleaning tar area done")
	}()

	entries, ok, err := readDir(root)
	if err != nil {
		return stats, false, err
	}
	if !ok {
		logger.Warn().Msg("no tar area at configured location")
		return stats, true, nil
	}

	for _, entry := range entries {
		if err := c.canceller.Check(ctx); err != nil {
			return stats, false, err
		}
		dir := filepath.Join(root, entry.Name())
		stamp, expired, err := c.expired(entry.Name())
		if err != nil || !entry.IsDir() {
			logger.Warn().Str("path", dir).Msg("unexpected entry in tar area")
			stats.Kept++
			clean = false
			continue
		}
		if !expired {
			continue
		}

		stats.Inspected++
		ok, err := c.cleanTarRunDir(ctx, dir, stamp, &stats)
		if err != nil {
			return stats, false, err
		}
		if !ok {
			clean = false
		}
	}
	return stats, clean, nil
}

func (c *Cleaner) cleanTarRunDir(ctx context.Context, dir string, stamp time.Time, stats *Stats) (bool, error) {
	logger := c.logger.With().Str("run", filepath.Base(dir)).Logger()

	groups, _, err := readDir(dir)
	if err != nil {
		return false, err
	}

	clean := true
	for _, group := range groups {
		if err := c.canceller.Check(ctx); err != nil {
			return false, err
		}
		groupDir := filepath.Join(dir, group.Name())
		ok, err := c.checkBuckets(ctx, filepath.Join(groupDir, staging.BucketsDir), stamp, stats)
		if err != nil {
			return false, err
		}
		if !ok {
			logger.Warn().Str("group", group.Name()).Msg("backup group not removed")
			stats.Kept++
			clean = false
			continue
		}
		if err := c.remove(ctx, groupDir); err != nil {
			return false, err
		}
		stats.Removed++
		logger.Info().Str("group", group.Name()).Msg("backup group removed")
	}

	if clean {
		if err := c.remove(ctx, dir); err != nil {
			return false, err
		}
		stats.Removed++
	}
	return clean, nil
}

// checkBuckets reports whether every bucketed file is backed up.
func (c *Cleaner) checkBuckets(ctx context.Context, root string, stamp time.Time, stats *Stats) (bool, error) {
	buckets, _, err := readDir(root)
	if err != nil {
		return false, err
	}
	for _, bucket := range buckets {
		if err := c.canceller.Check(ctx); err != nil {
			return false, err
		}
		files, _, err := readDir(filepath.Join(root, bucket.Name()))
		if err != nil {
			return false, err
		}
		for _, f := range files {
			stats.Files++
			v, m, err := c.judge(ctx, f.Name(), stamp, media.State(media.StageBackup))
			if err != nil {
				return false, err
			}
			switch v {
			case junk:
				c.logger.Error().Str("file", f.Name()).Msg("rogue file in tar area")
			case keep:
				c.logger.Debug().Str("file", f.Name()).Stringer("state", m.State()).Msg("bucketed file not backed up yet")
				return false, nil
			}
		}
	}
	return true, nil
}
