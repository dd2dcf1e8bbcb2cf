package cleanup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stupid-simple/medialib/config"
	"github.com/stupid-simple/medialib/database"
	"github.com/stupid-simple/medialib/media"
	"github.com/stupid-simple/medialib/staging"
)

type Canceller interface {
	Check(ctx context.Context) error
}

// Cleaner reclaims staging and tar area directories once everything they
// hold has reached its destinations.
type Cleaner struct {
	db              *database.Database
	stagingDir      string
	producer        string
	sweep           bool
	unixRemove      bool
	minAge          time.Duration
	supersededAfter time.Duration
	canceller       Canceller
	logger          zerolog.Logger
	now             func() time.Time
}

type CleanerOption func(*Cleaner)

func WithClock(now func() time.Time) CleanerOption {
	return func(c *Cleaner) {
		c.now = now
	}
}

func NewCleaner(db *database.Database, cfg *config.Config, canceller Canceller, logger zerolog.Logger, opts ...CleanerOption) *Cleaner {
	c := &Cleaner{
		db:              db,
		stagingDir:      cfg.StagingDirectory,
		producer:        cfg.Producer,
		sweep:           cfg.Cleaner.Sweep,
		unixRemove:      cfg.Cleaner.UnixRemove,
		minAge:          cfg.Cleaner.MinAge(),
		supersededAfter: cfg.Cleaner.SupersededAfter(),
		canceller:       canceller,
		logger:          logger,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stats sums up a sweep. Kept counts entries left in place, either
// unexpected or holding files that are still needed.
type Stats struct {
	Inspected int
	Removed   int
	Kept      int
	Files     int
}

func (s *Stats) Add(other Stats) {
	s.Inspected += other.Inspected
	s.Removed += other.Removed
	s.Kept += other.Kept
	s.Files += other.Files
}

func (s Stats) MarshalZerologObject(e *zerolog.Event) {
	e.Int("inspected", s.Inspected)
	e.Int("removed", s.Removed)
	e.Int("kept", s.Kept)
	e.Int("files", s.Files)
}

// verdict is what a sweep decides for one file.
type verdict int

const (
	keep verdict = iota
	junk
	orphan
	superseded
	done
)

// judge resolves a staged file to its record. need is the set of stages
// that must be complete before the file can go.
func (c *Cleaner) judge(ctx context.Context, name string, created time.Time, need media.State) (verdict, *database.Media, error) {
	id, _, err := media.DecodeName(name)
	if err != nil {
		return junk, nil, nil
	}
	m, err := c.db.GetMedia(ctx, id)
	if err != nil {
		return keep, nil, err
	}
	if m == nil {
		return orphan, nil, nil
	}
	if m.SourceFileCreated.Sub(created) > c.supersededAfter {
		return superseded, m, nil
	}
	if m.State()&need == need {
		return done, m, nil
	}
	return keep, m, nil
}

// expired reports whether a run directory is old enough to be reclaimed.
func (c *Cleaner) expired(name string) (time.Time, bool, error) {
	stamp, ok := staging.ParseRunStamp(name)
	if !ok {
		return stamp, false, fmt.Errorf("not expected at this location: %s", name)
	}
	return stamp, c.now().Sub(stamp) >= c.minAge, nil
}

func (c *Cleaner) remove(ctx context.Context, dir string) error {
	if !c.unixRemove {
		return os.RemoveAll(dir)
	}
	out, err := exec.CommandContext(ctx, "rm", "-rf", dir).CombinedOutput()
	if err != nil {
		c.logger.Debug().Str("output", strings.TrimSpace(string(out))).Msg("rm failed")
		return fmt.Errorf("could not delete directory %s: %w", dir, err)
	}
	return nil
}

func readDir(dir string) ([]os.DirEntry, bool, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	return entries, true, err
}
