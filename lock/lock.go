package lock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/danjacques/gofslock/fslock"
	"github.com/rs/zerolog"
)

var (
	// ErrBusy is returned when another run owns the marker.
	ErrBusy = errors.New("another run holds the lock")
	// ErrInterrupted is returned by Check once the marker has been removed
	// from outside or the run context was cancelled.
	ErrInterrupted = errors.New("run interrupted")
)

type options struct {
	reclaimStale bool
	identity     *Identity
}

type Option func(*options)

// Replace a marker left behind by a run that no longer holds the liveness lock.
func WithReclaimStale(reclaim bool) Option {
	return func(o *options) {
		o.reclaimStale = reclaim
	}
}

func WithIdentity(id Identity) Option {
	return func(o *options) {
		o.identity = &id
	}
}

// Lock is an acquired marker for one (kind, discriminator) pair.
type Lock struct {
	mu       sync.Mutex
	path     string
	identity Identity
	handle   fslock.Handle
	logger   zerolog.Logger
	released bool
}

func MarkerPath(dir, kind, discriminator string) string {
	return filepath.Join(dir, fmt.Sprintf("%s.%s.pid", kind, discriminator))
}

// Acquire creates the marker for kind and discriminator in dir.
//
// The marker is paired with an OS level file lock on "<marker>.lock". The
// file lock dies with its process, so a marker found while the file lock is
// free belongs to a run that is gone.
func Acquire(dir, kind, discriminator string, logger zerolog.Logger, opts ...Option) (*Lock, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	id := NewIdentity()
	if o.identity != nil {
		id = *o.identity
	}

	path := MarkerPath(dir, kind, discriminator)
	logger = logger.With().Str("marker", path).Logger()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	handle, err := fslock.Lock(path + ".lock")
	if err != nil {
		if errors.Is(err, fslock.ErrLockHeld) {
			ev := logger.Warn()
			if holder, rerr := readMarker(path); rerr == nil {
				ev = ev.Object("holder", holder)
			}
			ev.Msg("lock is held by a running process")
			return nil, fmt.Errorf("%w: %s", ErrBusy, path)
		}
		return nil, fmt.Errorf("could not lock %s: %w", path, err)
	}

	l := &Lock{path: path, identity: id, handle: handle, logger: logger}

	err = createMarker(path, id)
	if errors.Is(err, os.ErrExist) {
		err = l.onExistingMarker(o.reclaimStale)
	}
	if err != nil {
		if uerr := handle.Unlock(); uerr != nil {
			logger.Warn().Err(uerr).Msg("could not release liveness lock")
		}
		return nil, err
	}

	logger.Debug().Object("identity", id).Msg("lock acquired")
	return l, nil
}

func (l *Lock) onExistingMarker(reclaim bool) error {
	holder, err := readMarker(l.path)
	if err != nil {
		l.logger.Warn().Err(err).Msg("unreadable lock marker")
		return fmt.Errorf("%w: %s", ErrBusy, l.path)
	}
	if holder.Equal(l.identity) {
		return nil
	}
	if !reclaim {
		l.logger.Warn().Object("holder", holder).
			Msg("lock marker exists but its holder is not alive, remove it to resume")
		return fmt.Errorf("%w: %s", ErrBusy, l.path)
	}

	l.logger.Warn().Object("holder", holder).Msg("reclaiming stale lock marker")
	return writeMarker(l.path, l.identity)
}

func (l *Lock) Identity() Identity {
	return l.identity
}

func (l *Lock) Path() string {
	return l.path
}

// Check reports whether the run may continue: the marker must still exist
// and still name this run.
func (l *Lock) Check(ctx context.Context) error {
	if ctx.Err() != nil {
		return ErrInterrupted
	}
	holder, err := readMarker(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return ErrInterrupted
	}
	if err != nil {
		return fmt.Errorf("could not read lock marker: %w", err)
	}
	if !holder.Equal(l.identity) {
		return fmt.Errorf("%w: marker taken over by %s/%d", ErrBusy, holder.Host, holder.PID)
	}
	return nil
}

// Release deletes the marker. Failures are logged only: a marker left
// behind blocks the next run until an operator removes it.
func (l *Lock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return
	}
	l.released = true

	holder, err := readMarker(l.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err == nil && !holder.Equal(l.identity):
		l.logger.Warn().Object("holder", holder).Msg("lock marker belongs to another run, leaving it")
	default:
		if rerr := os.Remove(l.path); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			l.logger.Error().Err(rerr).Msg("could not remove lock marker")
		}
	}

	if err := l.handle.Unlock(); err != nil {
		l.logger.Warn().Err(err).Msg("could not release liveness lock")
	}
	l.logger.Debug().Msg("lock released")
}

func createMarker(path string, id Identity) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(id)
}

func writeMarker(path string, id Identity) error {
	raw, err := json.Marshal(id)
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(raw, '\n'), 0644)
}

func readMarker(path string) (Identity, error) {
	id := Identity{}
	raw, err := os.ReadFile(path)
	if err != nil {
		return id, err
	}
	if err := json.Unmarshal(raw, &id); err != nil {
		return id, fmt.Errorf("invalid lock marker %s: %w", path, err)
	}
	return id, nil
}
