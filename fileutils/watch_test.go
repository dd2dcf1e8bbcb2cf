package fileutils_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stupid-simple/medialib/fileutils"
)

func TestWatchFile_NotChanged(t *testing.T) {
	testPath := filepath.Join(t.TempDir(), "medialib.json")
	require.NoError(t, os.WriteFile(testPath, data, 0600))

	notify := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watcher, err := fileutils.WatchFile(ctx, testPath, notify, func(_ string, err error) {
		t.Error(err)
	})
	require.NoError(t, err)

	notify <- struct{}{}

	select {
	case <-watcher:
		t.Errorf("expected no change")
	case <-time.After(time.Second):
	}
}

func TestWatchFile_Changed(t *testing.T) {
	testPath := filepath.Join(t.TempDir(), "medialib.json")
	require.NoError(t, os.WriteFile(testPath, data, 0600))

	notify := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watcher, err := fileutils.WatchFile(ctx, testPath, notify, func(_ string, err error) {
		t.Error(err)
	})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(testPath, append(data, data...), 0600))
	notify <- struct{}{}

	select {
	case <-watcher:
	case <-time.After(time.Second):
		t.Errorf("expected change")
	}
}

func TestWatchFile_Unreadable(t *testing.T) {
	testPath := filepath.Join(t.TempDir(), "medialib.json")
	require.NoError(t, os.WriteFile(testPath, data, 0600))

	notify := make(chan struct{})
	failed := make(chan string, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watcher, err := fileutils.WatchFile(ctx, testPath, notify, func(path string, _ error) {
		failed <- path
	})
	require.NoError(t, err)

	require.NoError(t, os.Remove(testPath))
	notify <- struct{}{}
	assert.Equal(t, testPath, <-failed)

	// back with the old content: no change to report
	require.NoError(t, os.WriteFile(testPath, data, 0600))
	notify <- struct{}{}
	select {
	case <-watcher:
		t.Errorf("expected no change")
	case <-time.After(200 * time.Millisecond):
	}

	close(notify)
	_, open := <-watcher
	assert.False(t, open, "watcher stops with its ticker")
}

func TestWatchFile_Missing(t *testing.T) {
	_, err := fileutils.WatchFile(context.Background(), filepath.Join(t.TempDir(), "nope"), nil, func(string, error) {})
	assert.Error(t, err)
}
