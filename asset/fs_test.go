package asset_test

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stupid-simple/medialib/asset"
)

var data = []byte("hello world")

func TestNewFromFS(t *testing.T) {
	testPath := filepath.Join(t.TempDir(), "Hello.TIFF")
	err := os.WriteFile(testPath, data, 0600)
	if err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(testPath)
	if err != nil {
		t.Fatal(err)
	}

	a, err := asset.NewFromFS(testPath, info)
	if err != nil {
		t.Fatal(err)
	}

	if a.Path() != testPath {
		t.Errorf("expected path %s, got %s", testPath, a.Path())
	}
	if a.Size() != 11 {
		t.Errorf("expected size 11, got %d", a.Size())
	}
	if a.ModTime() != info.ModTime() {
		t.Errorf("expected mod time %s, got %s", info.ModTime(), a.ModTime())
	}
	if a.Name() != "Hello.TIFF" {
		t.Errorf("expected name Hello.TIFF, got %s", a.Name())
	}
	if a.Extension() != "tiff" {
		t.Errorf("expected extension tiff, got %s", a.Extension())
	}
	if a.IsSymlink() {
		t.Error("expected regular file")
	}
}

func TestNewFromFS_NotRegular(t *testing.T) {
	a, err := asset.NewFromFS("somewhere", fakeFileInfo{name: "dir", mode: fs.ModeDir})
	if !errors.Is(err, asset.ErrNotRegular) {
		t.Error("expected error")
	}
	if a != nil {
		t.Error("expected nil")
	}
}

type fakeFileInfo struct {
	name string
	size int64
	mode fs.FileMode
}

// IsDir implements fs.FileInfo.
func (f fakeFileInfo) IsDir() bool {
	return f.mode.IsDir()
}

// ModTime implements fs.FileInfo.
func (f fakeFileInfo) ModTime() time.Time {
	return time.Time{}
}

// Mode implements fs.FileInfo.
func (f fakeFileInfo) Mode() fs.FileMode {
	return f.mode
}

// Sys implements fs.FileInfo.
func (f fakeFileInfo) Sys() any {
	panic("unimplemented")
}

func (f fakeFileInfo) Name() string {
	return f.name
}

func (f fakeFileInfo) Size() int64 {
	return f.size
}
