package asset

import (
	"errors"
	"io/fs"
	"time"

	"github.com/rs/zerolog"
	"github.com/stupid-simple/medialib/media"
)

var ErrNotRegular = errors.New("not a regular file")

func NewFromFS(path string, info fs.FileInfo) (Asset, error) {
	mode := info.Mode()
	if !mode.IsRegular() && mode&fs.ModeSymlink == 0 {
		return nil, ErrNotRegular
	}

	return &fsAsset{
		path: path,
		info: info,
	}, nil
}

type fsAsset struct {
	path string
	info fs.FileInfo
}

// Name implements Asset.
func (a *fsAsset) Name() string {
	return a.info.Name()
}

// Extension implements Asset.
func (a *fsAsset) Extension() string {
	return media.Extension(a.info.Name())
}

// Size implements Asset.
func (a *fsAsset) Size() int64 {
	return a.info.Size()
}

// ModTime implements Asset.
func (a *fsAsset) ModTime() time.Time {
	return a.info.ModTime()
}

func (a *fsAsset) IsSymlink() bool {
	return a.info.Mode()&fs.ModeSymlink != 0
}

// MarshalZerologObject implements Asset.
func (a *fsAsset) MarshalZerologObject(e *zerolog.Event) {
	e.Str("path", a.path)
	e.Str("name", a.info.Name())
	e.Int64("size", a.info.Size())
}

// Path implements Asset.
func (a *fsAsset) Path() string {
	return a.path
}
