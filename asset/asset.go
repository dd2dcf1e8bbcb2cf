package asset

import (
	"time"

	"github.com/rs/zerolog"
)

// Asset is a media file found on disk.
type Asset interface {
	zerolog.LogObjectMarshaler
	Path() string
	Name() string      // base name of the file
	Extension() string // lower case, without the dot
	Size() int64       // length in bytes for regular files
	ModTime() time.Time
	IsSymlink() bool
}
