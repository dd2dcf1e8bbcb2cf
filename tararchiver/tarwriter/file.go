package tarwriter

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stupid-simple/medialib/fileutils"
)

type Compression string

const (
	CompressionNone Compression = ""
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

// ParseCompression accepts the configuration spelling, "none" included.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "", "none":
		return CompressionNone, nil
	case "gzip":
		return CompressionGzip, nil
	case "zstd":
		return CompressionZstd, nil
	}
	return CompressionNone, fmt.Errorf("unknown compression %q", s)
}

// Extension is appended to the archive name.
func (c Compression) Extension() string {
	switch c {
	case CompressionGzip:
		return ".tar.gz"
	case CompressionZstd:
		return ".tar.zst"
	}
	return ".tar"
}

// Returns tar Writer helper that creates the file upon first header.
func NewLazyTarFile(path string, compression Compression) *TarFile {
	return &TarFile{
		path:        path,
		compression: compression,
	}
}

type TarFile struct {
	init        bool
	path        string
	compression Compression
	file        *os.File
	compressor  io.WriteCloser
	writer      *tar.Writer
}

func (t *TarFile) Path() string {
	return t.path
}

// Opened reports whether the file was ever created.
func (t *TarFile) Opened() bool {
	return t.file != nil
}

// Close flushes every layer and closes the file if it was opened.
func (t *TarFile) Close() error {
	if !t.init {
		return nil
	}
	defer func() {
		t.init = false
	}()
	err := t.writer.Close()
	if t.compressor != nil {
		err = errors.Join(err, t.compressor.Close())
	}
	return errors.Join(err, t.file.Close())
}

// Delete the file if it was opened.
func (t *TarFile) Delete() error {
	if t.file == nil {
		return nil
	}
	return os.Remove(t.path)
}

// WriteHeader starts a new tar entry.
func (t *TarFile) WriteHeader(hdr *tar.Header) (io.Writer, error) {
	if !t.init {
		if err := t.open(); err != nil {
			return nil, err
		}
	}
	if err := t.writer.WriteHeader(hdr); err != nil {
		return nil, err
	}
	return t.writer, nil
}

func (t *TarFile) open() error {
	if fileutils.Exists(t.path) {
		return fmt.Errorf("file or directory already exists with this name: %s", t.path)
	}
	if err := os.MkdirAll(filepath.Dir(t.path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(t.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	var w io.Writer = f
	switch t.compression {
	case CompressionGzip:
		t.compressor = gzip.NewWriter(f)
		w = t.compressor
	case CompressionZstd:
		enc, err := zstd.NewWriter(f)
		if err != nil {
			return errors.Join(err, f.Close(), os.Remove(t.path))
		}
		t.compressor = enc
		w = enc
	}

	t.file = f
	t.writer = tar.NewWriter(w)
	t.init = true
	return nil
}
