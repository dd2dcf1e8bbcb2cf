package fileutils

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// Exists reports whether anything is present at path, following symlinks.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Move renames src to dst, creating dst's directory. Across volumes the
// file is copied and the source removed.
func Move(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}

	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return err
	}

	if err := Copy(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// MoveAside moves src to dst without replacing anything already there. A
// taken dst gets tag inserted before its extension, then a counter.
// It returns the path the file ended up at.
func MoveAside(src, dst, tag string) (string, error) {
	target := dst
	ext := filepath.Ext(dst)
	stem := strings.TrimSuffix(dst, ext)
	for n := 1; Exists(target); n++ {
		if n == 1 {
			target = fmt.Sprintf("%s.%s%s", stem, tag, ext)
		} else {
			target = fmt.Sprintf("%s.%s-%d%s", stem, tag, n, ext)
		}
	}
	return target, Move(src, target)
}

// Copy copies the contents and mode of src to dst, creating dst's directory.
func Copy(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", src)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		closeErr := out.Close()
		err = errors.Join(err, closeErr)
	}()

	_, err = io.Copy(out, in)
	return err
}

// Symlink creates dst pointing at the absolute path of src.
func Symlink(src, dst string) error {
	abs, err := filepath.Abs(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	return os.Symlink(abs, dst)
}

// IsEmptyDir reports whether dir has no entries.
func IsEmptyDir(dir string) (bool, error) {
	f, err := os.Open(dir)
	if err != nil {
		return false, err
	}
	defer f.Close()

	_, err = f.Readdirnames(1)
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	return false, err
}
