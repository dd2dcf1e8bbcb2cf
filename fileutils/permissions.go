package fileutils

import (
	"fmt"
	"os"
	"syscall"
)

// VerifyWritable returns nil if dirPath is a directory a file can be
// created in.
func VerifyWritable(dirPath string) error {
	info, err := os.Stat(dirPath)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: %w", dirPath, syscall.ENOTDIR)
	}

	tmp, err := os.CreateTemp(dirPath, ".medialib-write-*")
	if err != nil {
		return fmt.Errorf("%s is not writable: %w", dirPath, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Remove(tmp.Name())
}
