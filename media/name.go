package media

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// MaxRegnoLength is the longest registration number the store accepts.
const MaxRegnoLength = 48

const idSeparator = "-"

// Regno derives the registration number from a file name: the base name
// without its extension.
func Regno(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Extension returns the lower case extension of path without the dot.
func Extension(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// EncodeName prefixes the zero padded record id to the original file name.
// This prefix is the only link between a file in the staging area and its
// record once the file has left phase1.
func EncodeName(id uint64, name string) string {
	return fmt.Sprintf("%09d%s%s", id, idSeparator, name)
}

// DecodeName splits an id-prefixed file name on the first separator.
func DecodeName(name string) (uint64, string, error) {
	prefix, original, ok := strings.Cut(filepath.Base(name), idSeparator)
	if !ok {
		return 0, "", fmt.Errorf("missing %q in file name %s", idSeparator, name)
	}
	id, err := strconv.ParseUint(prefix, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid record id in file name %s: %w", name, err)
	}
	return id, original, nil
}

// OriginalName strips the id prefix when present.
func OriginalName(name string) string {
	if _, original, err := DecodeName(name); err == nil {
		return original
	}
	return filepath.Base(name)
}
