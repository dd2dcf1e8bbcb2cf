package tarwriter_test

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stupid-simple/medialib/fileutils"
	"github.com/stupid-simple/medialib/tararchiver/tarwriter"
)

func writeOne(t *testing.T, path string, c tarwriter.Compression) {
	t.Helper()
	tf := tarwriter.NewLazyTarFile(path, c)
	assert.Equal(t, path, tf.Path())

	content := []byte("test content")
	w, err := tf.WriteHeader(&tar.Header{Name: "test.txt", Mode: 0644, Size: int64(len(content))})
	require.NoError(t, err)
	_, err = w.Write(content)
	require.NoError(t, err)
	require.NoError(t, tf.Close())
}

func readOne(t *testing.T, r io.Reader) string {
	t.Helper()
	tr := tar.NewReader(r)
	hdr, err := tr.Next()
	require.NoError(t, err)
	assert.Equal(t, "test.txt", hdr.Name)
	raw, err := io.ReadAll(tr)
	require.NoError(t, err)
	return string(raw)
}

func TestLazyTarFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("plain", func(t *testing.T) {
		path := filepath.Join(dir, "test"+tarwriter.CompressionNone.Extension())
		writeOne(t, path, tarwriter.CompressionNone)
		f, err := os.Open(path)
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "test content", readOne(t, f))
	})

	t.Run("gzip", func(t *testing.T) {
		path := filepath.Join(dir, "test"+tarwriter.CompressionGzip.Extension())
		writeOne(t, path, tarwriter.CompressionGzip)
		f, err := os.Open(path)
		require.NoError(t, err)
		defer f.Close()
		gr, err := gzip.NewReader(f)
		require.NoError(t, err)
		assert.Equal(t, "test content", readOne(t, gr))
	})

	t.Run("zstd", func(t *testing.T) {
		path := filepath.Join(dir, "test"+tarwriter.CompressionZstd.Extension())
		writeOne(t, path, tarwriter.CompressionZstd)
		f, err := os.Open(path)
		require.NoError(t, err)
		defer f.Close()
		zr, err := zstd.NewReader(f)
		require.NoError(t, err)
		defer zr.Close()
		assert.Equal(t, "test content", readOne(t, zr))
	})

	t.Run("exists", func(t *testing.T) {
		path := filepath.Join(dir, "test.tar")
		tf := tarwriter.NewLazyTarFile(path, tarwriter.CompressionNone)
		_, err := tf.WriteHeader(&tar.Header{Name: "x"})
		assert.Error(t, err)
	})
}

func TestLazyTarFile_NothingWritten(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.tar")
	tf := tarwriter.NewLazyTarFile(path, tarwriter.CompressionNone)
	require.NoError(t, tf.Close())
	assert.False(t, tf.Opened())
	assert.False(t, fileutils.Exists(path))
	require.NoError(t, tf.Delete())
}

func TestLazyTarFile_Delete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.tar")
	writeOne(t, path, tarwriter.CompressionNone)
	tf := tarwriter.NewLazyTarFile(path+".2", tarwriter.CompressionNone)
	_, err := tf.WriteHeader(&tar.Header{Name: "x"})
	require.NoError(t, err)
	require.NoError(t, tf.Close())
	require.NoError(t, tf.Delete())
	assert.False(t, fileutils.Exists(path+".2"))
}

func TestParseCompression(t *testing.T) {
	c, err := tarwriter.ParseCompression("none")
	require.NoError(t, err)
	assert.Equal(t, tarwriter.CompressionNone, c)
	c, err = tarwriter.ParseCompression("zstd")
	require.NoError(t, err)
	assert.Equal(t, ".tar.zst", c.Extension())
	_, err = tarwriter.ParseCompression("lz4")
	assert.Error(t, err)
}
