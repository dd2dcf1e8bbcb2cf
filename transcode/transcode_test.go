package transcode_test

import (
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stupid-simple/medialib/transcode"
	"golang.org/x/image/tiff"
)

func TestImageMagick_Args(t *testing.T) {
	im := transcode.NewImageMagick("magick convert", zerolog.Nop())
	args := im.Args("/in/a.jpg", []transcode.Output{
		{Path: "/www/large/a.jpg", MaxDimension: 1920, Quality: 85},
		{Path: "/www/medium/a.jpg", MaxDimension: 800, Quality: 80},
		{Path: "/www/small/a.jpg", MaxDimension: 200, Quality: 75},
	})
	assert.Equal(t, []string{
		"convert", "/in/a.jpg",
		"-resize", "1920x1920>", "-quality", "85", "-write", "/www/large/a.jpg",
		"-resize", "800x800>", "-quality", "80", "-write", "/www/medium/a.jpg",
		"-resize", "200x200>", "-quality", "75", "/www/small/a.jpg",
	}, args)

	im = transcode.NewImageMagick("", zerolog.Nop())
	assert.Equal(t, []string{"/in/a.tif", "/m/a.jpg"}, im.Args("/in/a.tif", []transcode.Output{{Path: "/m/a.jpg"}}))
}

func TestImageMagick_Transcode(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.jpg")
	require.NoError(t, os.WriteFile(out, []byte("old"), 0644))

	err := transcode.NewImageMagick("true", zerolog.Nop()).Transcode(context.Background(), "in.tif", transcode.Output{Path: out})
	require.NoError(t, err)
	assert.NoFileExists(t, out, "previous output is removed")

	err = transcode.NewImageMagick("false", zerolog.Nop()).Transcode(context.Background(), "in.tif", transcode.Output{Path: out})
	var terr *transcode.Error
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "in.tif", terr.Input)
	assert.Equal(t, []string{"false", "in.tif", out}, terr.Command)

	err = transcode.NewImageMagick("true", zerolog.Nop()).Transcode(context.Background(), "in.tif")
	assert.Error(t, err)
}

func TestImageMagick_TranscodeMissingTool(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.jpg")

	im := transcode.NewImageMagick(filepath.Join(dir, "no-such-convert"), zerolog.Nop())
	err := im.Transcode(context.Background(), "in.tif", transcode.Output{Path: out})
	require.Error(t, err)
	var terr *transcode.Error
	assert.False(t, errors.As(err, &terr), "a tool that cannot start is not a bad input")
}

func TestError_CommandLine(t *testing.T) {
	err := &transcode.Error{Command: []string{"convert", "/a b/c.tif", "-quality", "85", "/m/c.jpg"}}
	assert.Equal(t, `convert "/a b/c.tif" -quality 85 /m/c.jpg`, err.CommandLine())
}

func TestProbe(t *testing.T) {
	dir := t.TempDir()
	img := image.NewGray(image.Rect(0, 0, 40, 25))

	pngPath := filepath.Join(dir, "a.png")
	f, err := os.Create(pngPath)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	tifPath := filepath.Join(dir, "a.tif")
	f, err = os.Create(tifPath)
	require.NoError(t, err)
	require.NoError(t, tiff.Encode(f, img, nil))
	require.NoError(t, f.Close())

	for _, path := range []string{pngPath, tifPath} {
		w, h, err := transcode.Probe(path)
		require.NoError(t, err, path)
		assert.Equal(t, 40, w)
		assert.Equal(t, 25, h)
	}

	junk := filepath.Join(dir, "junk.tif")
	require.NoError(t, os.WriteFile(junk, []byte("not an image"), 0644))
	_, _, err = transcode.Probe(junk)
	assert.Error(t, err)

	_, _, err = transcode.Probe(filepath.Join(dir, "missing.tif"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
