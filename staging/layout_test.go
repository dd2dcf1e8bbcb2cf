package staging_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stupid-simple/medialib/staging"
)

var runTime = time.Date(2024, 3, 7, 14, 5, 9, 0, time.Local)

func TestArea(t *testing.T) {
	root := t.TempDir()
	a := staging.NewArea(root, "acme", runTime)

	assert.Equal(t, filepath.Join(root, "20240307140509", "acme"), a.Root())
	assert.Equal(t, filepath.Join(a.Root(), "phase2", "000000042-E12345.tif"), a.Phase2Path(42, "/x/y/E12345.tif"))

	require.NoError(t, a.Create())
	require.NoError(t, a.Create())
	for _, dir := range []string{a.Phase1(), a.Phase2(), a.Buckets(), a.Tars()} {
		assert.DirExists(t, dir)
	}
}

func TestTarArea(t *testing.T) {
	root := t.TempDir()
	ta := staging.NewTarArea(root, 3, runTime)

	assert.Equal(t, filepath.Join(root, "__TAR_AREA__", "20240307140509", "backupgroup003"), ta.Root())
	assert.Equal(t, filepath.Join(ta.Root(), "buckets", "0012"), ta.Bucket(12))
	assert.Equal(t, "20240307140509", ta.Stamp())

	require.NoError(t, ta.Create())
	assert.DirExists(t, ta.Buckets())
	assert.DirExists(t, ta.Tars())
}

func TestParseRunStamp(t *testing.T) {
	got, ok := staging.ParseRunStamp("20240307140509")
	require.True(t, ok)
	assert.True(t, runTime.Equal(got))

	for _, bad := range []string{"__TAR_AREA__", "2024030714050", "20241307140509", "abc"} {
		_, ok := staging.ParseRunStamp(bad)
		assert.False(t, ok, bad)
	}
}

func TestDeadLetter(t *testing.T) {
	d := staging.DeadLetter{Root: "/dead"}

	assert.Equal(t, "/dead/E1.tif", d.FileNameTooLong("/staging/phase1/sub/E1.tif"))
	assert.Equal(t, "/dead/resubmits/acme/20240307/E1.tif", d.Resubmit("acme", runTime, "/x/E1.tif"))
	assert.Equal(t, "/dead/source_files/acme/20240307/E1.tif", d.SourceFile("acme", runTime, "/x/000000007-E1.tif"))
	assert.Equal(t, "/dead/master_files/acme/20240307/E1.jpg", d.MasterFile("acme", runTime, "/m/000000007-E1.jpg"))
}
