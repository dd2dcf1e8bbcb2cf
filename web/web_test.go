package web_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stupid-simple/medialib/config"
	"github.com/stupid-simple/medialib/database"
	"github.com/stupid-simple/medialib/media"
	"github.com/stupid-simple/medialib/runner"
	"github.com/stupid-simple/medialib/transcode"
	"github.com/stupid-simple/medialib/web"
)

var runTime = time.Date(2024, 3, 7, 14, 30, 0, 0, time.Local)

type canceller struct{}

func (canceller) Check(context.Context) error { return nil }

type fakeTranscoder struct {
	calls [][]transcode.Output
}

func (f *fakeTranscoder) Transcode(_ context.Context, input string, outputs ...transcode.Output) error {
	f.calls = append(f.calls, outputs)
	if strings.Contains(input, "BAD") {
		return &transcode.Error{Input: input, Command: []string{"convert", input}, Err: errors.New("exit status 1")}
	}
	for _, out := range outputs {
		if err := os.WriteFile(out.Path, []byte("jpeg"), 0644); err != nil {
			return err
		}
	}
	return nil
}

func newDB(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.Open(sqlite.Open(filepath.Join(t.TempDir(), "media.db")), zerolog.Nop(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{
		Producer:            "acme",
		MasterDirectory:     filepath.Join(root, "master"),
		WWWDirectory:        filepath.Join(root, "www"),
		DeadImagesDirectory: filepath.Join(root, "dead"),
	}
	cfg.Lock.Directory = filepath.Join(root, "locks")
	cfg.ApplyDefaults()
	return cfg
}

// addMastered creates a record whose master file exists.
func addMastered(t *testing.T, db *database.Database, cfg *config.Config, name string) *database.Media {
	t.Helper()
	ctx := context.Background()
	m := &database.Media{Regno: media.Regno(name), Producer: cfg.Producer, SourceFile: "/staging/" + name}
	require.NoError(t, db.CreateMedia(ctx, m))
	m.MasterFile = filepath.Join(cfg.MasterDirectory, "acme", "20240301", media.EncodeName(m.ID, name))
	require.NoError(t, os.MkdirAll(filepath.Dir(m.MasterFile), 0755))
	require.NoError(t, os.WriteFile(m.MasterFile, []byte("master"), 0644))
	ok, err := db.SetMasterFile(ctx, m.ID, m.MasterFile)
	require.NoError(t, err)
	require.True(t, ok)
	m.MasterOK = true
	return m
}

func newDeriver(db *database.Database, cfg *config.Config, tr transcode.Transcoder) *web.Deriver {
	return web.NewDeriver(db, cfg, tr, canceller{}, zerolog.Nop(),
		web.WithClock(func() time.Time { return runTime }))
}

func TestActionFor(t *testing.T) {
	assert.Equal(t, web.ActionDerive, web.ActionFor("/m/000000001-E1.jpg"))
	assert.Equal(t, web.ActionDerive, web.ActionFor("/m/000000001-E1.JPEG"))
	assert.Equal(t, web.ActionMove, web.ActionFor("/m/000000001-E1.pdf"))
	assert.Equal(t, web.ActionMove, web.ActionFor("/m/000000001-E1.tif"))
}

func TestDeriver_CreateWebFiles(t *testing.T) {
	cfg := newConfig(t)
	db := newDB(t)
	ctx := context.Background()

	img := addMastered(t, db, cfg, "E1.jpg")
	doc := addMastered(t, db, cfg, "E2.pdf")
	gone := addMastered(t, db, cfg, "E3.jpg")
	bad := addMastered(t, db, cfg, "BAD.jpg")
	require.NoError(t, os.Remove(gone.MasterFile))

	unmastered := &database.Media{Regno: "RAW", Producer: "acme", SourceFile: "/staging/RAW.tif"}
	require.NoError(t, db.CreateMedia(ctx, unmastered))

	tr := &fakeTranscoder{}
	stats, err := newDeriver(db, cfg, tr).CreateWebFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, web.Stats{Processed: 4, Published: 2, Stale: 1, Errors: 1}, stats)

	wwwDir := filepath.Join(cfg.WWWDirectory, "acme", "20240307")
	name := filepath.Base(img.MasterFile)
	for _, v := range []string{"large", "medium", "small"} {
		assert.FileExists(t, filepath.Join(wwwDir, v, name))
	}
	require.Len(t, tr.calls, 2)
	assert.Equal(t, transcode.Output{Path: filepath.Join(wwwDir, "large", name), MaxDimension: 1920, Quality: 85}, tr.calls[0][0])
	assert.Equal(t, transcode.Output{Path: filepath.Join(wwwDir, "small", name), MaxDimension: 200, Quality: 75}, tr.calls[0][2])

	m, err := db.GetMedia(ctx, img.ID)
	require.NoError(t, err)
	assert.True(t, m.WWWOK)
	assert.Equal(t, wwwDir, m.WWWDir)
	assert.Equal(t, name, m.WWWFile)

	m, err = db.GetMedia(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, m.WWWOK)
	assert.FileExists(t, filepath.Join(wwwDir, filepath.Base(doc.MasterFile)))

	deleted, err := db.DeletedMedia(ctx)
	require.NoError(t, err)
	reasons := map[string]string{}
	for _, dm := range deleted {
		reasons[dm.Regno] = dm.Reason
	}
	assert.Equal(t, map[string]string{
		"E3":  database.ReasonStaleMaster,
		"BAD": database.ReasonTranscodeError,
	}, reasons)
	assert.FileExists(t, filepath.Join(cfg.DeadImagesDirectory, "master_files", "acme", "20240307", "BAD.jpg"))
	assert.NoFileExists(t, bad.MasterFile)

	m, err = db.GetMedia(ctx, unmastered.ID)
	require.NoError(t, err)
	assert.False(t, m.WWWOK, "records without a master are not published")
}

func TestDeriver_TooManyErrors(t *testing.T) {
	cfg := newConfig(t)
	cfg.ImageMagick.MaxErrors = 1
	db := newDB(t)
	addMastered(t, db, cfg, "BAD1.jpg")
	addMastered(t, db, cfg, "BAD2.jpg")

	stats, err := newDeriver(db, cfg, &fakeTranscoder{}).CreateWebFiles(context.Background())
	require.ErrorIs(t, err, media.ErrTooManyErrors)
	assert.Equal(t, 1, stats.Processed)
}

type notifier struct {
	reports []runner.Report
}

func (n *notifier) Notify(_ context.Context, r runner.Report) error {
	n.reports = append(n.reports, r)
	return nil
}

func TestDeriver_MissingTranscoder(t *testing.T) {
	cfg := newConfig(t)
	db := newDB(t)
	ctx := context.Background()

	m := addMastered(t, db, cfg, "E1.jpg")

	im := transcode.NewImageMagick(filepath.Join(t.TempDir(), "no-such-convert"), zerolog.Nop())
	stats, err := newDeriver(db, cfg, im).CreateWebFiles(ctx)
	require.Error(t, err)
	assert.Zero(t, stats.Errors)

	got, err := db.GetMedia(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.WWWOK)
	assert.FileExists(t, m.MasterFile)
	assert.NoDirExists(t, cfg.DeadImagesDirectory)
}

func TestJob(t *testing.T) {
	cfg := newConfig(t)
	db := newDB(t)
	ctx := context.Background()

	n := &notifier{}
	r := runner.New(cfg, db, zerolog.Nop(), runner.WithNotifier(n), runner.WithClock(func() time.Time { return runTime }))
	job := web.NewJob(cfg, &fakeTranscoder{})

	require.NoError(t, r.Run(ctx, job))
	assert.Empty(t, n.reports, "jobless runs are not reported")

	addMastered(t, db, cfg, "E1.jpg")
	require.NoError(t, r.Run(ctx, job))
	require.Len(t, n.reports, 1)
	assert.Equal(t, "SUCCESS: 1 media files published to the web", n.reports[0].Subject)
}
