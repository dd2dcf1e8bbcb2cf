package database_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stupid-simple/medialib/database"
	"github.com/stupid-simple/medialib/media"
)

func setupTestDB(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.Open(sqlite.Open(filepath.Join(t.TempDir(), "media.db")), zerolog.Nop(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func createMedia(t *testing.T, db *database.Database, regno, producer string, group int) *database.Media {
	t.Helper()
	m := &database.Media{
		Regno:             regno,
		Producer:          producer,
		Owner:             "naturalis",
		BackupGroup:       group,
		SourceFile:        "/staging/" + regno + ".tif",
		SourceFileSize:    100,
		SourceFileCreated: time.Now().UTC(),
	}
	require.NoError(t, db.CreateMedia(context.Background(), m))
	return m
}

func collect(t *testing.T, seq func(func(*database.Media, error) bool)) []*database.Media {
	t.Helper()
	out := []*database.Media{}
	for m, err := range seq {
		require.NoError(t, err)
		out = append(out, m)
	}
	return out
}

func TestFindByRegno(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	m, err := db.FindByRegno(ctx, "E12345")
	require.NoError(t, err)
	assert.Nil(t, m)

	created := createMedia(t, db, "E12345", "acme", 0)
	assert.NotZero(t, created.ID)

	m, err = db.FindByRegno(ctx, "E12345")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, created.ID, m.ID)
	assert.Equal(t, media.StateNone, m.State())

	dup := &database.Media{Regno: "E12345", Producer: "acme"}
	assert.Error(t, db.CreateMedia(ctx, dup))
}

func TestResetMedia(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	m := createMedia(t, db, "E1", "acme", 3)

	_, err := db.SetBackupOK(ctx, m.ID, database.BackupConfirmation{ETag: "abc"})
	require.NoError(t, err)
	_, err = db.SetMasterFile(ctx, m.ID, "/master/E1.jpg")
	require.NoError(t, err)
	_, err = db.SetWebFile(ctx, m.ID, "/www/acme", "E1.jpg")
	require.NoError(t, err)

	got, err := db.GetMedia(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, got.State().Complete())

	later := time.Now().UTC().Add(8 * 24 * time.Hour)
	ok, err := db.ResetMedia(ctx, m.ID, database.Resubmission{
		Producer:    "other",
		Owner:       "naturalis",
		SourceFile:  "/staging/new/E1.tif",
		Size:        200,
		Created:     later,
		BackupGroup: 1,
	})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err = db.GetMedia(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, media.StateNone, got.State())
	assert.Equal(t, "other", got.Producer)
	assert.Equal(t, int64(200), got.SourceFileSize)
	assert.Equal(t, 1, got.BackupGroup)
	assert.Empty(t, got.SourceFileETag)
	assert.WithinDuration(t, later, got.SourceFileCreated, time.Second)

	ok, err = db.ResetMedia(ctx, 9999, database.Resubmission{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPending(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for i := range 120 {
		group := i % 2
		producer := "acme"
		if i%3 == 0 {
			producer = "other"
		}
		createMedia(t, db, fmt.Sprintf("R%03d", i), producer, group)
	}

	all := collect(t, db.Pending(ctx, database.StageBackup))
	assert.Len(t, all, 120)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].ID, all[i].ID)
	}

	group1 := collect(t, db.Pending(ctx, database.StageBackup, database.WithBackupGroup(1)))
	assert.Len(t, group1, 60)

	acme := collect(t, db.Pending(ctx, database.StageMaster, database.WithProducer("acme")))
	assert.Len(t, acme, 80)

	limited := collect(t, db.Pending(ctx, database.StageBackup, database.WithLimit(55)))
	assert.Len(t, limited, 55)

	// web derivation waits for the master
	assert.Empty(t, collect(t, db.Pending(ctx, database.StageWeb)))
	_, err := db.SetMasterFile(ctx, all[0].ID, "/master/x.jpg")
	require.NoError(t, err)
	assert.Len(t, collect(t, db.Pending(ctx, database.StageWeb)), 1)
	assert.Len(t, collect(t, db.Pending(ctx, database.StageMaster)), 119)
}

func TestPending_FlagWhileIterating(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	for i := range 75 {
		createMedia(t, db, fmt.Sprintf("F%03d", i), "acme", 0)
	}

	seen := 0
	for m, err := range db.Pending(ctx, database.StageBackup) {
		require.NoError(t, err)
		ok, err := db.SetBackupOK(ctx, m.ID, database.BackupConfirmation{})
		require.NoError(t, err)
		require.True(t, ok)
		seen++
	}
	assert.Equal(t, 75, seen)
}

func TestRegisterTarFile(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	a := createMedia(t, db, "A", "acme", 0)
	b := createMedia(t, db, "B", "acme", 0)

	tar := &database.TarFile{Name: "20240101120000_0001_000.tar", RemoteDir: "s3://media/", BackupCreated: time.Now().UTC()}
	missing, err := db.RegisterTarFile(ctx, tar, []uint64{a.ID, b.ID, 12345})
	require.NoError(t, err)
	assert.Equal(t, []uint64{12345}, missing)
	assert.NotZero(t, tar.ID)

	got, err := db.GetMedia(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.BackupOK)
	require.NotNil(t, got.TarFileID)
	assert.Equal(t, tar.ID, *got.TarFileID)

	tars, err := db.TarFiles(ctx)
	require.NoError(t, err)
	assert.Len(t, tars, 1)

	// names are unique, the whole transaction is rolled back
	c := createMedia(t, db, "C", "acme", 0)
	_, err = db.RegisterTarFile(ctx, &database.TarFile{Name: tar.Name}, []uint64{c.ID})
	require.Error(t, err)
	got, err = db.GetMedia(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, got.BackupOK)
}

func TestSetFlags_Missing(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	ok, err := db.SetBackupOK(ctx, 42, database.BackupConfirmation{})
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = db.SetMasterFile(ctx, 42, "x")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = db.SetWebFile(ctx, 42, "x", "y")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteMedia(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	m := createMedia(t, db, "D1", "acme", 0)

	require.NoError(t, db.DeleteMedia(ctx, m, database.ReasonStaleSource))

	got, err := db.GetMedia(ctx, m.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	deleted, err := db.DeletedMedia(ctx)
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	assert.Equal(t, m.ID, deleted[0].MediaID)
	assert.Equal(t, "D1", deleted[0].Regno)
	assert.Equal(t, database.ReasonStaleSource, deleted[0].Reason)

	// the regno is free again
	createMedia(t, db, "D1", "acme", 0)
}
