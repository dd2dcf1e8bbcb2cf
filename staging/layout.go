package staging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/stupid-simple/medialib/media"
)

const (
	TarAreaDir = "__TAR_AREA__"

	Phase1Dir  = "phase1"
	Phase2Dir  = "phase2"
	BucketsDir = "buckets"
	TarsDir    = "tars"

	RunLayout = "20060102150405"
	DayLayout = "20060102"
)

// RunStamp formats the timestamp that names a run directory.
func RunStamp(t time.Time) string {
	return t.Format(RunLayout)
}

// ParseRunStamp parses a run directory name in local time.
func ParseRunStamp(name string) (time.Time, bool) {
	if len(name) != len(RunLayout) {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(RunLayout, name, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Area is one producer's part of a run directory:
// <staging>/<run>/<producer>/{phase1,phase2,buckets,tars}.
type Area struct {
	root string
}

func NewArea(stagingDir, producer string, now time.Time) *Area {
	return &Area{root: filepath.Join(stagingDir, RunStamp(now), producer)}
}

func (a *Area) Root() string    { return a.root }
func (a *Area) Phase1() string  { return filepath.Join(a.root, Phase1Dir) }
func (a *Area) Phase2() string  { return filepath.Join(a.root, Phase2Dir) }
func (a *Area) Buckets() string { return filepath.Join(a.root, BucketsDir) }
func (a *Area) Tars() string    { return filepath.Join(a.root, TarsDir) }

// Phase2Path is where an indexed file lives once its record id is known.
func (a *Area) Phase2Path(id uint64, name string) string {
	return filepath.Join(a.Phase2(), media.EncodeName(id, filepath.Base(name)))
}

// Create makes every directory of the area. Existing ones are kept.
func (a *Area) Create() error {
	return mkdirs(a.Phase1(), a.Phase2(), a.Buckets(), a.Tars())
}

// TarArea feeds the archival of one backup group:
// <staging>/__TAR_AREA__/<run>/backupgroup<NNN>/{buckets,tars}.
type TarArea struct {
	root  string
	stamp string
	group int
}

func NewTarArea(stagingDir string, group int, now time.Time) *TarArea {
	stamp := RunStamp(now)
	return &TarArea{
		root:  filepath.Join(stagingDir, TarAreaDir, stamp, BackupGroupDir(group)),
		stamp: stamp,
		group: group,
	}
}

func BackupGroupDir(group int) string {
	return fmt.Sprintf("backupgroup%03d", group)
}

func (t *TarArea) Root() string    { return t.root }
func (t *TarArea) Stamp() string   { return t.stamp }
func (t *TarArea) Group() int      { return t.group }
func (t *TarArea) Buckets() string { return filepath.Join(t.root, BucketsDir) }
func (t *TarArea) Tars() string    { return filepath.Join(t.root, TarsDir) }

// BucketName is the zero padded bucket number.
func BucketName(n int) string {
	return fmt.Sprintf("%04d", n)
}

func (t *TarArea) Bucket(n int) string {
	return filepath.Join(t.Buckets(), BucketName(n))
}

func (t *TarArea) Create() error {
	return mkdirs(t.Buckets(), t.Tars())
}

// DeadLetter names the quarantine locations under the dead images directory.
type DeadLetter struct {
	Root string
}

// FileNameTooLong files go straight into the root under their base name.
func (d DeadLetter) FileNameTooLong(path string) string {
	return filepath.Join(d.Root, filepath.Base(path))
}

// Resubmit holds resubmitted files that have no record.
func (d DeadLetter) Resubmit(producer string, day time.Time, path string) string {
	return d.dated("resubmits", producer, day, filepath.Base(path))
}

// SourceFile holds source files that could not be transcoded to a master.
func (d DeadLetter) SourceFile(producer string, day time.Time, path string) string {
	return d.dated("source_files", producer, day, media.OriginalName(path))
}

// MasterFile holds master files that could not be transcoded for the web.
func (d DeadLetter) MasterFile(producer string, day time.Time, path string) string {
	return d.dated("master_files", producer, day, media.OriginalName(path))
}

func (d DeadLetter) dated(kind, producer string, day time.Time, name string) string {
	return filepath.Join(d.Root, kind, producer, day.Format(DayLayout), name)
}

func mkdirs(dirs ...string) error {
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
