package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
)

const (
	defaultFileTypes      = "tif,tiff"
	defaultRasterTypes    = "tif,tiff,jpg,jpeg,png"
	defaultMaxBucketSize  = 1_000_000_000
	defaultMaxBucketFiles = 1000
	defaultImageSize      = 3000
	defaultMaxErrors      = 10
	defaultMinDaysOld     = 7
	defaultSuperseded     = 7
)

// LoadFromFile reads a JSON configuration, or the INI layout when the file
// has an .ini extension, and fills in defaults.
func LoadFromFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Config{}
	if strings.EqualFold(filepath.Ext(path), ".ini") {
		err = loadINI(raw, &cfg)
	} else {
		err = json.Unmarshal(raw, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("could not parse %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

func (c *Config) ApplyDefaults() {
	if len(c.FileTypes) == 0 {
		c.FileTypes = splitList(defaultFileTypes)
	}
	c.FileTypes = normalizeList(c.FileTypes)
	if c.NumBackupGroups <= 0 {
		c.NumBackupGroups = 1
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Lock.Directory == "" {
		c.Lock.Directory = os.TempDir()
	}
	if c.Offload.Method == "" {
		c.Offload.Method = OffloadMethodTar
	}
	if c.Offload.MaxBucketSize.Size <= 0 {
		c.Offload.MaxBucketSize.Size = defaultMaxBucketSize
	}
	if c.Offload.MaxBucketFiles <= 0 {
		c.Offload.MaxBucketFiles = defaultMaxBucketFiles
	}
	if c.Offload.Parallel <= 0 {
		c.Offload.Parallel = 1
	}
	if len(c.ResizeWhen.FileTypes) == 0 {
		c.ResizeWhen.FileTypes = splitList(defaultRasterTypes)
	}
	c.ResizeWhen.FileTypes = normalizeList(c.ResizeWhen.FileTypes)
	if c.ResizeWhen.ImageSize <= 0 {
		c.ResizeWhen.ImageSize = defaultImageSize
	}
	if c.ImageMagick.Command == "" {
		c.ImageMagick.Command = "convert"
	}
	if c.ImageMagick.MaxErrors <= 0 {
		c.ImageMagick.MaxErrors = defaultMaxErrors
	}
	defaultVariant(&c.ImageMagick.Large, 1920, 85)
	defaultVariant(&c.ImageMagick.Medium, 800, 80)
	defaultVariant(&c.ImageMagick.Small, 200, 75)
	if c.Cleaner.MinDaysOld == nil {
		days := defaultMinDaysOld
		c.Cleaner.MinDaysOld = &days
	}
	if c.Cleaner.SupersededAfterDays <= 0 {
		c.Cleaner.SupersededAfterDays = defaultSuperseded
	}
}

func defaultVariant(v *Variant, size, quality int) {
	if v.Size <= 0 {
		v.Size = size
	}
	if v.Quality <= 0 {
		v.Quality = quality
	}
}

// loadINI reads the legacy layout: global keys in the default section and one
// section per subsystem, camelCase keys.
func loadINI(raw []byte, cfg *Config) error {
	f, err := ini.Load(raw)
	if err != nil {
		return err
	}

	g := f.Section(ini.DefaultSection)
	cfg.Producer = g.Key("producer").String()
	cfg.Owner = g.Key("owner").String()
	cfg.FileTypes = splitList(g.Key("fileTypes").String())
	cfg.NumBackupGroups = g.Key("numBackupGroups").MustInt(0)
	cfg.HarvestDirectory = g.Key("harvestDirectory").String()
	cfg.ResubmitDirectory = g.Key("resubmitDirectory").String()
	cfg.DuplicatesDirectory = g.Key("duplicatesDirectory").String()
	cfg.StagingDirectory = g.Key("stagingDirectory").String()
	cfg.MasterDirectory = g.Key("masterDirectory").String()
	cfg.WWWDirectory = g.Key("wwwDirectory").String()
	cfg.DeadImagesDirectory = g.Key("deadImagesDirectory").String()
	cfg.LogDirectory = g.Key("logDirectory").String()

	db := f.Section("database")
	cfg.Database.Driver = db.Key("driver").String()
	cfg.Database.DSN = db.Key("dsn").String()

	lk := f.Section("lock")
	cfg.Lock.Directory = lk.Key("directory").String()
	cfg.Lock.ReclaimStale = lk.Key("reclaimStale").MustBool(false)

	off := f.Section("offload")
	cfg.Offload.Method = off.Key("method").String()
	if v := off.Key("maxBucketSize").String(); v != "" {
		if err := cfg.Offload.MaxBucketSize.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("offload.maxBucketSize: %w", err)
		}
	}
	cfg.Offload.MaxBucketFiles = off.Key("maxBucketFiles").MustInt(0)
	cfg.Offload.CopyFiles = off.Key("copyFiles").MustBool(false)
	cfg.Offload.Compression = off.Key("compression").String()
	cfg.Offload.Parallel = off.Key("parallel").MustInt(0)
	cfg.Offload.RemoteDirectory = off.Key("remoteDirectory").String()

	s3 := f.Section("s3")
	cfg.Offload.S3 = S3{
		Endpoint:  s3.Key("endpoint").String(),
		Region:    s3.Key("region").String(),
		Bucket:    s3.Key("bucket").String(),
		AccessKey: s3.Key("key").String(),
		SecretKey: s3.Key("secret").String(),
		UseSSL:    s3.Key("useSSL").MustBool(true),
	}

	rw := f.Section("resizeWhen")
	cfg.ResizeWhen.FileTypes = splitList(rw.Key("fileType").String())
	cfg.ResizeWhen.ImageSize = rw.Key("imageSize").MustInt(0)

	im := f.Section("imagemagick")
	cfg.ImageMagick.Command = im.Key("command").String()
	cfg.ImageMagick.MaxErrors = im.Key("maxErrors").MustInt(0)
	cfg.ImageMagick.Large = Variant{Size: im.Key("largeSize").MustInt(0), Quality: im.Key("largeQuality").MustInt(0)}
	cfg.ImageMagick.Medium = Variant{Size: im.Key("mediumSize").MustInt(0), Quality: im.Key("mediumQuality").MustInt(0)}
	cfg.ImageMagick.Small = Variant{Size: im.Key("smallSize").MustInt(0), Quality: im.Key("smallQuality").MustInt(0)}

	cl := f.Section("cleaner")
	if cl.HasKey("minDaysOld") {
		days, err := cl.Key("minDaysOld").Int()
		if err != nil {
			return fmt.Errorf("%w: cleaner.minDaysOld must be an integer", ErrInvalid)
		}
		cfg.Cleaner.MinDaysOld = &days
	}
	cfg.Cleaner.Sweep = cl.Key("sweep").MustBool(false)
	cfg.Cleaner.UnixRemove = cl.Key("unixRemove").MustBool(false)
	cfg.Cleaner.SupersededAfterDays = cl.Key("supersededAfterDays").MustInt(0)

	cfg.Metrics.TextfileDirectory = f.Section("metrics").Key("textfileDirectory").String()

	sch := f.Section("schedule")
	cfg.Schedule = Schedule{
		Harvest: sch.Key("harvest").String(),
		Offload: sch.Key("offload").String(),
		Masters: sch.Key("masters").String(),
		Web:     sch.Key("www").String(),
		Cleanup: sch.Key("cleanup").String(),
	}
	return nil
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return normalizeList(strings.Split(s, ","))
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(v), "."))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
