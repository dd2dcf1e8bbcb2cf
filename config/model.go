package config

import (
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Producer        string   `json:"producer"`
	Owner           string   `json:"owner"`
	FileTypes       []string `json:"file_types,omitempty"`
	NumBackupGroups int      `json:"num_backup_groups,omitempty"`

	HarvestDirectory    string `json:"harvest_directory"`
	ResubmitDirectory   string `json:"resubmit_directory"`
	DuplicatesDirectory string `json:"duplicates_directory"`
	StagingDirectory    string `json:"staging_directory"`
	MasterDirectory     string `json:"master_directory"`
	WWWDirectory        string `json:"www_directory"`
	DeadImagesDirectory string `json:"dead_images_directory"`
	LogDirectory        string `json:"log_directory,omitempty"`

	Database    Database    `json:"database"`
	Lock        Lock        `json:"lock"`
	Offload     Offload     `json:"offload"`
	ResizeWhen  ResizeWhen  `json:"resize_when"`
	ImageMagick ImageMagick `json:"imagemagick"`
	Cleaner     Cleaner     `json:"cleaner"`
	Metrics     Metrics     `json:"metrics"`
	Schedule    Schedule    `json:"schedule"`
}

type Database struct {
	Driver string `json:"driver,omitempty"` // sqlite, sqlite3 or postgres
	DSN    string `json:"dsn"`
}

type Lock struct {
	Directory string `json:"directory,omitempty"`
	// Take over a marker whose holder is provably gone.
	ReclaimStale bool `json:"reclaim_stale,omitempty"`
}

const (
	OffloadMethodTar  = "tar"
	OffloadMethodFile = "file"
)

type Offload struct {
	Method          string       `json:"method,omitempty"`
	MaxBucketSize   SizeArgument `json:"max_bucket_size,omitempty"`
	MaxBucketFiles  int          `json:"max_bucket_files,omitempty"`
	CopyFiles       bool         `json:"copy_files,omitempty"`
	Compression     string       `json:"compression,omitempty"`
	Parallel        int          `json:"parallel,omitempty"`
	RemoteDirectory string       `json:"remote_directory,omitempty"`
	S3              S3           `json:"s3"`
}

type S3 struct {
	Endpoint  string `json:"endpoint"`
	Region    string `json:"region"`
	Bucket    string `json:"bucket"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	UseSSL    bool   `json:"use_ssl,omitempty"`
}

type ResizeWhen struct {
	FileTypes []string `json:"file_types,omitempty"`
	ImageSize int      `json:"image_size,omitempty"`
}

type Variant struct {
	Size    int `json:"size"`
	Quality int `json:"quality"`
}

type ImageMagick struct {
	Command   string  `json:"command,omitempty"`
	MaxErrors int     `json:"max_errors,omitempty"`
	Large     Variant `json:"large"`
	Medium    Variant `json:"medium"`
	Small     Variant `json:"small"`
}

type Cleaner struct {
	MinDaysOld          *int `json:"min_days_old,omitempty"`
	Sweep               bool `json:"sweep,omitempty"`
	UnixRemove          bool `json:"unix_remove,omitempty"`
	SupersededAfterDays int  `json:"superseded_after_days,omitempty"`
}

// MinAge is the minimum age of a staging date directory before it is
// considered for removal.
func (c Cleaner) MinAge() time.Duration {
	if c.MinDaysOld == nil {
		return 0
	}
	return time.Duration(*c.MinDaysOld) * 24 * time.Hour
}

func (c Cleaner) SupersededAfter() time.Duration {
	return time.Duration(c.SupersededAfterDays) * 24 * time.Hour
}

type Metrics struct {
	TextfileDirectory string `json:"textfile_directory,omitempty"`
}

// Schedule holds cron expressions for daemon mode. Empty disables a stage.
type Schedule struct {
	Harvest string `json:"harvest,omitempty"`
	Offload string `json:"offload,omitempty"`
	Masters string `json:"masters,omitempty"`
	Web     string `json:"www,omitempty"`
	Cleanup string `json:"cleanup,omitempty"`
}

func (c *Config) MarshalZerologObject(e *zerolog.Event) {
	e.Str("producer", c.Producer)
	e.Str("owner", c.Owner)
	e.Strs("file_types", c.FileTypes)
	e.Int("backup_groups", c.NumBackupGroups)
	e.Str("staging", c.StagingDirectory)
	e.Str("database_driver", c.Database.Driver)
	e.Str("offload_method", c.Offload.Method)
	e.Int64("max_bucket_size", c.Offload.MaxBucketSize.Size)
	e.Int("max_bucket_files", c.Offload.MaxBucketFiles)

	if c.Offload.S3.Bucket != "" {
		e.Str("s3_endpoint", c.Offload.S3.Endpoint)
		e.Str("s3_bucket", c.Offload.S3.Bucket)
	}
	if c.Cleaner.Sweep {
		e.Bool("cleaner_sweep", true)
	}
}
