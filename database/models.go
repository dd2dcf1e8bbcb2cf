package database

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/stupid-simple/medialib/media"
)

type Media struct {
	ID          uint64 `gorm:"primaryKey"`
	Regno       string `gorm:"size:48;uniqueIndex"`
	Producer    string `gorm:"size:64;index"`
	Owner       string `gorm:"size:64"`
	BackupGroup int    `gorm:"index"`

	SourceFile              string
	SourceFileSize          int64
	SourceFileHash          int64
	SourceFileCreated       time.Time
	SourceFileETag          string     `gorm:"column:source_file_etag"`
	SourceFileRemoteURI     string     `gorm:"column:source_file_remote_uri"`
	SourceFileBackupConfirm *time.Time `gorm:"column:source_file_backup_confirmed"`

	BackupOK      bool `gorm:"column:backup_ok;index"`
	BackupCreated *time.Time
	TarFileID     *uint64 `gorm:"index"`

	MasterFile      string
	MasterOK        bool `gorm:"column:master_ok"`
	MasterPublished *time.Time

	WWWDir       string     `gorm:"column:www_dir"`
	WWWFile      string     `gorm:"column:www_file"`
	WWWOK        bool       `gorm:"column:www_ok"`
	WWWPublished *time.Time `gorm:"column:www_published"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (m *Media) State() media.State {
	return media.NewState(m.BackupOK, m.MasterOK, m.WWWOK)
}

func (m *Media) MarshalZerologObject(e *zerolog.Event) {
	e.Uint64("id", m.ID)
	e.Str("regno", m.Regno)
	e.Str("producer", m.Producer)
	e.Int("backup_group", m.BackupGroup)
	e.Str("source_file", m.SourceFile)
	e.Int64("size", m.SourceFileSize)
	e.Stringer("state", m.State())
}

// TarFile is never updated once registered.
type TarFile struct {
	ID            uint64 `gorm:"primaryKey"`
	Name          string `gorm:"uniqueIndex"`
	RemoteDir     string
	BackupGroup   int
	Size          int64
	FileCount     int
	BackupCreated time.Time
}

// DeletedMedia keeps a copy of every media record removed by the pipeline.
type DeletedMedia struct {
	ID         uint64 `gorm:"primaryKey"`
	MediaID    uint64 `gorm:"index"`
	Regno      string `gorm:"size:48;index"`
	Producer   string `gorm:"size:64"`
	SourceFile string
	MasterFile string
	Reason     string
	DeletedAt  time.Time
}

const (
	ReasonStaleSource    = "stale_source"
	ReasonStaleMaster    = "stale_master"
	ReasonTranscodeError = "transcode_error"
)

var allModels = []any{&TarFile{}, &Media{}, &DeletedMedia{}}
