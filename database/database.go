package database

import (
	"context"
	"errors"
	"iter"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

const iterateBatchSize = 50

type Database struct {
	Lock   sync.Mutex
	Cli    *gorm.DB
	Logger zerolog.Logger
}

// Open connects through the given dialector and migrates the schema.
func Open(dialector gorm.Dialector, log zerolog.Logger, gormLogger logger.Interface) (*Database, error) {
	if gormLogger == nil {
		gormLogger = logger.Discard
	}
	cli, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
	})
	if err != nil {
		return nil, err
	}

	if dialector.Name() == "sqlite" {
		sqlDB, err := cli.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := cli.AutoMigrate(allModels...); err != nil {
		return nil, err
	}

	return &Database{Cli: cli, Logger: log}, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.Cli.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// FindByRegno returns nil without error when no record has the regno.
func (d *Database) FindByRegno(ctx context.Context, regno string) (*Media, error) {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	m := &Media{}
	err := d.Cli.WithContext(ctx).Where("regno = ?", regno).First(m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// GetMedia returns nil without error when the record does not exist.
func (d *Database) GetMedia(ctx context.Context, id uint64) (*Media, error) {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	m := &Media{}
	err := d.Cli.WithContext(ctx).Where("id = ?", id).First(m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (d *Database) CreateMedia(ctx context.Context, m *Media) error {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	d.Logger.Debug().Str("regno", m.Regno).Msg("create media")
	return d.Cli.WithContext(ctx).Create(m).Error
}

// Resubmission describes the new source of an existing record.
type Resubmission struct {
	Producer    string
	Owner       string
	SourceFile  string
	Size        int64
	Hash        int64
	Created     time.Time
	BackupGroup int
}

// ResetMedia points an existing record at a new source file, moves it to the
// given backup group and clears every completion flag.
func (d *Database) ResetMedia(ctx context.Context, id uint64, r Resubmission) (bool, error) {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	res := d.Cli.WithContext(ctx).Model(&Media{}).Where("id = ?", id).Updates(map[string]any{
		"producer":                     r.Producer,
		"owner":                        r.Owner,
		"source_file":                  r.SourceFile,
		"source_file_size":             r.Size,
		"source_file_hash":             r.Hash,
		"source_file_created":          r.Created,
		"backup_group":                 r.BackupGroup,
		"source_file_etag":             "",
		"source_file_remote_uri":       "",
		"source_file_backup_confirmed": nil,
		"backup_ok":                    false,
		"backup_created":               nil,
		"tar_file_id":                  nil,
		"master_ok":                    false,
		"master_published":             nil,
		"www_ok":                       false,
		"www_published":                nil,
	})
	return res.RowsAffected > 0, res.Error
}

func (d *Database) SetSourceFile(ctx context.Context, id uint64, path string) (bool, error) {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	res := d.Cli.WithContext(ctx).Model(&Media{}).Where("id = ?", id).
		Update("source_file", path)
	return res.RowsAffected > 0, res.Error
}

// Pending iterates over records whose stage flag is not set, in id order.
// Records updated or deleted while iterating are not revisited.
func (d *Database) Pending(ctx context.Context, stage Stage, opts ...FindMediaOptions) iter.Seq2[*Media, error] {
	o := findMediaOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	return func(yield func(*Media, error) bool) {
		var lastID uint64
		remaining := o.limit
		for {
			batchSize := iterateBatchSize
			if o.limit > 0 {
				batchSize = min(remaining, iterateBatchSize)
			}

			query := d.Cli.WithContext(ctx).
				Where(stage.Column()+" = ?", false).
				Where("id > ?", lastID)
			if stage == StageWeb {
				query = query.Where("master_ok = ?", true)
			}
			if o.producer != nil {
				query = query.Where("producer = ?", *o.producer)
			}
			if o.backupGroup != nil {
				query = query.Where("backup_group = ?", *o.backupGroup)
			}

			records := []*Media{}
			d.Lock.Lock()
			err := query.Order("id").Limit(batchSize).Find(&records).Error
			d.Lock.Unlock()
			if err != nil {
				d.Logger.Error().Err(err).Msg("error fetching media from database")
				yield(nil, err)
				return
			}

			for _, m := range records {
				if ctx.Err() != nil {
					return
				}
				if !yield(m, nil) {
					return
				}
				lastID = m.ID
			}
			if len(records) < batchSize {
				return
			}
			if o.limit > 0 {
				remaining -= len(records)
				if remaining <= 0 {
					return
				}
			}
		}
	}
}

// BackupConfirmation is what the remote store reported for a single upload.
type BackupConfirmation struct {
	ETag        string
	RemoteURI   string
	ConfirmedAt time.Time
}

// SetBackupOK reports false when the record no longer exists.
func (d *Database) SetBackupOK(ctx context.Context, id uint64, c BackupConfirmation) (bool, error) {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	res := d.Cli.WithContext(ctx).Model(&Media{}).Where("id = ?", id).Updates(map[string]any{
		"backup_ok":                    true,
		"backup_created":               d.Cli.NowFunc(),
		"source_file_etag":             c.ETag,
		"source_file_remote_uri":       c.RemoteURI,
		"source_file_backup_confirmed": c.ConfirmedAt,
	})
	return res.RowsAffected > 0, res.Error
}

// RegisterTarFile stores the tar file and flags every member in one
// transaction. Members that no longer exist are returned, not failed.
func (d *Database) RegisterTarFile(ctx context.Context, tar *TarFile, members []uint64) (missing []uint64, err error) {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	err = d.Cli.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		missing = missing[:0]
		if err := tx.Create(tar).Error; err != nil {
			return err
		}
		for _, id := range members {
			res := tx.Model(&Media{}).Where("id = ?", id).Updates(map[string]any{
				"backup_ok":      true,
				"backup_created": tar.BackupCreated,
				"tar_file_id":    tar.ID,
			})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				missing = append(missing, id)
			}
		}
		return nil
	})
	return missing, err
}

func (d *Database) TarFiles(ctx context.Context) ([]TarFile, error) {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	tars := []TarFile{}
	err := d.Cli.WithContext(ctx).Order("id").Find(&tars).Error
	return tars, err
}

func (d *Database) SetMasterFile(ctx context.Context, id uint64, path string) (bool, error) {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	res := d.Cli.WithContext(ctx).Model(&Media{}).Where("id = ?", id).Updates(map[string]any{
		"master_file":      path,
		"master_ok":        true,
		"master_published": d.Cli.NowFunc(),
	})
	return res.RowsAffected > 0, res.Error
}

func (d *Database) SetWebFile(ctx context.Context, id uint64, dir, file string) (bool, error) {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	res := d.Cli.WithContext(ctx).Model(&Media{}).Where("id = ?", id).Updates(map[string]any{
		"www_dir":       dir,
		"www_file":      file,
		"www_ok":        true,
		"www_published": d.Cli.NowFunc(),
	})
	return res.RowsAffected > 0, res.Error
}

// DeleteMedia removes the record and keeps a copy in deleted_media.
func (d *Database) DeleteMedia(ctx context.Context, m *Media, reason string) error {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	d.Logger.Info().Object("media", m).Str("reason", reason).Msg("delete media")

	return d.Cli.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&DeletedMedia{
			MediaID:    m.ID,
			Regno:      m.Regno,
			Producer:   m.Producer,
			SourceFile: m.SourceFile,
			MasterFile: m.MasterFile,
			Reason:     reason,
			DeletedAt:  tx.NowFunc(),
		}).Error; err != nil {
			return err
		}
		return tx.Delete(&Media{}, m.ID).Error
	})
}

func (d *Database) DeletedMedia(ctx context.Context) ([]DeletedMedia, error) {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	deleted := []DeletedMedia{}
	err := d.Cli.WithContext(ctx).Order("id").Find(&deleted).Error
	return deleted, err
}
