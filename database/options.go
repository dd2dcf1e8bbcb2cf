package database

import "github.com/stupid-simple/medialib/media"

type Stage = media.Stage

const (
	StageBackup = media.StageBackup
	StageMaster = media.StageMaster
	StageWeb    = media.StageWeb
)

type findMediaOptions struct {
	limit       int
	producer    *string
	backupGroup *int
}

type FindMediaOptions func(*findMediaOptions)

// Limit the number of records returned.
func WithLimit(limit int) FindMediaOptions {
	return func(o *findMediaOptions) {
		o.limit = limit
	}
}

// Only records harvested for the producer.
func WithProducer(producer string) FindMediaOptions {
	return func(o *findMediaOptions) {
		o.producer = &producer
	}
}

// Only records in the backup group.
func WithBackupGroup(group int) FindMediaOptions {
	return func(o *findMediaOptions) {
		o.backupGroup = &group
	}
}
