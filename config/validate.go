package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrInvalid = errors.New("configuration error")

const maxNameLength = 64

var nameCharset = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Validate checks the settings every driver depends on.
func (c *Config) Validate() error {
	var errs []error

	errs = append(errs, validateName("producer", c.Producer), validateName("owner", c.Owner))

	dirs := []struct {
		name string
		path string
	}{
		{"harvest_directory", c.HarvestDirectory},
		{"resubmit_directory", c.ResubmitDirectory},
		{"duplicates_directory", c.DuplicatesDirectory},
		{"staging_directory", c.StagingDirectory},
		{"master_directory", c.MasterDirectory},
		{"www_directory", c.WWWDirectory},
		{"dead_images_directory", c.DeadImagesDirectory},
	}
	for _, d := range dirs {
		if d.path == "" {
			errs = append(errs, fmt.Errorf("%w: %s not set", ErrInvalid, d.name))
			continue
		}
		if strings.ContainsAny(d.path, " \t\r\n") {
			errs = append(errs, fmt.Errorf("%w: no whitespace allowed in directory paths (%s)", ErrInvalid, d.name))
		}
	}

	if c.NumBackupGroups < 1 {
		errs = append(errs, fmt.Errorf("%w: num_backup_groups must be at least 1", ErrInvalid))
	}
	if len(c.FileTypes) == 0 {
		errs = append(errs, fmt.Errorf("%w: file_types must not be empty", ErrInvalid))
	}
	if c.Offload.MaxBucketSize.Size <= 0 || c.Offload.MaxBucketFiles <= 0 {
		errs = append(errs, fmt.Errorf("%w: bucket limits must be positive", ErrInvalid))
	}
	switch c.Offload.Method {
	case OffloadMethodTar, OffloadMethodFile:
	default:
		errs = append(errs, fmt.Errorf("%w: invalid offload method %q, select tar or file", ErrInvalid, c.Offload.Method))
	}
	switch c.Offload.Compression {
	case "", "none", "gzip", "zstd":
	default:
		errs = append(errs, fmt.Errorf("%w: invalid offload compression %q", ErrInvalid, c.Offload.Compression))
	}
	if c.Cleaner.MinDaysOld == nil || *c.Cleaner.MinDaysOld < 0 {
		errs = append(errs, fmt.Errorf("%w: cleaner.min_days_old must be a non-negative integer", ErrInvalid))
	}
	switch c.Database.Driver {
	case "sqlite", "sqlite3", "postgres":
	default:
		errs = append(errs, fmt.Errorf("%w: unsupported database driver %q", ErrInvalid, c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, fmt.Errorf("%w: database.dsn not set", ErrInvalid))
	}

	return errors.Join(errs...)
}

// ValidateRemoteStore checks the object store settings used by offload.
func (c *Config) ValidateRemoteStore() error {
	var errs []error
	settings := map[string]string{
		"endpoint":   c.Offload.S3.Endpoint,
		"region":     c.Offload.S3.Region,
		"bucket":     c.Offload.S3.Bucket,
		"access_key": c.Offload.S3.AccessKey,
		"secret_key": c.Offload.S3.SecretKey,
	}
	for _, name := range []string{"endpoint", "region", "bucket", "access_key", "secret_key"} {
		if settings[name] == "" {
			errs = append(errs, fmt.Errorf("%w: offload.s3.%s not set", ErrInvalid, name))
		}
	}
	return errors.Join(errs...)
}

func validateName(field, v string) error {
	if v == "" {
		return fmt.Errorf("%w: %s not set", ErrInvalid, field)
	}
	if len(v) > maxNameLength {
		return fmt.Errorf("%w: %s name may not exceed %d characters", ErrInvalid, field, maxNameLength)
	}
	if !nameCharset.MatchString(v) {
		return fmt.Errorf("%w: invalid character(s) in %s name", ErrInvalid, field)
	}
	return nil
}
