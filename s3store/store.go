package s3store

import (
	"context"
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stupid-simple/medialib/config"
	"github.com/stupid-simple/medialib/fileutils"
	"github.com/stupid-simple/medialib/media"
)

const (
	MetaOriginalName      = "Original-File-Name"
	MetaOriginalExtension = "Original-File-Extension"
	MetaContentSHA256     = "Content-Sha256"
)

// Upload is what the store answered to a put.
type Upload struct {
	Key       string
	ETag      string
	Size      int64
	VersionID string
}

// Info describes a stored object.
type Info struct {
	Key          string
	ETag         string
	Size         int64
	LastModified time.Time
	Metadata     map[string]string
}

// Store wraps MinIO/S3 interactions for archived media.
type Store struct {
	client *minio.Client
	bucket string
	region string
}

// New creates a MinIO client from the configuration.
func New(cfg config.S3) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Store{client: client, bucket: cfg.Bucket, region: cfg.Region}, nil
}

// EnsureBucket makes sure the bucket exists before use.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("make bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

// Put uploads the local file under key. The original name, extension and
// content checksum travel along as object metadata.
func (s *Store) Put(ctx context.Context, key, localPath string) (Upload, error) {
	sum, err := fileutils.ComputeFileSHA256(localPath)
	if err != nil {
		return Upload{}, err
	}

	opts := minio.PutObjectOptions{
		ContentType:  contentType(localPath),
		UserMetadata: Metadata(localPath, sum),
	}
	info, err := s.client.FPutObject(ctx, s.bucket, key, localPath, opts)
	if err != nil {
		return Upload{}, fmt.Errorf("upload object %s: %w", key, err)
	}
	return Upload{
		Key:       info.Key,
		ETag:      strings.Trim(info.ETag, `"`),
		Size:      info.Size,
		VersionID: info.VersionID,
	}, nil
}

// Stat fetches the object's metadata, failing when it does not exist.
func (s *Store) Stat(ctx context.Context, key string) (Info, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return Info{}, fmt.Errorf("stat object %s: %w", key, err)
	}
	return Info{
		Key:          info.Key,
		ETag:         strings.Trim(info.ETag, `"`),
		Size:         info.Size,
		LastModified: info.LastModified,
		Metadata:     info.UserMetadata,
	}, nil
}

// URI is the stable address recorded for an object.
func (s *Store) URI(key string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, key)
}

// ObjectKey derives the key of a file: the base name without its
// extension, trimmed of dots and spaces, below prefix.
func ObjectKey(prefix, localPath string) string {
	name := strings.Trim(media.Regno(localPath), ". ")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

func Metadata(localPath, sha256 string) map[string]string {
	meta := map[string]string{
		MetaOriginalName:      filepath.Base(localPath),
		MetaOriginalExtension: media.Extension(localPath),
	}
	if sha256 != "" {
		meta[MetaContentSHA256] = sha256
	}
	return meta
}

func contentType(localPath string) string {
	if t := mime.TypeByExtension(filepath.Ext(localPath)); t != "" {
		return t
	}
	return "application/octet-stream"
}
