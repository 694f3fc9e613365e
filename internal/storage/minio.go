package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrNotConfigured is returned when an upload has no destination bucket.
var ErrNotConfigured = errors.New("object store: bucket not configured")

const (
	// Scheme is used for non-public object references: s3://bucket/key.
	Scheme = "s3"
	// DefaultPrefix namespaces listing images inside the bucket.
	DefaultPrefix = "images"
	// SeedPrefix namespaces demo images written by the seeder.
	SeedPrefix = "demo"
)

// publicPrefixes are granted anonymous read together. A bucket holds a single
// policy, so every write must carry all of them.
var publicPrefixes = []string{DefaultPrefix, SeedPrefix}

// objectAPI is the subset of *minio.Client used by MinIOStorage.
type objectAPI interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	SetBucketPolicy(ctx context.Context, bucketName, policy string) error
}

// MinIOStorage uploads listing images to an S3-compatible bucket.
type MinIOStorage struct {
	api        objectAPI
	bucket     string
	prefix     string
	publicBase string
}

// NewMinIOStorage creates a new MinIO storage client and ensures the bucket exists.
func NewMinIOStorage(cfg *MinIOConfig) (*MinIOStorage, error) {
	if cfg == nil || cfg.Bucket == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio config missing endpoint")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mc.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
		// ignore "already exists" style errors
		exist, xerr := mc.BucketExists(ctx, cfg.Bucket)
		if xerr != nil || !exist {
			return nil, fmt.Errorf("minio bucket ensure: %w", err)
		}
	}
	base := strings.TrimRight(cfg.PublicBaseURL, "/")
	if base == "" {
		base = strings.TrimRight(mc.EndpointURL().String(), "/") + "/" + cfg.Bucket
	}
	return newMinIOStorage(mc, cfg.Bucket, base), nil
}

func newMinIOStorage(api objectAPI, bucket, publicBase string) *MinIOStorage {
	return &MinIOStorage{api: api, bucket: bucket, prefix: DefaultPrefix, publicBase: publicBase}
}

// WithPrefix returns a copy of s that stores objects under prefix.
func (s *MinIOStorage) WithPrefix(prefix string) *MinIOStorage {
	cp := *s
	cp.prefix = strings.Trim(prefix, "/")
	return &cp
}

// Bucket returns the destination bucket name.
func (s *MinIOStorage) Bucket() string { return s.bucket }

// Upload stores the image under a fresh key and returns a public URL. When
// the object cannot be made public the s3:// reference is returned instead;
// only a failed upload is an error.
func (s *MinIOStorage) Upload(ctx context.Context, r io.Reader, size int64, filename, contentType string) (string, error) {
	if s == nil || s.bucket == "" {
		return "", ErrNotConfigured
	}
	key := ObjectKey(s.prefix, filename)
	if size <= 0 {
		size = -1
	}
	if _, err := s.api.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	if err := s.makePublic(ctx); err != nil {
		return StorageReference(s.bucket, key), nil
	}
	return s.publicURL(key), nil
}

// makePublic grants anonymous read on every image prefix, including the one
// the object was written under.
func (s *MinIOStorage) makePublic(ctx context.Context) error {
	return s.api.SetBucketPolicy(ctx, s.bucket, PublicReadPolicy(s.bucket, append([]string{s.prefix}, publicPrefixes...)...))
}

// PublicReadPolicy renders a bucket policy allowing s3:GetObject under each
// prefix. An empty prefix opens the whole bucket.
func PublicReadPolicy(bucket string, prefixes ...string) string {
	seen := map[string]bool{}
	resources := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		p = strings.Trim(p, "/")
		res := "arn:aws:s3:::" + bucket + "/*"
		if p != "" {
			res = "arn:aws:s3:::" + bucket + "/" + p + "/*"
		}
		if seen[res] {
			continue
		}
		seen[res] = true
		resources = append(resources, res)
	}
	sort.Strings(resources)
	doc := map[string]interface{}{
		"Version": "2012-10-17",
		"Statement": []map[string]interface{}{{
			"Effect":    "Allow",
			"Principal": map[string][]string{"AWS": {"*"}},
			"Action":    []string{"s3:GetObject"},
			"Resource":  resources,
		}},
	}
	b, _ := json.Marshal(doc)
	return string(b)
}

func (s *MinIOStorage) publicURL(key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.publicBase + "/" + strings.Join(segments, "/")
}

// ObjectKey returns prefix/<uuid>_<filename>. Keys never repeat, so an
// upload never overwrites an existing object.
func ObjectKey(prefix, filename string) string {
	name := uuid.NewString() + "_" + filename
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// StorageReference renders the non-public reference for bucket/key.
func StorageReference(bucket, key string) string {
	return Scheme + "://" + bucket + "/" + key
}
