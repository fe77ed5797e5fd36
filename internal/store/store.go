package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"tagify/internal/logging"
	"tagify/internal/metrics"
	"tagify/internal/startup"
)

// ErrNotFound is returned when an object key does not exist in the
// addressed bucket.
var ErrNotFound = errors.New("object not found")

// Class selects which bucket an operation addresses.
type Class int

const (
	Originals Class = iota
	Thumbs
)

// Object is an opened object stream with the metadata the media
// handlers need for response headers. Callers must close Body.
type Object struct {
	Body         io.ReadCloser
	Size         int64
	ContentType  string
	ETag         string
	LastModified time.Time
}

// ObjectInfo is object metadata without an open stream.
type ObjectInfo struct {
	Size         int64
	ContentType  string
	ETag         string
	LastModified time.Time
}

// Store wraps the MinIO client with the two-bucket layout used for
// media delivery.
type Store struct {
	client    *minio.Client
	originals string
	thumbs    string
}

// New connects to the object store and ensures both buckets exist.
func New(ctx context.Context, cfg *startup.Config) (*Store, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioSecure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}

	s := &Store{
		client:    client,
		originals: cfg.BucketOriginals,
		thumbs:    cfg.BucketThumbs,
	}

	for _, bucket := range []string{s.originals, s.thumbs} {
		exists, err := client.BucketExists(ctx, bucket)
		if err != nil {
			return nil, fmt.Errorf("failed to check bucket %s: %w", bucket, err)
		}
		if exists {
			continue
		}
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			// A concurrent process may have won the race.
			if exists, checkErr := client.BucketExists(ctx, bucket); checkErr == nil && exists {
				continue
			}
			return nil, fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
		logging.Info("Created bucket: %s", bucket)
	}

	logging.Info("Object store connected: %s (buckets: %s, %s)",
		cfg.MinioEndpoint, s.originals, s.thumbs)
	return s, nil
}

func (s *Store) bucket(c Class) string {
	if c == Thumbs {
		return s.thumbs
	}
	return s.originals
}

// Put writes an object with an immutable cache policy and returns its
// ETag. Objects are content-addressed by scan, so a key is only ever
// rewritten with identical bytes.
func (s *Store) Put(ctx context.Context, c Class, key string, data []byte, contentType string) (string, error) {
	done := observeOp("put")

	info, err := s.client.PutObject(ctx, s.bucket(c), key,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{
			ContentType:  contentType,
			CacheControl: "public, max-age=31536000, immutable",
		})
	done(err)
	if err != nil {
		return "", fmt.Errorf("failed to store object %s: %w", key, err)
	}

	metrics.StoreBytesWritten.WithLabelValues(s.bucket(c)).Add(float64(len(data)))
	return info.ETag, nil
}

// Get opens an object for reading. A non-negative start requests the
// byte range [start, end]; pass start = -1 for the whole object.
func (s *Store) Get(ctx context.Context, c Class, key string, start, end int64) (*Object, error) {
	done := observeOp("get")

	opts := minio.GetObjectOptions{}
	if start >= 0 {
		if err := opts.SetRange(start, end); err != nil {
			done(err)
			return nil, fmt.Errorf("invalid byte range: %w", err)
		}
	}

	obj, err := s.client.GetObject(ctx, s.bucket(c), key, opts)
	if err != nil {
		done(err)
		return nil, mapErr(key, err)
	}

	// GetObject is lazy; Stat forces the request so missing keys
	// surface here instead of on first read.
	stat, err := obj.Stat()
	if err != nil {
		done(err)
		if closeErr := obj.Close(); closeErr != nil {
			logging.Error("error closing object %s: %v", key, closeErr)
		}
		return nil, mapErr(key, err)
	}

	done(nil)
	return &Object{
		Body:         obj,
		Size:         stat.Size,
		ContentType:  stat.ContentType,
		ETag:         stat.ETag,
		LastModified: stat.LastModified,
	}, nil
}

// Stat returns object metadata without opening a stream.
func (s *Store) Stat(ctx context.Context, c Class, key string) (*ObjectInfo, error) {
	done := observeOp("stat")

	stat, err := s.client.StatObject(ctx, s.bucket(c), key, minio.StatObjectOptions{})
	done(err)
	if err != nil {
		return nil, mapErr(key, err)
	}

	return &ObjectInfo{
		Size:         stat.Size,
		ContentType:  stat.ContentType,
		ETag:         stat.ETag,
		LastModified: stat.LastModified,
	}, nil
}

// Presign returns a time-limited URL granting direct read access to an
// object, for the redirect and url delivery modes.
func (s *Store) Presign(ctx context.Context, c Class, key string, expiry time.Duration) (string, error) {
	done := observeOp("presign")

	u, err := s.client.PresignedGetObject(ctx, s.bucket(c), key, expiry, nil)
	done(err)
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return u.String(), nil
}

// Delete removes a single object. Removing a missing key is not an
// error.
func (s *Store) Delete(ctx context.Context, c Class, key string) error {
	done := observeOp("delete")
	err := s.client.RemoveObject(ctx, s.bucket(c), key, minio.RemoveObjectOptions{})
	done(err)
	return err
}

// DeleteByPrefix removes every object under prefix in both buckets and
// returns how many were deleted. Individual failures are logged and
// counted but do not abort the sweep.
func (s *Store) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	done := observeOp("delete_by_prefix")

	var deleted int64
	var lastErr error
	for _, bucket := range []string{s.originals, s.thumbs} {
		for obj := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
			Prefix:    prefix,
			Recursive: true,
		}) {
			if obj.Err != nil {
				logging.Error("error listing %s/%s: %v", bucket, prefix, obj.Err)
				lastErr = obj.Err
				continue
			}
			if err := s.client.RemoveObject(ctx, bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
				logging.Error("error deleting %s/%s: %v", bucket, obj.Key, err)
				lastErr = err
				continue
			}
			deleted++
		}
	}

	done(lastErr)
	return deleted, lastErr
}

func mapErr(key string, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return fmt.Errorf("object store error for %s: %w", key, err)
}

func observeOp(operation string) func(error) {
	start := time.Now()
	return func(err error) {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.StoreOpsTotal.WithLabelValues(operation, status).Inc()
		metrics.StoreOpDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
