package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"docstore/internal/apperr"
	"docstore/internal/config"
)

const readMaxTries = 3

// minioStorage implements the Storage interface against MinIO or any
// S3-compatible backend. It is safe for concurrent use by multiple
// goroutines.
//
// Idempotent reads (Get, Stat, Ping) are retried a bounded number of
// times with exponential backoff. Writes are never silently retried:
// Put is the non-idempotent first half of the upload protocol as far as
// billing/versioning is concerned, and the orchestrator owns failure
// handling there.
type minioStorage struct {
	client *minio.Client
	bucket string
}

// NewMinIO creates a new S3-compatible storage client backed by MinIO.
// It validates configuration but does not touch the bucket; call
// EnsureBucket (or the facade's Init) before first use.
func NewMinIO(cfg config.MinIOConfig) (Storage, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio credentials are required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		// Trace every S3 round trip; spans join the request trace started
		// by the HTTP layer.
		Transport: otelhttp.NewTransport(nil),
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &minioStorage{client: cli, bucket: cfg.Bucket}, nil
}

// Put uploads an object using streaming I/O only (no local disk).
func (m *minioStorage) Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	putOpts := minio.PutObjectOptions{
		ContentType:  opt.ContentType,
		UserMetadata: opt.Metadata,
	}
	info, err := m.client.PutObject(ctx, m.bucket, key, r, opt.Size, putOpts)
	if err != nil {
		return ObjectInfo{}, translateErr(err)
	}
	return ObjectInfo{
		Key:          key,
		Size:         info.Size,
		ETag:         info.ETag,
		ContentType:  opt.ContentType,
		LastModified: time.Now(), // MinIO upload info doesn't return LastModified
		Metadata:     opt.Metadata,
	}, nil
}

// Get downloads an object's content as a ReadCloser along with basic info.
func (m *minioStorage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	type result struct {
		rc   io.ReadCloser
		info ObjectInfo
	}
	res, err := retryRead(ctx, func() (result, error) {
		obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
		if err != nil {
			return result{}, err
		}
		// GetObject is lazy; Stat performs the actual request and
		// surfaces NoSuchKey.
		st, err := obj.Stat()
		if err != nil {
			obj.Close()
			return result{}, err
		}
		return result{
			rc: obj,
			info: ObjectInfo{
				Key:          key,
				Size:         st.Size,
				ETag:         st.ETag,
				ContentType:  st.ContentType,
				LastModified: st.LastModified,
				Metadata:     st.UserMetadata,
			},
		}, nil
	})
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	return res.rc, res.info, nil
}

// Stat returns object info without reading content.
func (m *minioStorage) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	return retryRead(ctx, func() (ObjectInfo, error) {
		st, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
		if err != nil {
			return ObjectInfo{}, err
		}
		return ObjectInfo{
			Key:          key,
			Size:         st.Size,
			ETag:         st.ETag,
			ContentType:  st.ContentType,
			LastModified: st.LastModified,
			Metadata:     st.UserMetadata,
		}, nil
	})
}

// Delete removes an object by key. MinIO treats removal of an absent key
// as success, which keeps rollback replays idempotent.
func (m *minioStorage) Delete(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return translateErr(err)
	}
	return nil
}

// PresignGet generates a pre-signed URL for GET with the specified expiry.
func (m *minioStorage) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := m.client.PresignedGetObject(ctx, m.bucket, key, expiry, url.Values{})
	if err != nil {
		return "", translateErr(err)
	}
	return u.String(), nil
}

// EnsureBucket creates the bucket if missing. Safe to run repeatedly.
func (m *minioStorage) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", translateErr(err))
	}
	if !exists {
		if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", translateErr(err))
		}
	}
	return nil
}

// Ping checks reachability of the object store.
func (m *minioStorage) Ping(ctx context.Context) error {
	_, err := retryRead(ctx, func() (bool, error) {
		return m.client.BucketExists(ctx, m.bucket)
	})
	return err
}

// retryRead runs an idempotent read with bounded exponential backoff.
// NotFound is permanent and returned immediately.
func retryRead[T any](ctx context.Context, op func() (T, error)) (T, error) {
	return backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		if err != nil {
			// A structured S3 error means the request reached the
			// backend; retrying will not change the answer.
			if minio.ToErrorResponse(err).Code != "" {
				return v, backoff.Permanent(translateErr(err))
			}
			return v, translateErr(err)
		}
		return v, nil
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(readMaxTries))
}

// translateErr maps S3 error codes onto the shared error taxonomy.
// Connection-level failures become ErrBackendUnavailable.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%w: %s", apperr.ErrNotFound, resp.Key)
	case "":
		return fmt.Errorf("%w: %v", apperr.ErrBackendUnavailable, err)
	default:
		return err
	}
}
