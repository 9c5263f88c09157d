package storage

import (
	"context"
	"io"
	"time"
)

// Package storage contains the object-store boundary of the system.
// Implementations must be idempotent at the key level: a repeated Put
// overwrites, a Delete of an absent key succeeds. That contract is what
// makes the orchestrator's compensating deletes safe to replay.

// PutObjectOptions define optional parameters for uploading objects.
// Size should be the exact number of bytes if known; if unknown, set to -1
// and the implementation will buffer/chunk as supported by the backend.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about an object in storage.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Storage is the blob store adapter. Keys are document ids; values are
// raw bytes. No local state is retained between calls.
type Storage interface {
	// Put uploads an object under the given key. Repeated puts with the
	// same key overwrite.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Get retrieves an object's content as a streaming reader alongside
	// its info. Returns apperr.ErrNotFound for absent keys.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Stat returns object info without fetching content. Returns
	// apperr.ErrNotFound for absent keys.
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	// Delete removes an object by key. Deleting an absent key is a no-op
	// success, not an error, so rollback replays are safe.
	Delete(ctx context.Context, key string) error
	// PresignGet returns a time-limited URL for downloading the object
	// without credentials.
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
	// EnsureBucket creates the configured bucket if it does not exist.
	// Safe to run repeatedly.
	EnsureBucket(ctx context.Context) error
	// Ping reports backend reachability for health probing.
	Ping(ctx context.Context) error
}
