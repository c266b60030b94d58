package gcs

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"gazette-monitor/internal/shared/storage/object"
)

// Store implements ObjectStore using Google Cloud Storage.
type Store struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
	prefix string
}

// New creates a GCS-backed object store. Without opts it uses application default credentials.
func New(ctx context.Context, bucket, prefix string, opts ...option.ClientOption) (*Store, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	return &Store{
		client: client,
		bucket: client.Bucket(bucket),
		name:   bucket,
		prefix: strings.Trim(strings.TrimSpace(prefix), "/"),
	}, nil
}

// Provider names the backend for stored records.
func (s *Store) Provider() string { return "gcs" }

// Put writes the reader to the object at key, replacing previous content.
func (s *Store) Put(ctx context.Context, key string, contentType string, r io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	clean, err := object.CleanKey(key)
	if err != nil {
		return 0, err
	}
	objectName := object.ApplyPrefix(s.prefix, clean)

	writer := s.bucket.Object(objectName).NewWriter(ctx)
	writer.ContentType = contentType
	written, err := io.Copy(writer, r)
	if err != nil {
		_ = writer.Close()
		return 0, fmt.Errorf("gcs write bucket=%s object=%s: %w", s.name, objectName, err)
	}
	if err := writer.Close(); err != nil {
		return 0, fmt.Errorf("gcs finalize bucket=%s object=%s: %w", s.name, objectName, err)
	}
	return written, nil
}

// Open reads the object stored at key.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean, err := object.CleanKey(key)
	if err != nil {
		return nil, err
	}
	objectName := object.ApplyPrefix(s.prefix, clean)
	reader, err := s.bucket.Object(objectName).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs read bucket=%s object=%s: %w", s.name, objectName, err)
	}
	return reader, nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

var _ object.ObjectStore = (*Store)(nil)
