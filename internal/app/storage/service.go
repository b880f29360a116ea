package storage

import (
	"context"
	"io"
)

// ServiceConfig holds the configuration required to connect to the storage service.
type ServiceConfig struct {
	S3BucketName      string
	S3Endpoint        string
	S3PublicBaseURL   string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// ObjectStorage defines the public interface for avatar object storage.
type ObjectStorage interface {
	// Upload stores the object under the given key.
	Upload(ctx context.Context, key string, mimeType string, body io.Reader) error

	// Delete removes the object specified by the given key.
	Delete(ctx context.Context, key string) error

	// PublicURL returns the client-facing URL for a stored object key.
	PublicURL(key string) string
}

// NewObjectStorage is the factory function for ObjectStorage.
// It initializes and returns a concrete implementation based on the provided configuration.
func NewObjectStorage(cfg ServiceConfig) (ObjectStorage, error) {
	// Currently, only S3 compatible implementations are supported.
	return newS3Client(cfg)
}
