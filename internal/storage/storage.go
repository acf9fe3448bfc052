// Package storage puts uploaded image bytes somewhere publicly readable.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sidequest/internal/config"
)

// ErrInvalidKey is returned for keys that could escape the bucket or directory.
var ErrInvalidKey = errors.New("invalid object key")

// ObjectStore stores objects under flat keys and serves them from BaseURL.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Delete(ctx context.Context, key string) error
	BaseURL() string
}

// New builds the store selected by cfg.StorageDriver.
func New(cfg *config.Config) (ObjectStore, error) {
	switch cfg.StorageDriver {
	case "s3":
		return NewS3Store(S3Options{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			UseSSL:    cfg.S3UseSSL,
			BaseURL:   cfg.S3BaseURL,
		})
	case "disk", "":
		return NewDiskStore(cfg.AssetUploadDir, cfg.AssetBaseURL)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

func validateKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
