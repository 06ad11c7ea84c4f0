// Package storage archives completed-job outputs and sweeps expired
// artifacts from the uploads and outputs directories.
//
// The Archive port has two implementations: LocalArchive copies outputs into
// a dated folder under the data directory, S3Archive uploads them to an
// S3-compatible bucket. Both are optional; when archiving is disabled the
// daemon wires in nothing and outputs simply age out via the retention sweep.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mediabot/internal/config"
)

// ErrNotConfigured is returned when archive operations are attempted
// without a configured backend.
var ErrNotConfigured = errors.New("archive storage is not configured")

// Archive persists a finished output file somewhere durable and returns the
// location it was stored under (a path or an object URL).
type Archive interface {
	Store(ctx context.Context, localPath string) (location string, err error)
}

// NewFromConfig builds the archive backend named in the configuration.
// Returns (nil, nil) when archiving is disabled.
func NewFromConfig(cfg *config.Config) (Archive, error) {
	if !cfg.Storage.Archive {
		return nil, nil
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Backend)) {
	case "", "local":
		return NewLocalArchive(cfg.Paths.DataDir)
	case "s3":
		return NewS3Archive(S3Config{
			Bucket:          cfg.Storage.S3Bucket,
			Region:          cfg.Storage.S3Region,
			Endpoint:        cfg.Storage.S3Endpoint,
			AccessKeyID:     cfg.Storage.S3AccessKeyID,
			SecretAccessKey: cfg.Storage.S3SecretAccessKey,
			UsePathStyle:    cfg.Storage.S3UsePathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
