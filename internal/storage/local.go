package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"mediabot/internal/fileutil"
)

// LocalArchive copies outputs into dated folders under <dataDir>/archive.
type LocalArchive struct {
	root string
}

// NewLocalArchive creates the archive root under the data directory.
func NewLocalArchive(dataDir string) (*LocalArchive, error) {
	root := filepath.Join(dataDir, "archive")
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}
	return &LocalArchive{root: root}, nil
}

// Root returns the archive directory.
func (a *LocalArchive) Root() string {
	return a.root
}

// Store copies the file into today's archive folder and returns the copy's
// path. Name collisions are the caller's problem; output filenames carry a
// UUID so they do not collide in practice.
func (a *LocalArchive) Store(ctx context.Context, localPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	day := time.Now().UTC().Format("2006-01-02")
	dir := filepath.Join(a.root, day)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create archive day directory: %w", err)
	}

	destPath := filepath.Join(dir, filepath.Base(localPath))
	if err := fileutil.CopyVerified(localPath, destPath); err != nil {
		return "", fmt.Errorf("copy into archive: %w", err)
	}
	return destPath, nil
}
