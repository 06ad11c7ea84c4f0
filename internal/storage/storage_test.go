package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"mediabot/internal/config"
	"mediabot/internal/logging"
)

func TestLocalArchiveStoresDatedCopy(t *testing.T) {
	dataDir := t.TempDir()
	archive, err := NewLocalArchive(dataDir)
	if err != nil {
		t.Fatalf("new local archive: %v", err)
	}

	src := filepath.Join(t.TempDir(), "42_result.png")
	if err := os.WriteFile(src, []byte("image-bytes"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	location, err := archive.Store(context.Background(), src)
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	day := time.Now().UTC().Format("2006-01-02")
	wantDir := filepath.Join(dataDir, "archive", day)
	if filepath.Dir(location) != wantDir {
		t.Fatalf("location dir = %q, want %q", filepath.Dir(location), wantDir)
	}
	copied, err := os.ReadFile(location)
	if err != nil {
		t.Fatalf("read copy: %v", err)
	}
	if string(copied) != "image-bytes" {
		t.Fatalf("copy content = %q", copied)
	}
	// The original stays in place; retention deletes it later.
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("source should remain: %v", err)
	}
}

func TestLocalArchiveMissingSource(t *testing.T) {
	archive, err := NewLocalArchive(t.TempDir())
	if err != nil {
		t.Fatalf("new local archive: %v", err)
	}
	if _, err := archive.Store(context.Background(), filepath.Join(t.TempDir(), "gone.png")); err == nil {
		t.Fatal("expected error for missing source")
	}
}

type fakePutter struct {
	bucket string
	key    string
	body   []byte
}

func (f *fakePutter) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.bucket = *params.Bucket
	f.key = *params.Key
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	return &s3.PutObjectOutput{}, nil
}

func TestS3ArchiveUploadsDatedKey(t *testing.T) {
	putter := &fakePutter{}
	archive := newS3ArchiveWithClient(putter, "media-archive", "us-east-1")

	src := filepath.Join(t.TempDir(), "42_result.mp4")
	if err := os.WriteFile(src, []byte("video-bytes"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	url, err := archive.Store(context.Background(), src)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if putter.bucket != "media-archive" {
		t.Fatalf("bucket = %q", putter.bucket)
	}
	wantPrefix := time.Now().UTC().Format("2006/01/02") + "/"
	if !strings.HasPrefix(putter.key, wantPrefix) || !strings.HasSuffix(putter.key, "42_result.mp4") {
		t.Fatalf("key = %q", putter.key)
	}
	if string(putter.body) != "video-bytes" {
		t.Fatalf("body = %q", putter.body)
	}
	if !strings.Contains(url, "media-archive.s3.us-east-1.amazonaws.com") {
		t.Fatalf("url = %q", url)
	}
}

func TestNewFromConfigDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Archive = false
	archive, err := NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if archive != nil {
		t.Fatal("disabled archive should be nil")
	}
}

func TestNewFromConfigUnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Archive = true
	cfg.Storage.Backend = "tape"
	if _, err := NewFromConfig(&cfg); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestSweepRemovesOnlyExpiredFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.UploadsDir = filepath.Join(dir, "uploads")
	cfg.Paths.OutputsDir = filepath.Join(dir, "outputs")
	cfg.Storage.RetentionHours = 1
	for _, d := range []string{cfg.Paths.UploadsDir, cfg.Paths.OutputsDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}

	expired := filepath.Join(cfg.Paths.UploadsDir, "old.png")
	fresh := filepath.Join(cfg.Paths.OutputsDir, "new.png")
	for _, p := range []string{expired, fresh} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	stale := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(expired, stale, stale); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	sweeper := NewSweeper(&cfg, logging.NewNop())
	removed, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(expired); !os.IsNotExist(err) {
		t.Fatal("expired file should be gone")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("fresh file should remain: %v", err)
	}
}

func TestSweepDisabledByZeroRetention(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.RetentionHours = 0
	sweeper := NewSweeper(&cfg, logging.NewNop())
	removed, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 0 {
		t.Fatalf("removed = %d, want 0", removed)
	}
}
