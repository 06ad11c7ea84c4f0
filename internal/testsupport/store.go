package testsupport

import (
	"context"
	"testing"

	"mediabot/internal/config"
	"mediabot/internal/jobspec"
	"mediabot/internal/queue"
	"mediabot/internal/session"
)

// MustOpenQueue opens a queue.Store for tests and registers cleanup.
func MustOpenQueue(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenSessions opens a session.Store for tests and registers cleanup.
func MustOpenSessions(t testing.TB, cfg *config.Config) *session.Store {
	t.Helper()

	store, err := session.Open(cfg)
	if err != nil {
		t.Fatalf("session.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob enqueues a job for tests using the provided store.
func NewJob(t testing.TB, store *queue.Store, chatID int64, kind jobspec.MediaKind, op jobspec.Operation, inputPaths []string, paramsJSON string) *queue.Job {
	t.Helper()

	job, err := store.NewJob(context.Background(), chatID, chatID, kind, op, inputPaths, paramsJSON)
	if err != nil {
		t.Fatalf("store.NewJob: %v", err)
	}
	return job
}
