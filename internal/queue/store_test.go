package queue_test

import (
	"context"
	"path/filepath"
	"testing"

	"mediabot/internal/jobspec"
	"mediabot/internal/queue"
)

func openStore(t *testing.T) *queue.Store {
	t.Helper()
	store, err := queue.OpenPath(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("queue.OpenPath: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newJob(t *testing.T, store *queue.Store, chatID int64) *queue.Job {
	t.Helper()
	job, err := store.NewJob(context.Background(), chatID, 7, jobspec.KindImage, jobspec.OpRotate,
		[]string{"/tmp/in.png"}, `{"degrees":90,"direction":"clockwise"}`)
	if err != nil {
		t.Fatalf("store.NewJob: %v", err)
	}
	return job
}

func TestNewJobRoundTrip(t *testing.T) {
	store := openStore(t)
	job := newJob(t, store, 42)

	if job.Status != queue.StatusPending {
		t.Fatalf("new job status = %s, want pending", job.Status)
	}
	loaded, err := store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if loaded.ChatID != 42 || loaded.MediaKind != jobspec.KindImage || loaded.Operation != jobspec.OpRotate {
		t.Fatalf("loaded job mismatch: %+v", loaded)
	}
	if len(loaded.InputPaths) != 1 || loaded.InputPaths[0] != "/tmp/in.png" {
		t.Fatalf("input paths = %v", loaded.InputPaths)
	}
	params, err := jobspec.Decode[jobspec.RotateParams](loaded.ParamsJSON)
	if err != nil {
		t.Fatalf("decode params: %v", err)
	}
	if params.Degrees != 90 {
		t.Fatalf("params = %+v", params)
	}
}

func TestNextPendingClaimsOldestFirst(t *testing.T) {
	store := openStore(t)
	first := newJob(t, store, 1)
	newJob(t, store, 2)

	claimed, err := store.NextPending(context.Background())
	if err != nil {
		t.Fatalf("NextPending: %v", err)
	}
	if claimed == nil || claimed.ID != first.ID {
		t.Fatalf("claimed %+v, want job %d", claimed, first.ID)
	}
	if claimed.Status != queue.StatusRunning || claimed.StartedAt == nil {
		t.Fatalf("claimed job not marked running: %+v", claimed)
	}

	second, err := store.NextPending(context.Background())
	if err != nil {
		t.Fatalf("NextPending: %v", err)
	}
	if second == nil || second.ID == claimed.ID {
		t.Fatalf("second claim = %+v", second)
	}

	third, err := store.NextPending(context.Background())
	if err != nil {
		t.Fatalf("NextPending: %v", err)
	}
	if third != nil {
		t.Fatalf("empty queue returned job %+v", third)
	}
}

func TestCompleteAndDeliver(t *testing.T) {
	store := openStore(t)
	job := newJob(t, store, 1)
	ctx := context.Background()

	if _, err := store.NextPending(ctx); err != nil {
		t.Fatalf("NextPending: %v", err)
	}
	if err := store.MarkCompleted(ctx, job.ID, []string{"/tmp/out.png"}); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}

	undelivered, err := store.Undelivered(ctx)
	if err != nil {
		t.Fatalf("Undelivered: %v", err)
	}
	if len(undelivered) != 1 || undelivered[0].ID != job.ID {
		t.Fatalf("undelivered = %v", undelivered)
	}
	if got := undelivered[0]; got.Status != queue.StatusCompleted || len(got.OutputPaths) != 1 || got.FinishedAt == nil {
		t.Fatalf("completed job = %+v", got)
	}

	if err := store.MarkDelivered(ctx, job.ID); err != nil {
		t.Fatalf("MarkDelivered: %v", err)
	}
	undelivered, err = store.Undelivered(ctx)
	if err != nil {
		t.Fatalf("Undelivered: %v", err)
	}
	if len(undelivered) != 0 {
		t.Fatalf("undelivered after delivery = %v", undelivered)
	}
}

func TestRetryFailedResetsJob(t *testing.T) {
	store := openStore(t)
	job := newJob(t, store, 1)
	ctx := context.Background()

	if _, err := store.NextPending(ctx); err != nil {
		t.Fatalf("NextPending: %v", err)
	}
	if err := store.MarkFailed(ctx, job.ID, "boom"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	updated, err := store.RetryFailed(ctx, job.ID)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if updated != 1 {
		t.Fatalf("RetryFailed updated %d rows, want 1", updated)
	}
	loaded, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if loaded.Status != queue.StatusPending || loaded.ErrorMessage != "" || loaded.StartedAt != nil {
		t.Fatalf("retried job = %+v", loaded)
	}
}

func TestResetStuckRunning(t *testing.T) {
	store := openStore(t)
	newJob(t, store, 1)
	ctx := context.Background()

	if _, err := store.NextPending(ctx); err != nil {
		t.Fatalf("NextPending: %v", err)
	}
	reset, err := store.ResetStuckRunning(ctx)
	if err != nil {
		t.Fatalf("ResetStuckRunning: %v", err)
	}
	if reset != 1 {
		t.Fatalf("reset %d jobs, want 1", reset)
	}
	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Pending != 1 || health.Running != 0 {
		t.Fatalf("health = %+v", health)
	}
}

func TestListForChatNewestFirst(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	newJob(t, store, 5)
	second := newJob(t, store, 5)
	newJob(t, store, 6)

	jobs, err := store.ListForChat(ctx, 5, 10)
	if err != nil {
		t.Fatalf("ListForChat: %v", err)
	}
	if len(jobs) != 2 || jobs[0].ID != second.ID {
		t.Fatalf("ListForChat = %v", jobs)
	}
}

func TestClearAndHealth(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	job := newJob(t, store, 1)
	newJob(t, store, 2)

	if _, err := store.NextPending(ctx); err != nil {
		t.Fatalf("NextPending: %v", err)
	}
	if err := store.MarkFailed(ctx, job.ID, "boom"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	removed, err := store.ClearFailed(ctx)
	if err != nil {
		t.Fatalf("ClearFailed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("ClearFailed removed %d, want 1", removed)
	}
	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Total != 1 || health.Pending != 1 {
		t.Fatalf("health = %+v", health)
	}
}

func TestCheckHealthReportsSchema(t *testing.T) {
	store := openStore(t)
	health, err := store.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || !health.TableExists {
		t.Fatalf("health = %+v", health)
	}
	if len(health.MissingColumns) != 0 {
		t.Fatalf("missing columns: %v", health.MissingColumns)
	}
	if health.SchemaVersion != "1" {
		t.Fatalf("schema version = %s", health.SchemaVersion)
	}
}
