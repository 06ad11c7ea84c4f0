package api_test

import (
	"testing"
	"time"

	"mediabot/internal/api"
	"mediabot/internal/jobspec"
	"mediabot/internal/queue"
)

func TestFromJobCopiesFields(t *testing.T) {
	started := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	job := &queue.Job{
		ID:              7,
		ChatID:          42,
		UserID:          9,
		MediaKind:       jobspec.KindVideo,
		Operation:       jobspec.OpTrim,
		Status:          queue.StatusRunning,
		ProgressPercent: 37.5,
		ProgressMessage: "trimming part 1",
		InputPaths:      []string{"/tmp/in.mp4"},
		CreatedAt:       started,
		UpdatedAt:       started,
		StartedAt:       &started,
	}

	dto := api.FromJob(job)
	if dto.ID != 7 || dto.ChatID != 42 {
		t.Fatalf("ids = %d/%d", dto.ID, dto.ChatID)
	}
	if dto.MediaKind != "video" || dto.Operation != "trim" || dto.Status != "running" {
		t.Fatalf("enums = %s/%s/%s", dto.MediaKind, dto.Operation, dto.Status)
	}
	if dto.ProgressPercent != 37.5 {
		t.Fatalf("progress = %v", dto.ProgressPercent)
	}
	if dto.StartedAt == "" || dto.FinishedAt != "" {
		t.Fatalf("timestamps = %q / %q", dto.StartedAt, dto.FinishedAt)
	}
	if got := api.ParseQueueTime(dto.StartedAt); !got.Equal(started) {
		t.Fatalf("round-tripped start = %v, want %v", got, started)
	}
}

func TestFromJobsSkipsNil(t *testing.T) {
	jobs := []*queue.Job{nil, {ID: 1}, nil, {ID: 2}}
	dtos := api.FromJobs(jobs)
	if len(dtos) != 2 || dtos[0].ID != 1 || dtos[1].ID != 2 {
		t.Fatalf("dtos = %+v", dtos)
	}
}

func TestParseQueueTimeEmpty(t *testing.T) {
	if got := api.ParseQueueTime(""); !got.IsZero() {
		t.Fatalf("expected zero time, got %v", got)
	}
	if got := api.ParseQueueTime("not-a-time"); !got.IsZero() {
		t.Fatalf("expected zero time for garbage, got %v", got)
	}
}

func TestFromHealth(t *testing.T) {
	stats := api.FromHealth(queue.HealthSummary{Total: 5, Pending: 1, Running: 1, Completed: 2, Failed: 1})
	if stats.Total != 5 || stats.Completed != 2 {
		t.Fatalf("stats = %+v", stats)
	}
}
