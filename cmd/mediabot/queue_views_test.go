package main

import (
	"strings"
	"testing"

	"mediabot/internal/api"
)

func TestBuildQueueStatusRows(t *testing.T) {
	rows := buildQueueStatusRows(api.QueueStats{Total: 5, Pending: 2, Failed: 3})
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows (pending, failed, total), got %d", len(rows))
	}
	if rows[0][0] != "Pending" || rows[0][1] != "2" {
		t.Fatalf("unexpected first row: %v", rows[0])
	}
	if rows[2][0] != "Total" || rows[2][1] != "5" {
		t.Fatalf("unexpected total row: %v", rows[2])
	}

	if rows := buildQueueStatusRows(api.QueueStats{}); rows != nil {
		t.Fatalf("expected nil rows for empty stats, got %v", rows)
	}
}

func TestBuildQueueListRowsOrdering(t *testing.T) {
	jobs := []api.QueueJob{
		{ID: 1, ChatID: 10, MediaKind: "image", Operation: "rotate", Status: "pending", CreatedAt: "2026-01-02T10:00:00.000Z"},
		{ID: 2, ChatID: 10, MediaKind: "video", Operation: "trim", Status: "running", ProgressPercent: 40, CreatedAt: "2026-01-02T12:00:00.000Z"},
	}

	rows := buildQueueListRows(jobs)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	// Newest first.
	if rows[0][0] != "2" {
		t.Fatalf("expected job 2 first, got %v", rows[0])
	}
	if rows[0][5] != "40%" {
		t.Fatalf("expected running job progress, got %q", rows[0][5])
	}
	if rows[1][5] != "-" {
		t.Fatalf("expected pending job progress placeholder, got %q", rows[1][5])
	}
	if !strings.HasPrefix(rows[0][6], "2026-01-02 12:00") {
		t.Fatalf("unexpected created column: %q", rows[0][6])
	}
}

func TestFormatStatusLabel(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"pending", "Pending"},
		{"reset_stuck", "Reset Stuck"},
		{"", ""},
		{" running ", "Running"},
	}
	for _, tc := range cases {
		if got := formatStatusLabel(tc.in); got != tc.want {
			t.Errorf("formatStatusLabel(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatProgress(t *testing.T) {
	if got := formatProgress("completed", 73); got != "100%" {
		t.Fatalf("completed progress = %q", got)
	}
	if got := formatProgress("pending", 0); got != "-" {
		t.Fatalf("pending progress = %q", got)
	}
	if got := formatProgress("running", 33.4); got != "33%" {
		t.Fatalf("running progress = %q", got)
	}
}
