package main

import (
	"fmt"
	"sort"
	"strings"

	"mediabot/internal/api"
)

func buildQueueStatusRows(stats api.QueueStats) [][]string {
	if stats.Total == 0 {
		return nil
	}
	counts := []struct {
		label string
		count int
	}{
		{"pending", stats.Pending},
		{"running", stats.Running},
		{"completed", stats.Completed},
		{"failed", stats.Failed},
	}

	rows := make([][]string, 0, len(counts)+1)
	for _, entry := range counts {
		if entry.count == 0 {
			continue
		}
		rows = append(rows, []string{formatStatusLabel(entry.label), fmt.Sprintf("%d", entry.count)})
	}
	rows = append(rows, []string{"Total", fmt.Sprintf("%d", stats.Total)})
	return rows
}

func buildQueueListRows(jobs []api.QueueJob) [][]string {
	if len(jobs) == 0 {
		return nil
	}
	sorted := make([]api.QueueJob, len(jobs))
	copy(sorted, jobs)

	sort.Slice(sorted, func(i, j int) bool {
		ti := api.ParseQueueTime(sorted[i].CreatedAt)
		tj := api.ParseQueueTime(sorted[j].CreatedAt)
		if ti.Equal(tj) {
			return sorted[i].ID > sorted[j].ID
		}
		return ti.After(tj)
	})

	rows := make([][]string, 0, len(sorted))
	for _, job := range sorted {
		rows = append(rows, []string{
			fmt.Sprintf("%d", job.ID),
			fmt.Sprintf("%d", job.ChatID),
			job.MediaKind,
			job.Operation,
			formatStatusLabel(job.Status),
			formatProgress(job.Status, job.ProgressPercent),
			formatDisplayTime(job.CreatedAt),
		})
	}
	return rows
}

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	parts := strings.Split(status, "_")
	for i, part := range parts {
		lower := strings.ToLower(part)
		if lower == "" {
			continue
		}
		parts[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(parts, " ")
}

func formatProgress(status string, percent float64) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "completed":
		return "100%"
	case "pending":
		return "-"
	default:
		return fmt.Sprintf("%.0f%%", percent)
	}
}

func formatDisplayTime(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if t := api.ParseQueueTime(value); !t.IsZero() {
		return t.UTC().Format("2006-01-02 15:04")
	}
	return value
}
