package api

import (
	"time"

	"mediabot/internal/deps"
	"mediabot/internal/queue"
)

// FromJob converts a queue job into its wire representation.
func FromJob(job *queue.Job) QueueJob {
	if job == nil {
		return QueueJob{}
	}
	return QueueJob{
		ID:              job.ID,
		ChatID:          job.ChatID,
		UserID:          job.UserID,
		MediaKind:       string(job.MediaKind),
		Operation:       string(job.Operation),
		Status:          string(job.Status),
		ProgressPercent: job.ProgressPercent,
		ProgressMessage: job.ProgressMessage,
		InputPaths:      append([]string(nil), job.InputPaths...),
		OutputPaths:     append([]string(nil), job.OutputPaths...),
		ErrorMessage:    job.ErrorMessage,
		Delivered:       job.Delivered,
		CreatedAt:       formatQueueTime(job.CreatedAt),
		UpdatedAt:       formatQueueTime(job.UpdatedAt),
		StartedAt:       formatQueueTimePtr(job.StartedAt),
		FinishedAt:      formatQueueTimePtr(job.FinishedAt),
	}
}

// FromJobs converts a job slice, skipping nil entries.
func FromJobs(jobs []*queue.Job) []QueueJob {
	out := make([]QueueJob, 0, len(jobs))
	for _, job := range jobs {
		if job == nil {
			continue
		}
		out = append(out, FromJob(job))
	}
	return out
}

// FromHealth converts queue health counts.
func FromHealth(health queue.HealthSummary) QueueStats {
	return QueueStats{
		Total:     health.Total,
		Pending:   health.Pending,
		Running:   health.Running,
		Completed: health.Completed,
		Failed:    health.Failed,
	}
}

// FromDependencies converts preflight statuses.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, DependencyStatus{
			Name:        status.Name,
			Command:     status.Command,
			Description: status.Description,
			Optional:    status.Optional,
			Available:   status.Available,
			Detail:      status.Detail,
		})
	}
	return out
}

func formatQueueTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateTimeFormat)
}

func formatQueueTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatQueueTime(*t)
}
