package queue

import (
	"strings"
	"time"

	"mediabot/internal/jobspec"
)

// Status represents the lifecycle of a processing job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// DaemonStopReason is recorded against jobs interrupted by a shutdown before
// they are reset to pending at the next start.
const DaemonStopReason = "interrupted by daemon shutdown"

var allStatuses = []Status{StatusPending, StatusRunning, StatusCompleted, StatusFailed}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether the status can no longer change without a retry.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job represents one queued media operation persisted in SQLite.
type Job struct {
	ID        int64
	ChatID    int64
	UserID    int64
	MediaKind jobspec.MediaKind
	Operation jobspec.Operation

	InputPaths []string
	ParamsJSON string

	Status          Status
	ProgressPercent float64
	ProgressMessage string
	OutputPaths     []string
	ErrorMessage    string

	// Delivered flags that the chat has received the outcome, so a restart
	// does not resend completed work.
	Delivered bool

	CreatedAt  time.Time
	UpdatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}

// IsProcessing reports whether a worker currently owns the job.
func (j Job) IsProcessing() bool {
	return j.Status == StatusRunning
}

// Summary is a one-line description for chat replies and notifications.
func (j Job) Summary() string {
	return string(j.MediaKind) + " " + string(j.Operation)
}

// HealthSummary aggregates queue counts per lifecycle state.
type HealthSummary struct {
	Total     int
	Pending   int
	Running   int
	Completed int
	Failed    int
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalJobs        int
	Error            string
}
