// Package api defines wire-format types and converters shared by the IPC
// layer and the CLI. It translates internal queue models into
// transport-friendly DTOs so the CLI never couples to storage types.
package api

import "time"

// dateTimeFormat is used for RFC3339 timestamps in wire payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// QueueJob describes a processing job in a transport-friendly format.
type QueueJob struct {
	ID              int64    `json:"id"`
	ChatID          int64    `json:"chatId"`
	UserID          int64    `json:"userId"`
	MediaKind       string   `json:"mediaKind"`
	Operation       string   `json:"operation"`
	Status          string   `json:"status"`
	ProgressPercent float64  `json:"progressPercent"`
	ProgressMessage string   `json:"progressMessage,omitempty"`
	InputPaths      []string `json:"inputPaths,omitempty"`
	OutputPaths     []string `json:"outputPaths,omitempty"`
	ErrorMessage    string   `json:"errorMessage,omitempty"`
	Delivered       bool     `json:"delivered"`
	CreatedAt       string   `json:"createdAt,omitempty"`
	UpdatedAt       string   `json:"updatedAt,omitempty"`
	StartedAt       string   `json:"startedAt,omitempty"`
	FinishedAt      string   `json:"finishedAt,omitempty"`
}

// QueueStats aggregates job counts per lifecycle state.
type QueueStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// Telemetry carries host resource readings for status output.
type Telemetry struct {
	CPUPercent    float64 `json:"cpuPercent"`
	MemoryPercent float64 `json:"memoryPercent"`
	MemoryUsedMB  uint64  `json:"memoryUsedMb"`
	MemoryTotalMB uint64  `json:"memoryTotalMb"`
}

// DaemonStatus aggregates daemon runtime information for IPC consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	BotUsername  string             `json:"botUsername,omitempty"`
	QueueDBPath  string             `json:"queueDbPath"`
	LockFilePath string             `json:"lockFilePath"`
	QueueStats   QueueStats         `json:"queueStats"`
	Dependencies []DependencyStatus `json:"dependencies,omitempty"`
	Telemetry    *Telemetry         `json:"telemetry,omitempty"`
}

// ParseQueueTime parses a wire timestamp for display formatting.
func ParseQueueTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	return time.Time{}
}
