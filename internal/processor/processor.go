// Package processor defines the dispatch surface between the workflow
// manager and the per-media-kind processors.
package processor

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"mediabot/internal/jobspec"
)

// Request carries everything a processor needs to run one job.
type Request struct {
	JobID      int64
	ChatID     int64
	Kind       jobspec.MediaKind
	Operation  jobspec.Operation
	InputPaths []string
	ParamsJSON string

	// OutputDir is where the processor writes its results.
	OutputDir string
	// WorkDir is a job-scoped scratch directory, removed after the job.
	WorkDir string
}

// Result lists the files produced by a job, in delivery order.
type Result struct {
	OutputPaths []string
}

// Progress receives percent (0..100) and a short human message.
type Progress func(percent float64, message string)

// Processor executes all operations of one media kind.
type Processor interface {
	Kind() jobspec.MediaKind
	Process(ctx context.Context, req Request, progress Progress) (Result, error)
}

// Registry maps media kinds to their processors.
type Registry struct {
	byKind map[jobspec.MediaKind]Processor
}

// NewRegistry builds a registry from the given processors.
func NewRegistry(procs ...Processor) *Registry {
	byKind := make(map[jobspec.MediaKind]Processor, len(procs))
	for _, proc := range procs {
		byKind[proc.Kind()] = proc
	}
	return &Registry{byKind: byKind}
}

// For returns the processor registered for the kind.
func (r *Registry) For(kind jobspec.MediaKind) (Processor, bool) {
	proc, ok := r.byKind[kind]
	return proc, ok
}

// OutputPath builds a collision-free output file path in dir, prefixed with
// the chat ID so operators can attribute artifacts on disk.
func OutputPath(dir string, chatID int64, ext string) string {
	return filepath.Join(dir, fmt.Sprintf("%d_%s%s", chatID, uuid.NewString(), ext))
}
