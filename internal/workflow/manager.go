package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"mediabot/internal/config"
	"mediabot/internal/logging"
	"mediabot/internal/notifications"
	"mediabot/internal/processor"
	"mediabot/internal/queue"
	"mediabot/internal/services"
)

// Deliverer hands a finished job's outcome back to its chat. The dialog
// controller implements it; tests substitute a recorder.
type Deliverer interface {
	Deliver(ctx context.Context, job *queue.Job) error
}

// Archive persists completed outputs to longer-term storage.
// storage.Archive satisfies it.
type Archive interface {
	Store(ctx context.Context, localPath string) (string, error)
}

// Manager coordinates queue processing with a pool of workers.
type Manager struct {
	cfg       *config.Config
	store     *queue.Store
	registry  *processor.Registry
	deliverer Deliverer
	notifier  notifications.Service
	archive   Archive
	logger    *slog.Logger

	pollInterval time.Duration
	jobTimeout   time.Duration
	workers      int

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager constructs a workflow manager. The deliverer may be nil, in
// which case finished jobs stay undelivered until the next daemon start.
func NewManager(cfg *config.Config, store *queue.Store, registry *processor.Registry, deliverer Deliverer, notifier notifications.Service, logger *slog.Logger) *Manager {
	if notifier == nil {
		notifier = notifications.NewNop()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	workers := cfg.Workflow.MaxConcurrentJobs
	if workers < 1 {
		workers = 1
	}
	pollInterval := time.Duration(cfg.Workflow.QueuePollInterval) * time.Second
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Manager{
		cfg:          cfg,
		store:        store,
		registry:     registry,
		deliverer:    deliverer,
		notifier:     notifier,
		logger:       logging.NewComponentLogger(logger, "workflow"),
		pollInterval: pollInterval,
		jobTimeout:   time.Duration(cfg.Workflow.JobTimeout) * time.Second,
		workers:      workers,
	}
}

// SetArchive installs an archive for completed job outputs. Call before
// Start; a nil archive disables archiving.
func (m *Manager) SetArchive(archive Archive) {
	m.archive = archive
}

// Start begins background processing. Jobs left running by a previous crash
// are reset to pending before the workers spin up.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}

	reset, err := m.store.ResetStuckRunning(ctx)
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("reset stuck jobs: %w", err)
	}
	if reset > 0 {
		m.logger.Info("requeued jobs interrupted by previous shutdown", logging.Int64("count", reset))
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(m.workers)
	m.mu.Unlock()

	for i := 0; i < m.workers; i++ {
		go m.runWorker(runCtx, i)
	}
	return nil
}

// Stop terminates background processing and waits for in-flight jobs.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) runWorker(ctx context.Context, index int) {
	defer m.wg.Done()
	logger := m.logger.With(logging.Int("worker", index))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := m.store.NextPending(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("claim next job", logging.Error(err))
			m.sleep(ctx)
			continue
		}
		if job == nil {
			m.sleep(ctx)
			continue
		}

		m.processJob(ctx, logger, job)
	}
}

func (m *Manager) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(m.pollInterval):
	}
}

func (m *Manager) processJob(ctx context.Context, logger *slog.Logger, job *queue.Job) {
	logger = logger.With(
		logging.Int64(logging.FieldJobID, job.ID),
		logging.Int64(logging.FieldChatID, job.ChatID),
		logging.String(logging.FieldOperation, string(job.Operation)))
	logger.Info("job started", logging.String("kind", string(job.MediaKind)))
	started := time.Now()

	result, err := m.runJob(ctx, logger, job)
	switch {
	case err != nil:
		// The chat gets the sanitized message; the full error stays here.
		logger.Error("job failed", logging.Error(err), logging.Duration("elapsed", time.Since(started)))
		chatMsg := services.ChatMessage(err)
		if markErr := m.store.MarkFailed(ctx, job.ID, chatMsg); markErr != nil {
			logger.Error("mark job failed", logging.Error(markErr))
			return
		}
		if notifyErr := m.notifier.NotifyJobFailed(ctx, job.ID, job.Summary(), chatMsg); notifyErr != nil {
			logger.Warn("notify job failure", logging.Error(notifyErr))
		}
	default:
		logger.Info("job completed",
			logging.Int("outputs", len(result.OutputPaths)),
			logging.Duration("elapsed", time.Since(started)))
		if markErr := m.store.MarkCompleted(ctx, job.ID, result.OutputPaths); markErr != nil {
			logger.Error("mark job completed", logging.Error(markErr))
			return
		}
		m.archiveOutputs(ctx, logger, result.OutputPaths)
	}

	m.deliver(ctx, logger, job.ID)
}

func (m *Manager) runJob(ctx context.Context, logger *slog.Logger, job *queue.Job) (processor.Result, error) {
	proc, ok := m.registry.For(job.MediaKind)
	if !ok {
		return processor.Result{}, services.Wrap(services.ErrConfiguration, "workflow", "dispatch",
			fmt.Sprintf("no processor registered for %s jobs", job.MediaKind), nil)
	}

	workDir := filepath.Join(m.cfg.Paths.DataDir, "work", fmt.Sprintf("job_%d", job.ID))
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return processor.Result{}, fmt.Errorf("create work dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			logger.Warn("remove work dir", logging.String("path", workDir), logging.Error(err))
		}
	}()

	jobCtx := ctx
	if m.jobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, m.jobTimeout)
		defer cancel()
	}

	sampler := logging.NewProgressSampler(5)
	progress := func(percent float64, message string) {
		if err := m.store.UpdateProgress(ctx, job.ID, percent, message); err != nil {
			logger.Warn("update progress", logging.Error(err))
		}
		if sampler.ShouldLog(percent, message, message) {
			logger.Info("job progress", logging.Float64("percent", percent), logging.String("message", message))
		}
	}

	result, err := proc.Process(jobCtx, processor.Request{
		JobID:      job.ID,
		ChatID:     job.ChatID,
		Kind:       job.MediaKind,
		Operation:  job.Operation,
		InputPaths: job.InputPaths,
		ParamsJSON: job.ParamsJSON,
		OutputDir:  m.cfg.Paths.OutputsDir,
		WorkDir:    workDir,
	}, progress)
	if err != nil {
		if errors.Is(jobCtx.Err(), context.DeadlineExceeded) {
			return processor.Result{}, services.Wrap(services.ErrTimeout, "workflow", "process",
				fmt.Sprintf("job exceeded the %s timeout", m.jobTimeout), err)
		}
		return processor.Result{}, err
	}
	if len(result.OutputPaths) == 0 {
		return processor.Result{}, services.Wrap(services.ErrConfiguration, "workflow", "process",
			"processor returned no outputs", nil)
	}
	return result, nil
}

// archiveOutputs copies finished artifacts into the configured archive.
// Failures are logged but never fail the job: the chat already has its
// result by the time archiving runs.
func (m *Manager) archiveOutputs(ctx context.Context, logger *slog.Logger, outputPaths []string) {
	if m.archive == nil {
		return
	}
	for _, path := range outputPaths {
		location, err := m.archive.Store(ctx, path)
		if err != nil {
			logger.Warn("archive output", logging.String("path", path), logging.Error(err))
			continue
		}
		logger.Info("output archived", logging.String("path", path), logging.String("location", location))
	}
}

func (m *Manager) deliver(ctx context.Context, logger *slog.Logger, jobID int64) {
	if m.deliverer == nil {
		return
	}
	job, err := m.store.GetByID(ctx, jobID)
	if err != nil {
		logger.Error("load job for delivery", logging.Error(err))
		return
	}
	if err := m.deliverer.Deliver(ctx, job); err != nil {
		logger.Error("deliver job outcome", logging.Error(err))
	}
}
