package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/gofrs/flock"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"mediabot/internal/api"
	"mediabot/internal/config"
	"mediabot/internal/deps"
	"mediabot/internal/dialog"
	"mediabot/internal/logging"
	"mediabot/internal/notifications"
	"mediabot/internal/queue"
	"mediabot/internal/storage"
	"mediabot/internal/telegram"
	"mediabot/internal/workflow"
)

// BotClient is the Telegram surface the daemon needs on top of what the
// dialog controller already uses: identity, the update poll, and the
// command menu. *telegram.Client satisfies it.
type BotClient interface {
	dialog.Bot
	GetMe(ctx context.Context) (telegram.User, error)
	GetUpdates(ctx context.Context, offset int64, timeoutSeconds int) ([]telegram.Update, error)
	SetMyCommands(ctx context.Context, commands []telegram.BotCommand) error
}

// Daemon owns the long-running pieces: the update poll loop, the workflow
// manager, the retention sweeper, and the single-instance lock.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *queue.Store
	workflow   *workflow.Manager
	controller *dialog.Controller
	bot        BotClient
	notifier   notifications.Service
	sweeper    *storage.Sweeper
	httpAPI    *apiServer
	logPath    string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	botUsername atomic.Pointer[string]
}

// New constructs a daemon with initialized dependencies. The logPath is the
// file the IPC log tail reads; pass the path the process logger writes to.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wf *workflow.Manager, controller *dialog.Controller, bot BotClient, logPath string) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || wf == nil || controller == nil || bot == nil {
		return nil, errors.New("daemon requires config, store, logger, workflow manager, controller, and bot client")
	}
	if logPath == "" {
		logPath = filepath.Join(cfg.Paths.LogDir, "mediabot.log")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "mediabotd.lock")
	d := &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		store:      store,
		workflow:   wf,
		controller: controller,
		bot:        bot,
		notifier:   notifications.NewService(cfg),
		sweeper:    storage.NewSweeper(cfg, logger),
		logPath:    logPath,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}
	httpAPI, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.httpAPI = httpAPI
	return d, nil
}

// Start acquires the instance lock, verifies the bot identity, and launches
// the workers and the update poll loop.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another mediabot daemon instance is already running")
	}

	me, err := d.bot.GetMe(ctx)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("verify bot token: %w", err)
	}
	username := me.Username
	d.botUsername.Store(&username)

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}

	d.mu.Lock()
	d.cancel = cancel
	d.mu.Unlock()

	if err := d.bot.SetMyCommands(runCtx, dialog.Commands()); err != nil {
		d.logger.Warn("register command menu", logging.Error(err))
	}
	if err := d.controller.DeliverBacklog(runCtx); err != nil {
		d.logger.Warn("deliver backlog", logging.Error(err))
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.pollUpdates(runCtx)
	}()

	if d.cfg.Storage.RetentionHours > 0 {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.sweeper.Run(runCtx, time.Hour)
		}()
	}

	if err := d.httpAPI.start(runCtx); err != nil {
		d.logger.Warn("start http api", logging.Error(err))
	}

	d.running.Store(true)
	d.logger.Info("mediabot daemon started",
		logging.String("bot_username", username),
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldEventType, "daemon_start"))
	if err := d.notifier.NotifyDaemonStarted(runCtx); err != nil {
		d.logger.Warn("notify daemon start", logging.Error(err))
	}
	return nil
}

// pollUpdates long-polls the bot API and hands every update to the dialog
// controller. Poll failures back off briefly so a bot API outage does not
// spin the loop.
func (d *Daemon) pollUpdates(ctx context.Context) {
	timeout := d.cfg.Telegram.PollTimeout
	if timeout <= 0 {
		timeout = 30
	}

	var offset int64
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		updates, err := d.bot.GetUpdates(ctx, offset, timeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.logger.Warn("poll updates",
				logging.Error(err),
				logging.String(logging.FieldEventType, "poll_failed"),
				logging.String(logging.FieldErrorHint, "check network connectivity and the bot token"))
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			d.controller.HandleUpdate(ctx, update)
		}
	}
}

// Stop halts polling and background processing and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.mu.Lock()
	cancel := d.cancel
	d.cancel = nil
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	d.workflow.Stop()
	d.httpAPI.stop()
	d.wg.Wait()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := d.notifier.NotifyDaemonStopped(stopCtx); err != nil {
		d.logger.Warn("notify daemon stop", logging.Error(err))
	}
	stopCancel()

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("mediabot daemon stopped",
		logging.String(logging.FieldEventType, "daemon_stop"))
}

// Close stops the daemon and releases the queue store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// ListQueue returns jobs filtered by optional statuses.
func (d *Daemon) ListQueue(ctx context.Context, statuses []queue.Status) ([]*queue.Job, error) {
	return d.store.List(ctx, statuses...)
}

// GetJob returns a single job by id, or nil when it does not exist.
func (d *Daemon) GetJob(ctx context.Context, id int64) (*queue.Job, error) {
	return d.store.GetByID(ctx, id)
}

// ClearQueue removes all jobs.
func (d *Daemon) ClearQueue(ctx context.Context) (int64, error) {
	return d.store.Clear(ctx)
}

// ClearCompleted removes only completed jobs.
func (d *Daemon) ClearCompleted(ctx context.Context) (int64, error) {
	return d.store.ClearCompleted(ctx)
}

// ClearFailed removes only failed jobs.
func (d *Daemon) ClearFailed(ctx context.Context) (int64, error) {
	return d.store.ClearFailed(ctx)
}

// ResetStuck transitions running jobs back to pending for retry.
func (d *Daemon) ResetStuck(ctx context.Context) (int64, error) {
	return d.store.ResetStuckRunning(ctx)
}

// RetryFailed resets failed jobs (optionally a subset) back to pending.
func (d *Daemon) RetryFailed(ctx context.Context, ids []int64) (int64, error) {
	return d.store.RetryFailed(ctx, ids...)
}

// RemoveJobs deletes specific jobs by id.
func (d *Daemon) RemoveJobs(ctx context.Context, ids []int64) (int64, error) {
	return d.store.Remove(ctx, ids...)
}

// QueueHealth returns aggregate queue diagnostics.
func (d *Daemon) QueueHealth(ctx context.Context) (queue.HealthSummary, error) {
	return d.store.Health(ctx)
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (queue.DatabaseHealth, error) {
	return d.store.CheckHealth(ctx)
}

// TestNotification sends a test push through the configured ntfy topic.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// APIAddr returns the bound HTTP API address, or "" when the API is
// disabled or not started.
func (d *Daemon) APIAddr() string {
	return d.httpAPI.addr()
}

// Status reports the daemon runtime state for IPC and HTTP consumers.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	status := api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
	}
	if name := d.botUsername.Load(); name != nil {
		status.BotUsername = *name
	}
	if health, err := d.store.Health(ctx); err == nil {
		status.QueueStats = api.FromHealth(health)
	} else {
		d.logger.Warn("queue health for status", logging.Error(err))
	}
	status.Dependencies = api.FromDependencies(deps.CheckBinaries(deps.ForConfig(d.cfg)))
	status.Telemetry = readTelemetry(ctx)
	return status
}

// readTelemetry samples host CPU and memory. Readings are best-effort:
// a nil result simply omits the section from status output.
func readTelemetry(ctx context.Context) *api.Telemetry {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil
	}
	telemetry := &api.Telemetry{
		MemoryPercent: vm.UsedPercent,
		MemoryUsedMB:  vm.Used / (1 << 20),
		MemoryTotalMB: vm.Total / (1 << 20),
	}
	if percents, err := cpu.PercentWithContext(ctx, 200*time.Millisecond, false); err == nil && len(percents) > 0 {
		telemetry.CPUPercent = percents[0]
	}
	return telemetry
}
