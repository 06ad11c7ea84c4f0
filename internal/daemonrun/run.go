package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"mediabot/internal/config"
	"mediabot/internal/daemon"
	"mediabot/internal/deps"
	"mediabot/internal/dialog"
	"mediabot/internal/ipc"
	"mediabot/internal/logging"
	"mediabot/internal/media/fontcatalog"
	"mediabot/internal/notifications"
	"mediabot/internal/processor"
	"mediabot/internal/processor/document"
	"mediabot/internal/processor/image"
	"mediabot/internal/processor/video"
	"mediabot/internal/queue"
	"mediabot/internal/services/ffmpeg"
	"mediabot/internal/services/ghostscript"
	"mediabot/internal/services/rembg"
	"mediabot/internal/services/tessocr"
	"mediabot/internal/session"
	"mediabot/internal/storage"
	"mediabot/internal/telegram"
	"mediabot/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	SocketPath  string
}

// Run starts the mediabot daemon runtime loop and blocks until the process
// receives SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("telegram token is required; set telegram.token or TELEGRAM_BOT_TOKEN")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare directories: %w", err)
	}

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("mediabot-%s.log", runID))

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, cfg)
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update mediabot.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "mediabot-*.log", Exclude: []string{logPath}},
	)
	pidPath := filepath.Join(cfg.Paths.LogDir, "mediabot.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}
	defer store.Close()

	sessions, err := session.Open(cfg)
	if err != nil {
		logger.Error("open session store", logging.Error(err))
		return err
	}
	defer sessions.Close()

	botOpts := []telegram.Option{}
	if cfg.Telegram.BaseURL != "" {
		botOpts = append(botOpts, telegram.WithBaseURL(cfg.Telegram.BaseURL))
	}
	if cfg.Telegram.RequestTimeout > 0 {
		botOpts = append(botOpts, telegram.WithRequestTimeout(time.Duration(cfg.Telegram.RequestTimeout)*time.Second))
	}
	bot, err := telegram.New(cfg.Telegram.Token, botOpts...)
	if err != nil {
		return fmt.Errorf("create telegram client: %w", err)
	}

	controller, err := dialog.New(cfg, bot, sessions, store, logger)
	if err != nil {
		return fmt.Errorf("create dialog controller: %w", err)
	}

	registry, err := buildRegistry(cfg, logger)
	if err != nil {
		return fmt.Errorf("build processors: %w", err)
	}

	notifier := notifications.NewService(cfg)
	manager := workflow.NewManager(cfg, store, registry, controller, notifier, logger)
	archive, err := storage.NewFromConfig(cfg)
	if err != nil {
		logger.Warn("archive storage unavailable", logging.Error(err))
	} else if archive != nil {
		manager.SetArchive(archive)
	}

	d, err := daemon.New(cfg, store, logger, manager, controller, bot, logPath)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	socketPath := strings.TrimSpace(opts.SocketPath)
	if socketPath == "" {
		socketPath = cfg.SocketPath()
	}
	ipcServer, err := ipc.NewServer(signalCtx, socketPath, d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logger.Warn("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check the bot token and queue database access"),
			logging.String(logging.FieldImpact, "daemon may not process jobs"),
		)
	}

	<-signalCtx.Done()
	logger.Info("mediabot daemon shutting down")
	return nil
}

// buildRegistry wires the per-kind processors to their external tools.
// ffmpeg is mandatory; OCR, Ghostscript, and rembg degrade to per-operation
// failures when their binaries are not configured.
func buildRegistry(cfg *config.Config, logger *slog.Logger) (*processor.Registry, error) {
	fonts := fontcatalog.New(cfg.Paths.FontsDir)

	ffmpegClient, err := ffmpeg.New(cfg.Tools.FFmpegBinary)
	if err != nil {
		return nil, err
	}
	prober := video.BinaryProber{Binary: cfg.Tools.FFprobeBinary}

	var rembgClient *rembg.Client
	if strings.TrimSpace(cfg.Tools.RembgBinary) != "" {
		rembgClient, err = rembg.New(cfg.Tools.RembgBinary, cfg.Tools.RembgModel)
		if err != nil {
			logger.Warn("rembg unavailable", logging.Error(err))
			rembgClient = nil
		}
	}

	var ocr document.TextRecognizer
	if engine, err := tessocr.New(cfg.Tools.TesseractBinary, cfg.OCR.Language, cfg.OCR.DPI); err != nil {
		logger.Warn("ocr unavailable", logging.Error(err))
	} else {
		ocr = engine
	}

	var gs document.PDFCompressor
	if client, err := ghostscript.New(cfg.Tools.GhostscriptBinary); err != nil {
		logger.Warn("ghostscript unavailable", logging.Error(err))
	} else {
		gs = client
	}

	return processor.NewRegistry(
		image.New(cfg, fonts, rembgClient, logger),
		video.New(cfg, ffmpegClient, prober, fonts, logger),
		document.New(cfg, ocr, gs, logger),
	), nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "mediabot.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	statuses := deps.CheckBinaries(deps.ForConfig(cfg))
	attrs := make([]any, 0, len(statuses)+1)
	attrs = append(attrs, logging.String(logging.FieldEventType, "dependency_snapshot"))
	for _, status := range statuses {
		attrs = append(attrs, logging.Bool(strings.ReplaceAll(status.Name, " ", "_")+"_available", status.Available))
	}
	logger.Info("dependency snapshot", attrs...)

	if missing := deps.MissingRequired(statuses); len(missing) > 0 {
		logger.Warn("required tools missing",
			logging.String(logging.FieldEventType, "dependency_missing"),
			logging.String("missing", strings.Join(missing, ", ")),
			logging.String(logging.FieldErrorHint, "install the listed tools or adjust the [tools] config section"),
			logging.String(logging.FieldImpact, "jobs needing these tools will fail"),
		)
	}
}
