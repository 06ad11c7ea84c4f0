package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/sethvargo/go-envconfig"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	UploadsDir string `toml:"uploads_dir"`
	OutputsDir string `toml:"outputs_dir"`
	LogDir     string `toml:"log_dir"`
	FontsDir   string `toml:"fonts_dir"`
	APIBind    string `toml:"api_bind"`
	APIToken   string `toml:"api_token" env:"MEDIABOT_API_TOKEN, overwrite"`
}

// Telegram contains configuration for the Telegram Bot API connection.
type Telegram struct {
	Token          string  `toml:"token" env:"TELEGRAM_BOT_TOKEN, overwrite"`
	BaseURL        string  `toml:"base_url"`
	PollTimeout    int     `toml:"poll_timeout"`
	RequestTimeout int     `toml:"request_timeout"`
	AdminChatID    int64   `toml:"admin_chat_id"`
	AllowedChatIDs []int64 `toml:"allowed_chat_ids"`
}

// Limits contains per-kind upload size caps in megabytes.
type Limits struct {
	MaxImageMB    int `toml:"max_image_mb"`
	MaxVideoMB    int `toml:"max_video_mb"`
	MaxDocumentMB int `toml:"max_document_mb"`
}

// Workflow contains configuration for daemon timing and concurrency.
type Workflow struct {
	QueuePollInterval int `toml:"queue_poll_interval"`
	MaxConcurrentJobs int `toml:"max_concurrent_jobs"`
	JobTimeout        int `toml:"job_timeout"`
}

// Tools contains the external binaries the processors shell out to.
type Tools struct {
	FFmpegBinary      string `toml:"ffmpeg_binary"`
	FFprobeBinary     string `toml:"ffprobe_binary"`
	GhostscriptBinary string `toml:"ghostscript_binary"`
	TesseractBinary   string `toml:"tesseract_binary"`
	RembgBinary       string `toml:"rembg_binary"`
	RembgModel        string `toml:"rembg_model"`
}

// OCR contains configuration for document text recognition.
type OCR struct {
	Language string `toml:"language"`
	DPI      int    `toml:"dpi"`
}

// Caption contains the default caption box geometry and typography.
// Box holds left, top, right, bottom as fractions of the image dimensions.
type Caption struct {
	FontName   string    `toml:"font_name"`
	FontSize   int       `toml:"font_size"`
	FontColor  string    `toml:"font_color"`
	BoxColor   string    `toml:"box_color"`
	BoxOpacity float64   `toml:"box_opacity"`
	Padding    int       `toml:"padding"`
	Position   string    `toml:"position"`
	Box        []float64 `toml:"box"`
}

// Storage contains artifact archival and retention configuration.
type Storage struct {
	Archive           bool   `toml:"archive"`
	Backend           string `toml:"backend"`
	RetentionHours    int    `toml:"retention_hours"`
	S3Bucket          string `toml:"s3_bucket"`
	S3Region          string `toml:"s3_region"`
	S3Endpoint        string `toml:"s3_endpoint"`
	S3AccessKeyID     string `toml:"s3_access_key_id" env:"MEDIABOT_S3_ACCESS_KEY_ID, overwrite"`
	S3SecretAccessKey string `toml:"s3_secret_access_key" env:"MEDIABOT_S3_SECRET_ACCESS_KEY, overwrite"`
	S3UsePathStyle    bool   `toml:"s3_use_path_style"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic" env:"MEDIABOT_NTFY_TOPIC, overwrite"`
	RequestTimeout int    `toml:"request_timeout"`
	DaemonEvents   bool   `toml:"daemon_events"`
	JobFailures    bool   `toml:"job_failures"`
	QueueSummaries bool   `toml:"queue_summaries"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for mediabot.
//
// Configuration sections by subsystem:
//   - Paths: directories and API bind address
//   - Telegram: bot token, polling, and chat access control
//   - Limits: upload size caps per media kind
//   - Workflow: queue polling, worker concurrency, and job timeouts
//   - Tools: external binary names for ffmpeg, ghostscript, tesseract, rembg
//   - OCR: recognition language and rasterization DPI
//   - Caption: default caption box geometry and typography
//   - Storage: artifact archival backend and retention
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Telegram      Telegram      `toml:"telegram"`
	Limits        Limits        `toml:"limits"`
	Workflow      Workflow      `toml:"workflow"`
	Tools         Tools         `toml:"tools"`
	OCR           OCR           `toml:"ocr"`
	Caption       Caption       `toml:"caption"`
	Storage       Storage       `toml:"storage"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/mediabot/config.toml")
}

// Load locates, parses, and validates a configuration file. Secrets tagged for
// environment override are re-read from the environment after the file is
// decoded. The returned config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, "", false, fmt.Errorf("apply env overrides: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/mediabot/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mediabot.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// FontsDir is created on a best-effort basis so the daemon can run when fonts
// live on read-only mounts.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.UploadsDir, c.Paths.OutputsDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.FontsDir) != "" {
		_ = os.MkdirAll(c.Paths.FontsDir, 0o755)
	}
	return nil
}

// SocketPath returns the daemon IPC socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.LogDir, "mediabot.sock")
}

// ChatAllowed reports whether the chat may use the bot. An empty allow-list
// admits everyone.
func (c *Config) ChatAllowed(chatID int64) bool {
	if len(c.Telegram.AllowedChatIDs) == 0 {
		return true
	}
	for _, id := range c.Telegram.AllowedChatIDs {
		if id == chatID {
			return true
		}
	}
	return false
}

// MaxUploadBytes returns the size cap for the given media kind in bytes.
func (c *Config) MaxUploadBytes(kind string) int64 {
	const mb = int64(1) << 20
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "image":
		return int64(c.Limits.MaxImageMB) * mb
	case "video":
		return int64(c.Limits.MaxVideoMB) * mb
	case "document":
		return int64(c.Limits.MaxDocumentMB) * mb
	default:
		return int64(c.Limits.MaxDocumentMB) * mb
	}
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
