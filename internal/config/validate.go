package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTelegram(); err != nil {
		return err
	}
	if err := c.validateLimits(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateOCR(); err != nil {
		return err
	}
	if err := c.validateCaption(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateTelegram() error {
	if c.Telegram.Token == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/mediabot/config.toml"
		}
		return fmt.Errorf("telegram.token is required. Set TELEGRAM_BOT_TOKEN env var or edit %s (create with 'mediabot config init')", defaultPath)
	}
	if c.Telegram.PollTimeout > 300 {
		return errors.New("telegram.poll_timeout must be at most 300 seconds")
	}
	return nil
}

func (c *Config) validateLimits() error {
	return ensurePositiveMap(map[string]int{
		"limits.max_image_mb":    c.Limits.MaxImageMB,
		"limits.max_video_mb":    c.Limits.MaxVideoMB,
		"limits.max_document_mb": c.Limits.MaxDocumentMB,
	})
}

func (c *Config) validateWorkflow() error {
	return ensurePositiveMap(map[string]int{
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.max_concurrent_jobs":  c.Workflow.MaxConcurrentJobs,
		"workflow.job_timeout":          c.Workflow.JobTimeout,
		"telegram.request_timeout":      c.Telegram.RequestTimeout,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	})
}

func (c *Config) validateOCR() error {
	if c.OCR.Language == "" {
		return errors.New("ocr.language must be set")
	}
	if c.OCR.DPI < 72 || c.OCR.DPI > 1200 {
		return errors.New("ocr.dpi must be between 72 and 1200")
	}
	return nil
}

func (c *Config) validateCaption() error {
	if len(c.Caption.Box) != 4 {
		return errors.New("caption.box must hold four fractions: left, top, right, bottom")
	}
	for i, v := range c.Caption.Box {
		if v < 0 || v > 1 {
			return fmt.Errorf("caption.box[%d] must be between 0 and 1", i)
		}
	}
	if c.Caption.Box[0] >= c.Caption.Box[2] {
		return errors.New("caption.box left must be less than right")
	}
	if c.Caption.Box[1] >= c.Caption.Box[3] {
		return errors.New("caption.box top must be less than bottom")
	}
	if c.Caption.BoxOpacity < 0 || c.Caption.BoxOpacity > 1 {
		return errors.New("caption.box_opacity must be between 0 and 1")
	}
	switch c.Caption.Position {
	case "top", "bottom", "center":
	default:
		pct, err := strconv.Atoi(strings.TrimSuffix(c.Caption.Position, "%"))
		if err != nil || pct < 0 || pct > 100 {
			return fmt.Errorf("caption.position must be top, bottom, center, or a percent 0-100, got %q", c.Caption.Position)
		}
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case "local":
	case "s3":
		if c.Storage.S3Bucket == "" {
			return errors.New("storage.s3_bucket must be set when storage.backend is s3")
		}
		if c.Storage.S3Region == "" && c.Storage.S3Endpoint == "" {
			return errors.New("storage.s3_region or storage.s3_endpoint must be set when storage.backend is s3")
		}
	default:
		return fmt.Errorf("storage.backend must be local or s3, got %q", c.Storage.Backend)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
