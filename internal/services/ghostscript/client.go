// Package ghostscript wraps the gs CLI for PDF compression.
package ghostscript

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"mediabot/internal/services"
)

// Quality levels map onto Ghostscript's distiller presets. Lower quality
// means stronger downsampling and a smaller file.
const (
	QualityLow    = "low"
	QualityMedium = "medium"
	QualityHigh   = "high"
)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) ([]byte, error)
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithTimeout bounds each invocation. Zero disables the bound.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// Client wraps Ghostscript CLI interactions.
type Client struct {
	binary  string
	timeout time.Duration
	exec    Executor
}

// New constructs a Ghostscript client.
func New(binary string, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("ghostscript binary required")
	}
	client := &Client{
		binary:  binary,
		timeout: 10 * time.Minute,
		exec:    commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// PDFSettings translates a quality level into the matching -dPDFSETTINGS
// preset.
func PDFSettings(quality string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(quality)) {
	case QualityLow:
		return "/screen", nil
	case QualityMedium:
		return "/ebook", nil
	case QualityHigh:
		return "/printer", nil
	default:
		return "", services.Wrap(services.ErrValidation, "ghostscript", "compress",
			fmt.Sprintf("unknown quality %q (expected low, medium, or high)", quality), nil)
	}
}

// Compress rewrites inputPath to outputPath using the distiller preset for
// the given quality level.
func (c *Client) Compress(ctx context.Context, inputPath, outputPath, quality string) error {
	preset, err := PDFSettings(quality)
	if err != nil {
		return err
	}

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := []string{
		"-sDEVICE=pdfwrite",
		"-dCompatibilityLevel=1.4",
		"-dPDFSETTINGS=" + preset,
		"-dNOPAUSE",
		"-dQUIET",
		"-dBATCH",
		"-sOutputFile=" + outputPath,
		inputPath,
	}
	output, err := c.exec.Run(runCtx, c.binary, args)
	if err != nil {
		detail := strings.TrimSpace(string(output))
		if detail != "" {
			err = fmt.Errorf("%w: %s", err, detail)
		}
		return services.Wrap(services.ErrExternalTool, "ghostscript", "compress", "pdf compression failed", err)
	}
	if _, err := os.Stat(outputPath); err != nil {
		return services.Wrap(services.ErrExternalTool, "ghostscript", "compress", "ghostscript produced no output file", err)
	}
	return nil
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	return cmd.CombinedOutput()
}
