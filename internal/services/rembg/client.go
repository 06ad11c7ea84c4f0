// Package rembg wraps the rembg CLI for image background removal.
package rembg

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

// WithTimeout bounds each invocation. Model downloads on first use can take
// minutes, so the default is generous.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// Client wraps rembg CLI interactions.
type Client struct {
	binary  string
	model   string
	timeout time.Duration
	exec    Executor
}

// New constructs a rembg client. The model selects the segmentation network
// ("u2net" by default in config).
func New(binary, model string, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("rembg binary required")
	}
	client := &Client{
		binary:  binary,
		model:   strings.TrimSpace(model),
		timeout: 10 * time.Minute,
		exec:    commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Remove strips the background from inputPath and writes a transparent PNG to
// outputPath.
func (c *Client) Remove(ctx context.Context, inputPath, outputPath string) error {
	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := []string{"i"}
	if c.model != "" {
		args = append(args, "-m", c.model)
	}
	args = append(args, inputPath, outputPath)

	output, err := c.exec.Run(runCtx, c.binary, args)
	if err != nil {
		detail := strings.TrimSpace(string(output))
		if detail != "" {
			err = fmt.Errorf("%w: %s", err, detail)
		}
		return services.Wrap(services.ErrExternalTool, "rembg", "remove", "background removal failed", err)
	}
	if _, err := os.Stat(outputPath); err != nil {
		return services.Wrap(services.ErrExternalTool, "rembg", "remove", "rembg produced no output file", err)
	}
	return nil
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	return cmd.CombinedOutput()
}
