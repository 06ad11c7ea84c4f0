// Package ffmpeg wraps ffmpeg CLI invocations with progress reporting.
package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"mediabot/internal/services"
)

// ProgressUpdate captures one ffmpeg progress line, translated into a percent
// of the expected output duration.
type ProgressUpdate struct {
	Percent float64
	Message string
}

// Executor abstracts command execution for testability. Lines arrive from
// ffmpeg's stderr, where it writes both diagnostics and progress.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onLine func(string)) error
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

// Client wraps ffmpeg CLI interactions.
type Client struct {
	binary  string
	timeout time.Duration
	exec    Executor
}

// New constructs an ffmpeg client.
func New(binary string, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("ffmpeg binary required")
	}
	client := &Client{
		binary: binary,
		exec:   commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Run executes ffmpeg with the given arguments. durationSeconds is the
// expected output duration used to translate time= progress into a percent;
// pass zero when unknown and progress reporting is skipped. The last stderr
// lines are folded into the returned error so failures carry ffmpeg's own
// diagnosis.
func (c *Client) Run(ctx context.Context, args []string, durationSeconds float64, progress func(ProgressUpdate)) error {
	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	full := append([]string{"-hide_banner", "-nostdin", "-y"}, args...)

	tail := newLineTail(12)
	err := c.exec.Run(runCtx, c.binary, full, func(line string) {
		tail.add(line)
		// NaN durations (ffprobe reporting no duration) also skip progress.
		if progress == nil || !(durationSeconds > 0) {
			return
		}
		if update, ok := parseProgress(line, durationSeconds); ok {
			progress(update)
		}
	})
	if err != nil {
		detail := tail.String()
		if detail != "" {
			err = fmt.Errorf("%w: %s", err, detail)
		}
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "run", "ffmpeg failed", err)
	}
	return nil
}

// WriteConcatList writes a concat demuxer list file referencing the given
// inputs and returns its path. Single quotes inside paths are escaped the way
// the demuxer expects.
func WriteConcatList(dir string, paths []string) (string, error) {
	if len(paths) == 0 {
		return "", errors.New("concat list requires at least one input")
	}
	var buf bytes.Buffer
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("resolve concat input: %w", err)
		}
		escaped := strings.ReplaceAll(abs, "'", "'\\''")
		fmt.Fprintf(&buf, "file '%s'\n", escaped)
	}
	listPath := filepath.Join(dir, "concat.txt")
	if err := os.WriteFile(listPath, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write concat list: %w", err)
	}
	return listPath, nil
}

// parseProgress extracts the time= field from an ffmpeg status line and
// converts it into a percent of the expected duration.
func parseProgress(line string, durationSeconds float64) (ProgressUpdate, bool) {
	idx := strings.Index(line, "time=")
	if idx < 0 {
		return ProgressUpdate{}, false
	}
	value := line[idx+len("time="):]
	if end := strings.IndexByte(value, ' '); end >= 0 {
		value = value[:end]
	}
	seconds, ok := parseClock(strings.TrimSpace(value))
	if !ok {
		return ProgressUpdate{}, false
	}
	percent := seconds / durationSeconds * 100
	if percent > 100 {
		percent = 100
	}
	if percent < 0 {
		percent = 0
	}
	return ProgressUpdate{Percent: percent, Message: strings.TrimSpace(line)}, true
}

// parseClock reads ffmpeg's HH:MM:SS.ss clock format into seconds.
func parseClock(value string) (float64, bool) {
	if value == "" || value == "N/A" {
		return 0, false
	}
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return 0, false
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, false
	}
	return float64(hours)*3600 + float64(minutes)*60 + seconds, true
}

// lineTail keeps the last n non-empty lines for error context.
type lineTail struct {
	lines []string
	limit int
}

func newLineTail(limit int) *lineTail {
	return &lineTail{limit: limit}
}

func (t *lineTail) add(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	t.lines = append(t.lines, line)
	if len(t.lines) > t.limit {
		t.lines = t.lines[len(t.lines)-t.limit:]
	}
}

func (t *lineTail) String() string {
	return strings.Join(t.lines, "; ")
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onLine func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanStatusLines)
	for scanner.Scan() {
		if onLine != nil {
			onLine(scanner.Text())
		}
	}
	scanErr := scanner.Err()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait command: %w", err)
	}
	if scanErr != nil {
		return fmt.Errorf("scan output: %w", scanErr)
	}
	return nil
}

// scanStatusLines splits on both \n and \r so in-place status updates
// (carriage-return rewrites of the progress line) surface as lines.
func scanStatusLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
