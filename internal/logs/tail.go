package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// pollInterval paces follow-mode reads between appends.
const pollInterval = 200 * time.Millisecond

// TailOptions controls one Tail call. A negative Offset means "the last
// Limit lines"; a non-negative Offset resumes a previous read. Follow keeps
// polling for up to Wait when the first read returns nothing.
type TailOptions struct {
	Offset int64
	Limit  int
	Follow bool
	Wait   time.Duration
}

// TailResult carries the lines read and the offset to resume from.
type TailResult struct {
	Lines  []string
	Offset int64
}

// Tail reads newline-terminated lines from the daemon's log file. Only
// complete lines are returned: a record the daemon is still writing stays
// unread until its newline lands, so followers never see a split line. An
// offset past the end of the file means the retention sweep rotated the log;
// reading restarts from the top of the new file.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	if opts.Wait < 0 {
		opts.Wait = 0
	}

	result, err := read(path, opts.Offset, opts.Limit)
	if err != nil {
		return result, err
	}
	if opts.Follow && opts.Wait > 0 && len(result.Lines) == 0 {
		return follow(ctx, path, result.Offset, opts.Wait)
	}
	return result, nil
}

// read performs a single pass over the file. Negative offsets tail the last
// limit lines; non-negative offsets read forward, returning at most limit
// lines when limit > 0.
func read(path string, offset int64, limit int) (TailResult, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// The daemon has not written anything yet.
			return TailResult{}, nil
		}
		return TailResult{Offset: offset}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return TailResult{Offset: offset}, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return TailResult{Offset: offset}, fmt.Errorf("log path %q is a directory", path)
	}

	if offset < 0 {
		return lastLines(file, limit)
	}
	if offset > info.Size() {
		offset = 0
	}

	lines, next, err := scanLines(file, offset, limit)
	if err != nil {
		return TailResult{Offset: offset}, err
	}
	return TailResult{Lines: lines, Offset: next}, nil
}

// scanLines returns complete lines starting at offset and the offset just
// past the last line consumed. limit > 0 caps the number of lines; a
// trailing line without a newline is left for the next call.
func scanLines(file *os.File, offset int64, limit int) ([]string, int64, error) {
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, fmt.Errorf("seek log file: %w", err)
	}

	reader := bufio.NewReaderSize(file, 64*1024)
	var lines []string
	for limit <= 0 || len(lines) < limit {
		text, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, offset, fmt.Errorf("read log file: %w", err)
		}
		offset += int64(len(text))
		lines = append(lines, strings.TrimSuffix(text, "\n"))
	}
	return lines, offset, nil
}

// lastLines tails the final limit complete lines through a fixed-size ring so
// memory stays bounded no matter how large the log has grown. limit <= 0
// positions the reader at the end without replaying history.
func lastLines(file *os.File, limit int) (TailResult, error) {
	reader := bufio.NewReaderSize(file, 64*1024)

	var (
		ring   []string
		count  int
		offset int64
	)
	if limit > 0 {
		ring = make([]string, limit)
	}
	for {
		text, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return TailResult{}, fmt.Errorf("read log file: %w", err)
		}
		offset += int64(len(text))
		if limit > 0 {
			ring[count%limit] = strings.TrimSuffix(text, "\n")
			count++
		}
	}

	result := TailResult{Offset: offset}
	if limit <= 0 || count == 0 {
		return result, nil
	}
	kept := min(count, limit)
	result.Lines = make([]string, kept)
	for i := 0; i < kept; i++ {
		result.Lines[i] = ring[(count-kept+i)%limit]
	}
	return result, nil
}

// follow polls for new lines until some arrive, the wait elapses, or the
// context is canceled. The file may not exist yet when following a daemon
// that is still starting; polling covers that case too.
func follow(ctx context.Context, path string, offset int64, wait time.Duration) (TailResult, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		result, err := read(path, offset, 0)
		if err != nil || len(result.Lines) > 0 {
			return result, err
		}
		offset = result.Offset

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-timer.C:
			return result, nil
		case <-ticker.C:
		}
	}
}
