package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"mediabot/internal/config"
	"mediabot/internal/jobspec"
)

// ErrNotFound indicates the requested job does not exist.
var ErrNotFound = errors.New("job not found")

// Store manages job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the queue database under the data dir.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.DataDir, "queue.db"))
}

// OpenPath opens the queue database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

const jobColumns = `id, chat_id, user_id, media_kind, operation, input_paths, params_json,
	status, progress_percent, progress_message, output_paths, error_message, delivered,
	created_at, updated_at, started_at, finished_at`

// NewJob inserts a pending job for the given chat.
func (s *Store) NewJob(ctx context.Context, chatID, userID int64, kind jobspec.MediaKind, op jobspec.Operation, inputPaths []string, paramsJSON string) (*Job, error) {
	if len(inputPaths) == 0 {
		return nil, errors.New("job requires at least one input path")
	}
	if strings.TrimSpace(paramsJSON) == "" {
		paramsJSON = "{}"
	}
	inputs, err := json.Marshal(inputPaths)
	if err != nil {
		return nil, fmt.Errorf("marshal input paths: %w", err)
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (chat_id, user_id, media_kind, operation, input_paths, params_json, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		chatID, userID, string(kind), string(op), string(inputs), paramsJSON, string(StatusPending), timestamp, timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a single job.
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return job, err
}

// List returns jobs ordered oldest first, optionally filtered by status.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, string(status))
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ",") + `)`
	}
	query += ` ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// ListForChat returns the chat's most recent jobs, newest first.
func (s *Store) ListForChat(ctx context.Context, chatID int64, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE chat_id = ? ORDER BY id DESC LIMIT ?`, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("list chat jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// NextPending claims the oldest pending job, transitioning it to running
// inside a transaction so concurrent workers never share a job. Returns nil
// when the queue is empty.
func (s *Store) NextPending(ctx context.Context) (*Job, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY id ASC LIMIT 1`, string(StatusPending))
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	res, err := tx.ExecContext(ctx,
		`UPDATE jobs SET status = ?, started_at = ?, updated_at = ?, progress_percent = 0, progress_message = 'starting'
		 WHERE id = ? AND status = ?`,
		string(StatusRunning), timestamp, timestamp, job.ID, string(StatusPending))
	if err != nil {
		return nil, fmt.Errorf("claim job %d: %w", job.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("claim job %d: %w", job.ID, err)
	}
	if affected == 0 {
		return nil, nil
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}

	job.Status = StatusRunning
	job.StartedAt = &now
	job.UpdatedAt = now
	job.ProgressPercent = 0
	job.ProgressMessage = "starting"
	return job, nil
}

// UpdateProgress writes worker progress through to the database.
func (s *Store) UpdateProgress(ctx context.Context, id int64, percent float64, message string) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET progress_percent = ?, progress_message = ?, updated_at = ? WHERE id = ?`,
		percent, message, timestamp, id)
	if err != nil {
		return fmt.Errorf("update progress for job %d: %w", id, err)
	}
	return nil
}

// MarkCompleted records the output files and finishes the job.
func (s *Store) MarkCompleted(ctx context.Context, id int64, outputPaths []string) error {
	outputs, err := json.Marshal(outputPaths)
	if err != nil {
		return fmt.Errorf("marshal output paths: %w", err)
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, output_paths = ?, progress_percent = 100, progress_message = 'done',
		 error_message = '', finished_at = ?, updated_at = ? WHERE id = ?`,
		string(StatusCompleted), string(outputs), timestamp, timestamp, id)
	if err != nil {
		return fmt.Errorf("mark job %d completed: %w", id, err)
	}
	return nil
}

// MarkFailed finishes the job with an error message.
func (s *Store) MarkFailed(ctx context.Context, id int64, message string) error {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error_message = ?, progress_message = ?, finished_at = ?, updated_at = ? WHERE id = ?`,
		string(StatusFailed), message, message, timestamp, timestamp, id)
	if err != nil {
		return fmt.Errorf("mark job %d failed: %w", id, err)
	}
	return nil
}

// MarkDelivered flags that the chat received the job outcome.
func (s *Store) MarkDelivered(ctx context.Context, id int64) error {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET delivered = 1, updated_at = ? WHERE id = ?`, timestamp, id)
	if err != nil {
		return fmt.Errorf("mark job %d delivered: %w", id, err)
	}
	return nil
}

// Undelivered returns finished jobs whose outcome has not reached the chat.
func (s *Store) Undelivered(ctx context.Context) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE delivered = 0 AND status IN (?, ?) ORDER BY id ASC`,
		string(StatusCompleted), string(StatusFailed))
	if err != nil {
		return nil, fmt.Errorf("list undelivered jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// RetryFailed resets failed jobs back to pending. An empty id list retries
// every failed job. Returns the number of jobs reset.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	query := `UPDATE jobs SET status = ?, error_message = '', progress_percent = 0, progress_message = '',
		delivered = 0, started_at = NULL, finished_at = NULL, updated_at = ? WHERE status = ?`
	args := []any{string(StatusPending), timestamp, string(StatusFailed)}
	if len(ids) > 0 {
		placeholders := make([]string, len(ids))
		for i, id := range ids {
			placeholders[i] = "?"
			args = append(args, id)
		}
		query += ` AND id IN (` + strings.Join(placeholders, ",") + `)`
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry failed jobs: %w", err)
	}
	return res.RowsAffected()
}

// ResetStuckRunning returns running jobs to pending. Called at daemon start
// to reclaim work interrupted by a crash or shutdown.
func (s *Store) ResetStuckRunning(ctx context.Context) (int64, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, progress_percent = 0, progress_message = ?, started_at = NULL, updated_at = ?
		 WHERE status = ?`,
		string(StatusPending), DaemonStopReason, timestamp, string(StatusRunning))
	if err != nil {
		return 0, fmt.Errorf("reset running jobs: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes every job. Returns the number removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs`)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}

// ClearCompleted removes completed jobs.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	return s.clearStatus(ctx, StatusCompleted)
}

// ClearFailed removes failed jobs.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	return s.clearStatus(ctx, StatusFailed)
}

func (s *Store) clearStatus(ctx context.Context, status Status) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE status = ?`, string(status))
	if err != nil {
		return 0, fmt.Errorf("clear %s jobs: %w", status, err)
	}
	return res.RowsAffected()
}

// Remove deletes specific jobs by id.
func (s *Store) Remove(ctx context.Context, ids ...int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id IN (`+strings.Join(placeholders, ",")+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("remove jobs: %w", err)
	}
	return res.RowsAffected()
}

// Health returns aggregate queue counts.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return HealthSummary{}, fmt.Errorf("queue health: %w", err)
	}
	defer rows.Close()

	var summary HealthSummary
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return HealthSummary{}, fmt.Errorf("scan health row: %w", err)
		}
		summary.Total += count
		switch Status(status) {
		case StatusPending:
			summary.Pending = count
		case StatusRunning:
			summary.Running = count
		case StatusCompleted:
			summary.Completed = count
		case StatusFailed:
			summary.Failed = count
		}
	}
	return summary, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job                   Job
		kind, op              string
		status                string
		inputsJSON            string
		outputsJSON           string
		delivered             int
		createdAt, updatedAt  string
		startedAt, finishedAt sql.NullString
	)
	err := row.Scan(
		&job.ID, &job.ChatID, &job.UserID, &kind, &op, &inputsJSON, &job.ParamsJSON,
		&status, &job.ProgressPercent, &job.ProgressMessage, &outputsJSON, &job.ErrorMessage, &delivered,
		&createdAt, &updatedAt, &startedAt, &finishedAt,
	)
	if err != nil {
		return nil, err
	}
	job.MediaKind = jobspec.MediaKind(kind)
	job.Operation = jobspec.Operation(op)
	job.Status = Status(status)
	job.Delivered = delivered != 0
	if err := json.Unmarshal([]byte(inputsJSON), &job.InputPaths); err != nil {
		return nil, fmt.Errorf("decode input paths for job %d: %w", job.ID, err)
	}
	if err := json.Unmarshal([]byte(outputsJSON), &job.OutputPaths); err != nil {
		return nil, fmt.Errorf("decode output paths for job %d: %w", job.ID, err)
	}
	job.CreatedAt = parseTimestamp(createdAt)
	job.UpdatedAt = parseTimestamp(updatedAt)
	if startedAt.Valid && startedAt.String != "" {
		t := parseTimestamp(startedAt.String)
		job.StartedAt = &t
	}
	if finishedAt.Valid && finishedAt.String != "" {
		t := parseTimestamp(finishedAt.String)
		job.FinishedAt = &t
	}
	return &job, nil
}

func collectJobs(rows *sql.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func parseTimestamp(value string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed
		}
	}
	return time.Time{}
}
