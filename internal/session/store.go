package session

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"mediabot/internal/config"
	"mediabot/internal/jobspec"
)

//go:embed schema.sql
var schemaSQL string

// Store persists sessions in SQLite, one row per chat.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the session database under the data dir.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.DataDir, "sessions.db"))
}

// OpenPath opens the session database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sessions db: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create sessions schema: %w", err)
	}
	return &Store{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get loads the chat's session, returning a fresh idle session when the
// chat has none yet.
func (s *Store) Get(ctx context.Context, chatID int64) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT chat_id, user_id, state, media_kind, operation, input_paths, prompt_message_id, updated_at
		 FROM sessions WHERE chat_id = ?`, chatID)

	var (
		sess       Session
		kind, op   string
		state      string
		inputsJSON string
		updatedAt  string
	)
	err := row.Scan(&sess.ChatID, &sess.UserID, &state, &kind, &op, &inputsJSON, &sess.PromptMessageID, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return New(chatID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session for chat %d: %w", chatID, err)
	}
	sess.State = State(state)
	sess.MediaKind = jobspec.MediaKind(kind)
	sess.Operation = jobspec.Operation(op)
	if err := json.Unmarshal([]byte(inputsJSON), &sess.InputPaths); err != nil {
		return nil, fmt.Errorf("decode session inputs for chat %d: %w", chatID, err)
	}
	if parsed, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		sess.UpdatedAt = parsed
	}
	return &sess, nil
}

// Save upserts the chat's session.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	inputs, err := json.Marshal(sess.InputPaths)
	if err != nil {
		return fmt.Errorf("marshal session inputs: %w", err)
	}
	if sess.InputPaths == nil {
		inputs = []byte("[]")
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (chat_id, user_id, state, media_kind, operation, input_paths, prompt_message_id, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(chat_id) DO UPDATE SET
			user_id = excluded.user_id,
			state = excluded.state,
			media_kind = excluded.media_kind,
			operation = excluded.operation,
			input_paths = excluded.input_paths,
			prompt_message_id = excluded.prompt_message_id,
			updated_at = excluded.updated_at`,
		sess.ChatID, sess.UserID, string(sess.State), string(sess.MediaKind), string(sess.Operation),
		string(inputs), sess.PromptMessageID, now.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save session for chat %d: %w", sess.ChatID, err)
	}
	sess.UpdatedAt = now
	return nil
}

// Delete removes the chat's session row.
func (s *Store) Delete(ctx context.Context, chatID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("delete session for chat %d: %w", chatID, err)
	}
	return nil
}
