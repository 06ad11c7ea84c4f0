package daemon_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"mediabot/internal/api"
	"mediabot/internal/config"
	"mediabot/internal/daemon"
	"mediabot/internal/dialog"
	"mediabot/internal/logging"
	"mediabot/internal/processor"
	"mediabot/internal/queue"
	"mediabot/internal/session"
	"mediabot/internal/telegram"
	"mediabot/internal/workflow"
)

type fakeBot struct {
	mu       sync.Mutex
	updates  chan []telegram.Update
	messages []telegram.SendMessageRequest
	commands []telegram.BotCommand
	nextID   int
}

func newFakeBot() *fakeBot {
	return &fakeBot{updates: make(chan []telegram.Update, 8)}
}

func (b *fakeBot) GetMe(context.Context) (telegram.User, error) {
	return telegram.User{ID: 99, IsBot: true, Username: "mediabot_test_bot"}, nil
}

func (b *fakeBot) GetUpdates(ctx context.Context, offset int64, timeoutSeconds int) ([]telegram.Update, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case batch := <-b.updates:
		return batch, nil
	case <-time.After(25 * time.Millisecond):
		return nil, nil
	}
}

func (b *fakeBot) SetMyCommands(_ context.Context, commands []telegram.BotCommand) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commands = commands
	return nil
}

func (b *fakeBot) SendMessage(_ context.Context, req telegram.SendMessageRequest) (telegram.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, req)
	b.nextID++
	return telegram.Message{MessageID: b.nextID, Chat: telegram.Chat{ID: req.ChatID}}, nil
}

func (b *fakeBot) EditMessageText(context.Context, telegram.EditMessageTextRequest) error {
	return nil
}

func (b *fakeBot) AnswerCallbackQuery(context.Context, string, string) error { return nil }

func (b *fakeBot) SendChatAction(context.Context, int64, string) error { return nil }

func (b *fakeBot) SendDocument(_ context.Context, chatID int64, path, caption string) (telegram.Message, error) {
	return telegram.Message{Chat: telegram.Chat{ID: chatID}}, nil
}

func (b *fakeBot) GetFile(_ context.Context, fileID string) (telegram.File, error) {
	return telegram.File{FileID: fileID, FilePath: "documents/" + fileID}, nil
}

func (b *fakeBot) DownloadFile(context.Context, string, string) error { return nil }

func (b *fakeBot) messageCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.messages)
}

func (b *fakeBot) commandCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.commands)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.UploadsDir = filepath.Join(base, "uploads")
	cfg.Paths.OutputsDir = filepath.Join(base, "outputs")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = ""
	cfg.Workflow.QueuePollInterval = 1
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	return &cfg
}

func newDaemon(t *testing.T, cfg *config.Config, bot daemon.BotClient) *daemon.Daemon {
	t.Helper()
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	sessions, err := session.Open(cfg)
	if err != nil {
		t.Fatalf("session.Open: %v", err)
	}
	t.Cleanup(func() { sessions.Close() })
	logger := logging.NewNop()
	controller, err := dialog.New(cfg, bot, sessions, store, logger)
	if err != nil {
		t.Fatalf("dialog.New: %v", err)
	}
	mgr := workflow.NewManager(cfg, store, processor.NewRegistry(), controller, nil, logger)
	d, err := daemon.New(cfg, store, logger, mgr, controller, bot, "")
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testConfig(t)
	bot := newFakeBot()
	d := newDaemon(t, cfg, bot)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.BotUsername != "mediabot_test_bot" {
		t.Fatalf("unexpected bot username: %q", status.BotUsername)
	}
	if status.PID <= 0 {
		t.Fatalf("expected positive pid, got %d", status.PID)
	}
	if len(status.Dependencies) == 0 {
		t.Fatal("expected dependency statuses in daemon status")
	}
	if bot.commandCount() == 0 {
		t.Fatal("expected command menu registration on start")
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonRoutesUpdatesToDialog(t *testing.T) {
	cfg := testConfig(t)
	bot := newFakeBot()
	d := newDaemon(t, cfg, bot)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer d.Stop()

	bot.updates <- []telegram.Update{{
		UpdateID: 1,
		Message: &telegram.Message{
			MessageID: 10,
			From:      &telegram.User{ID: 7},
			Chat:      telegram.Chat{ID: 4242, Type: "private"},
			Text:      "/start",
		},
	}}

	deadline := time.Now().Add(5 * time.Second)
	for bot.messageCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for dialog reply to polled update")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHTTPStatusEndpointRequiresToken(t *testing.T) {
	cfg := testConfig(t)
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Paths.APIToken = "sekrit"
	bot := newFakeBot()
	d := newDaemon(t, cfg, bot)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer d.Stop()

	addr := d.APIAddr()
	if addr == "" {
		t.Fatal("expected http api to be listening")
	}
	url := fmt.Sprintf("http://%s/api/status", addr)

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET without token: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Authorization", "Bearer sekrit")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET with token: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", resp.StatusCode)
	}

	var status api.DaemonStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Running {
		t.Fatal("expected running status over http")
	}
	if status.QueueDBPath == "" {
		t.Fatal("expected queue db path in status")
	}
}
