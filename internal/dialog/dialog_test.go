package dialog_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mediabot/internal/config"
	"mediabot/internal/dialog"
	"mediabot/internal/jobspec"
	"mediabot/internal/logging"
	"mediabot/internal/queue"
	"mediabot/internal/session"
	"mediabot/internal/telegram"
)

type sentMessage struct {
	req telegram.SendMessageRequest
}

type sentDocument struct {
	chatID  int64
	path    string
	caption string
}

// fakeBot records outgoing traffic and serves canned file downloads.
type fakeBot struct {
	messages  []sentMessage
	edits     []telegram.EditMessageTextRequest
	documents []sentDocument
	answered  []string
	actions   []string

	nextMessageID int
	fileContents  []byte
}

func (b *fakeBot) SendMessage(_ context.Context, req telegram.SendMessageRequest) (telegram.Message, error) {
	b.messages = append(b.messages, sentMessage{req: req})
	b.nextMessageID++
	return telegram.Message{MessageID: b.nextMessageID, Chat: telegram.Chat{ID: req.ChatID}}, nil
}

func (b *fakeBot) EditMessageText(_ context.Context, req telegram.EditMessageTextRequest) error {
	b.edits = append(b.edits, req)
	return nil
}

func (b *fakeBot) AnswerCallbackQuery(_ context.Context, callbackID, text string) error {
	b.answered = append(b.answered, callbackID+"|"+text)
	return nil
}

func (b *fakeBot) SendChatAction(_ context.Context, chatID int64, action string) error {
	b.actions = append(b.actions, action)
	return nil
}

func (b *fakeBot) SendDocument(_ context.Context, chatID int64, path, caption string) (telegram.Message, error) {
	b.documents = append(b.documents, sentDocument{chatID: chatID, path: path, caption: caption})
	b.nextMessageID++
	return telegram.Message{MessageID: b.nextMessageID}, nil
}

func (b *fakeBot) GetFile(_ context.Context, fileID string) (telegram.File, error) {
	return telegram.File{FileID: fileID, FilePath: "documents/" + fileID}, nil
}

func (b *fakeBot) DownloadFile(_ context.Context, _ string, destPath string) error {
	content := b.fileContents
	if content == nil {
		content = []byte("payload")
	}
	return os.WriteFile(destPath, content, 0o644)
}

func (b *fakeBot) lastText(t *testing.T) string {
	t.Helper()
	if len(b.messages) == 0 {
		t.Fatal("no messages sent")
	}
	return b.messages[len(b.messages)-1].req.Text
}

type harness struct {
	bot      *fakeBot
	ctrl     *dialog.Controller
	sessions *session.Store
	jobs     *queue.Store
	cfg      *config.Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = dir
	cfg.Paths.UploadsDir = filepath.Join(dir, "uploads")
	cfg.Paths.OutputsDir = filepath.Join(dir, "outputs")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	sessions, err := session.OpenPath(filepath.Join(dir, "sessions.db"))
	if err != nil {
		t.Fatalf("open session store: %v", err)
	}
	t.Cleanup(func() { sessions.Close() })

	jobs, err := queue.OpenPath(filepath.Join(dir, "queue.db"))
	if err != nil {
		t.Fatalf("open queue store: %v", err)
	}
	t.Cleanup(func() { jobs.Close() })

	bot := &fakeBot{}
	ctrl, err := dialog.New(&cfg, bot, sessions, jobs, logging.NewNop())
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	return &harness{bot: bot, ctrl: ctrl, sessions: sessions, jobs: jobs, cfg: &cfg}
}

const chatID = int64(4242)

func textUpdate(text string) telegram.Update {
	return telegram.Update{Message: &telegram.Message{
		MessageID: 1,
		From:      &telegram.User{ID: 7},
		Chat:      telegram.Chat{ID: chatID},
		Text:      text,
	}}
}

func documentUpdate(name string, size int64) telegram.Update {
	return telegram.Update{Message: &telegram.Message{
		MessageID: 2,
		From:      &telegram.User{ID: 7},
		Chat:      telegram.Chat{ID: chatID},
		Document:  &telegram.Document{FileID: "file-" + name, FileName: name, FileSize: size},
	}}
}

func callbackUpdate(data string) telegram.Update {
	return telegram.Update{CallbackQuery: &telegram.CallbackQuery{
		ID:      "cb-1",
		From:    telegram.User{ID: 7},
		Data:    data,
		Message: &telegram.Message{MessageID: 3, Chat: telegram.Chat{ID: chatID}},
	}}
}

func (h *harness) sessionState(t *testing.T) *session.Session {
	t.Helper()
	sess, err := h.sessions.Get(context.Background(), chatID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	return sess
}

func TestStartShowsKindMenu(t *testing.T) {
	h := newHarness(t)
	h.ctrl.HandleUpdate(context.Background(), textUpdate("/start"))

	if len(h.bot.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(h.bot.messages))
	}
	markup := h.bot.messages[0].req.ReplyMarkup
	if markup == nil || len(markup.InlineKeyboard) == 0 {
		t.Fatal("expected a kind keyboard")
	}
	if got := markup.InlineKeyboard[0][0].CallbackData; got != "kind:image" {
		t.Fatalf("first button = %q, want kind:image", got)
	}
	if h.sessionState(t).State != session.StateChoosingMedia {
		t.Fatalf("state = %s, want choosing_media", h.sessionState(t).State)
	}
}

func TestFullImageRotateFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.ctrl.HandleUpdate(ctx, textUpdate("/start"))
	h.ctrl.HandleUpdate(ctx, callbackUpdate("kind:image"))
	if h.sessionState(t).State != session.StateAwaitingUpload {
		t.Fatalf("state after kind = %s", h.sessionState(t).State)
	}
	if len(h.bot.edits) != 1 {
		t.Fatalf("expected the kind menu to be edited in place, got %d edits", len(h.bot.edits))
	}

	h.ctrl.HandleUpdate(ctx, documentUpdate("photo.png", 1024))
	sess := h.sessionState(t)
	if sess.State != session.StateChoosingOperation {
		t.Fatalf("state after upload = %s", sess.State)
	}
	if len(sess.InputPaths) != 1 {
		t.Fatalf("inputs = %d, want 1", len(sess.InputPaths))
	}
	if _, err := os.Stat(sess.InputPaths[0]); err != nil {
		t.Fatalf("uploaded file missing: %v", err)
	}
	if !strings.HasSuffix(sess.InputPaths[0], ".png") {
		t.Fatalf("upload path %q should keep the extension", sess.InputPaths[0])
	}

	h.ctrl.HandleUpdate(ctx, callbackUpdate("op:rotate"))
	if h.sessionState(t).State != session.StateAwaitingParams {
		t.Fatalf("state after op = %s", h.sessionState(t).State)
	}

	h.ctrl.HandleUpdate(ctx, textUpdate("90"))

	jobs, err := h.jobs.ListForChat(ctx, chatID, 10)
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected 1 queued job, got %d", len(jobs))
	}
	job := jobs[0]
	if job.MediaKind != jobspec.KindImage || job.Operation != jobspec.OpRotate {
		t.Fatalf("job = %s %s", job.MediaKind, job.Operation)
	}
	params, err := jobspec.Decode[jobspec.RotateParams](job.ParamsJSON)
	if err != nil {
		t.Fatalf("decode params: %v", err)
	}
	if params.Degrees != 90 || params.Direction != "clockwise" {
		t.Fatalf("params = %+v", params)
	}
	if h.sessionState(t).State != session.StateIdle {
		t.Fatalf("session should reset after enqueue, got %s", h.sessionState(t).State)
	}
	if !strings.Contains(h.bot.lastText(t), "queued") {
		t.Fatalf("confirmation = %q", h.bot.lastText(t))
	}
}

func TestMergeCollectsInputsUntilDone(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.ctrl.HandleUpdate(ctx, textUpdate("/start"))
	h.ctrl.HandleUpdate(ctx, callbackUpdate("kind:video"))
	h.ctrl.HandleUpdate(ctx, documentUpdate("a.mp4", 2048))
	h.ctrl.HandleUpdate(ctx, callbackUpdate("op:merge"))

	if h.sessionState(t).State != session.StateCollectingInputs {
		t.Fatalf("state = %s, want collecting_inputs", h.sessionState(t).State)
	}

	// Done with a single file is rejected.
	h.ctrl.HandleUpdate(ctx, callbackUpdate("inputs:done"))
	if !strings.Contains(h.bot.lastText(t), "at least 2") {
		t.Fatalf("expected min-inputs rejection, got %q", h.bot.lastText(t))
	}

	h.ctrl.HandleUpdate(ctx, documentUpdate("b.mkv", 2048))
	h.ctrl.HandleUpdate(ctx, callbackUpdate("inputs:done"))

	jobs, err := h.jobs.ListForChat(ctx, chatID, 10)
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected 1 queued job, got %d", len(jobs))
	}
	if jobs[0].Operation != jobspec.OpMerge {
		t.Fatalf("operation = %s", jobs[0].Operation)
	}
	if len(jobs[0].InputPaths) != 2 {
		t.Fatalf("inputs = %d, want 2", len(jobs[0].InputPaths))
	}
}

func TestUploadRejectsWrongExtension(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.ctrl.HandleUpdate(ctx, textUpdate("/start"))
	h.ctrl.HandleUpdate(ctx, callbackUpdate("kind:document"))
	h.ctrl.HandleUpdate(ctx, documentUpdate("notes.txt", 100))

	if !strings.Contains(h.bot.lastText(t), "not a supported") {
		t.Fatalf("expected extension rejection, got %q", h.bot.lastText(t))
	}
	if h.sessionState(t).State != session.StateAwaitingUpload {
		t.Fatalf("state = %s, should stay awaiting_upload", h.sessionState(t).State)
	}
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.cfg.Limits.MaxImageMB = 1

	h.ctrl.HandleUpdate(ctx, textUpdate("/start"))
	h.ctrl.HandleUpdate(ctx, callbackUpdate("kind:image"))
	h.ctrl.HandleUpdate(ctx, documentUpdate("big.png", 2<<20))

	if !strings.Contains(h.bot.lastText(t), "too large") {
		t.Fatalf("expected size rejection, got %q", h.bot.lastText(t))
	}
}

func TestBadParamsReprompts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.ctrl.HandleUpdate(ctx, textUpdate("/start"))
	h.ctrl.HandleUpdate(ctx, callbackUpdate("kind:image"))
	h.ctrl.HandleUpdate(ctx, documentUpdate("photo.png", 1024))
	h.ctrl.HandleUpdate(ctx, callbackUpdate("op:rotate"))
	h.ctrl.HandleUpdate(ctx, textUpdate("sideways"))

	if !strings.Contains(h.bot.lastText(t), "degrees") {
		t.Fatalf("expected re-prompt with hint, got %q", h.bot.lastText(t))
	}
	if h.sessionState(t).State != session.StateAwaitingParams {
		t.Fatalf("state = %s, should stay awaiting_params", h.sessionState(t).State)
	}

	jobs, err := h.jobs.ListForChat(ctx, chatID, 10)
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("no job should be queued, got %d", len(jobs))
	}
}

func TestCancelDeletesUploads(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.ctrl.HandleUpdate(ctx, textUpdate("/start"))
	h.ctrl.HandleUpdate(ctx, callbackUpdate("kind:image"))
	h.ctrl.HandleUpdate(ctx, documentUpdate("photo.png", 1024))
	uploaded := h.sessionState(t).InputPaths[0]

	h.ctrl.HandleUpdate(ctx, textUpdate("/cancel"))

	if h.sessionState(t).State != session.StateIdle {
		t.Fatalf("state = %s, want idle", h.sessionState(t).State)
	}
	if _, err := os.Stat(uploaded); !os.IsNotExist(err) {
		t.Fatalf("upload %s should be deleted after cancel", uploaded)
	}
}

func TestRemoveBackgroundEnqueuesWithoutParams(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.ctrl.HandleUpdate(ctx, textUpdate("/start"))
	h.ctrl.HandleUpdate(ctx, callbackUpdate("kind:image"))
	h.ctrl.HandleUpdate(ctx, documentUpdate("photo.png", 1024))
	h.ctrl.HandleUpdate(ctx, callbackUpdate("op:remove_background"))

	jobs, err := h.jobs.ListForChat(ctx, chatID, 10)
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Operation != jobspec.OpRemoveBackground {
		t.Fatalf("expected an immediate remove_background job, got %+v", jobs)
	}
	if jobs[0].ParamsJSON != "{}" {
		t.Fatalf("params = %q, want empty object", jobs[0].ParamsJSON)
	}
}

func TestDisallowedChatIgnored(t *testing.T) {
	h := newHarness(t)
	h.cfg.Telegram.AllowedChatIDs = []int64{1}

	h.ctrl.HandleUpdate(context.Background(), textUpdate("/start"))

	if len(h.bot.messages) != 0 {
		t.Fatalf("disallowed chat should get no reply, got %d messages", len(h.bot.messages))
	}
}

func TestPhotoUploadUsesLargestRendition(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.ctrl.HandleUpdate(ctx, textUpdate("/start"))
	h.ctrl.HandleUpdate(ctx, callbackUpdate("kind:image"))
	h.ctrl.HandleUpdate(ctx, telegram.Update{Message: &telegram.Message{
		MessageID: 2,
		From:      &telegram.User{ID: 7},
		Chat:      telegram.Chat{ID: chatID},
		Photo: []telegram.PhotoSize{
			{FileID: "small", Width: 90, Height: 90, FileSize: 100},
			{FileID: "large", Width: 1280, Height: 1280, FileSize: 900},
		},
	}})

	sess := h.sessionState(t)
	if len(sess.InputPaths) != 1 {
		t.Fatalf("inputs = %d, want 1", len(sess.InputPaths))
	}
	if !strings.HasSuffix(sess.InputPaths[0], ".jpg") {
		t.Fatalf("photo upload should be stored as .jpg, got %q", sess.InputPaths[0])
	}
}

func TestStatusListsRecentJobs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	input := filepath.Join(h.cfg.Paths.UploadsDir, "in.png")
	if err := os.WriteFile(input, []byte("x"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	job, err := h.jobs.NewJob(ctx, chatID, 7, jobspec.KindImage, jobspec.OpRotate, []string{input}, "{}")
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	h.ctrl.HandleUpdate(ctx, textUpdate("/status"))

	text := h.bot.lastText(t)
	if !strings.Contains(text, "#1") || !strings.Contains(text, "image rotate") {
		t.Fatalf("status text = %q (job %d)", text, job.ID)
	}
}

func TestDeliverCompletedJobSendsDocuments(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	input := filepath.Join(h.cfg.Paths.UploadsDir, "in.png")
	output := filepath.Join(h.cfg.Paths.OutputsDir, "out.png")
	for _, p := range []string{input, output} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	job, err := h.jobs.NewJob(ctx, chatID, 7, jobspec.KindImage, jobspec.OpRotate, []string{input}, "{}")
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	claimed, err := h.jobs.NextPending(ctx)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := h.jobs.MarkCompleted(ctx, claimed.ID, []string{output}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	completed, err := h.jobs.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if err := h.ctrl.Deliver(ctx, completed); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(h.bot.documents) != 1 {
		t.Fatalf("documents sent = %d, want 1", len(h.bot.documents))
	}
	if h.bot.documents[0].path != output {
		t.Fatalf("sent %q, want %q", h.bot.documents[0].path, output)
	}
	if !strings.Contains(h.bot.documents[0].caption, "image rotate") {
		t.Fatalf("caption = %q", h.bot.documents[0].caption)
	}

	after, err := h.jobs.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("get after deliver: %v", err)
	}
	if !after.Delivered {
		t.Fatal("job should be marked delivered")
	}
}

func TestDeliverFailedJobSendsExplanation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	input := filepath.Join(h.cfg.Paths.UploadsDir, "in.pdf")
	if err := os.WriteFile(input, []byte("x"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	job, err := h.jobs.NewJob(ctx, chatID, 7, jobspec.KindDocument, jobspec.OpMerge, []string{input, input}, "{}")
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if _, err := h.jobs.NextPending(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := h.jobs.MarkFailed(ctx, job.ID, "not a readable PDF"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	failed, err := h.jobs.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if err := h.ctrl.Deliver(ctx, failed); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if !strings.Contains(h.bot.lastText(t), "not a readable PDF") {
		t.Fatalf("failure text = %q", h.bot.lastText(t))
	}
}
