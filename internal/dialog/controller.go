package dialog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"mediabot/internal/config"
	"mediabot/internal/jobspec"
	"mediabot/internal/logging"
	"mediabot/internal/queue"
	"mediabot/internal/session"
	"mediabot/internal/telegram"
)

const helpText = `Send /start and pick the kind of file you want to process.
Upload the file, choose an operation from the menu, and answer the
parameter prompt if one appears. The result arrives in this chat as a
document when processing finishes.

/status shows your recent jobs.
/done finishes a multi-file upload (merge, stack).
/cancel aborts the current flow at any point.`

// Bot is the Telegram surface the controller talks to. *telegram.Client
// satisfies it; tests substitute a fake.
type Bot interface {
	SendMessage(ctx context.Context, req telegram.SendMessageRequest) (telegram.Message, error)
	EditMessageText(ctx context.Context, req telegram.EditMessageTextRequest) error
	AnswerCallbackQuery(ctx context.Context, callbackID, text string) error
	SendChatAction(ctx context.Context, chatID int64, action string) error
	SendDocument(ctx context.Context, chatID int64, path, caption string) (telegram.Message, error)
	GetFile(ctx context.Context, fileID string) (telegram.File, error)
	DownloadFile(ctx context.Context, filePath, destPath string) error
}

// Controller drives the per-chat conversation state machine: it turns
// Telegram updates into session transitions and, at the end of a flow,
// into queued jobs.
type Controller struct {
	cfg      *config.Config
	bot      Bot
	sessions *session.Store
	jobs     *queue.Store
	logger   *slog.Logger
}

func New(cfg *config.Config, bot Bot, sessions *session.Store, jobs *queue.Store, logger *slog.Logger) (*Controller, error) {
	if cfg == nil {
		return nil, fmt.Errorf("dialog: config is required")
	}
	if bot == nil {
		return nil, fmt.Errorf("dialog: bot client is required")
	}
	if sessions == nil || jobs == nil {
		return nil, fmt.Errorf("dialog: session and queue stores are required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Controller{
		cfg:      cfg,
		bot:      bot,
		sessions: sessions,
		jobs:     jobs,
		logger:   logging.NewComponentLogger(logger, "dialog"),
	}, nil
}

// HandleUpdate routes one polled update. Errors are logged, not returned:
// a bad update must never stop the poll loop.
func (c *Controller) HandleUpdate(ctx context.Context, update telegram.Update) {
	switch {
	case update.CallbackQuery != nil:
		c.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		c.handleMessage(ctx, update.Message)
	}
}

func (c *Controller) handleMessage(ctx context.Context, msg *telegram.Message) {
	chatID := msg.Chat.ID
	if !c.cfg.ChatAllowed(chatID) {
		c.logger.Warn("message from disallowed chat ignored", logging.Int64(logging.FieldChatID, chatID))
		return
	}

	sess, err := c.sessions.Get(ctx, chatID)
	if err != nil {
		c.logger.Error("load session", logging.Int64(logging.FieldChatID, chatID), logging.Error(err))
		return
	}
	if msg.From != nil {
		sess.UserID = msg.From.ID
	}

	switch {
	case strings.HasPrefix(msg.Text, "/"):
		c.handleCommand(ctx, sess, msg)
	case msg.Document != nil || len(msg.Photo) > 0 || msg.Video != nil:
		c.handleUpload(ctx, sess, msg)
	case sess.State == session.StateAwaitingParams:
		c.handleParams(ctx, sess, msg.Text)
	default:
		c.reply(ctx, chatID, "Send /start to process a file, or /help for instructions.")
	}
}

func (c *Controller) handleCommand(ctx context.Context, sess *session.Session, msg *telegram.Message) {
	command := strings.Fields(msg.Text)[0]
	// Group chats suffix commands with the bot username.
	if at := strings.Index(command, "@"); at > 0 {
		command = command[:at]
	}

	switch command {
	case "/start":
		c.startFlow(ctx, sess)
	case "/help":
		c.reply(ctx, sess.ChatID, helpText)
	case "/cancel":
		c.cancelFlow(ctx, sess)
	case "/done":
		c.finishCollecting(ctx, sess)
	case "/status":
		c.reportStatus(ctx, sess.ChatID)
	default:
		c.reply(ctx, sess.ChatID, "Unknown command. Send /help for instructions.")
	}
}

func (c *Controller) startFlow(ctx context.Context, sess *session.Session) {
	c.discardUploads(sess)
	sess.Reset()
	if err := sess.Transition(session.StateChoosingMedia); err != nil {
		c.logger.Error("start transition", logging.Error(err))
		return
	}
	sent, err := c.bot.SendMessage(ctx, telegram.SendMessageRequest{
		ChatID:      sess.ChatID,
		Text:        "What kind of file do you want to process?",
		ReplyMarkup: kindKeyboard(),
	})
	if err != nil {
		c.logger.Error("send kind menu", logging.Int64(logging.FieldChatID, sess.ChatID), logging.Error(err))
		return
	}
	sess.PromptMessageID = sent.MessageID
	c.saveSession(ctx, sess)
}

func (c *Controller) cancelFlow(ctx context.Context, sess *session.Session) {
	c.discardUploads(sess)
	sess.Reset()
	c.saveSession(ctx, sess)
	c.reply(ctx, sess.ChatID, "Cancelled. Send /start whenever you want to process another file.")
}

// discardUploads removes files collected during an abandoned flow.
func (c *Controller) discardUploads(sess *session.Session) {
	for _, path := range sess.InputPaths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			c.logger.Warn("remove abandoned upload", logging.String("path", path), logging.Error(err))
		}
	}
}

func (c *Controller) handleCallback(ctx context.Context, cb *telegram.CallbackQuery) {
	if cb.Message == nil {
		c.answerCallback(ctx, cb.ID, "")
		return
	}
	chatID := cb.Message.Chat.ID
	if !c.cfg.ChatAllowed(chatID) {
		c.answerCallback(ctx, cb.ID, "")
		return
	}
	sess, err := c.sessions.Get(ctx, chatID)
	if err != nil {
		c.logger.Error("load session", logging.Int64(logging.FieldChatID, chatID), logging.Error(err))
		c.answerCallback(ctx, cb.ID, "")
		return
	}
	sess.UserID = cb.From.ID

	data := cb.Data
	switch {
	case data == callbackCancel:
		c.answerCallback(ctx, cb.ID, "")
		c.cancelFlow(ctx, sess)
	case data == callbackDone:
		c.answerCallback(ctx, cb.ID, "")
		c.finishCollecting(ctx, sess)
	case strings.HasPrefix(data, callbackKindPrefix):
		c.chooseKind(ctx, sess, cb, strings.TrimPrefix(data, callbackKindPrefix))
	case strings.HasPrefix(data, callbackOpPrefix):
		c.chooseOperation(ctx, sess, cb, strings.TrimPrefix(data, callbackOpPrefix))
	default:
		c.answerCallback(ctx, cb.ID, "")
	}
}

func (c *Controller) chooseKind(ctx context.Context, sess *session.Session, cb *telegram.CallbackQuery, value string) {
	if sess.State != session.StateChoosingMedia {
		c.answerCallback(ctx, cb.ID, "This menu is no longer active. Send /start to begin again.")
		return
	}
	kind, ok := jobspec.ParseKind(value)
	if !ok {
		c.answerCallback(ctx, cb.ID, "Unknown media kind.")
		return
	}
	c.answerCallback(ctx, cb.ID, "")

	sess.MediaKind = kind
	if err := sess.Transition(session.StateAwaitingUpload); err != nil {
		c.logger.Error("kind transition", logging.Error(err))
		return
	}
	c.saveSession(ctx, sess)
	c.editPrompt(ctx, sess, fmt.Sprintf("Upload the %s you want to process.", kind), nil)
}

func (c *Controller) chooseOperation(ctx context.Context, sess *session.Session, cb *telegram.CallbackQuery, value string) {
	if sess.State != session.StateChoosingOperation {
		c.answerCallback(ctx, cb.ID, "This menu is no longer active. Send /start to begin again.")
		return
	}
	op, ok := jobspec.ParseOperation(sess.MediaKind, value)
	if !ok {
		c.answerCallback(ctx, cb.ID, "That operation is not available for this file.")
		return
	}
	c.answerCallback(ctx, cb.ID, "")

	sess.Operation = op
	switch {
	case jobspec.CollectsInputs(op):
		if err := sess.Transition(session.StateCollectingInputs); err != nil {
			c.logger.Error("collect transition", logging.Error(err))
			return
		}
		c.saveSession(ctx, sess)
		c.editPrompt(ctx, sess,
			fmt.Sprintf("Upload at least %d more file(s) for %s, then press Done.",
				jobspec.MinInputs(op)-len(sess.InputPaths), op.Label()),
			collectKeyboard())
	case jobspec.NeedsParams(sess.MediaKind, op):
		if err := sess.Transition(session.StateAwaitingParams); err != nil {
			c.logger.Error("params transition", logging.Error(err))
			return
		}
		c.saveSession(ctx, sess)
		c.editPrompt(ctx, sess, jobspec.ParamHint(sess.MediaKind, op), nil)
	default:
		c.enqueue(ctx, sess, "")
	}
}

func (c *Controller) handleUpload(ctx context.Context, sess *session.Session, msg *telegram.Message) {
	if sess.State != session.StateAwaitingUpload && sess.State != session.StateCollectingInputs {
		c.reply(ctx, sess.ChatID, "I was not expecting a file right now. Send /start to begin a new flow.")
		return
	}

	att, ok := attachmentFor(sess.MediaKind, msg)
	if !ok {
		c.reply(ctx, sess.ChatID, fmt.Sprintf("Please upload a %s file.", sess.MediaKind))
		return
	}
	if !jobspec.AllowedExtension(sess.MediaKind, att.ext) {
		c.reply(ctx, sess.ChatID, fmt.Sprintf("%q is not a supported %s format.", att.ext, sess.MediaKind))
		return
	}
	if limit := c.cfg.MaxUploadBytes(string(sess.MediaKind)); limit > 0 && att.size > limit {
		c.reply(ctx, sess.ChatID, fmt.Sprintf("That file is too large. The limit for %s uploads is %d MB.",
			sess.MediaKind, limit/(1024*1024)))
		return
	}

	destPath := filepath.Join(c.cfg.Paths.UploadsDir, fmt.Sprintf("%d_%s%s", sess.ChatID, uuid.NewString(), att.ext))
	if err := c.download(ctx, att.fileID, destPath); err != nil {
		c.logger.Error("download upload",
			logging.Int64(logging.FieldChatID, sess.ChatID), logging.Error(err))
		c.reply(ctx, sess.ChatID, "Downloading that file failed, please try sending it again.")
		return
	}
	sess.AddInput(destPath)

	switch sess.State {
	case session.StateAwaitingUpload:
		if err := sess.Transition(session.StateChoosingOperation); err != nil {
			c.logger.Error("upload transition", logging.Error(err))
			return
		}
		c.saveSession(ctx, sess)
		sent, err := c.bot.SendMessage(ctx, telegram.SendMessageRequest{
			ChatID:      sess.ChatID,
			Text:        "Got it. What should I do with it?",
			ReplyMarkup: operationKeyboard(sess.MediaKind),
		})
		if err != nil {
			c.logger.Error("send operation menu", logging.Int64(logging.FieldChatID, sess.ChatID), logging.Error(err))
			return
		}
		sess.PromptMessageID = sent.MessageID
		c.saveSession(ctx, sess)
	case session.StateCollectingInputs:
		c.saveSession(ctx, sess)
		c.replyMarkup(ctx, sess.ChatID,
			fmt.Sprintf("Received %d file(s). Upload more or press Done.", len(sess.InputPaths)),
			collectKeyboard())
	}
}

func (c *Controller) download(ctx context.Context, fileID, destPath string) error {
	file, err := c.bot.GetFile(ctx, fileID)
	if err != nil {
		return err
	}
	return c.bot.DownloadFile(ctx, file.FilePath, destPath)
}

func (c *Controller) finishCollecting(ctx context.Context, sess *session.Session) {
	if sess.State != session.StateCollectingInputs {
		c.reply(ctx, sess.ChatID, "There is no upload in progress. Send /start to begin.")
		return
	}
	if need := jobspec.MinInputs(sess.Operation); len(sess.InputPaths) < need {
		c.reply(ctx, sess.ChatID, fmt.Sprintf("%s needs at least %d files; you have uploaded %d.",
			sess.Operation.Label(), need, len(sess.InputPaths)))
		return
	}
	if jobspec.NeedsParams(sess.MediaKind, sess.Operation) {
		if err := sess.Transition(session.StateAwaitingParams); err != nil {
			c.logger.Error("params transition", logging.Error(err))
			return
		}
		c.saveSession(ctx, sess)
		c.reply(ctx, sess.ChatID, jobspec.ParamHint(sess.MediaKind, sess.Operation))
		return
	}
	c.enqueue(ctx, sess, "")
}

func (c *Controller) handleParams(ctx context.Context, sess *session.Session, text string) {
	params, err := jobspec.ParseText(sess.MediaKind, sess.Operation, text)
	if err != nil {
		c.reply(ctx, sess.ChatID, fmt.Sprintf("%s\n\n%s", err.Error(),
			jobspec.ParamHint(sess.MediaKind, sess.Operation)))
		return
	}
	encoded, err := jobspec.Encode(params)
	if err != nil {
		c.logger.Error("encode params", logging.Error(err))
		c.reply(ctx, sess.ChatID, "Something went wrong recording those parameters, please try again.")
		return
	}
	c.enqueue(ctx, sess, encoded)
}

func (c *Controller) enqueue(ctx context.Context, sess *session.Session, paramsJSON string) {
	job, err := c.jobs.NewJob(ctx, sess.ChatID, sess.UserID, sess.MediaKind, sess.Operation, sess.InputPaths, paramsJSON)
	if err != nil {
		c.logger.Error("enqueue job", logging.Int64(logging.FieldChatID, sess.ChatID), logging.Error(err))
		c.reply(ctx, sess.ChatID, "Queueing the job failed, please try again.")
		return
	}
	c.logger.Info("job queued",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.Int64(logging.FieldChatID, sess.ChatID),
		logging.String(logging.FieldOperation, string(job.Operation)))

	sess.Reset()
	c.saveSession(ctx, sess)
	c.reply(ctx, sess.ChatID, fmt.Sprintf("Job #%d queued: %s. The result will arrive here when it is done.",
		job.ID, job.Summary()))
}

func (c *Controller) reportStatus(ctx context.Context, chatID int64) {
	jobs, err := c.jobs.ListForChat(ctx, chatID, 5)
	if err != nil {
		c.logger.Error("list chat jobs", logging.Int64(logging.FieldChatID, chatID), logging.Error(err))
		c.reply(ctx, chatID, "Fetching your jobs failed, please try again.")
		return
	}
	if len(jobs) == 0 {
		c.reply(ctx, chatID, "You have no jobs yet. Send /start to create one.")
		return
	}
	var b strings.Builder
	b.WriteString("Your recent jobs:\n")
	for _, job := range jobs {
		fmt.Fprintf(&b, "#%d %s — %s", job.ID, job.Summary(), job.Status)
		if job.Status == queue.StatusRunning {
			fmt.Fprintf(&b, " (%.0f%%)", job.ProgressPercent)
		}
		if job.Status == queue.StatusFailed && job.ErrorMessage != "" {
			fmt.Fprintf(&b, ": %s", job.ErrorMessage)
		}
		b.WriteString("\n")
	}
	c.reply(ctx, chatID, strings.TrimRight(b.String(), "\n"))
}

func (c *Controller) saveSession(ctx context.Context, sess *session.Session) {
	if err := c.sessions.Save(ctx, sess); err != nil {
		c.logger.Error("save session", logging.Int64(logging.FieldChatID, sess.ChatID), logging.Error(err))
	}
}

func (c *Controller) reply(ctx context.Context, chatID int64, text string) {
	c.replyMarkup(ctx, chatID, text, nil)
}

func (c *Controller) replyMarkup(ctx context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) {
	if _, err := c.bot.SendMessage(ctx, telegram.SendMessageRequest{ChatID: chatID, Text: text, ReplyMarkup: markup}); err != nil {
		c.logger.Error("send reply", logging.Int64(logging.FieldChatID, chatID), logging.Error(err))
	}
}

// editPrompt rewrites the active menu message in place; when that fails
// (message too old, deleted) it falls back to a fresh message.
func (c *Controller) editPrompt(ctx context.Context, sess *session.Session, text string, markup *telegram.InlineKeyboardMarkup) {
	if sess.PromptMessageID != 0 {
		err := c.bot.EditMessageText(ctx, telegram.EditMessageTextRequest{
			ChatID:      sess.ChatID,
			MessageID:   sess.PromptMessageID,
			Text:        text,
			ReplyMarkup: markup,
		})
		if err == nil {
			return
		}
		c.logger.Warn("edit prompt message", logging.Int64(logging.FieldChatID, sess.ChatID), logging.Error(err))
	}
	c.replyMarkup(ctx, sess.ChatID, text, markup)
}

func (c *Controller) answerCallback(ctx context.Context, callbackID, text string) {
	if err := c.bot.AnswerCallbackQuery(ctx, callbackID, text); err != nil {
		c.logger.Warn("answer callback", logging.Error(err))
	}
}

type attachment struct {
	fileID string
	ext    string
	size   int64
}

// attachmentFor extracts the download handle for the kind the session
// expects. Telegram photo uploads have no filename; they are always JPEG
// and the last listed size is the largest rendition.
func attachmentFor(kind jobspec.MediaKind, msg *telegram.Message) (attachment, bool) {
	if msg.Document != nil {
		return attachment{
			fileID: msg.Document.FileID,
			ext:    strings.ToLower(filepath.Ext(msg.Document.FileName)),
			size:   msg.Document.FileSize,
		}, true
	}
	switch kind {
	case jobspec.KindImage:
		if len(msg.Photo) > 0 {
			largest := msg.Photo[len(msg.Photo)-1]
			return attachment{fileID: largest.FileID, ext: ".jpg", size: largest.FileSize}, true
		}
	case jobspec.KindVideo:
		if msg.Video != nil {
			ext := strings.ToLower(filepath.Ext(msg.Video.FileName))
			if ext == "" {
				ext = ".mp4"
			}
			return attachment{fileID: msg.Video.FileID, ext: ext, size: msg.Video.FileSize}, true
		}
	}
	return attachment{}, false
}
