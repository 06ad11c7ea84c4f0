// Package telegram is a minimal Telegram Bot API client covering the methods
// the bot needs: long polling, messaging, inline keyboards, and file
// transfer. Transient HTTP failures retry through go-retryablehttp.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const defaultBaseURL = "https://api.telegram.org"

// APIError is a non-ok Bot API response.
type APIError struct {
	Method      string
	Code        int
	Description string
	// RetryAfter is the server-requested backoff in seconds when rate
	// limited, zero otherwise.
	RetryAfter int
}

func (e *APIError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("telegram %s: %d %s (retry after %ds)", e.Method, e.Code, e.Description, e.RetryAfter)
	}
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint (tests, self-hosted bot API).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http.HTTPClient = client
		}
	}
}

// WithRequestTimeout bounds non-polling calls.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.requestTimeout = timeout
		}
	}
}

// Client talks to the Telegram Bot API.
type Client struct {
	token          string
	baseURL        string
	requestTimeout time.Duration
	http           *retryablehttp.Client
}

// New constructs a client for the given bot token.
func New(token string, opts ...Option) (*Client, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("telegram bot token required")
	}

	retry := retryablehttp.NewClient()
	retry.RetryMax = 3
	retry.RetryWaitMin = 500 * time.Millisecond
	retry.RetryWaitMax = 5 * time.Second
	retry.Logger = nil

	client := &Client{
		token:          token,
		baseURL:        defaultBaseURL,
		requestTimeout: 30 * time.Second,
		http:           retry,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// call posts a JSON payload to a Bot API method and decodes the result.
func (c *Client) call(ctx context.Context, method string, payload any, result any) error {
	var body []byte
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("telegram %s: encode request: %w", method, err)
		}
		body = encoded
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), body)
	if err != nil {
		return fmt.Errorf("telegram %s: build request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, method, result)
}

func (c *Client) do(req *retryablehttp.Request, method string, result any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("telegram %s: decode response: %w", method, err)
	}
	if !envelope.OK {
		apiErr := &APIError{Method: method, Code: envelope.ErrorCode, Description: envelope.Description}
		if envelope.Parameters != nil {
			apiErr.RetryAfter = envelope.Parameters.RetryAfter
		}
		return apiErr
	}
	if result != nil {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("telegram %s: decode result: %w", method, err)
		}
	}
	return nil
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
}

// GetMe returns the bot's own account, confirming the token works.
func (c *Client) GetMe(ctx context.Context) (User, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()
	var user User
	err := c.call(ctx, "getMe", nil, &user)
	return user, err
}

// GetUpdates long-polls for updates after offset. The HTTP deadline extends
// past the poll window so the server can respond at the timeout boundary.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeoutSeconds int) ([]Update, error) {
	pollCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSeconds)*time.Second+c.requestTimeout)
	defer cancel()

	payload := map[string]any{
		"offset":          offset,
		"timeout":         timeoutSeconds,
		"allowed_updates": []string{"message", "callback_query"},
	}
	var updates []Update
	err := c.call(pollCtx, "getUpdates", payload, &updates)
	return updates, err
}

// SendMessage sends a text message, optionally with an inline keyboard.
func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (Message, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()
	var message Message
	err := c.call(ctx, "sendMessage", req, &message)
	return message, err
}

// EditMessageText rewrites a previously sent message, replacing its keyboard.
func (c *Client) EditMessageText(ctx context.Context, req EditMessageTextRequest) error {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()
	return c.call(ctx, "editMessageText", req, nil)
}

// AnswerCallbackQuery acknowledges a button press so the client stops its
// loading spinner.
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID, text string) error {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()
	payload := map[string]any{"callback_query_id": callbackID}
	if text != "" {
		payload["text"] = text
	}
	return c.call(ctx, "answerCallbackQuery", payload, nil)
}

// SendChatAction shows a transient "uploading..." style indicator.
func (c *Client) SendChatAction(ctx context.Context, chatID int64, action string) error {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()
	return c.call(ctx, "sendChatAction", map[string]any{"chat_id": chatID, "action": action}, nil)
}

// SetMyCommands publishes the bot's command menu.
func (c *Client) SetMyCommands(ctx context.Context, commands []BotCommand) error {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()
	return c.call(ctx, "setMyCommands", map[string]any{"commands": commands}, nil)
}

// GetFile resolves a file ID into a download path.
func (c *Client) GetFile(ctx context.Context, fileID string) (File, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()
	var file File
	err := c.call(ctx, "getFile", map[string]any{"file_id": fileID}, &file)
	return file, err
}

// DownloadFile fetches a file by the path GetFile returned and writes it to
// destPath.
func (c *Client) DownloadFile(ctx context.Context, filePath, destPath string) error {
	url := fmt.Sprintf("%s/file/bot%s/%s", c.baseURL, c.token, filePath)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("telegram download: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("telegram download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &APIError{Method: "download", Code: resp.StatusCode, Description: resp.Status}
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("telegram download: create %s: %w", destPath, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("telegram download: write %s: %w", destPath, err)
	}
	return out.Sync()
}

// SendDocument uploads a local file as a document attachment. The multipart
// body is buffered so the retry layer can replay it.
func (c *Client) SendDocument(ctx context.Context, chatID int64, path, caption string) (Message, error) {
	file, err := os.Open(path)
	if err != nil {
		return Message{}, fmt.Errorf("telegram sendDocument: open %s: %w", path, err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("chat_id", strconv.FormatInt(chatID, 10)); err != nil {
		return Message{}, fmt.Errorf("telegram sendDocument: %w", err)
	}
	if caption != "" {
		if err := writer.WriteField("caption", caption); err != nil {
			return Message{}, fmt.Errorf("telegram sendDocument: %w", err)
		}
	}
	part, err := writer.CreateFormFile("document", filepath.Base(path))
	if err != nil {
		return Message{}, fmt.Errorf("telegram sendDocument: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return Message{}, fmt.Errorf("telegram sendDocument: read %s: %w", path, err)
	}
	if err := writer.Close(); err != nil {
		return Message{}, fmt.Errorf("telegram sendDocument: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("sendDocument"), buf.Bytes())
	if err != nil {
		return Message{}, fmt.Errorf("telegram sendDocument: build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var message Message
	err = c.do(req, "sendDocument", &message)
	return message, err
}
