package telegram_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mediabot/internal/telegram"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *telegram.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := telegram.New("123:abc",
		telegram.WithBaseURL(server.URL),
		telegram.WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("telegram.New: %v", err)
	}
	return client
}

func TestGetUpdatesSendsOffsetAndTimeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bot123:abc/getUpdates" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if payload["offset"] != float64(42) || payload["timeout"] != float64(50) {
			t.Errorf("payload = %v", payload)
		}
		fmt.Fprint(w, `{"ok":true,"result":[{"update_id":43,"message":{"message_id":7,"chat":{"id":99,"type":"private"},"text":"hi"}}]}`)
	})

	updates, err := client.GetUpdates(context.Background(), 42, 50)
	if err != nil {
		t.Fatalf("GetUpdates: %v", err)
	}
	if len(updates) != 1 || updates[0].UpdateID != 43 {
		t.Fatalf("updates = %+v", updates)
	}
	if updates[0].Message == nil || updates[0].Message.Chat.ID != 99 {
		t.Fatalf("message = %+v", updates[0].Message)
	}
}

func TestSendMessageDecodesResult(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req telegram.SendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if req.ChatID != 5 || req.Text != "hello" {
			t.Errorf("request = %+v", req)
		}
		if req.ReplyMarkup == nil || req.ReplyMarkup.InlineKeyboard[0][0].CallbackData != "kind:image" {
			t.Errorf("markup = %+v", req.ReplyMarkup)
		}
		fmt.Fprint(w, `{"ok":true,"result":{"message_id":11,"chat":{"id":5,"type":"private"}}}`)
	})

	markup := &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{
			{{Text: "Image", CallbackData: "kind:image"}},
		},
	}
	message, err := client.SendMessage(context.Background(), telegram.SendMessageRequest{
		ChatID: 5, Text: "hello", ReplyMarkup: markup,
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if message.MessageID != 11 {
		t.Fatalf("message = %+v", message)
	}
}

func TestAPIErrorSurfacesRetryAfter(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"ok":false,"error_code":429,"description":"Too Many Requests","parameters":{"retry_after":17}}`)
	})

	_, err := client.SendMessage(context.Background(), telegram.SendMessageRequest{ChatID: 1, Text: "x"})
	var apiErr *telegram.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %T %v, want *APIError", err, err)
	}
	if apiErr.Code != 429 || apiErr.RetryAfter != 17 {
		t.Fatalf("apiErr = %+v", apiErr)
	}
	if !strings.Contains(apiErr.Error(), "retry after 17s") {
		t.Fatalf("error text = %s", apiErr.Error())
	}
}

func TestSendDocumentUploadsMultipart(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("chat_id"); got != "7" {
			t.Errorf("chat_id = %s", got)
		}
		if got := r.FormValue("caption"); got != "image rotate" {
			t.Errorf("caption = %s", got)
		}
		file, header, err := r.FormFile("document")
		if err != nil {
			t.Errorf("form file: %v", err)
		} else {
			file.Close()
			if header.Filename != "out.png" {
				t.Errorf("filename = %s", header.Filename)
			}
		}
		fmt.Fprint(w, `{"ok":true,"result":{"message_id":3,"chat":{"id":7,"type":"private"}}}`)
	})

	path := filepath.Join(t.TempDir(), "out.png")
	if err := os.WriteFile(path, []byte("png-bytes"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	message, err := client.SendDocument(context.Background(), 7, path, "image rotate")
	if err != nil {
		t.Fatalf("SendDocument: %v", err)
	}
	if message.MessageID != 3 {
		t.Fatalf("message = %+v", message)
	}
}

func TestGetFileAndDownload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getFile"):
			fmt.Fprint(w, `{"ok":true,"result":{"file_id":"f1","file_size":9,"file_path":"documents/file_1.png"}}`)
		case r.URL.Path == "/file/bot123:abc/documents/file_1.png":
			fmt.Fprint(w, "file-body")
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	})

	file, err := client.GetFile(context.Background(), "f1")
	if err != nil {
		t.Fatalf("GetFile: %v", err)
	}
	if file.FilePath != "documents/file_1.png" {
		t.Fatalf("file = %+v", file)
	}

	dest := filepath.Join(t.TempDir(), "in.png")
	if err := client.DownloadFile(context.Background(), file.FilePath, dest); err != nil {
		t.Fatalf("DownloadFile: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read download: %v", err)
	}
	if string(data) != "file-body" {
		t.Fatalf("downloaded = %q", data)
	}
}

func TestNewRequiresToken(t *testing.T) {
	if _, err := telegram.New(" "); err == nil {
		t.Fatal("expected error for empty token")
	}
}
