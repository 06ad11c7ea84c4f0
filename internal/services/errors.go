package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

// chatSafePatterns maps substrings of internal errors to replies that reveal
// nothing about the host. Checked before the marker fallback.
var chatSafePatterns = map[string]string{
	"no space left":   "the server is out of disk space, try a smaller file",
	"file too large":  "the file is too large",
	"context dead":    "processing was cancelled",
	"signal: killed":  "processing was interrupted",
	"unsupported":     "this format is not supported",
	"encrypted":       "this file is password protected and cannot be processed",
	"corrupt":         "this file appears to be damaged",
	"moov atom":       "this video file appears to be damaged or incomplete",
	"invalid data":    "this file could not be read as the expected media type",
	"executable file": "a required tool is missing on the server",
}

// ChatMessage converts an internal processing error into text safe to send
// back to the chat. Validation problems keep their detail so the user can fix
// the input; everything else collapses to a category phrase while the full
// error stays in the server logs.
func ChatMessage(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, ErrValidation) {
		return stripMarkerPrefix(err.Error(), ErrValidation)
	}

	lower := strings.ToLower(err.Error())
	for pattern, safe := range chatSafePatterns {
		if strings.Contains(lower, pattern) {
			return safe
		}
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return "the uploaded file could not be found anymore, please upload it again"
	case errors.Is(err, ErrTimeout):
		return "processing took too long and was stopped"
	case errors.Is(err, ErrConfiguration):
		return "the bot is misconfigured, the operator has been notified"
	case errors.Is(err, ErrExternalTool):
		return "a processing tool failed on this file"
	default:
		return "processing failed, please try again later"
	}
}

func stripMarkerPrefix(msg string, marker error) string {
	prefix := marker.Error() + ": "
	if strings.HasPrefix(msg, prefix) {
		return strings.TrimPrefix(msg, prefix)
	}
	return msg
}
