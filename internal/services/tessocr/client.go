// Package tessocr wraps Tesseract for text recognition: the gosseract
// bindings for plain text extraction and the tesseract CLI for searchable
// PDF rendering.
package tessocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"

	"mediabot/internal/services"
)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) ([]byte, error)
}

// Option configures the engine.
type Option func(*Engine)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(e *Engine) {
		if exec != nil {
			e.exec = exec
		}
	}
}

// WithTimeout bounds each CLI invocation. Zero disables the bound.
func WithTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		e.timeout = timeout
	}
}

// Engine performs OCR with a fixed language and rasterization DPI.
type Engine struct {
	binary   string
	language string
	dpi      int
	timeout  time.Duration
	exec     Executor
}

// New constructs an OCR engine. binary is the tesseract CLI used for
// searchable PDF output; plain text recognition goes through the library
// bindings instead.
func New(binary, language string, dpi int, opts ...Option) (*Engine, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("tesseract binary required")
	}
	language = strings.TrimSpace(language)
	if language == "" {
		language = "eng"
	}
	if dpi <= 0 {
		dpi = 300
	}
	engine := &Engine{
		binary:   binary,
		language: language,
		dpi:      dpi,
		timeout:  10 * time.Minute,
		exec:     commandExecutor{},
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine, nil
}

// Language returns the configured recognition language.
func (e *Engine) Language() string {
	return e.language
}

// DPI returns the rasterization density used for page images.
func (e *Engine) DPI() int {
	return e.dpi
}

// RecognizeImage extracts text from an encoded page image.
func (e *Engine) RecognizeImage(imageData []byte) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(e.language); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "tessocr", "recognize",
			fmt.Sprintf("language %q not available", e.language), err)
	}
	if err := client.SetImageFromBytes(imageData); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "tessocr", "recognize", "load page image", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "tessocr", "recognize", "text recognition failed", err)
	}
	return text, nil
}

// SearchablePDF runs the tesseract CLI over a page image and writes a
// single-page PDF with an invisible text layer. outputBase is the output path
// without the .pdf extension, matching tesseract's outputbase argument.
func (e *Engine) SearchablePDF(ctx context.Context, imagePath, outputBase string) (string, error) {
	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	args := []string{
		imagePath,
		outputBase,
		"-l", e.language,
		"--dpi", strconv.Itoa(e.dpi),
		"pdf",
	}
	output, err := e.exec.Run(runCtx, e.binary, args)
	if err != nil {
		detail := strings.TrimSpace(string(output))
		if detail != "" {
			err = fmt.Errorf("%w: %s", err, detail)
		}
		return "", services.Wrap(services.ErrExternalTool, "tessocr", "searchable-pdf", "tesseract failed", err)
	}

	pdfPath := outputBase + ".pdf"
	if _, err := os.Stat(pdfPath); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "tessocr", "searchable-pdf", "tesseract produced no output file", err)
	}
	return pdfPath, nil
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	return cmd.CombinedOutput()
}
