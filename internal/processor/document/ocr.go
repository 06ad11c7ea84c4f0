package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/language"

	"mediabot/internal/jobspec"
	"mediabot/internal/processor"
	"mediabot/internal/services"
)

// runOCR rasterizes every page and recognizes its text. txt and md collect
// the recognized text; docx wraps it in a minimal OOXML package; pdf renders
// each page through tesseract's searchable-PDF mode and merges the results.
func (p *Processor) runOCR(ctx context.Context, req processor.Request, progress processor.Progress) ([]string, error) {
	params, err := jobspec.Decode[jobspec.OCRParams](req.ParamsJSON)
	if err != nil {
		return nil, err
	}
	if p.ocr == nil {
		return nil, services.Wrap(services.ErrConfiguration, "document-processor", "ocr",
			"text recognition requires Tesseract, which is not installed", nil)
	}
	if err := validateLanguage(p.cfg.OCR.Language); err != nil {
		return nil, err
	}

	input := req.InputPaths[0]
	pages, err := p.raster.Pages(input, float64(p.cfg.OCR.DPI))
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "document-processor", "ocr", "rasterize pages", err)
	}
	if len(pages) == 0 {
		return nil, services.Wrap(services.ErrValidation, "document-processor", "ocr",
			fmt.Sprintf("%s has no pages", filepath.Base(input)), nil)
	}

	if params.Format == "pdf" {
		return p.searchablePDF(ctx, req, pages, progress)
	}

	texts := make([]string, 0, len(pages))
	for i, page := range pages {
		text, err := p.ocr.RecognizeImage(page)
		if err != nil {
			return nil, err
		}
		texts = append(texts, strings.TrimSpace(text))
		if progress != nil {
			progress(5+float64(i+1)/float64(len(pages))*90, fmt.Sprintf("recognized page %d of %d", i+1, len(pages)))
		}
	}

	var (
		content string
		ext     string
	)
	switch params.Format {
	case "txt":
		content, ext = strings.Join(texts, "\n\n"), ".txt"
	case "md":
		sections := make([]string, len(texts))
		for i, text := range texts {
			sections[i] = fmt.Sprintf("## Page %d\n\n%s", i+1, text)
		}
		content, ext = strings.Join(sections, "\n\n"), ".md"
	case "docx":
		output := processor.OutputPath(req.OutputDir, req.ChatID, ".docx")
		if err := writeDocx(output, texts); err != nil {
			return nil, services.Wrap(services.ErrExternalTool, "document-processor", "ocr", "write docx", err)
		}
		return []string{output}, nil
	default:
		return nil, services.Wrap(services.ErrValidation, "document-processor", "ocr",
			fmt.Sprintf("unsupported output format %q", params.Format), nil)
	}

	output := processor.OutputPath(req.OutputDir, req.ChatID, ext)
	if err := os.WriteFile(output, []byte(content), 0o644); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "document-processor", "ocr", "write recognized text", err)
	}
	return []string{output}, nil
}

// searchablePDF writes each page image to the scratch dir, renders it through
// tesseract's PDF mode, and merges the per-page PDFs.
func (p *Processor) searchablePDF(ctx context.Context, req processor.Request, pages [][]byte, progress processor.Progress) ([]string, error) {
	parts := make([]string, 0, len(pages))
	for i, page := range pages {
		imagePath := filepath.Join(req.WorkDir, fmt.Sprintf("page_%d.png", i+1))
		if err := os.WriteFile(imagePath, page, 0o644); err != nil {
			return nil, services.Wrap(services.ErrExternalTool, "document-processor", "ocr", "write page image", err)
		}
		part, err := p.ocr.SearchablePDF(ctx, imagePath, filepath.Join(req.WorkDir, fmt.Sprintf("page_%d", i+1)))
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
		if progress != nil {
			progress(5+float64(i+1)/float64(len(pages))*90, fmt.Sprintf("rendered page %d of %d", i+1, len(pages)))
		}
	}

	output := processor.OutputPath(req.OutputDir, req.ChatID, ".pdf")
	if len(parts) == 1 {
		if err := os.Rename(parts[0], output); err != nil {
			return nil, services.Wrap(services.ErrExternalTool, "document-processor", "ocr", "move searchable pdf", err)
		}
		return []string{output}, nil
	}
	if err := p.pdf.Merge(parts, output); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "document-processor", "ocr", "merge searchable pages", err)
	}
	return []string{output}, nil
}

// validateLanguage checks each + separated tesseract language code against
// ISO 639.
func validateLanguage(lang string) error {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return services.Wrap(services.ErrConfiguration, "document-processor", "ocr", "ocr language not configured", nil)
	}
	for _, code := range strings.Split(lang, "+") {
		if _, err := language.ParseBase(strings.TrimSpace(code)); err != nil {
			return services.Wrap(services.ErrConfiguration, "document-processor", "ocr",
				fmt.Sprintf("invalid ocr language %q", code), err)
		}
	}
	return nil
}
