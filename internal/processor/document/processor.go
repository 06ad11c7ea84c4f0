// Package document implements the PDF operations: merge and split through
// pdfcpu, compression through Ghostscript, and OCR through go-fitz page
// rasterization plus Tesseract recognition.
package document

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"mediabot/internal/config"
	"mediabot/internal/jobspec"
	"mediabot/internal/logging"
	"mediabot/internal/processor"
	"mediabot/internal/services"
)

// PDFOps abstracts the pdfcpu file operations.
type PDFOps interface {
	Validate(inFile string) error
	PageCount(inFile string) (int, error)
	Merge(inFiles []string, outFile string) error
	Trim(inFile, outFile string, pages []string) error
}

// PageRasterizer renders PDF pages into encoded page images.
type PageRasterizer interface {
	Pages(path string, dpi float64) ([][]byte, error)
}

// TextRecognizer extracts text from page images and renders searchable PDFs.
type TextRecognizer interface {
	RecognizeImage(imageData []byte) (string, error)
	SearchablePDF(ctx context.Context, imagePath, outputBase string) (string, error)
}

// PDFCompressor rewrites a PDF at a quality level.
type PDFCompressor interface {
	Compress(ctx context.Context, inputPath, outputPath, quality string) error
}

// Option configures the processor.
type Option func(*Processor)

// WithPDFOps injects custom PDF operations (primarily for tests).
func WithPDFOps(ops PDFOps) Option {
	return func(p *Processor) {
		if ops != nil {
			p.pdf = ops
		}
	}
}

// WithRasterizer injects a custom page rasterizer (primarily for tests).
func WithRasterizer(raster PageRasterizer) Option {
	return func(p *Processor) {
		if raster != nil {
			p.raster = raster
		}
	}
}

// Processor handles all document-kind jobs.
type Processor struct {
	cfg    *config.Config
	pdf    PDFOps
	raster PageRasterizer
	ocr    TextRecognizer
	gs     PDFCompressor
	logger *slog.Logger
}

var _ processor.Processor = (*Processor)(nil)

// New constructs the document processor. ocr and gs may be nil when the
// respective binaries are unavailable; the affected operations then fail with
// a configuration error.
func New(cfg *config.Config, ocr TextRecognizer, gs PDFCompressor, logger *slog.Logger, opts ...Option) *Processor {
	p := &Processor{
		cfg:    cfg,
		pdf:    pdfcpuOps{conf: relaxedConfiguration()},
		raster: fitzRasterizer{},
		ocr:    ocr,
		gs:     gs,
		logger: logging.NewComponentLogger(logger, "document-processor"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Kind reports the media kind this processor owns.
func (p *Processor) Kind() jobspec.MediaKind { return jobspec.KindDocument }

// Process dispatches one document job. Every input is validated up front so
// encrypted or corrupt PDFs fail with a chat-safe message before any work.
func (p *Processor) Process(ctx context.Context, req processor.Request, progress processor.Progress) (processor.Result, error) {
	if len(req.InputPaths) == 0 {
		return processor.Result{}, services.Wrap(services.ErrValidation, "document-processor", string(req.Operation), "no input files", nil)
	}
	for _, input := range req.InputPaths {
		if err := p.pdf.Validate(input); err != nil {
			return processor.Result{}, services.Wrap(services.ErrValidation, "document-processor", string(req.Operation),
				fmt.Sprintf("%s is not a readable PDF (encrypted or corrupt)", filepath.Base(input)), err)
		}
	}
	if progress != nil {
		progress(5, "processing document")
	}

	var (
		outputs []string
		err     error
	)
	switch req.Operation {
	case jobspec.OpMerge:
		outputs, err = p.merge(req)
	case jobspec.OpSplit:
		outputs, err = p.split(req)
	case jobspec.OpCompress:
		outputs, err = p.compress(ctx, req)
	case jobspec.OpOCR:
		outputs, err = p.runOCR(ctx, req, progress)
	default:
		err = services.Wrap(services.ErrValidation, "document-processor", string(req.Operation), "unsupported document operation", nil)
	}
	if err != nil {
		return processor.Result{}, err
	}

	if progress != nil {
		progress(100, "document ready")
	}
	p.logger.Info("document operation complete",
		logging.Int64(logging.FieldJobID, req.JobID),
		logging.String(logging.FieldOperation, string(req.Operation)),
		logging.Int("outputs", len(outputs)))
	return processor.Result{OutputPaths: outputs}, nil
}

func (p *Processor) merge(req processor.Request) ([]string, error) {
	if len(req.InputPaths) < 2 {
		return nil, services.Wrap(services.ErrValidation, "document-processor", "merge", "merging needs at least two documents", nil)
	}
	output := filepath.Join(req.OutputDir, fmt.Sprintf("merged_%s.pdf", uuid.NewString()))
	if err := p.pdf.Merge(req.InputPaths, output); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "document-processor", "merge", "merge documents", err)
	}
	return []string{output}, nil
}

func (p *Processor) split(req processor.Request) ([]string, error) {
	params, err := jobspec.Decode[jobspec.SplitParams](req.ParamsJSON)
	if err != nil {
		return nil, err
	}
	input := req.InputPaths[0]
	count, err := p.pdf.PageCount(input)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "document-processor", "split", "count pages", err)
	}

	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	outputs := make([]string, 0, len(params.Ranges))
	for i, rng := range params.Ranges {
		start, end := rng.Start, rng.End
		if end > count {
			end = count
		}
		if start > count {
			return nil, services.Wrap(services.ErrValidation, "document-processor", "split",
				fmt.Sprintf("page range starts at %d but the document has only %d pages", start, count), nil)
		}

		output := filepath.Join(req.OutputDir, fmt.Sprintf("%s_part_%d.pdf", stem, i+1))
		if err := p.pdf.Trim(input, output, []string{fmt.Sprintf("%d-%d", start, end)}); err != nil {
			return nil, services.Wrap(services.ErrExternalTool, "document-processor", "split", "extract pages", err)
		}
		outputs = append(outputs, output)
	}
	return outputs, nil
}

func (p *Processor) compress(ctx context.Context, req processor.Request) ([]string, error) {
	params, err := jobspec.Decode[jobspec.CompressParams](req.ParamsJSON)
	if err != nil {
		return nil, err
	}
	if p.gs == nil {
		return nil, services.Wrap(services.ErrConfiguration, "document-processor", "compress",
			"compression requires Ghostscript, which is not installed", nil)
	}
	output := processor.OutputPath(req.OutputDir, req.ChatID, ".pdf")
	if err := p.gs.Compress(ctx, req.InputPaths[0], output, params.Quality); err != nil {
		return nil, err
	}
	return []string{output}, nil
}

type pdfcpuOps struct {
	conf *model.Configuration
}

func relaxedConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

func (o pdfcpuOps) Validate(inFile string) error {
	return api.ValidateFile(inFile, o.conf)
}

func (o pdfcpuOps) PageCount(inFile string) (int, error) {
	return api.PageCountFile(inFile)
}

func (o pdfcpuOps) Merge(inFiles []string, outFile string) error {
	return api.MergeCreateFile(inFiles, outFile, false, o.conf)
}

func (o pdfcpuOps) Trim(inFile, outFile string, pages []string) error {
	return api.TrimFile(inFile, outFile, pages, o.conf)
}

type fitzRasterizer struct{}

func (fitzRasterizer) Pages(path string, dpi float64) ([][]byte, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer doc.Close()

	pages := make([][]byte, 0, doc.NumPage())
	for n := 0; n < doc.NumPage(); n++ {
		png, err := doc.ImagePNG(n, dpi)
		if err != nil {
			return nil, fmt.Errorf("rasterize page %d: %w", n+1, err)
		}
		pages = append(pages, png)
	}
	return pages, nil
}
