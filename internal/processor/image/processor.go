// Package image implements the image operations: rotate, crop, stack,
// convert, caption, and background removal. Pixel work is delegated to
// disintegration/imaging; WebP decoding to golang.org/x/image/webp.
package image

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/webp"

	"mediabot/internal/config"
	"mediabot/internal/jobspec"
	"mediabot/internal/logging"
	"mediabot/internal/media/captionbox"
	"mediabot/internal/media/fontcatalog"
	"mediabot/internal/processor"
	"mediabot/internal/services"
	"mediabot/internal/services/rembg"
)

// BackgroundRemover strips the background from an image file.
type BackgroundRemover interface {
	Remove(ctx context.Context, inputPath, outputPath string) error
}

// Processor handles all image-kind jobs.
type Processor struct {
	cfg    *config.Config
	fonts  *fontcatalog.Catalog
	rembg  BackgroundRemover
	logger *slog.Logger
}

var _ processor.Processor = (*Processor)(nil)

// New constructs the image processor. rembgClient may be nil when the rembg
// binary is unavailable; background-removal jobs then fail with a
// configuration error instead of at exec time.
func New(cfg *config.Config, fonts *fontcatalog.Catalog, rembgClient *rembg.Client, logger *slog.Logger) *Processor {
	p := &Processor{
		cfg:    cfg,
		fonts:  fonts,
		logger: logging.NewComponentLogger(logger, "image-processor"),
	}
	if rembgClient != nil {
		p.rembg = rembgClient
	}
	return p
}

// Kind reports the media kind this processor owns.
func (p *Processor) Kind() jobspec.MediaKind { return jobspec.KindImage }

// Process dispatches one image job.
func (p *Processor) Process(ctx context.Context, req processor.Request, progress processor.Progress) (processor.Result, error) {
	if len(req.InputPaths) == 0 {
		return processor.Result{}, services.Wrap(services.ErrValidation, "image-processor", string(req.Operation), "no input files", nil)
	}
	if progress != nil {
		progress(5, "processing image")
	}

	var (
		output string
		err    error
	)
	switch req.Operation {
	case jobspec.OpRotate:
		output, err = p.rotate(req)
	case jobspec.OpCrop:
		output, err = p.crop(req)
	case jobspec.OpStack:
		output, err = p.stack(req)
	case jobspec.OpConvert:
		output, err = p.convert(req)
	case jobspec.OpCaption:
		output, err = p.caption(req)
	case jobspec.OpRemoveBackground:
		output, err = p.removeBackground(ctx, req)
	default:
		err = services.Wrap(services.ErrValidation, "image-processor", string(req.Operation), "unsupported image operation", nil)
	}
	if err != nil {
		return processor.Result{}, err
	}

	if progress != nil {
		progress(100, "image ready")
	}
	p.logger.Info("image operation complete",
		logging.Int64(logging.FieldJobID, req.JobID),
		logging.String(logging.FieldOperation, string(req.Operation)),
		logging.String("output", filepath.Base(output)))
	return processor.Result{OutputPaths: []string{output}}, nil
}

func (p *Processor) rotate(req processor.Request) (string, error) {
	params, err := jobspec.Decode[jobspec.RotateParams](req.ParamsJSON)
	if err != nil {
		return "", err
	}
	img, err := loadImage(req.InputPaths[0])
	if err != nil {
		return "", err
	}

	// imaging rotates counter-clockwise for positive angles; clockwise
	// requests negate.
	angle := float64(params.Degrees)
	if params.Direction == "clockwise" {
		angle = -angle
	}
	rotated := imaging.Rotate(img, angle, color.NRGBA{})

	output := processor.OutputPath(req.OutputDir, req.ChatID, ".png")
	if err := imaging.Save(rotated, output); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "image-processor", "rotate", "save rotated image", err)
	}
	return output, nil
}

func (p *Processor) crop(req processor.Request) (string, error) {
	params, err := jobspec.Decode[jobspec.CropParams](req.ParamsJSON)
	if err != nil {
		return "", err
	}
	img, err := loadImage(req.InputPaths[0])
	if err != nil {
		return "", err
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	rect := image.Rect(
		width*params.Left/100,
		height*params.Top/100,
		width-width*params.Right/100,
		height-height*params.Bottom/100,
	)
	if rect.Dx() < 1 || rect.Dy() < 1 {
		return "", services.Wrap(services.ErrValidation, "image-processor", "crop",
			"crop removes the whole image; opposing sides must leave at least one pixel", nil)
	}
	cropped := imaging.Crop(img, rect)

	ext := strings.ToLower(filepath.Ext(req.InputPaths[0]))
	if ext == "" || ext == ".webp" {
		ext = ".png"
	}
	output := processor.OutputPath(req.OutputDir, req.ChatID, ext)
	if err := saveAs(cropped, output, 0); err != nil {
		return "", err
	}
	return output, nil
}

func (p *Processor) stack(req processor.Request) (string, error) {
	params, err := jobspec.Decode[jobspec.StackParams](req.ParamsJSON)
	if err != nil {
		return "", err
	}
	if len(req.InputPaths) < 2 {
		return "", services.Wrap(services.ErrValidation, "image-processor", "stack", "stacking needs at least two images", nil)
	}

	images := make([]*image.NRGBA, 0, len(req.InputPaths))
	for _, path := range req.InputPaths {
		img, err := loadImage(path)
		if err != nil {
			return "", err
		}
		images = append(images, imaging.Clone(img))
	}

	fill, err := paddingFill(params.PaddingColor)
	if err != nil {
		return "", err
	}
	canvas := composeStack(images, params.Direction, params.Padding, fill)

	output := processor.OutputPath(req.OutputDir, req.ChatID, ".png")
	if err := imaging.Save(canvas, output); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "image-processor", "stack", "save stacked image", err)
	}
	return output, nil
}

// paddingFill resolves the stack padding color; the default is opaque white
// so JPEG output shows white bands rather than black ones.
func paddingFill(name string) (color.NRGBA, error) {
	if strings.TrimSpace(name) == "" {
		return color.NRGBA{R: 255, G: 255, B: 255, A: 255}, nil
	}
	fill, err := captionbox.ParseColor(name)
	if err != nil {
		return color.NRGBA{}, services.Wrap(services.ErrValidation, "image-processor", "stack",
			fmt.Sprintf("%q is not a color name or #hex value", name), err)
	}
	return fill, nil
}

// composeStack lays the images out along the main axis with padding between
// them, centering each on the cross axis.
func composeStack(images []*image.NRGBA, direction string, padding int, fill color.NRGBA) *image.NRGBA {
	mainTotal, crossMax := 0, 0
	for _, img := range images {
		b := img.Bounds()
		if direction == "vertical" {
			mainTotal += b.Dy()
			crossMax = max(crossMax, b.Dx())
		} else {
			mainTotal += b.Dx()
			crossMax = max(crossMax, b.Dy())
		}
	}
	mainTotal += padding * (len(images) - 1)

	var canvas *image.NRGBA
	if direction == "vertical" {
		canvas = imaging.New(crossMax, mainTotal, fill)
	} else {
		canvas = imaging.New(mainTotal, crossMax, fill)
	}

	offset := 0
	for _, img := range images {
		b := img.Bounds()
		if direction == "vertical" {
			canvas = imaging.Paste(canvas, img, image.Pt((crossMax-b.Dx())/2, offset))
			offset += b.Dy() + padding
		} else {
			canvas = imaging.Paste(canvas, img, image.Pt(offset, (crossMax-b.Dy())/2))
			offset += b.Dx() + padding
		}
	}
	return canvas
}

func (p *Processor) convert(req processor.Request) (string, error) {
	params, err := jobspec.Decode[jobspec.ConvertParams](req.ParamsJSON)
	if err != nil {
		return "", err
	}
	img, err := loadImage(req.InputPaths[0])
	if err != nil {
		return "", err
	}

	ext := ".png"
	if params.Format == "jpeg" {
		ext = ".jpg"
		// JPEG has no alpha channel; flatten onto white.
		b := img.Bounds()
		background := imaging.New(b.Dx(), b.Dy(), color.White)
		img = imaging.Overlay(background, img, image.Pt(0, 0), 1.0)
	}

	output := processor.OutputPath(req.OutputDir, req.ChatID, ext)
	if err := saveAs(img, output, params.Quality); err != nil {
		return "", err
	}
	return output, nil
}

func (p *Processor) removeBackground(ctx context.Context, req processor.Request) (string, error) {
	if p.rembg == nil {
		return "", services.Wrap(services.ErrConfiguration, "image-processor", "remove_background",
			"background removal requires the rembg tool, which is not installed", nil)
	}
	output := processor.OutputPath(req.OutputDir, req.ChatID, ".png")
	if err := p.rembg.Remove(ctx, req.InputPaths[0], output); err != nil {
		return "", err
	}
	return output, nil
}

// loadImage decodes an image file. WebP goes through x/image/webp; everything
// else through imaging's format detection.
func loadImage(path string) (image.Image, error) {
	if strings.EqualFold(filepath.Ext(path), ".webp") {
		file, err := os.Open(path)
		if err != nil {
			return nil, services.Wrap(services.ErrNotFound, "image-processor", "decode", "open image", err)
		}
		defer file.Close()
		img, err := webp.Decode(file)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "image-processor", "decode",
				fmt.Sprintf("%s is not a valid WebP image", filepath.Base(path)), err)
		}
		return img, nil
	}
	img, err := imaging.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "image-processor", "decode",
			fmt.Sprintf("cannot decode %s", filepath.Base(path)), err)
	}
	return img, nil
}

// saveAs writes the image, applying the JPEG quality option where relevant.
func saveAs(img image.Image, path string, jpegQuality int) error {
	var opts []imaging.EncodeOption
	ext := strings.ToLower(filepath.Ext(path))
	if (ext == ".jpg" || ext == ".jpeg") && jpegQuality > 0 {
		opts = append(opts, imaging.JPEGQuality(jpegQuality))
	}
	if err := imaging.Save(img, path, opts...); err != nil {
		return services.Wrap(services.ErrExternalTool, "image-processor", "encode", "save image", err)
	}
	return nil
}
