package image

import (
	"image"
	"image/draw"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"mediabot/internal/jobspec"
	"mediabot/internal/media/captionbox"
	"mediabot/internal/processor"
	"mediabot/internal/services"
)

// caption composites a semi-transparent box over the image and draws the
// caption text inside it, using the geometry rules in media/captionbox.
func (p *Processor) caption(req processor.Request) (string, error) {
	params, err := jobspec.Decode[jobspec.CaptionParams](req.ParamsJSON)
	if err != nil {
		return "", err
	}
	img, err := loadImage(req.InputPaths[0])
	if err != nil {
		return "", err
	}
	canvas := imaging.Clone(img)

	captionCfg := p.cfg.Caption
	face, err := p.fonts.Face(captionCfg.FontName, float64(captionCfg.FontSize))
	if err != nil {
		return "", err
	}

	lines := captionbox.SplitLines(params.Text)
	metrics := captionbox.Measure(face, lines)

	spec, err := captionbox.SpecFromBox(captionCfg.Box, captionCfg.Padding, captionCfg.Position)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "image-processor", "caption", "invalid caption box configuration", err)
	}
	bounds := canvas.Bounds()
	layout, err := captionbox.Resolve(spec, bounds.Dx(), bounds.Dy(), metrics)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "image-processor", "caption", err.Error(), err)
	}

	boxColor, err := captionbox.ParseColor(captionCfg.BoxColor)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "image-processor", "caption", "invalid box color", err)
	}
	fontColor, err := captionbox.ParseColor(captionCfg.FontColor)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "image-processor", "caption", "invalid font color", err)
	}

	draw.Draw(canvas, layout.Box,
		image.NewUniform(captionbox.WithOpacity(boxColor, captionCfg.BoxOpacity)),
		image.Point{}, draw.Over)

	drawer := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(fontColor),
		Face: face,
	}
	for i, line := range lines {
		drawer.Dot = fixed.P(layout.LineLefts[i], layout.Baseline(i))
		drawer.DrawString(line)
	}

	output := processor.OutputPath(req.OutputDir, req.ChatID, ".png")
	if err := imaging.Save(canvas, output); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "image-processor", "caption", "save captioned image", err)
	}
	return output, nil
}
