package video

import (
	"context"
	"fmt"
	"strings"

	"mediabot/internal/jobspec"
	"mediabot/internal/media/captionbox"
	"mediabot/internal/media/container"
	"mediabot/internal/processor"
	"mediabot/internal/services"
)

// caption burns a timed caption into the video: a drawbox for the backing
// rectangle and one drawtext per line, both gated on the start/end window.
// Geometry comes from media/captionbox resolved against the probed frame
// size, so image and video captions share the same placement rules.
func (p *Processor) caption(ctx context.Context, req processor.Request, progress processor.Progress) ([]string, error) {
	params, err := jobspec.Decode[jobspec.VideoCaptionParams](req.ParamsJSON)
	if err != nil {
		return nil, err
	}
	input := req.InputPaths[0]
	probe, err := p.probe.Inspect(ctx, input)
	if err != nil {
		return nil, err
	}
	video, ok := probe.FirstVideo()
	if !ok {
		return nil, noVideoStream(input, "caption")
	}

	captionCfg := p.cfg.Caption
	fontPath, err := p.fonts.Path(captionCfg.FontName)
	if err != nil {
		return nil, err
	}
	face, err := p.fonts.Face(captionCfg.FontName, float64(captionCfg.FontSize))
	if err != nil {
		return nil, err
	}

	lines := captionbox.SplitLines(params.Text)
	metrics := captionbox.Measure(face, lines)
	spec, err := captionbox.SpecFromBox(captionCfg.Box, captionCfg.Padding, captionCfg.Position)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "video-processor", "caption", "invalid caption box configuration", err)
	}
	layout, err := captionbox.Resolve(spec, video.Width, video.Height, metrics)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "video-processor", "caption", err.Error(), err)
	}

	enable := fmt.Sprintf("between(t\\,%s\\,%s)", formatSeconds(params.Start), formatSeconds(params.End))

	filters := []string{fmt.Sprintf(
		"drawbox=x=%d:y=%d:w=%d:h=%d:color=%s@%s:t=fill:enable='%s'",
		layout.Box.Min.X, layout.Box.Min.Y, layout.Box.Dx(), layout.Box.Dy(),
		captionCfg.BoxColor, formatOpacity(captionCfg.BoxOpacity), enable,
	)}
	for i, line := range lines {
		filters = append(filters, fmt.Sprintf(
			"drawtext=fontfile=%s:text='%s':fontcolor=%s:fontsize=%d:x=%d:y=%d:enable='%s'",
			escapeFilterValue(fontPath), escapeDrawtext(line),
			captionCfg.FontColor, captionCfg.FontSize,
			layout.LineLefts[i], layout.TextTop+i*layout.LineHeight, enable,
		))
	}

	target := container.ForPath(input)
	output := processor.OutputPath(req.OutputDir, req.ChatID, container.Extension(target.Name))

	args := []string{"-i", input, "-vf", strings.Join(filters, ",")}
	args = append(args, transcodeArgs(probe, target)...)
	args = append(args, output)

	if err := p.run(ctx, args, probe.DurationSeconds(), progress, "adding caption"); err != nil {
		return nil, err
	}
	return []string{output}, nil
}

// escapeDrawtext escapes the characters drawtext treats specially inside a
// single-quoted text value.
func escapeDrawtext(text string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`,
		`'`, `\\\'`,
		`:`, `\:`,
		`%`, `\%`,
	)
	return replacer.Replace(text)
}

// escapeFilterValue escapes filtergraph separators in a literal value such as
// a font path.
func escapeFilterValue(value string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`,
		`:`, `\:`,
		`,`, `\,`,
		`'`, `\'`,
	)
	return replacer.Replace(value)
}

// formatOpacity renders the box opacity for the drawbox color expression.
func formatOpacity(opacity float64) string {
	if opacity < 0 {
		opacity = 0
	}
	if opacity > 1 {
		opacity = 1
	}
	return fmt.Sprintf("%.2f", opacity)
}
