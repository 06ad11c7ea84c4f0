// Package video implements the video operations around ffmpeg and ffprobe:
// resolution and frame-rate changes, merge, trim, audio extraction, and
// timed captions. Container and codec decisions live in media/container.
package video

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"mediabot/internal/config"
	"mediabot/internal/jobspec"
	"mediabot/internal/logging"
	"mediabot/internal/media/container"
	"mediabot/internal/media/ffprobe"
	"mediabot/internal/media/fontcatalog"
	"mediabot/internal/processor"
	"mediabot/internal/services"
	"mediabot/internal/services/ffmpeg"
)

// Runner executes ffmpeg with progress reporting.
type Runner interface {
	Run(ctx context.Context, args []string, durationSeconds float64, progress func(ffmpeg.ProgressUpdate)) error
}

// Prober inspects a media file's streams and format.
type Prober interface {
	Inspect(ctx context.Context, path string) (ffprobe.Result, error)
}

// BinaryProber probes through the configured ffprobe binary.
type BinaryProber struct {
	Binary string
}

// Inspect satisfies Prober.
func (p BinaryProber) Inspect(ctx context.Context, path string) (ffprobe.Result, error) {
	return ffprobe.Inspect(ctx, p.Binary, path)
}

// Processor handles all video-kind jobs.
type Processor struct {
	cfg    *config.Config
	ffmpeg Runner
	probe  Prober
	fonts  *fontcatalog.Catalog
	logger *slog.Logger
}

var _ processor.Processor = (*Processor)(nil)

// New constructs the video processor.
func New(cfg *config.Config, runner Runner, prober Prober, fonts *fontcatalog.Catalog, logger *slog.Logger) *Processor {
	return &Processor{
		cfg:    cfg,
		ffmpeg: runner,
		probe:  prober,
		fonts:  fonts,
		logger: logging.NewComponentLogger(logger, "video-processor"),
	}
}

// Kind reports the media kind this processor owns.
func (p *Processor) Kind() jobspec.MediaKind { return jobspec.KindVideo }

// Process dispatches one video job.
func (p *Processor) Process(ctx context.Context, req processor.Request, progress processor.Progress) (processor.Result, error) {
	if len(req.InputPaths) == 0 {
		return processor.Result{}, services.Wrap(services.ErrValidation, "video-processor", string(req.Operation), "no input files", nil)
	}

	var (
		outputs []string
		err     error
	)
	switch req.Operation {
	case jobspec.OpResolution:
		outputs, err = p.resolution(ctx, req, progress)
	case jobspec.OpFrameRate:
		outputs, err = p.frameRate(ctx, req, progress)
	case jobspec.OpMerge:
		outputs, err = p.merge(ctx, req, progress)
	case jobspec.OpTrim:
		outputs, err = p.trim(ctx, req, progress)
	case jobspec.OpExtractAudio:
		outputs, err = p.extractAudio(ctx, req, progress)
	case jobspec.OpCaption:
		outputs, err = p.caption(ctx, req, progress)
	default:
		err = services.Wrap(services.ErrValidation, "video-processor", string(req.Operation), "unsupported video operation", nil)
	}
	if err != nil {
		return processor.Result{}, err
	}

	p.logger.Info("video operation complete",
		logging.Int64(logging.FieldJobID, req.JobID),
		logging.String(logging.FieldOperation, string(req.Operation)),
		logging.Int("outputs", len(outputs)))
	return processor.Result{OutputPaths: outputs}, nil
}

func (p *Processor) resolution(ctx context.Context, req processor.Request, progress processor.Progress) ([]string, error) {
	params, err := jobspec.Decode[jobspec.ResolutionParams](req.ParamsJSON)
	if err != nil {
		return nil, err
	}
	input := req.InputPaths[0]
	probe, err := p.probe.Inspect(ctx, input)
	if err != nil {
		return nil, err
	}
	if _, ok := probe.FirstVideo(); !ok {
		return nil, noVideoStream(input, "resolution")
	}

	target := container.ForPath(input)
	output := processor.OutputPath(req.OutputDir, req.ChatID, container.Extension(target.Name))

	args := []string{"-i", input, "-vf", fmt.Sprintf("scale=%d:%d", params.Width, params.Height)}
	args = append(args, transcodeArgs(probe, target)...)
	args = append(args, output)

	if err := p.run(ctx, args, probe.DurationSeconds(), progress, "changing resolution"); err != nil {
		return nil, err
	}
	return []string{output}, nil
}

func (p *Processor) frameRate(ctx context.Context, req processor.Request, progress processor.Progress) ([]string, error) {
	params, err := jobspec.Decode[jobspec.FrameRateParams](req.ParamsJSON)
	if err != nil {
		return nil, err
	}
	input := req.InputPaths[0]
	probe, err := p.probe.Inspect(ctx, input)
	if err != nil {
		return nil, err
	}
	if _, ok := probe.FirstVideo(); !ok {
		return nil, noVideoStream(input, "framerate")
	}

	target := container.ForPath(input)
	output := processor.OutputPath(req.OutputDir, req.ChatID, container.Extension(target.Name))

	// The fps filter with round=up picks frames the same way for every
	// container; -r leaves the rounding choice to the muxer.
	args := []string{"-i", input, "-vf", fmt.Sprintf("fps=%d:round=up", params.FPS)}
	args = append(args, transcodeArgs(probe, target)...)
	args = append(args, output)

	if err := p.run(ctx, args, probe.DurationSeconds(), progress, "changing frame rate"); err != nil {
		return nil, err
	}
	return []string{output}, nil
}

func (p *Processor) trim(ctx context.Context, req processor.Request, progress processor.Progress) ([]string, error) {
	params, err := jobspec.Decode[jobspec.TrimParams](req.ParamsJSON)
	if err != nil {
		return nil, err
	}
	input := req.InputPaths[0]
	probe, err := p.probe.Inspect(ctx, input)
	if err != nil {
		return nil, err
	}

	target := container.ForPath(input)
	copyStreams := container.CanCopyTrim(probe.ContainerName(), target)
	ext := container.Extension(target.Name)
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))

	outputs := make([]string, 0, len(params.Intervals))
	for i, interval := range params.Intervals {
		output := filepath.Join(req.OutputDir, fmt.Sprintf("%s_part_%d%s", stem, i+1, ext))

		args := []string{
			"-i", input,
			"-ss", formatSeconds(interval.Start),
			"-to", formatSeconds(interval.End),
		}
		if copyStreams {
			args = append(args, "-c", "copy")
		} else {
			args = append(args, transcodeArgs(probe, target)...)
		}
		args = append(args, output)

		message := fmt.Sprintf("trimming part %d of %d", i+1, len(params.Intervals))
		part := i
		total := len(params.Intervals)
		err := p.run(ctx, args, interval.End-interval.Start, scaleProgress(progress, part, total), message)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, output)
	}
	return outputs, nil
}

func (p *Processor) extractAudio(ctx context.Context, req processor.Request, progress processor.Progress) ([]string, error) {
	params, err := jobspec.Decode[jobspec.ExtractAudioParams](req.ParamsJSON)
	if err != nil {
		return nil, err
	}
	input := req.InputPaths[0]
	probe, err := p.probe.Inspect(ctx, input)
	if err != nil {
		return nil, err
	}
	audio, ok := probe.FirstAudio()
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "video-processor", "extract_audio",
			fmt.Sprintf("%s has no audio stream", filepath.Base(input)), nil)
	}

	target := container.AudioForPath("out." + params.Format)
	plan := container.PlanAudioExtract(audio.CodecName, target)

	output := processor.OutputPath(req.OutputDir, req.ChatID, container.Extension(target.Name))
	args := []string{"-i", input, "-vn"}
	if plan.Copy {
		args = append(args, "-c:a", "copy")
	} else {
		args = append(args, "-c:a", plan.Encoder)
	}
	args = append(args, output)

	if err := p.run(ctx, args, probe.DurationSeconds(), progress, "extracting audio"); err != nil {
		return nil, err
	}
	return []string{output}, nil
}

// transcodeArgs builds the encoder arguments for re-encoding into the target
// container: canonical video encoder, audio per the copy-vs-re-encode
// decision.
func transcodeArgs(probe ffprobe.Result, target container.Spec) []string {
	args := []string{"-c:v", target.VideoEncoder}
	audio, hasAudio := probe.FirstAudio()
	plan := container.PlanAudio(probe.ContainerName(), audio.CodecName, hasAudio, target)
	if plan.Copy {
		args = append(args, "-c:a", "copy")
	} else if hasAudio {
		args = append(args, "-c:a", plan.Encoder)
	}
	return args
}

// run executes ffmpeg, forwarding progress with a floor so chat progress
// never appears stuck at zero.
func (p *Processor) run(ctx context.Context, args []string, duration float64, progress processor.Progress, message string) error {
	var forward func(ffmpeg.ProgressUpdate)
	if progress != nil {
		progress(1, message)
		forward = func(update ffmpeg.ProgressUpdate) {
			progress(update.Percent, message)
		}
	}
	return p.ffmpeg.Run(ctx, args, duration, forward)
}

// scaleProgress maps a sub-task's 0..100 onto its share of the whole job.
func scaleProgress(progress processor.Progress, index, total int) processor.Progress {
	if progress == nil || total <= 0 {
		return progress
	}
	return func(percent float64, message string) {
		base := float64(index) / float64(total) * 100
		progress(base+percent/float64(total), message)
	}
}

func noVideoStream(path, op string) error {
	return services.Wrap(services.ErrValidation, "video-processor", op,
		fmt.Sprintf("%s has no video stream", filepath.Base(path)), nil)
}

// formatSeconds renders a seconds value the way ffmpeg's -ss/-to expect.
func formatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 3, 64)
}
