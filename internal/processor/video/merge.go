package video

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"mediabot/internal/jobspec"
	"mediabot/internal/media/container"
	"mediabot/internal/processor"
	"mediabot/internal/services"
	"mediabot/internal/services/ffmpeg"
)

// merge concatenates the uploaded videos. When every input already matches
// the target container, resolution, and frame rate the concat demuxer stream
// copies; otherwise each input is normalized into a container-suffixed part
// first and the parts are concatenated with stream copy.
func (p *Processor) merge(ctx context.Context, req processor.Request, progress processor.Progress) ([]string, error) {
	params, err := decodeMergeParams(req.ParamsJSON)
	if err != nil {
		return nil, err
	}
	if len(req.InputPaths) < 2 {
		return nil, services.Wrap(services.ErrValidation, "video-processor", "merge", "merging needs at least two videos", nil)
	}

	inputs := make([]container.MergeInput, 0, len(req.InputPaths))
	var totalDuration float64
	for _, path := range req.InputPaths {
		probe, err := p.probe.Inspect(ctx, path)
		if err != nil {
			return nil, err
		}
		video, ok := probe.FirstVideo()
		if !ok {
			return nil, noVideoStream(path, "merge")
		}
		totalDuration += probe.DurationSeconds()
		inputs = append(inputs, container.MergeInput{
			Path:      path,
			Container: probe.ContainerName(),
			Width:     video.Width,
			Height:    video.Height,
			FPS:       video.FPS(),
		})
	}

	opts, err := mergeOptions(params)
	if err != nil {
		return nil, err
	}
	plan, err := container.PlanMerge(inputs, opts)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "video-processor", "merge", err.Error(), err)
	}

	parts := make([]string, len(inputs))
	if plan.NeedsTranscode {
		for i, in := range inputs {
			part := filepath.Join(req.WorkDir, fmt.Sprintf("part_%d%s", i+1, plan.PartExtension))
			if err := p.normalizePart(ctx, in, plan, part, scaleProgress(progress, i, len(inputs)+1)); err != nil {
				return nil, err
			}
			parts[i] = part
		}
	} else {
		for i, in := range inputs {
			parts[i] = in.Path
		}
	}

	listPath, err := ffmpeg.WriteConcatList(req.WorkDir, parts)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "video-processor", "merge", "write concat list", err)
	}

	output := processor.OutputPath(req.OutputDir, req.ChatID, plan.PartExtension)
	args := []string{"-f", "concat", "-safe", "0", "-i", listPath, "-c", "copy", output}
	concatProgress := scaleProgress(progress, len(inputs), len(inputs)+1)
	if !plan.NeedsTranscode {
		concatProgress = progress
	}
	if err := p.run(ctx, args, totalDuration, concatProgress, "concatenating videos"); err != nil {
		return nil, err
	}
	return []string{output}, nil
}

// normalizePart re-encodes one merge input to the plan's container,
// resolution, and frame rate.
func (p *Processor) normalizePart(ctx context.Context, in container.MergeInput, plan container.MergePlan, output string, progress processor.Progress) error {
	probe, err := p.probe.Inspect(ctx, in.Path)
	if err != nil {
		return err
	}

	args := []string{"-i", in.Path}
	var filters []string
	if plan.NeedsScale(in) {
		filters = append(filters, fmt.Sprintf("scale=%d:%d", plan.Width, plan.Height))
	}
	if plan.NeedsFPSChange(in) {
		filters = append(filters, fmt.Sprintf("fps=%s:round=up", formatFPS(plan.FPS)))
	}
	if len(filters) > 0 {
		args = append(args, "-vf", strings.Join(filters, ","))
	}
	args = append(args, "-c:v", plan.Target.VideoEncoder)
	if _, hasAudio := probe.FirstAudio(); hasAudio {
		args = append(args, "-c:a", plan.Target.AudioEncoder)
	}
	args = append(args, output)

	message := "normalizing " + filepath.Base(in.Path)
	return p.run(ctx, args, probe.DurationSeconds(), progress, message)
}

// decodeMergeParams tolerates an empty parameter payload: merge is enqueued
// without a parameter prompt, so defaults apply.
func decodeMergeParams(raw string) (jobspec.MergeParams, error) {
	if strings.TrimSpace(raw) == "" {
		return jobspec.MergeParams{}, nil
	}
	return jobspec.Decode[jobspec.MergeParams](raw)
}

// mergeOptions translates the chat-level merge parameters into planner
// options. Resolution and frame rate accept a selector word or an explicit
// value.
func mergeOptions(params jobspec.MergeParams) (container.MergeOptions, error) {
	opts := container.MergeOptions{UnifyContainer: params.Container}

	switch res := strings.ToLower(strings.TrimSpace(params.Resolution)); res {
	case "":
	case container.SelectLargest, container.SelectSmallest:
		opts.ResolutionMode = res
	default:
		width, height, ok := strings.Cut(res, "x")
		if !ok {
			return opts, mergeParamError("resolution", params.Resolution)
		}
		w, errW := strconv.Atoi(width)
		h, errH := strconv.Atoi(height)
		if errW != nil || errH != nil || w <= 0 || h <= 0 {
			return opts, mergeParamError("resolution", params.Resolution)
		}
		opts.Width, opts.Height = w, h
	}

	switch rate := strings.ToLower(strings.TrimSpace(params.FrameRate)); rate {
	case "":
	case container.SelectLargest, container.SelectSmallest:
		opts.FPSMode = rate
	default:
		fps, err := strconv.Atoi(rate)
		if err != nil || fps <= 0 {
			return opts, mergeParamError("frame rate", params.FrameRate)
		}
		opts.FPS = fps
	}
	return opts, nil
}

func mergeParamError(field, value string) error {
	return services.Wrap(services.ErrValidation, "video-processor", "merge",
		fmt.Sprintf("invalid merge %s %q (expected largest, smallest, or an explicit value)", field, value), nil)
}

// formatFPS renders a frame rate without trailing zeros.
func formatFPS(fps float64) string {
	return strconv.FormatFloat(fps, 'f', -1, 64)
}
