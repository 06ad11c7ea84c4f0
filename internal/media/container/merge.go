package container

import (
	"errors"
	"fmt"
	"math"
)

// FPSTolerance is the band inside which two frame rates count as equal.
// NTSC-style fractional rates (30000/1001) survive float round trips within it.
const FPSTolerance = 1e-4

// Selector values for resolution and frame-rate unification.
const (
	SelectLargest  = "largest"
	SelectSmallest = "smallest"
)

// MergeInput carries the probed properties of one merge source.
type MergeInput struct {
	Path      string
	Container string
	Width     int
	Height    int
	FPS       float64
}

// MergeOptions steers target selection. Explicit values win over selector
// modes; everything left zero defaults to the first input's properties.
type MergeOptions struct {
	// UnifyContainer forces a container name; the OutputPath extension still
	// overrides it when recognized.
	UnifyContainer string
	OutputPath     string

	// Width/Height set an explicit target resolution when both are positive.
	Width          int
	Height         int
	ResolutionMode string

	// FPS sets an explicit target rate when positive.
	FPS     int
	FPSMode string
}

// MergePlan is the derived target every input must be normalized to before a
// lossless concat copy.
type MergePlan struct {
	Target         Spec
	Width          int
	Height         int
	FPS            float64
	NeedsTranscode bool
	PartExtension  string
}

// PlanMerge derives the merge target from the probed inputs and options.
// The concat pass can stream copy only when every input already matches the
// target container, resolution, and frame rate; otherwise each input is
// normalized first and NeedsTranscode is set.
func PlanMerge(inputs []MergeInput, opts MergeOptions) (MergePlan, error) {
	if len(inputs) < 2 {
		return MergePlan{}, errors.New("at least two videos are required to merge")
	}

	name := opts.UnifyContainer
	if name == "" {
		name = inputs[0].Container
	}
	switch normalizeExt(opts.OutputPath) {
	case ".mpeg", ".mpg":
		name = "mpeg"
	case ".mp4":
		name = "mp4"
	case ".mkv":
		name = "matroska"
	}
	target := ForName(name)

	width, height, err := mergeResolution(inputs, opts)
	if err != nil {
		return MergePlan{}, err
	}

	fps, err := mergeFPS(inputs, opts)
	if err != nil {
		return MergePlan{}, err
	}

	plan := MergePlan{
		Target:        target,
		Width:         width,
		Height:        height,
		FPS:           fps,
		PartExtension: Extension(target.Name),
	}

	for _, in := range inputs {
		if in.Container != target.Name || plan.NeedsScale(in) || plan.NeedsFPSChange(in) {
			plan.NeedsTranscode = true
			break
		}
	}
	return plan, nil
}

// NeedsScale reports whether the input's resolution differs from the target.
func (p MergePlan) NeedsScale(in MergeInput) bool {
	return in.Width != p.Width || in.Height != p.Height
}

// NeedsFPSChange reports whether the input's frame rate differs from the
// target beyond FPSTolerance.
func (p MergePlan) NeedsFPSChange(in MergeInput) bool {
	return math.Abs(in.FPS-p.FPS) > FPSTolerance
}

func mergeResolution(inputs []MergeInput, opts MergeOptions) (int, int, error) {
	if opts.Width > 0 && opts.Height > 0 {
		return opts.Width, opts.Height, nil
	}
	switch opts.ResolutionMode {
	case "":
		return inputs[0].Width, inputs[0].Height, nil
	case SelectLargest:
		width, height := 0, 0
		for _, in := range inputs {
			width = max(width, in.Width)
			height = max(height, in.Height)
		}
		return width, height, nil
	case SelectSmallest:
		width, height := inputs[0].Width, inputs[0].Height
		for _, in := range inputs[1:] {
			width = min(width, in.Width)
			height = min(height, in.Height)
		}
		return width, height, nil
	default:
		return 0, 0, fmt.Errorf("invalid resolution selector %q", opts.ResolutionMode)
	}
}

func mergeFPS(inputs []MergeInput, opts MergeOptions) (float64, error) {
	if opts.FPS > 0 {
		return float64(opts.FPS), nil
	}
	switch opts.FPSMode {
	case "":
		return inputs[0].FPS, nil
	case SelectLargest:
		highest := inputs[0].FPS
		for _, in := range inputs[1:] {
			highest = math.Max(highest, in.FPS)
		}
		return math.Ceil(highest), nil
	case SelectSmallest:
		lowest := inputs[0].FPS
		for _, in := range inputs[1:] {
			lowest = math.Min(lowest, in.FPS)
		}
		return math.Max(1, math.Floor(lowest)), nil
	default:
		return 0, fmt.Errorf("invalid frame rate selector %q", opts.FPSMode)
	}
}
