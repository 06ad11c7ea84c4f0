package jobspec

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// RotateParams rotates an image by a number of degrees.
type RotateParams struct {
	Degrees   int    `json:"degrees" validate:"min=1,max=359"`
	Direction string `json:"direction" validate:"oneof=clockwise counter_clockwise"`
}

// CropParams removes a percentage from each side of an image.
type CropParams struct {
	Top    int `json:"top" validate:"min=0,max=100"`
	Bottom int `json:"bottom" validate:"min=0,max=100"`
	Left   int `json:"left" validate:"min=0,max=100"`
	Right  int `json:"right" validate:"min=0,max=100"`
}

// StackParams combines images along one axis with padding between them.
// PaddingColor names the band color between images; empty means white.
type StackParams struct {
	Direction    string `json:"direction" validate:"oneof=vertical horizontal"`
	Padding      int    `json:"padding" validate:"min=0,max=500"`
	PaddingColor string `json:"padding_color,omitempty"`
}

// ConvertParams re-encodes an image into another format.
type ConvertParams struct {
	Format  string `json:"format" validate:"oneof=png jpeg"`
	Quality int    `json:"quality" validate:"min=1,max=100"`
}

// CaptionParams draws text over an image inside an auto-expanding box.
type CaptionParams struct {
	Text string `json:"text" validate:"required"`
}

// ResolutionParams rescales a video to explicit dimensions.
type ResolutionParams struct {
	Width  int `json:"width" validate:"min=16,max=7680"`
	Height int `json:"height" validate:"min=16,max=7680"`
}

// FrameRateParams changes the video frame rate.
type FrameRateParams struct {
	FPS int `json:"fps" validate:"min=1,max=240"`
}

// Interval is a [start, end) span in seconds.
type Interval struct {
	Start float64 `json:"start" validate:"min=0"`
	End   float64 `json:"end" validate:"gtfield=Start"`
}

// TrimParams cuts a video into the given intervals.
type TrimParams struct {
	Intervals []Interval `json:"intervals" validate:"min=1,dive"`
}

// VideoCaptionParams burns timed text into a video.
type VideoCaptionParams struct {
	Text  string  `json:"text" validate:"required"`
	Start float64 `json:"start" validate:"min=0"`
	End   float64 `json:"end" validate:"gtfield=Start"`
}

// ExtractAudioParams pulls the audio track into a standalone file.
type ExtractAudioParams struct {
	Format string `json:"format" validate:"oneof=m4a mp3 wav"`
}

// MergeParams carries optional unification targets for video merges. Zero
// values defer to the first input's container, resolution, and frame rate.
type MergeParams struct {
	Container  string `json:"container,omitempty" validate:"omitempty,oneof=mpeg mp4 matroska"`
	Resolution string `json:"resolution,omitempty"`
	FrameRate  string `json:"framerate,omitempty"`
}

// PageRange is a 1-based inclusive page interval.
type PageRange struct {
	Start int `json:"start" validate:"min=1"`
	End   int `json:"end" validate:"gtefield=Start"`
}

// SplitParams extracts 1-based inclusive page ranges from a PDF, one output
// fragment per range.
type SplitParams struct {
	Ranges []PageRange `json:"ranges" validate:"min=1,dive"`
}

// CompressParams shrinks a PDF at a named quality level.
type CompressParams struct {
	Quality string `json:"quality" validate:"oneof=low medium high"`
}

// OCRParams recognizes document text into the requested output format.
type OCRParams struct {
	Format string `json:"format" validate:"oneof=pdf docx md txt"`
}

// Encode serializes params for queue storage.
func Encode(params any) (string, error) {
	if params == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("encode params: %w", err)
	}
	return string(raw), nil
}

// Decode deserializes stored params into the operation's typed struct and
// re-validates them before use.
func Decode[T any](raw string) (T, error) {
	var params T
	if raw == "" {
		raw = "{}"
	}
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return params, fmt.Errorf("decode params: %w", err)
	}
	if err := validate.Struct(&params); err != nil {
		return params, fmt.Errorf("invalid params: %w", err)
	}
	return params, nil
}
