package jobspec

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"mediabot/internal/media/captionbox"
)

// ParseText parses the free-text parameters a user typed for an operation.
// The returned value is the operation's typed params struct, already
// validated. Errors are phrased for direct display in the chat.
func ParseText(kind MediaKind, op Operation, text string) (any, error) {
	text = strings.TrimSpace(text)
	switch op {
	case OpRotate:
		return parseRotate(text)
	case OpCrop:
		return parseCrop(text)
	case OpStack:
		return parseStack(text)
	case OpConvert:
		return parseConvert(text)
	case OpCaption:
		if kind == KindVideo {
			return parseVideoCaption(text)
		}
		return parseCaption(text)
	case OpResolution:
		return parseResolution(text)
	case OpFrameRate:
		return parseFrameRate(text)
	case OpTrim:
		return parseTrim(text)
	case OpExtractAudio:
		return parseExtractAudio(text)
	case OpSplit:
		return parseSplit(text)
	case OpCompress:
		return parseCompress(text)
	case OpOCR:
		return parseOCR(text)
	default:
		return nil, fmt.Errorf("operation %s takes no parameters", op)
	}
}

func parseRotate(text string) (RotateParams, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 || len(fields) > 2 {
		return RotateParams{}, errors.New("expected an angle like 90 or 45 ccw")
	}
	degrees, err := strconv.Atoi(fields[0])
	if err != nil {
		return RotateParams{}, fmt.Errorf("%q is not a whole number of degrees", fields[0])
	}
	params := RotateParams{Degrees: degrees, Direction: "clockwise"}
	if len(fields) == 2 {
		switch strings.ToLower(fields[1]) {
		case "ccw", "counterclockwise", "counter_clockwise":
			params.Direction = "counter_clockwise"
		case "cw", "clockwise":
		default:
			return RotateParams{}, fmt.Errorf("unknown direction %q, use cw or ccw", fields[1])
		}
	}
	// Normalize into a single positive turn.
	params.Degrees = ((params.Degrees % 360) + 360) % 360
	if params.Degrees == 0 {
		return RotateParams{}, errors.New("rotation must not be a multiple of 360 degrees")
	}
	if err := validate.Struct(&params); err != nil {
		return RotateParams{}, errors.New("rotation must be between 1 and 359 degrees")
	}
	return params, nil
}

func parseCrop(text string) (CropParams, error) {
	parts := strings.Split(text, "-")
	if len(parts) != 4 {
		return CropParams{}, errors.New("expected four percentages like 10-10-10-10 (top-bottom-left-right)")
	}
	values := make([]int, 4)
	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return CropParams{}, fmt.Errorf("%q is not a whole percentage", part)
		}
		values[i] = v
	}
	params := CropParams{Top: values[0], Bottom: values[1], Left: values[2], Right: values[3]}
	if err := validate.Struct(&params); err != nil {
		return CropParams{}, errors.New("each percentage must be between 0 and 100")
	}
	if params.Top+params.Bottom >= 100 {
		return CropParams{}, errors.New("top and bottom together must leave part of the image")
	}
	if params.Left+params.Right >= 100 {
		return CropParams{}, errors.New("left and right together must leave part of the image")
	}
	return params, nil
}

func parseStack(text string) (StackParams, error) {
	fields := strings.Fields(strings.ToLower(text))
	if len(fields) == 0 || len(fields) > 3 {
		return StackParams{}, errors.New("expected a direction like vertical or horizontal 10")
	}
	params := StackParams{Direction: fields[0], Padding: 10}
	if len(fields) >= 2 {
		padding, err := strconv.Atoi(fields[1])
		if err != nil {
			return StackParams{}, fmt.Errorf("%q is not a padding in pixels", fields[1])
		}
		params.Padding = padding
	}
	if len(fields) == 3 {
		if _, err := captionbox.ParseColor(fields[2]); err != nil {
			return StackParams{}, fmt.Errorf("%q is not a color name or #hex value", fields[2])
		}
		params.PaddingColor = fields[2]
	}
	if err := validate.Struct(&params); err != nil {
		return StackParams{}, errors.New("direction must be vertical or horizontal, padding 0-500")
	}
	return params, nil
}

func parseConvert(text string) (ConvertParams, error) {
	fields := strings.Fields(strings.ToLower(text))
	if len(fields) == 0 || len(fields) > 2 {
		return ConvertParams{}, errors.New("expected a format like png or jpeg 85")
	}
	format := fields[0]
	if format == "jpg" {
		format = "jpeg"
	}
	params := ConvertParams{Format: format, Quality: 90}
	if len(fields) == 2 {
		quality, err := strconv.Atoi(fields[1])
		if err != nil {
			return ConvertParams{}, fmt.Errorf("%q is not a quality between 1 and 100", fields[1])
		}
		params.Quality = quality
	}
	if err := validate.Struct(&params); err != nil {
		return ConvertParams{}, errors.New("format must be png or jpeg, quality 1-100")
	}
	return params, nil
}

func parseCaption(text string) (CaptionParams, error) {
	if text == "" {
		return CaptionParams{}, errors.New("caption text must not be empty")
	}
	return CaptionParams{Text: text}, nil
}

func parseVideoCaption(text string) (VideoCaptionParams, error) {
	// Split from the right so commas inside the caption text survive.
	lastComma := strings.LastIndex(text, ",")
	if lastComma < 0 {
		return VideoCaptionParams{}, errors.New("expected text, start, end — for example: hello, 5, 10")
	}
	endText := strings.TrimSpace(text[lastComma+1:])
	rest := text[:lastComma]
	middleComma := strings.LastIndex(rest, ",")
	if middleComma < 0 {
		return VideoCaptionParams{}, errors.New("expected text, start, end — for example: hello, 5, 10")
	}
	startText := strings.TrimSpace(rest[middleComma+1:])
	caption := strings.TrimSpace(rest[:middleComma])
	if caption == "" {
		return VideoCaptionParams{}, errors.New("caption text must not be empty")
	}
	start, err := ParseTimestamp(startText)
	if err != nil {
		return VideoCaptionParams{}, fmt.Errorf("start time: %v", err)
	}
	end, err := ParseTimestamp(endText)
	if err != nil {
		return VideoCaptionParams{}, fmt.Errorf("end time: %v", err)
	}
	params := VideoCaptionParams{Text: caption, Start: start, End: end}
	if err := validate.Struct(&params); err != nil {
		return VideoCaptionParams{}, errors.New("end time must be after the start time")
	}
	return params, nil
}

func parseResolution(text string) (ResolutionParams, error) {
	width, height, ok := strings.Cut(strings.ToLower(text), "x")
	if !ok {
		return ResolutionParams{}, errors.New("expected WIDTHxHEIGHT like 1280x720")
	}
	w, errW := strconv.Atoi(strings.TrimSpace(width))
	h, errH := strconv.Atoi(strings.TrimSpace(height))
	if errW != nil || errH != nil {
		return ResolutionParams{}, errors.New("expected whole numbers like 1280x720")
	}
	params := ResolutionParams{Width: w, Height: h}
	if err := validate.Struct(&params); err != nil {
		return ResolutionParams{}, errors.New("width and height must be between 16 and 7680")
	}
	return params, nil
}

func parseFrameRate(text string) (FrameRateParams, error) {
	fps, err := strconv.Atoi(text)
	if err != nil {
		return FrameRateParams{}, fmt.Errorf("%q is not a whole frame rate", text)
	}
	params := FrameRateParams{FPS: fps}
	if err := validate.Struct(&params); err != nil {
		return FrameRateParams{}, errors.New("frame rate must be between 1 and 240")
	}
	return params, nil
}

func parseTrim(text string) (TrimParams, error) {
	startText, endText, ok := strings.Cut(text, "-")
	if !ok {
		return TrimParams{}, errors.New("expected START-END like 00:00:10-00:00:30")
	}
	start, err := ParseTimestamp(strings.TrimSpace(startText))
	if err != nil {
		return TrimParams{}, fmt.Errorf("start time: %v", err)
	}
	end, err := ParseTimestamp(strings.TrimSpace(endText))
	if err != nil {
		return TrimParams{}, fmt.Errorf("end time: %v", err)
	}
	params := TrimParams{Intervals: []Interval{{Start: start, End: end}}}
	if err := validate.Struct(&params); err != nil {
		return TrimParams{}, errors.New("the interval must have a positive duration")
	}
	return params, nil
}

func parseExtractAudio(text string) (ExtractAudioParams, error) {
	params := ExtractAudioParams{Format: strings.ToLower(text)}
	if params.Format == "" {
		params.Format = "m4a"
	}
	if err := validate.Struct(&params); err != nil {
		return ExtractAudioParams{}, errors.New("format must be m4a, mp3, or wav")
	}
	return params, nil
}

func parseSplit(text string) (SplitParams, error) {
	var params SplitParams
	for _, piece := range strings.Split(text, ",") {
		startText, endText, ok := strings.Cut(piece, "-")
		if !ok {
			return SplitParams{}, errors.New("expected page ranges like 1-3 or 1-3, 5-7")
		}
		start, errS := strconv.Atoi(strings.TrimSpace(startText))
		end, errE := strconv.Atoi(strings.TrimSpace(endText))
		if errS != nil || errE != nil {
			return SplitParams{}, errors.New("expected whole page numbers like 1-3")
		}
		params.Ranges = append(params.Ranges, PageRange{Start: start, End: end})
	}
	if err := validate.Struct(&params); err != nil {
		return SplitParams{}, errors.New("pages start at 1 and the end must not precede the start")
	}
	return params, nil
}

func parseCompress(text string) (CompressParams, error) {
	params := CompressParams{Quality: strings.ToLower(text)}
	if err := validate.Struct(&params); err != nil {
		return CompressParams{}, errors.New("quality must be low, medium, or high")
	}
	return params, nil
}

func parseOCR(text string) (OCRParams, error) {
	params := OCRParams{Format: strings.ToLower(text)}
	if err := validate.Struct(&params); err != nil {
		return OCRParams{}, errors.New("format must be pdf, docx, md, or txt")
	}
	return params, nil
}

// ParseTimestamp accepts plain seconds ("90", "12.5") or clock notation
// ("MM:SS", "HH:MM:SS", fractional seconds allowed) and returns seconds.
func ParseTimestamp(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, errors.New("empty timestamp")
	}
	parts := strings.Split(value, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("%q is not a timestamp", value)
	}
	total := 0.0
	for _, part := range parts {
		n, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%q is not a timestamp", value)
		}
		total = total*60 + n
	}
	return total, nil
}
