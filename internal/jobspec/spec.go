package jobspec

import "strings"

// MediaKind identifies the class of uploaded media a job operates on.
type MediaKind string

const (
	KindImage    MediaKind = "image"
	KindVideo    MediaKind = "video"
	KindDocument MediaKind = "document"
)

// Operation identifies a transformation the processors implement.
type Operation string

const (
	OpRotate           Operation = "rotate"
	OpCrop             Operation = "crop"
	OpStack            Operation = "stack"
	OpConvert          Operation = "convert"
	OpCaption          Operation = "caption"
	OpRemoveBackground Operation = "remove_background"

	OpResolution   Operation = "resolution"
	OpFrameRate    Operation = "framerate"
	OpMerge        Operation = "merge"
	OpTrim         Operation = "trim"
	OpExtractAudio Operation = "extract_audio"

	OpSplit    Operation = "split"
	OpCompress Operation = "compress"
	OpOCR      Operation = "ocr"
)

var operationsByKind = map[MediaKind][]Operation{
	KindImage:    {OpRotate, OpCrop, OpStack, OpConvert, OpCaption, OpRemoveBackground},
	KindVideo:    {OpResolution, OpFrameRate, OpMerge, OpTrim, OpExtractAudio, OpCaption},
	KindDocument: {OpMerge, OpSplit, OpCompress, OpOCR},
}

var labels = map[Operation]string{
	OpRotate:           "Rotate",
	OpCrop:             "Crop",
	OpStack:            "Stack",
	OpConvert:          "Convert format",
	OpCaption:          "Add caption",
	OpRemoveBackground: "Remove background",
	OpResolution:       "Change resolution",
	OpFrameRate:        "Change frame rate",
	OpMerge:            "Merge",
	OpTrim:             "Trim",
	OpExtractAudio:     "Extract audio",
	OpSplit:            "Split pages",
	OpCompress:         "Compress",
	OpOCR:              "OCR",
}

// extensionsByKind lists the upload extensions each media kind accepts.
var extensionsByKind = map[MediaKind][]string{
	KindImage:    {".png", ".jpg", ".jpeg", ".webp"},
	KindVideo:    {".mp4", ".mkv", ".mpeg", ".mpg", ".mov", ".avi", ".webm"},
	KindDocument: {".pdf"},
}

// ParseKind converts user-supplied text into a known MediaKind.
func ParseKind(value string) (MediaKind, bool) {
	kind := MediaKind(strings.ToLower(strings.TrimSpace(value)))
	switch kind {
	case KindImage, KindVideo, KindDocument:
		return kind, true
	default:
		return "", false
	}
}

// ParseOperation converts user-supplied text into a known Operation for the kind.
func ParseOperation(kind MediaKind, value string) (Operation, bool) {
	op := Operation(strings.ToLower(strings.TrimSpace(value)))
	for _, candidate := range operationsByKind[kind] {
		if candidate == op {
			return op, true
		}
	}
	return "", false
}

// OperationsFor returns the ordered menu of operations for a media kind.
func OperationsFor(kind MediaKind) []Operation {
	ops := operationsByKind[kind]
	out := make([]Operation, len(ops))
	copy(out, ops)
	return out
}

// Label returns the button text shown for an operation.
func (op Operation) Label() string {
	if label, ok := labels[op]; ok {
		return label
	}
	return string(op)
}

// AllowedExtension reports whether the upload extension is accepted for the kind.
func AllowedExtension(kind MediaKind, ext string) bool {
	ext = strings.ToLower(strings.TrimSpace(ext))
	for _, allowed := range extensionsByKind[kind] {
		if allowed == ext {
			return true
		}
	}
	return false
}

// MinInputs returns the number of uploads an operation requires before it can run.
func MinInputs(op Operation) int {
	switch op {
	case OpMerge, OpStack:
		return 2
	default:
		return 1
	}
}

// CollectsInputs reports whether the operation accumulates additional uploads
// before parameters are requested.
func CollectsInputs(op Operation) bool {
	return MinInputs(op) > 1
}

// NeedsParams reports whether the operation requires free-text parameters.
// Video and document merges run with derived defaults once uploads are done.
func NeedsParams(kind MediaKind, op Operation) bool {
	switch op {
	case OpRemoveBackground, OpMerge:
		return false
	default:
		return true
	}
}

// ParamHint returns the prompt shown when asking the user for parameters.
func ParamHint(kind MediaKind, op Operation) string {
	switch op {
	case OpRotate:
		return "Send the rotation in degrees, optionally followed by \"ccw\". Example: 90 or 45 ccw"
	case OpCrop:
		return "Send the percent to crop from each side as top-bottom-left-right. Example: 10-10-10-10"
	case OpStack:
		return "Send the direction, optional padding in pixels, and optional band color. Example: vertical 10 white or horizontal"
	case OpConvert:
		return "Send the target format, optionally with JPEG quality. Example: jpeg 85 or png"
	case OpCaption:
		if kind == KindVideo {
			return "Send the caption as text, start, end (seconds). Example: hello world, 5, 10"
		}
		return "Send the caption text."
	case OpResolution:
		return "Send the new resolution as WIDTHxHEIGHT. Example: 1280x720"
	case OpFrameRate:
		return "Send the new frame rate (1-240). Example: 30"
	case OpTrim:
		return "Send the interval as START-END, either seconds or HH:MM:SS. Example: 00:00:10-00:00:30"
	case OpExtractAudio:
		return "Send the audio format: m4a, mp3, or wav."
	case OpSplit:
		return "Send page ranges as start-end, comma separated for several fragments. Example: 1-3, 5-7"
	case OpCompress:
		return "Send the compression quality: low, medium, or high."
	case OpOCR:
		return "Send the output format: pdf, docx, md, or txt."
	default:
		return "Send the parameters for this operation."
	}
}
