package container

import (
	"path/filepath"
	"strings"
)

// Spec describes a video container and the canonical encoders used when
// streams must be re-encoded for it.
type Spec struct {
	Name         string
	VideoEncoder string
	AudioEncoder string
}

// AudioSpec describes an audio-only container and its canonical encoder.
type AudioSpec struct {
	Name    string
	Encoder string
}

// ForPath guesses the container spec from the path's extension. Unrecognized
// extensions fall back to MP4.
func ForPath(path string) Spec {
	switch normalizeExt(path) {
	case ".mpeg", ".mpg":
		return Spec{Name: "mpeg", VideoEncoder: "mpeg2video", AudioEncoder: "mp2"}
	case ".mp4":
		return Spec{Name: "mp4", VideoEncoder: "libx264", AudioEncoder: "aac"}
	case ".mkv":
		return Spec{Name: "matroska", VideoEncoder: "libx264", AudioEncoder: "aac"}
	default:
		return Spec{Name: "mp4", VideoEncoder: "libx264", AudioEncoder: "aac"}
	}
}

// ForName returns the spec for a container name ("mpeg", "mp4", "matroska").
// Unrecognized names fall back to MP4 encoders under the given name.
func ForName(name string) Spec {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mpeg":
		return Spec{Name: "mpeg", VideoEncoder: "mpeg2video", AudioEncoder: "mp2"}
	case "mp4":
		return Spec{Name: "mp4", VideoEncoder: "libx264", AudioEncoder: "aac"}
	case "matroska":
		return Spec{Name: "matroska", VideoEncoder: "libx264", AudioEncoder: "aac"}
	default:
		return Spec{Name: strings.ToLower(strings.TrimSpace(name)), VideoEncoder: "libx264", AudioEncoder: "aac"}
	}
}

// AudioForPath guesses the audio-only container spec from the path's
// extension. Unrecognized extensions fall back to M4A (ipod container).
func AudioForPath(path string) AudioSpec {
	switch normalizeExt(path) {
	case ".m4a":
		return AudioSpec{Name: "ipod", Encoder: "aac"}
	case ".mp3":
		return AudioSpec{Name: "mp3", Encoder: "libmp3lame"}
	case ".wav":
		return AudioSpec{Name: "wav", Encoder: "pcm_s16le"}
	default:
		return AudioSpec{Name: "ipod", Encoder: "aac"}
	}
}

// StreamCodecName translates an ffmpeg encoder name into the codec name
// ffprobe reports for streams produced by it. Compatibility checks must
// compare in this namespace: a stream encoded by libx264 probes as "h264",
// and one encoded by libmp3lame probes as "mp3".
func StreamCodecName(encoder string) string {
	switch strings.ToLower(strings.TrimSpace(encoder)) {
	case "libx264":
		return "h264"
	case "libx265":
		return "hevc"
	case "libmp3lame":
		return "mp3"
	default:
		return strings.ToLower(strings.TrimSpace(encoder))
	}
}

// Extension returns the conventional file extension for a container name.
func Extension(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mpeg":
		return ".mpeg"
	case "mp4":
		return ".mp4"
	case "matroska":
		return ".mkv"
	case "ipod":
		return ".m4a"
	case "mp3":
		return ".mp3"
	case "wav":
		return ".wav"
	default:
		return ".mp4"
	}
}

// AudioPlan is the outcome of a stream-copy-vs-re-encode decision for audio.
type AudioPlan struct {
	Copy    bool
	Encoder string
}

// PlanAudio decides how the audio stream travels into the target container
// during a video operation. Stream copy is only valid when the container does
// not change and the probed audio codec is already the target's canonical
// codec; in every other case (including a missing audio stream) the canonical
// encoder is used.
func PlanAudio(inContainer, probedAudioCodec string, hasAudio bool, target Spec) AudioPlan {
	if hasAudio && target.Name == inContainer && strings.EqualFold(probedAudioCodec, StreamCodecName(target.AudioEncoder)) {
		return AudioPlan{Copy: true}
	}
	return AudioPlan{Encoder: target.AudioEncoder}
}

// PlanAudioExtract decides whether a video's audio stream can be copied
// straight into an audio-only container. The source container is irrelevant
// here; only codec compatibility matters.
func PlanAudioExtract(probedAudioCodec string, target AudioSpec) AudioPlan {
	if strings.EqualFold(probedAudioCodec, StreamCodecName(target.Encoder)) {
		return AudioPlan{Copy: true}
	}
	return AudioPlan{Encoder: target.Encoder}
}

// CanCopyTrim reports whether a trim can re-mux with stream copy. That holds
// when the fragment keeps the input's container; a partial GOP at the cut
// point is accepted as the cost of not re-encoding.
func CanCopyTrim(inContainer string, target Spec) bool {
	return target.Name == inContainer
}

func normalizeExt(path string) string {
	return strings.ToLower(filepath.Ext(strings.TrimSpace(path)))
}
