package ffprobe

import (
	"math"
	"testing"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video", CodecName: "h264", Width: 1280, Height: 720},
			{CodecType: "audio", CodecName: "aac"},
			{CodecType: "audio", CodecName: "mp3"},
		},
		Format: Format{
			Duration:   "123.45",
			Size:       "1000",
			BitRate:    "32000",
			FormatName: "mov,mp4,m4a,3gp,3g2,mj2",
		},
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	if result.AudioStreamCount() != 2 {
		t.Fatalf("expected 2 audio streams, got %d", result.AudioStreamCount())
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
	if result.BitRate() != 32000 {
		t.Fatalf("unexpected bitrate: %d", result.BitRate())
	}
	if result.ContainerName() != "mp4" {
		t.Fatalf("unexpected container name: %q", result.ContainerName())
	}
}

func TestContainerName(t *testing.T) {
	tests := []struct {
		formatName string
		want       string
	}{
		{"mov,mp4,m4a,3gp,3g2,mj2", "mp4"},
		{"matroska,webm", "matroska"},
		{"mpeg", "mpeg"},
		{"avi", "avi"},
		{"", ""},
	}
	for _, tt := range tests {
		r := Result{Format: Format{FormatName: tt.formatName}}
		if got := r.ContainerName(); got != tt.want {
			t.Errorf("ContainerName(%q) = %q, want %q", tt.formatName, got, tt.want)
		}
	}
}

func TestFirstStreamLookup(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "audio", CodecName: "aac", Index: 0},
			{CodecType: "video", CodecName: "h264", Index: 1},
			{CodecType: "video", CodecName: "mjpeg", Index: 2},
		},
	}
	video, ok := result.FirstVideo()
	if !ok || video.CodecName != "h264" {
		t.Fatalf("unexpected first video: %+v ok=%v", video, ok)
	}
	audio, ok := result.FirstAudio()
	if !ok || audio.CodecName != "aac" {
		t.Fatalf("unexpected first audio: %+v ok=%v", audio, ok)
	}

	empty := Result{}
	if _, ok := empty.FirstVideo(); ok {
		t.Fatal("expected no video stream")
	}
	if _, ok := empty.FirstAudio(); ok {
		t.Fatal("expected no audio stream")
	}
}

func TestStreamFPS(t *testing.T) {
	tests := []struct {
		name string
		r    string
		avg  string
		want float64
	}{
		{"ntsc fraction", "30000/1001", "", 30000.0 / 1001.0},
		{"integer fraction", "25/1", "", 25},
		{"plain number", "24", "", 24},
		{"zero denominator falls back to avg", "0/0", "30/1", 30},
		{"empty", "", "", 0},
		{"garbage", "abc", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Stream{RFrameRate: tt.r, AvgFrameRate: tt.avg}
			got := s.FPS()
			if math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("FPS() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{
		Format: Format{
			Duration: "bad",
			Size:     "-1",
			BitRate:  "nope",
		},
	}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
	if result.BitRate() != 0 {
		t.Fatalf("expected bitrate 0, got %d", result.BitRate())
	}
}
