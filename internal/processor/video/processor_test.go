package video_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"mediabot/internal/config"
	"mediabot/internal/jobspec"
	"mediabot/internal/logging"
	"mediabot/internal/media/ffprobe"
	"mediabot/internal/media/fontcatalog"
	"mediabot/internal/processor"
	"mediabot/internal/processor/video"
	"mediabot/internal/services"
	"mediabot/internal/services/ffmpeg"
)

type fakeRunner struct {
	calls [][]string
	err   error
}

func (f *fakeRunner) Run(_ context.Context, args []string, _ float64, progress func(ffmpeg.ProgressUpdate)) error {
	f.calls = append(f.calls, args)
	if progress != nil {
		progress(ffmpeg.ProgressUpdate{Percent: 50, Message: "time=00:00:05.00"})
	}
	return f.err
}

type fakeProber struct {
	results map[string]ffprobe.Result
}

func (f *fakeProber) Inspect(_ context.Context, path string) (ffprobe.Result, error) {
	result, ok := f.results[path]
	if !ok {
		return ffprobe.Result{}, fmt.Errorf("no probe fixture for %s", path)
	}
	return result, nil
}

func probeResult(containerName, videoCodec, audioCodec string, width, height int, fps string) ffprobe.Result {
	result := ffprobe.Result{
		Format: ffprobe.Format{FormatName: containerName, Duration: "10.0"},
	}
	if videoCodec != "" {
		result.Streams = append(result.Streams, ffprobe.Stream{
			CodecType: "video", CodecName: videoCodec, Width: width, Height: height, RFrameRate: fps,
		})
	}
	if audioCodec != "" {
		result.Streams = append(result.Streams, ffprobe.Stream{CodecType: "audio", CodecName: audioCodec})
	}
	return result
}

func newProcessor(t *testing.T, runner *fakeRunner, prober *fakeProber) *video.Processor {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.FontsDir = t.TempDir()
	return video.New(cfg, runner, prober, fontcatalog.New(cfg.Paths.FontsDir), logging.NewNop())
}

func request(t *testing.T, op jobspec.Operation, params any, inputs ...string) processor.Request {
	t.Helper()
	raw := ""
	if params != nil {
		encoded, err := jobspec.Encode(params)
		if err != nil {
			t.Fatalf("encode params: %v", err)
		}
		raw = encoded
	}
	return processor.Request{
		JobID:      1,
		ChatID:     100,
		Kind:       jobspec.KindVideo,
		Operation:  op,
		InputPaths: inputs,
		ParamsJSON: raw,
		OutputDir:  t.TempDir(),
		WorkDir:    t.TempDir(),
	}
}

func joinedCall(t *testing.T, runner *fakeRunner, i int) string {
	t.Helper()
	if len(runner.calls) <= i {
		t.Fatalf("expected at least %d ffmpeg calls, got %d", i+1, len(runner.calls))
	}
	return strings.Join(runner.calls[i], " ")
}

func TestResolutionCopiesMatchingAudio(t *testing.T) {
	runner := &fakeRunner{}
	prober := &fakeProber{results: map[string]ffprobe.Result{
		"/in/clip.mp4": probeResult("mov,mp4,m4a,3gp,3g2,mj2", "h264", "aac", 1920, 1080, "30/1"),
	}}
	proc := newProcessor(t, runner, prober)

	req := request(t, jobspec.OpResolution, jobspec.ResolutionParams{Width: 1280, Height: 720}, "/in/clip.mp4")
	result, err := proc.Process(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	call := joinedCall(t, runner, 0)
	if !strings.Contains(call, "-vf scale=1280:720") {
		t.Fatalf("missing scale filter: %s", call)
	}
	if !strings.Contains(call, "-c:v libx264") {
		t.Fatalf("missing video encoder: %s", call)
	}
	// mp4 container with aac audio: same container, canonical codec -> copy.
	if !strings.Contains(call, "-c:a copy") {
		t.Fatalf("audio should stream copy: %s", call)
	}
	if len(result.OutputPaths) != 1 || filepath.Ext(result.OutputPaths[0]) != ".mp4" {
		t.Fatalf("outputs = %v", result.OutputPaths)
	}
}

func TestResolutionReencodesForeignAudio(t *testing.T) {
	runner := &fakeRunner{}
	prober := &fakeProber{results: map[string]ffprobe.Result{
		"/in/clip.mp4": probeResult("mov,mp4,m4a,3gp,3g2,mj2", "h264", "mp3", 1920, 1080, "30/1"),
	}}
	proc := newProcessor(t, runner, prober)

	req := request(t, jobspec.OpResolution, jobspec.ResolutionParams{Width: 640, Height: 480}, "/in/clip.mp4")
	if _, err := proc.Process(context.Background(), req, nil); err != nil {
		t.Fatalf("Process: %v", err)
	}
	call := joinedCall(t, runner, 0)
	if !strings.Contains(call, "-c:a aac") || strings.Contains(call, "-c:a copy") {
		t.Fatalf("mp3 audio in mp4 must re-encode to aac: %s", call)
	}
}

func TestFrameRate(t *testing.T) {
	runner := &fakeRunner{}
	prober := &fakeProber{results: map[string]ffprobe.Result{
		"/in/clip.mkv": probeResult("matroska,webm", "h264", "aac", 1280, 720, "30000/1001"),
	}}
	proc := newProcessor(t, runner, prober)

	req := request(t, jobspec.OpFrameRate, jobspec.FrameRateParams{FPS: 24}, "/in/clip.mkv")
	result, err := proc.Process(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	call := joinedCall(t, runner, 0)
	if !strings.Contains(call, "-vf fps=24:round=up") {
		t.Fatalf("missing frame rate filter: %s", call)
	}
	if filepath.Ext(result.OutputPaths[0]) != ".mkv" {
		t.Fatalf("output = %s", result.OutputPaths[0])
	}
	// matroska input, matroska target, aac matches the canonical codec.
	if !strings.Contains(call, "-c:a copy") {
		t.Fatalf("audio should stream copy: %s", call)
	}
}

func TestTrimStreamCopiesSameContainer(t *testing.T) {
	runner := &fakeRunner{}
	prober := &fakeProber{results: map[string]ffprobe.Result{
		"/in/holiday.mp4": probeResult("mov,mp4,m4a,3gp,3g2,mj2", "h264", "aac", 1280, 720, "30/1"),
	}}
	proc := newProcessor(t, runner, prober)

	params := jobspec.TrimParams{Intervals: []jobspec.Interval{{Start: 10, End: 30}, {Start: 60, End: 90}}}
	req := request(t, jobspec.OpTrim, params, "/in/holiday.mp4")
	result, err := proc.Process(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(result.OutputPaths) != 2 {
		t.Fatalf("outputs = %v", result.OutputPaths)
	}
	if base := filepath.Base(result.OutputPaths[0]); base != "holiday_part_1.mp4" {
		t.Fatalf("first fragment = %s", base)
	}
	if base := filepath.Base(result.OutputPaths[1]); base != "holiday_part_2.mp4" {
		t.Fatalf("second fragment = %s", base)
	}

	first := joinedCall(t, runner, 0)
	if !strings.Contains(first, "-ss 10.000") || !strings.Contains(first, "-to 30.000") {
		t.Fatalf("window args: %s", first)
	}
	if !strings.Contains(first, "-c copy") {
		t.Fatalf("same-container trim should stream copy: %s", first)
	}
}

func TestTrimReencodesAcrossContainers(t *testing.T) {
	runner := &fakeRunner{}
	// File named .mp4 but probing as matroska: target mp4 != probed container.
	prober := &fakeProber{results: map[string]ffprobe.Result{
		"/in/clip.mp4": probeResult("matroska,webm", "h264", "aac", 1280, 720, "30/1"),
	}}
	proc := newProcessor(t, runner, prober)

	params := jobspec.TrimParams{Intervals: []jobspec.Interval{{Start: 0, End: 5}}}
	req := request(t, jobspec.OpTrim, params, "/in/clip.mp4")
	if _, err := proc.Process(context.Background(), req, nil); err != nil {
		t.Fatalf("Process: %v", err)
	}
	call := joinedCall(t, runner, 0)
	if strings.Contains(call, "-c copy") {
		t.Fatalf("cross-container trim must re-encode: %s", call)
	}
	if !strings.Contains(call, "-c:v libx264") {
		t.Fatalf("missing canonical encoder: %s", call)
	}
}

func TestExtractAudioCopyAndReencode(t *testing.T) {
	runner := &fakeRunner{}
	prober := &fakeProber{results: map[string]ffprobe.Result{
		"/in/clip.mp4": probeResult("mov,mp4,m4a,3gp,3g2,mj2", "h264", "aac", 1280, 720, "30/1"),
	}}
	proc := newProcessor(t, runner, prober)

	// aac source into ipod container: canonical codec matches, stream copy.
	req := request(t, jobspec.OpExtractAudio, jobspec.ExtractAudioParams{Format: "m4a"}, "/in/clip.mp4")
	result, err := proc.Process(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	call := joinedCall(t, runner, 0)
	if !strings.Contains(call, "-vn") || !strings.Contains(call, "-c:a copy") {
		t.Fatalf("extract args: %s", call)
	}
	if filepath.Ext(result.OutputPaths[0]) != ".m4a" {
		t.Fatalf("output = %s", result.OutputPaths[0])
	}

	// aac source into mp3 container: re-encode with libmp3lame.
	req = request(t, jobspec.OpExtractAudio, jobspec.ExtractAudioParams{Format: "mp3"}, "/in/clip.mp4")
	if _, err := proc.Process(context.Background(), req, nil); err != nil {
		t.Fatalf("Process: %v", err)
	}
	call = joinedCall(t, runner, 1)
	if !strings.Contains(call, "-c:a libmp3lame") {
		t.Fatalf("mp3 extract must use libmp3lame: %s", call)
	}
}

func TestExtractAudioWithoutAudioStream(t *testing.T) {
	runner := &fakeRunner{}
	prober := &fakeProber{results: map[string]ffprobe.Result{
		"/in/silent.mp4": probeResult("mov,mp4,m4a,3gp,3g2,mj2", "h264", "", 1280, 720, "30/1"),
	}}
	proc := newProcessor(t, runner, prober)

	req := request(t, jobspec.OpExtractAudio, jobspec.ExtractAudioParams{Format: "m4a"}, "/in/silent.mp4")
	_, err := proc.Process(context.Background(), req, nil)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestMergeUniformInputsConcatCopies(t *testing.T) {
	runner := &fakeRunner{}
	prober := &fakeProber{results: map[string]ffprobe.Result{
		"/in/a.mp4": probeResult("mov,mp4,m4a,3gp,3g2,mj2", "h264", "aac", 1280, 720, "30/1"),
		"/in/b.mp4": probeResult("mov,mp4,m4a,3gp,3g2,mj2", "h264", "aac", 1280, 720, "30/1"),
	}}
	proc := newProcessor(t, runner, prober)

	req := request(t, jobspec.OpMerge, nil, "/in/a.mp4", "/in/b.mp4")
	result, err := proc.Process(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("expected single concat pass, got %d calls", len(runner.calls))
	}
	call := joinedCall(t, runner, 0)
	if !strings.Contains(call, "-f concat") || !strings.Contains(call, "-c copy") {
		t.Fatalf("concat args: %s", call)
	}
	if filepath.Ext(result.OutputPaths[0]) != ".mp4" {
		t.Fatalf("output = %s", result.OutputPaths[0])
	}
}

func TestMergeMismatchedInputsNormalizesFirst(t *testing.T) {
	runner := &fakeRunner{}
	prober := &fakeProber{results: map[string]ffprobe.Result{
		"/in/a.mp4": probeResult("mov,mp4,m4a,3gp,3g2,mj2", "h264", "aac", 1920, 1080, "30/1"),
		"/in/b.mkv": probeResult("matroska,webm", "h264", "aac", 1280, 720, "25/1"),
	}}
	proc := newProcessor(t, runner, prober)

	req := request(t, jobspec.OpMerge, nil, "/in/a.mp4", "/in/b.mkv")
	if _, err := proc.Process(context.Background(), req, nil); err != nil {
		t.Fatalf("Process: %v", err)
	}
	// Two normalization passes plus the concat pass.
	if len(runner.calls) != 3 {
		t.Fatalf("expected 3 ffmpeg calls, got %d", len(runner.calls))
	}
	second := joinedCall(t, runner, 1)
	if !strings.Contains(second, "scale=1920:1080") || !strings.Contains(second, "fps=30:round=up") {
		t.Fatalf("second input not normalized to the first: %s", second)
	}
	last := joinedCall(t, runner, 2)
	if !strings.Contains(last, "-f concat") {
		t.Fatalf("final pass should concat: %s", last)
	}
}

func TestMergeRequiresTwoInputs(t *testing.T) {
	proc := newProcessor(t, &fakeRunner{}, &fakeProber{})
	req := request(t, jobspec.OpMerge, nil, "/in/a.mp4")
	_, err := proc.Process(context.Background(), req, nil)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestCaptionWithoutFontFails(t *testing.T) {
	runner := &fakeRunner{}
	prober := &fakeProber{results: map[string]ffprobe.Result{
		"/in/clip.mp4": probeResult("mov,mp4,m4a,3gp,3g2,mj2", "h264", "aac", 1280, 720, "30/1"),
	}}
	proc := newProcessor(t, runner, prober)

	params := jobspec.VideoCaptionParams{Text: "hello", Start: 1, End: 5}
	req := request(t, jobspec.OpCaption, params, "/in/clip.mp4")
	if _, err := proc.Process(context.Background(), req, nil); err == nil {
		t.Fatal("expected error when the configured font file is missing")
	}
}

func TestRunnerFailureSurfaces(t *testing.T) {
	runner := &fakeRunner{err: services.Wrap(services.ErrExternalTool, "ffmpeg", "run", "ffmpeg failed", nil)}
	prober := &fakeProber{results: map[string]ffprobe.Result{
		"/in/clip.mp4": probeResult("mov,mp4,m4a,3gp,3g2,mj2", "h264", "aac", 1280, 720, "30/1"),
	}}
	proc := newProcessor(t, runner, prober)

	req := request(t, jobspec.OpResolution, jobspec.ResolutionParams{Width: 640, Height: 480}, "/in/clip.mp4")
	_, err := proc.Process(context.Background(), req, nil)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("err = %v, want external tool error", err)
	}
}
