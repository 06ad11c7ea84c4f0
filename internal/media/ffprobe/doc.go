// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// This package has no mediabot-specific dependencies and could be extracted
// as a standalone library.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual audio/video stream properties including frame rate
//   - Format: container-level metadata (duration, size, bitrate, format name)
//
// Primary entry point:
//   - Inspect: executes ffprobe and returns parsed Result
//
// Helper methods on Result provide first-stream lookup, canonical container
// naming, duration parsing, and bitrate extraction; Stream.FPS resolves the
// r_frame_rate fraction.
package ffprobe
