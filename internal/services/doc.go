// Package services defines shared utilities consumed by the media processors
// and external tool integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, chat IDs, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that keep failure
//     classification consistent across processors.
//   - ChatMessage, which converts internal errors into text safe to send back
//     to a conversation.
//
// Use these helpers when wiring new processing logic so operational behaviour
// (error handling, observability, user-facing messaging) stays uniform across
// the pipeline.
package services
