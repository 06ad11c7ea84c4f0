// Package daemon coordinates the long-running mediabot process.
//
// It wires configuration, queue storage, the workflow manager, and the
// Telegram update poll loop into a single lifecycle with flock-based locking
// to prevent multiple instances. The daemon exposes queue maintenance
// helpers for IPC callers, serves a read-only HTTP status API, runs the
// retention sweeper, and owns the start/stop notifications.
//
// Keep orchestration logic here: conversation handling lives in dialog and
// job execution in workflow; the daemon focuses on startup, shutdown, and
// high level coordination.
package daemon
