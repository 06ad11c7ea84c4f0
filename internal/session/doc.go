// Package session tracks per-chat conversation state. The original chat
// flow is a linear progression — pick a media kind, upload, pick an
// operation, type parameters — and each chat's position in it is persisted
// in SQLite so a daemon restart does not strand conversations mid-flow.
package session
