// Package jobspec defines the media kinds and operations the bot offers,
// the typed parameter structs each operation consumes, and the free-text
// parameter grammar users type into the chat.
package jobspec
