// Package config loads, normalizes, and validates mediabot configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// TELEGRAM_BOT_TOKEN. The Config type centralizes every knob the daemon and
// CLI need, allowing upload/output directories and external service
// credentials to be discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
