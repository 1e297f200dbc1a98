// Package logging wraps log/slog with the attribute helpers, standardized
// field keys, and context-derived fields the rest of the repository uses.
// Handlers are selected by config: console (text) or json, optionally teed
// to a log file.
package logging
