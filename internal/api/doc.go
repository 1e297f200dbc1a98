// Package api defines wire-format types and converters for the HTTP API and
// the CLI renderers. It translates internal atom, segment, and index models
// into transport-friendly DTOs so consumers never couple to internal types.
//
// DTOs use camelCase JSON tags and RFC3339 timestamps with milliseconds.
// Internal enums (segment status, run state) are exposed as lowercase
// strings. ProjectService is the shared read-only query layer for one
// project directory.
package api
