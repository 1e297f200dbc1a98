// Package daemon hosts the background analysis service. It enforces
// single-instance execution with a lock file, lazily opens per-project
// store bundles under the configured data directory, and exposes project
// state and analysis control over a local HTTP API.
package daemon
