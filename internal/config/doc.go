// Package config loads and validates the TOML configuration file shared by
// the CLI and the daemon. Defaults live in defaults.go; the embedded
// sample_config.toml documents every key.
package config
