// Package config loads, normalizes, and validates the TOML configuration
// that drives the ingestion pipeline and daemon.
package config
