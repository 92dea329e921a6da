// Package daemon wires the ingestion pipeline, batch worker, plugin
// registry, and HTTP API into the long-running romkeepd process.
package daemon
