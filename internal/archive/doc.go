// Package archive implements content-addressed archive storage: atomic
// copies into the archive tree, append-only per-platform manifests guarded
// by file locks, and the metadata sidecar store.
package archive
