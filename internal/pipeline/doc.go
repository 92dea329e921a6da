// Package pipeline drives a ROM through the ingestion phases in order,
// short-circuiting on the first failure. Phase implementations are supplied
// as interfaces so plugins can override individual phases.
package pipeline
