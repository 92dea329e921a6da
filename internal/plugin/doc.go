// Package plugin manages phase plugins: manifest validation, the id and
// type registry, source loading, and sandboxed execution.
package plugin
