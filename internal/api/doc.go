// Package api defines the JSON types served over the daemon's HTTP surface.
package api
