// Package services provides error classification and context plumbing shared
// by every pipeline phase and the batch manager.
package services
