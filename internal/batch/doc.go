// Package batch admits multi-file submissions, runs them serially through
// the pipeline on a single worker loop, and tracks job state in memory with
// optional history journaling.
package batch
