// Package jobstore journals finished batch jobs to SQLite so the CLI can show
// history across daemon restarts.
package jobstore
