package api

import (
	"time"

	"romkeep/internal/batch"
)

// Progress mirrors a job's processed/total counters.
type Progress struct {
	Processed int `json:"processed"`
	Total     int `json:"total"`
}

// JobStatus is the wire form of a batch job snapshot.
type JobStatus struct {
	JobID       string     `json:"jobId"`
	Status      string     `json:"status"`
	Progress    Progress   `json:"progress"`
	Errors      []string   `json:"errors,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// FromSnapshot converts a live job snapshot to its wire form.
func FromSnapshot(snap batch.Snapshot) JobStatus {
	status := JobStatus{
		JobID:     snap.JobID,
		Status:    string(snap.Status),
		Progress:  Progress{Processed: snap.Progress.Processed, Total: snap.Progress.Total},
		CreatedAt: snap.CreatedAt,
	}
	if len(snap.Errors) > 0 {
		status.Errors = snap.Errors
	}
	if !snap.StartedAt.IsZero() {
		started := snap.StartedAt
		status.StartedAt = &started
	}
	if !snap.CompletedAt.IsZero() {
		completed := snap.CompletedAt
		status.CompletedAt = &completed
	}
	return status
}

// UploadResponse reports the outcome of a synchronous single-file upload.
type UploadResponse struct {
	Success  bool   `json:"success"`
	Platform string `json:"platform,omitempty"`
	Filename string `json:"filename,omitempty"`
	Hash     string `json:"hash,omitempty"`
	Error    string `json:"error,omitempty"`
}

// BatchUploadResponse acknowledges an admitted batch.
type BatchUploadResponse struct {
	JobID string `json:"jobId"`
}

// DaemonStatus reports daemon runtime information.
type DaemonStatus struct {
	Running       bool   `json:"running"`
	PID           int    `json:"pid"`
	LockFilePath  string `json:"lockFilePath"`
	HistoryDBPath string `json:"historyDbPath,omitempty"`
	Platforms     int    `json:"platforms"`
	LiveJobs      int    `json:"liveJobs"`
	Plugins       int    `json:"plugins"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}
