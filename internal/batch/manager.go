package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"romkeep/internal/config"
	"romkeep/internal/jobstore"
	"romkeep/internal/logging"
	"romkeep/internal/pipeline"
	"romkeep/internal/policy"
	"romkeep/internal/services"
)

// Status is a batch job lifecycle state. Transitions are monotonic:
// queued, processing, then completed or failed, never backwards.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// FileInput is one file submitted in a batch.
type FileInput struct {
	Path string
	Size int64
}

// Progress counts attempted files against the batch total.
type Progress struct {
	Processed int `json:"processed"`
	Total     int `json:"total"`
}

// Snapshot is a point-in-time copy of a job record. Reads never block the
// worker loop beyond the copy under the table mutex.
type Snapshot struct {
	JobID       string
	Status      Status
	Progress    Progress
	Errors      []string
	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
}

type job struct {
	id          string
	status      Status
	progress    Progress
	errors      []string
	files       []FileInput
	createdAt   time.Time
	startedAt   time.Time
	completedAt time.Time
}

// Processor runs one file through the full pipeline. Satisfied by
// pipeline.Orchestrator.
type Processor interface {
	Process(ctx context.Context, path string, size int64) *pipeline.Outcome
}

// Journal records terminal jobs for history. Satisfied by jobstore.Store.
type Journal interface {
	Record(ctx context.Context, rec jobstore.Record) error
}

// Manager owns the in-memory job table and the serial worker loop. Files
// inside a job are processed strictly one at a time so peak resource usage
// stays bounded and error ordering is deterministic.
type Manager struct {
	cfg       *config.Config
	processor Processor
	journal   Journal
	logger    *slog.Logger

	mu   sync.Mutex
	jobs map[string]*job

	queue  chan string
	done   chan struct{}
	closed sync.Once
}

// NewManager constructs the batch manager. journal may be nil when history is
// disabled.
func NewManager(cfg *config.Config, processor Processor, journal Journal, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:       cfg,
		processor: processor,
		journal:   journal,
		logger:    logging.WithComponent(logger, "batch"),
		jobs:      make(map[string]*job),
		queue:     make(chan string, 256),
		done:      make(chan struct{}),
	}
}

// Start launches the worker loop. It returns once the loop is running and
// stops when ctx is cancelled or Close is called.
func (m *Manager) Start(ctx context.Context) {
	go m.run(ctx)
}

// Close stops accepting work and signals the worker loop to exit after the
// current job.
func (m *Manager) Close() {
	m.closed.Do(func() { close(m.done) })
}

// Submit admits a batch. Admission is all-or-nothing: the whole batch is
// checked against policy before any job state exists, so a rejected batch
// leaves no trace. On admission the job id returns immediately and processing
// happens on the worker loop.
func (m *Manager) Submit(ctx context.Context, files []FileInput) (string, error) {
	descriptors := make([]policy.FileDescriptor, len(files))
	for i, f := range files {
		descriptors[i] = policy.FileDescriptor{Name: f.Path, Size: f.Size}
	}
	if err := policy.Validate(descriptors, policy.FromConfig(m.cfg)); err != nil {
		return "", err
	}

	j := &job{
		id:        uuid.NewString(),
		status:    StatusQueued,
		progress:  Progress{Total: len(files)},
		files:     files,
		createdAt: time.Now().UTC(),
	}

	m.mu.Lock()
	m.jobs[j.id] = j
	m.mu.Unlock()

	select {
	case m.queue <- j.id:
	default:
		m.mu.Lock()
		delete(m.jobs, j.id)
		m.mu.Unlock()
		return "", services.Wrap(services.ErrTransient, "batch", "submit", "job queue is full", nil)
	}

	logging.WithContext(ctx, m.logger).Info("batch admitted",
		logging.String(logging.FieldJobID, j.id),
		logging.Int("files", len(files)),
	)
	return j.id, nil
}

// Snapshot returns a copy of the job record, or false for an unknown id.
func (m *Manager) Snapshot(jobID string) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return Snapshot{}, false
	}
	return j.snapshot(), true
}

// Snapshots returns every live job, most recent first.
func (m *Manager) Snapshots() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Snapshot, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, j.snapshot())
	}
	for i := 0; i < len(out); i++ {
		for k := i + 1; k < len(out); k++ {
			if out[k].CreatedAt.After(out[i].CreatedAt) {
				out[i], out[k] = out[k], out[i]
			}
		}
	}
	return out
}

func (j *job) snapshot() Snapshot {
	errs := make([]string, len(j.errors))
	copy(errs, j.errors)
	return Snapshot{
		JobID:       j.id,
		Status:      j.status,
		Progress:    j.progress,
		Errors:      errs,
		CreatedAt:   j.createdAt,
		StartedAt:   j.startedAt,
		CompletedAt: j.completedAt,
	}
}

func (m *Manager) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case jobID := <-m.queue:
			m.process(ctx, jobID)
		}
	}
}

func (m *Manager) process(ctx context.Context, jobID string) {
	m.mu.Lock()
	j, ok := m.jobs[jobID]
	if !ok || j.status != StatusQueued {
		m.mu.Unlock()
		return
	}
	j.status = StatusProcessing
	j.startedAt = time.Now().UTC()
	files := j.files
	m.mu.Unlock()

	ctx = services.WithJobID(ctx, jobID)
	logger := logging.WithContext(ctx, m.logger)
	logger.Info("batch processing started", logging.Int("files", len(files)))

	continueOnError := m.cfg.Batch.ContinueOnError
	for _, f := range files {
		out := m.processor.Process(ctx, f.Path, f.Size)
		if out.Failed() {
			msg := fmt.Sprintf("%s: %v", f.Path, out.Err())
			if services.IsFatal(out.Err()) {
				// Configuration errors poison the whole job; continueOnError
				// only governs per-file failures.
				m.finish(ctx, j, StatusFailed, msg)
				return
			}
			if !continueOnError {
				// The failing file's slot is not counted; remaining files
				// are left untouched.
				m.finish(ctx, j, StatusFailed, msg)
				return
			}
			m.mu.Lock()
			j.progress.Processed++
			j.errors = append(j.errors, msg)
			m.mu.Unlock()
			continue
		}
		m.mu.Lock()
		j.progress.Processed++
		m.mu.Unlock()
	}

	// Under continue-on-error a batch where every file failed still
	// completes: no file blocked processing.
	m.finish(ctx, j, StatusCompleted, "")
}

func (m *Manager) finish(ctx context.Context, j *job, status Status, errMsg string) {
	m.mu.Lock()
	if j.status.Terminal() {
		m.mu.Unlock()
		return
	}
	j.status = status
	j.completedAt = time.Now().UTC()
	if errMsg != "" {
		j.errors = append(j.errors, errMsg)
	}
	snap := j.snapshot()
	m.mu.Unlock()

	logging.WithContext(ctx, m.logger).Info("batch finished",
		logging.String("status", string(status)),
		logging.Int("processed", snap.Progress.Processed),
		logging.Int("total", snap.Progress.Total),
		logging.Int("errors", len(snap.Errors)),
	)

	if m.journal == nil {
		return
	}
	rec := jobstore.Record{
		JobID:       snap.JobID,
		Status:      string(snap.Status),
		Processed:   snap.Progress.Processed,
		Total:       snap.Progress.Total,
		Errors:      snap.Errors,
		CreatedAt:   snap.CreatedAt,
		StartedAt:   snap.StartedAt,
		CompletedAt: snap.CompletedAt,
	}
	if err := m.journal.Record(ctx, rec); err != nil {
		logging.WithContext(ctx, m.logger).Warn("journal write failed", logging.Error(err))
	}
}
