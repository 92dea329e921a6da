package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"romkeep/internal/api"
	"romkeep/internal/batch"
	"romkeep/internal/config"
	"romkeep/internal/logging"
	"romkeep/internal/services"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logging.WithComponent(logger, "api"),
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/roms/upload", srv.handleUpload)
	mux.HandleFunc("/api/roms/batch-upload", srv.handleBatchUpload)
	mux.HandleFunc("/api/roms/batch-status/", srv.handleBatchStatus)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// addr returns the bound listen address, empty before start.
func (s *apiServer) addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	st := s.daemon.Status()
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:       st.Running,
		PID:           st.PID,
		LockFilePath:  st.LockFilePath,
		HistoryDBPath: st.HistoryDBPath,
		Platforms:     st.Platforms,
		LiveJobs:      st.LiveJobs,
		Plugins:       st.Plugins,
	})
}

// handleUpload ingests one file synchronously: the response arrives after the
// file has traversed the whole pipeline.
func (s *apiServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "missing multipart field \"file\"")
		return
	}
	defer file.Close()

	path, size, err := s.saveUpload(file, header.Filename)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := s.daemon.orchestrator.Process(r.Context(), path, size)
	if out.Failed() {
		s.writeJSON(w, http.StatusUnprocessableEntity, api.UploadResponse{
			Success: false,
			Error:   out.Err().Error(),
		})
		return
	}
	s.writeJSON(w, http.StatusOK, api.UploadResponse{
		Success:  true,
		Platform: out.ROM.Platform,
		Filename: out.ROM.Filename,
		Hash:     out.ROM.Hash,
	})
}

// handleBatchUpload admits a multi-file batch. Admission is all-or-nothing:
// a rejected batch removes any files already spooled to the inbox.
func (s *apiServer) handleBatchUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed multipart request")
		return
	}
	parts := r.MultipartForm.File["files"]
	if len(parts) == 0 {
		s.writeError(w, http.StatusBadRequest, "no files in batch")
		return
	}

	var inputs []batch.FileInput
	for _, header := range parts {
		part, err := header.Open()
		if err != nil {
			s.discard(inputs)
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("open part %q", header.Filename))
			return
		}
		path, size, err := s.saveUpload(part, header.Filename)
		part.Close()
		if err != nil {
			s.discard(inputs)
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		inputs = append(inputs, batch.FileInput{Path: path, Size: size})
	}

	jobID, err := s.daemon.manager.Submit(r.Context(), inputs)
	if err != nil {
		s.discard(inputs)
		status := http.StatusBadRequest
		if !errors.Is(err, services.ErrValidation) {
			status = http.StatusServiceUnavailable
		}
		s.writeError(w, status, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.BatchUploadResponse{JobID: jobID})
}

func (s *apiServer) handleBatchStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jobID := strings.TrimPrefix(r.URL.Path, "/api/roms/batch-status/")
	if jobID == "" || strings.Contains(jobID, "/") {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}

	if snap, ok := s.daemon.manager.Snapshot(jobID); ok {
		s.writeJSON(w, http.StatusOK, api.FromSnapshot(snap))
		return
	}
	if history := s.daemon.history; history != nil {
		if rec, err := history.Get(r.Context(), jobID); err == nil {
			status := api.JobStatus{
				JobID:     rec.JobID,
				Status:    rec.Status,
				Progress:  api.Progress{Processed: rec.Processed, Total: rec.Total},
				Errors:    rec.Errors,
				CreatedAt: rec.CreatedAt,
			}
			if !rec.StartedAt.IsZero() {
				started := rec.StartedAt
				status.StartedAt = &started
			}
			if !rec.CompletedAt.IsZero() {
				completed := rec.CompletedAt
				status.CompletedAt = &completed
			}
			s.writeJSON(w, http.StatusOK, status)
			return
		}
	}
	s.writeError(w, http.StatusNotFound, "job not found")
}

// saveUpload spools an uploaded part into the inbox under its base filename.
func (s *apiServer) saveUpload(src multipart.File, filename string) (string, int64, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", 0, errors.New("upload has no usable filename")
	}
	dest := filepath.Join(s.daemon.cfg.Paths.InboxDir, name)

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", 0, fmt.Errorf("spool upload: %w", err)
	}
	size, err := io.Copy(out, src)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dest)
		return "", 0, fmt.Errorf("spool upload: %w", err)
	}
	return dest, size, nil
}

func (s *apiServer) discard(inputs []batch.FileInput) {
	for _, input := range inputs {
		_ = os.Remove(input.Path)
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}
