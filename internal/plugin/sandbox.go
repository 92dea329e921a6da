package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"romkeep/internal/logging"
	"romkeep/internal/services"
)

// State is a sandboxed plugin's execution state.
type State string

const (
	StateIdle       State = "idle"
	StateRunning    State = "running"
	StateTerminated State = "terminated"
)

// Task is one unit of plugin work executed inside the sandbox.
type Task func(ctx context.Context) error

type sandboxEntry struct {
	state  State
	cancel context.CancelFunc
	done   chan struct{}
}

// Sandbox executes plugin work on its own goroutine with a
// running/idle/terminated lifecycle per plugin id, so a slow or misbehaving
// plugin can be observed and terminated without blocking the batch loop.
// Termination is cooperative: cancel, then join.
type Sandbox struct {
	mu      sync.Mutex
	entries map[string]*sandboxEntry
	logger  *slog.Logger
}

// NewSandbox constructs an empty sandbox.
func NewSandbox(logger *slog.Logger) *Sandbox {
	return &Sandbox{
		entries: make(map[string]*sandboxEntry),
		logger:  logging.WithComponent(logger, "sandbox"),
	}
}

// State returns the plugin's current execution state. Unknown ids are idle.
func (s *Sandbox) State(pluginID string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.entries[pluginID]; ok {
		return entry.state
	}
	return StateIdle
}

// Execute runs the task on its own goroutine and waits for it to finish or
// for the context to end. The plugin is running for the duration and returns
// to idle afterwards. A terminated plugin refuses work; so does a plugin that
// is already mid-execution.
func (s *Sandbox) Execute(ctx context.Context, pluginID string, task Task) error {
	s.mu.Lock()
	if entry, ok := s.entries[pluginID]; ok {
		switch entry.state {
		case StateTerminated:
			s.mu.Unlock()
			return services.Wrap(services.ErrValidation, "plugin", "execute",
				fmt.Sprintf("plugin %q has been terminated", pluginID), nil)
		case StateRunning:
			s.mu.Unlock()
			return services.Wrap(services.ErrTransient, "plugin", "execute",
				fmt.Sprintf("plugin %q is already executing", pluginID), nil)
		}
	}
	taskCtx, cancel := context.WithCancel(ctx)
	entry := &sandboxEntry{state: StateRunning, cancel: cancel, done: make(chan struct{})}
	s.entries[pluginID] = entry
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		defer close(entry.done)
		errCh <- task(taskCtx)
	}()

	var err error
	select {
	case err = <-errCh:
	case <-taskCtx.Done():
		// Cancelled by the caller or by Terminate; join the goroutine.
		<-entry.done
		err = <-errCh
		if err == nil {
			err = taskCtx.Err()
		}
	}
	cancel()

	s.mu.Lock()
	if entry.state != StateTerminated {
		entry.state = StateIdle
	}
	s.mu.Unlock()

	if err != nil {
		return services.Wrap(services.ErrExternalTool, "plugin", "execute",
			fmt.Sprintf("plugin %q", pluginID), err)
	}
	return nil
}

// Terminate cancels any in-flight execution, waits for it to exit, and marks
// the plugin terminated. Terminated plugins never run again in this process.
func (s *Sandbox) Terminate(pluginID string) error {
	s.mu.Lock()
	entry, ok := s.entries[pluginID]
	if !ok {
		entry = &sandboxEntry{state: StateTerminated}
		s.entries[pluginID] = entry
		s.mu.Unlock()
		return nil
	}
	running := entry.state == StateRunning
	entry.state = StateTerminated
	cancel := entry.cancel
	done := entry.done
	s.mu.Unlock()

	if running && cancel != nil {
		cancel()
		<-done
	}
	s.logger.Info("plugin terminated", logging.String("plugin_id", pluginID))
	return nil
}
