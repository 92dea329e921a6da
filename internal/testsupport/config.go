package testsupport

import (
	"path/filepath"
	"testing"

	"romkeep/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.InboxDir = filepath.Join(base, "inbox")
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.ArchiveDir = filepath.Join(base, "archive")
	cfg.Paths.LibraryDir = filepath.Join(base, "library")
	cfg.Paths.BiosDir = filepath.Join(base, "bios")
	cfg.Paths.ThumbnailDir = filepath.Join(base, "thumbnails")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Plugins.Dir = filepath.Join(base, "plugins")

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithContinueOnError sets the batch continue-on-error mode on the test config.
func WithContinueOnError(enabled bool) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Batch.ContinueOnError = enabled
	}
}

// WithCHDConversion toggles the CHD conversion capability gate.
func WithCHDConversion(enabled bool) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Pipeline.CHDConversion = enabled
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}
