package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	InboxDir     string `toml:"inbox_dir"`
	StagingDir   string `toml:"staging_dir"`
	ArchiveDir   string `toml:"archive_dir"`
	LibraryDir   string `toml:"library_dir"`
	BiosDir      string `toml:"bios_dir"`
	ThumbnailDir string `toml:"thumbnail_dir"`
	LogDir       string `toml:"log_dir"`
	APIBind      string `toml:"api_bind"`
}

// Batch contains admission policy and worker settings for batch jobs.
type Batch struct {
	MaxBatchSize      int      `toml:"max_batch_size"`
	MaxFileSizeMiB    int64    `toml:"max_file_size_mib"`
	AllowedExtensions []string `toml:"allowed_extensions"`
	ContinueOnError   bool     `toml:"continue_on_error"`
	QueuePollInterval int      `toml:"queue_poll_interval"`
	HistoryEnabled    bool     `toml:"history_enabled"`
}

// Pipeline contains per-phase behavior toggles.
type Pipeline struct {
	CHDConversion     bool `toml:"chd_conversion"`
	VerifyCopies      bool `toml:"verify_copies"`
	HardLinkPromotion bool `toml:"hard_link_promotion"`
}

// Playlist contains defaults applied to generated playlist entries when the
// platform table does not override them.
type Playlist struct {
	DefaultCoreName string `toml:"default_core_name"`
	DefaultCorePath string `toml:"default_core_path"`
}

// Plugins contains plugin discovery configuration.
type Plugins struct {
	Dir string `toml:"dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for romkeep.
//
// Configuration sections by subsystem:
//   - Paths: ingestion, archive, and library directories plus the API bind
//   - Batch: admission policy ceilings and batch worker behavior
//   - Pipeline: CHD conversion and copy/link toggles
//   - Playlist: defaults for generated playlist entries
//   - Plugins: local plugin discovery directory
//   - Logging: log format, level, and retention
type Config struct {
	Paths    Paths    `toml:"paths"`
	Batch    Batch    `toml:"batch"`
	Pipeline Pipeline `toml:"pipeline"`
	Playlist Playlist `toml:"playlist"`
	Plugins  Plugins  `toml:"plugins"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/romkeep/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("romkeep.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// LibraryDir is created on a best-effort basis so the daemon can run when
// external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.InboxDir, c.Paths.StagingDir, c.Paths.ArchiveDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	for _, dir := range []string{c.Paths.LibraryDir, c.Paths.BiosDir, c.Paths.ThumbnailDir} {
		if strings.TrimSpace(dir) != "" {
			_ = os.MkdirAll(dir, 0o755)
		}
	}
	return nil
}

// MaxFileSizeBytes returns the per-file admission ceiling in bytes.
func (c *Config) MaxFileSizeBytes() int64 {
	return c.Batch.MaxFileSizeMiB * 1024 * 1024
}

// QuarantineDir returns the directory that holds ROMs waiting on missing BIOS files.
func (c *Config) QuarantineDir() string {
	return filepath.Join(c.Paths.StagingDir, "quarantine")
}

// ManifestDir returns the directory holding per-platform manifest files.
func (c *Config) ManifestDir() string {
	return filepath.Join(c.Paths.ArchiveDir, "manifests")
}

// PlaylistDir returns the directory holding per-platform playlist files.
func (c *Config) PlaylistDir() string {
	return filepath.Join(c.Paths.LibraryDir, "playlists")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
