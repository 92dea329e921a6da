package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"romkeep/internal/config"
	"romkeep/internal/logging"
)

// SourceKind identifies where a plugin comes from.
type SourceKind string

const (
	SourceLocal       SourceKind = "local"
	SourcePackage     SourceKind = "package"
	SourceRemoteURL   SourceKind = "remote-url"
	SourceMarketplace SourceKind = "marketplace"
)

// Source names one plugin origin: a local directory, a package reference, a
// remote URL, or a marketplace identifier.
type Source struct {
	Kind     SourceKind
	Location string
}

// LoadError is the typed failure a loader returns. It carries the source so
// callers can report which origin failed without string matching.
type LoadError struct {
	Source Source
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("load plugin from %s %q: %s: %v", e.Source.Kind, e.Source.Location, e.Reason, e.Err)
	}
	return fmt.Sprintf("load plugin from %s %q: %s", e.Source.Kind, e.Source.Location, e.Reason)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Loader resolves plugin sources into validated plugins.
type Loader struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewLoader constructs a loader over the configured plugin directory.
func NewLoader(cfg *config.Config, logger *slog.Logger) *Loader {
	return &Loader{cfg: cfg, logger: logging.WithComponent(logger, "plugin-loader")}
}

// Load resolves one source to a manifest-validated plugin. Only local sources
// are resolvable in-process; package, remote-url, and marketplace sources
// require an out-of-band install into the plugin directory first and return a
// typed error directing the operator there.
func (l *Loader) Load(ctx context.Context, src Source) (Plugin, error) {
	switch src.Kind {
	case SourceLocal:
		return l.loadLocal(src)
	case SourcePackage, SourceRemoteURL, SourceMarketplace:
		return Plugin{}, &LoadError{
			Source: src,
			Reason: "source requires installation into the plugin directory before loading",
		}
	default:
		return Plugin{}, &LoadError{Source: src, Reason: fmt.Sprintf("unknown source kind %q", src.Kind)}
	}
}

func (l *Loader) loadLocal(src Source) (Plugin, error) {
	dir := src.Location
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(l.cfg.Plugins.Dir, dir)
	}
	data, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	if err != nil {
		return Plugin{}, &LoadError{Source: src, Reason: "manifest unreadable", Err: err}
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return Plugin{}, &LoadError{Source: src, Reason: "manifest malformed", Err: err}
	}
	if err := ValidateManifest(manifest); err != nil {
		return Plugin{}, &LoadError{Source: src, Reason: "manifest invalid", Err: err}
	}
	l.logger.Info("plugin manifest loaded",
		logging.String("plugin_id", manifest.ID),
		logging.String("plugin_type", string(manifest.Type)),
	)
	return Plugin{Manifest: manifest}, nil
}

// DiscoverLocal loads every plugin manifest found under the configured plugin
// directory. A missing directory yields no plugins.
func (l *Loader) DiscoverLocal(ctx context.Context) ([]Plugin, error) {
	entries, err := os.ReadDir(l.cfg.Plugins.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read plugin directory: %w", err)
	}

	var plugins []Plugin
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		p, err := l.Load(ctx, Source{Kind: SourceLocal, Location: entry.Name()})
		if err != nil {
			l.logger.Warn("skipping plugin", logging.String("dir", entry.Name()), logging.Error(err))
			continue
		}
		plugins = append(plugins, p)
	}
	return plugins, nil
}
