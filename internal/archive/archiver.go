package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"romkeep/internal/config"
	"romkeep/internal/fileutil"
	"romkeep/internal/logging"
	"romkeep/internal/rom"
	"romkeep/internal/services"
)

// MetaSourcePath is the ROM metadata key recording the pre-archive path.
const MetaSourcePath = "source_path"

// MetaArchivedAt is the ROM metadata key recording the archival timestamp.
const MetaArchivedAt = "archived_at"

// Archiver copies normalized ROMs into content-addressed archive storage and
// appends manifest entries.
type Archiver struct {
	cfg       *config.Config
	manifests *ManifestStore
	logger    *slog.Logger
}

// NewArchiver constructs the archive phase over an opened manifest store.
func NewArchiver(cfg *config.Config, manifests *ManifestStore, logger *slog.Logger) *Archiver {
	return &Archiver{cfg: cfg, manifests: manifests, logger: logging.WithComponent(logger, "archiver")}
}

// Manifests exposes the underlying manifest store for duplicate checks.
func (a *Archiver) Manifests() *ManifestStore {
	return a.manifests
}

// ArchiveROM copies the staged file to <archive>/<platform>/<filename> using
// copy-then-rename so a crash mid-copy never leaves a partial file visible at
// the destination. On success the ROM's path points at the archive copy and
// the staged file is removed; later phases work from the archive. Returns the
// destination path.
func (a *Archiver) ArchiveROM(ctx context.Context, r *rom.File) (string, error) {
	if r == nil {
		return "", services.Wrap(services.ErrValidation, "archive", "copy", "nil ROM record", nil)
	}
	if r.Platform == "" {
		return "", services.Wrap(services.ErrValidation, "archive", "copy", "ROM has no platform", nil)
	}
	logger := logging.WithContext(ctx, a.logger)

	dest := filepath.Join(a.cfg.Paths.ArchiveDir, r.Platform, r.Filename)
	source := r.Path

	var err error
	if a.cfg.Pipeline.VerifyCopies {
		err = fileutil.CopyFileVerified(source, dest)
	} else {
		err = fileutil.CopyFileAtomic(source, dest)
	}
	if err != nil {
		return "", services.Wrap(services.ErrStorage, "archive", "copy", fmt.Sprintf("archive %q", r.Filename), err)
	}

	r.SetMeta(MetaSourcePath, source)
	r.SetMeta(MetaArchivedAt, time.Now().UTC().Format(time.RFC3339))
	r.Path = dest
	if err := os.Remove(source); err != nil {
		logger.Warn("staged copy not removed", logging.String("staged_path", source), logging.Error(err))
	}
	logger.Info("archived",
		logging.String("archive_path", dest),
		logging.Int64("size", r.Size),
		logging.String(logging.FieldEventType, "archive_copied"),
	)
	return dest, nil
}

// WriteManifest appends the ROM's manifest entry under the platform lock.
// This append is the single serialization point that makes duplicate checks
// authoritative: a ROM is not archived until it commits.
func (a *Archiver) WriteManifest(ctx context.Context, r *rom.File) (ManifestEntry, error) {
	if r == nil {
		return ManifestEntry{}, services.Wrap(services.ErrValidation, "archive", "write manifest", "nil ROM record", nil)
	}
	if r.Hash == "" {
		return ManifestEntry{}, services.Wrap(services.ErrValidation, "archive", "write manifest", "ROM has no content hash", nil)
	}

	entry := ManifestEntry{
		ID:         r.ID,
		Filename:   r.Filename,
		Platform:   r.Platform,
		Hash:       r.Hash,
		Size:       r.Size,
		Extension:  r.Extension,
		ArchivedAt: time.Now().UTC(),
		Metadata:   r.Metadata,
	}
	if err := a.manifests.Append(ctx, entry); err != nil {
		return ManifestEntry{}, err
	}

	logging.WithContext(ctx, a.logger).Info("manifest appended",
		logging.String("hash", r.Hash),
		logging.String(logging.FieldEventType, "manifest_appended"),
	)
	return entry, nil
}

// StoreMetadata persists the generated metadata record keyed by ROM id,
// independent of the manifest so metadata can be regenerated or extended
// without rewriting manifest history.
func (a *Archiver) StoreMetadata(ctx context.Context, r *rom.File, meta rom.Metadata) error {
	if r == nil {
		return services.Wrap(services.ErrValidation, "archive", "store metadata", "nil ROM record", nil)
	}
	dir := filepath.Join(a.cfg.Paths.ArchiveDir, "metadata")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return services.Wrap(services.ErrStorage, "archive", "store metadata", "create metadata directory", err)
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrStorage, "archive", "store metadata", "encode metadata", err)
	}
	path := filepath.Join(dir, r.ID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return services.Wrap(services.ErrStorage, "archive", "store metadata", "write metadata", err)
	}
	return nil
}

// LoadMetadata reads a previously stored metadata record by ROM id.
func (a *Archiver) LoadMetadata(romID string) (rom.Metadata, error) {
	path := filepath.Join(a.cfg.Paths.ArchiveDir, "metadata", romID+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return rom.Metadata{}, services.Wrap(services.ErrNotFound, "archive", "load metadata", romID, nil)
		}
		return rom.Metadata{}, services.Wrap(services.ErrStorage, "archive", "load metadata", romID, err)
	}
	var meta rom.Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return rom.Metadata{}, services.Wrap(services.ErrStorage, "archive", "load metadata", "parse metadata", err)
	}
	return meta, nil
}
