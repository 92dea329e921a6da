package validation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"romkeep/internal/archive"
	"romkeep/internal/config"
	"romkeep/internal/fileutil"
	"romkeep/internal/logging"
	"romkeep/internal/platform"
	"romkeep/internal/rom"
	"romkeep/internal/services"
)

// Validator performs the per-ROM validation checks. Each operation is
// independently callable; the orchestrator composes them in order.
type Validator struct {
	cfg       *config.Config
	manifests *archive.ManifestStore
	logger    *slog.Logger
}

// NewValidator constructs the validation phase over the live manifest store,
// which keeps duplicate checks authoritative against in-process appends.
func NewValidator(cfg *config.Config, manifests *archive.ManifestStore, logger *slog.Logger) *Validator {
	return &Validator{cfg: cfg, manifests: manifests, logger: logging.WithComponent(logger, "validator")}
}

// GenerateHash computes the SHA-256 content hash over the full byte stream.
// The same bytes always yield the same hash regardless of filename or path.
// The hash is recorded on the ROM and returned.
func (v *Validator) GenerateHash(ctx context.Context, r *rom.File) (string, error) {
	if r == nil {
		return "", services.Wrap(services.ErrValidation, "validate", "hash", "nil ROM record", nil)
	}
	f, err := os.Open(r.Path)
	if err != nil {
		return "", services.Wrap(services.ErrStorage, "validate", "hash", fmt.Sprintf("open %q", r.Filename), err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", services.Wrap(services.ErrStorage, "validate", "hash", fmt.Sprintf("read %q", r.Filename), err)
	}
	r.Hash = hex.EncodeToString(h.Sum(nil))
	return r.Hash, nil
}

// CheckDuplicate reports whether the ROM's content hash is already present in
// the platform's manifest, including entries appended during this process.
func (v *Validator) CheckDuplicate(ctx context.Context, r *rom.File) (bool, error) {
	if r == nil || r.Hash == "" {
		return false, services.Wrap(services.ErrValidation, "validate", "dedup", "ROM has no content hash; run hashing first", nil)
	}
	return v.manifests.HasHash(r.Platform, r.Hash), nil
}

// ValidateIntegrity performs structural sanity checks appropriate to the
// container: the file must exist, be non-empty, and meet the platform's
// minimum size.
func (v *Validator) ValidateIntegrity(ctx context.Context, r *rom.File) error {
	if r == nil {
		return services.Wrap(services.ErrValidation, "validate", "integrity", "nil ROM record", nil)
	}
	info, err := os.Stat(r.Path)
	if err != nil {
		return services.Wrap(services.ErrStorage, "validate", "integrity", fmt.Sprintf("stat %q", r.Filename), err)
	}
	if info.Size() == 0 {
		return services.Wrap(services.ErrValidation, "validate", "integrity", fmt.Sprintf("%q is empty", r.Filename), nil)
	}
	def, ok := platform.Lookup(r.Platform)
	if !ok {
		return services.Wrap(services.ErrConfiguration, "validate", "integrity", fmt.Sprintf("unknown platform %q", r.Platform), nil)
	}
	if def.MinSize > 0 && info.Size() < def.MinSize {
		return services.Wrap(services.ErrValidation, "validate", "integrity",
			fmt.Sprintf("%q is %d bytes, below the %d byte minimum for %s", r.Filename, info.Size(), def.MinSize, def.ID), nil)
	}
	r.Size = info.Size()
	return nil
}

var cueFilePattern = regexp.MustCompile(`(?m)^\s*FILE\s+"([^"]+)"`)

// CheckCompanionFiles verifies that every companion a container references is
// present, returning their paths. For cue sheets the referenced track files
// are required; their absence is a failure, not a warning. Formats without
// companions return an empty list.
func (v *Validator) CheckCompanionFiles(ctx context.Context, r *rom.File) ([]string, error) {
	if r == nil {
		return nil, services.Wrap(services.ErrValidation, "validate", "companions", "nil ROM record", nil)
	}
	if r.Extension != ".cue" {
		return nil, nil
	}

	data, err := os.ReadFile(r.Path)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "validate", "companions", fmt.Sprintf("read cue sheet %q", r.Filename), err)
	}

	matches := cueFilePattern.FindAllStringSubmatch(string(data), -1)
	if len(matches) == 0 {
		return nil, services.Wrap(services.ErrValidation, "validate", "companions",
			fmt.Sprintf("cue sheet %q references no track files", r.Filename), nil)
	}

	dir := filepath.Dir(r.Path)
	var paths []string
	var missing []string
	for _, match := range matches {
		companion := filepath.Join(dir, match[1])
		if _, err := os.Stat(companion); err != nil {
			missing = append(missing, match[1])
			continue
		}
		paths = append(paths, companion)
	}
	if len(missing) > 0 {
		return nil, services.Wrap(services.ErrValidation, "validate", "companions",
			fmt.Sprintf("cue sheet %q is missing companion files: %s", r.Filename, strings.Join(missing, ", ")), nil)
	}
	return paths, nil
}

// ValidateBIOSDependencies confirms every BIOS file the platform requires is
// present in the BIOS directory. On a missing BIOS the ROM is quarantined
// rather than rejected outright: the staged file moves to the quarantine
// area so the operator can supply the BIOS and re-run the batch.
func (v *Validator) ValidateBIOSDependencies(ctx context.Context, r *rom.File) error {
	if r == nil {
		return services.Wrap(services.ErrValidation, "validate", "bios", "nil ROM record", nil)
	}
	def, ok := platform.Lookup(r.Platform)
	if !ok {
		return services.Wrap(services.ErrConfiguration, "validate", "bios", fmt.Sprintf("unknown platform %q", r.Platform), nil)
	}
	if len(def.RequiredBIOS) == 0 {
		return nil
	}

	var missing []string
	for _, name := range def.RequiredBIOS {
		if _, err := os.Stat(filepath.Join(v.cfg.Paths.BiosDir, name)); err != nil {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	quarantine := filepath.Join(v.cfg.QuarantineDir(), r.Platform, r.Filename)
	if err := fileutil.MoveFile(r.Path, quarantine); err != nil {
		return services.Wrap(services.ErrStorage, "validate", "bios", fmt.Sprintf("quarantine %q", r.Filename), err)
	}
	r.Path = quarantine

	logging.WithContext(ctx, v.logger).Warn("ROM quarantined pending BIOS",
		logging.String("quarantine_path", quarantine),
		logging.String("missing_bios", strings.Join(missing, ", ")),
		logging.String(logging.FieldEventType, "bios_quarantine"),
		logging.String(logging.FieldErrorHint, "place the BIOS files in the bios directory and re-run the batch"),
	)
	return services.Wrap(services.ErrValidation, "validate", "bios",
		fmt.Sprintf("%q quarantined: missing required BIOS files: %s", r.Filename, strings.Join(missing, ", ")), nil)
}

// ValidateNaming confirms the filename is non-empty, free of path-traversal
// sequences, and matches the platform naming convention. The extension is
// lower-cased before the check because validation runs ahead of the
// normalizer, which owns canonical casing.
func (v *Validator) ValidateNaming(ctx context.Context, r *rom.File) error {
	if r == nil {
		return services.Wrap(services.ErrValidation, "validate", "naming", "nil ROM record", nil)
	}
	name := r.Filename
	if strings.TrimSpace(name) == "" {
		return services.Wrap(services.ErrValidation, "validate", "naming", "filename is empty", nil)
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return services.Wrap(services.ErrValidation, "validate", "naming",
			fmt.Sprintf("filename %q contains path separators or traversal sequences", name), nil)
	}
	ext := filepath.Ext(name)
	if !platform.ValidFilename(strings.TrimSuffix(name, ext) + strings.ToLower(ext)) {
		return services.Wrap(services.ErrValidation, "validate", "naming",
			fmt.Sprintf("filename %q does not match the platform naming convention", name), nil)
	}
	return nil
}
