package pipeline

import (
	"context"

	"romkeep/internal/archive"
	"romkeep/internal/rom"
)

// Phase identifies one stage of the ingestion pipeline.
type Phase string

const (
	PhaseClassify  Phase = "classify"
	PhaseValidate  Phase = "validate"
	PhaseNormalize Phase = "normalize"
	PhaseArchive   Phase = "archive"
	PhasePromote   Phase = "promote"
)

// Phases lists the pipeline stages in execution order.
func Phases() []Phase {
	return []Phase{PhaseClassify, PhaseValidate, PhaseNormalize, PhaseArchive, PhasePromote}
}

// Result records one phase's outcome for a single ROM.
type Result struct {
	Phase Phase
	OK    bool
	Err   error
	Notes []string
}

// Outcome is the full pipeline trace for one ROM. Results holds one entry per
// attempted phase; a failed phase is the last entry.
type Outcome struct {
	ROM         *rom.File
	Results     []Result
	ArchivePath string
	LibraryPath string
}

// Failed reports whether any attempted phase failed.
func (o *Outcome) Failed() bool {
	for _, res := range o.Results {
		if !res.OK {
			return true
		}
	}
	return false
}

// Err returns the terminal error of the first failed phase, or nil.
func (o *Outcome) Err() error {
	for _, res := range o.Results {
		if !res.OK {
			return res.Err
		}
	}
	return nil
}

// ClassifyPhase assigns platforms and stages files for validation.
type ClassifyPhase interface {
	Classify(path string, size int64) (*rom.File, error)
	StageForValidation(ctx context.Context, r *rom.File) error
}

// ValidatePhase performs the per-ROM validation checks.
type ValidatePhase interface {
	ValidateNaming(ctx context.Context, r *rom.File) error
	ValidateIntegrity(ctx context.Context, r *rom.File) error
	GenerateHash(ctx context.Context, r *rom.File) (string, error)
	CheckDuplicate(ctx context.Context, r *rom.File) (bool, error)
	CheckCompanionFiles(ctx context.Context, r *rom.File) ([]string, error)
	ValidateBIOSDependencies(ctx context.Context, r *rom.File) error
}

// NormalizePhase canonicalizes names, gates conversion, and builds metadata.
type NormalizePhase interface {
	ApplyNamingPattern(ctx context.Context, r *rom.File) error
	ConvertToCHD(ctx context.Context, r *rom.File) (string, error)
	GenerateMetadata(ctx context.Context, r *rom.File) (rom.Metadata, error)
}

// ArchivePhase moves ROMs into archive storage and commits manifests.
type ArchivePhase interface {
	ArchiveROM(ctx context.Context, r *rom.File) (string, error)
	WriteManifest(ctx context.Context, r *rom.File) (archive.ManifestEntry, error)
	StoreMetadata(ctx context.Context, r *rom.File, meta rom.Metadata) error
}

// PromotePhase publishes archived ROMs into the runtime library.
type PromotePhase interface {
	PromoteROM(ctx context.Context, r *rom.File) (string, error)
	UpdatePlaylist(ctx context.Context, r *rom.File, libraryPath string) error
	SyncThumbnails(ctx context.Context, r *rom.File) (bool, error)
}

// Overrides carries phase implementations supplied by plugins. A nil field
// keeps the built-in phase.
type Overrides struct {
	Classify  ClassifyPhase
	Validate  ValidatePhase
	Normalize NormalizePhase
	Archive   ArchivePhase
	Promote   PromotePhase
}
