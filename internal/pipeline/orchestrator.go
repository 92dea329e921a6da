package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"romkeep/internal/logging"
	"romkeep/internal/rom"
	"romkeep/internal/services"
)

// Orchestrator drives one ROM through the phase state machine
// classified, validated, normalized, archived, promoted. It advances only
// while phases succeed; the first failure is the ROM's terminal error and no
// phase is retried here.
type Orchestrator struct {
	classify  ClassifyPhase
	validate  ValidatePhase
	normalize NormalizePhase
	archive   ArchivePhase
	promote   PromotePhase
	logger    *slog.Logger
}

// NewOrchestrator wires the built-in phase implementations.
func NewOrchestrator(
	classify ClassifyPhase,
	validate ValidatePhase,
	normalize NormalizePhase,
	archivePhase ArchivePhase,
	promote PromotePhase,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		classify:  classify,
		validate:  validate,
		normalize: normalize,
		archive:   archivePhase,
		promote:   promote,
		logger:    logging.WithComponent(logger, "orchestrator"),
	}
}

// ApplyOverrides swaps in plugin-provided phase implementations. Later calls
// replace earlier ones, so the most recently resolved plugin wins.
func (o *Orchestrator) ApplyOverrides(ov Overrides) {
	if ov.Classify != nil {
		o.classify = ov.Classify
	}
	if ov.Validate != nil {
		o.validate = ov.Validate
	}
	if ov.Normalize != nil {
		o.normalize = ov.Normalize
	}
	if ov.Archive != nil {
		o.archive = ov.Archive
	}
	if ov.Promote != nil {
		o.promote = ov.Promote
	}
}

// Process runs one file through every phase in order. The returned Outcome
// always carries a Result per attempted phase; inspect Failed or Err for the
// terminal state.
func (o *Orchestrator) Process(ctx context.Context, path string, size int64) *Outcome {
	out := &Outcome{}

	r, err := o.runClassify(ctx, out, path, size)
	if err != nil {
		return out
	}
	ctx = services.WithRomID(ctx, r.ID)
	ctx = services.WithPlatform(ctx, r.Platform)
	out.ROM = r

	if err := o.runValidate(ctx, out, r); err != nil {
		return out
	}
	meta, err := o.runNormalize(ctx, out, r)
	if err != nil {
		return out
	}
	if err := o.runArchive(ctx, out, r, meta); err != nil {
		return out
	}
	o.runPromote(ctx, out, r)
	return out
}

func (o *Orchestrator) record(ctx context.Context, out *Outcome, phase Phase, err error, notes []string) {
	res := Result{Phase: phase, OK: err == nil, Err: err, Notes: notes}
	out.Results = append(out.Results, res)

	logger := logging.WithContext(ctx, o.logger)
	if err != nil {
		logger.Error("phase failed",
			logging.String(logging.FieldPhase, string(phase)),
			logging.Error(err),
		)
		return
	}
	logger.Debug("phase complete", logging.String(logging.FieldPhase, string(phase)))
}

func (o *Orchestrator) runClassify(ctx context.Context, out *Outcome, path string, size int64) (*rom.File, error) {
	r, err := o.classify.Classify(path, size)
	if err == nil {
		err = o.classify.StageForValidation(ctx, r)
	}
	o.record(ctx, out, PhaseClassify, err, nil)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (o *Orchestrator) runValidate(ctx context.Context, out *Outcome, r *rom.File) error {
	// Hashing and the duplicate check come first so a re-submitted ROM is
	// reported as a duplicate rather than tripping a later check.
	_, err := o.validate.GenerateHash(ctx, r)
	if err == nil {
		var dup bool
		dup, err = o.validate.CheckDuplicate(ctx, r)
		if err == nil && dup {
			err = services.Wrap(services.ErrValidation, "validate", "dedup",
				fmt.Sprintf("%q duplicates an archived ROM with hash %s", r.Filename, r.Hash), nil)
		}
	}
	if err == nil {
		err = o.validate.ValidateIntegrity(ctx, r)
	}
	if err == nil {
		_, err = o.validate.CheckCompanionFiles(ctx, r)
	}
	if err == nil {
		err = o.validate.ValidateBIOSDependencies(ctx, r)
	}
	if err == nil {
		err = o.validate.ValidateNaming(ctx, r)
	}
	o.record(ctx, out, PhaseValidate, err, nil)
	return err
}

func (o *Orchestrator) runNormalize(ctx context.Context, out *Outcome, r *rom.File) (rom.Metadata, error) {
	var notes []string
	err := o.normalize.ApplyNamingPattern(ctx, r)
	if err == nil {
		var note string
		note, err = o.normalize.ConvertToCHD(ctx, r)
		if note != "" {
			notes = append(notes, note)
		}
	}
	var meta rom.Metadata
	if err == nil {
		meta, err = o.normalize.GenerateMetadata(ctx, r)
	}
	o.record(ctx, out, PhaseNormalize, err, notes)
	return meta, err
}

func (o *Orchestrator) runArchive(ctx context.Context, out *Outcome, r *rom.File, meta rom.Metadata) error {
	dest, err := o.archive.ArchiveROM(ctx, r)
	if err == nil {
		_, err = o.archive.WriteManifest(ctx, r)
	}
	if err == nil {
		err = o.archive.StoreMetadata(ctx, r, meta)
	}
	o.record(ctx, out, PhaseArchive, err, nil)
	if err == nil {
		out.ArchivePath = dest
	}
	return err
}

func (o *Orchestrator) runPromote(ctx context.Context, out *Outcome, r *rom.File) {
	var notes []string
	dest, err := o.promote.PromoteROM(ctx, r)
	if err == nil {
		err = o.promote.UpdatePlaylist(ctx, r, dest)
	}
	if err == nil {
		// Artwork is best effort: its absence or failure never fails the ROM.
		found, thumbErr := o.promote.SyncThumbnails(ctx, r)
		if thumbErr != nil {
			logging.WithContext(ctx, o.logger).Warn("thumbnail sync failed", logging.Error(thumbErr))
		} else if found {
			notes = append(notes, "thumbnail art synced")
		}
	}
	o.record(ctx, out, PhasePromote, err, notes)
	if err == nil {
		out.LibraryPath = dest
	}
}
