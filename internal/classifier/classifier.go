package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"romkeep/internal/config"
	"romkeep/internal/fileutil"
	"romkeep/internal/logging"
	"romkeep/internal/platform"
	"romkeep/internal/rom"
	"romkeep/internal/services"
)

// Classifier assigns a platform to incoming files by extension lookup and
// stages classified files for validation.
type Classifier struct {
	cfg    *config.Config
	logger *slog.Logger
}

// New constructs the classifier phase.
func New(cfg *config.Config, logger *slog.Logger) *Classifier {
	return &Classifier{cfg: cfg, logger: logging.WithComponent(logger, "classifier")}
}

// Classify inspects a file path and returns a typed ROM record with its
// platform assigned and extension normalized. Unknown extensions fail rather
// than guess. Pure inspection: no filesystem writes happen here.
func (c *Classifier) Classify(path string, size int64) (*rom.File, error) {
	name := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return nil, services.Wrap(services.ErrValidation, "classify", "inspect", fmt.Sprintf("file %q has no extension", name), nil)
	}

	def, ok := platform.ByExtension(ext)
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "classify", "inspect", fmt.Sprintf("unknown extension %q for file %q", ext, name), nil)
	}

	record := rom.New(path, size)
	record.Platform = def.ID
	record.Extension = ext
	return record, nil
}

// StageForValidation moves a classified file into the staging area where the
// remaining phases operate. Kept separate from Classify so classification
// stays testable without touching storage.
func (c *Classifier) StageForValidation(ctx context.Context, r *rom.File) error {
	if r == nil {
		return services.Wrap(services.ErrValidation, "classify", "stage", "nil ROM record", nil)
	}
	logger := logging.WithContext(ctx, c.logger)

	dest := filepath.Join(c.cfg.Paths.StagingDir, r.Platform, r.Filename)
	if err := fileutil.MoveFile(r.Path, dest); err != nil {
		return services.Wrap(services.ErrStorage, "classify", "stage", fmt.Sprintf("move %q into staging", r.Filename), err)
	}

	// Companion files (cue sheet tracks) must travel with the primary file.
	if r.Extension == ".cue" {
		if err := c.stageCompanions(r, dest); err != nil {
			return err
		}
	}

	r.Path = dest
	logger.Debug("staged for validation",
		logging.String("staged_path", dest),
		logging.String(logging.FieldEventType, "classify_staged"),
	)
	return nil
}

func (c *Classifier) stageCompanions(r *rom.File, stagedCue string) error {
	srcDir := filepath.Dir(r.Path)
	dstDir := filepath.Dir(stagedCue)

	entries, err := os.ReadDir(srcDir)
	if err != nil {
		// The source directory may be gone when the cue was the only file.
		if os.IsNotExist(err) {
			return nil
		}
		return services.Wrap(services.ErrStorage, "classify", "stage companions", "read source directory", err)
	}

	base := strings.TrimSuffix(r.Filename, r.Extension)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, base) || strings.EqualFold(name, r.Filename) {
			continue
		}
		if err := fileutil.MoveFile(filepath.Join(srcDir, name), filepath.Join(dstDir, name)); err != nil {
			return services.Wrap(services.ErrStorage, "classify", "stage companions", fmt.Sprintf("move companion %q", name), err)
		}
	}
	return nil
}
