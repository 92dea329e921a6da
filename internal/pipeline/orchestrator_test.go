package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"romkeep/internal/archive"
	"romkeep/internal/classifier"
	"romkeep/internal/config"
	"romkeep/internal/logging"
	"romkeep/internal/normalize"
	"romkeep/internal/pipeline"
	"romkeep/internal/promote"
	"romkeep/internal/rom"
	"romkeep/internal/services"
	"romkeep/internal/testsupport"
	"romkeep/internal/validation"
)

func newOrchestrator(t *testing.T, opts ...testsupport.ConfigOption) (*pipeline.Orchestrator, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	manifests, err := archive.OpenManifests(cfg.ManifestDir())
	if err != nil {
		t.Fatalf("OpenManifests: %v", err)
	}
	logger := logging.NewNop()
	o := pipeline.NewOrchestrator(
		classifier.New(cfg, logger),
		validation.NewValidator(cfg, manifests, logger),
		normalize.NewNormalizer(cfg, logger),
		archive.NewArchiver(cfg, manifests, logger),
		promote.NewPromoter(cfg, logger),
		logger,
	)
	return o, cfg
}

func inboxFile(t *testing.T, cfg *config.Config, name string, size int64) string {
	t.Helper()
	path := filepath.Join(cfg.Paths.InboxDir, name)
	testsupport.WriteFile(t, path, size)
	return path
}

func TestProcessTraversesAllPhases(t *testing.T) {
	o, cfg := newOrchestrator(t)
	path := inboxFile(t, cfg, "super_mario_bros.nes", 16384)

	out := o.Process(context.Background(), path, 16384)
	if out.Failed() {
		t.Fatalf("pipeline failed: %v", out.Err())
	}
	if len(out.Results) != len(pipeline.Phases()) {
		t.Fatalf("expected %d phase results, got %d", len(pipeline.Phases()), len(out.Results))
	}
	for i, phase := range pipeline.Phases() {
		if out.Results[i].Phase != phase {
			t.Fatalf("result %d is %s, want %s", i, out.Results[i].Phase, phase)
		}
	}
	if out.ROM.Filename != "Super Mario Bros.nes" {
		t.Fatalf("filename = %q, want canonical form", out.ROM.Filename)
	}
	if out.ArchivePath == "" || out.LibraryPath == "" {
		t.Fatalf("expected archive and library paths, got %q / %q", out.ArchivePath, out.LibraryPath)
	}
	if _, err := os.Stat(out.ArchivePath); err != nil {
		t.Fatalf("archived file missing: %v", err)
	}
	if _, err := os.Stat(out.LibraryPath); err != nil {
		t.Fatalf("library file missing: %v", err)
	}
	if out.ROM.Path != out.ArchivePath {
		t.Fatalf("ROM path = %q, want the archive copy %q", out.ROM.Path, out.ArchivePath)
	}

	// Staging is a waypoint: nothing should remain once the ROM is archived.
	staged := filepath.Join(cfg.Paths.StagingDir, "nes")
	entries, err := os.ReadDir(staged)
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("read staging dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("staging dir still holds %d entries after archival", len(entries))
	}
}

func TestProcessStopsAtFirstFailure(t *testing.T) {
	o, cfg := newOrchestrator(t)
	path := inboxFile(t, cfg, "mystery.xyz", 16384)

	out := o.Process(context.Background(), path, 16384)
	if !out.Failed() {
		t.Fatal("expected classification failure for unknown extension")
	}
	if len(out.Results) != 1 || out.Results[0].Phase != pipeline.PhaseClassify {
		t.Fatalf("expected a single classify result, got %+v", out.Results)
	}
	if !errors.Is(out.Err(), services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", out.Err())
	}
}

func TestProcessRejectsDuplicateContent(t *testing.T) {
	o, cfg := newOrchestrator(t)
	ctx := context.Background()

	first := filepath.Join(cfg.Paths.InboxDir, "Mega Man 2.nes")
	testsupport.WriteFileSeed(t, first, 16384, 0x2a)
	if out := o.Process(ctx, first, 16384); out.Failed() {
		t.Fatalf("first ingestion failed: %v", out.Err())
	}

	second := filepath.Join(cfg.Paths.InboxDir, "Mega Man II.nes")
	testsupport.WriteFileSeed(t, second, 16384, 0x2a)
	out := o.Process(ctx, second, 16384)
	if !out.Failed() {
		t.Fatal("expected duplicate content to be rejected")
	}
	last := out.Results[len(out.Results)-1]
	if last.Phase != pipeline.PhaseValidate {
		t.Fatalf("expected failure in validate, got %s", last.Phase)
	}
	if !strings.Contains(out.Err().Error(), "duplicate") {
		t.Fatalf("expected duplicate named in error, got %q", out.Err())
	}
}

func TestProcessReportsDuplicateBeforeNamingViolation(t *testing.T) {
	o, cfg := newOrchestrator(t)
	ctx := context.Background()

	first := filepath.Join(cfg.Paths.InboxDir, "Contra.nes")
	testsupport.WriteFileSeed(t, first, 16384, 0x11)
	if out := o.Process(ctx, first, 16384); out.Failed() {
		t.Fatalf("first ingestion failed: %v", out.Err())
	}

	// Same content under a name the naming check would reject: the
	// duplicate wins because hashing runs first.
	second := filepath.Join(cfg.Paths.InboxDir, "contra|copy.nes")
	testsupport.WriteFileSeed(t, second, 16384, 0x11)
	out := o.Process(ctx, second, 16384)
	if !out.Failed() {
		t.Fatal("expected duplicate content to be rejected")
	}
	if !strings.Contains(out.Err().Error(), "duplicate") {
		t.Fatalf("expected the duplicate named in the error, got %q", out.Err())
	}
}

func TestProcessRecordsConversionNote(t *testing.T) {
	o, cfg := newOrchestrator(t)
	path := inboxFile(t, cfg, "Contra.nes", 16384)

	out := o.Process(context.Background(), path, 16384)
	if out.Failed() {
		t.Fatalf("pipeline failed: %v", out.Err())
	}
	var notes []string
	for _, res := range out.Results {
		if res.Phase == pipeline.PhaseNormalize {
			notes = res.Notes
		}
	}
	if len(notes) != 1 || notes[0] != normalize.NoteConversionDisabled {
		t.Fatalf("expected conversion-disabled note, got %v", notes)
	}
}

type recordingClassifier struct {
	inner  pipeline.ClassifyPhase
	called bool
}

func (r *recordingClassifier) Classify(path string, size int64) (*rom.File, error) {
	r.called = true
	return r.inner.Classify(path, size)
}

func (r *recordingClassifier) StageForValidation(ctx context.Context, f *rom.File) error {
	return r.inner.StageForValidation(ctx, f)
}

func TestApplyOverridesSwapsPhase(t *testing.T) {
	o, cfg := newOrchestrator(t)
	override := &recordingClassifier{inner: classifier.New(cfg, logging.NewNop())}
	o.ApplyOverrides(pipeline.Overrides{Classify: override})

	path := inboxFile(t, cfg, "Metroid.nes", 16384)
	out := o.Process(context.Background(), path, 16384)
	if out.Failed() {
		t.Fatalf("pipeline failed: %v", out.Err())
	}
	if !override.called {
		t.Fatal("override classifier was not used")
	}
}
