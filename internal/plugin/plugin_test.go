package plugin_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"romkeep/internal/logging"
	"romkeep/internal/pipeline"
	"romkeep/internal/plugin"
	"romkeep/internal/rom"
	"romkeep/internal/services"
)

func manifest(id string, t plugin.Type) plugin.Manifest {
	return plugin.Manifest{
		ID:         id,
		Name:       "Test " + id,
		Version:    "0.1.0",
		Type:       t,
		APIVersion: plugin.HostAPIVersion,
		EntryPoint: id + ".so",
	}
}

type stubClassifier struct{ name string }

var _ pipeline.ClassifyPhase = (*stubClassifier)(nil)

func (s *stubClassifier) Classify(path string, size int64) (*rom.File, error) { return nil, nil }
func (s *stubClassifier) StageForValidation(ctx context.Context, r *rom.File) error {
	return nil
}

func TestCheckCompatibility(t *testing.T) {
	cases := []struct {
		version string
		ok      bool
	}{
		{"1.0", true},
		{"1.7", true},
		{"v1.2", true},
		{"2.0", false},
		{"0.9", false},
		{"", false},
		{"banana", false},
	}
	for _, tc := range cases {
		err := plugin.CheckCompatibility(tc.version)
		if tc.ok && err != nil {
			t.Errorf("CheckCompatibility(%q) = %v, want nil", tc.version, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("CheckCompatibility(%q) = nil, want error", tc.version)
		}
	}
}

func TestRegisterValidatesManifest(t *testing.T) {
	reg := plugin.NewRegistry(logging.NewNop())

	bad := []plugin.Manifest{
		{Name: "n", Version: "1", Type: plugin.TypeClassifier, APIVersion: "1.0", EntryPoint: "p.so"},
		{ID: "a", Version: "1", Type: plugin.TypeClassifier, APIVersion: "1.0", EntryPoint: "p.so"},
		{ID: "a", Name: "n", Type: plugin.TypeClassifier, APIVersion: "1.0", EntryPoint: "p.so"},
		{ID: "a", Name: "n", Version: "1", Type: "mystery", APIVersion: "1.0", EntryPoint: "p.so"},
		{ID: "a", Name: "n", Version: "1", Type: plugin.TypeClassifier, APIVersion: "9.0", EntryPoint: "p.so"},
	}
	for i, m := range bad {
		if err := reg.Register(plugin.Plugin{Manifest: m}); err == nil {
			t.Errorf("case %d: expected rejection for %+v", i, m)
		}
	}

	if err := reg.Register(plugin.Plugin{Manifest: manifest("good", plugin.TypeClassifier)}); err != nil {
		t.Fatalf("Register: %v", err)
	}
}

func TestMissingEntryPointIsConfigurationError(t *testing.T) {
	m := manifest("no-entry", plugin.TypeNormalizer)
	m.EntryPoint = ""

	err := plugin.ValidateManifest(m)
	if err == nil {
		t.Fatal("expected rejection for missing entry point")
	}
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected a configuration error, got %v", err)
	}
	if !strings.Contains(err.Error(), "entry point") {
		t.Fatalf("expected the entry point named, got %q", err)
	}
}

func TestRegisterRejectsDuplicateID(t *testing.T) {
	reg := plugin.NewRegistry(logging.NewNop())
	p := plugin.Plugin{Manifest: manifest("dup", plugin.TypeValidator)}
	if err := reg.Register(p); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register(p); err == nil {
		t.Fatal("expected duplicate id rejection")
	}
}

func TestRegisterRejectsCapabilityMismatch(t *testing.T) {
	reg := plugin.NewRegistry(logging.NewNop())
	p := plugin.Plugin{
		Manifest:   manifest("wrong", plugin.TypeArchiver),
		Capability: &stubClassifier{},
	}
	if err := reg.Register(p); err == nil {
		t.Fatal("expected capability/type mismatch rejection")
	}
}

func TestByTypePreservesRegistrationOrder(t *testing.T) {
	reg := plugin.NewRegistry(logging.NewNop())
	for _, id := range []string{"first", "second", "third"} {
		p := plugin.Plugin{Manifest: manifest(id, plugin.TypeClassifier), Capability: &stubClassifier{name: id}}
		if err := reg.Register(p); err != nil {
			t.Fatalf("Register(%s): %v", id, err)
		}
	}

	plugins := reg.ByType(plugin.TypeClassifier)
	if len(plugins) != 3 {
		t.Fatalf("expected 3 plugins, got %d", len(plugins))
	}
	for i, want := range []string{"first", "second", "third"} {
		if plugins[i].Manifest.ID != want {
			t.Fatalf("position %d is %q, want %q", i, plugins[i].Manifest.ID, want)
		}
	}

	active, ok := reg.ActiveForType(plugin.TypeClassifier)
	if !ok || active.Manifest.ID != "third" {
		t.Fatalf("active = %+v, want most recently registered", active.Manifest)
	}
}

func TestUnregister(t *testing.T) {
	reg := plugin.NewRegistry(logging.NewNop())
	p := plugin.Plugin{Manifest: manifest("gone", plugin.TypePromoter)}
	if err := reg.Register(p); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Unregister("gone"); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if _, ok := reg.Get("gone"); ok {
		t.Fatal("plugin still present after unregister")
	}
	if err := reg.Unregister("gone"); err == nil {
		t.Fatal("expected not-found on second unregister")
	}
	if got := len(reg.ByType(plugin.TypePromoter)); got != 0 {
		t.Fatalf("type index still holds %d entries", got)
	}
}

func TestOverridesUseActivePlugin(t *testing.T) {
	reg := plugin.NewRegistry(logging.NewNop())

	older := &stubClassifier{name: "older"}
	newer := &stubClassifier{name: "newer"}
	if err := reg.Register(plugin.Plugin{Manifest: manifest("older", plugin.TypeClassifier), Capability: older}); err != nil {
		t.Fatalf("Register(older): %v", err)
	}
	if err := reg.Register(plugin.Plugin{Manifest: manifest("newer", plugin.TypeClassifier), Capability: newer}); err != nil {
		t.Fatalf("Register(newer): %v", err)
	}
	// Declarative plugin without capability must not shadow a usable one.
	if err := reg.Register(plugin.Plugin{Manifest: manifest("declarative", plugin.TypeClassifier)}); err != nil {
		t.Fatalf("Register(declarative): %v", err)
	}

	ov := reg.Overrides()
	if ov.Classify == nil {
		t.Fatal("expected classify override")
	}
	if stub, ok := ov.Classify.(*stubClassifier); !ok || stub.name != "newer" {
		t.Fatalf("active override = %v, want the most recently registered capability", ov.Classify)
	}
	if ov.Validate != nil || ov.Archive != nil {
		t.Fatal("unexpected overrides for types with no plugins")
	}
}
