package plugin_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"romkeep/internal/logging"
	"romkeep/internal/plugin"
	"romkeep/internal/testsupport"
)

func TestLoadLocalManifest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	loader := plugin.NewLoader(cfg, logging.NewNop())

	manifestJSON := `{"id":"chd-converter","name":"CHD Converter","version":"1.2.0","type":"normalizer","api_version":"1.0","entry_point":"chd_converter.so","license":"GPL-2.0"}`
	testsupport.WriteFileContent(t, filepath.Join(cfg.Plugins.Dir, "chd-converter", "manifest.json"), []byte(manifestJSON))

	p, err := loader.Load(context.Background(), plugin.Source{Kind: plugin.SourceLocal, Location: "chd-converter"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Manifest.ID != "chd-converter" || p.Manifest.Type != plugin.TypeNormalizer {
		t.Fatalf("unexpected manifest: %+v", p.Manifest)
	}
}

func TestLoadLocalRejectsInvalidManifest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	loader := plugin.NewLoader(cfg, logging.NewNop())

	cases := map[string]string{
		"malformed":      `{"id":`,
		"incompatible":   `{"id":"x","name":"X","version":"1","type":"normalizer","api_version":"9.0","entry_point":"x.so"}`,
		"unknown-type":   `{"id":"y","name":"Y","version":"1","type":"telemetry","api_version":"1.0","entry_point":"y.so"}`,
		"no-entry-point": `{"id":"z","name":"Z","version":"1","type":"validator","api_version":"1.0"}`,
	}
	for dir, content := range cases {
		testsupport.WriteFileContent(t, filepath.Join(cfg.Plugins.Dir, dir, "manifest.json"), []byte(content))
		_, err := loader.Load(context.Background(), plugin.Source{Kind: plugin.SourceLocal, Location: dir})
		var loadErr *plugin.LoadError
		if !errors.As(err, &loadErr) {
			t.Errorf("%s: expected LoadError, got %v", dir, err)
		}
	}
}

func TestLoadRemoteSourcesReturnTypedError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	loader := plugin.NewLoader(cfg, logging.NewNop())

	for _, kind := range []plugin.SourceKind{plugin.SourcePackage, plugin.SourceRemoteURL, plugin.SourceMarketplace} {
		_, err := loader.Load(context.Background(), plugin.Source{Kind: kind, Location: "somewhere"})
		var loadErr *plugin.LoadError
		if !errors.As(err, &loadErr) {
			t.Fatalf("%s: expected LoadError, got %v", kind, err)
		}
		if loadErr.Source.Kind != kind {
			t.Fatalf("LoadError names %s, want %s", loadErr.Source.Kind, kind)
		}
	}
}

func TestDiscoverLocalSkipsBrokenPlugins(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	loader := plugin.NewLoader(cfg, logging.NewNop())

	good := `{"id":"good","name":"Good","version":"1","type":"classifier","api_version":"1.0","entry_point":"good.so"}`
	testsupport.WriteFileContent(t, filepath.Join(cfg.Plugins.Dir, "good", "manifest.json"), []byte(good))
	testsupport.WriteFileContent(t, filepath.Join(cfg.Plugins.Dir, "broken", "manifest.json"), []byte(`nope`))

	plugins, err := loader.DiscoverLocal(context.Background())
	if err != nil {
		t.Fatalf("DiscoverLocal: %v", err)
	}
	if len(plugins) != 1 || plugins[0].Manifest.ID != "good" {
		t.Fatalf("expected only the good plugin, got %+v", plugins)
	}
}
