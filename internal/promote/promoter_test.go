package promote_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"romkeep/internal/config"
	"romkeep/internal/logging"
	"romkeep/internal/promote"
	"romkeep/internal/rom"
	"romkeep/internal/testsupport"
)

func archivedROM(t *testing.T, cfg *config.Config, name string, size int64) *rom.File {
	t.Helper()
	path := filepath.Join(cfg.Paths.ArchiveDir, "nes", name)
	testsupport.WriteFile(t, path, size)
	r := rom.New(path, size)
	r.Platform = "nes"
	return r
}

func TestPromoteROMCopiesIntoLibrary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	p := promote.NewPromoter(cfg, logging.NewNop())

	r := archivedROM(t, cfg, "Contra.nes", 16384)
	dest, err := p.PromoteROM(context.Background(), r)
	if err != nil {
		t.Fatalf("PromoteROM: %v", err)
	}
	want := filepath.Join(cfg.Paths.LibraryDir, "nes", "Contra.nes")
	if dest != want {
		t.Fatalf("dest = %q, want %q", dest, want)
	}
	info, err := os.Stat(dest)
	if err != nil {
		t.Fatalf("stat promoted file: %v", err)
	}
	if info.Size() != 16384 {
		t.Fatalf("promoted size = %d, want 16384", info.Size())
	}

	// Archive copy must survive promotion.
	if _, err := os.Stat(r.Path); err != nil {
		t.Fatalf("archive copy missing after promotion: %v", err)
	}
}

func TestPromoteROMHardLink(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Pipeline.HardLinkPromotion = true
	p := promote.NewPromoter(cfg, logging.NewNop())

	r := archivedROM(t, cfg, "Duck Tales.nes", 16384)
	dest, err := p.PromoteROM(context.Background(), r)
	if err != nil {
		t.Fatalf("PromoteROM: %v", err)
	}
	if _, err := os.Stat(dest); err != nil {
		t.Fatalf("stat promoted file: %v", err)
	}
}

func TestUpdatePlaylistUpserts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	p := promote.NewPromoter(cfg, logging.NewNop())
	ctx := context.Background()

	r := archivedROM(t, cfg, "Mega Man 2.nes", 16384)
	dest, err := p.PromoteROM(ctx, r)
	if err != nil {
		t.Fatalf("PromoteROM: %v", err)
	}

	if err := p.UpdatePlaylist(ctx, r, dest); err != nil {
		t.Fatalf("UpdatePlaylist: %v", err)
	}
	pl, err := p.ReadPlaylist("nes")
	if err != nil {
		t.Fatalf("ReadPlaylist: %v", err)
	}
	if len(pl.Items) != 1 {
		t.Fatalf("expected 1 playlist item, got %d", len(pl.Items))
	}
	item := pl.Items[0]
	if item.Label != "Mega Man 2" || item.Path != dest {
		t.Fatalf("unexpected item: %+v", item)
	}
	if !strings.HasSuffix(item.CRC32, "|crc") || len(item.CRC32) != len("00000000|crc") {
		t.Fatalf("unexpected checksum format %q", item.CRC32)
	}
	if item.CoreName != "Mesen" {
		t.Fatalf("expected platform core, got %q", item.CoreName)
	}

	// A second promotion of the same path must not duplicate the entry.
	if err := p.UpdatePlaylist(ctx, r, dest); err != nil {
		t.Fatalf("UpdatePlaylist again: %v", err)
	}
	pl, err = p.ReadPlaylist("nes")
	if err != nil {
		t.Fatalf("ReadPlaylist: %v", err)
	}
	if len(pl.Items) != 1 {
		t.Fatalf("expected idempotent upsert, got %d items", len(pl.Items))
	}
}

func TestUpdatePlaylistSortsByLabel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	p := promote.NewPromoter(cfg, logging.NewNop())
	ctx := context.Background()

	for _, name := range []string{"Zelda II.nes", "Castlevania.nes", "Metroid.nes"} {
		r := archivedROM(t, cfg, name, 16384)
		dest, err := p.PromoteROM(ctx, r)
		if err != nil {
			t.Fatalf("PromoteROM(%q): %v", name, err)
		}
		if err := p.UpdatePlaylist(ctx, r, dest); err != nil {
			t.Fatalf("UpdatePlaylist(%q): %v", name, err)
		}
	}

	pl, err := p.ReadPlaylist("nes")
	if err != nil {
		t.Fatalf("ReadPlaylist: %v", err)
	}
	var labels []string
	for _, item := range pl.Items {
		labels = append(labels, item.Label)
	}
	want := []string{"Castlevania", "Metroid", "Zelda II"}
	for i := range want {
		if labels[i] != want[i] {
			t.Fatalf("labels = %v, want %v", labels, want)
		}
	}
}

func TestSyncThumbnails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	p := promote.NewPromoter(cfg, logging.NewNop())
	ctx := context.Background()

	r := archivedROM(t, cfg, "Contra.nes", 16384)

	found, err := p.SyncThumbnails(ctx, r)
	if err != nil {
		t.Fatalf("SyncThumbnails: %v", err)
	}
	if found {
		t.Fatal("expected no art before any is provided")
	}

	art := filepath.Join(cfg.Paths.ThumbnailDir, "Nintendo - Nintendo Entertainment System", "Named_Boxarts", "Contra.png")
	testsupport.WriteFile(t, art, 2048)

	found, err = p.SyncThumbnails(ctx, r)
	if err != nil {
		t.Fatalf("SyncThumbnails: %v", err)
	}
	if !found {
		t.Fatal("expected art to be found")
	}
	dest := filepath.Join(cfg.Paths.LibraryDir, "thumbnails", "Nintendo - Nintendo Entertainment System", "Named_Boxarts", "Contra.png")
	if _, err := os.Stat(dest); err != nil {
		t.Fatalf("synced thumbnail missing: %v", err)
	}
}
