package fileutil_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"romkeep/internal/fileutil"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestCopyFileAtomicLeavesNoPartials(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.nes")
	dst := filepath.Join(dir, "out", "dst.nes")
	writeFile(t, src, []byte("cartridge-bytes"))

	if err := fileutil.CopyFileAtomic(src, dst); err != nil {
		t.Fatalf("CopyFileAtomic: %v", err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read dst: %v", err)
	}
	if !bytes.Equal(got, []byte("cartridge-bytes")) {
		t.Fatalf("unexpected dst contents: %q", got)
	}

	entries, err := os.ReadDir(filepath.Dir(dst))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, entry := range entries {
		if strings.Contains(entry.Name(), ".partial-") {
			t.Fatalf("temp file left behind: %s", entry.Name())
		}
	}
}

func TestCopyFileVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.gba")
	dst := filepath.Join(dir, "dst.gba")
	writeFile(t, src, bytes.Repeat([]byte{0x5a}, 4096))

	if err := fileutil.CopyFileVerified(src, dst); err != nil {
		t.Fatalf("CopyFileVerified: %v", err)
	}

	srcSum, err := fileutil.HashFile(src)
	if err != nil {
		t.Fatalf("hash src: %v", err)
	}
	dstSum, err := fileutil.HashFile(dst)
	if err != nil {
		t.Fatalf("hash dst: %v", err)
	}
	if !bytes.Equal(srcSum, dstSum) {
		t.Fatal("expected identical hashes after verified copy")
	}
}

func TestLinkOrCopy(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.sfc")
	dst := filepath.Join(dir, "library", "dst.sfc")
	writeFile(t, src, []byte("snes"))

	linked, err := fileutil.LinkOrCopy(src, dst)
	if err != nil {
		t.Fatalf("LinkOrCopy: %v", err)
	}
	// Same tmpdir volume, so a hard link is expected on every platform we run CI on.
	if !linked {
		t.Log("fell back to copy; filesystem without hard link support")
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read dst: %v", err)
	}
	if string(got) != "snes" {
		t.Fatalf("unexpected contents %q", got)
	}

	// Re-promotion replaces the destination without error.
	if _, err := fileutil.LinkOrCopy(src, dst); err != nil {
		t.Fatalf("second LinkOrCopy: %v", err)
	}
}

func TestMoveFileAcrossDirectories(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "inbox", "rom.nes")
	dst := filepath.Join(dir, "staging", "rom.nes")
	writeFile(t, src, []byte("move-me"))

	if err := fileutil.MoveFile(src, dst); err != nil {
		t.Fatalf("MoveFile: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatal("expected source to be gone after move")
	}
	if _, err := os.Stat(dst); err != nil {
		t.Fatalf("expected destination to exist: %v", err)
	}
}
