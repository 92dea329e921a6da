package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"romkeep/internal/services"
)

// ManifestEntry is one appended record in a platform's manifest. Entries are
// never edited or deleted; consumers must not assume any ordering beyond
// archival order.
type ManifestEntry struct {
	ID         string            `json:"id"`
	Filename   string            `json:"filename"`
	Platform   string            `json:"platform"`
	Hash       string            `json:"hash"`
	Size       int64             `json:"size"`
	Extension  string            `json:"extension"`
	ArchivedAt time.Time         `json:"archived_at"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// ManifestStore owns the per-platform append-only manifests and the dedup
// index built over them. Appends are serialized with a per-platform file
// lock so concurrent jobs sharing a platform cannot interleave writes; the
// in-memory index is refreshed on every append, which keeps duplicate checks
// authoritative for entries written during the current process lifetime.
type ManifestStore struct {
	dir string

	mu      sync.RWMutex
	entries map[string][]ManifestEntry
	hashes  map[string]map[string]struct{}
}

// OpenManifests loads every existing platform manifest under dir and builds
// the hash index.
func OpenManifests(dir string) (*ManifestStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create manifest directory: %w", err)
	}

	store := &ManifestStore{
		dir:     dir,
		entries: make(map[string][]ManifestEntry),
		hashes:  make(map[string]map[string]struct{}),
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("scan manifest directory: %w", err)
	}
	for _, path := range matches {
		platform := strings.TrimSuffix(filepath.Base(path), ".json")
		entries, err := readManifestFile(path)
		if err != nil {
			return nil, fmt.Errorf("load manifest for %s: %w", platform, err)
		}
		store.entries[platform] = entries
		store.hashes[platform] = hashSet(entries)
	}
	return store, nil
}

// HasHash reports whether a content hash is already archived for a platform.
func (s *ManifestStore) HasHash(platform, hash string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.hashes[platform]
	if !ok {
		return false
	}
	_, found := set[hash]
	return found
}

// Entries returns a platform's manifest entries in archival order.
func (s *ManifestStore) Entries(platform string) []ManifestEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.entries[platform]
	out := make([]ManifestEntry, len(entries))
	copy(out, entries)
	return out
}

// Platforms returns the platforms that have at least one archived entry.
func (s *ManifestStore) Platforms() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.entries))
	for platform := range s.entries {
		out = append(out, platform)
	}
	return out
}

// Append commits a manifest entry under the platform's exclusive lock. The
// manifest file is re-read while locked so entries appended by other
// processes are observed, the hash-uniqueness invariant is enforced, and the
// rewritten file is replaced atomically. No ROM counts as archived until
// this append returns.
func (s *ManifestStore) Append(ctx context.Context, entry ManifestEntry) error {
	if entry.Platform == "" {
		return services.Wrap(services.ErrValidation, "archive", "write manifest", "entry missing platform", nil)
	}
	if entry.Hash == "" {
		return services.Wrap(services.ErrValidation, "archive", "write manifest", "entry missing content hash", nil)
	}

	manifestPath := s.manifestPath(entry.Platform)
	lock := flock.New(manifestPath + ".lock")
	locked, err := lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return services.Wrap(services.ErrStorage, "archive", "write manifest", "acquire platform lock", err)
	}
	if !locked {
		return services.Wrap(services.ErrStorage, "archive", "write manifest", "platform lock unavailable", nil)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	current, err := readManifestFile(manifestPath)
	if err != nil {
		return services.Wrap(services.ErrStorage, "archive", "write manifest", "read manifest", err)
	}
	for _, existing := range current {
		if existing.Hash == entry.Hash {
			return services.Wrap(services.ErrValidation, "archive", "write manifest",
				fmt.Sprintf("hash %s already archived as %q", entry.Hash, existing.Filename), nil)
		}
	}

	updated := append(current, entry)
	if err := writeManifestFile(manifestPath, updated); err != nil {
		return services.Wrap(services.ErrStorage, "archive", "write manifest", "persist manifest", err)
	}

	s.mu.Lock()
	s.entries[entry.Platform] = updated
	s.hashes[entry.Platform] = hashSet(updated)
	s.mu.Unlock()
	return nil
}

func (s *ManifestStore) manifestPath(platform string) string {
	return filepath.Join(s.dir, platform+".json")
}

func readManifestFile(path string) ([]ManifestEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	var entries []ManifestEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return entries, nil
}

func writeManifestFile(path string, entries []ManifestEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".manifest-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

func hashSet(entries []ManifestEntry) map[string]struct{} {
	set := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		set[entry.Hash] = struct{}{}
	}
	return set
}
