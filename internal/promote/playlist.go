package promote

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"romkeep/internal/platform"
	"romkeep/internal/rom"
	"romkeep/internal/services"
)

// playlistVersion is the playlist schema version the runtime player expects.
const playlistVersion = "1.5"

// PlaylistItem is one entry in a platform playlist.
type PlaylistItem struct {
	Path     string `json:"path"`
	Label    string `json:"label"`
	CorePath string `json:"core_path"`
	CoreName string `json:"core_name"`
	CRC32    string `json:"crc32"`
	DBName   string `json:"db_name"`
}

// Playlist is the on-disk playlist document, one per platform.
type Playlist struct {
	Version         string         `json:"version"`
	DefaultCorePath string         `json:"default_core_path"`
	DefaultCoreName string         `json:"default_core_name"`
	Items           []PlaylistItem `json:"items"`
}

// UpdatePlaylist upserts the ROM into its platform playlist, keyed by library
// path. Re-promoting the same ROM refreshes its entry in place; the playlist
// never grows a duplicate. Entries stay sorted by label for stable output.
func (p *Promoter) UpdatePlaylist(ctx context.Context, r *rom.File, libraryPath string) error {
	if r == nil {
		return services.Wrap(services.ErrValidation, "promote", "playlist", "nil ROM record", nil)
	}
	def, ok := platform.Lookup(r.Platform)
	if !ok {
		return services.Wrap(services.ErrConfiguration, "promote", "playlist", fmt.Sprintf("unknown platform %q", r.Platform), nil)
	}

	crc, err := fileCRC32(libraryPath)
	if err != nil {
		return services.Wrap(services.ErrStorage, "promote", "playlist", fmt.Sprintf("checksum %q", r.Filename), err)
	}

	coreName := def.CoreName
	corePath := def.CorePath
	if coreName == "" {
		coreName = p.cfg.Playlist.DefaultCoreName
	}
	if corePath == "" {
		corePath = p.cfg.Playlist.DefaultCorePath
	}

	item := PlaylistItem{
		Path:     libraryPath,
		Label:    strings.TrimSuffix(r.Filename, filepath.Ext(r.Filename)),
		CorePath: corePath,
		CoreName: coreName,
		CRC32:    fmt.Sprintf("%08X|crc", crc),
		DBName:   def.PlaylistName + ".lpl",
	}

	path := filepath.Join(p.cfg.PlaylistDir(), def.PlaylistName+".lpl")
	pl, err := readPlaylist(path)
	if err != nil {
		return services.Wrap(services.ErrStorage, "promote", "playlist", fmt.Sprintf("read playlist %q", def.PlaylistName), err)
	}
	if pl.Version == "" {
		pl.Version = playlistVersion
		pl.DefaultCoreName = coreName
		pl.DefaultCorePath = corePath
	}

	replaced := false
	for i := range pl.Items {
		if pl.Items[i].Path == item.Path {
			pl.Items[i] = item
			replaced = true
			break
		}
	}
	if !replaced {
		pl.Items = append(pl.Items, item)
	}
	sort.Slice(pl.Items, func(i, j int) bool { return pl.Items[i].Label < pl.Items[j].Label })

	if err := writePlaylist(path, pl); err != nil {
		return services.Wrap(services.ErrStorage, "promote", "playlist", fmt.Sprintf("write playlist %q", def.PlaylistName), err)
	}
	return nil
}

// ReadPlaylist loads the playlist for a platform. A missing playlist returns
// an empty document.
func (p *Promoter) ReadPlaylist(platformID string) (*Playlist, error) {
	def, ok := platform.Lookup(platformID)
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "promote", "playlist", fmt.Sprintf("unknown platform %q", platformID), nil)
	}
	return readPlaylist(filepath.Join(p.cfg.PlaylistDir(), def.PlaylistName+".lpl"))
}

func readPlaylist(path string) (*Playlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Playlist{}, nil
		}
		return nil, err
	}
	var pl Playlist
	if err := json.Unmarshal(data, &pl); err != nil {
		return nil, fmt.Errorf("parse playlist: %w", err)
	}
	return &pl, nil
}

func writePlaylist(path string, pl *Playlist) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(pl, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func fileCRC32(path string) (uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	h := crc32.NewIEEE()
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}
	return h.Sum32(), nil
}
