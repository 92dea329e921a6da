package platform

import (
	"regexp"
	"sort"
	"strings"
)

// Definition describes one supported platform: how its files are recognized,
// named, validated, and presented to the runtime player.
type Definition struct {
	ID           string
	Name         string
	Extensions   []string
	MinSize      int64
	RequiredBIOS []string
	PlaylistName string
	CoreName     string
	CorePath     string
}

// filenamePattern is the canonical naming convention shared by every
// platform: a printable title followed by a lower-case extension, with no
// path separators.
var filenamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 ._'()\[\]&+!-]*\.[a-z0-9]+$`)

var definitions = []Definition{
	{
		ID:           "nes",
		Name:         "Nintendo Entertainment System",
		Extensions:   []string{".nes"},
		MinSize:      8192,
		PlaylistName: "Nintendo - Nintendo Entertainment System",
		CoreName:     "Mesen",
		CorePath:     "mesen_libretro",
	},
	{
		ID:           "snes",
		Name:         "Super Nintendo Entertainment System",
		Extensions:   []string{".sfc", ".smc"},
		MinSize:      65536,
		PlaylistName: "Nintendo - Super Nintendo Entertainment System",
		CoreName:     "Snes9x",
		CorePath:     "snes9x_libretro",
	},
	{
		ID:           "genesis",
		Name:         "Sega Genesis",
		Extensions:   []string{".md", ".gen", ".bin"},
		MinSize:      32768,
		PlaylistName: "Sega - Mega Drive - Genesis",
		CoreName:     "Genesis Plus GX",
		CorePath:     "genesis_plus_gx_libretro",
	},
	{
		ID:           "gb",
		Name:         "Game Boy",
		Extensions:   []string{".gb"},
		MinSize:      16384,
		PlaylistName: "Nintendo - Game Boy",
		CoreName:     "Gambatte",
		CorePath:     "gambatte_libretro",
	},
	{
		ID:           "gbc",
		Name:         "Game Boy Color",
		Extensions:   []string{".gbc"},
		MinSize:      16384,
		PlaylistName: "Nintendo - Game Boy Color",
		CoreName:     "Gambatte",
		CorePath:     "gambatte_libretro",
	},
	{
		ID:           "gba",
		Name:         "Game Boy Advance",
		Extensions:   []string{".gba"},
		MinSize:      65536,
		RequiredBIOS: []string{"gba_bios.bin"},
		PlaylistName: "Nintendo - Game Boy Advance",
		CoreName:     "mGBA",
		CorePath:     "mgba_libretro",
	},
	{
		ID:           "n64",
		Name:         "Nintendo 64",
		Extensions:   []string{".n64", ".z64", ".v64"},
		MinSize:      1048576,
		PlaylistName: "Nintendo - Nintendo 64",
		CoreName:     "Mupen64Plus-Next",
		CorePath:     "mupen64plus_next_libretro",
	},
	{
		ID:           "psx",
		Name:         "Sony PlayStation",
		Extensions:   []string{".cue", ".chd", ".iso"},
		MinSize:      64,
		RequiredBIOS: []string{"scph5501.bin"},
		PlaylistName: "Sony - PlayStation",
		CoreName:     "Beetle PSX",
		CorePath:     "mednafen_psx_libretro",
	},
}

var byExtension = func() map[string]Definition {
	index := make(map[string]Definition)
	for _, def := range definitions {
		for _, ext := range def.Extensions {
			index[ext] = def
		}
	}
	return index
}()

var byID = func() map[string]Definition {
	index := make(map[string]Definition, len(definitions))
	for _, def := range definitions {
		index[def.ID] = def
	}
	return index
}()

// ByExtension resolves a platform definition from a file extension. The
// extension is matched case-insensitively and may omit the leading dot.
func ByExtension(ext string) (Definition, bool) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return Definition{}, false
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	def, ok := byExtension[ext]
	return def, ok
}

// Lookup resolves a platform definition by identifier.
func Lookup(id string) (Definition, bool) {
	def, ok := byID[strings.ToLower(strings.TrimSpace(id))]
	return def, ok
}

// All returns every known platform definition ordered by identifier.
func All() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ValidFilename reports whether a filename conforms to the shared naming
// convention. Path separators and traversal sequences never validate.
func ValidFilename(name string) bool {
	if name == "" || strings.Contains(name, "..") {
		return false
	}
	if strings.ContainsAny(name, `/\`) {
		return false
	}
	return filenamePattern.MatchString(name)
}
