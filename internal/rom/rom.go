package rom

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// File is the record a ROM carries through the ingestion pipeline. The
// classifier creates it; each later phase confirms or attaches fields.
// Once archived the record is treated as immutable.
type File struct {
	ID        string
	Filename  string
	Path      string
	Extension string
	Size      int64
	Platform  string
	Hash      string
	Metadata  map[string]string
}

// New builds a File for the given source path with a fresh identifier. The
// extension is normalized to lower case with its leading dot.
func New(path string, size int64) *File {
	name := filepath.Base(path)
	return &File{
		ID:        uuid.NewString(),
		Filename:  name,
		Path:      path,
		Extension: strings.ToLower(filepath.Ext(name)),
		Size:      size,
	}
}

// SetMeta records a metadata key on the file, allocating the map lazily.
func (f *File) SetMeta(key, value string) {
	if f.Metadata == nil {
		f.Metadata = make(map[string]string)
	}
	f.Metadata[key] = value
}

// Meta returns a metadata value, or the empty string when absent.
func (f *File) Meta(key string) string {
	if f.Metadata == nil {
		return ""
	}
	return f.Metadata[key]
}

// Metadata is the descriptive record generated during normalization and
// persisted by the archiver, independent of the manifest so it can be
// regenerated without rewriting manifest history.
type Metadata struct {
	RomID       string            `json:"rom_id"`
	Platform    string            `json:"platform"`
	Filename    string            `json:"filename"`
	Extension   string            `json:"extension"`
	Size        int64             `json:"size"`
	Hash        string            `json:"hash,omitempty"`
	GeneratedAt time.Time         `json:"generated_at"`
	Extra       map[string]string `json:"extra,omitempty"`
}
