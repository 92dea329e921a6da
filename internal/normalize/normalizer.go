package normalize

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"romkeep/internal/config"
	"romkeep/internal/fileutil"
	"romkeep/internal/logging"
	"romkeep/internal/rom"
	"romkeep/internal/services"
)

// NoteConversionDisabled is the metadata note recorded when CHD conversion
// is switched off in configuration.
const NoteConversionDisabled = "CHD conversion disabled"

// NoteConverterMissing is the metadata note recorded when conversion is
// enabled but no converter plugin is registered.
const NoteConverterMissing = "CHD conversion not yet implemented"

// Converter turns a disc image into CHD format. Provided by a plugin; the
// built-in pipeline ships without one.
type Converter interface {
	Convert(ctx context.Context, r *rom.File) error
}

// Normalizer canonicalizes filenames, gates container conversion, and
// generates descriptive metadata.
type Normalizer struct {
	cfg       *config.Config
	logger    *slog.Logger
	converter Converter
	caser     cases.Caser
}

// NewNormalizer constructs the normalize phase.
func NewNormalizer(cfg *config.Config, logger *slog.Logger) *Normalizer {
	return &Normalizer{
		cfg:    cfg,
		logger: logging.WithComponent(logger, "normalizer"),
		caser:  cases.Title(language.Und, cases.NoLower),
	}
}

// SetConverter installs a CHD converter, typically resolved from the plugin
// registry at orchestration time.
func (n *Normalizer) SetConverter(converter Converter) {
	n.converter = converter
}

// ApplyNamingPattern rewrites the filename to the platform's canonical
// pattern: collapsed whitespace, title-cased words, lower-case extension.
// The staged file is renamed to match.
func (n *Normalizer) ApplyNamingPattern(ctx context.Context, r *rom.File) error {
	if r == nil {
		return services.Wrap(services.ErrValidation, "normalize", "naming", "nil ROM record has no filename", nil)
	}
	if strings.TrimSpace(r.Filename) == "" {
		return services.Wrap(services.ErrValidation, "normalize", "naming", "filename is empty", nil)
	}

	ext := strings.ToLower(filepath.Ext(r.Filename))
	base := strings.TrimSuffix(r.Filename, filepath.Ext(r.Filename))
	base = strings.NewReplacer("_", " ", ".", " ").Replace(base)
	base = strings.Join(strings.Fields(base), " ")
	if base == "" {
		return services.Wrap(services.ErrValidation, "normalize", "naming",
			fmt.Sprintf("filename %q has no usable title", r.Filename), nil)
	}
	canonical := n.caser.String(base) + ext

	if canonical != r.Filename {
		dest := filepath.Join(filepath.Dir(r.Path), canonical)
		if err := fileutil.MoveFile(r.Path, dest); err != nil {
			return services.Wrap(services.ErrStorage, "normalize", "naming",
				fmt.Sprintf("rename %q to %q", r.Filename, canonical), err)
		}
		logging.WithContext(ctx, n.logger).Debug("filename canonicalized",
			logging.String("from", r.Filename),
			logging.String("to", canonical),
		)
		r.Filename = canonical
		r.Path = dest
	}
	r.Extension = ext
	return nil
}

// ConvertToCHD is a capability gate. Disabled conversion is a successful
// no-op with an explanatory note; enabled conversion delegates to the
// converter plugin, and its absence is reported as a note rather than a hard
// failure so platforms that need no conversion still flow through.
func (n *Normalizer) ConvertToCHD(ctx context.Context, r *rom.File) (string, error) {
	if r == nil {
		return "", services.Wrap(services.ErrValidation, "normalize", "convert", "nil ROM record", nil)
	}
	if r.Platform == "" {
		return "", services.Wrap(services.ErrValidation, "normalize", "convert", "ROM has no platform", nil)
	}
	if !n.cfg.Pipeline.CHDConversion {
		return NoteConversionDisabled, nil
	}
	if n.converter == nil {
		return NoteConverterMissing, nil
	}
	if err := n.converter.Convert(ctx, r); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "normalize", "convert", fmt.Sprintf("convert %q", r.Filename), err)
	}
	return "converted to CHD", nil
}

// GenerateMetadata builds the descriptive metadata record for the ROM. Every
// required field is checked and the offending field is named on failure.
func (n *Normalizer) GenerateMetadata(ctx context.Context, r *rom.File) (rom.Metadata, error) {
	if r == nil {
		return rom.Metadata{}, services.Wrap(services.ErrValidation, "normalize", "metadata", "nil ROM record", nil)
	}
	if r.Platform == "" {
		return rom.Metadata{}, services.Wrap(services.ErrValidation, "normalize", "metadata", "missing field platform", nil)
	}
	if strings.TrimSpace(r.Filename) == "" {
		return rom.Metadata{}, services.Wrap(services.ErrValidation, "normalize", "metadata", "missing field filename", nil)
	}
	if r.Size < 0 {
		return rom.Metadata{}, services.Wrap(services.ErrValidation, "normalize", "metadata",
			fmt.Sprintf("field size is negative (%d)", r.Size), nil)
	}
	if r.Extension == "" {
		return rom.Metadata{}, services.Wrap(services.ErrValidation, "normalize", "metadata", "missing field extension", nil)
	}

	meta := rom.Metadata{
		RomID:       r.ID,
		Platform:    r.Platform,
		Filename:    r.Filename,
		Extension:   r.Extension,
		Size:        r.Size,
		Hash:        r.Hash,
		GeneratedAt: time.Now().UTC(),
	}
	if len(r.Metadata) > 0 {
		meta.Extra = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			meta.Extra[k] = v
		}
	}
	return meta, nil
}
