package promote

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"romkeep/internal/config"
	"romkeep/internal/fileutil"
	"romkeep/internal/logging"
	"romkeep/internal/platform"
	"romkeep/internal/rom"
	"romkeep/internal/services"
)

// Promoter publishes archived ROMs into the runtime library, keeps playlists
// current, and syncs thumbnail art when available.
type Promoter struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewPromoter constructs the promote phase.
func NewPromoter(cfg *config.Config, logger *slog.Logger) *Promoter {
	return &Promoter{cfg: cfg, logger: logging.WithComponent(logger, "promoter")}
}

// PromoteROM places the archived ROM into the library layout at
// <library>/<platform>/<filename>. Hard links are preferred when enabled so
// the library costs no extra disk; the fallback is an atomic copy. Returns
// the library path.
func (p *Promoter) PromoteROM(ctx context.Context, r *rom.File) (string, error) {
	if r == nil {
		return "", services.Wrap(services.ErrValidation, "promote", "place", "nil ROM record", nil)
	}
	if r.Platform == "" {
		return "", services.Wrap(services.ErrValidation, "promote", "place", "ROM has no platform", nil)
	}
	dest := filepath.Join(p.cfg.Paths.LibraryDir, r.Platform, r.Filename)

	var linked bool
	var err error
	if p.cfg.Pipeline.HardLinkPromotion {
		linked, err = fileutil.LinkOrCopy(r.Path, dest)
	} else {
		err = fileutil.CopyFileAtomic(r.Path, dest)
	}
	if err != nil {
		return "", services.Wrap(services.ErrStorage, "promote", "place", fmt.Sprintf("promote %q to library", r.Filename), err)
	}

	logging.WithContext(ctx, p.logger).Info("ROM promoted to library",
		logging.String("library_path", dest),
		logging.Bool("hard_linked", linked),
	)
	return dest, nil
}

// SyncThumbnails copies matching box art from the thumbnail directory into
// the library's thumbnail layout. Missing art is not a failure; the return
// value reports whether any art was found.
func (p *Promoter) SyncThumbnails(ctx context.Context, r *rom.File) (bool, error) {
	if r == nil {
		return false, services.Wrap(services.ErrValidation, "promote", "thumbnails", "nil ROM record", nil)
	}
	if strings.TrimSpace(p.cfg.Paths.ThumbnailDir) == "" {
		return false, nil
	}
	def, ok := platform.Lookup(r.Platform)
	if !ok {
		return false, services.Wrap(services.ErrConfiguration, "promote", "thumbnails", fmt.Sprintf("unknown platform %q", r.Platform), nil)
	}

	label := strings.TrimSuffix(r.Filename, filepath.Ext(r.Filename))
	found := false
	for _, kind := range []string{"Named_Boxarts", "Named_Snaps", "Named_Titles"} {
		src := filepath.Join(p.cfg.Paths.ThumbnailDir, def.PlaylistName, kind, label+".png")
		if _, err := os.Stat(src); err != nil {
			continue
		}
		dest := filepath.Join(p.cfg.Paths.LibraryDir, "thumbnails", def.PlaylistName, kind, label+".png")
		if err := fileutil.CopyFileAtomic(src, dest); err != nil {
			return found, services.Wrap(services.ErrStorage, "promote", "thumbnails", fmt.Sprintf("copy thumbnail for %q", label), err)
		}
		found = true
	}

	if !found {
		logging.WithContext(ctx, p.logger).Debug("no thumbnail art found", logging.String("label", label))
	}
	return found, nil
}
