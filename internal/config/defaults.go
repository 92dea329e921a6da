package config

const (
	defaultInboxDir          = "~/.local/share/romkeep/inbox"
	defaultStagingDir        = "~/.local/share/romkeep/staging"
	defaultArchiveDir        = "~/roms/archive"
	defaultLibraryDir        = "~/roms/library"
	defaultBiosDir           = "~/roms/bios"
	defaultThumbnailDir      = "~/roms/thumbnails"
	defaultLogDir            = "~/.local/share/romkeep/logs"
	defaultAPIBind           = "127.0.0.1:7590"
	defaultMaxBatchSize      = 50
	defaultMaxFileSizeMiB    = 4096
	defaultQueuePollInterval = 2
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultLogRetentionDays  = 60
	defaultCoreName          = "DETECT"
	defaultCorePath          = "DETECT"
	defaultPluginDir         = "~/.local/share/romkeep/plugins"
)

func defaultAllowedExtensions() []string {
	return []string{
		".nes", ".sfc", ".smc", ".md", ".gen",
		".gb", ".gbc", ".gba",
		".n64", ".z64", ".v64",
		".cue", ".bin", ".chd", ".iso",
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			InboxDir:     defaultInboxDir,
			StagingDir:   defaultStagingDir,
			ArchiveDir:   defaultArchiveDir,
			LibraryDir:   defaultLibraryDir,
			BiosDir:      defaultBiosDir,
			ThumbnailDir: defaultThumbnailDir,
			LogDir:       defaultLogDir,
			APIBind:      defaultAPIBind,
		},
		Batch: Batch{
			MaxBatchSize:      defaultMaxBatchSize,
			MaxFileSizeMiB:    defaultMaxFileSizeMiB,
			AllowedExtensions: defaultAllowedExtensions(),
			ContinueOnError:   true,
			QueuePollInterval: defaultQueuePollInterval,
			HistoryEnabled:    true,
		},
		Pipeline: Pipeline{
			CHDConversion:     false,
			VerifyCopies:      true,
			HardLinkPromotion: true,
		},
		Playlist: Playlist{
			DefaultCoreName: defaultCoreName,
			DefaultCorePath: defaultCorePath,
		},
		Plugins: Plugins{
			Dir: defaultPluginDir,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
