package config

import "strings"

func (c *Config) normalize() error {
	pathFields := []*string{
		&c.Paths.InboxDir,
		&c.Paths.StagingDir,
		&c.Paths.ArchiveDir,
		&c.Paths.LibraryDir,
		&c.Paths.BiosDir,
		&c.Paths.ThumbnailDir,
		&c.Paths.LogDir,
		&c.Plugins.Dir,
	}
	for _, field := range pathFields {
		trimmed := strings.TrimSpace(*field)
		if trimmed == "" {
			*field = ""
			continue
		}
		expanded, err := expandPath(trimmed)
		if err != nil {
			return err
		}
		*field = expanded
	}

	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))

	normalized := make([]string, 0, len(c.Batch.AllowedExtensions))
	for _, ext := range c.Batch.AllowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized = append(normalized, ext)
	}
	c.Batch.AllowedExtensions = normalized

	return nil
}
