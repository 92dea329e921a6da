package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate confirms the configuration is internally consistent.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		problems = append(problems, "paths.staging_dir must be set")
	}
	if strings.TrimSpace(c.Paths.ArchiveDir) == "" {
		problems = append(problems, "paths.archive_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		problems = append(problems, "paths.log_dir must be set")
	}
	if bind := strings.TrimSpace(c.Paths.APIBind); bind != "" {
		if _, _, err := net.SplitHostPort(bind); err != nil {
			problems = append(problems, fmt.Sprintf("paths.api_bind %q is not host:port", bind))
		}
	}

	if c.Batch.MaxBatchSize <= 0 {
		problems = append(problems, "batch.max_batch_size must be positive")
	}
	if c.Batch.MaxFileSizeMiB <= 0 {
		problems = append(problems, "batch.max_file_size_mib must be positive")
	}
	if len(c.Batch.AllowedExtensions) == 0 {
		problems = append(problems, "batch.allowed_extensions must not be empty")
	}
	for _, ext := range c.Batch.AllowedExtensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			problems = append(problems, fmt.Sprintf("batch.allowed_extensions entry %q must be a dot-prefixed extension", ext))
		}
	}
	if c.Batch.QueuePollInterval <= 0 {
		problems = append(problems, "batch.queue_poll_interval must be positive")
	}

	switch c.Logging.Format {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q must be console or json", c.Logging.Format))
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}
