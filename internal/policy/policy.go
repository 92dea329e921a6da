package policy

import (
	"fmt"
	"path/filepath"
	"strings"

	"romkeep/internal/config"
)

// FileDescriptor is the minimal view of a submitted file the admission gate
// needs: nothing is read from disk here.
type FileDescriptor struct {
	Name string
	Size int64
}

// Policy is the batch admission policy. AllowedExtensions holds dot-prefixed
// lower-case extensions.
type Policy struct {
	MaxBatchSize      int
	MaxFileSize       int64
	AllowedExtensions map[string]struct{}
}

// FromConfig builds a Policy from the batch configuration section.
func FromConfig(cfg *config.Config) Policy {
	allowed := make(map[string]struct{}, len(cfg.Batch.AllowedExtensions))
	for _, ext := range cfg.Batch.AllowedExtensions {
		allowed[strings.ToLower(ext)] = struct{}{}
	}
	return Policy{
		MaxBatchSize:      cfg.Batch.MaxBatchSize,
		MaxFileSize:       cfg.MaxFileSizeBytes(),
		AllowedExtensions: allowed,
	}
}

// Validate applies the batch admission policy. The whole batch is rejected
// when it exceeds MaxBatchSize; otherwise files are checked in input order
// and the first violation rejects the batch, naming the offending file. A
// nil return admits every file. Pure: no state is created or touched.
func Validate(files []FileDescriptor, p Policy) error {
	if len(files) == 0 {
		return fmt.Errorf("batch is empty")
	}
	if p.MaxBatchSize > 0 && len(files) > p.MaxBatchSize {
		return fmt.Errorf("batch of %d files exceeds the limit of %d", len(files), p.MaxBatchSize)
	}

	for _, file := range files {
		if p.MaxFileSize > 0 && file.Size > p.MaxFileSize {
			return fmt.Errorf("file %q is %d bytes, above the per-file limit of %d", file.Name, file.Size, p.MaxFileSize)
		}
		ext := strings.ToLower(filepath.Ext(file.Name))
		if ext == "" {
			return fmt.Errorf("file %q has no extension", file.Name)
		}
		if _, ok := p.AllowedExtensions[ext]; !ok {
			return fmt.Errorf("file %q has disallowed extension %q", file.Name, ext)
		}
	}
	return nil
}
