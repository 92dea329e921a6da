package services_test

import (
	"errors"
	"strings"
	"testing"

	"romkeep/internal/services"
)

func TestWrapIncludesPhaseContext(t *testing.T) {
	base := errors.New("disk full")
	err := services.Wrap(services.ErrStorage, "archive", "write manifest", "append failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrStorage) {
		t.Fatalf("expected storage marker, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped base error, got %v", err)
	}
	for _, fragment := range []string{"archive", "write manifest", "append failed", "disk full"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("expected %q in %q", fragment, err.Error())
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "validate", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestIsFatal(t *testing.T) {
	fatal := services.Wrap(services.ErrConfiguration, "classify", "load platforms", "malformed table", nil)
	if !services.IsFatal(fatal) {
		t.Fatal("configuration errors should be fatal")
	}
	phase := services.Wrap(services.ErrValidation, "validate", "naming", "empty filename", nil)
	if services.IsFatal(phase) {
		t.Fatal("validation errors should not be fatal")
	}
}
