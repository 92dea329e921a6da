package plugin

import (
	"fmt"
	"strconv"
	"strings"

	"romkeep/internal/pipeline"
	"romkeep/internal/services"
)

// Type is a plugin's declared phase kind.
type Type string

const (
	TypeClassifier Type = "classifier"
	TypeValidator  Type = "validator"
	TypeNormalizer Type = "normalizer"
	TypeArchiver   Type = "archiver"
	TypePromoter   Type = "promoter"
)

// Types lists the known phase kinds a plugin may declare.
func Types() []Type {
	return []Type{TypeClassifier, TypeValidator, TypeNormalizer, TypeArchiver, TypePromoter}
}

// KnownType reports whether t is a recognized phase kind.
func KnownType(t Type) bool {
	for _, known := range Types() {
		if t == known {
			return true
		}
	}
	return false
}

// HostAPIVersion is the plugin API version this host speaks. Plugins are
// compatible when they share the major version.
const HostAPIVersion = "1.0"

// Manifest describes a plugin to the registry. EntryPoint names the artifact
// the host loads for the declared type; the licensing fields are optional.
type Manifest struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Version    string `json:"version"`
	Type       Type   `json:"type"`
	APIVersion string `json:"api_version"`
	EntryPoint string `json:"entry_point"`
	License    string `json:"license,omitempty"`
	LicenseURL string `json:"license_url,omitempty"`
}

// Plugin pairs a manifest with its capability. Capability is one of the
// pipeline phase interfaces matching the manifest's declared type; a nil
// capability registers a declarative plugin that never overrides a phase.
type Plugin struct {
	Manifest   Manifest
	Capability any
}

// CheckCompatibility is the single source of truth for the apiVersion
// comparison: the plugin's major version must equal the host's.
func CheckCompatibility(apiVersion string) error {
	pluginMajor, err := majorVersion(apiVersion)
	if err != nil {
		return services.Wrap(services.ErrValidation, "plugin", "compatibility",
			fmt.Sprintf("malformed apiVersion %q", apiVersion), err)
	}
	hostMajor, err := majorVersion(HostAPIVersion)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "plugin", "compatibility", "malformed host API version", err)
	}
	if pluginMajor != hostMajor {
		return services.Wrap(services.ErrValidation, "plugin", "compatibility",
			fmt.Sprintf("apiVersion %q is incompatible with host %q", apiVersion, HostAPIVersion), nil)
	}
	return nil
}

func majorVersion(version string) (int, error) {
	version = strings.TrimPrefix(strings.TrimSpace(version), "v")
	if version == "" {
		return 0, fmt.Errorf("empty version")
	}
	head := strings.SplitN(version, ".", 2)[0]
	return strconv.Atoi(head)
}

// ValidateManifest checks the structural requirements for admission:
// non-empty id, name, and version, a known type, an entry point, and a
// compatible apiVersion. A declared type without an entry point is a
// configuration error, not a per-plugin validation failure.
func ValidateManifest(m Manifest) error {
	if strings.TrimSpace(m.ID) == "" {
		return services.Wrap(services.ErrValidation, "plugin", "manifest", "plugin id is empty", nil)
	}
	if strings.TrimSpace(m.Name) == "" {
		return services.Wrap(services.ErrValidation, "plugin", "manifest", fmt.Sprintf("plugin %q has no name", m.ID), nil)
	}
	if strings.TrimSpace(m.Version) == "" {
		return services.Wrap(services.ErrValidation, "plugin", "manifest", fmt.Sprintf("plugin %q has no version", m.ID), nil)
	}
	if !KnownType(m.Type) {
		return services.Wrap(services.ErrValidation, "plugin", "manifest",
			fmt.Sprintf("plugin %q declares unknown type %q", m.ID, m.Type), nil)
	}
	if strings.TrimSpace(m.EntryPoint) == "" {
		return services.Wrap(services.ErrConfiguration, "plugin", "manifest",
			fmt.Sprintf("plugin %q declares type %q but no entry point", m.ID, m.Type), nil)
	}
	return CheckCompatibility(m.APIVersion)
}

// capabilityMatches reports whether the capability satisfies the phase
// interface for the declared type.
func capabilityMatches(t Type, capability any) bool {
	switch t {
	case TypeClassifier:
		_, ok := capability.(pipeline.ClassifyPhase)
		return ok
	case TypeValidator:
		_, ok := capability.(pipeline.ValidatePhase)
		return ok
	case TypeNormalizer:
		_, ok := capability.(pipeline.NormalizePhase)
		return ok
	case TypeArchiver:
		_, ok := capability.(pipeline.ArchivePhase)
		return ok
	case TypePromoter:
		_, ok := capability.(pipeline.PromotePhase)
		return ok
	}
	return false
}
