package plugin

import (
	"fmt"
	"log/slog"
	"sync"

	"romkeep/internal/logging"
	"romkeep/internal/pipeline"
	"romkeep/internal/services"
)

// Registry maps plugin ids to plugins and indexes them by phase type in
// registration order. The most recently registered plugin of a type is the
// active one.
type Registry struct {
	mu     sync.Mutex
	byID   map[string]Plugin
	byType map[Type][]string
	logger *slog.Logger
}

// NewRegistry constructs an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		byID:   make(map[string]Plugin),
		byType: make(map[Type][]string),
		logger: logging.WithComponent(logger, "plugins"),
	}
}

// Register validates the manifest and admits the plugin. Duplicate ids and
// capability/type mismatches are rejected.
func (r *Registry) Register(p Plugin) error {
	if err := ValidateManifest(p.Manifest); err != nil {
		return err
	}
	if p.Capability != nil && !capabilityMatches(p.Manifest.Type, p.Capability) {
		return services.Wrap(services.ErrValidation, "plugin", "register",
			fmt.Sprintf("plugin %q capability does not implement the %s phase", p.Manifest.ID, p.Manifest.Type), nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[p.Manifest.ID]; exists {
		return services.Wrap(services.ErrValidation, "plugin", "register",
			fmt.Sprintf("plugin id %q is already registered", p.Manifest.ID), nil)
	}
	r.byID[p.Manifest.ID] = p
	r.byType[p.Manifest.Type] = append(r.byType[p.Manifest.Type], p.Manifest.ID)

	r.logger.Info("plugin registered",
		logging.String("plugin_id", p.Manifest.ID),
		logging.String("plugin_type", string(p.Manifest.Type)),
		logging.String("version", p.Manifest.Version),
	)
	return nil
}

// Unregister removes a plugin by id.
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, exists := r.byID[id]
	if !exists {
		return services.Wrap(services.ErrNotFound, "plugin", "unregister", id, nil)
	}
	delete(r.byID, id)

	ids := r.byType[p.Manifest.Type]
	for i, candidate := range ids {
		if candidate == id {
			r.byType[p.Manifest.Type] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

// Get returns a plugin by id.
func (r *Registry) Get(id string) (Plugin, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	return p, ok
}

// ByType returns all plugins of a phase type in registration order.
func (r *Registry) ByType(t Type) []Plugin {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := r.byType[t]
	out := make([]Plugin, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.byID[id])
	}
	return out
}

// ActiveForType returns the most recently registered plugin of a type with a
// usable capability.
func (r *Registry) ActiveForType(t Type) (Plugin, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := r.byType[t]
	for i := len(ids) - 1; i >= 0; i-- {
		p := r.byID[ids[i]]
		if p.Capability != nil {
			return p, true
		}
	}
	return Plugin{}, false
}

// Overrides assembles the pipeline overrides from the active plugin of each
// phase type.
func (r *Registry) Overrides() pipeline.Overrides {
	var ov pipeline.Overrides
	if p, ok := r.ActiveForType(TypeClassifier); ok {
		ov.Classify = p.Capability.(pipeline.ClassifyPhase)
	}
	if p, ok := r.ActiveForType(TypeValidator); ok {
		ov.Validate = p.Capability.(pipeline.ValidatePhase)
	}
	if p, ok := r.ActiveForType(TypeNormalizer); ok {
		ov.Normalize = p.Capability.(pipeline.NormalizePhase)
	}
	if p, ok := r.ActiveForType(TypeArchiver); ok {
		ov.Archive = p.Capability.(pipeline.ArchivePhase)
	}
	if p, ok := r.ActiveForType(TypePromoter); ok {
		ov.Promote = p.Capability.(pipeline.PromotePhase)
	}
	return ov
}
