package services

import "context"

type contextKey string

const (
	jobIDKey    contextKey = "job_id"
	romIDKey    contextKey = "rom_id"
	phaseKey    contextKey = "phase"
	platformKey contextKey = "platform"
)

// WithJobID attaches a batch job identifier to the context.
func WithJobID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, jobIDKey, id)
}

// JobIDFromContext extracts the batch job identifier, if present.
func JobIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(jobIDKey).(string)
	return id, ok && id != ""
}

// WithRomID attaches a ROM record identifier to the context.
func WithRomID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, romIDKey, id)
}

// RomIDFromContext extracts the ROM record identifier, if present.
func RomIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(romIDKey).(string)
	return id, ok && id != ""
}

// WithPhase attaches the active pipeline phase name to the context.
func WithPhase(ctx context.Context, phase string) context.Context {
	return context.WithValue(ctx, phaseKey, phase)
}

// PhaseFromContext extracts the active pipeline phase name, if present.
func PhaseFromContext(ctx context.Context) (string, bool) {
	phase, ok := ctx.Value(phaseKey).(string)
	return phase, ok && phase != ""
}

// WithPlatform attaches the platform identifier to the context.
func WithPlatform(ctx context.Context, platform string) context.Context {
	return context.WithValue(ctx, platformKey, platform)
}

// PlatformFromContext extracts the platform identifier, if present.
func PlatformFromContext(ctx context.Context) (string, bool) {
	platform, ok := ctx.Value(platformKey).(string)
	return platform, ok && platform != ""
}
