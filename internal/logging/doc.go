// Package logging builds the slog loggers used across romkeep and defines
// the standardized field vocabulary for pipeline and batch events.
package logging
