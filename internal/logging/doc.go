// Package logging assembles the structured slog loggers used across the
// hdtexture CLI and pipeline.
//
// It owns level and format plumbing (console text vs JSON, with a TTY-aware
// default), exposes a no-op logger for tests and wiring code that cannot
// fail, and provides NewComponentLogger so every subsystem tags its lines
// with a uniform component attribute.
package logging
