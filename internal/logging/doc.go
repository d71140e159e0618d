// Package logging assembles structured slog loggers and formatting helpers used
// across scribe.
//
// It owns the console and JSON handlers, rotates file outputs through
// lumberjack, and exposes context-aware helpers so pipeline code tags log lines
// with job IDs, phases, and correlation IDs automatically. Each job also gets
// its own JSON log artifact, fed by a fan-out handler, which collects worker
// output and failure traces for that job alone.
package logging
