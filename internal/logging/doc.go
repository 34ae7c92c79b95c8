// Package logging assembles the slog loggers used by captionsaver.
//
// New and NewFromConfig build a console or JSON handler writing to any mix of
// stdout, stderr and files. Component loggers carry a standard "component"
// attribute and may run at a stricter level than the root logger. Daemon runs
// tag every record with a run identifier and tee into a per-run file that
// CleanupOldLogs later prunes.
//
// WarnWithContext and ErrorWithContext enforce the event_type / error_hint /
// impact triple so every warning says what broke, what it affects and what
// to check next.
package logging
