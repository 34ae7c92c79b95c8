// Package config loads, normalizes, and validates captionsaver configuration.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files, and honours environment fallbacks such as
// CAPTIONSAVER_EXPORT_DIR and NTFY_TOPIC. The Config type gathers every knob
// the daemon and CLI need: storage locations, consolidation thresholds,
// ingestion and export endpoints, and logging.
//
// Always obtain settings through this package so downstream code receives
// expanded paths, canonical log formats, and clear validation errors.
package config
