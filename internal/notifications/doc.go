// Package notifications delivers session events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when notifications are disabled.
// Sink adapts the service to the export sink interface so a finished
// transcript announces itself alongside the file and history writers.
package notifications
