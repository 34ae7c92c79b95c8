// Package daemon coordinates the long-running captionsaver process.
//
// It wires configuration, the history store, export sinks and the session
// recorder into a single lifecycle with flock-based locking to prevent
// multiple instances. While running it serves the websocket ingest endpoint,
// checkpoints the in-progress meeting into history, and retries the caption
// enable command when auto-enable is configured.
//
// Stop flushes the current meeting through every sink before releasing the
// lock, so a clean shutdown never loses a transcript that has lines.
package daemon
