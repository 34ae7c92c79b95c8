// Package preflight provides readiness checks for the filesystem paths and
// external services captionsaver depends on.
//
// The CLI "captionsaver doctor" command runs RunAll and renders the results.
// Each optional check is gated by its config section: Redis only when an
// address is set, ntfy only when a topic is set, the caption command only
// when auto-enable is on.
package preflight
