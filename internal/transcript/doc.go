// Package transcript consolidates live-caption fragments into an ordered,
// deduplicated, timestamped transcript.
//
// An Engine owns one session: a ledger of lines, a table mapping fragment
// sources to the line they last produced, and the instant the session
// started. Each accepted Observation either revises the line its source
// already owns, refines one of the most recent lines, or appends a new line.
// Short and speaker-labeled lines are never merged into, nor absorbed by,
// other lines.
//
// Engines are single-writer. Callers that receive fragments from several
// goroutines serialize them before calling Observe.
package transcript
