// Package captions switches on the meeting's live captions.
//
// Captions are often off when a meeting starts, so the daemon retries an
// Enabler on a fixed interval until it reports success or the attempt budget
// runs out (every 1.5s for 10 attempts by default).
package captions
