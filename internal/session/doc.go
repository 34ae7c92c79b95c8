// Package session turns the consolidation engine into a recordable meeting.
//
// A Recorder owns one transcript.Engine plus the metadata that makes its
// output exportable: a session ID, a title and the start time. Observation
// sources push into it from any goroutine; a mutex serializes every call into
// the engine. Finish hands the transcript to each export sink and, once all
// of them succeed, starts a fresh session under a new ID.
package session
