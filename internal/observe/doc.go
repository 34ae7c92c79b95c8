// Package observe defines the fragment wire format and replayable sources.
//
// A fragment is one JSON object, {"sourceId", "text", "observedAt"}, where
// observedAt is RFC 3339 or Unix milliseconds. JSONL files hold one fragment
// per line; lines that do not start with '{' are taken as bare caption text.
package observe
