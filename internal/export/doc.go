// Package export writes finished transcripts to their destinations.
//
// FileSink saves plain-text files named "<title>-<YYYY-MM-DD>.txt" into the
// export directory, one line per transcript line. RedisSink publishes the
// same document to Redis for downstream consumers. Both are idempotent per
// document ID so a failed finish can be retried safely.
package export
