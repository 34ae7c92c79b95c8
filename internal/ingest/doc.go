// Package ingest accepts live caption fragments over a websocket.
//
// Clients (typically a browser extension watching the meeting's caption
// region) connect to /v1/fragments and send one JSON text message per
// observation. A message with a "type" of "title", "finish" or "reset"
// controls the session instead; those are answered with an ack. GET
// /v1/health reports listener and session state.
package ingest
