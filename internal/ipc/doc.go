// Package ipc is the CLI's control channel into a running daemon: JSON-RPC
// over a Unix socket next to the daemon's lock file.
//
// The service covers the current meeting (status, lines, title, finish,
// reset), test notifications and remote shutdown. Clients dial with a short
// timeout so commands fail fast when no daemon is listening.
package ipc
