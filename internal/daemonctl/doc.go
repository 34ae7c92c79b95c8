// Package daemonctl starts, stops and restarts the background daemon process
// from the CLI. It talks to the daemon over IPC and falls back to the pid file
// when a graceful stop does not finish in time.
package daemonctl
