// Package logs reads daemon log files for the CLI.
//
// Last returns the newest lines of a file with bounded memory, and Follow
// polls for appended lines until its context ends. Only complete lines are
// returned, so a record that is still being written shows up on the next poll.
package logs
