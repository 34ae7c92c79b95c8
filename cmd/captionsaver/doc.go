// Package main hosts the captionsaver CLI entrypoint and command graph.
//
// Commands replay recorded caption streams into transcripts, browse and
// export meeting history, run the daemon, and talk to a running daemon over
// its control socket. Configuration resolution and socket discovery live in
// commandContext so subcommands stay declarative.
package main
