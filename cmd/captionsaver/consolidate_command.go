package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"captionsaver/internal/export"
	"captionsaver/internal/observe"
	"captionsaver/internal/session"
	"captionsaver/internal/transcript"
)

// trackedFileSink remembers where the file sink wrote so the command can
// report it.
type trackedFileSink struct {
	*export.FileSink
	path string
}

func (s *trackedFileSink) Export(ctx context.Context, doc transcript.Document) error {
	path, err := s.Write(ctx, doc)
	if err != nil {
		return err
	}
	s.path = path
	return nil
}

func newConsolidateCommand(ctx *commandContext) *cobra.Command {
	var title string
	var save bool
	var lenient bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "consolidate [file]",
		Short: "Replay a recorded caption stream (JSONL) into a transcript",
		Long: "Reads fragments from a JSONL file (or stdin when no file or \"-\" is given), " +
			"consolidates them and prints the transcript. Lines without JSON are treated as plain caption text.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			loggers := ctx.logger()

			input, name, closeInput, err := openReplayInput(cmd, args)
			if err != nil {
				return err
			}
			defer closeInput()

			var sinks []session.ExportSink
			var files *trackedFileSink
			if save {
				store, err := ctx.openHistory()
				if err != nil {
					return err
				}
				defer store.Close()
				files = &trackedFileSink{FileSink: export.NewFileSink(cfg.Paths.ExportDir)}
				sinks = append(sinks, files, store)
			}

			clock := transcript.NewReplayClock(time.Time{})
			recorder, err := session.NewRecorderFromConfig(cfg, clock, sinks, loggers)
			if err != nil {
				return err
			}
			if strings.TrimSpace(title) != "" {
				recorder.SetTitle(title)
			}

			var opts []observe.JSONLOption
			if lenient {
				opts = append(opts, observe.WithLenient(loggers.For("observe")))
			}
			if err := recorder.Replay(cmd.Context(), observe.NewJSONLSource(input, name, opts...), clock); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			doc := recorder.Document()
			if jsonOutput {
				if err := writeJSON(cmd, doc); err != nil {
					return err
				}
			} else {
				for _, line := range doc.Lines {
					fmt.Fprintln(out, line)
				}
			}

			if !save {
				return nil
			}
			res, err := recorder.Finish(cmd.Context())
			if err != nil {
				return fmt.Errorf("save transcript: %w", err)
			}
			status := cmd.ErrOrStderr()
			if res.Skipped {
				fmt.Fprintln(status, "Nothing to save: transcript is empty")
				return nil
			}
			fmt.Fprintf(status, "Saved %d lines to %s (meeting %s)\n", len(res.Document.Lines), files.path, res.Document.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Meeting title used for the saved file name")
	cmd.Flags().BoolVar(&save, "save", false, "Save the transcript to the export directory and history")
	cmd.Flags().BoolVar(&lenient, "lenient", false, "Skip malformed lines instead of failing")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the transcript document as JSON")
	return cmd
}

func openReplayInput(cmd *cobra.Command, args []string) (io.Reader, string, func(), error) {
	if len(args) == 0 || args[0] == "-" {
		return cmd.InOrStdin(), "stdin", func() {}, nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, "", nil, fmt.Errorf("open input: %w", err)
	}
	return f, args[0], func() { _ = f.Close() }, nil
}
