package session

import (
	"fmt"
	"log/slog"

	"captionsaver/internal/config"
	"captionsaver/internal/logging"
	"captionsaver/internal/textutil"
	"captionsaver/internal/transcript"
)

// EngineOptions translates the [engine] config section. The denylist file,
// when set, extends the inline patterns.
func EngineOptions(cfg *config.Config, clock transcript.Clock, logger *slog.Logger) (transcript.Options, error) {
	patterns := append([]string(nil), cfg.Engine.Denylist...)
	if cfg.Engine.DenylistFile != "" {
		extra, err := textutil.LoadDenylistFile(cfg.Engine.DenylistFile)
		if err != nil {
			return transcript.Options{}, err
		}
		patterns = append(patterns, extra...)
	}
	normalizer, err := textutil.NewNormalizer(textutil.NormalizerOptions{
		Denylist:  patterns,
		MinLength: cfg.Engine.MinFragmentLength,
	})
	if err != nil {
		return transcript.Options{}, fmt.Errorf("engine normalizer: %w", err)
	}
	policy := transcript.Policy{
		MergeWindow:             cfg.Engine.MergeWindow,
		MaxMergeDistance:        cfg.Engine.MaxMergeDistance,
		MinMergeCanonicalLength: cfg.Engine.MinMergeCanonicalLength,
		ShortPhraseThreshold:    cfg.Engine.ShortPhraseThreshold,
		ProtectShortPhrases:     cfg.Engine.ProtectShortPhrases,
	}
	if err := policy.Validate(); err != nil {
		return transcript.Options{}, err
	}
	return transcript.Options{
		Normalizer: normalizer,
		Policy:     &policy,
		Clock:      clock,
		Logger:     logger,
	}, nil
}

// NewRecorderFromConfig wires a recorder from cfg with the given sinks. The
// engine logs under the "transcript" component and the recorder under
// "session".
func NewRecorderFromConfig(cfg *config.Config, clock transcript.Clock, sinks []ExportSink, loggers *logging.ComponentLoggers) (*Recorder, error) {
	engineOpts, err := EngineOptions(cfg, clock, loggers.For("transcript"))
	if err != nil {
		return nil, err
	}
	return NewRecorder(Options{
		Engine:       engineOpts,
		Sinks:        sinks,
		DefaultTitle: cfg.Session.DefaultTitle,
		SkipEmpty:    cfg.Session.SkipEmpty,
		Logger:       loggers.For("session"),
	})
}
