package config

const (
	defaultConfigPath        = "~/.config/captionsaver/config.toml"
	projectConfigName        = "captionsaver.toml"
	defaultDataDir           = "~/.local/share/captionsaver"
	defaultExportDir         = "~/Documents/captions"
	defaultLogDir            = "~/.local/share/captionsaver/logs"
	defaultHistoryDBName     = "history.db"
	defaultSocketName        = "captionsaver.sock"
	defaultMergeWindow       = 5
	defaultMaxMergeDistance  = 3
	defaultMinMergeCanonical = 25
	defaultShortPhrase       = 20
	defaultMinFragmentLength = 2
	defaultRefreshMS         = 1000
	defaultCaptionRetryMS    = 1500
	defaultCaptionAttempts   = 10
	defaultIngestAddr        = "127.0.0.1:7488"
	defaultMaxMessageKiB     = 64
	defaultRedisKeyPrefix    = "captionsaver:transcript:"
	defaultNtfyTimeout       = 10
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultRetentionDays     = 30
)

// defaultDenylist mirrors textutil.DefaultDenylist; config cannot import
// textutil without a cycle through logging.
var defaultDenylist = []string{
	`arrow[_-]?downward`,
	`more_vert`,
	`expand_less`,
	`settings`,
	`jump to (bottom|latest)`,
}

// Default returns a Config populated with defaults. Paths are unexpanded
// until Load normalizes them.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			ExportDir: defaultExportDir,
			LogDir:    defaultLogDir,
		},
		Engine: Engine{
			MergeWindow:             defaultMergeWindow,
			MaxMergeDistance:        defaultMaxMergeDistance,
			MinMergeCanonicalLength: defaultMinMergeCanonical,
			ShortPhraseThreshold:    defaultShortPhrase,
			ProtectShortPhrases:     true,
			MinFragmentLength:       defaultMinFragmentLength,
			Denylist:                append([]string(nil), defaultDenylist...),
		},
		Session: Session{
			RefreshIntervalMS: defaultRefreshMS,
			SkipEmpty:         true,
		},
		Captions: Captions{
			RetryIntervalMS: defaultCaptionRetryMS,
			MaxAttempts:     defaultCaptionAttempts,
		},
		Ingest: Ingest{
			ListenAddr:    defaultIngestAddr,
			MaxMessageKiB: defaultMaxMessageKiB,
		},
		Redis: Redis{
			KeyPrefix: defaultRedisKeyPrefix,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultRetentionDays,
		},
	}
}
