package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths holds on-disk locations.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	ExportDir  string `toml:"export_dir"`
	LogDir     string `toml:"log_dir"`
	HistoryDB  string `toml:"history_db"`
	SocketPath string `toml:"socket_path"`
}

// Engine holds the consolidation thresholds and fragment filters.
type Engine struct {
	MergeWindow             int      `toml:"merge_window"`
	MaxMergeDistance        int      `toml:"max_merge_distance"`
	MinMergeCanonicalLength int      `toml:"min_merge_canonical_length"`
	ShortPhraseThreshold    int      `toml:"short_phrase_threshold"`
	ProtectShortPhrases     bool     `toml:"protect_short_phrases"`
	MinFragmentLength       int      `toml:"min_fragment_length"`
	Denylist                []string `toml:"denylist"`
	DenylistFile            string   `toml:"denylist_file"`
}

// Session controls recording sessions and their autosave.
type Session struct {
	DefaultTitle      string `toml:"default_title"`
	RefreshIntervalMS int    `toml:"refresh_interval_ms"`
	SkipEmpty         bool   `toml:"skip_empty"`
}

// Captions controls the auto-enable retry loop.
type Captions struct {
	AutoEnable      bool     `toml:"auto_enable"`
	EnableCommand   []string `toml:"enable_command"`
	RetryIntervalMS int      `toml:"retry_interval_ms"`
	MaxAttempts     int      `toml:"max_attempts"`
}

// Ingest configures the websocket fragment endpoint.
type Ingest struct {
	ListenAddr     string   `toml:"listen_addr"`
	AllowedOrigins []string `toml:"allowed_origins"`
	MaxMessageKiB  int      `toml:"max_message_kib"`
}

// Redis configures the optional Redis export sink. An empty Addr disables it.
type Redis struct {
	Addr      string `toml:"addr"`
	Password  string `toml:"password"`
	DB        int    `toml:"db"`
	KeyPrefix string `toml:"key_prefix"`
	TTLHours  int    `toml:"ttl_hours"`
}

// Notifications configures ntfy publishing. An empty topic disables it.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging controls log format, level and run-log retention.
type Logging struct {
	Format        string            `toml:"format"`
	Level         string            `toml:"level"`
	RetentionDays int               `toml:"retention_days"`
	Components    map[string]string `toml:"components"`
}

// Config is the full application configuration.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Engine        Engine        `toml:"engine"`
	Session       Session       `toml:"session"`
	Captions      Captions      `toml:"captions"`
	Ingest        Ingest        `toml:"ingest"`
	Redis         Redis         `toml:"redis"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the per-user config file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. It returns the
// config, the path it resolved, and whether that file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: %s", strict.String())
			}
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the data, export and log directories plus the
// parents of the history database and control socket.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.DataDir,
		c.Paths.ExportDir,
		c.Paths.LogDir,
		filepath.Dir(c.Paths.HistoryDB),
		filepath.Dir(c.Paths.SocketPath),
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// RefreshInterval is the autosave cadence for in-progress sessions.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Session.RefreshIntervalMS) * time.Millisecond
}

// CaptionRetryInterval is the delay between caption enable attempts.
func (c *Config) CaptionRetryInterval() time.Duration {
	return time.Duration(c.Captions.RetryIntervalMS) * time.Millisecond
}

// RedisTTL is how long exported transcripts live in Redis; zero keeps them.
func (c *Config) RedisTTL() time.Duration {
	return time.Duration(c.Redis.TTLHours) * time.Hour
}

// NotificationTimeout bounds a single ntfy request.
func (c *Config) NotificationTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeout) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes the sample configuration file to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
