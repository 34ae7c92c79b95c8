package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeEngine(); err != nil {
		return err
	}
	c.normalizeSession()
	c.normalizeIngest()
	c.normalizeRedis()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("CAPTIONSAVER_EXPORT_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.ExportDir = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}

	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ExportDir) == "" {
		c.Paths.ExportDir = filepath.Join(c.Paths.DataDir, "exports")
	}
	if c.Paths.ExportDir, err = expandPath(c.Paths.ExportDir); err != nil {
		return fmt.Errorf("paths.export_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.HistoryDB) == "" {
		c.Paths.HistoryDB = filepath.Join(c.Paths.DataDir, defaultHistoryDBName)
	}
	if c.Paths.HistoryDB, err = expandPath(c.Paths.HistoryDB); err != nil {
		return fmt.Errorf("paths.history_db: %w", err)
	}
	if strings.TrimSpace(c.Paths.SocketPath) == "" {
		c.Paths.SocketPath = filepath.Join(c.Paths.LogDir, defaultSocketName)
	}
	if c.Paths.SocketPath, err = expandPath(c.Paths.SocketPath); err != nil {
		return fmt.Errorf("paths.socket_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeEngine() error {
	c.Engine.Denylist = trimStrings(c.Engine.Denylist)
	c.Engine.DenylistFile = strings.TrimSpace(c.Engine.DenylistFile)
	if c.Engine.DenylistFile != "" {
		expanded, err := expandPath(c.Engine.DenylistFile)
		if err != nil {
			return fmt.Errorf("engine.denylist_file: %w", err)
		}
		c.Engine.DenylistFile = expanded
	}
	return nil
}

func (c *Config) normalizeSession() {
	c.Session.DefaultTitle = strings.TrimSpace(c.Session.DefaultTitle)
	if c.Session.RefreshIntervalMS == 0 {
		c.Session.RefreshIntervalMS = defaultRefreshMS
	}
	if c.Captions.RetryIntervalMS == 0 {
		c.Captions.RetryIntervalMS = defaultCaptionRetryMS
	}
	if c.Captions.MaxAttempts == 0 {
		c.Captions.MaxAttempts = defaultCaptionAttempts
	}
	c.Captions.EnableCommand = trimStrings(c.Captions.EnableCommand)
}

func (c *Config) normalizeIngest() {
	c.Ingest.ListenAddr = strings.TrimSpace(c.Ingest.ListenAddr)
	c.Ingest.AllowedOrigins = trimStrings(c.Ingest.AllowedOrigins)
	if c.Ingest.MaxMessageKiB == 0 {
		c.Ingest.MaxMessageKiB = defaultMaxMessageKiB
	}
}

func (c *Config) normalizeRedis() {
	if value, ok := os.LookupEnv("CAPTIONSAVER_REDIS_ADDR"); ok && strings.TrimSpace(value) != "" {
		c.Redis.Addr = strings.TrimSpace(value)
	}
	c.Redis.Addr = strings.TrimSpace(c.Redis.Addr)
	if strings.TrimSpace(c.Redis.KeyPrefix) == "" {
		c.Redis.KeyPrefix = defaultRedisKeyPrefix
	}
}

func (c *Config) normalizeNotifications() {
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = value
		}
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyTimeout
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format

	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level

	if len(c.Logging.Components) > 0 {
		components := make(map[string]string, len(c.Logging.Components))
		for name, lvl := range c.Logging.Components {
			key := strings.ToLower(strings.TrimSpace(name))
			if key == "" {
				continue
			}
			components[key] = strings.ToLower(strings.TrimSpace(lvl))
		}
		c.Logging.Components = components
	}
}

func trimStrings(values []string) []string {
	if len(values) == 0 {
		return values
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
