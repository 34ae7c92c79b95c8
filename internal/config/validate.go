package config

import (
	"errors"
	"fmt"
	"net"
	"regexp"
)

var validLevels = map[string]struct{}{
	"debug": {}, "info": {}, "warn": {}, "warning": {}, "error": {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateSession(); err != nil {
		return err
	}
	if err := c.validateCaptions(); err != nil {
		return err
	}
	if err := c.validateIngest(); err != nil {
		return err
	}
	if err := c.validateRedis(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.ExportDir == "" {
		return errors.New("paths.export_dir must be set")
	}
	if c.Paths.HistoryDB == "" {
		return errors.New("paths.history_db must be set")
	}
	return nil
}

func (c *Config) validateEngine() error {
	var errs []error
	if c.Engine.MergeWindow < 0 {
		errs = append(errs, errors.New("engine.merge_window must be >= 0"))
	}
	if c.Engine.MaxMergeDistance < 0 {
		errs = append(errs, errors.New("engine.max_merge_distance must be >= 0"))
	}
	if c.Engine.MinMergeCanonicalLength < 0 {
		errs = append(errs, errors.New("engine.min_merge_canonical_length must be >= 0"))
	}
	if c.Engine.ShortPhraseThreshold < 0 {
		errs = append(errs, errors.New("engine.short_phrase_threshold must be >= 0"))
	}
	for _, pattern := range c.Engine.Denylist {
		if _, err := regexp.Compile(pattern); err != nil {
			errs = append(errs, fmt.Errorf("engine.denylist pattern %q: %w", pattern, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Config) validateSession() error {
	if c.Session.RefreshIntervalMS < 0 {
		return errors.New("session.refresh_interval_ms must be >= 0")
	}
	return nil
}

func (c *Config) validateCaptions() error {
	if c.Captions.RetryIntervalMS <= 0 {
		return errors.New("captions.retry_interval_ms must be positive")
	}
	if c.Captions.MaxAttempts <= 0 {
		return errors.New("captions.max_attempts must be positive")
	}
	if c.Captions.AutoEnable && len(c.Captions.EnableCommand) == 0 {
		return errors.New("captions.enable_command is required when captions.auto_enable is true")
	}
	return nil
}

func (c *Config) validateIngest() error {
	if c.Ingest.ListenAddr == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Ingest.ListenAddr); err != nil {
		return fmt.Errorf("ingest.listen_addr %q: %w", c.Ingest.ListenAddr, err)
	}
	if c.Ingest.MaxMessageKiB < 0 {
		return errors.New("ingest.max_message_kib must be >= 0")
	}
	return nil
}

func (c *Config) validateRedis() error {
	if c.Redis.DB < 0 {
		return errors.New("redis.db must be >= 0")
	}
	if c.Redis.TTLHours < 0 {
		return errors.New("redis.ttl_hours must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be console or json", c.Logging.Format)
	}
	if _, ok := validLevels[c.Logging.Level]; !ok {
		return fmt.Errorf("logging.level %q is not recognized", c.Logging.Level)
	}
	for component, level := range c.Logging.Components {
		if _, ok := validLevels[level]; !ok {
			return fmt.Errorf("logging.components.%s level %q is not recognized", component, level)
		}
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	return nil
}
