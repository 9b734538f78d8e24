package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate rejects configs the app cannot start (or keep running) with.
// Duration fields are checked here so a bad hot-reload never reaches the
// components that parse them.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return errors.New("telegram.token is required")
	}
	if strings.TrimSpace(cfg.Apex.APIKey) == "" {
		return errors.New("apex.api_key is required")
	}
	if len(cfg.Auth.AllowedUsernames) == 0 {
		return errors.New("auth.allowed_usernames must list at least one username")
	}
	for _, u := range cfg.Auth.AllowedUsernames {
		if strings.TrimSpace(u) == "" {
			return errors.New("auth.allowed_usernames contains an empty entry")
		}
	}

	for path, raw := range durationFields(cfg) {
		if _, err := parseDuration(path, raw); err != nil {
			return err
		}
	}

	if cfg.Watch.RatePerSec < 0 {
		return fmt.Errorf("watch.rate_per_sec must not be negative")
	}
	if cfg.Logging.Telegram.Enabled && cfg.Logging.Telegram.RatePerSec < 0 {
		return fmt.Errorf("logging.telegram.rate_per_sec must not be negative")
	}
	return nil
}
