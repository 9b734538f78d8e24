package config

import (
	"fmt"
	"strings"
	"time"
)

// Defaults for every duration-typed field. An empty or zero value in the
// file falls back to its entry here; unknown paths resolve to zero.
var durationDefaults = map[string]time.Duration{
	"telegram.poll_timeout":   10 * time.Second,
	"apex.request_timeout":    10 * time.Second,
	"watch.poll_interval":     60 * time.Second,
	"watch.idle_interval":     5 * time.Second,
	"storage.history_max_age": 90 * 24 * time.Hour,
}

// durationFields pairs each duration field path with its raw value, so
// Validate and Duration stay in sync when a field is added.
func durationFields(cfg *Config) map[string]string {
	return map[string]string{
		"telegram.poll_timeout":   cfg.Telegram.PollTimeout,
		"apex.request_timeout":    cfg.Apex.RequestTimeout,
		"watch.poll_interval":     cfg.Watch.PollInterval,
		"watch.idle_interval":     cfg.Watch.IdleInterval,
		"storage.history_max_age": cfg.Storage.HistoryMaxAge,
	}
}

// Duration resolves a named duration field against its default. Components
// read fields through here only after Validate has accepted the config, so
// a parse failure at this point also falls back to the default.
func (cfg *Config) Duration(path string) time.Duration {
	d, err := parseDuration(path, durationFields(cfg)[path])
	if err != nil || d <= 0 {
		return durationDefaults[path]
	}
	return d
}

func parseDuration(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}
