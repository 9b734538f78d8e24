package config

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Apex     ApexConfig     `json:"apex"`
	Auth     AuthConfig     `json:"auth"`
	Watch    WatchConfig    `json:"watch"`
	Storage  StorageConfig  `json:"storage"`
	Logging  LoggingConfig  `json:"logging"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type ApexConfig struct {
	APIKey string `json:"api_key"`
	// BaseURL overrides the status API endpoint (tests, proxies).
	BaseURL string `json:"base_url,omitempty"`
	// RequestTimeout is a Go duration string. Default "10s".
	RequestTimeout string `json:"request_timeout,omitempty"`
}

type AuthConfig struct {
	// AllowedUsernames is the allow-list of Telegram usernames.
	// Matching is case-insensitive.
	AllowedUsernames []string `json:"allowed_usernames"`
}

// WatchConfig controls the background status polling loop.
//
// All durations are Go duration strings (e.g. "5s", "1m").
type WatchConfig struct {
	// PollInterval is the pause between full passes. Default "60s".
	PollInterval string `json:"poll_interval,omitempty"`
	// IdleInterval is the wait while no chat is bound. Default "5s".
	IdleInterval string `json:"idle_interval,omitempty"`
	// RatePerSec bounds outbound notification sends. Default 3.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

type StorageConfig struct {
	// StatePath is the tracked-player state file. Default "./players.json".
	StatePath string `json:"state_path,omitempty"`
	// HistoryPath enables the sqlite transition history when non-empty.
	HistoryPath string `json:"history_path,omitempty"`
	// HistoryPrune is a cron spec for the retention job. Default "@daily".
	HistoryPrune string `json:"history_prune,omitempty"`
	// HistoryMaxAge is a Go duration string. Default "2160h" (90 days).
	HistoryMaxAge string `json:"history_max_age,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingTelegram mirrors warnings and errors into the bound chat,
// rate limited so log bursts cannot flood Telegram.
type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}
