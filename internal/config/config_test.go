package config

import (
	"strings"
	"testing"
	"time"
)

const sampleJSON = `{
  "telegram": {"token": "123:abc", "poll_timeout": "15s"},
  "apex": {"api_key": "key", "request_timeout": "5s"},
  "auth": {"allowed_usernames": ["Alice", "bob"]},
  "watch": {"poll_interval": "30s", "idle_interval": "2s", "rate_per_sec": 2},
  "storage": {"state_path": "players.json", "history_path": "history.db"},
  "logging": {"level": "info", "console": true,
    "file": {"enabled": false, "path": ""},
    "telegram": {"enabled": false, "min_level": "warn", "rate_per_sec": 1}}
}`

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	cfg, err := Decode("config.json", []byte(sampleJSON))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" || cfg.Apex.APIKey != "key" {
		t.Fatalf("credentials lost: %+v", cfg)
	}
	if len(cfg.Auth.AllowedUsernames) != 2 {
		t.Fatalf("allow-list = %v", cfg.Auth.AllowedUsernames)
	}
	if cfg.Watch.RatePerSec != 2 || cfg.Watch.PollInterval != "30s" {
		t.Fatalf("watch section = %+v", cfg.Watch)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestDecodeYAML(t *testing.T) {
	t.Parallel()

	doc := `
telegram:
  token: "123:abc"
apex:
  api_key: key
auth:
  allowed_usernames:
    - alice
logging:
  level: debug
  console: true
`
	cfg, err := Decode("config.yaml", []byte(doc))
	if err != nil {
		t.Fatalf("Decode yaml: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" || cfg.Logging.Level != "debug" {
		t.Fatalf("yaml decode lost fields: %+v", cfg)
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	doc := `{"telegram": {"token": "t", "typo_field": 1}}`
	if _, err := Decode("config.json", []byte(doc)); err == nil {
		t.Fatalf("unknown field accepted")
	}
	if _, err := Decode("config.json", []byte(`{} {}`)); err == nil {
		t.Fatalf("trailing data accepted")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := func() *Config {
		cfg, err := Decode("config.json", []byte(sampleJSON))
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		return cfg
	}

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing token", func(c *Config) { c.Telegram.Token = " " }, "telegram.token"},
		{"missing api key", func(c *Config) { c.Apex.APIKey = "" }, "apex.api_key"},
		{"empty allow-list", func(c *Config) { c.Auth.AllowedUsernames = nil }, "allowed_usernames"},
		{"blank username", func(c *Config) { c.Auth.AllowedUsernames = []string{" "} }, "allowed_usernames"},
		{"bad duration", func(c *Config) { c.Watch.PollInterval = "soon" }, "watch.poll_interval"},
		{"negative rate", func(c *Config) { c.Watch.RatePerSec = -1 }, "rate_per_sec"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := base()
			tc.mutate(cfg)
			err := Validate(cfg)
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("Validate = %v, want mention of %q", err, tc.wantErr)
			}
		})
	}
}

func TestDurationFields(t *testing.T) {
	t.Parallel()

	cfg, err := Decode("config.json", []byte(sampleJSON))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	// Explicit values win over defaults.
	if d := cfg.Duration("watch.poll_interval"); d != 30*time.Second {
		t.Fatalf("watch.poll_interval = %v, want 30s", d)
	}
	// An unset field resolves to its default.
	cfg.Watch.PollInterval = ""
	if d := cfg.Duration("watch.poll_interval"); d != 60*time.Second {
		t.Fatalf("default poll interval = %v, want 60s", d)
	}
	if d := cfg.Duration("storage.history_max_age"); d != 90*24*time.Hour {
		t.Fatalf("default history max age = %v", d)
	}

	if _, err := parseDuration("x", "nope"); err == nil {
		t.Fatalf("bad duration accepted")
	}
	if _, err := parseDuration("x", "-5s"); err == nil {
		t.Fatalf("negative duration accepted")
	}
}
