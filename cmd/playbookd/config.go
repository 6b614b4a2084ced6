package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all playbookd configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	ListenAddr       string `json:"listen_addr"`
	DBPath           string `json:"db_path"`
	LogLevel         string `json:"log_level"`
	KnowledgeURL     string `json:"knowledge_url"`
	SweepSchedule    string `json:"sweep_schedule"`
	AbandonAfterMins int    `json:"abandon_after_mins"`
	WebhookTimeout   int    `json:"webhook_timeout_secs"`
}

func defaultConfig() Config {
	return Config{
		ListenAddr:       ":4600",
		DBPath:           filepath.Join(playbookDir(), "playbook.db"),
		LogLevel:         "info",
		SweepSchedule:    "*/10 * * * *",
		AbandonAfterMins: 30,
		WebhookTimeout:   10,
	}
}

func playbookDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".playbook"
	}
	return filepath.Join(home, ".playbook")
}

func settingsPath() string {
	return filepath.Join(playbookDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("PLAYBOOK_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("PLAYBOOK_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("PLAYBOOK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PLAYBOOK_KNOWLEDGE_URL"); v != "" {
		cfg.KnowledgeURL = v
	}
	if v := os.Getenv("PLAYBOOK_SWEEP_SCHEDULE"); v != "" {
		cfg.SweepSchedule = v
	}
	if v := os.Getenv("PLAYBOOK_ABANDON_AFTER_MINS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.AbandonAfterMins = n
		}
	}
	if v := os.Getenv("PLAYBOOK_WEBHOOK_TIMEOUT_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.WebhookTimeout = n
		}
	}

	return cfg
}

func (c Config) abandonAfter() time.Duration {
	return time.Duration(c.AbandonAfterMins) * time.Minute
}

func (c Config) webhookTimeout() time.Duration {
	return time.Duration(c.WebhookTimeout) * time.Second
}
