package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port     string  `yaml:"port"`
		AdminIDs []int64 `yaml:"admin_ids"`
	} `yaml:"server"`
	Log struct {
		Mode string `yaml:"mode"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`
	Quiz Quiz `yaml:"quiz"`
}

// Quiz holds session engine tunables. Durations are Go duration strings.
type Quiz struct {
	TTL                    string `yaml:"ttl"`
	TickInterval           string `yaml:"tick_interval"`
	StartDelay             string `yaml:"start_delay"`
	AdvancePause           string `yaml:"advance_pause"`
	RevealPause            string `yaml:"reveal_pause"`
	FinishPause            string `yaml:"finish_pause"`
	PersistTimeout         string `yaml:"persist_timeout"`
	GroupModeThreshold     int    `yaml:"group_mode_threshold"`
	MaxRandomCount         int    `yaml:"max_random_count"`
	DefaultTimePerQuestion *int   `yaml:"default_time_per_question"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Duration parses a duration string or returns the fallback if empty or invalid.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// IntOr returns v when positive, otherwise fallback.
func IntOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
