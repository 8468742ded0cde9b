package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Telegram struct {
		Token string `yaml:"token"`
	} `yaml:"telegram"`
	Quiz struct {
		QuestionsPath              string `yaml:"questions_path"`
		BankID                     string `yaml:"bank_id"`
		SessionLength              int    `yaml:"session_length"`
		OpenPeriodSeconds          int    `yaml:"open_period_seconds"`
		AdvanceSafetyMarginSeconds int    `yaml:"advance_safety_margin_seconds"`
	} `yaml:"quiz"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
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

// Seconds converts a whole-second config value to a duration, or returns
// the fallback if the value is not positive.
func Seconds(raw int, fallback time.Duration) time.Duration {
	if raw <= 0 {
		return fallback
	}
	return time.Duration(raw) * time.Second
}
