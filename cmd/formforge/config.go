package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/faradid/formforge/internal/config"
)

// loadConfig reads the config file when present, overlays environment
// variables, and validates the result. A missing config file is fine: the
// defaults plus GEMINI_API_KEYS are enough to run.
func loadConfig() (config.Config, error) {
	cfg := config.Default()

	if _, err := os.Stat(cfgFile); err == nil {
		if err := viper.ReadInConfig(); err != nil {
			return config.Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := config.ValidateSettings(viper.AllSettings()); err != nil {
			return config.Config{}, err
		}
		if err := viper.Unmarshal(&cfg); err != nil {
			return config.Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	if keys := os.Getenv("GEMINI_API_KEYS"); keys != "" {
		cfg.Gemini.APIKeys = cfg.Gemini.APIKeys[:0]
		for _, k := range strings.Split(keys, ",") {
			if k = strings.TrimSpace(k); k != "" {
				cfg.Gemini.APIKeys = append(cfg.Gemini.APIKeys, k)
			}
		}
	}
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		cfg.Gemini.Model = model
	}
	if addr := os.Getenv("FORMFORGE_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}
	if dbPath := os.Getenv("FORMFORGE_DB"); dbPath != "" {
		cfg.DB.Path = dbPath
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
