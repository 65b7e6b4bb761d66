// Package config provides configuration loading and management for formforge.
package config

// Config is the root configuration.
type Config struct {
	Server ServerConfig `json:"server" mapstructure:"server"`
	DB     DBConfig     `json:"db"     mapstructure:"db"`
	Gemini GeminiConfig `json:"gemini" mapstructure:"gemini"`
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string `json:"addr" mapstructure:"addr"`
}

// DBConfig describes the sqlite document store.
type DBConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// GeminiConfig describes the model gateway: a pool of API keys rotated
// across retry attempts, the model name, and sampling temperature.
type GeminiConfig struct {
	APIKeys     []string `json:"api_keys"    mapstructure:"api_keys"`
	Model       string   `json:"model"       mapstructure:"model"`
	Temperature float32  `json:"temperature" mapstructure:"temperature"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":8080"},
		DB:     DBConfig{Path: "formforge.db"},
		Gemini: GeminiConfig{
			Model:       "gemini-2.0-flash",
			Temperature: 0.1,
		},
	}
}
