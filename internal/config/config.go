package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	// HistoryLimit is how many persisted messages are replayed to a joining
	// participant. MaxNameLength and MaxMessageLength bound inbound payloads.
	HistoryLimit     int `mapstructure:"history_limit" yaml:"history_limit"`
	MaxNameLength    int `mapstructure:"max_name_length" yaml:"max_name_length"`
	MaxMessageLength int `mapstructure:"max_message_length" yaml:"max_message_length"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		DatabasePath:      "roomchat.db",
		LogLevel:          "info",
		HistoryLimit:      100,
		MaxNameLength:     32,
		MaxMessageLength:  256,
	}
}
