package config

import "time"

// Config holds gateway configuration values.
type Config struct {
	// Addr is the IRC listen address.
	Addr string `mapstructure:"addr" yaml:"addr"`
	// ServerName prefixes numeric replies.
	ServerName string `mapstructure:"server_name" yaml:"server_name"`
	// ControlChannel is the administrative channel, with leading '#'.
	ControlChannel string `mapstructure:"control_channel" yaml:"control_channel"`
	// CredentialsPath points at the nick -> password hash file.
	CredentialsPath string `mapstructure:"credentials_path" yaml:"credentials_path"`
	// DatabasePath is the message history database. Empty disables it.
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`
	// AdminAddr is the admin API listen address. Empty disables it.
	AdminAddr string `mapstructure:"admin_addr" yaml:"admin_addr"`
	// AdminSecret signs admin API tokens.
	AdminSecret string `mapstructure:"admin_secret" yaml:"admin_secret"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	RemoteURL         string        `mapstructure:"remote_url" yaml:"remote_url"`
	RemoteCallTimeout time.Duration `mapstructure:"remote_call_timeout" yaml:"remote_call_timeout"`

	MonitorInterval   time.Duration `mapstructure:"monitor_interval" yaml:"monitor_interval"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":6667",
		ServerName:        "ircgate.local",
		ControlChannel:    "#gateway",
		CredentialsPath:   "passwords.json",
		DatabasePath:      "ircgate.db",
		AdminAddr:         "",
		LogLevel:          "info",
		RemoteURL:         "ws://127.0.0.1:9900/ws",
		RemoteCallTimeout: 30 * time.Second,
		MonitorInterval:   2 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
	}
}
