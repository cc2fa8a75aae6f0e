// Package config loads and validates the settings a gg-core process boots
// from: environment variables and an optional config file layered through
// spf13/viper, validated with go-playground/validator/v10 before anything
// is wired up.
package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	liberr "github.com/mythologiq/gg-core/errors"
	"github.com/mythologiq/gg-core/runtime"
)

var validate = validator.New()

// Settings is the resolved, validated configuration surface. Field names
// double as viper keys via the mapstructure tag.
type Settings struct {
	SocketPath string `mapstructure:"socket_path" validate:"required"`
	AuthToken  string `mapstructure:"auth_token" validate:"required,min=16"`
	Env        string `mapstructure:"env" validate:"omitempty,oneof=development staging production"`
	LogLevel   string `mapstructure:"log_level" validate:"omitempty,oneof=panic fatal error warn info debug"`

	SessionTimeout   time.Duration `mapstructure:"session_timeout" validate:"gt=0"`
	MaxPending       int           `mapstructure:"max_pending" validate:"gt=0"`
	MaxContextTokens int           `mapstructure:"max_context_tokens" validate:"gt=0"`
	MaxConnections   int           `mapstructure:"max_connections" validate:"gt=0"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// Defaults returns the zero-config settings, identical to what `config
// defaults` prints: every field populated except AuthToken, which has no
// safe default and must always be supplied.
func Defaults() Settings {
	return Settings{
		SocketPath:       "/var/run/gg-core/gg-core.sock",
		Env:              "production",
		LogLevel:         "info",
		SessionTimeout:   30 * time.Minute,
		MaxPending:       256,
		MaxContextTokens: 8192,
		MaxConnections:   256,
		ShutdownTimeout:  30 * time.Second,
	}
}

// Validate runs struct-tag validation over s, returning a KindInvalidInput
// error (CLI exit code 2) describing every failing field.
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return liberr.New(liberr.MinPkgConfig+1, liberr.KindInvalidInput, "configuration validation failed", err)
	}
	return nil
}

// Redacted returns s as a map suitable for `config show`, with AuthToken
// masked rather than printed.
func (s Settings) Redacted() map[string]interface{} {
	token := "(unset)"
	if s.AuthToken != "" {
		token = "***redacted***"
	}
	return map[string]interface{}{
		"socket_path":        s.SocketPath,
		"auth_token":         token,
		"env":                s.Env,
		"log_level":          s.LogLevel,
		"session_timeout":    s.SessionTimeout.String(),
		"max_pending":        s.MaxPending,
		"max_context_tokens": s.MaxContextTokens,
		"max_connections":    s.MaxConnections,
		"shutdown_timeout":   s.ShutdownTimeout.String(),
	}
}

// ToRuntimeConfig layers s onto runtime.DefaultConfig, leaving every
// subsystem sub-config (KVCache, ModelPool, SmartLoader, Sanitizer) at its
// own default — Settings only exposes the knobs meant to be environment-
// or config-file-tunable.
func (s Settings) ToRuntimeConfig() runtime.Config {
	rc := runtime.DefaultConfig()
	rc.SocketPath = s.SocketPath
	rc.AuthToken = s.AuthToken
	rc.SessionTimeout = s.SessionTimeout
	rc.MaxPending = s.MaxPending
	rc.MaxContextTokens = s.MaxContextTokens
	rc.MaxConnections = s.MaxConnections
	rc.ShutdownTimeout = s.ShutdownTimeout
	return rc
}

// Loader resolves Settings from environment variables and, optionally, a
// config file, applying Defaults first so every unset key falls back
// sanely.
type Loader struct {
	v *viper.Viper
}

// New builds a Loader with the four environment variables spec'd for this
// deployment bound to their viper keys. Note CORE_AUTH_TOKEN does not share
// the GG_CORE_ prefix the other three use; this mirrors how the token is
// provisioned operationally (shared with non-gg-core tooling).
func New() *Loader {
	v := viper.New()

	def := Defaults()
	v.SetDefault("socket_path", def.SocketPath)
	v.SetDefault("env", def.Env)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("session_timeout", def.SessionTimeout)
	v.SetDefault("max_pending", def.MaxPending)
	v.SetDefault("max_context_tokens", def.MaxContextTokens)
	v.SetDefault("max_connections", def.MaxConnections)
	v.SetDefault("shutdown_timeout", def.ShutdownTimeout)

	_ = v.BindEnv("socket_path", "GG_CORE_SOCKET_PATH")
	_ = v.BindEnv("auth_token", "CORE_AUTH_TOKEN")
	_ = v.BindEnv("env", "GG_CORE_ENV")
	_ = v.BindEnv("log_level", "GG_CORE_LOG_LEVEL")

	return &Loader{v: v}
}

// SetConfigFile points the loader at an explicit config file; unset, no
// file is read and only defaults/environment apply.
func (l *Loader) SetConfigFile(path string) {
	l.v.SetConfigFile(path)
}

// Load resolves and validates Settings. A config file set via
// SetConfigFile that does not exist is treated as absent, not an error;
// a present-but-malformed file is.
func (l *Loader) Load() (Settings, error) {
	if l.v.ConfigFileUsed() != "" {
		if err := l.v.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && !os.IsNotExist(err) {
				return Settings{}, liberr.New(liberr.MinPkgConfig+2, liberr.KindInvalidInput, "failed to read config file", err)
			}
		}
	}

	var s Settings
	if err := l.v.Unmarshal(&s); err != nil {
		return Settings{}, liberr.New(liberr.MinPkgConfig+3, liberr.KindInvalidInput, "failed to decode configuration", err)
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}
