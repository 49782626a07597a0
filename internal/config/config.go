// Package config loads tracker settings from defaults, an optional config
// file, TRACKER_* environment variables and bound command-line flags.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Keys understood by Load.
const (
	KeyLogLevel = "log.level"

	KeyPort           = "server.port"
	KeyStaticDir      = "server.static_dir"
	KeyRequestTimeout = "server.request_timeout"
	KeyPollInterval   = "server.poll_interval"

	KeyProjectsFile  = "projects.file"
	KeyProjectsWatch = "projects.watch"

	KeySessionsSource = "sessions.source"
	KeySessionsDir    = "sessions.dir"
	KeySessionsURL    = "sessions.url"
	KeyActiveMinutes  = "sessions.active_minutes"
	KeySessionsLimit  = "sessions.limit"
	KeyMessageLimit   = "sessions.message_limit"
	KeyCacheSize      = "sessions.cache_size"

	KeyWorkingWindow      = "activity.working_window"
	KeyNamesFile          = "activity.names_file"
	KeyFallbackID         = "activity.fallback.id"
	KeyFallbackName       = "activity.fallback.name"
	KeyFallbackSessionKey = "activity.fallback.session_key"
)

// Session source kinds.
const (
	SourceMock = "mock"
	SourceDir  = "dir"
	SourceHTTP = "http"
)

const envPrefix = "TRACKER"

type Config struct {
	LogLevel string
	Server   ServerConfig
	Projects ProjectsConfig
	Sessions SessionsConfig
	Activity ActivityConfig
}

type ServerConfig struct {
	Port           int
	StaticDir      string
	RequestTimeout time.Duration
	PollInterval   time.Duration
}

// Addr is the listen address for Port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type ProjectsConfig struct {
	File  string
	Watch bool
}

type SessionsConfig struct {
	Source        string
	Dir           string
	URL           string
	ActiveMinutes int
	Limit         int
	MessageLimit  int
	CacheSize     int
}

type ActivityConfig struct {
	WorkingWindow      time.Duration
	NamesFile          string
	FallbackID         string
	FallbackName       string
	FallbackSessionKey string
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyLogLevel, "info")

	v.SetDefault(KeyPort, 8420)
	v.SetDefault(KeyStaticDir, "./public")
	v.SetDefault(KeyRequestTimeout, 5*time.Second)
	v.SetDefault(KeyPollInterval, 10*time.Second)

	v.SetDefault(KeyProjectsFile, "./public/projects.json")
	v.SetDefault(KeyProjectsWatch, true)

	v.SetDefault(KeySessionsSource, SourceMock)
	v.SetDefault(KeySessionsDir, "")
	v.SetDefault(KeySessionsURL, "")
	v.SetDefault(KeyActiveMinutes, 120)
	v.SetDefault(KeySessionsLimit, 10)
	v.SetDefault(KeyMessageLimit, 3)
	v.SetDefault(KeyCacheSize, 128)

	v.SetDefault(KeyWorkingWindow, 5*time.Minute)
	v.SetDefault(KeyNamesFile, "")
	v.SetDefault(KeyFallbackID, "cipher")
	v.SetDefault(KeyFallbackName, "Cipher (You)")
	v.SetDefault(KeyFallbackSessionKey, "main")
}

// Load reads configuration into a validated Config. A nil v gets a fresh
// viper instance. When path is non-empty the file must exist; its format
// follows the extension.
func Load(v *viper.Viper, path string) (Config, error) {
	if v == nil {
		v = viper.New()
	}

	SetDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Config{
		LogLevel: v.GetString(KeyLogLevel),
		Server: ServerConfig{
			Port:           v.GetInt(KeyPort),
			StaticDir:      v.GetString(KeyStaticDir),
			RequestTimeout: v.GetDuration(KeyRequestTimeout),
			PollInterval:   v.GetDuration(KeyPollInterval),
		},
		Projects: ProjectsConfig{
			File:  v.GetString(KeyProjectsFile),
			Watch: v.GetBool(KeyProjectsWatch),
		},
		Sessions: SessionsConfig{
			Source:        strings.ToLower(strings.TrimSpace(v.GetString(KeySessionsSource))),
			Dir:           v.GetString(KeySessionsDir),
			URL:           v.GetString(KeySessionsURL),
			ActiveMinutes: v.GetInt(KeyActiveMinutes),
			Limit:         v.GetInt(KeySessionsLimit),
			MessageLimit:  v.GetInt(KeyMessageLimit),
			CacheSize:     v.GetInt(KeyCacheSize),
		},
		Activity: ActivityConfig{
			WorkingWindow:      v.GetDuration(KeyWorkingWindow),
			NamesFile:          v.GetString(KeyNamesFile),
			FallbackID:         v.GetString(KeyFallbackID),
			FallbackName:       v.GetString(KeyFallbackName),
			FallbackSessionKey: v.GetString(KeyFallbackSessionKey),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535, got %d", KeyPort, c.Server.Port)
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("%s must be positive", KeyRequestTimeout)
	}
	if c.Server.PollInterval <= 0 {
		return fmt.Errorf("%s must be positive", KeyPollInterval)
	}
	if c.Projects.File == "" {
		return fmt.Errorf("%s is required", KeyProjectsFile)
	}
	if c.Activity.WorkingWindow <= 0 {
		return fmt.Errorf("%s must be positive", KeyWorkingWindow)
	}

	for key, n := range map[string]int{
		KeyActiveMinutes: c.Sessions.ActiveMinutes,
		KeySessionsLimit: c.Sessions.Limit,
		KeyMessageLimit:  c.Sessions.MessageLimit,
		KeyCacheSize:     c.Sessions.CacheSize,
	} {
		if n <= 0 {
			return fmt.Errorf("%s must be positive, got %d", key, n)
		}
	}

	switch c.Sessions.Source {
	case SourceMock:
	case SourceDir:
		if c.Sessions.Dir == "" {
			return fmt.Errorf("%s is required when %s is %q", KeySessionsDir, KeySessionsSource, SourceDir)
		}
	case SourceHTTP:
		if c.Sessions.URL == "" {
			return fmt.Errorf("%s is required when %s is %q", KeySessionsURL, KeySessionsSource, SourceHTTP)
		}
	default:
		return fmt.Errorf("unknown %s %q", KeySessionsSource, c.Sessions.Source)
	}
	return nil
}
