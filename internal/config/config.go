// Package config loads application settings from the environment and
// assembles the built-in engine table from per-engine credentials.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application.
type Config struct {
	// Application settings
	Port       string `envconfig:"PORT" default:"8080"`
	GinMode    string `envconfig:"GIN_MODE" default:"debug"`
	BaseURL    string `envconfig:"BASE_URL" default:"http://localhost:8080"`
	MongodbURL string `envconfig:"MONGODB_URL"`
	ValkeyURL  string `envconfig:"VALKEY_URL"`

	// Search pipeline tunables
	CacheTTL       time.Duration `envconfig:"CACHE_TTL" default:"24h"`
	OverallTimeout time.Duration `envconfig:"SEARCH_OVERALL_TIMEOUT" default:"15s"`
	EngineTimeout  time.Duration `envconfig:"SEARCH_ENGINE_TIMEOUT" default:"10s"`

	// Engines disabled regardless of credentials, comma separated.
	DisabledEngines []string `envconfig:"DISABLED_ENGINES"`

	// Per-engine credentials. An engine missing its credentials loads
	// disabled; keyless engines are always available.
	JamendoClientID     string `envconfig:"JAMENDO_API_KEY"`
	DiscogsToken        string `envconfig:"DISCOGS_API_TOKEN"`
	GeniusAccessToken   string `envconfig:"GENIUS_ACCESS_TOKEN"`
	SpotifyClientID     string `envconfig:"SPOTIFY_CLIENT_ID"`
	SpotifyClientSecret string `envconfig:"SPOTIFY_CLIENT_SECRET"`
	AppleMusicKeyID     string `envconfig:"APPLE_MUSIC_KEY_ID"`
	AppleMusicTeamID    string `envconfig:"APPLE_MUSIC_TEAM_ID"`
	AppleMusicKeyFile   string `envconfig:"APPLE_MUSIC_KEY_FILE"`
}

// Load reads configuration from environment variables. URL and credential
// values go through ExpandEnv, so a missing ${VAR:?msg} reference fails the
// load rather than a later search.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.expand(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) expand() error {
	fields := []*string{
		&c.BaseURL, &c.MongodbURL, &c.ValkeyURL,
		&c.JamendoClientID, &c.DiscogsToken, &c.GeniusAccessToken,
		&c.SpotifyClientID, &c.SpotifyClientSecret,
		&c.AppleMusicKeyID, &c.AppleMusicTeamID, &c.AppleMusicKeyFile,
	}
	for _, field := range fields {
		expanded, err := ExpandEnv(*field)
		if err != nil {
			return err
		}
		*field = expanded
	}
	return nil
}

// EngineDisabled reports whether an engine was switched off by name.
func (c *Config) EngineDisabled(name string) bool {
	for _, disabled := range c.DisabledEngines {
		if strings.EqualFold(strings.TrimSpace(disabled), name) {
			return true
		}
	}
	return false
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ExpandEnv substitutes environment variable references in a string:
// ${VAR} plain, ${VAR:-default} with a fallback, ${VAR:?message} required.
// A plain reference to an unset variable is left as written.
func ExpandEnv(value string) (string, error) {
	var expandErr error
	expanded := envVarPattern.ReplaceAllStringFunc(value, func(match string) string {
		expr := match[2 : len(match)-1]

		if name, message, ok := strings.Cut(expr, ":?"); ok {
			env, set := os.LookupEnv(name)
			if !set {
				expandErr = fmt.Errorf("required environment variable %s is not set: %s", name, message)
				return match
			}
			return env
		}

		if name, fallback, ok := strings.Cut(expr, ":-"); ok {
			if env, set := os.LookupEnv(name); set {
				return env
			}
			return fallback
		}

		if env, set := os.LookupEnv(expr); set {
			return env
		}
		return match
	})
	if expandErr != nil {
		return "", expandErr
	}
	return expanded, nil
}
