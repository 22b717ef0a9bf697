package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"melodex/internal/engines"
)

// BuildEngines assembles the built-in engine table. Keyless engines are
// enabled unless explicitly disabled; keyed engines additionally need their
// credentials. A bad Apple Music key is an error, not a silent disable.
func (c *Config) BuildEngines() ([]engines.Engine, error) {
	var list []engines.Engine

	list = append(list,
		engines.NewDeezer(!c.EngineDisabled("deezer")),
		engines.NewMusicBrainz(!c.EngineDisabled("musicbrainz")),
		engines.NewBandcamp(!c.EngineDisabled("bandcamp")),
		engines.NewTidalWeb(!c.EngineDisabled("tidalweb")),
		engines.NewRadioParadise(!c.EngineDisabled("radioparadise")),
		engines.NewMusicToScrape(!c.EngineDisabled("musictoscrape")),
	)

	list = append(list,
		engines.NewJamendo(c.JamendoClientID, !c.EngineDisabled("jamendo")),
		engines.NewDiscogs(c.DiscogsToken, !c.EngineDisabled("discogs")),
		engines.NewGenius(c.GeniusAccessToken, !c.EngineDisabled("genius")),
		engines.NewSpotify(c.SpotifyClientID, c.SpotifyClientSecret, !c.EngineDisabled("spotify")),
	)

	appleMusic, err := c.buildAppleMusic()
	if err != nil {
		return nil, err
	}
	list = append(list, appleMusic)

	for i, engine := range list {
		overrides, err := engineOverrides(engine.Descriptor().Name)
		if err != nil {
			return nil, err
		}
		list[i] = engines.Customize(engine, overrides)
	}

	enabled := 0
	for _, engine := range list {
		if engine.Descriptor().Enabled {
			enabled++
		}
	}
	slog.Info("engine table loaded", "engines", len(list), "enabled", enabled)
	return list, nil
}

// engineOverrides reads the ENGINES_<NAME>_* environment keys for one
// engine: RATE_LIMIT (count), RATE_PERIOD / TIMEOUT / CACHE_TTL (seconds),
// BASE_URL and USER_AGENT. The base URL value goes through ExpandEnv.
func engineOverrides(name string) (engines.Overrides, error) {
	var o engines.Overrides
	prefix := "ENGINES_" + strings.ToUpper(name) + "_"

	var err error
	if o.RateLimit, err = intSetting(prefix + "RATE_LIMIT"); err != nil {
		return o, err
	}
	if o.RatePeriod, err = secondsSetting(prefix + "RATE_PERIOD"); err != nil {
		return o, err
	}
	if o.Timeout, err = secondsSetting(prefix + "TIMEOUT"); err != nil {
		return o, err
	}
	if o.CacheTTL, err = secondsSetting(prefix + "CACHE_TTL"); err != nil {
		return o, err
	}
	if raw := os.Getenv(prefix + "BASE_URL"); raw != "" {
		if o.BaseURL, err = ExpandEnv(raw); err != nil {
			return o, err
		}
	}
	o.UserAgent = os.Getenv(prefix + "USER_AGENT")
	return o, nil
}

func intSetting(key string) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return n, nil
}

func secondsSetting(key string) (time.Duration, error) {
	n, err := intSetting(key)
	return time.Duration(n) * time.Second, err
}

func (c *Config) buildAppleMusic() (engines.Engine, error) {
	var keyPEM []byte
	if c.AppleMusicKeyFile != "" {
		data, err := os.ReadFile(c.AppleMusicKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read Apple Music key file: %w", err)
		}
		keyPEM = data
	}

	appleMusic, err := engines.NewAppleMusic(
		c.AppleMusicKeyID, c.AppleMusicTeamID, keyPEM,
		!c.EngineDisabled("applemusic"))
	if err != nil {
		return nil, fmt.Errorf("invalid Apple Music key: %w", err)
	}
	return appleMusic, nil
}
