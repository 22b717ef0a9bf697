package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
)

// RankingConfig holds tunable weights for cross-source result ranking.
type RankingConfig struct {
	// Per-platform presence weights; unknown platforms get the unify
	// package's floor weight.
	PlatformWeights map[string]float64 `toml:"platform_weights"`

	// Added once per platform a track appears on.
	PlatformCountBonus float64 `toml:"platform_count_bonus"`

	// Popularity score ceiling.
	MaxScore float64 `toml:"max_score"`
}

// DefaultRankingConfig returns hard-coded safe defaults matching the
// unify package's built-ins.
func DefaultRankingConfig() *RankingConfig {
	return &RankingConfig{
		PlatformWeights: map[string]float64{
			"youtube":    30,
			"spotify":    25,
			"soundcloud": 20,
			"bandcamp":   15,
			"deezer":     10,
			"mixcloud":   10,
			"genius":     5,
		},
		PlatformCountBonus: 10,
		MaxScore:           100,
	}
}

var (
	rankingCfg     *RankingConfig
	rankingCfgOnce sync.Once
)

// GetRankingConfig loads the ranking config from TOML if
// RANKING_CONFIG_PATH is set, falling back to defaults when the env var is
// unset or the file cannot be read or parsed.
func GetRankingConfig() *RankingConfig {
	rankingCfgOnce.Do(func() {
		cfg := DefaultRankingConfig()
		if path := os.Getenv("RANKING_CONFIG_PATH"); path != "" {
			fileCfg, err := loadRankingConfigFromPath(path)
			if err != nil {
				slog.Warn("ranking config unreadable, using defaults", "path", path, "error", err)
			} else {
				mergeRankingConfig(cfg, fileCfg)
			}
		}
		rankingCfg = cfg
	})
	return rankingCfg
}

func loadRankingConfigFromPath(path string) (*RankingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var cfg RankingConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func mergeRankingConfig(base, override *RankingConfig) {
	if override == nil {
		return
	}
	for k, v := range override.PlatformWeights {
		base.PlatformWeights[k] = v
	}
	if override.PlatformCountBonus > 0 {
		base.PlatformCountBonus = override.PlatformCountBonus
	}
	if override.MaxScore > 0 {
		base.MaxScore = override.MaxScore
	}
}
