// melodexctl is the operational companion to the server: run a search
// from the terminal, inspect the engine table, purge cached results, or
// reset an engine's rate-limit window.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"melodex/internal/cache"
	"melodex/internal/config"
	"melodex/internal/dispatch"
	"melodex/internal/engines"
	"melodex/internal/ratelimit"
	"melodex/internal/unify"
	"melodex/internal/validate"
)

const (
	exitOK = iota
	exitInvalidInput
	exitConfig
	exitRateLimited
	exitStoreUnreachable
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	_ = godotenv.Load()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if len(args) == 0 {
		usage()
		return exitInvalidInput
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		return exitConfig
	}

	switch args[0] {
	case "search":
		return runSearch(cfg, args[1:])
	case "engines":
		return runEngines(cfg)
	case "cache-purge":
		return runCachePurge(cfg, args[1:])
	case "ratelimit-reset":
		return runRateLimitReset(cfg, args[1:])
	case "help", "-h", "--help":
		usage()
		return exitOK
	default:
		fmt.Fprintln(os.Stderr, "unknown command:", args[0])
		usage()
		return exitInvalidInput
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: melodexctl <command> [flags]

commands:
  search <query>     run a federated search and print ranked tracks
  engines            list the engine table
  cache-purge        clear cached search results
  ratelimit-reset    clear an engine's rate-limit window`)
}

func buildRegistry(cfg *config.Config) (*engines.Registry, error) {
	list, err := cfg.BuildEngines()
	if err != nil {
		return nil, err
	}
	return engines.NewRegistry(list...), nil
}

func runSearch(cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	engineList := fs.String("engines", "", "comma-separated engine selection")
	limit := fs.Int("limit", 0, "per-engine result limit")
	skipCache := fs.Bool("skip-cache", false, "bypass the result cache")
	timeout := fs.Duration("timeout", 0, "overall deadline override")
	if err := fs.Parse(args); err != nil {
		return exitInvalidInput
	}
	query := strings.Join(fs.Args(), " ")

	ranking := config.GetRankingConfig()
	unify.SetTunables(ranking.PlatformWeights, ranking.PlatformCountBonus, ranking.MaxScore)

	registry, err := buildRegistry(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		return exitConfig
	}

	var store cache.Cache = cache.NewMemoryCache()
	var limiterStore ratelimit.Store = ratelimit.NewMemoryStore()
	if cfg.ValkeyURL != "" {
		valkeyStore, err := cache.NewValkeyCache(cfg.ValkeyURL)
		if err != nil {
			fmt.Fprintln(os.Stderr, "valkey unreachable:", err)
			return exitStoreUnreachable
		}
		defer valkeyStore.Close()
		store = valkeyStore
		if limiterStore, err = ratelimit.NewValkeyStoreFromURL(cfg.ValkeyURL); err != nil {
			fmt.Fprintln(os.Stderr, "valkey unreachable:", err)
			return exitStoreUnreachable
		}
	}

	overall := cfg.OverallTimeout
	if *timeout > 0 {
		overall = *timeout
	}
	dispatcher := dispatch.NewDispatcher(registry, engines.NewExecutor(),
		cache.NewResultCacheTTL(store, cfg.CacheTTL),
		ratelimit.NewLimiter(limiterStore),
		dispatch.DispatcherConfig{OverallTimeout: overall, EngineTimeout: cfg.EngineTimeout})

	opts := dispatch.Options{Limit: *limit, SkipCache: *skipCache}
	if *engineList != "" {
		for _, name := range strings.Split(*engineList, ",") {
			if name = strings.TrimSpace(name); name != "" {
				opts.Engines = append(opts.Engines, name)
			}
		}
	}

	resp, err := dispatcher.Search(context.Background(), query, opts)
	if err != nil {
		var invalid *validate.InvalidInputError
		if errors.As(err, &invalid) {
			fmt.Fprintln(os.Stderr, invalid.Error())
			return exitInvalidInput
		}
		fmt.Fprintln(os.Stderr, "search failed:", err)
		return exitStoreUnreachable
	}

	rateLimited := 0
	names := make([]string, 0, len(resp.Statuses))
	for name := range resp.Statuses {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		status := resp.Statuses[name]
		if status == dispatch.StatusRateLimited {
			rateLimited++
		}
		fmt.Printf("%-16s %s\n", name, status)
	}
	fmt.Printf("\n%d tracks (%d duplicates removed, %dms)\n\n", len(resp.Tracks), resp.Duplicates, resp.ElapsedMs)

	for i, track := range resp.Tracks {
		platforms := make([]string, 0, len(track.Platforms))
		for name := range track.Platforms {
			platforms = append(platforms, name)
		}
		sort.Strings(platforms)
		fmt.Printf("%2d. %s - %s [%.0f] (%s)\n", i+1, track.Artist, track.Title,
			track.PopularityScore, strings.Join(platforms, ", "))
		if url := track.FirstURL(); url != "" {
			fmt.Printf("    %s\n", url)
		}
	}

	if resp.Queried > 0 && rateLimited == resp.Queried {
		return exitRateLimited
	}
	return exitOK
}

func runEngines(cfg *config.Config) int {
	registry, err := buildRegistry(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		return exitConfig
	}

	fmt.Printf("%-16s %-10s %-8s %s\n", "ENGINE", "ENABLED", "KEYED", "FEATURES")
	for _, engine := range registry.List() {
		d := engine.Descriptor()
		fmt.Printf("%-16s %-10t %-8t %s\n", d.Name, d.Enabled, d.RequiresAPIKey, strings.Join(d.Features, ","))
	}
	return exitOK
}

func runCachePurge(cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("cache-purge", flag.ContinueOnError)
	prefix := fs.String("prefix", "", "purge only keys under this prefix")
	if err := fs.Parse(args); err != nil {
		return exitInvalidInput
	}
	if cfg.ValkeyURL == "" {
		fmt.Fprintln(os.Stderr, "VALKEY_URL is not set")
		return exitConfig
	}

	store, err := cache.NewValkeyCache(cfg.ValkeyURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "valkey unreachable:", err)
		return exitStoreUnreachable
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	removed, err := cache.NewResultCache(store).Purge(ctx, *prefix)
	if err != nil {
		fmt.Fprintln(os.Stderr, "purge failed:", err)
		return exitStoreUnreachable
	}
	fmt.Printf("removed %d cached entries\n", removed)
	return exitOK
}

func runRateLimitReset(cfg *config.Config, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: melodexctl ratelimit-reset <engine>")
		return exitInvalidInput
	}
	engine := args[0]

	registry, err := buildRegistry(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		return exitConfig
	}
	if _, ok := registry.Lookup(engine); !ok {
		fmt.Fprintln(os.Stderr, "unknown engine:", engine)
		return exitInvalidInput
	}
	if cfg.ValkeyURL == "" {
		fmt.Fprintln(os.Stderr, "VALKEY_URL is not set")
		return exitConfig
	}

	store, err := ratelimit.NewValkeyStoreFromURL(cfg.ValkeyURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "valkey unreachable:", err)
		return exitStoreUnreachable
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ratelimit.NewLimiter(store).Reset(ctx, engine); err != nil {
		fmt.Fprintln(os.Stderr, "reset failed:", err)
		return exitStoreUnreachable
	}
	fmt.Printf("rate-limit window cleared for %s\n", engine)
	return exitOK
}
