// Command seedinterests loads client interests into the cache store.
//
// The input is a YAML (or JSON) mapping of client id to interest list:
//
//	1: [cars, pets]
//	2: [books]
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/R3E-Network/scoring_api/internal/config"
	"github.com/R3E-Network/scoring_api/internal/logging"
	"github.com/R3E-Network/scoring_api/internal/scoring"
	"github.com/R3E-Network/scoring_api/internal/store"
)

// interestSetter is the part of scoring.Engine the seeder needs.
type interestSetter interface {
	SetInterests(ctx context.Context, clientID int64, interests []string, ttl time.Duration) error
}

func readSeed(path string) (map[int64][]string, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var seed map[int64][]string
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return seed, nil
}

// seed writes every entry in ascending id order and returns how many were
// written.
func seed(ctx context.Context, setter interestSetter, entries map[int64][]string, ttl time.Duration) (int, error) {
	ids := make([]int64, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for n, id := range ids {
		if err := setter.SetInterests(ctx, id, entries[id], ttl); err != nil {
			return n, fmt.Errorf("client %d: %w", id, err)
		}
	}
	return len(ids), nil
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "seedinterests:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		configPath string
		envFile    string
		seedPath   string
		ttl        time.Duration
	)
	fs := pflag.NewFlagSet("seedinterests", pflag.ContinueOnError)
	fs.StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	fs.StringVar(&envFile, "env-file", ".env", "path to a .env file (ignored if missing)")
	fs.StringVarP(&seedPath, "file", "f", "interests.yaml", "seed file mapping client id to interests")
	fs.DurationVar(&ttl, "ttl", 0, "expiry of seeded entries; 0 keeps them")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	entries, err := readSeed(seedPath)
	if err != nil {
		return err
	}

	logger := logging.New("seedinterests", cfg.Log.Level, cfg.Log.Format)

	st := store.New(store.RedisDialer(cfg.RedisSettings()), cfg.StoreOptions(logger))
	defer st.Close()

	n, err := seed(context.Background(), scoring.New(st, cfg.Scoring.ScoreTTL), entries, ttl)
	if err != nil {
		logger.WithError(err).WithField("written", n).Error("seeding stopped")
		return fmt.Errorf("seed interests: %w", err)
	}
	logger.WithField("clients", n).Infof("seeded interests into %s", cfg.RedisSettings().Addr())
	return nil
}
