// seed loads the Mergington sample activities and their starting
// participants into the configured store.
//
// By default it does nothing when the store already holds activities;
// --force adds any sample activity that is still missing.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"example.com/mergington/internal/config"
	"example.com/mergington/internal/domain"
	"example.com/mergington/internal/logging"
	"example.com/mergington/internal/persistence"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var store string
	var force bool
	var dotenv string

	flagSet := pflag.NewFlagSet("seed", pflag.ContinueOnError)
	flagSet.StringVar(&store, "store", "", "store driver to seed: memory, sqlite or postgres (default: STORE_DRIVER)")
	flagSet.BoolVarP(&force, "force", "f", false, "add missing sample activities even if the store is not empty")
	flagSet.StringVar(&dotenv, "env-file", ".env", "dotenv file read before the environment")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(dotenv)
	if err != nil {
		return err
	}
	if store != "" {
		cfg.StoreDriver = strings.ToLower(store)
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	backend, err := persistence.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	if cfg.StoreDriver == config.StoreMemory {
		logger.Warn("seeding the memory store only lasts for this process")
	}

	result, err := persistence.Seed(ctx, domain.NewService(backend.Store), persistence.SampleActivities, force)
	if err != nil {
		return err
	}
	if result.Skipped {
		logger.Info("store already has activities, nothing seeded (use --force to add missing samples)")
		return nil
	}
	logger.Info("seeded sample data", slog.String("store", cfg.StoreDriver), slog.Int("activities", result.Activities), slog.Int("users", result.Users))
	return nil
}
