// Command seed loads the bundled sample catalog into the configured store.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/SajivJess/Wally/internal/app"
	"github.com/SajivJess/Wally/internal/config"
	"github.com/SajivJess/Wally/internal/fixtures"
	"github.com/SajivJess/Wally/internal/seed"
	pkgconfig "github.com/SajivJess/Wally/pkg/config"
	"github.com/SajivJess/Wally/pkg/logger"
)

func main() {
	force := flag.Bool("force", false, "insert sample data even when products already exist")
	flag.Parse()

	if err := pkgconfig.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", slog.String("error", err.Error()))
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.New(config.ServiceName+"-seed", cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := run(ctx, cfg, *force, log); err != nil {
		log.Error("seeding failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, force bool, log *slog.Logger) error {
	s, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer s.Close(context.Background())

	set, err := fixtures.Load()
	if err != nil {
		return err
	}

	res, err := seed.NewSeeder(s, set, log).Run(ctx, force)
	if err != nil {
		return err
	}
	if res.Skipped {
		log.Info("store already holds products; use -force to seed anyway")
	}
	return nil
}
