package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/notdp/franxx-store-sub000/internal/config"
	"github.com/notdp/franxx-store-sub000/internal/database"
	"github.com/notdp/franxx-store-sub000/internal/database/migrations"
	"github.com/notdp/franxx-store-sub000/internal/logger"
)

const usage = "usage: migrate [-dir ./migrations] <up|down|version|to N|force N>"

func main() {
	dir := flag.String("dir", getEnv("MIGRATIONS_PATH", migrations.DefaultOptions().Dir), "directory holding the migration files")
	flag.Parse()
	args := flag.Args()

	log := logger.NewWithWriter(os.Stdout)
	if len(args) < 1 {
		log.Fatal("MIGRATE", usage)
	}

	_ = godotenv.Load()
	cfg := config.Load()

	ctx := context.Background()
	bunDB, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, migrations.Options{Dir: *dir}, log)
	defer runner.Close()

	if err := run(runner, args); err != nil {
		log.Fatal("MIGRATE", err.Error())
	}

	version, dirty, err := runner.Version()
	if err != nil {
		log.Fatal("MIGRATE", err.Error())
	}
	log.Info("MIGRATE", fmt.Sprintf("Current schema version: %d (dirty: %t)", version, dirty))
}

func run(runner *migrations.Runner, args []string) error {
	switch args[0] {
	case "up":
		return runner.Up()
	case "down":
		return runner.Down()
	case "version":
		return nil
	case "to", "force":
		if len(args) < 2 {
			return fmt.Errorf("%s needs a version: %s", args[0], usage)
		}
		version, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		if args[0] == "to" {
			return runner.To(uint(version))
		}
		return runner.Force(int(version))
	default:
		return fmt.Errorf("unknown command %q: %s", args[0], usage)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
