package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/akeren/lasting-loves-waitlist/config"
	"github.com/akeren/lasting-loves-waitlist/domain/waitlist"
	"github.com/akeren/lasting-loves-waitlist/internal/log"
	"github.com/akeren/lasting-loves-waitlist/pkg/migrations"
	"github.com/akeren/lasting-loves-waitlist/pkg/utils"
	"gorm.io/gorm"
)

func main() {
	logger := log.NewLoggerWithJSONOutput()

	config.InitializeEnvFile(logger) // Load envs early for CLI consistency

	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch args[0] {
	case "migrate":
		err = runMigrate(logger, args[1:])
	case "count":
		err = runCount(logger)
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		logger.Error("Command failed", "command", args[0], "error", err.Error())
		os.Exit(1)
	}
}

func openDatabase(ctx context.Context, logger *log.Logger) (*gorm.DB, *config.DBConfig, error) {
	dbCfg := config.NewDBConfig()
	db, err := config.NewDatabase(ctx, logger, dbCfg)
	if err != nil {
		return nil, nil, err
	}
	return db, dbCfg, nil
}

func runMigrate(logger *log.Logger, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, dbCfg, err := openDatabase(ctx, logger)
	if err != nil {
		return err
	}
	defer config.CloseDatabase(db, logger)

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get SQL DB instance for migration: %w", err)
	}

	cfg := migrations.Config{
		Dir:    utils.GetEnvTrimmedOrDefault("MIGRATIONS_DIR", filepath.Join("migrations", dbCfg.Driver)),
		Driver: dbCfg.Driver,
		Logger: logger,
	}

	op := "up"
	if len(args) > 0 {
		op = args[0]
	}

	switch op {
	case "up":
		return migrations.Up(ctx, sqlDB, cfg)
	case "down":
		steps := 1
		if len(args) > 1 {
			if steps, err = strconv.Atoi(args[1]); err != nil {
				return fmt.Errorf("invalid step count %q: %w", args[1], err)
			}
		}
		return migrations.Down(ctx, sqlDB, cfg, steps)
	case "version":
		version, dirty, ok, err := migrations.Version(ctx, sqlDB, cfg)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("no migrations applied")
			return nil
		}
		fmt.Printf("version %d (dirty=%t)\n", version, dirty)
		return nil
	default:
		return fmt.Errorf("unknown migrate operation %q", op)
	}
}

func runCount(logger *log.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, _, err := openDatabase(ctx, logger)
	if err != nil {
		return err
	}
	defer config.CloseDatabase(db, logger)

	count, err := waitlist.NewWaitlistRepository(db).CountEntries(ctx)
	if err != nil {
		return err
	}

	fmt.Println(count)
	return nil
}

func printUsage() {
	fmt.Println("Usage: cli <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  migrate [up]      Apply pending SQL migrations and exit")
	fmt.Println("  migrate down [N]  Roll back the last N migrations (default 1)")
	fmt.Println("  migrate version   Print the applied schema version")
	fmt.Println("  count             Print the number of waitlist entries")
}
