package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/sepalytics/sepa-ingestor/internal/adapter"
	"github.com/sepalytics/sepa-ingestor/internal/config"
	"github.com/sepalytics/sepa-ingestor/internal/domain"
	"github.com/sepalytics/sepa-ingestor/internal/logger"
	"github.com/sepalytics/sepa-ingestor/internal/pipeline"
	"github.com/sepalytics/sepa-ingestor/internal/store"
)

var (
	configFile  = flag.String("config", "", "Path to configuration file")
	envPath     = flag.String("env", "config/", "Path to environment files")
	archivePath = flag.String("archive", "", "Path to the daily disclosure archive (zip of per-merchant zips)")
	dateArg     = flag.String("date", "", "Ingestion day in YYYY-MM-DD (default: today UTC)")
	force       = flag.Bool("force", false, "Re-ingest a day that already completed")
)

func main() {
	flag.Parse()

	if *archivePath == "" {
		fmt.Fprintln(os.Stderr, "missing required flag: -archive")
		flag.Usage()
		os.Exit(2)
	}

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadIngestorConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Create context cancelled by shutdown signals
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:     cfg.Debug,
		SentryDSN: cfg.SentryDSN,
		Tags: map[string]string{
			"service": "ingestor",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)

	day, err := resolveDay(*dateArg)
	if err != nil {
		logger.FatalCtx(ctx, "Invalid -date flag", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Starting Ingestor",
		zap.String("archive", *archivePath),
		zap.Time("day", day),
		zap.Bool("force", *force),
	)

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err))
	}

	// Configure connection pool
	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database",
		zap.Int("max_open_conns", cfg.Database.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.Database.MaxIdleConns),
	)

	// Run migrations
	if err := store.Migrate(ctx, db); err != nil {
		logger.FatalCtx(ctx, "Failed to run migrations", zap.Error(err))
	}

	// Initialize store and pipeline
	clock := adapter.NewClock()
	dataStore := store.NewPGStore(db, clock)
	partitions := store.NewPartitionManager(db, clock)
	pipe := pipeline.New(dataStore, partitions, clock, cfg.Pipeline)

	result, err := pipe.Run(ctx, *archivePath, day, *force)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrDayAlreadyIngested):
			logger.InfoCtx(ctx, "Day already ingested, nothing to do", zap.Time("day", day))
			return
		case errors.Is(err, domain.ErrDayAlreadyClaimed):
			logger.FatalCtx(ctx, "Another run is active for this day", zap.Time("day", day))
		}
		logger.ErrorCtx(ctx, err, zap.Time("day", day))
	}

	if result != nil {
		printSummary(result)
		if result.State != domain.RunStateCompleted {
			logger.Flush(2 * time.Second)
			os.Exit(1)
		}
	} else if err != nil {
		logger.Flush(2 * time.Second)
		os.Exit(1)
	}
}

// resolveDay parses the -date flag or defaults to today UTC
func resolveDay(arg string) (time.Time, error) {
	if arg == "" {
		return time.Now().UTC().Truncate(24 * time.Hour), nil
	}
	day, err := time.ParseInLocation("2006-01-02", arg, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected YYYY-MM-DD: %w", err)
	}
	return day, nil
}

// printSummary writes the run summary to stdout for the invoking scheduler
func printSummary(result *domain.RunResult) {
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Printf("run %s finished in state %s\n", result.RunID, result.State)
		return
	}
	fmt.Println(string(out))
}
