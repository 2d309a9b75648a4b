package main

import (
	"context"
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
	"github.com/sepalytics/sepa-ingestor/internal/logger"
	"github.com/sepalytics/sepa-ingestor/internal/store"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
	reclaim    = flag.Bool("reclaim", false, "Drop fact partitions older than the retention horizon")
	ensureDays = flag.Int("ensure-days", 0, "Pre-create fact partitions for today plus N days")
)

func main() {
	flag.Parse()

	if !*reclaim && *ensureDays <= 0 {
		fmt.Fprintln(os.Stderr, "nothing to do: pass -reclaim and/or -ensure-days N")
		flag.Usage()
		os.Exit(2)
	}

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadMaintenanceConfig(*configFile, *envPath)
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
			"service": "maintenance",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Maintenance")

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err))
	}
	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
	}

	clock := adapter.NewClock()
	partitions := store.NewPartitionManager(db, clock)

	if *ensureDays > 0 {
		today := clock.Now().UTC().Truncate(24 * time.Hour)
		end := today.AddDate(0, 0, *ensureDays)
		if err := partitions.EnsurePartitions(ctx, today, end); err != nil {
			logger.FatalCtx(ctx, "Failed to ensure partitions", zap.Error(err))
		}
		logger.InfoCtx(ctx, "Partitions ensured",
			zap.Time("from", today),
			zap.Time("to", end),
		)
	}

	if *reclaim {
		dropped, err := partitions.ReclaimPartitions(ctx, cfg.Pipeline.RetentionDays)
		if err != nil {
			logger.FatalCtx(ctx, "Failed to reclaim partitions", zap.Error(err))
		}
		logger.InfoCtx(ctx, "Partitions reclaimed",
			zap.Int("retention_days", cfg.Pipeline.RetentionDays),
			zap.Strings("dropped", dropped),
		)
	}
}
