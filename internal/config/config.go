package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// BaseConfig holds base configuration
type BaseConfig struct {
	Debug     bool   `mapstructure:"debug"`
	SentryDSN string `mapstructure:"sentry_dsn"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// StageTimeoutConfig holds per-stage timeouts. Timeouts apply per stage, not
// per run: extraction, validation and loading have different expected durations.
type StageTimeoutConfig struct {
	Extract  time.Duration `mapstructure:"extract"`
	Validate time.Duration `mapstructure:"validate"`
	Load     time.Duration `mapstructure:"load"`
}

// PipelineConfig holds ingestion pipeline configuration
type PipelineConfig struct {
	// MaxRejectRatio fails the run when an entity's rejection ratio crosses it
	MaxRejectRatio float64 `mapstructure:"max_reject_ratio"`
	// RejectRatioMinRows is the row floor below which the ratio is not enforced
	RejectRatioMinRows int64 `mapstructure:"reject_ratio_min_rows"`
	// FooterMarkers are case/accent-insensitive substrings that identify trailer rows
	FooterMarkers []string `mapstructure:"footer_markers"`
	// BatchSize bounds validation and load batches for the price stream
	BatchSize int `mapstructure:"batch_size"`
	// ExtractWorkers bounds concurrent per-merchant archive extraction
	ExtractWorkers int `mapstructure:"extract_workers"`
	// LoadWorkers bounds concurrent fact-chunk processing
	LoadWorkers int `mapstructure:"load_workers"`
	// PartitionLookaheadDays pre-creates partitions for near-future days
	PartitionLookaheadDays int `mapstructure:"partition_lookahead_days"`
	// RetentionDays is the partition retention horizon for reclaim
	RetentionDays int `mapstructure:"retention_days"`
	// LoadMaxRetries bounds transient-fault retries per batch
	LoadMaxRetries uint64 `mapstructure:"load_max_retries"`
	// SeedExistingKeys preloads dimension keys already in the store so rows
	// referencing previously loaded merchants/stores/products are not orphans
	SeedExistingKeys bool               `mapstructure:"seed_existing_keys"`
	StageTimeout     StageTimeoutConfig `mapstructure:"stage_timeout"`
}

// IngestorConfig holds configuration for the ingestor binary
type IngestorConfig struct {
	BaseConfig `mapstructure:",squash"`
	Database   DatabaseConfig `mapstructure:"database"`
	Pipeline   PipelineConfig `mapstructure:"pipeline"`
}

// MaintenanceConfig holds configuration for the maintenance binary
type MaintenanceConfig struct {
	BaseConfig `mapstructure:",squash"`
	Database   DatabaseConfig `mapstructure:"database"`
	Pipeline   PipelineConfig `mapstructure:"pipeline"`
}

// LoadIngestorConfig loads configuration for the ingestor binary
func LoadIngestorConfig(configFile string, envPath string) (*IngestorConfig, error) {
	v := configureViper("ingestor", configFile, envPath)
	setPipelineDefaults(v)

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg IngestorConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validateDatabase(&cfg.Database); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadMaintenanceConfig loads configuration for the maintenance binary
func LoadMaintenanceConfig(configFile string, envPath string) (*MaintenanceConfig, error) {
	v := configureViper("maintenance", configFile, envPath)
	setPipelineDefaults(v)

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg MaintenanceConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validateDatabase(&cfg.Database); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setPipelineDefaults(v *viper.Viper) {
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.conn_max_idle_time", "10m")
	v.SetDefault("pipeline.max_reject_ratio", 0.05)
	v.SetDefault("pipeline.reject_ratio_min_rows", 100)
	// "Ultima actualización" trailer, accent- and case-insensitive
	v.SetDefault("pipeline.footer_markers", []string{"ltima actualizaci"})
	v.SetDefault("pipeline.batch_size", 5000)
	v.SetDefault("pipeline.extract_workers", 8)
	v.SetDefault("pipeline.load_workers", 4)
	v.SetDefault("pipeline.partition_lookahead_days", 2)
	v.SetDefault("pipeline.retention_days", 90)
	v.SetDefault("pipeline.load_max_retries", 4)
	v.SetDefault("pipeline.seed_existing_keys", true)
	v.SetDefault("pipeline.stage_timeout.extract", "10m")
	v.SetDefault("pipeline.stage_timeout.validate", "20m")
	v.SetDefault("pipeline.stage_timeout.load", "45m")
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// Config file not found, use environment variables
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

func validateDatabase(db *DatabaseConfig) error {
	if db.Host == "" {
		return errors.New("database.host is required")
	}
	if db.DBName == "" {
		return errors.New("database.dbname is required")
	}
	return nil
}

// configureViper returns a viper instance with the config file and environment variables set
func configureViper(service string, configFile string, envPath string) *viper.Viper {
	v := viper.New()

	loadEnv(envPath, service)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(fmt.Sprintf("cmd/%s/", service))
		v.AddConfigPath("config/")
	}

	v.SetEnvPrefix("SEPA_INGESTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindAllEnvVars(v)
	return v
}

// bindAllEnvVars explicitly binds all possible environment variables.
// This is required for viper to map env vars to config struct fields when no config file exists.
func bindAllEnvVars(v *viper.Viper) {
	keys := []string{
		"debug",
		"sentry_dsn",
		// Database
		"database.host",
		"database.port",
		"database.user",
		"database.password",
		"database.dbname",
		"database.sslmode",
		"database.max_open_conns",
		"database.max_idle_conns",
		"database.conn_max_lifetime",
		"database.conn_max_idle_time",
		// Pipeline
		"pipeline.max_reject_ratio",
		"pipeline.reject_ratio_min_rows",
		"pipeline.footer_markers",
		"pipeline.batch_size",
		"pipeline.extract_workers",
		"pipeline.load_workers",
		"pipeline.partition_lookahead_days",
		"pipeline.retention_days",
		"pipeline.load_max_retries",
		"pipeline.seed_existing_keys",
		"pipeline.stage_timeout.extract",
		"pipeline.stage_timeout.validate",
		"pipeline.stage_timeout.load",
	}

	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

// loadEnv loads environment variables from the config directory
func loadEnv(envPath string, service string) {
	envFiles := []string{".env", ".env.local"}
	if service != "" {
		envFiles = append(envFiles, ".env."+service+".local")
	}

	if envPath == "" {
		envPath = "config/"
	}

	for _, envFile := range envFiles {
		candidate := filepath.Join(envPath, envFile)
		_ = godotenv.Overload(candidate) // Overload lets later files override earlier ones
	}
}

// ChdirRepoRoot changes the current working directory to the repository root
func ChdirRepoRoot() {
	cwd, _ := os.Getwd()
	for range 5 {
		if _, err := os.Stat(filepath.Join(cwd, "config")); err == nil {
			_ = os.Chdir(cwd)
			return
		}
		cwd = filepath.Dir(cwd)
	}
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
