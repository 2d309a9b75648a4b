package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sepalytics/sepa-ingestor/internal/adapter"
	"github.com/sepalytics/sepa-ingestor/internal/domain"
	"github.com/sepalytics/sepa-ingestor/internal/logger"
)

const (
	preciosTable        = "precios"
	partitionNameLayout = "20060102"
	partitionDateLayout = "2006-01-02"
)

type pgPartitionManager struct {
	db    *gorm.DB
	clock adapter.Clock
}

// NewPartitionManager creates a partition manager backed by PostgreSQL
// declarative range partitioning on precios.scraped_at
func NewPartitionManager(db *gorm.DB, clock adapter.Clock) PartitionManager {
	return &pgPartitionManager{db: db, clock: clock}
}

// PartitionName returns the shard name for a UTC day, e.g. precios_p20251123
func PartitionName(day time.Time) string {
	return preciosTable + "_p" + day.UTC().Format(partitionNameLayout)
}

// PartitionDay parses the day boundary back out of a shard name. The second
// return value is false for tables that are not day shards of precios.
func PartitionDay(name string) (time.Time, bool) {
	prefix := preciosTable + "_p"
	if len(name) != len(prefix)+len(partitionNameLayout) || name[:len(prefix)] != prefix {
		return time.Time{}, false
	}
	day, err := time.ParseInLocation(partitionNameLayout, name[len(prefix):], time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

// EnsurePartition creates the shard for [day 00:00 UTC, day+1 00:00 UTC) if
// absent. A shard appearing between the existence check and the create is
// treated as success, not as an error.
func (m *pgPartitionManager) EnsurePartition(ctx context.Context, day time.Time) error {
	day = day.UTC().Truncate(24 * time.Hour)
	name := PartitionName(day)

	stmt := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s PARTITION OF %s FOR VALUES FROM ('%s') TO ('%s')",
		name, preciosTable,
		day.Format(partitionDateLayout),
		day.Add(24*time.Hour).Format(partitionDateLayout),
	)

	if err := m.db.WithContext(ctx).Exec(stmt).Error; err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "42P07" {
			// duplicate_table: lost a create race, which is still success
			logger.DebugCtx(ctx, "partition already exists", zap.String("partition", name))
			return nil
		}
		return &domain.PartitionError{Partition: name, Op: "create", Err: err}
	}

	logger.DebugCtx(ctx, "partition ensured", zap.String("partition", name))
	return nil
}

// EnsurePartitions ensures a contiguous range of daily shards, inclusive
func (m *pgPartitionManager) EnsurePartitions(ctx context.Context, startDay, endDay time.Time) error {
	startDay = startDay.UTC().Truncate(24 * time.Hour)
	endDay = endDay.UTC().Truncate(24 * time.Hour)

	for day := startDay; !day.After(endDay); day = day.Add(24 * time.Hour) {
		if err := m.EnsurePartition(ctx, day); err != nil {
			return err
		}
	}
	return nil
}

// ReclaimPartitions drops every shard whose upper bound is older than
// today - retentionDays. Destructive: invoked only by the maintenance binary.
func (m *pgPartitionManager) ReclaimPartitions(ctx context.Context, retentionDays int) ([]string, error) {
	var names []string
	err := m.db.WithContext(ctx).Raw(`
		SELECT c.relname
		FROM pg_inherits i
		JOIN pg_class c ON c.oid = i.inhrelid
		JOIN pg_class p ON p.oid = i.inhparent
		WHERE p.relname = ?
		ORDER BY c.relname`, preciosTable).Scan(&names).Error
	if err != nil {
		return nil, &domain.PartitionError{Partition: preciosTable, Op: "list", Err: err}
	}

	today := m.clock.Now().UTC().Truncate(24 * time.Hour)
	cutoff := today.AddDate(0, 0, -retentionDays)

	var dropped []string
	for _, name := range names {
		day, ok := PartitionDay(name)
		if !ok {
			continue
		}
		if !ReclaimEligible(day, cutoff) {
			continue
		}

		if err := m.db.WithContext(ctx).Exec("DROP TABLE IF EXISTS " + name).Error; err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "42P01" {
				// undefined_table: already dropped by someone else
				continue
			}
			return dropped, &domain.PartitionError{Partition: name, Op: "drop", Err: err}
		}

		logger.InfoCtx(ctx, "partition reclaimed",
			zap.String("partition", name),
			zap.Time("day", day),
		)
		dropped = append(dropped, name)
	}

	return dropped, nil
}

// ReclaimEligible reports whether a shard for the given day has an upper bound
// strictly older than the cutoff. The upper bound of a day shard is day+1 00:00 UTC.
func ReclaimEligible(day, cutoff time.Time) bool {
	return day.Add(24 * time.Hour).Before(cutoff)
}
