package store

import (
	"context"
	"time"

	"github.com/sepalytics/sepa-ingestor/internal/domain"
	"github.com/sepalytics/sepa-ingestor/internal/store/schema"
)

// UpsertResult reports what a dimension upsert batch actually did
type UpsertResult struct {
	Attempted int64
	Inserted  int64
	Updated   int64
}

// Add accumulates another batch result
func (r *UpsertResult) Add(other UpsertResult) {
	r.Attempted += other.Attempted
	r.Inserted += other.Inserted
	r.Updated += other.Updated
}

// Store defines the interface for database operations used by the pipeline
//
//go:generate mockgen -source=store.go -destination=../mocks/store.go -package=mocks -mock_names=Store=MockStore,PartitionManager=MockPartitionManager
type Store interface {
	// AcquireRunClaim takes the day-scoped exclusive claim for a run. It
	// returns domain.ErrDayAlreadyClaimed if another run is active for the day
	// and domain.ErrDayAlreadyIngested if the day completed and force is off.
	AcquireRunClaim(ctx context.Context, runID string, day time.Time, force bool) error
	// FinalizeRunClaim releases the claim and persists the run summary as the
	// per-day change marker for the downstream analytical sync
	FinalizeRunClaim(ctx context.Context, runID string, result *domain.RunResult) error

	// ExistingMerchantKeys returns the natural keys already loaded in prior runs
	ExistingMerchantKeys(ctx context.Context) (map[domain.MerchantKey]struct{}, error)
	// ExistingStoreKeys returns the store natural keys already loaded in prior runs
	ExistingStoreKeys(ctx context.Context) (map[domain.StoreKey]struct{}, error)
	// ExistingProductIDs returns the product ids already loaded in prior runs
	ExistingProductIDs(ctx context.Context) (map[int64]struct{}, error)

	// UpsertComercios inserts new merchants and overwrites mutable attributes
	// of existing ones, refreshing updated_at
	UpsertComercios(ctx context.Context, rows []schema.Comercio) (UpsertResult, error)
	// UpsertSucursales inserts new stores and overwrites mutable attributes of
	// existing ones, refreshing updated_at
	UpsertSucursales(ctx context.Context, rows []schema.Sucursal) (UpsertResult, error)
	// UpsertProductos inserts first-seen products and advances last_seen on
	// re-observed ones
	UpsertProductos(ctx context.Context, rows []schema.ProductoMaster) (UpsertResult, error)
	// InsertPrecios appends price observations in bulk. No row is ever updated
	// or deleted here.
	InsertPrecios(ctx context.Context, rows []schema.Precio) (int64, error)
}

// PartitionManager manages the date-bounded shards of the precios fact table
type PartitionManager interface {
	// EnsurePartition creates the shard for [day 00:00 UTC, day+1 00:00 UTC)
	// if absent. Idempotent: a second call for the same day is a no-op.
	EnsurePartition(ctx context.Context, day time.Time) error
	// EnsurePartitions ensures a contiguous range of daily shards, inclusive
	EnsurePartitions(ctx context.Context, startDay, endDay time.Time) error
	// ReclaimPartitions drops every shard whose upper bound is older than
	// today minus retentionDays and returns the dropped shard names. This is
	// destructive and must only be invoked by an explicit maintenance trigger.
	ReclaimPartitions(ctx context.Context, retentionDays int) ([]string, error)
}
