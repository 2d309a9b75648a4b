package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sepalytics/sepa-ingestor/internal/adapter"
	"github.com/sepalytics/sepa-ingestor/internal/domain"
	"github.com/sepalytics/sepa-ingestor/internal/store/schema"
)

type pgStore struct {
	db    *gorm.DB
	clock adapter.Clock
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB, clock adapter.Clock) Store {
	return &pgStore{db: db, clock: clock}
}

// ConfigureConnectionPool configures the connection pool settings for a GORM
// database connection. Zero values fall back to reasonable defaults.
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// calculateSafeBatchSize computes the batch size for bulk inserts that stays
// under PostgreSQL's extended-protocol limit of 65535 parameters per query.
// Each record consumes one parameter per inserted field, and the headroom
// covers ON CONFLICT parameters and GORM bookkeeping.
func calculateSafeBatchSize(totalRecords int, fieldsPerRecord int) int {
	const maxParams = 65535
	const totalHeadroom = 1000

	availableParams := maxParams - totalHeadroom
	safeBatchSize := max(availableParams/fieldsPerRecord, 1)

	if safeBatchSize > totalRecords {
		return totalRecords
	}

	return safeBatchSize
}

// AcquireRunClaim takes the day-scoped exclusive claim for a run
func (s *pgStore) AcquireRunClaim(ctx context.Context, runID string, day time.Time, force bool) error {
	day = day.UTC().Truncate(24 * time.Hour)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing schema.IngestRun
		err := tx.Where("day = ?", day).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			claim := schema.IngestRun{
				ID:           runID,
				Day:          day,
				State:        string(domain.RunStateExtracting),
				StageReached: string(domain.RunStateExtracting),
				StartedAt:    s.clock.Now().UTC(),
			}
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "day"}},
				DoNothing: true,
			}).Create(&claim)
			if res.Error != nil {
				return fmt.Errorf("failed to create run claim: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				// Lost the race to a concurrent run for the same day
				return domain.ErrDayAlreadyClaimed
			}
			return nil
		case err != nil:
			return fmt.Errorf("failed to check run claim: %w", err)
		}

		if !domain.RunState(existing.State).Terminal() {
			return domain.ErrDayAlreadyClaimed
		}
		if existing.State == string(domain.RunStateCompleted) && !force {
			return domain.ErrDayAlreadyIngested
		}

		// Take over a finished (aborted/partial, or forced) claim. The state
		// guard keeps two concurrent takeovers from both succeeding.
		res := tx.Model(&schema.IngestRun{}).
			Where("day = ? AND state = ?", day, existing.State).
			Updates(map[string]interface{}{
				"id":            runID,
				"state":         string(domain.RunStateExtracting),
				"stage_reached": string(domain.RunStateExtracting),
				"started_at":    s.clock.Now().UTC(),
				"finished_at":   nil,
				"summary":       nil,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to take over run claim: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.ErrDayAlreadyClaimed
		}
		return nil
	})
}

// FinalizeRunClaim releases the claim and persists the run summary
func (s *pgStore) FinalizeRunClaim(ctx context.Context, runID string, result *domain.RunResult) error {
	summary, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}

	now := s.clock.Now().UTC()
	res := s.db.WithContext(ctx).Model(&schema.IngestRun{}).
		Where("id = ?", runID).
		Updates(map[string]interface{}{
			"state":         string(result.State),
			"stage_reached": string(result.StageReached),
			"summary":       datatypes.JSON(summary),
			"finished_at":   &now,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to finalize run claim: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("run claim %s not found", runID)
	}
	return nil
}

// ExistingMerchantKeys returns the merchant natural keys already loaded
func (s *pgStore) ExistingMerchantKeys(ctx context.Context) (map[domain.MerchantKey]struct{}, error) {
	var rows []struct {
		IDComercio string
		IDBandera  int32
	}
	if err := s.db.WithContext(ctx).Model(&schema.Comercio{}).
		Select("id_comercio", "id_bandera").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load merchant keys: %w", err)
	}

	keys := make(map[domain.MerchantKey]struct{}, len(rows))
	for _, r := range rows {
		keys[domain.MerchantKey{IDComercio: r.IDComercio, IDBandera: r.IDBandera}] = struct{}{}
	}
	return keys, nil
}

// ExistingStoreKeys returns the store natural keys already loaded
func (s *pgStore) ExistingStoreKeys(ctx context.Context) (map[domain.StoreKey]struct{}, error) {
	var rows []struct {
		IDComercio string
		IDBandera  int32
		IDSucursal int32
	}
	if err := s.db.WithContext(ctx).Model(&schema.Sucursal{}).
		Select("id_comercio", "id_bandera", "id_sucursal").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load store keys: %w", err)
	}

	keys := make(map[domain.StoreKey]struct{}, len(rows))
	for _, r := range rows {
		keys[domain.StoreKey{
			MerchantKey: domain.MerchantKey{IDComercio: r.IDComercio, IDBandera: r.IDBandera},
			IDSucursal:  r.IDSucursal,
		}] = struct{}{}
	}
	return keys, nil
}

// ExistingProductIDs returns the product ids already loaded
func (s *pgStore) ExistingProductIDs(ctx context.Context) (map[int64]struct{}, error) {
	var ids []int64
	if err := s.db.WithContext(ctx).Model(&schema.ProductoMaster{}).
		Pluck("id_producto", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to load product ids: %w", err)
	}

	keys := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		keys[id] = struct{}{}
	}
	return keys, nil
}

// comercioUpdateColumns are the mutable merchant attributes overwritten on conflict
var comercioUpdateColumns = []string{
	"comercio_cuit",
	"comercio_razon_social",
	"comercio_bandera_nombre",
	"comercio_bandera_url",
	"comercio_version_sepa",
	"updated_at",
}

// UpsertComercios inserts new merchants and overwrites existing ones
func (s *pgStore) UpsertComercios(ctx context.Context, rows []schema.Comercio) (UpsertResult, error) {
	if len(rows) == 0 {
		return UpsertResult{}, nil
	}

	keys := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		keys = append(keys, []interface{}{r.IDComercio, r.IDBandera})
	}

	var result UpsertResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&schema.Comercio{}).
			Where("(id_comercio, id_bandera) IN ?", keys).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("failed to count existing comercios: %w", err)
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id_comercio"}, {Name: "id_bandera"}},
			DoUpdates: clause.AssignmentColumns(comercioUpdateColumns),
		}).CreateInBatches(rows, calculateSafeBatchSize(len(rows), 9)).Error; err != nil {
			return fmt.Errorf("failed to upsert comercios: %w", err)
		}

		result = UpsertResult{
			Attempted: int64(len(rows)),
			Inserted:  int64(len(rows)) - existing,
			Updated:   existing,
		}
		return nil
	})
	if err != nil {
		return UpsertResult{}, err
	}
	return result, nil
}

// sucursalUpdateColumns are the mutable store attributes overwritten on conflict
var sucursalUpdateColumns = []string{
	"sucursales_nombre",
	"sucursales_tipo",
	"sucursales_calle",
	"sucursales_numero",
	"sucursales_latitud",
	"sucursales_longitud",
	"sucursales_observaciones",
	"sucursales_barrio",
	"sucursales_codigo_postal",
	"sucursales_localidad",
	"sucursales_provincia",
	"sucursales_lunes_horario_atencion",
	"sucursales_martes_horario_atencion",
	"sucursales_miercoles_horario_atencion",
	"sucursales_jueves_horario_atencion",
	"sucursales_viernes_horario_atencion",
	"sucursales_sabado_horario_atencion",
	"sucursales_domingo_horario_atencion",
	"updated_at",
}

// UpsertSucursales inserts new stores and overwrites existing ones
func (s *pgStore) UpsertSucursales(ctx context.Context, rows []schema.Sucursal) (UpsertResult, error) {
	if len(rows) == 0 {
		return UpsertResult{}, nil
	}

	keys := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		keys = append(keys, []interface{}{r.IDComercio, r.IDBandera, r.IDSucursal})
	}

	var result UpsertResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&schema.Sucursal{}).
			Where("(id_comercio, id_bandera, id_sucursal) IN ?", keys).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("failed to count existing sucursales: %w", err)
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id_comercio"}, {Name: "id_bandera"}, {Name: "id_sucursal"}},
			DoUpdates: clause.AssignmentColumns(sucursalUpdateColumns),
		}).CreateInBatches(rows, calculateSafeBatchSize(len(rows), 24)).Error; err != nil {
			return fmt.Errorf("failed to upsert sucursales: %w", err)
		}

		result = UpsertResult{
			Attempted: int64(len(rows)),
			Inserted:  int64(len(rows)) - existing,
			Updated:   existing,
		}
		return nil
	})
	if err != nil {
		return UpsertResult{}, err
	}
	return result, nil
}

// UpsertProductos inserts first-seen products and advances last_seen on the
// rest. first_seen is deliberately absent from the conflict assignments: it
// never moves after insert.
func (s *pgStore) UpsertProductos(ctx context.Context, rows []schema.ProductoMaster) (UpsertResult, error) {
	if len(rows) == 0 {
		return UpsertResult{}, nil
	}

	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.IDProducto)
	}

	var result UpsertResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&schema.ProductoMaster{}).
			Where("id_producto IN ?", ids).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("failed to count existing productos: %w", err)
		}

		// last_seen only ever advances, even if a stale chunk is replayed
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id_producto"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"productos_ean":                        gorm.Expr("EXCLUDED.productos_ean"),
				"productos_descripcion":                gorm.Expr("EXCLUDED.productos_descripcion"),
				"productos_marca":                      gorm.Expr("EXCLUDED.productos_marca"),
				"productos_cantidad_presentacion":      gorm.Expr("EXCLUDED.productos_cantidad_presentacion"),
				"productos_unidad_medida_presentacion": gorm.Expr("EXCLUDED.productos_unidad_medida_presentacion"),
				"productos_cantidad_referencia":        gorm.Expr("EXCLUDED.productos_cantidad_referencia"),
				"productos_unidad_medida_referencia":   gorm.Expr("EXCLUDED.productos_unidad_medida_referencia"),
				"last_seen":                            gorm.Expr("GREATEST(productos_master.last_seen, EXCLUDED.last_seen)"),
				"updated_at":                           gorm.Expr("EXCLUDED.updated_at"),
			}),
		}).CreateInBatches(rows, calculateSafeBatchSize(len(rows), 12)).Error; err != nil {
			return fmt.Errorf("failed to upsert productos: %w", err)
		}

		result = UpsertResult{
			Attempted: int64(len(rows)),
			Inserted:  int64(len(rows)) - existing,
			Updated:   existing,
		}
		return nil
	})
	if err != nil {
		return UpsertResult{}, err
	}
	return result, nil
}

// InsertPrecios appends price observations in bulk into the partitioned fact
// table. Append-only by contract: no ON CONFLICT clause, no updates.
func (s *pgStore) InsertPrecios(ctx context.Context, rows []schema.Precio) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	res := s.db.WithContext(ctx).
		CreateInBatches(rows, calculateSafeBatchSize(len(rows), 15))
	if res.Error != nil {
		return 0, fmt.Errorf("failed to insert precios: %w", res.Error)
	}
	return int64(len(rows)), nil
}
