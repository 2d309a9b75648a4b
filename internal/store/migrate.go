package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/sepalytics/sepa-ingestor/internal/store/schema"
)

// createPreciosSQL creates the partitioned fact table parent. GORM cannot emit
// PARTITION BY clauses, so the parent is raw DDL; the dimension tables and the
// run table go through AutoMigrate. The fact table carries no foreign keys so
// the bulk append path never pays constraint-check costs.
const createPreciosSQL = `
CREATE TABLE IF NOT EXISTS precios (
	id BIGINT GENERATED BY DEFAULT AS IDENTITY,
	scraped_at TIMESTAMPTZ NOT NULL,
	id_comercio TEXT NOT NULL,
	id_bandera INTEGER NOT NULL,
	id_sucursal INTEGER NOT NULL,
	id_producto BIGINT NOT NULL,
	productos_precio_lista DOUBLE PRECISION NOT NULL,
	productos_precio_referencia DOUBLE PRECISION,
	productos_precio_unitario_promo1 DOUBLE PRECISION,
	productos_leyenda_promo1 TEXT,
	productos_precio_unitario_promo2 DOUBLE PRECISION,
	productos_leyenda_promo2 TEXT,
	productos_descripcion TEXT,
	productos_marca TEXT,
	fecha_vigencia DATE NOT NULL,
	PRIMARY KEY (id, scraped_at)
) PARTITION BY RANGE (scraped_at)`

var createPreciosIndexSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_precios_sucursal ON precios (id_comercio, id_bandera, id_sucursal)`,
	`CREATE INDEX IF NOT EXISTS idx_precios_producto ON precios (id_producto)`,
}

// Migrate creates the dimension tables, the run table and the partitioned
// fact parent if they do not exist
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(
		&schema.Comercio{},
		&schema.Sucursal{},
		&schema.ProductoMaster{},
		&schema.IngestRun{},
	); err != nil {
		return fmt.Errorf("failed to migrate dimension tables: %w", err)
	}

	if err := db.WithContext(ctx).Exec(createPreciosSQL).Error; err != nil {
		return fmt.Errorf("failed to create precios parent table: %w", err)
	}
	for _, stmt := range createPreciosIndexSQL {
		if err := db.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create precios index: %w", err)
		}
	}

	return nil
}
