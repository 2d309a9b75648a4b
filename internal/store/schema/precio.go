package schema

import (
	"time"
)

// Precio represents the precios table - the append-only price observation fact,
// range-partitioned by scraped_at. It carries logical references to Sucursal
// and ProductoMaster but NO database foreign keys: referential integrity is
// enforced in the validator so the bulk append path stays fast. Rows are
// immutable once loaded and only ever removed by whole-partition drops.
type Precio struct {
	// ID is the surrogate key; scraped_at completes the primary key because it
	// is the partition key
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	ScrapedAt time.Time `gorm:"column:scraped_at;primaryKey;type:timestamptz"`
	// Logical store reference (not enforced)
	IDComercio string `gorm:"column:id_comercio;not null;type:text;index:idx_precios_sucursal,priority:1"`
	IDBandera  int32  `gorm:"column:id_bandera;not null;index:idx_precios_sucursal,priority:2"`
	IDSucursal int32  `gorm:"column:id_sucursal;not null;index:idx_precios_sucursal,priority:3"`
	// Logical product reference (not enforced)
	IDProducto int64 `gorm:"column:id_producto;not null;index:idx_precios_producto"`
	// PrecioLista is the list price, strictly positive
	PrecioLista float64 `gorm:"column:productos_precio_lista;not null"`
	// PrecioReferencia is the per-reference-unit price
	PrecioReferencia *float64 `gorm:"column:productos_precio_referencia"`
	// Up to two promotional unit prices with their legend text
	PrecioPromo1  *float64 `gorm:"column:productos_precio_unitario_promo1"`
	LeyendaPromo1 *string  `gorm:"column:productos_leyenda_promo1;type:text"`
	PrecioPromo2  *float64 `gorm:"column:productos_precio_unitario_promo2"`
	LeyendaPromo2 *string  `gorm:"column:productos_leyenda_promo2;type:text"`
	// Denormalized product description/brand for query locality
	Descripcion *string `gorm:"column:productos_descripcion;type:text"`
	Marca       *string `gorm:"column:productos_marca;type:text"`
	// FechaVigencia is the validity date the disclosure applies to
	FechaVigencia time.Time `gorm:"column:fecha_vigencia;not null;type:date"`
}

// TableName specifies the table name for the Precio model
func (Precio) TableName() string {
	return "precios"
}
