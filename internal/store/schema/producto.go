package schema

import (
	"time"
)

// ProductoMaster represents the productos_master table - the normalized catalog
// entry for a sellable item, shared across all stores. Inserted on first
// observation; last_seen advances monotonically on every re-observation.
type ProductoMaster struct {
	// IDProducto is an EAN/UPC or an internal merchant code; EAN records which
	IDProducto int64 `gorm:"column:id_producto;primaryKey;autoIncrement:false"`
	// EAN is true when IDProducto is a real EAN/UPC barcode
	EAN *bool `gorm:"column:productos_ean"`
	// Descripcion is the product description as published
	Descripcion *string `gorm:"column:productos_descripcion;not null;type:text"`
	// Marca is the product brand
	Marca *string `gorm:"column:productos_marca;type:text"`
	// Package quantity and unit (e.g. 1.5 "lt")
	CantidadPresentacion *float64 `gorm:"column:productos_cantidad_presentacion"`
	UnidadPresentacion   *string  `gorm:"column:productos_unidad_medida_presentacion;type:text"`
	// Reference quantity and unit for unit-price comparison
	CantidadReferencia *float64 `gorm:"column:productos_cantidad_referencia"`
	UnidadReferencia   *string  `gorm:"column:productos_unidad_medida_referencia;type:text"`
	// FirstSeen is when the product first appeared in a disclosure
	FirstSeen time.Time `gorm:"column:first_seen;not null;default:now();type:timestamptz"`
	// LastSeen is refreshed on every run that observes the product
	LastSeen time.Time `gorm:"column:last_seen;not null;default:now();type:timestamptz"`

	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the ProductoMaster model
func (ProductoMaster) TableName() string {
	return "productos_master"
}
