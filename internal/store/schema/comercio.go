package schema

import (
	"time"
)

// Comercio represents the comercios table - the merchant/brand dimension at the
// top of the hierarchy. Upserted on every run, never deleted.
type Comercio struct {
	// IDComercio is the merchant identifier assigned by the disclosure regime
	IDComercio string `gorm:"column:id_comercio;primaryKey;type:text"`
	// IDBandera is the sub-brand identifier within the merchant
	IDBandera int32 `gorm:"column:id_bandera;primaryKey"`
	// CUIT is the merchant's tax identifier
	CUIT *int64 `gorm:"column:comercio_cuit"`
	// RazonSocial is the registered legal name
	RazonSocial *string `gorm:"column:comercio_razon_social;type:text"`
	// BanderaNombre is the brand display name
	BanderaNombre *string `gorm:"column:comercio_bandera_nombre;type:text"`
	// BanderaURL is the brand website
	BanderaURL *string `gorm:"column:comercio_bandera_url;type:text"`
	// VersionSEPA is the schema version declared by the upstream export
	VersionSEPA *float32 `gorm:"column:comercio_version_sepa"`
	// CreatedAt is when this merchant was first loaded
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	// UpdatedAt reflects the last load that touched this merchant
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`

	// Associations
	Sucursales []Sucursal `gorm:"foreignKey:IDComercio,IDBandera;references:IDComercio,IDBandera;constraint:OnDelete:RESTRICT"`
}

// TableName specifies the table name for the Comercio model
func (Comercio) TableName() string {
	return "comercios"
}
