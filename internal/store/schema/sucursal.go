package schema

import (
	"time"
)

// TipoSucursal represents the store type enum as published upstream
type TipoSucursal string

const (
	TipoHipermercado TipoSucursal = "hipermercado"
	TipoSupermercado TipoSucursal = "supermercado"
	TipoAutoservicio TipoSucursal = "autoservicio"
	TipoTradicional  TipoSucursal = "tradicional"
	TipoWeb          TipoSucursal = "web"
)

// Sucursal represents the sucursales table - one physical or virtual point of
// sale. Foreign-keyed to Comercio; the fact table deliberately is not.
type Sucursal struct {
	IDComercio string `gorm:"column:id_comercio;primaryKey;type:text"`
	IDBandera  int32  `gorm:"column:id_bandera;primaryKey"`
	IDSucursal int32  `gorm:"column:id_sucursal;primaryKey"`
	// Nombre is the store display name
	Nombre *string `gorm:"column:sucursales_nombre;type:text"`
	// Tipo is the store type (hipermercado, supermercado, autoservicio, tradicional, web)
	Tipo *string `gorm:"column:sucursales_tipo;type:text"`
	// Address fields
	Calle         *string `gorm:"column:sucursales_calle;type:text"`
	Numero        *string `gorm:"column:sucursales_numero;type:text"`
	Observaciones *string `gorm:"column:sucursales_observaciones;type:text"`
	Barrio        *string `gorm:"column:sucursales_barrio;type:text"`
	CodigoPostal  *int32  `gorm:"column:sucursales_codigo_postal"`
	Localidad     *string `gorm:"column:sucursales_localidad;not null;type:text"`
	Provincia     *string `gorm:"column:sucursales_provincia;not null;type:text"`
	// Geocoordinates, both present or both absent
	Latitud  *float64 `gorm:"column:sucursales_latitud"`
	Longitud *float64 `gorm:"column:sucursales_longitud"`
	// Weekly opening-hour strings as published
	HorarioLunes     *string `gorm:"column:sucursales_lunes_horario_atencion;type:text"`
	HorarioMartes    *string `gorm:"column:sucursales_martes_horario_atencion;type:text"`
	HorarioMiercoles *string `gorm:"column:sucursales_miercoles_horario_atencion;type:text"`
	HorarioJueves    *string `gorm:"column:sucursales_jueves_horario_atencion;type:text"`
	HorarioViernes   *string `gorm:"column:sucursales_viernes_horario_atencion;type:text"`
	HorarioSabado    *string `gorm:"column:sucursales_sabado_horario_atencion;type:text"`
	HorarioDomingo   *string `gorm:"column:sucursales_domingo_horario_atencion;type:text"`

	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`

	// Associations
	Comercio Comercio `gorm:"foreignKey:IDComercio,IDBandera;references:IDComercio,IDBandera"`
}

// TableName specifies the table name for the Sucursal model
func (Sucursal) TableName() string {
	return "sucursales"
}
