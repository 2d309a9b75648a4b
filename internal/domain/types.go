package domain

import (
	"fmt"
	"time"
)

// Entity identifies one of the four record kinds flowing through the pipeline
type Entity string

const (
	// EntityComercio is the merchant/brand dimension
	EntityComercio Entity = "comercio"
	// EntitySucursal is the store dimension
	EntitySucursal Entity = "sucursal"
	// EntityProducto is the product master
	EntityProducto Entity = "producto"
	// EntityPrecio is the append-only price observation fact
	EntityPrecio Entity = "precio"
)

// MerchantKey is the natural key of a merchant/brand pair
type MerchantKey struct {
	IDComercio string
	IDBandera  int32
}

func (k MerchantKey) String() string {
	return fmt.Sprintf("%s/%d", k.IDComercio, k.IDBandera)
}

// StoreKey is the natural key of a single point of sale
type StoreKey struct {
	MerchantKey
	IDSucursal int32
}

func (k StoreKey) String() string {
	return fmt.Sprintf("%s/%d/%d", k.IDComercio, k.IDBandera, k.IDSucursal)
}

// ComercioRow is a sanitized merchant/brand record
type ComercioRow struct {
	IDComercio    string
	IDBandera     int32
	CUIT          *int64
	RazonSocial   *string
	BanderaNombre *string
	BanderaURL    *string
	VersionSEPA   *float32
}

// Key returns the merchant natural key
func (r ComercioRow) Key() MerchantKey {
	return MerchantKey{IDComercio: r.IDComercio, IDBandera: r.IDBandera}
}

// SucursalRow is a sanitized store record
type SucursalRow struct {
	IDComercio    string
	IDBandera     int32
	IDSucursal    int32
	Nombre        *string
	Tipo          *string
	Calle         *string
	Numero        *string
	Latitud       *float64
	Longitud      *float64
	Observaciones *string
	Barrio        *string
	CodigoPostal  *int32
	Localidad     *string
	Provincia     *string
	// Weekly opening-hour strings, Monday through Sunday
	Horarios [7]*string
}

// Key returns the store natural key
func (r SucursalRow) Key() StoreKey {
	return StoreKey{
		MerchantKey: MerchantKey{IDComercio: r.IDComercio, IDBandera: r.IDBandera},
		IDSucursal:  r.IDSucursal,
	}
}

// ProductoRow is a sanitized row from productos.csv. One physical row carries
// both the product-master attributes and the price observation for one store.
type ProductoRow struct {
	IDComercio           string
	IDBandera            int32
	IDSucursal           int32
	IDProducto           int64
	EAN                  *bool
	Descripcion          *string
	Marca                *string
	CantidadPresentacion *float64
	UnidadPresentacion   *string
	CantidadReferencia   *float64
	UnidadReferencia     *string
	PrecioLista          *float64
	PrecioReferencia     *float64
	PrecioPromo1         *float64
	LeyendaPromo1        *string
	PrecioPromo2         *float64
	LeyendaPromo2        *string
}

// StoreKey returns the key of the store this row was observed at
func (r ProductoRow) StoreKey() StoreKey {
	return StoreKey{
		MerchantKey: MerchantKey{IDComercio: r.IDComercio, IDBandera: r.IDBandera},
		IDSucursal:  r.IDSucursal,
	}
}

// RunState is the terminal or in-flight state of one ingestion run
type RunState string

const (
	RunStateIdle               RunState = "idle"
	RunStateExtracting         RunState = "extracting"
	RunStateSanitizing         RunState = "sanitizing"
	RunStateValidating         RunState = "validating"
	RunStatePartitionEnsuring  RunState = "partition_ensuring"
	RunStateLoading            RunState = "loading"
	RunStateCompleted          RunState = "completed"
	RunStatePartiallyCompleted RunState = "partially_completed"
	RunStateAborted            RunState = "aborted"
)

// Terminal reports whether the state ends a run
func (s RunState) Terminal() bool {
	switch s {
	case RunStateCompleted, RunStatePartiallyCompleted, RunStateAborted:
		return true
	}
	return false
}

// EntityCounts aggregates per-entity row accounting for one run
type EntityCounts struct {
	Attempted int64 `json:"attempted"`
	Accepted  int64 `json:"accepted"`
	Rejected  int64 `json:"rejected"`
	Inserted  int64 `json:"inserted"`
	Updated   int64 `json:"updated"`
}

// RunResult is the structured outcome handed back to the invoking scheduler.
// It is deliberately richer than a success/failure boolean: re-run safety
// depends on knowing exactly how far a failed run progressed.
type RunResult struct {
	RunID              string                   `json:"run_id"`
	Day                time.Time                `json:"day"`
	State              RunState                 `json:"state"`
	StageReached       RunState                 `json:"stage_reached"`
	Counts             map[Entity]*EntityCounts `json:"counts"`
	RejectionsByReason map[RejectReason]int64   `json:"rejections_by_reason"`
	UnknownStoreTypes  map[string]int64         `json:"unknown_store_types,omitempty"`
	Elapsed            time.Duration            `json:"elapsed"`
	Err                string                   `json:"error,omitempty"`
}

// NewRunResult returns a result with all entity counters allocated
func NewRunResult(runID string, day time.Time) *RunResult {
	return &RunResult{
		RunID: runID,
		Day:   day,
		State: RunStateIdle,
		Counts: map[Entity]*EntityCounts{
			EntityComercio: {},
			EntitySucursal: {},
			EntityProducto: {},
			EntityPrecio:   {},
		},
		RejectionsByReason: make(map[RejectReason]int64),
		UnknownStoreTypes:  make(map[string]int64),
	}
}
