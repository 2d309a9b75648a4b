// Package validator enforces schema and referential integrity across the four
// entity types without database foreign keys on the fact table. It is a
// streaming multi-way join against accumulating key sets: the dimension key
// sets are small enough to hold in memory, the price stream is validated in
// bounded batches and never fully buffered.
package validator

import (
	"context"
	"fmt"
	"iter"
	"sync"

	"go.uber.org/zap"

	"github.com/sepalytics/sepa-ingestor/internal/domain"
	"github.com/sepalytics/sepa-ingestor/internal/logger"
)

// knownStoreTypes is the published store-type vocabulary plus common variants
// seen in real exports. Unknown types are kept but counted for the run summary.
var knownStoreTypes = map[string]struct{}{
	"hipermercado": {}, "supermercado": {}, "autoservicio": {},
	"tradicional": {}, "web": {}, "mini": {}, "express": {}, "super": {},
	"mayorista": {}, "hiper": {}, "tienda virtual": {}, "tienda fisica": {},
}

// Config holds validator configuration
type Config struct {
	// MaxRejectRatio fails an entity when rejected/attempted crosses it
	MaxRejectRatio float64
	// MinRowsForRatio is the attempted-row floor below which the ratio check
	// is skipped, so a tiny file with one bad row does not fail a run
	MinRowsForRatio int64
}

// KeySets holds the accepted natural keys for this run, merged with any
// previously loaded keys. Merchant/store/product sets must be fully built and
// frozen before price validation begins; Freeze makes later mutation panic in
// development rather than silently racing.
type KeySets struct {
	mu        sync.RWMutex
	frozen    bool
	merchants map[domain.MerchantKey]struct{}
	stores    map[domain.StoreKey]struct{}
	products  map[int64]struct{}
}

// NewKeySets creates key sets, optionally pre-seeded with existing keys from
// the store so rows referencing previously loaded entities are not orphans
func NewKeySets(merchants map[domain.MerchantKey]struct{}, stores map[domain.StoreKey]struct{}, products map[int64]struct{}) *KeySets {
	if merchants == nil {
		merchants = make(map[domain.MerchantKey]struct{})
	}
	if stores == nil {
		stores = make(map[domain.StoreKey]struct{})
	}
	if products == nil {
		products = make(map[int64]struct{})
	}
	return &KeySets{merchants: merchants, stores: stores, products: products}
}

// Freeze forbids further merchant/store mutation. Product keys still
// accumulate afterwards: the fact stream is chunked and each chunk registers
// its products before its prices are validated.
func (k *KeySets) Freeze() {
	k.mu.Lock()
	k.frozen = true
	k.mu.Unlock()
}

func (k *KeySets) addMerchant(key domain.MerchantKey) {
	k.mu.Lock()
	if k.frozen {
		k.mu.Unlock()
		panic("validator: merchant key set mutated after freeze")
	}
	k.merchants[key] = struct{}{}
	k.mu.Unlock()
}

func (k *KeySets) addStore(key domain.StoreKey) {
	k.mu.Lock()
	if k.frozen {
		k.mu.Unlock()
		panic("validator: store key set mutated after freeze")
	}
	k.stores[key] = struct{}{}
	k.mu.Unlock()
}

func (k *KeySets) addProduct(id int64) {
	k.mu.Lock()
	k.products[id] = struct{}{}
	k.mu.Unlock()
}

// HasMerchant reports whether the merchant key was accepted this run or loaded before
func (k *KeySets) HasMerchant(key domain.MerchantKey) bool {
	k.mu.RLock()
	_, ok := k.merchants[key]
	k.mu.RUnlock()
	return ok
}

// HasStore reports whether the store key was accepted this run or loaded before
func (k *KeySets) HasStore(key domain.StoreKey) bool {
	k.mu.RLock()
	_, ok := k.stores[key]
	k.mu.RUnlock()
	return ok
}

// HasProduct reports whether the product id was accepted this run or loaded before
func (k *KeySets) HasProduct(id int64) bool {
	k.mu.RLock()
	_, ok := k.products[id]
	k.mu.RUnlock()
	return ok
}

// Stats aggregates validation accounting for one entity
type Stats struct {
	Attempted int64
	Accepted  int64
	Rejected  int64
	ByReason  map[domain.RejectReason]int64
}

// NewStats returns zeroed validation accounting
func NewStats() *Stats {
	return &Stats{ByReason: make(map[domain.RejectReason]int64)}
}

func (s *Stats) reject(reason domain.RejectReason) {
	s.Rejected++
	s.ByReason[reason]++
}

// CheckThreshold returns IntegrityThresholdExceeded when the rejection ratio
// for an entity crossed the configured limit
func (s *Stats) CheckThreshold(entity domain.Entity, cfg Config) error {
	if cfg.MaxRejectRatio <= 0 || s.Attempted < cfg.MinRowsForRatio {
		return nil
	}
	if float64(s.Rejected)/float64(s.Attempted) > cfg.MaxRejectRatio {
		return &domain.IntegrityThresholdExceeded{
			Entity:    entity,
			Rejected:  s.Rejected,
			Attempted: s.Attempted,
			Threshold: cfg.MaxRejectRatio,
		}
	}
	return nil
}

// Validator applies per-entity schema checks and cross-entity referential
// integrity in the fixed order Merchant → Store → Product → Price
type Validator struct {
	cfg Config
}

// New creates a validator
func New(cfg Config) *Validator {
	return &Validator{cfg: cfg}
}

// Comercios validates a cleaned merchant stream. Duplicated natural keys keep
// the last-seen value in input order; output order is first-seen order, which
// keeps reruns deterministic.
func (v *Validator) Comercios(ctx context.Context, rows iter.Seq2[domain.ComercioRow, error], keys *KeySets) ([]domain.ComercioRow, *Stats, error) {
	stats := NewStats()
	accepted := make([]domain.ComercioRow, 0, 256)
	index := make(map[domain.MerchantKey]int)

	for row, err := range rows {
		if err != nil {
			rej, ok := asRejection(err)
			if !ok {
				return nil, stats, err
			}
			stats.Attempted++
			stats.reject(rej.Reason)
			logRejection(ctx, rej)
			continue
		}
		stats.Attempted++

		key := row.Key()
		if i, dup := index[key]; dup {
			// Last write wins, first position kept
			accepted[i] = row
			stats.reject(domain.ReasonDuplicateKey)
			continue
		}
		index[key] = len(accepted)
		accepted = append(accepted, row)
		keys.addMerchant(key)
		stats.Accepted++
	}

	return accepted, stats, stats.CheckThreshold(domain.EntityComercio, v.cfg)
}

// Sucursales validates a cleaned store stream against the accepted merchant
// key set. Unknown store types are kept but tallied into unknownTypes.
func (v *Validator) Sucursales(ctx context.Context, rows iter.Seq2[domain.SucursalRow, error], keys *KeySets, unknownTypes map[string]int64) ([]domain.SucursalRow, *Stats, error) {
	stats := NewStats()
	accepted := make([]domain.SucursalRow, 0, 1024)
	index := make(map[domain.StoreKey]int)

	for row, err := range rows {
		if err != nil {
			rej, ok := asRejection(err)
			if !ok {
				return nil, stats, err
			}
			stats.Attempted++
			stats.reject(rej.Reason)
			logRejection(ctx, rej)
			continue
		}
		stats.Attempted++

		if rej := v.checkSucursal(row, keys); rej != nil {
			stats.reject(rej.Reason)
			logRejection(ctx, rej)
			continue
		}

		if row.Tipo != nil {
			if _, known := knownStoreTypes[*row.Tipo]; !known {
				unknownTypes[*row.Tipo]++
			}
		}

		key := row.Key()
		if i, dup := index[key]; dup {
			accepted[i] = row
			stats.reject(domain.ReasonDuplicateKey)
			continue
		}
		index[key] = len(accepted)
		accepted = append(accepted, row)
		keys.addStore(key)
		stats.Accepted++
	}

	return accepted, stats, stats.CheckThreshold(domain.EntitySucursal, v.cfg)
}

func (v *Validator) checkSucursal(row domain.SucursalRow, keys *KeySets) *domain.RowRejection {
	if row.Localidad == nil || row.Provincia == nil {
		return &domain.RowRejection{
			Entity: domain.EntitySucursal,
			Reason: domain.ReasonMissingRequiredField,
			Detail: fmt.Sprintf("store %s is missing localidad or provincia", row.Key()),
		}
	}
	// Geocoordinates are both-or-neither
	if (row.Latitud == nil) != (row.Longitud == nil) {
		return &domain.RowRejection{
			Entity: domain.EntitySucursal,
			Reason: domain.ReasonInvalidGeo,
			Detail: fmt.Sprintf("store %s has only one geocoordinate", row.Key()),
		}
	}
	if !keys.HasMerchant(row.Key().MerchantKey) {
		return &domain.RowRejection{
			Entity: domain.EntitySucursal,
			Reason: domain.ReasonOrphanStore,
			Detail: fmt.Sprintf("store %s references unknown merchant", row.Key()),
		}
	}
	return nil
}

// PrecioBatch is one validated chunk of the fact stream
type PrecioBatch struct {
	// Productos are the deduplicated product-master rows of the chunk, in
	// first-seen order
	Productos []domain.ProductoRow
	// Precios are the accepted price observations, in input order
	Precios []domain.ProductoRow
}

// ProductosPrecios validates a cleaned productos stream in bounded batches.
// Merchant and store key sets must be frozen before the first call. Within a
// chunk, product rows register their ids before the price check runs, so a
// price is never orphaned by its own product. The emit callback receives each
// validated batch; returning an error stops the stream. The rejection-ratio
// threshold is evaluated after every validated chunk, once past the row floor,
// so a corrupt stream stops emitting batches instead of loading most of a bad
// day before failing.
func (v *Validator) ProductosPrecios(
	ctx context.Context,
	rows iter.Seq2[domain.ProductoRow, error],
	keys *KeySets,
	batchSize int,
	productoStats, precioStats *Stats,
	emit func(PrecioBatch) error,
) error {
	if batchSize <= 0 {
		batchSize = 5000
	}

	pending := make([]domain.ProductoRow, 0, batchSize)
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		batch := v.validateBatch(ctx, pending, keys, productoStats, precioStats)
		pending = pending[:0]
		if err := productoStats.CheckThreshold(domain.EntityProducto, v.cfg); err != nil {
			return err
		}
		if err := precioStats.CheckThreshold(domain.EntityPrecio, v.cfg); err != nil {
			return err
		}
		return emit(batch)
	}

	for row, err := range rows {
		if err != nil {
			rej, ok := asRejection(err)
			if !ok {
				return err
			}
			// A malformed fact row counts against the price entity
			precioStats.Attempted++
			precioStats.reject(rej.Reason)
			logRejection(ctx, rej)
			continue
		}

		pending = append(pending, row)
		if len(pending) >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	if err := productoStats.CheckThreshold(domain.EntityProducto, v.cfg); err != nil {
		return err
	}
	return precioStats.CheckThreshold(domain.EntityPrecio, v.cfg)
}

// validateBatch splits one chunk into accepted product-master rows and
// accepted price observations
func (v *Validator) validateBatch(ctx context.Context, chunk []domain.ProductoRow, keys *KeySets, productoStats, precioStats *Stats) PrecioBatch {
	var batch PrecioBatch
	prodIndex := make(map[int64]int)

	// Pass 1: product master. Dedup by id, last value wins, first position kept.
	for _, row := range chunk {
		seenBefore := keys.HasProduct(row.IDProducto)
		i, seenInChunk := prodIndex[row.IDProducto]

		if !seenBefore && !seenInChunk {
			productoStats.Attempted++
		}

		if row.Descripcion == nil {
			if !seenBefore && !seenInChunk {
				productoStats.reject(domain.ReasonMissingRequiredField)
				logRejection(ctx, &domain.RowRejection{
					Entity: domain.EntityProducto,
					Reason: domain.ReasonMissingRequiredField,
					Detail: fmt.Sprintf("product %d has no description", row.IDProducto),
				})
			}
			continue
		}

		if seenInChunk {
			batch.Productos[i] = row
			continue
		}
		prodIndex[row.IDProducto] = len(batch.Productos)
		batch.Productos = append(batch.Productos, row)
		if !seenBefore {
			productoStats.Accepted++
		}
		keys.addProduct(row.IDProducto)
	}

	// Pass 2: price observations, read-only against the key sets
	for _, row := range chunk {
		precioStats.Attempted++
		if rej := v.checkPrecio(row, keys); rej != nil {
			precioStats.reject(rej.Reason)
			logRejection(ctx, rej)
			continue
		}
		batch.Precios = append(batch.Precios, row)
		precioStats.Accepted++
	}

	return batch
}

func (v *Validator) checkPrecio(row domain.ProductoRow, keys *KeySets) *domain.RowRejection {
	if row.PrecioLista == nil {
		return &domain.RowRejection{
			Entity: domain.EntityPrecio,
			Reason: domain.ReasonMissingRequiredField,
			Detail: fmt.Sprintf("price for product %d at %s has no list price", row.IDProducto, row.StoreKey()),
		}
	}
	if *row.PrecioLista <= 0 {
		return &domain.RowRejection{
			Entity: domain.EntityPrecio,
			Reason: domain.ReasonInvalidPrice,
			Detail: fmt.Sprintf("price for product %d at %s is not positive", row.IDProducto, row.StoreKey()),
		}
	}
	if !keys.HasStore(row.StoreKey()) {
		return &domain.RowRejection{
			Entity: domain.EntityPrecio,
			Reason: domain.ReasonOrphanPrice,
			Detail: fmt.Sprintf("price references unknown store %s", row.StoreKey()),
		}
	}
	if !keys.HasProduct(row.IDProducto) {
		return &domain.RowRejection{
			Entity: domain.EntityPrecio,
			Reason: domain.ReasonOrphanPrice,
			Detail: fmt.Sprintf("price references unknown product %d", row.IDProducto),
		}
	}
	return nil
}

func asRejection(err error) (*domain.RowRejection, bool) {
	rej, ok := err.(*domain.RowRejection)
	return rej, ok
}

func logRejection(ctx context.Context, rej *domain.RowRejection) {
	logger.DebugCtx(ctx, "row rejected",
		zap.String("entity", string(rej.Entity)),
		zap.Int("line", rej.Line),
		zap.String("reason", string(rej.Reason)),
		zap.String("detail", rej.Detail),
	)
}
