package validator_test

import (
	"context"
	"iter"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sepalytics/sepa-ingestor/internal/domain"
	"github.com/sepalytics/sepa-ingestor/internal/logger"
	"github.com/sepalytics/sepa-ingestor/internal/validator"
)

func TestMain(m *testing.M) {
	// Initialize logger for tests
	err := logger.Initialize(logger.Config{
		Debug: false,
	})
	if err != nil {
		panic(err)
	}

	code := m.Run()
	os.Exit(code)
}

// rowStream builds a validation input from literal rows and injected
// row-level faults
func rowStream[T any](rows []T, rejections ...*domain.RowRejection) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		for _, r := range rows {
			if !yield(r, nil) {
				return
			}
		}
		for _, rej := range rejections {
			if !yield(zero, rej) {
				return
			}
		}
	}
}

func testValidator() *validator.Validator {
	return validator.New(validator.Config{MaxRejectRatio: 0.05, MinRowsForRatio: 100})
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func comercio(id string, bandera int32) domain.ComercioRow {
	return domain.ComercioRow{IDComercio: id, IDBandera: bandera}
}

func sucursal(id string, bandera, suc int32) domain.SucursalRow {
	return domain.SucursalRow{
		IDComercio: id,
		IDBandera:  bandera,
		IDSucursal: suc,
		Localidad:  strPtr("CABA"),
		Provincia:  strPtr("AR-C"),
	}
}

func producto(suc int32, id int64, price float64) domain.ProductoRow {
	return domain.ProductoRow{
		IDComercio:  "7",
		IDBandera:   1,
		IDSucursal:  suc,
		IDProducto:  id,
		Descripcion: strPtr("producto"),
		PrecioLista: floatPtr(price),
	}
}

func TestComercios_DedupLastWins(t *testing.T) {
	keys := validator.NewKeySets(nil, nil, nil)
	first := comercio("7", 1)
	first.RazonSocial = strPtr("old name")
	second := comercio("7", 1)
	second.RazonSocial = strPtr("new name")
	other := comercio("12", 1)

	accepted, stats, err := testValidator().Comercios(context.Background(),
		rowStream([]domain.ComercioRow{first, other, second}), keys)
	require.NoError(t, err)

	// Duplicate keeps first position with last value
	require.Len(t, accepted, 2)
	assert.Equal(t, "7", accepted[0].IDComercio)
	assert.Equal(t, "new name", *accepted[0].RazonSocial)
	assert.Equal(t, "12", accepted[1].IDComercio)

	assert.Equal(t, int64(3), stats.Attempted)
	assert.Equal(t, int64(2), stats.Accepted)
	assert.Equal(t, int64(1), stats.Rejected)
	assert.Equal(t, int64(1), stats.ByReason[domain.ReasonDuplicateKey])
	assert.True(t, keys.HasMerchant(domain.MerchantKey{IDComercio: "7", IDBandera: 1}))
}

func TestComercios_RowRejectionCounted(t *testing.T) {
	keys := validator.NewKeySets(nil, nil, nil)
	rej := &domain.RowRejection{Entity: domain.EntityComercio, Line: 3, Reason: domain.ReasonMalformedRow}

	accepted, stats, err := testValidator().Comercios(context.Background(),
		rowStream([]domain.ComercioRow{comercio("7", 1)}, rej), keys)
	require.NoError(t, err)

	assert.Len(t, accepted, 1)
	assert.Equal(t, int64(2), stats.Attempted)
	assert.Equal(t, int64(1), stats.Rejected)
	assert.Equal(t, int64(1), stats.ByReason[domain.ReasonMalformedRow])
}

func TestSucursales_Checks(t *testing.T) {
	keys := validator.NewKeySets(nil, nil, nil)
	_, _, err := testValidator().Comercios(context.Background(),
		rowStream([]domain.ComercioRow{comercio("7", 1)}), keys)
	require.NoError(t, err)

	good := sucursal("7", 1, 33)

	missingLoc := sucursal("7", 1, 34)
	missingLoc.Localidad = nil

	oneGeo := sucursal("7", 1, 35)
	oneGeo.Latitud = floatPtr(-34.6)

	orphan := sucursal("99", 1, 36)

	unknownType := sucursal("7", 1, 37)
	unknownType.Tipo = strPtr("kiosco")

	unknownTypes := make(map[string]int64)
	accepted, stats, err := testValidator().Sucursales(context.Background(),
		rowStream([]domain.SucursalRow{good, missingLoc, oneGeo, orphan, unknownType}), keys, unknownTypes)
	require.NoError(t, err)

	require.Len(t, accepted, 2)
	assert.Equal(t, int64(5), stats.Attempted)
	assert.Equal(t, int64(2), stats.Accepted)
	assert.Equal(t, int64(3), stats.Rejected)
	assert.Equal(t, int64(1), stats.ByReason[domain.ReasonMissingRequiredField])
	assert.Equal(t, int64(1), stats.ByReason[domain.ReasonInvalidGeo])
	assert.Equal(t, int64(1), stats.ByReason[domain.ReasonOrphanStore])

	// Unknown store type is kept but audited
	assert.Equal(t, int64(1), unknownTypes["kiosco"])
	assert.True(t, keys.HasStore(domain.StoreKey{MerchantKey: domain.MerchantKey{IDComercio: "7", IDBandera: 1}, IDSucursal: 37}))
}

func TestSucursales_BothGeoAccepted(t *testing.T) {
	keys := validator.NewKeySets(nil, nil, nil)
	_, _, err := testValidator().Comercios(context.Background(),
		rowStream([]domain.ComercioRow{comercio("7", 1)}), keys)
	require.NoError(t, err)

	row := sucursal("7", 1, 33)
	row.Latitud = floatPtr(-34.6)
	row.Longitud = floatPtr(-58.4)

	accepted, stats, err := testValidator().Sucursales(context.Background(),
		rowStream([]domain.SucursalRow{row}), keys, map[string]int64{})
	require.NoError(t, err)
	assert.Len(t, accepted, 1)
	assert.Equal(t, int64(0), stats.Rejected)
}

func setupFrozenKeys(t *testing.T) *validator.KeySets {
	t.Helper()
	keys := validator.NewKeySets(nil, nil, nil)
	v := testValidator()
	_, _, err := v.Comercios(context.Background(),
		rowStream([]domain.ComercioRow{comercio("7", 1)}), keys)
	require.NoError(t, err)
	_, _, err = v.Sucursales(context.Background(),
		rowStream([]domain.SucursalRow{sucursal("7", 1, 33), sucursal("7", 1, 34)}), keys, map[string]int64{})
	require.NoError(t, err)
	keys.Freeze()
	return keys
}

func TestProductosPrecios(t *testing.T) {
	keys := setupFrozenKeys(t)

	rows := []domain.ProductoRow{
		producto(33, 1001, 1250.50),
		producto(34, 1001, 1300.00), // same product, second store
		producto(33, 1002, 980),
	}

	productoStats := validator.NewStats()
	precioStats := validator.NewStats()
	var batches []validator.PrecioBatch
	err := testValidator().ProductosPrecios(context.Background(), rowStream(rows), keys, 100,
		productoStats, precioStats,
		func(b validator.PrecioBatch) error {
			batches = append(batches, b)
			return nil
		})
	require.NoError(t, err)

	require.Len(t, batches, 1)
	assert.Len(t, batches[0].Productos, 2)
	assert.Len(t, batches[0].Precios, 3)

	// Product master counts once per distinct id
	assert.Equal(t, int64(2), productoStats.Attempted)
	assert.Equal(t, int64(2), productoStats.Accepted)
	assert.Equal(t, int64(3), precioStats.Attempted)
	assert.Equal(t, int64(3), precioStats.Accepted)
}

func TestProductosPrecios_Rejections(t *testing.T) {
	keys := setupFrozenKeys(t)

	orphanStore := producto(99, 1001, 100)

	noPrice := producto(33, 1003, 0)
	noPrice.PrecioLista = nil

	negative := producto(33, 1004, -5)

	noDesc := producto(33, 1005, 200)
	noDesc.Descripcion = nil

	rows := []domain.ProductoRow{
		producto(33, 1001, 1250.50),
		orphanStore,
		noPrice,
		negative,
		noDesc,
	}

	productoStats := validator.NewStats()
	precioStats := validator.NewStats()
	var batches []validator.PrecioBatch
	err := testValidator().ProductosPrecios(context.Background(), rowStream(rows), keys, 100,
		productoStats, precioStats,
		func(b validator.PrecioBatch) error {
			batches = append(batches, b)
			return nil
		})
	require.NoError(t, err)

	// 1001 (twice over), 1003, 1004 have descriptions; 1005 does not
	assert.Equal(t, int64(4), productoStats.Attempted)
	assert.Equal(t, int64(3), productoStats.Accepted)
	assert.Equal(t, int64(1), productoStats.ByReason[domain.ReasonMissingRequiredField])

	assert.Equal(t, int64(5), precioStats.Attempted)
	// Unknown store plus the price of the rejected no-description product
	assert.Equal(t, int64(2), precioStats.ByReason[domain.ReasonOrphanPrice])
	assert.Equal(t, int64(1), precioStats.ByReason[domain.ReasonMissingRequiredField])
	assert.Equal(t, int64(1), precioStats.ByReason[domain.ReasonInvalidPrice])
	assert.Equal(t, int64(1), precioStats.Accepted)

	require.Len(t, batches, 1)
	assert.Len(t, batches[0].Productos, 3)
	assert.Len(t, batches[0].Precios, 1)
}

func TestProductosPrecios_Batching(t *testing.T) {
	keys := setupFrozenKeys(t)

	var rows []domain.ProductoRow
	for i := range 10 {
		rows = append(rows, producto(33, int64(2000+i), 100))
	}

	var batches []validator.PrecioBatch
	err := testValidator().ProductosPrecios(context.Background(), rowStream(rows), keys, 4,
		validator.NewStats(), validator.NewStats(),
		func(b validator.PrecioBatch) error {
			batches = append(batches, b)
			return nil
		})
	require.NoError(t, err)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0].Precios, 4)
	assert.Len(t, batches[2].Precios, 2)
}

func TestProductosPrecios_SeededProductNotRecounted(t *testing.T) {
	keys := validator.NewKeySets(
		map[domain.MerchantKey]struct{}{{IDComercio: "7", IDBandera: 1}: {}},
		map[domain.StoreKey]struct{}{{MerchantKey: domain.MerchantKey{IDComercio: "7", IDBandera: 1}, IDSucursal: 33}: {}},
		map[int64]struct{}{1001: {}},
	)
	keys.Freeze()

	productoStats := validator.NewStats()
	precioStats := validator.NewStats()
	err := testValidator().ProductosPrecios(context.Background(),
		rowStream([]domain.ProductoRow{producto(33, 1001, 100)}), keys, 10,
		productoStats, precioStats,
		func(validator.PrecioBatch) error { return nil })
	require.NoError(t, err)

	// Already-known product is re-upserted (to advance last_seen) but not
	// counted as a new master attempt
	assert.Equal(t, int64(0), productoStats.Attempted)
	assert.Equal(t, int64(1), precioStats.Accepted)
}

func TestProductosPrecios_ThresholdStopsEmitting(t *testing.T) {
	keys := setupFrozenKeys(t)
	v := validator.New(validator.Config{MaxRejectRatio: 0.05, MinRowsForRatio: 2})

	rows := []domain.ProductoRow{
		producto(33, 3001, 100),
		producto(33, 3002, 120),
		producto(33, 3003, 0),
		producto(33, 3004, 0),
		producto(33, 3005, 150),
		producto(33, 3006, 160),
	}

	productoStats := validator.NewStats()
	precioStats := validator.NewStats()
	var emitted int
	err := v.ProductosPrecios(context.Background(), rowStream(rows), keys, 2,
		productoStats, precioStats,
		func(validator.PrecioBatch) error {
			emitted++
			return nil
		})
	require.Error(t, err)
	var thresholdErr *domain.IntegrityThresholdExceeded
	require.ErrorAs(t, err, &thresholdErr)
	assert.Equal(t, domain.EntityPrecio, thresholdErr.Entity)

	// The chunk that crossed the ratio is not emitted and the rest of the
	// stream is not consumed
	assert.Equal(t, 1, emitted)
	assert.Equal(t, int64(4), precioStats.Attempted)
	assert.Equal(t, int64(2), precioStats.ByReason[domain.ReasonInvalidPrice])
}

func TestCheckThreshold(t *testing.T) {
	cfg := validator.Config{MaxRejectRatio: 0.05, MinRowsForRatio: 100}

	under := &validator.Stats{Attempted: 1000, Rejected: 50}
	assert.NoError(t, under.CheckThreshold(domain.EntityPrecio, cfg))

	over := &validator.Stats{Attempted: 1000, Rejected: 51}
	err := over.CheckThreshold(domain.EntityPrecio, cfg)
	require.Error(t, err)
	var thresholdErr *domain.IntegrityThresholdExceeded
	require.ErrorAs(t, err, &thresholdErr)
	assert.Equal(t, domain.EntityPrecio, thresholdErr.Entity)

	// Below the row floor the ratio is not enforced
	tiny := &validator.Stats{Attempted: 10, Rejected: 9}
	assert.NoError(t, tiny.CheckThreshold(domain.EntityPrecio, cfg))
}

func TestComercios_ThresholdExceeded(t *testing.T) {
	keys := validator.NewKeySets(nil, nil, nil)
	v := validator.New(validator.Config{MaxRejectRatio: 0.05, MinRowsForRatio: 2})

	var rejections []*domain.RowRejection
	for i := 0; i < 10; i++ {
		rejections = append(rejections, &domain.RowRejection{
			Entity: domain.EntityComercio,
			Line:   i + 2,
			Reason: domain.ReasonMalformedRow,
		})
	}

	_, stats, err := v.Comercios(context.Background(),
		rowStream([]domain.ComercioRow{comercio("7", 1)}, rejections...), keys)
	require.Error(t, err)
	var thresholdErr *domain.IntegrityThresholdExceeded
	require.ErrorAs(t, err, &thresholdErr)
	assert.Equal(t, int64(11), stats.Attempted)
	assert.Equal(t, int64(10), stats.Rejected)
}
