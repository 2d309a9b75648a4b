package sanitizer

import (
	"iter"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sepalytics/sepa-ingestor/internal/domain"
)

func testSanitizer() *Sanitizer {
	return New(Config{FooterMarkers: []string{"ltima actualizaci"}})
}

func collectRows[T any](t *testing.T, seq iter.Seq2[T, error]) ([]T, []error) {
	t.Helper()
	var rows []T
	var errs []error
	for row, err := range seq {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		rows = append(rows, row)
	}
	return rows, errs
}

func TestComercios(t *testing.T) {
	input := "\ufeff" + strings.Join([]string{
		"id_comercio|id_bandera|comercio_cuit|comercio_razon_social|comercio_bandera_nombre|comercio_bandera_url|comercio_version_sepa",
		"7.0|1|30590360763|INC S.A.|Carrefour|https://www.carrefour.com.ar|1.0",
		"12|2|NULL|NULL|Express|null|",
	}, "\n")

	rows, errs := collectRows(t, testSanitizer().Comercios(strings.NewReader(input)))
	require.Empty(t, errs)
	require.Len(t, rows, 2)

	// Float-formatted id is normalized back to its integer spelling
	assert.Equal(t, "7", rows[0].IDComercio)
	assert.Equal(t, int32(1), rows[0].IDBandera)
	require.NotNil(t, rows[0].CUIT)
	assert.Equal(t, int64(30590360763), *rows[0].CUIT)
	require.NotNil(t, rows[0].RazonSocial)
	assert.Equal(t, "INC S.A.", *rows[0].RazonSocial)
	require.NotNil(t, rows[0].VersionSEPA)
	assert.Equal(t, float32(1.0), *rows[0].VersionSEPA)

	// Null spellings come through as nil
	assert.Nil(t, rows[1].CUIT)
	assert.Nil(t, rows[1].RazonSocial)
	assert.Nil(t, rows[1].BanderaURL)
	assert.Nil(t, rows[1].VersionSEPA)
}

func TestComercios_FooterMarkerDropped(t *testing.T) {
	input := strings.Join([]string{
		"id_comercio|id_bandera",
		"7|1",
		"Última actualización: 21/11/2025",
	}, "\n")

	rows, errs := collectRows(t, testSanitizer().Comercios(strings.NewReader(input)))
	assert.Empty(t, errs)
	require.Len(t, rows, 1)
	assert.Equal(t, "7", rows[0].IDComercio)
}

func TestComercios_MissingRequiredColumn(t *testing.T) {
	input := "id_comercio|comercio_cuit\n7|30590360763"

	rows, errs := collectRows(t, testSanitizer().Comercios(strings.NewReader(input)))
	assert.Empty(t, rows)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "id_bandera")
}

func TestSucursales(t *testing.T) {
	input := strings.Join([]string{
		"id_comercio|id_bandera|id_sucursal|sucursales_nombre|sucursales_tipo|sucursales_latitud|sucursales_longitud|sucursales_localidad|sucursales_provincia|sucursales_lunes_horario_atencion",
		"7|1|33|Sucursal Centro|Supermercado|-34.6037|-58.3816|CABA|AR-C|08:00 a 21:00",
	}, "\n")

	rows, errs := collectRows(t, testSanitizer().Sucursales(strings.NewReader(input)))
	require.Empty(t, errs)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, int32(33), row.IDSucursal)
	// Store type is lowercased for downstream comparison
	require.NotNil(t, row.Tipo)
	assert.Equal(t, "supermercado", *row.Tipo)
	require.NotNil(t, row.Latitud)
	assert.InDelta(t, -34.6037, *row.Latitud, 0.0001)
	require.NotNil(t, row.Horarios[0])
	assert.Equal(t, "08:00 a 21:00", *row.Horarios[0])
	assert.Nil(t, row.Horarios[1])
}

func TestSucursales_TypeBasedTrailerDropped(t *testing.T) {
	// A banner row without the configured marker: non-numeric key, single
	// populated cell
	input := strings.Join([]string{
		"id_comercio|id_bandera|id_sucursal|sucursales_localidad|sucursales_provincia",
		"7|1|33|CABA|AR-C",
		"Datos provistos el 21/11/2025||||",
	}, "\n")

	rows, errs := collectRows(t, testSanitizer().Sucursales(strings.NewReader(input)))
	assert.Empty(t, errs)
	require.Len(t, rows, 1)
}

func TestProductos(t *testing.T) {
	input := strings.Join([]string{
		"id_comercio|id_bandera|id_sucursal|id_producto|productos_ean|productos_descripcion|productos_marca|productos_precio_lista|productos_precio_referencia",
		"7|1|33|7790070410120|1|Arroz Largo Fino 1kg|Gallo|1250.50|1250.50",
		"7|1|33|99000123|0|Pan de Molde|NULL|980|NULL",
	}, "\n")

	rows, errs := collectRows(t, testSanitizer().Productos(strings.NewReader(input)))
	require.Empty(t, errs)
	require.Len(t, rows, 2)

	assert.Equal(t, int64(7790070410120), rows[0].IDProducto)
	require.NotNil(t, rows[0].EAN)
	assert.True(t, *rows[0].EAN)
	require.NotNil(t, rows[0].PrecioLista)
	assert.InDelta(t, 1250.50, *rows[0].PrecioLista, 0.001)

	require.NotNil(t, rows[1].EAN)
	assert.False(t, *rows[1].EAN)
	assert.Nil(t, rows[1].Marca)
	assert.Nil(t, rows[1].PrecioReferencia)
}

func TestProductos_MarkerInDescriptionIsKept(t *testing.T) {
	// Marker text in a non-key field must not trigger trailer detection
	input := strings.Join([]string{
		"id_comercio|id_bandera|id_sucursal|id_producto|productos_descripcion|productos_precio_lista",
		"7|1|33|1001|Libro Ultima Actualizacion del Reglamento|5000",
	}, "\n")

	rows, errs := collectRows(t, testSanitizer().Productos(strings.NewReader(input)))
	assert.Empty(t, errs)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1001), rows[0].IDProducto)
}

func TestProductos_MalformedRowRejected(t *testing.T) {
	// An embedded pipe shifts the field count
	input := strings.Join([]string{
		"id_comercio|id_bandera|id_sucursal|id_producto|productos_descripcion",
		"7|1|33|1001|Yerba|Mate 500g",
		"7|1|33|1002|Azucar 1kg",
	}, "\n")

	rows, errs := collectRows(t, testSanitizer().Productos(strings.NewReader(input)))
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1002), rows[0].IDProducto)

	require.Len(t, errs, 1)
	rej, ok := errs[0].(*domain.RowRejection)
	require.True(t, ok)
	assert.Equal(t, domain.ReasonMalformedRow, rej.Reason)
	assert.Equal(t, 2, rej.Line)
}

func TestProductos_UnparseableKeyRejected(t *testing.T) {
	// Key fails to parse but the row is fully populated, so it is not a
	// trailer: it is a broken row worth counting
	input := strings.Join([]string{
		"id_comercio|id_bandera|id_sucursal|id_producto|productos_descripcion|productos_precio_lista",
		"7|1|33|abc123|Fideos 500g|800",
	}, "\n")

	rows, errs := collectRows(t, testSanitizer().Productos(strings.NewReader(input)))
	assert.Empty(t, rows)
	require.Len(t, errs, 1)
	rej, ok := errs[0].(*domain.RowRejection)
	require.True(t, ok)
	assert.Equal(t, domain.ReasonUnparseableField, rej.Reason)
}

func TestEmptyFileYieldsNothing(t *testing.T) {
	rows, errs := collectRows(t, testSanitizer().Comercios(strings.NewReader("")))
	assert.Empty(t, rows)
	assert.Empty(t, errs)
}

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"42", "42"},
		{"42.0", "42"},
		{"42.000", "42"},
		{"42.5", "42.5"},
		{"abc", "abc"},
		{"NULL", ""},
		{"", ""},
		{".0", ".0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeID(tt.in), "normalizeID(%q)", tt.in)
	}
}

func TestParseInt64(t *testing.T) {
	v, ok := parseInt64("123")
	assert.True(t, ok)
	assert.Equal(t, int64(123), v)

	v, ok = parseInt64("123.0")
	assert.True(t, ok)
	assert.Equal(t, int64(123), v)

	_, ok = parseInt64("123.7")
	assert.False(t, ok)

	_, ok = parseInt64("")
	assert.False(t, ok)
}

func TestOptBool(t *testing.T) {
	for _, s := range []string{"1", "True", "true"} {
		v := optBool(s)
		require.NotNil(t, v, "optBool(%q)", s)
		assert.True(t, *v)
	}
	for _, s := range []string{"0", "False", "false"} {
		v := optBool(s)
		require.NotNil(t, v, "optBool(%q)", s)
		assert.False(t, *v)
	}
	assert.Nil(t, optBool(""))
	assert.Nil(t, optBool("yes"))
}
