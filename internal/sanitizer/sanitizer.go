// Package sanitizer turns raw SEPA CSV streams into typed rows. The upstream
// export is pipe-delimited without a quote character, ships a UTF-8 BOM on
// some files, appends human-readable trailer rows, and occasionally publishes
// ids as floats ("1.0"). Everything here is per-file: no sanitization state
// crosses file boundaries.
package sanitizer

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"

	"github.com/sepalytics/sepa-ingestor/internal/domain"
)

const delimiter = "|"

// nullValues are the upstream spellings of an absent field
var nullValues = map[string]struct{}{
	"":     {},
	"NULL": {},
	"null": {},
}

// Config holds sanitizer configuration
type Config struct {
	// FooterMarkers are case-insensitive substrings identifying trailer rows,
	// matched against the designated key field (fast path). Markers should be
	// spelled without accented characters so they match both "Ultima" and
	// "Última" exports.
	FooterMarkers []string
}

// Sanitizer cleans one raw record stream per call
type Sanitizer struct {
	markers []string
}

// New creates a sanitizer with the given trailer markers
func New(cfg Config) *Sanitizer {
	markers := make([]string, 0, len(cfg.FooterMarkers))
	for _, m := range cfg.FooterMarkers {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			markers = append(markers, m)
		}
	}
	return &Sanitizer{markers: markers}
}

// Comercios emits cleaned merchant rows from a raw comercio.csv stream.
// Per-row faults are yielded as *domain.RowRejection; anything else is fatal
// for the file.
func (s *Sanitizer) Comercios(r io.Reader) iter.Seq2[domain.ComercioRow, error] {
	required := []string{"id_comercio", "id_bandera"}
	return func(yield func(domain.ComercioRow, error) bool) {
		scan(s, r, domain.EntityComercio, "comercio.csv", required, "id_comercio", false,
			func(row *record) (domain.ComercioRow, *domain.RowRejection) {
				idComercio := normalizeID(row.get("id_comercio"))
				if idComercio == "" {
					return domain.ComercioRow{}, row.reject(domain.ReasonMissingRequiredField, "id_comercio is empty")
				}
				idBandera, ok := parseInt32(row.get("id_bandera"))
				if !ok {
					return domain.ComercioRow{}, row.reject(domain.ReasonUnparseableField, "id_bandera is not an integer")
				}

				return domain.ComercioRow{
					IDComercio:    idComercio,
					IDBandera:     idBandera,
					CUIT:          optInt64(row.get("comercio_cuit")),
					RazonSocial:   optString(row.get("comercio_razon_social")),
					BanderaNombre: optString(row.get("comercio_bandera_nombre")),
					BanderaURL:    optString(row.get("comercio_bandera_url")),
					VersionSEPA:   optFloat32(row.get("comercio_version_sepa")),
				}, nil
			}, yield)
	}
}

// Sucursales emits cleaned store rows from a raw sucursales.csv stream
func (s *Sanitizer) Sucursales(r io.Reader) iter.Seq2[domain.SucursalRow, error] {
	required := []string{"id_comercio", "id_bandera", "id_sucursal"}
	return func(yield func(domain.SucursalRow, error) bool) {
		scan(s, r, domain.EntitySucursal, "sucursales.csv", required, "id_sucursal", true,
			func(row *record) (domain.SucursalRow, *domain.RowRejection) {
				idComercio := normalizeID(row.get("id_comercio"))
				if idComercio == "" {
					return domain.SucursalRow{}, row.reject(domain.ReasonMissingRequiredField, "id_comercio is empty")
				}
				idBandera, ok := parseInt32(row.get("id_bandera"))
				if !ok {
					return domain.SucursalRow{}, row.reject(domain.ReasonUnparseableField, "id_bandera is not an integer")
				}
				idSucursal, ok := parseInt32(row.get("id_sucursal"))
				if !ok {
					return domain.SucursalRow{}, row.reject(domain.ReasonUnparseableField, "id_sucursal is not an integer")
				}

				out := domain.SucursalRow{
					IDComercio:    idComercio,
					IDBandera:     idBandera,
					IDSucursal:    idSucursal,
					Nombre:        optString(row.get("sucursales_nombre")),
					Tipo:          optStoreType(row.get("sucursales_tipo")),
					Calle:         optString(row.get("sucursales_calle")),
					Numero:        optString(row.get("sucursales_numero")),
					Latitud:       optFloat64(row.get("sucursales_latitud")),
					Longitud:      optFloat64(row.get("sucursales_longitud")),
					Observaciones: optString(row.get("sucursales_observaciones")),
					Barrio:        optString(row.get("sucursales_barrio")),
					CodigoPostal:  optInt32(row.get("sucursales_codigo_postal")),
					Localidad:     optString(row.get("sucursales_localidad")),
					Provincia:     optString(row.get("sucursales_provincia")),
				}
				for i, day := range horarioColumns {
					out.Horarios[i] = optString(row.get(day))
				}
				return out, nil
			}, yield)
	}
}

// horarioColumns are the weekly opening-hour columns, Monday first
var horarioColumns = [7]string{
	"sucursales_lunes_horario_atencion",
	"sucursales_martes_horario_atencion",
	"sucursales_miercoles_horario_atencion",
	"sucursales_jueves_horario_atencion",
	"sucursales_viernes_horario_atencion",
	"sucursales_sabado_horario_atencion",
	"sucursales_domingo_horario_atencion",
}

// Productos emits cleaned product/price rows from a raw productos.csv stream
func (s *Sanitizer) Productos(r io.Reader) iter.Seq2[domain.ProductoRow, error] {
	required := []string{"id_comercio", "id_bandera", "id_sucursal", "id_producto"}
	return func(yield func(domain.ProductoRow, error) bool) {
		scan(s, r, domain.EntityProducto, "productos.csv", required, "id_producto", true,
			func(row *record) (domain.ProductoRow, *domain.RowRejection) {
				idComercio := normalizeID(row.get("id_comercio"))
				if idComercio == "" {
					return domain.ProductoRow{}, row.reject(domain.ReasonMissingRequiredField, "id_comercio is empty")
				}
				idBandera, ok := parseInt32(row.get("id_bandera"))
				if !ok {
					return domain.ProductoRow{}, row.reject(domain.ReasonUnparseableField, "id_bandera is not an integer")
				}
				idSucursal, ok := parseInt32(row.get("id_sucursal"))
				if !ok {
					return domain.ProductoRow{}, row.reject(domain.ReasonUnparseableField, "id_sucursal is not an integer")
				}
				idProducto, ok := parseInt64(row.get("id_producto"))
				if !ok {
					return domain.ProductoRow{}, row.reject(domain.ReasonUnparseableField, "id_producto is not an integer")
				}

				return domain.ProductoRow{
					IDComercio:           idComercio,
					IDBandera:            idBandera,
					IDSucursal:           idSucursal,
					IDProducto:           idProducto,
					EAN:                  optBool(row.get("productos_ean")),
					Descripcion:          optString(row.get("productos_descripcion")),
					Marca:                optString(row.get("productos_marca")),
					CantidadPresentacion: optFloat64(row.get("productos_cantidad_presentacion")),
					UnidadPresentacion:   optString(row.get("productos_unidad_medida_presentacion")),
					CantidadReferencia:   optFloat64(row.get("productos_cantidad_referencia")),
					UnidadReferencia:     optString(row.get("productos_unidad_medida_referencia")),
					PrecioLista:          optFloat64(row.get("productos_precio_lista")),
					PrecioReferencia:     optFloat64(row.get("productos_precio_referencia")),
					PrecioPromo1:         optFloat64(row.get("productos_precio_unitario_promo1")),
					LeyendaPromo1:        optString(row.get("productos_leyenda_promo1")),
					PrecioPromo2:         optFloat64(row.get("productos_precio_unitario_promo2")),
					LeyendaPromo2:        optString(row.get("productos_leyenda_promo2")),
				}, nil
			}, yield)
	}
}

// record is one parsed data line plus the header mapping
type record struct {
	entity domain.Entity
	line   int
	cols   map[string]int
	fields []string
}

func (r *record) get(col string) string {
	idx, ok := r.cols[col]
	if !ok || idx >= len(r.fields) {
		return ""
	}
	return scrub(r.fields[idx])
}

func (r *record) reject(reason domain.RejectReason, detail string) *domain.RowRejection {
	return &domain.RowRejection{Entity: r.entity, Line: r.line, Reason: reason, Detail: detail}
}

// scan drives the shared line loop: header mapping, footer dropping, field
// count enforcement, then per-entity conversion. keyCol is the designated
// trailer-detection field; keyNumeric enables the type-based fallback.
func scan[T any](
	s *Sanitizer,
	r io.Reader,
	entity domain.Entity,
	filename string,
	requiredCols []string,
	keyCol string,
	keyNumeric bool,
	convert func(*record) (T, *domain.RowRejection),
	yield func(T, error) bool,
) {
	var zero T
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			yield(zero, fmt.Errorf("%s: failed to read header: %w", filename, err))
		}
		return // empty file yields nothing
	}

	header := strings.TrimPrefix(scanner.Text(), "\ufeff")
	cols := make(map[string]int)
	headerFields := strings.Split(header, delimiter)
	for i, name := range headerFields {
		cols[strings.TrimSpace(name)] = i
	}
	for _, col := range requiredCols {
		if _, ok := cols[col]; !ok {
			yield(zero, fmt.Errorf("%s: missing required column %q", filename, col))
			return
		}
	}

	line := 1
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}

		fields := strings.Split(text, delimiter)
		row := &record{entity: entity, line: line, cols: cols, fields: fields}

		if s.isTrailer(row, keyCol, keyNumeric) {
			continue
		}

		// An embedded delimiter shifts the field count; that row is garbage
		// but the stream keeps going
		if len(fields) != len(headerFields) {
			if !yield(zero, row.reject(domain.ReasonMalformedRow,
				fmt.Sprintf("expected %d fields, got %d", len(headerFields), len(fields)))) {
				return
			}
			continue
		}

		out, rej := convert(row)
		if rej != nil {
			if !yield(zero, rej) {
				return
			}
			continue
		}
		if !yield(out, nil) {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		yield(zero, fmt.Errorf("%s: read failed at line %d: %w", filename, line, err))
	}
}

// isTrailer detects footer banner rows. Fast path: a configured marker appears
// in the key field or the first field, case-insensitive. Fallback for unmarked
// trailers: the key field fails to parse as the entity's id type AND every
// other field is empty, the shape of a one-cell banner. Legitimate rows with
// marker text in a non-key field (e.g. a product description) never match.
func (s *Sanitizer) isTrailer(row *record, keyCol string, keyNumeric bool) bool {
	key := strings.ToLower(row.get(keyCol))
	first := ""
	if len(row.fields) > 0 {
		first = strings.ToLower(scrub(row.fields[0]))
	}
	for _, m := range s.markers {
		if strings.Contains(key, m) || strings.Contains(first, m) {
			return true
		}
	}

	if !keyNumeric {
		return false
	}
	if _, ok := parseInt64(row.get(keyCol)); ok {
		return false
	}
	populated := 0
	for _, f := range row.fields {
		if _, isNull := nullValues[strings.TrimSpace(f)]; !isNull {
			populated++
		}
	}
	return populated <= 1
}

// scrub removes NUL bytes and surrounding whitespace
func scrub(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\x00", ""))
}

// normalizeID cleans a string identifier, fixing float-formatted ids like
// "42.0" back to "42"
func normalizeID(s string) string {
	if _, isNull := nullValues[s]; isNull {
		return ""
	}
	if dot := strings.IndexByte(s, '.'); dot > 0 {
		if frac := s[dot+1:]; frac != "" && strings.Trim(frac, "0") == "" {
			if _, err := strconv.ParseInt(s[:dot], 10, 64); err == nil {
				return s[:dot]
			}
		}
	}
	return s
}

func isNull(s string) bool {
	_, ok := nullValues[s]
	return ok
}

func optString(s string) *string {
	if isNull(s) {
		return nil
	}
	return &s
}

// optStoreType lowercases the store type enum so "Supermercado" and
// "supermercado" compare equal downstream
func optStoreType(s string) *string {
	if isNull(s) {
		return nil
	}
	t := strings.ToLower(s)
	return &t
}

func parseInt64(s string) (int64, bool) {
	s = normalizeID(s)
	if s == "" {
		return 0, false
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, true
	}
	// Some files publish integer ids as floats
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int64(f)) {
		return int64(f), true
	}
	return 0, false
}

func parseInt32(s string) (int32, bool) {
	v, ok := parseInt64(s)
	if !ok || v > int64(int32(^uint32(0)>>1)) || v < int64(-int32(^uint32(0)>>1)-1) {
		return 0, false
	}
	return int32(v), true
}

func optInt64(s string) *int64 {
	if v, ok := parseInt64(s); ok {
		return &v
	}
	return nil
}

func optInt32(s string) *int32 {
	if v, ok := parseInt32(s); ok {
		return &v
	}
	return nil
}

func optFloat64(s string) *float64 {
	if isNull(s) {
		return nil
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return &v
	}
	return nil
}

func optFloat32(s string) *float32 {
	if isNull(s) {
		return nil
	}
	if v, err := strconv.ParseFloat(s, 32); err == nil {
		f := float32(v)
		return &f
	}
	return nil
}

// optBool parses the productos_ean flag, which upstream spells as
// 1/0/True/False/true/false or leaves empty
func optBool(s string) *bool {
	switch s {
	case "1", "True", "true":
		v := true
		return &v
	case "0", "False", "false":
		v := false
		return &v
	}
	return nil
}
