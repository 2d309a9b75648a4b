package pipeline

import (
	"time"

	"github.com/sepalytics/sepa-ingestor/internal/domain"
	"github.com/sepalytics/sepa-ingestor/internal/store/schema"
)

func toComercio(r domain.ComercioRow) schema.Comercio {
	return schema.Comercio{
		IDComercio:    r.IDComercio,
		IDBandera:     r.IDBandera,
		CUIT:          r.CUIT,
		RazonSocial:   r.RazonSocial,
		BanderaNombre: r.BanderaNombre,
		BanderaURL:    r.BanderaURL,
		VersionSEPA:   r.VersionSEPA,
	}
}

func toComercios(rows []domain.ComercioRow) []schema.Comercio {
	out := make([]schema.Comercio, 0, len(rows))
	for _, r := range rows {
		out = append(out, toComercio(r))
	}
	return out
}

func toSucursal(r domain.SucursalRow) schema.Sucursal {
	return schema.Sucursal{
		IDComercio:       r.IDComercio,
		IDBandera:        r.IDBandera,
		IDSucursal:       r.IDSucursal,
		Nombre:           r.Nombre,
		Tipo:             r.Tipo,
		Calle:            r.Calle,
		Numero:           r.Numero,
		Observaciones:    r.Observaciones,
		Barrio:           r.Barrio,
		CodigoPostal:     r.CodigoPostal,
		Localidad:        r.Localidad,
		Provincia:        r.Provincia,
		Latitud:          r.Latitud,
		Longitud:         r.Longitud,
		HorarioLunes:     r.Horarios[0],
		HorarioMartes:    r.Horarios[1],
		HorarioMiercoles: r.Horarios[2],
		HorarioJueves:    r.Horarios[3],
		HorarioViernes:   r.Horarios[4],
		HorarioSabado:    r.Horarios[5],
		HorarioDomingo:   r.Horarios[6],
	}
}

func toSucursales(rows []domain.SucursalRow) []schema.Sucursal {
	out := make([]schema.Sucursal, 0, len(rows))
	for _, r := range rows {
		out = append(out, toSucursal(r))
	}
	return out
}

func toProductoMaster(r domain.ProductoRow, observedAt time.Time) schema.ProductoMaster {
	return schema.ProductoMaster{
		IDProducto:           r.IDProducto,
		EAN:                  r.EAN,
		Descripcion:          r.Descripcion,
		Marca:                r.Marca,
		CantidadPresentacion: r.CantidadPresentacion,
		UnidadPresentacion:   r.UnidadPresentacion,
		CantidadReferencia:   r.CantidadReferencia,
		UnidadReferencia:     r.UnidadReferencia,
		FirstSeen:            observedAt,
		LastSeen:             observedAt,
	}
}

func toProductoMasters(rows []domain.ProductoRow, observedAt time.Time) []schema.ProductoMaster {
	out := make([]schema.ProductoMaster, 0, len(rows))
	for _, r := range rows {
		out = append(out, toProductoMaster(r, observedAt))
	}
	return out
}

// toPrecio maps a validated price observation. PrecioLista is dereferenced
// unchecked because the validator rejected nil list prices upstream.
func toPrecio(r domain.ProductoRow, day time.Time) schema.Precio {
	return schema.Precio{
		ScrapedAt:        day,
		IDComercio:       r.IDComercio,
		IDBandera:        r.IDBandera,
		IDSucursal:       r.IDSucursal,
		IDProducto:       r.IDProducto,
		PrecioLista:      *r.PrecioLista,
		PrecioReferencia: r.PrecioReferencia,
		PrecioPromo1:     r.PrecioPromo1,
		LeyendaPromo1:    r.LeyendaPromo1,
		PrecioPromo2:     r.PrecioPromo2,
		LeyendaPromo2:    r.LeyendaPromo2,
		Descripcion:      r.Descripcion,
		Marca:            r.Marca,
		FechaVigencia:    day,
	}
}

func toPrecios(rows []domain.ProductoRow, day time.Time) []schema.Precio {
	out := make([]schema.Precio, 0, len(rows))
	for _, r := range rows {
		out = append(out, toPrecio(r, day))
	}
	return out
}
