// genarchive builds synthetic daily disclosure archives for load testing the
// ingestor: a zip of per-merchant zips, each holding comercio.csv,
// sucursales.csv and productos.csv in the upstream pipe-delimited format,
// trailer rows included.
package main

import (
	"archive/zip"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"
)

var (
	output    = flag.String("o", "sepa_daily.zip", "Output archive path")
	merchants = flag.Int("merchants", 10, "Number of merchant archives")
	stores    = flag.Int("stores", 20, "Stores per merchant")
	products  = flag.Int("products", 500, "Distinct products per merchant")
	seed      = flag.Int64("seed", 0, "RNG seed (0 = time-based)")
)

var provinces = []string{"AR-C", "AR-B", "AR-S", "AR-X", "AR-M"}

func main() {
	flag.Parse()

	s := *seed
	if s == 0 {
		s = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(s))

	out, err := os.Create(*output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot create %s: %v\n", *output, err)
		os.Exit(1)
	}
	defer out.Close()

	outer := zip.NewWriter(out)
	rows := 0
	for m := 1; m <= *merchants; m++ {
		w, err := outer.Create(fmt.Sprintf("sepa_%d_comercio-%d.zip", m, m))
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot add merchant archive: %v\n", err)
			os.Exit(1)
		}
		n, err := writeMerchant(w, rng, m)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot write merchant %d: %v\n", m, err)
			os.Exit(1)
		}
		rows += n
	}
	if err := outer.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "cannot finish archive: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("wrote %s: %d merchants, %d price rows (seed %d)\n", *output, *merchants, rows, s)
}

func writeMerchant(w io.Writer, rng *rand.Rand, m int) (int, error) {
	inner := zip.NewWriter(w)

	f, err := inner.Create("comercio.csv")
	if err != nil {
		return 0, err
	}
	fmt.Fprintln(f, "id_comercio|id_bandera|comercio_cuit|comercio_razon_social|comercio_bandera_nombre|comercio_version_sepa")
	fmt.Fprintf(f, "%d|1|%d|Comercio %d S.A.|Bandera %d|1.0\n", m, 30000000000+rng.Int63n(999999999), m, m)
	fmt.Fprintln(f, "Última actualización: "+time.Now().Format("02/01/2006"))

	f, err = inner.Create("sucursales.csv")
	if err != nil {
		return 0, err
	}
	fmt.Fprintln(f, "id_comercio|id_bandera|id_sucursal|sucursales_nombre|sucursales_tipo|sucursales_latitud|sucursales_longitud|sucursales_localidad|sucursales_provincia")
	for s := 1; s <= *stores; s++ {
		lat := -27.0 - rng.Float64()*12
		lon := -55.0 - rng.Float64()*10
		fmt.Fprintf(f, "%d|1|%d|Sucursal %d|supermercado|%.6f|%.6f|Localidad %d|%s\n",
			m, s, s, lat, lon, s, provinces[rng.Intn(len(provinces))])
	}
	fmt.Fprintln(f, "Última actualización: "+time.Now().Format("02/01/2006"))

	f, err = inner.Create("productos.csv")
	if err != nil {
		return 0, err
	}
	fmt.Fprintln(f, "id_comercio|id_bandera|id_sucursal|id_producto|productos_ean|productos_descripcion|productos_marca|productos_precio_lista|productos_precio_referencia")
	rows := 0
	for s := 1; s <= *stores; s++ {
		for p := 0; p < *products; p++ {
			id := 7790000000000 + int64(p)
			price := 100 + rng.Float64()*5000
			fmt.Fprintf(f, "%d|1|%d|%d|1|Producto %d|Marca %d|%.2f|%.2f\n",
				m, s, id, p, p%50, price, price)
			rows++
		}
	}
	fmt.Fprintln(f, "Última actualización: "+time.Now().Format("02/01/2006"))

	return rows, inner.Close()
}
