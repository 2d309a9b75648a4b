package extractor

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/sepalytics/sepa-ingestor/internal/domain"
	"github.com/sepalytics/sepa-ingestor/internal/logger"
)

const (
	comercioFile   = "comercio.csv"
	sucursalesFile = "sucursales.csv"
	productosFile  = "productos.csv"
)

// Dataset holds the extracted per-merchant CSV paths from one inner archive.
// ProductosPath is empty when the merchant published no price file that day;
// that is tolerated and logged, not fatal.
type Dataset struct {
	Merchant       string
	ComercioPath   string
	SucursalesPath string
	ProductosPath  string
}

// Extract unpacks the daily archive (a zip of per-merchant zips) into workDir
// and returns one Dataset per merchant, ordered by inner archive name. Inner
// archives are unpacked concurrently; file contents stream through io.Copy so
// the archive is never memory-resident.
func Extract(ctx context.Context, archivePath, workDir string, workers int) ([]Dataset, error) {
	outer, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, &domain.ExtractionError{
			Archive: archivePath,
			Reason:  "not a readable zip archive",
			Err:     err,
		}
	}
	defer outer.Close()

	var inner []*zip.File
	for _, f := range outer.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(f.Name), ".zip") {
			inner = append(inner, f)
		}
	}
	if len(inner) == 0 {
		return nil, &domain.ExtractionError{
			Archive: archivePath,
			Reason:  "archive contains no inner merchant archives",
		}
	}
	sort.Slice(inner, func(i, j int) bool { return inner[i].Name < inner[j].Name })

	logger.InfoCtx(ctx, "extracting archive",
		zap.String("archive", archivePath),
		zap.Int("merchants", len(inner)),
	)

	if workers <= 0 {
		workers = 1
	}
	pool := pond.NewResultPool[Dataset](workers, pond.WithContext(ctx))
	defer pool.StopAndWait()

	tasks := make([]pond.Result[Dataset], 0, len(inner))
	for _, f := range inner {
		tasks = append(tasks, pool.SubmitErr(func() (Dataset, error) {
			return extractInner(ctx, archivePath, f, workDir)
		}))
	}

	datasets := make([]Dataset, 0, len(inner))
	for _, task := range tasks {
		ds, err := task.Wait()
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, ds)
	}

	return datasets, nil
}

// extractInner unpacks one merchant archive into its own subdirectory
func extractInner(ctx context.Context, archivePath string, f *zip.File, workDir string) (Dataset, error) {
	merchant := strings.TrimSuffix(filepath.Base(f.Name), filepath.Ext(f.Name))
	destDir := filepath.Join(workDir, merchant)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return Dataset{}, &domain.ExtractionError{
			Archive: archivePath,
			Reason:  fmt.Sprintf("cannot create extraction dir for %s", merchant),
			Err:     err,
		}
	}

	// Inner zips need random access, so spool the entry to disk first
	innerPath := filepath.Join(destDir, filepath.Base(f.Name))
	if err := copyZipEntry(f, innerPath); err != nil {
		return Dataset{}, &domain.ExtractionError{
			Archive: archivePath,
			Reason:  fmt.Sprintf("cannot spool inner archive %s", f.Name),
			Err:     err,
		}
	}

	r, err := zip.OpenReader(innerPath)
	if err != nil {
		return Dataset{}, &domain.ExtractionError{
			Archive: archivePath,
			Reason:  fmt.Sprintf("inner archive %s is not a valid zip", f.Name),
			Err:     err,
		}
	}
	defer r.Close()

	ds := Dataset{Merchant: merchant}
	for _, entry := range r.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		dest := filepath.Join(destDir, filepath.Base(entry.Name))
		switch strings.ToLower(filepath.Base(entry.Name)) {
		case comercioFile:
			ds.ComercioPath = dest
		case sucursalesFile:
			ds.SucursalesPath = dest
		case productosFile:
			ds.ProductosPath = dest
		default:
			continue
		}
		if err := copyZipEntry(entry, dest); err != nil {
			return Dataset{}, &domain.ExtractionError{
				Archive: archivePath,
				Reason:  fmt.Sprintf("cannot extract %s from %s", entry.Name, f.Name),
				Err:     err,
			}
		}
	}

	// Merchant and store files are structurally mandatory
	if ds.ComercioPath == "" || ds.SucursalesPath == "" {
		return Dataset{}, &domain.ExtractionError{
			Archive: archivePath,
			Reason:  fmt.Sprintf("inner archive %s is missing %s or %s", f.Name, comercioFile, sucursalesFile),
		}
	}
	if ds.ProductosPath == "" {
		logger.WarnCtx(ctx, "merchant archive has no price file, skipping its prices",
			zap.String("merchant", merchant),
		)
	}

	return ds, nil
}

func copyZipEntry(f *zip.File, dest string) error {
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dest) //nolint:gosec,G304
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil { //nolint:gosec,G110
		return err
	}
	return out.Close()
}
