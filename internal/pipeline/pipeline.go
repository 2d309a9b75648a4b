// Package pipeline orchestrates one daily ingestion run as a linear state
// machine: extract, sanitize, validate, ensure partitions, load. Each stage
// either advances the run or produces a terminal state; loading is the only
// stage that can leave the run partially completed, because dimension commits
// are durable before the fact phase begins.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sepalytics/sepa-ingestor/internal/adapter"
	"github.com/sepalytics/sepa-ingestor/internal/config"
	"github.com/sepalytics/sepa-ingestor/internal/domain"
	"github.com/sepalytics/sepa-ingestor/internal/extractor"
	"github.com/sepalytics/sepa-ingestor/internal/logger"
	"github.com/sepalytics/sepa-ingestor/internal/sanitizer"
	"github.com/sepalytics/sepa-ingestor/internal/store"
	"github.com/sepalytics/sepa-ingestor/internal/validator"
)

// Pipeline runs daily ingestions end to end
type Pipeline struct {
	store      store.Store
	partitions store.PartitionManager
	clock      adapter.Clock
	cfg        config.PipelineConfig
	sanitizer  *sanitizer.Sanitizer
	validator  *validator.Validator
}

// New creates a pipeline
func New(st store.Store, pm store.PartitionManager, clock adapter.Clock, cfg config.PipelineConfig) *Pipeline {
	return &Pipeline{
		store:      st,
		partitions: pm,
		clock:      clock,
		cfg:        cfg,
		sanitizer:  sanitizer.New(sanitizer.Config{FooterMarkers: cfg.FooterMarkers}),
		validator: validator.New(validator.Config{
			MaxRejectRatio:  cfg.MaxRejectRatio,
			MinRowsForRatio: cfg.RejectRatioMinRows,
		}),
	}
}

// Run ingests one daily archive. It acquires the day-scoped claim, drives the
// stages under their timeouts and finalizes the claim with the run summary.
// The returned RunResult is populated even when err is non-nil, except when
// the claim itself could not be acquired.
func (p *Pipeline) Run(ctx context.Context, archivePath string, day time.Time, force bool) (*domain.RunResult, error) {
	day = day.UTC().Truncate(24 * time.Hour)
	runID := uuid.NewString()
	res := domain.NewRunResult(runID, day)
	start := p.clock.Now()

	if err := p.store.AcquireRunClaim(ctx, runID, day, force); err != nil {
		return nil, fmt.Errorf("failed to acquire run claim for %s: %w", day.Format("2006-01-02"), err)
	}

	logger.InfoCtx(ctx, "run started",
		zap.String("run_id", runID),
		zap.Time("day", day),
		zap.String("archive", archivePath),
		zap.Bool("force", force),
	)

	err := p.execute(ctx, archivePath, day, res)
	if err != nil && errors.Is(err, context.Canceled) {
		err = fmt.Errorf("%w at stage %s", domain.ErrRunCanceled, res.StageReached)
	}

	res.Elapsed = p.clock.Since(start)
	if err == nil {
		res.State = domain.RunStateCompleted
	} else {
		res.Err = err.Error()
		if committedAny(res) {
			res.State = domain.RunStatePartiallyCompleted
		} else {
			res.State = domain.RunStateAborted
		}
	}

	// The claim must be released even when the run context is already dead
	finalizeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if ferr := p.store.FinalizeRunClaim(finalizeCtx, runID, res); ferr != nil {
		logger.ErrorCtx(finalizeCtx, fmt.Errorf("failed to finalize run claim: %w", ferr),
			zap.String("run_id", runID))
		if err == nil {
			err = ferr
			res.State = domain.RunStatePartiallyCompleted
			res.Err = ferr.Error()
		}
	}

	logger.InfoCtx(ctx, "run finished",
		zap.String("run_id", runID),
		zap.String("state", string(res.State)),
		zap.Duration("elapsed", res.Elapsed),
	)
	return res, err
}

// committedAny reports whether any entity reached the database, which is the
// line between Aborted and PartiallyCompleted
func committedAny(res *domain.RunResult) bool {
	for _, c := range res.Counts {
		if c.Inserted > 0 || c.Updated > 0 {
			return true
		}
	}
	return false
}

func (p *Pipeline) execute(ctx context.Context, archivePath string, day time.Time, res *domain.RunResult) error {
	// Stage 1: extraction
	res.StageReached = domain.RunStateExtracting
	workDir, err := os.MkdirTemp("", "sepa-ingest-")
	if err != nil {
		return fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	exCtx, exCancel := stageContext(ctx, p.cfg.StageTimeout.Extract)
	datasets, err := extractor.Extract(exCtx, archivePath, workDir, p.cfg.ExtractWorkers)
	exCancel()
	if err != nil {
		return err
	}

	// Stage 2: sanitize and validate dimensions. Sanitization is lazy inside
	// the validation streams, so the two share one timeout.
	res.StageReached = domain.RunStateSanitizing
	keys, err := p.seedKeySets(ctx)
	if err != nil {
		return err
	}

	res.StageReached = domain.RunStateValidating
	vCtx, vCancel := stageContext(ctx, p.cfg.StageTimeout.Validate)
	comercios, sucursales, err := p.validateDimensions(vCtx, datasets, keys, res)
	vCancel()
	if err != nil {
		return err
	}
	keys.Freeze()

	// Stage 3: partition lifecycle for the day plus the lookahead window
	res.StageReached = domain.RunStatePartitionEnsuring
	lookaheadEnd := day.AddDate(0, 0, p.cfg.PartitionLookaheadDays)
	if err := p.partitions.EnsurePartitions(ctx, day, lookaheadEnd); err != nil {
		return err
	}

	// Stage 4: dependency-ordered load
	res.StageReached = domain.RunStateLoading
	loadCtx, loadCancel := stageContext(ctx, p.cfg.StageTimeout.Load)
	defer loadCancel()

	if err := p.loadDimension(loadCtx, domain.EntityComercio, res, func() (store.UpsertResult, error) {
		return p.store.UpsertComercios(loadCtx, toComercios(comercios))
	}); err != nil {
		return err
	}
	if err := p.loadDimension(loadCtx, domain.EntitySucursal, res, func() (store.UpsertResult, error) {
		return p.store.UpsertSucursales(loadCtx, toSucursales(sucursales))
	}); err != nil {
		return err
	}

	return p.loadFacts(loadCtx, datasets, keys, day, res)
}

// seedKeySets loads previously ingested natural keys so rows referencing
// entities from earlier days are not treated as orphans
func (p *Pipeline) seedKeySets(ctx context.Context) (*validator.KeySets, error) {
	if !p.cfg.SeedExistingKeys {
		return validator.NewKeySets(nil, nil, nil), nil
	}

	var (
		merchants map[domain.MerchantKey]struct{}
		stores    map[domain.StoreKey]struct{}
		products  map[int64]struct{}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if merchants, err = p.store.ExistingMerchantKeys(gctx); err != nil {
			return fmt.Errorf("failed to load existing merchant keys: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if stores, err = p.store.ExistingStoreKeys(gctx); err != nil {
			return fmt.Errorf("failed to load existing store keys: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if products, err = p.store.ExistingProductIDs(gctx); err != nil {
			return fmt.Errorf("failed to load existing product ids: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.InfoCtx(ctx, "seeded key sets from store",
		zap.Int("merchants", len(merchants)),
		zap.Int("stores", len(stores)),
		zap.Int("products", len(products)),
	)
	return validator.NewKeySets(merchants, stores, products), nil
}

// validateDimensions runs the merchant and store streams across all datasets
// in archive order, building the frozen key sets the fact phase joins against
func (p *Pipeline) validateDimensions(
	ctx context.Context,
	datasets []extractor.Dataset,
	keys *validator.KeySets,
	res *domain.RunResult,
) ([]domain.ComercioRow, []domain.SucursalRow, error) {
	comercioStream := concatStreams(ctx, datasets,
		func(ds extractor.Dataset) string { return ds.ComercioPath },
		p.sanitizer.Comercios,
	)
	comercios, comercioStats, err := p.validator.Comercios(ctx, comercioStream, keys)
	mergeStats(res, domain.EntityComercio, comercioStats)
	if err != nil {
		return nil, nil, err
	}

	sucursalStream := concatStreams(ctx, datasets,
		func(ds extractor.Dataset) string { return ds.SucursalesPath },
		p.sanitizer.Sucursales,
	)
	sucursales, sucursalStats, err := p.validator.Sucursales(ctx, sucursalStream, keys, res.UnknownStoreTypes)
	mergeStats(res, domain.EntitySucursal, sucursalStats)
	if err != nil {
		return nil, nil, err
	}

	logger.InfoCtx(ctx, "dimensions validated",
		zap.Int("comercios", len(comercios)),
		zap.Int("sucursales", len(sucursales)),
	)
	return comercios, sucursales, nil
}

// loadDimension upserts one dimension with bounded transient-fault retries
func (p *Pipeline) loadDimension(ctx context.Context, entity domain.Entity, res *domain.RunResult, op func() (store.UpsertResult, error)) error {
	var result store.UpsertResult
	err := p.retryStoreOp(ctx, string(entity)+" upsert", func() error {
		var opErr error
		result, opErr = op()
		return opErr
	})
	if err != nil {
		return &domain.LoadError{Entity: entity, Err: err}
	}

	counts := res.Counts[entity]
	counts.Inserted += result.Inserted
	counts.Updated += result.Updated
	return nil
}

// loadFacts streams the productos files of every dataset through batch
// validation and loads each validated batch. Product upserts run on a single
// worker in chunk order: a product recurring across chunks must commit its
// last-seen attributes last, and concurrent upserts would make that order
// nondeterministic. Price inserts fan out on the load pool; the fact table
// holds no foreign keys, and each chunk's prices wait for its own product
// upsert only.
func (p *Pipeline) loadFacts(
	ctx context.Context,
	datasets []extractor.Dataset,
	keys *validator.KeySets,
	day time.Time,
	res *domain.RunResult,
) error {
	productoStats := validator.NewStats()
	precioStats := validator.NewStats()

	workers := p.cfg.LoadWorkers
	if workers <= 0 {
		workers = 1
	}
	productPool := pond.NewPool(1, pond.WithContext(ctx))
	defer productPool.StopAndWait()
	precioPool := pond.NewPool(workers, pond.WithContext(ctx))
	defer precioPool.StopAndWait()

	var (
		mu    sync.Mutex
		tasks []pond.Task
	)
	stream := concatStreams(ctx, datasets,
		func(ds extractor.Dataset) string { return ds.ProductosPath },
		p.sanitizer.Productos,
	)
	streamErr := p.validator.ProductosPrecios(ctx, stream, keys, p.cfg.BatchSize, productoStats, precioStats,
		func(batch validator.PrecioBatch) error {
			prodTask := productPool.SubmitErr(func() error {
				return p.loadProductChunk(ctx, batch.Productos, day, res, &mu)
			})
			tasks = append(tasks, prodTask)
			tasks = append(tasks, precioPool.SubmitErr(func() error {
				if err := prodTask.Wait(); err != nil {
					return err
				}
				return p.loadPrecioChunk(ctx, batch.Precios, day, res, &mu)
			}))
			return nil
		})

	var loadErr error
	for _, task := range tasks {
		if err := task.Wait(); err != nil && loadErr == nil {
			loadErr = err
		}
	}

	mergeStats(res, domain.EntityProducto, productoStats)
	mergeStats(res, domain.EntityPrecio, precioStats)

	if loadErr != nil {
		return loadErr
	}
	return streamErr
}

// loadProductChunk upserts one chunk's product masters
func (p *Pipeline) loadProductChunk(ctx context.Context, productos []domain.ProductoRow, day time.Time, res *domain.RunResult, mu *sync.Mutex) error {
	if len(productos) == 0 {
		return nil
	}
	var result store.UpsertResult
	err := p.retryStoreOp(ctx, "producto upsert", func() error {
		var opErr error
		result, opErr = p.store.UpsertProductos(ctx, toProductoMasters(productos, day))
		return opErr
	})
	if err != nil {
		return &domain.LoadError{Entity: domain.EntityProducto, Err: err}
	}
	mu.Lock()
	res.Counts[domain.EntityProducto].Inserted += result.Inserted
	res.Counts[domain.EntityProducto].Updated += result.Updated
	mu.Unlock()
	return nil
}

// loadPrecioChunk appends one chunk's price observations
func (p *Pipeline) loadPrecioChunk(ctx context.Context, precios []domain.ProductoRow, day time.Time, res *domain.RunResult, mu *sync.Mutex) error {
	if len(precios) == 0 {
		return nil
	}
	var inserted int64
	err := p.retryStoreOp(ctx, "precio insert", func() error {
		var opErr error
		inserted, opErr = p.store.InsertPrecios(ctx, toPrecios(precios, day))
		return opErr
	})
	if err != nil {
		return &domain.LoadError{Entity: domain.EntityPrecio, Err: err}
	}
	mu.Lock()
	res.Counts[domain.EntityPrecio].Inserted += inserted
	mu.Unlock()
	return nil
}

// retryStoreOp retries a store operation on transient faults with exponential
// backoff. Permanent faults and context expiry escalate immediately.
func (p *Pipeline) retryStoreOp(ctx context.Context, name string, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 15 * time.Second

	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !domain.IsTransientStoreFault(err) {
			return backoff.Permanent(err)
		}
		logger.WarnCtx(ctx, "transient store fault, retrying",
			zap.String("op", name), zap.Error(err))
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, p.cfg.LoadMaxRetries), ctx))
}

// concatStreams chains the per-merchant files of one entity into a single lazy
// stream, skipping merchants that did not publish the file
func concatStreams[T any](
	ctx context.Context,
	datasets []extractor.Dataset,
	path func(extractor.Dataset) string,
	open func(io.Reader) iter.Seq2[T, error],
) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		for _, ds := range datasets {
			if err := ctx.Err(); err != nil {
				yield(zero, err)
				return
			}
			name := path(ds)
			if name == "" {
				continue
			}
			f, err := os.Open(name) //nolint:gosec,G304
			if err != nil {
				yield(zero, fmt.Errorf("failed to open %s: %w", name, err))
				return
			}
			stopped := false
			for row, rowErr := range open(f) {
				if !yield(row, rowErr) {
					stopped = true
					break
				}
			}
			f.Close()
			if stopped {
				return
			}
		}
	}
}

func mergeStats(res *domain.RunResult, entity domain.Entity, stats *validator.Stats) {
	counts := res.Counts[entity]
	counts.Attempted += stats.Attempted
	counts.Accepted += stats.Accepted
	counts.Rejected += stats.Rejected
	for reason, n := range stats.ByReason {
		res.RejectionsByReason[reason] += n
	}
}

func stageContext(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
