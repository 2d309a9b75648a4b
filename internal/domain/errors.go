package domain

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrDayAlreadyClaimed is returned when another run holds the claim for the same day
	ErrDayAlreadyClaimed = errors.New("day already claimed by an active run")

	// ErrDayAlreadyIngested is returned when a completed run exists for the day and force is off
	ErrDayAlreadyIngested = errors.New("day already ingested")

	// ErrRunCanceled is returned when the run was stopped by a cancellation signal
	ErrRunCanceled = errors.New("run canceled")
)

// RejectReason is the machine-readable code attached to every rejected row
type RejectReason string

const (
	// ReasonMalformedRow marks rows whose field count does not match the header
	ReasonMalformedRow RejectReason = "malformed_row"
	// ReasonUnparseableField marks rows whose key field failed type coercion
	ReasonUnparseableField RejectReason = "unparseable_field"
	// ReasonMissingRequiredField marks rows missing a non-nullable field
	ReasonMissingRequiredField RejectReason = "missing_required_field"
	// ReasonInvalidPrice marks price rows with a non-positive list price
	ReasonInvalidPrice RejectReason = "invalid_price"
	// ReasonInvalidGeo marks store rows with only one of the two geocoordinates
	ReasonInvalidGeo RejectReason = "invalid_geo"
	// ReasonOrphanStore marks store rows referencing an unknown merchant
	ReasonOrphanStore RejectReason = "orphan_store"
	// ReasonOrphanPrice marks price rows referencing an unknown store or product
	ReasonOrphanPrice RejectReason = "orphan_price"
	// ReasonDuplicateKey marks natural-key recurrences within a run (last value wins)
	ReasonDuplicateKey RejectReason = "duplicate_key"
)

// RowRejection is a per-row, non-fatal fault. It is aggregated and reported,
// never escalated on its own.
type RowRejection struct {
	Entity Entity
	Line   int
	Reason RejectReason
	Detail string
}

func (r *RowRejection) Error() string {
	return fmt.Sprintf("%s row %d rejected (%s): %s", r.Entity, r.Line, r.Reason, r.Detail)
}

// ExtractionError is fatal: the archive is unreadable or structurally invalid.
// It aborts the run before any load happens.
type ExtractionError struct {
	Archive string
	Reason  string
	Err     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for %s: %s", e.Archive, e.Reason)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// IntegrityThresholdExceeded is fatal: the per-entity rejection ratio crossed
// the configured limit, so loading would silently ingest a corrupt day.
type IntegrityThresholdExceeded struct {
	Entity    Entity
	Rejected  int64
	Attempted int64
	Threshold float64
}

func (e *IntegrityThresholdExceeded) Error() string {
	return fmt.Sprintf("integrity threshold exceeded for %s: %d of %d rows rejected (limit %.2f%%)",
		e.Entity, e.Rejected, e.Attempted, e.Threshold*100)
}

// PartitionError is fatal unless the underlying cause resolves to
// "already exists" or "already dropped"
type PartitionError struct {
	Partition string
	Op        string
	Err       error
}

func (e *PartitionError) Error() string {
	return fmt.Sprintf("partition %s failed for %s: %v", e.Op, e.Partition, e.Err)
}

func (e *PartitionError) Unwrap() error { return e.Err }

// LoadError is fatal for its entity. Earlier committed entities stay committed,
// which is what produces a PartiallyCompleted run.
type LoadError struct {
	Entity Entity
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load failed for %s: %v", e.Entity, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// IsTransientStoreFault reports whether a store-level error is worth a bounded
// retry before escalating to a LoadError. Connection-level faults and
// serialization/shutdown SQLSTATEs qualify; constraint violations never do.
func IsTransientStoreFault(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08: connection exceptions. 40001/40P01: serialization/deadlock.
		// 57P03: cannot_connect_now (server starting up).
		switch {
		case len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08":
			return true
		case pgErr.Code == "40001", pgErr.Code == "40P01", pgErr.Code == "57P03":
			return true
		}
	}
	return false
}
