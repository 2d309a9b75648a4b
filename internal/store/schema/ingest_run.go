package schema

import (
	"time"

	"gorm.io/datatypes"
)

// IngestRun represents the ingest_runs table. It serves two purposes: the
// day-scoped exclusive claim (unique index on day keeps two runs for the same
// day mutually exclusive) and the durable per-day change marker the downstream
// cold-storage sync reads instead of re-validating.
type IngestRun struct {
	// ID is the run identifier (UUID)
	ID string `gorm:"column:id;primaryKey;type:uuid"`
	// Day is the UTC ingestion day this run claims
	Day time.Time `gorm:"column:day;not null;uniqueIndex:idx_ingest_runs_day;type:date"`
	// State is the run state; terminal states release the claim for retry
	State string `gorm:"column:state;not null;type:text"`
	// StageReached records how far the run got, for safe resume decisions
	StageReached string `gorm:"column:stage_reached;not null;type:text"`
	// Summary is the serialized RunResult (per-entity counts, rejection reasons)
	Summary datatypes.JSON `gorm:"column:summary;type:jsonb"`

	StartedAt  time.Time  `gorm:"column:started_at;not null;default:now();type:timestamptz"`
	FinishedAt *time.Time `gorm:"column:finished_at;type:timestamptz"`
}

// TableName specifies the table name for the IngestRun model
func (IngestRun) TableName() string {
	return "ingest_runs"
}
