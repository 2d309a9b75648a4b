package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPartitionName(t *testing.T) {
	assert.Equal(t, "precios_p20251123", PartitionName(day(2025, time.November, 23)))
	// Non-midnight instants map to their UTC day
	assert.Equal(t, "precios_p20251123", PartitionName(time.Date(2025, time.November, 23, 15, 4, 5, 0, time.UTC)))
}

func TestPartitionDay(t *testing.T) {
	parsed, ok := PartitionDay("precios_p20251123")
	assert.True(t, ok)
	assert.Equal(t, day(2025, time.November, 23), parsed)

	for _, name := range []string{
		"precios",
		"precios_p2025112",
		"precios_p202511230",
		"precios_pXXXXXXXX",
		"otros_p20251123",
		"precios_default",
	} {
		_, ok := PartitionDay(name)
		assert.False(t, ok, "PartitionDay(%q)", name)
	}
}

func TestPartitionNameRoundTrip(t *testing.T) {
	d := day(2026, time.February, 28)
	parsed, ok := PartitionDay(PartitionName(d))
	assert.True(t, ok)
	assert.Equal(t, d, parsed)
}

func TestReclaimEligible(t *testing.T) {
	cutoff := day(2026, time.June, 1)

	// Upper bound of the May 30 shard is May 31, strictly before the cutoff
	assert.True(t, ReclaimEligible(day(2026, time.May, 30), cutoff))
	// Upper bound equals the cutoff: kept
	assert.False(t, ReclaimEligible(day(2026, time.May, 31), cutoff))
	assert.False(t, ReclaimEligible(day(2026, time.June, 1), cutoff))
	assert.False(t, ReclaimEligible(day(2026, time.June, 2), cutoff))
}

func TestCalculateSafeBatchSize(t *testing.T) {
	// Few records: one batch
	assert.Equal(t, 100, calculateSafeBatchSize(100, 15))

	// Large loads stay under the parameter ceiling
	size := calculateSafeBatchSize(1_000_000, 15)
	assert.Equal(t, (65535-1000)/15, size)
	assert.LessOrEqual(t, size*15, 65535-1000)

	// Degenerate field count still makes progress
	assert.Equal(t, 1, calculateSafeBatchSize(10, 100_000))
}
