package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dashgen/backend/internal/analysis"
)

func TestFormatProfileContextNumeric(t *testing.T) {
	profiles := []analysis.ColumnProfile{
		{
			Name: "sales", Type: analysis.TypeNumeric,
			RowCount: 100, MissingCount: 5, DistinctCount: 80,
			Numeric: &analysis.NumericStats{
				Min: 1, Max: 99, Mean: 48.5, Stddev: 12.2, Median: 47,
			},
		},
	}

	out := formatProfileContext(profiles, nil)

	assert.Contains(t, out, "sales (numeric)")
	assert.Contains(t, out, "100 rows, 5 missing, 80 distinct")
	assert.Contains(t, out, "min=1")
	assert.Contains(t, out, "mean=48.5")
}

func TestFormatProfileContextCategoricalTopFive(t *testing.T) {
	top := []analysis.CategoryCount{
		{Value: "a", Count: 9}, {Value: "b", Count: 8}, {Value: "c", Count: 7},
		{Value: "d", Count: 6}, {Value: "e", Count: 5}, {Value: "f", Count: 4},
	}
	profiles := []analysis.ColumnProfile{
		{
			Name: "region", Type: analysis.TypeCategorical,
			RowCount: 39, DistinctCount: 6,
			Categorical: &analysis.CategoryStats{TopValues: top},
		},
	}

	out := formatProfileContext(profiles, nil)

	assert.Contains(t, out, "a (9)")
	assert.Contains(t, out, "e (5)")
	assert.NotContains(t, out, "f (4)")
}

func TestFormatProfileContextDatetimeAndRelationships(t *testing.T) {
	profiles := []analysis.ColumnProfile{
		{
			Name: "date", Type: analysis.TypeDatetime,
			RowCount: 10,
			Datetime: &analysis.DatetimeStats{
				Min:         time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
				Max:         time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC),
				Granularity: "day",
			},
		},
	}
	rels := []analysis.RelationshipCandidate{
		{ColumnA: "date", ColumnB: "sales", Kind: analysis.KindTemporalTrend, Strength: 0.92},
	}

	out := formatProfileContext(profiles, rels)

	assert.Contains(t, out, "range 2024-01-02 to 2024-03-09, day granularity")
	assert.Contains(t, out, "temporal-trend between date and sales (strength 0.92)")
}

func TestFormatProfileContextNoRelationshipsSection(t *testing.T) {
	out := formatProfileContext(nil, nil)
	assert.Contains(t, out, "Columns:")
	assert.NotContains(t, out, "Relationships:")
}
