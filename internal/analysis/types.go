package analysis

import "time"

// ColumnType is the semantic type assigned to a column by schema inference.
type ColumnType string

const (
	TypeNumeric     ColumnType = "numeric"
	TypeCategorical ColumnType = "categorical"
	TypeDatetime    ColumnType = "datetime"
	TypeBoolean     ColumnType = "boolean"
	TypeText        ColumnType = "text"
	TypeIdentifier  ColumnType = "identifier"
)

// Options carries every tunable threshold of the pipeline. The constants in
// DefaultOptions are design defaults, not fixed behavior; the config layer
// overrides them.
type Options struct {
	SampleSize        int
	TypeMatchRatio    float64
	CategoricalRatio  float64
	TopK              int
	CorrelationCutoff float64
	GroupingMinCard   int
	GroupingMaxCard   int
	MaxPairColumns    int
	MaxCharts         int
	ScoreFloor        float64
	DiversityCap      float64
}

func DefaultOptions() Options {
	return Options{
		SampleSize:        1000,
		TypeMatchRatio:    0.9,
		CategoricalRatio:  0.5,
		TopK:              20,
		CorrelationCutoff: 0.3,
		GroupingMinCard:   2,
		GroupingMaxCard:   50,
		MaxPairColumns:    25,
		MaxCharts:         12,
		ScoreFloor:        0.2,
		DiversityCap:      0.4,
	}
}

// ColumnProfile is the per-column statistical summary. Exactly one of the
// type-specific stat blocks is populated, matching Type. Immutable after
// creation.
type ColumnProfile struct {
	Name          string         `json:"name"`
	Type          ColumnType     `json:"type"`
	RowCount      int            `json:"row_count"`
	MissingCount  int            `json:"missing_count"`
	DistinctCount int            `json:"distinct_count"`
	Numeric       *NumericStats  `json:"numeric,omitempty"`
	Categorical   *CategoryStats `json:"categorical,omitempty"`
	Datetime      *DatetimeStats `json:"datetime,omitempty"`
	Text          *TextStats     `json:"text,omitempty"`
}

// NonMissingRatio reports the fraction of rows that carry a value.
func (p *ColumnProfile) NonMissingRatio() float64 {
	if p.RowCount == 0 {
		return 0
	}
	return float64(p.RowCount-p.MissingCount) / float64(p.RowCount)
}

type NumericStats struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Stddev float64 `json:"stddev"`
	P25    float64 `json:"p25"`
	Median float64 `json:"median"`
	P75    float64 `json:"p75"`
	P95    float64 `json:"p95"`
}

type CategoryCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

type CategoryStats struct {
	TopValues  []CategoryCount `json:"top_values"`
	OtherCount int             `json:"other_count"`
}

type DatetimeStats struct {
	Min         time.Time `json:"min"`
	Max         time.Time `json:"max"`
	Granularity string    `json:"granularity"` // year|month|day|hour|minute|second
}

type TextStats struct {
	AvgLength    float64  `json:"avg_length"`
	SampleTokens []string `json:"sample_tokens"`
}

// RelationshipKind classifies a detected association between two columns.
type RelationshipKind string

const (
	KindCorrelation   RelationshipKind = "correlation"
	KindGrouping      RelationshipKind = "grouping"
	KindTemporalTrend RelationshipKind = "temporal-trend"
)

// RelationshipCandidate is a detected association between two columns.
// Candidates form a set unique by (ColumnA, ColumnB, Kind).
type RelationshipCandidate struct {
	ColumnA  string           `json:"column_a"`
	ColumnB  string           `json:"column_b"`
	Kind     RelationshipKind `json:"kind"`
	Strength float64          `json:"strength"`
}

// ChartType enumerates the renderable chart shapes.
type ChartType string

const (
	ChartBar       ChartType = "bar"
	ChartLine      ChartType = "line"
	ChartScatter   ChartType = "scatter"
	ChartPie       ChartType = "pie"
	ChartHistogram ChartType = "histogram"
	ChartTable     ChartType = "table"
)

// Aggregation applied to the value field of a chart.
type Aggregation string

const (
	AggNone  Aggregation = "none"
	AggSum   Aggregation = "sum"
	AggAvg   Aggregation = "avg"
	AggCount Aggregation = "count"
)

// FieldBinding maps a chart role to a dataset column.
type FieldBinding struct {
	Role   string `json:"role"` // x|y|series|value
	Column string `json:"column"`
}

// ChartSpec is one recommended visualization. Immutable once produced.
type ChartSpec struct {
	Type        ChartType      `json:"type"`
	Bindings    []FieldBinding `json:"bindings"`
	Aggregation Aggregation    `json:"aggregation"`
	Score       float64        `json:"score"`
	Title       string         `json:"title"`
}

// DashboardConfig is the final ordered chart list, highest relevance first.
type DashboardConfig struct {
	Charts []ChartSpec `json:"charts"`
}
