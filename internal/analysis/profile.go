package analysis

import (
	"math"
	"sort"
	"strings"
	"time"

	prose "github.com/jdkato/prose/v2"

	"github.com/dashgen/backend/internal/dataset"
)

const maxSampleTokens = 10

// ProfileDataset computes a ColumnProfile for every column, conditioned on
// the inferred types. Profiles are exact: unlike schema inference they run
// over the full column, never a sample.
func ProfileDataset(ds *dataset.Dataset, types map[string]ColumnType, opts Options) ([]ColumnProfile, error) {
	if ds.NumColumns() == 0 || ds.Rows() == 0 {
		return nil, ErrEmptyDataset
	}

	profiles := make([]ColumnProfile, 0, ds.NumColumns())
	for _, col := range ds.Columns() {
		colType, ok := types[col.Name]
		if !ok {
			return nil, ErrInternalConsistency
		}
		profiles = append(profiles, profileColumn(col, colType, opts))
	}
	return profiles, nil
}

func profileColumn(col dataset.Column, colType ColumnType, opts Options) ColumnProfile {
	profile := ColumnProfile{
		Name:     col.Name,
		Type:     colType,
		RowCount: len(col.Cells),
	}

	// Values that fail coercion after inference committed are recovered as
	// missing rather than failing the column.
	switch colType {
	case TypeNumeric:
		profile.Numeric, profile.MissingCount, profile.DistinctCount = profileNumeric(col)
	case TypeDatetime:
		profile.Datetime, profile.MissingCount, profile.DistinctCount = profileDatetime(col)
	case TypeText:
		profile.Text, profile.MissingCount, profile.DistinctCount = profileText(col)
	default:
		// boolean, categorical and identifier columns all get the frequency
		// treatment; identifiers keep it for the distinct count alone.
		profile.Categorical, profile.MissingCount, profile.DistinctCount = profileCategorical(col, opts.TopK)
	}

	return profile
}

func profileNumeric(col dataset.Column) (*NumericStats, int, int) {
	stats := &NumericStats{}
	missing := 0
	distinct := make(map[float64]struct{})
	var values []float64

	// Welford's algorithm keeps mean/variance numerically stable on long
	// columns.
	mean, m2 := 0.0, 0.0
	for _, cell := range col.Cells {
		if dataset.IsMissing(cell) {
			missing++
			continue
		}
		v, ok := parseNumeric(cell)
		if !ok {
			missing++
			continue
		}

		stats.Count++
		if stats.Count == 1 || v < stats.Min {
			stats.Min = v
		}
		if stats.Count == 1 || v > stats.Max {
			stats.Max = v
		}
		delta := v - mean
		mean += delta / float64(stats.Count)
		m2 += delta * (v - mean)

		distinct[v] = struct{}{}
		values = append(values, v)
	}

	if stats.Count == 0 {
		return stats, missing, 0
	}

	stats.Mean = mean
	if stats.Count > 1 {
		stats.Stddev = math.Sqrt(m2 / float64(stats.Count-1))
	}

	sort.Float64s(values)
	stats.P25 = quantile(values, 0.25)
	stats.Median = quantile(values, 0.5)
	stats.P75 = quantile(values, 0.75)
	stats.P95 = quantile(values, 0.95)

	return stats, missing, len(distinct)
}

func profileCategorical(col dataset.Column, topK int) (*CategoryStats, int, int) {
	if topK <= 0 {
		topK = 20
	}

	missing := 0
	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	order := 0

	for _, cell := range col.Cells {
		if dataset.IsMissing(cell) {
			missing++
			continue
		}
		v := strings.TrimSpace(cell)
		if _, seen := counts[v]; !seen {
			firstSeen[v] = order
			order++
		}
		counts[v]++
	}

	values := make([]CategoryCount, 0, len(counts))
	for v, n := range counts {
		values = append(values, CategoryCount{Value: v, Count: n})
	}
	// Frequency descending; first-seen order breaks ties deterministically.
	sort.Slice(values, func(i, j int) bool {
		if values[i].Count != values[j].Count {
			return values[i].Count > values[j].Count
		}
		return firstSeen[values[i].Value] < firstSeen[values[j].Value]
	})

	stats := &CategoryStats{}
	for i, vc := range values {
		if i < topK {
			stats.TopValues = append(stats.TopValues, vc)
		} else {
			stats.OtherCount += vc.Count
		}
	}

	return stats, missing, len(counts)
}

func profileDatetime(col dataset.Column) (*DatetimeStats, int, int) {
	stats := &DatetimeStats{}
	missing := 0
	distinct := make(map[time.Time]struct{})
	count := 0

	for _, cell := range col.Cells {
		if dataset.IsMissing(cell) {
			missing++
			continue
		}
		t, ok := parseDatetime(strings.TrimSpace(cell))
		if !ok {
			missing++
			continue
		}
		count++
		if count == 1 || t.Before(stats.Min) {
			stats.Min = t
		}
		if count == 1 || t.After(stats.Max) {
			stats.Max = t
		}
		distinct[t] = struct{}{}
	}

	times := make([]time.Time, 0, len(distinct))
	for t := range distinct {
		times = append(times, t)
	}
	stats.Granularity = inferGranularity(times)

	return stats, missing, len(distinct)
}

func inferGranularity(times []time.Time) string {
	if len(times) == 0 {
		return ""
	}

	granularity := "year"
	for _, t := range times {
		switch {
		case t.Second() != 0:
			return "second"
		case t.Minute() != 0:
			granularity = finer(granularity, "minute")
		case t.Hour() != 0:
			granularity = finer(granularity, "hour")
		case t.Day() != 1:
			granularity = finer(granularity, "day")
		case t.Month() != time.January:
			granularity = finer(granularity, "month")
		}
	}
	return granularity
}

var granularityRank = map[string]int{
	"year": 0, "month": 1, "day": 2, "hour": 3, "minute": 4, "second": 5,
}

func finer(a, b string) string {
	if granularityRank[b] > granularityRank[a] {
		return b
	}
	return a
}

func profileText(col dataset.Column) (*TextStats, int, int) {
	stats := &TextStats{}
	missing := 0
	distinct := make(map[string]struct{})
	totalLen := 0
	count := 0
	var sampleText strings.Builder

	for _, cell := range col.Cells {
		if dataset.IsMissing(cell) {
			missing++
			continue
		}
		v := strings.TrimSpace(cell)
		count++
		totalLen += len(v)
		distinct[v] = struct{}{}

		if sampleText.Len() < 2000 {
			sampleText.WriteString(v)
			sampleText.WriteString(" ")
		}
	}

	if count > 0 {
		stats.AvgLength = float64(totalLen) / float64(count)
	}
	stats.SampleTokens = sampleTokens(sampleText.String())

	return stats, missing, len(distinct)
}

func sampleTokens(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	doc, err := prose.NewDocument(text,
		prose.WithExtraction(false),
		prose.WithTagging(false),
		prose.WithSegmentation(false),
	)
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var tokens []string
	for _, tok := range doc.Tokens() {
		word := strings.ToLower(tok.Text)
		if len(word) < 3 {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		tokens = append(tokens, word)
		if len(tokens) >= maxSampleTokens {
			break
		}
	}
	return tokens
}

// quantile interpolates linearly between the two nearest ranks of an already
// sorted slice.
func quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	rank := q * float64(n-1)
	lower := int(rank)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}
	weight := rank - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
