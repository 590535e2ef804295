package analysis

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dashgen/backend/internal/dataset"
)

// datetimeLayouts is the fixed list of layouts a value is matched against,
// most specific first.
var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"02.01.2006",
	"02-Jan-2006",
	"Jan 2, 2006",
}

var booleanTokens = map[string]struct{}{
	"true": {}, "false": {},
	"t": {}, "f": {},
	"yes": {}, "no": {},
	"y": {}, "n": {},
	"0": {}, "1": {},
}

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{4,}$`)

// InferSchema assigns a semantic type to every column by testing a bounded,
// deterministic sample of non-missing values against ordered match rules.
// It is a pure function of the sampled data.
func InferSchema(ds *dataset.Dataset, opts Options) (map[string]ColumnType, error) {
	if ds.NumColumns() == 0 || ds.Rows() == 0 {
		return nil, ErrEmptyDataset
	}

	types := make(map[string]ColumnType, ds.NumColumns())
	for _, col := range ds.Columns() {
		types[col.Name] = inferColumn(col, opts)
	}
	return types, nil
}

func inferColumn(col dataset.Column, opts Options) ColumnType {
	sample := sampleValues(col, opts.SampleSize)
	if len(sample) == 0 {
		// A fully missing column carries no signal; the text fallback applies.
		return TypeText
	}

	distinct := distinctSet(sample)

	switch {
	case matchBoolean(distinct):
		return TypeBoolean
	case matchRatio(sample, parsesDatetime) >= opts.TypeMatchRatio:
		return TypeDatetime
	case matchIdentifier(sample, distinct):
		return TypeIdentifier
	case matchRatio(sample, parsesNumeric) >= opts.TypeMatchRatio:
		return TypeNumeric
	case float64(len(distinct))/float64(len(sample)) < opts.CategoricalRatio:
		return TypeCategorical
	default:
		return TypeText
	}
}

// sampleValues takes up to limit non-missing values at a fixed stride so the
// sample covers the whole column and repeated runs see identical input.
func sampleValues(col dataset.Column, limit int) []string {
	if limit <= 0 {
		limit = 1000
	}
	values := col.NonMissing()
	if len(values) <= limit {
		return values
	}
	step := len(values) / limit
	sampled := make([]string, 0, limit)
	for i := 0; i < len(values) && len(sampled) < limit; i += step {
		sampled = append(sampled, values[i])
	}
	return sampled
}

func distinctSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func matchRatio(values []string, parses func(string) bool) float64 {
	if len(values) == 0 {
		return 0
	}
	matched := 0
	for _, v := range values {
		if parses(v) {
			matched++
		}
	}
	return float64(matched) / float64(len(values))
}

func matchBoolean(distinct map[string]struct{}) bool {
	if len(distinct) == 0 || len(distinct) > 2 {
		return false
	}
	for v := range distinct {
		if _, ok := booleanTokens[strings.ToLower(v)]; !ok {
			return false
		}
	}
	return true
}

// matchIdentifier detects key columns: every sampled value unique, and the
// values are either monotonic integers or key-shaped strings.
func matchIdentifier(sample []string, distinct map[string]struct{}) bool {
	if len(sample) < 2 || len(distinct) != len(sample) {
		return false
	}

	monotonic := true
	prev := int64(0)
	for i, v := range sample {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			monotonic = false
			break
		}
		if i > 0 && n <= prev {
			monotonic = false
			break
		}
		prev = n
	}
	if monotonic {
		return true
	}

	for _, v := range sample {
		if parsesNumeric(v) || !keyPattern.MatchString(v) {
			return false
		}
	}
	return true
}

func parsesNumeric(v string) bool {
	_, ok := parseNumeric(v)
	return ok
}

func parsesDatetime(v string) bool {
	_, ok := parseDatetime(v)
	return ok
}

func parseDatetime(v string) (time.Time, bool) {
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseNumeric accepts finite decimal values only. ParseFloat would also
// accept "NaN" and "Inf" tokens, which poison aggregate statistics.
func parseNumeric(v string) (float64, bool) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(v), ",", "")
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
