package analysis

import (
	"math"
	"sort"
	"strings"

	"github.com/dashgen/backend/internal/dataset"
)

// AnalyzeRelationships detects candidate associations between column pairs.
// The result is a set unique by (ColumnA, ColumnB, Kind); iteration order
// follows dataset column order, so identical input and options always yield
// the identical set.
func AnalyzeRelationships(ds *dataset.Dataset, profiles []ColumnProfile, opts Options) ([]RelationshipCandidate, error) {
	if ds.NumColumns() == 0 || ds.Rows() == 0 {
		return nil, ErrEmptyDataset
	}

	byName := make(map[string]*ColumnProfile, len(profiles))
	for i := range profiles {
		byName[profiles[i].Name] = &profiles[i]
	}

	selected := selectColumns(profiles, opts.MaxPairColumns)

	var candidates []RelationshipCandidate
	for i := 0; i < len(selected); i++ {
		for j := 0; j < len(selected); j++ {
			if i == j {
				continue
			}
			a, b := selected[i], selected[j]
			if cand, ok := analyzePair(ds, byName[a], byName[b], opts); ok {
				candidates = append(candidates, cand)
			}
		}
	}

	return dedupeCandidates(candidates), nil
}

// selectColumns caps pairwise work on wide datasets: when the column count
// exceeds the limit, columns are pre-ranked by interestingness
// (non-missing ratio x normalized distinct count) and only the top slice is
// analyzed.
func selectColumns(profiles []ColumnProfile, limit int) []string {
	names := make([]string, len(profiles))
	for i, p := range profiles {
		names[i] = p.Name
	}
	if limit <= 0 || len(profiles) <= limit {
		return names
	}

	type ranked struct {
		name  string
		score float64
		pos   int
	}
	scored := make([]ranked, len(profiles))
	for i, p := range profiles {
		normDistinct := 0.0
		if p.RowCount > 0 {
			normDistinct = math.Min(1, float64(p.DistinctCount)/float64(p.RowCount))
		}
		scored[i] = ranked{name: p.Name, score: p.NonMissingRatio() * normDistinct, pos: i}
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].pos < scored[j].pos
	})

	scored = scored[:limit]
	// Restore dataset order so pair iteration stays deterministic.
	sort.Slice(scored, func(i, j int) bool { return scored[i].pos < scored[j].pos })

	out := make([]string, len(scored))
	for i, r := range scored {
		out[i] = r.name
	}
	return out
}

func analyzePair(ds *dataset.Dataset, a, b *ColumnProfile, opts Options) (RelationshipCandidate, bool) {
	switch {
	case a.Type == TypeNumeric && b.Type == TypeNumeric:
		// Emit each unordered numeric pair once.
		if a.Name > b.Name {
			return RelationshipCandidate{}, false
		}
		r, ok := pearson(ds, a.Name, b.Name)
		if !ok || math.Abs(r) < opts.CorrelationCutoff {
			return RelationshipCandidate{}, false
		}
		return RelationshipCandidate{
			ColumnA:  a.Name,
			ColumnB:  b.Name,
			Kind:     KindCorrelation,
			Strength: math.Abs(r),
		}, true

	case a.Type == TypeCategorical && b.Type == TypeNumeric:
		card := a.DistinctCount
		if card < opts.GroupingMinCard || card > opts.GroupingMaxCard {
			return RelationshipCandidate{}, false
		}
		strength, ok := groupingStrength(ds, a.Name, b.Name, card)
		if !ok {
			return RelationshipCandidate{}, false
		}
		return RelationshipCandidate{
			ColumnA:  a.Name,
			ColumnB:  b.Name,
			Kind:     KindGrouping,
			Strength: strength,
		}, true

	case a.Type == TypeDatetime && b.Type == TypeNumeric:
		strength := temporalTrendStrength(ds, a.Name, b.Name)
		return RelationshipCandidate{
			ColumnA:  a.Name,
			ColumnB:  b.Name,
			Kind:     KindTemporalTrend,
			Strength: strength,
		}, true
	}

	return RelationshipCandidate{}, false
}

// pearson computes the correlation over rows where both cells coerce to a
// number (pairwise deletion of missing values).
func pearson(ds *dataset.Dataset, nameA, nameB string) (float64, bool) {
	colA, _ := ds.Column(nameA)
	colB, _ := ds.Column(nameB)

	var n, sumX, sumY, sumXX, sumYY, sumXY float64
	for i := 0; i < len(colA.Cells) && i < len(colB.Cells); i++ {
		x, okX := cellNumeric(colA.Cells[i])
		y, okY := cellNumeric(colB.Cells[i])
		if !okX || !okY {
			continue
		}
		n++
		sumX += x
		sumY += y
		sumXX += x * x
		sumYY += y * y
		sumXY += x * y
	}

	if n < 3 {
		return 0, false
	}
	cov := sumXY - sumX*sumY/n
	varX := sumXX - sumX*sumX/n
	varY := sumYY - sumY*sumY/n
	if varX <= 0 || varY <= 0 {
		return 0, false
	}
	return cov / math.Sqrt(varX*varY), true
}

// groupingStrength is a variance-explained proxy (correlation ratio) for how
// well the categorical column partitions the numeric one, discounted as
// cardinality grows past a comfortable grouping size.
func groupingStrength(ds *dataset.Dataset, catName, numName string, card int) (float64, bool) {
	catCol, _ := ds.Column(catName)
	numCol, _ := ds.Column(numName)

	type acc struct {
		n   float64
		sum float64
	}
	groups := make(map[string]*acc)
	var total acc
	var sumSq float64

	for i := 0; i < len(catCol.Cells) && i < len(numCol.Cells); i++ {
		if dataset.IsMissing(catCol.Cells[i]) {
			continue
		}
		v, ok := cellNumeric(numCol.Cells[i])
		if !ok {
			continue
		}
		key := strings.TrimSpace(catCol.Cells[i])
		g, exists := groups[key]
		if !exists {
			g = &acc{}
			groups[key] = g
		}
		g.n++
		g.sum += v
		total.n++
		total.sum += v
		sumSq += v * v
	}

	if total.n < 3 || len(groups) < 2 {
		return 0, false
	}

	grandMean := total.sum / total.n
	totalVar := sumSq - total.n*grandMean*grandMean
	if totalVar <= 0 {
		return 0, false
	}

	between := 0.0
	for _, g := range groups {
		groupMean := g.sum / g.n
		between += g.n * (groupMean - grandMean) * (groupMean - grandMean)
	}

	eta2 := between / totalVar
	penalty := math.Min(1, 10/float64(card))
	return clamp01(eta2 * penalty), true
}

// temporalTrendStrength fits value against time with least squares and
// returns the R² of the fit: 1.0 minus the normalized residual noise.
func temporalTrendStrength(ds *dataset.Dataset, timeName, numName string) float64 {
	timeCol, _ := ds.Column(timeName)
	numCol, _ := ds.Column(numName)

	var xs, ys []float64
	for i := 0; i < len(timeCol.Cells) && i < len(numCol.Cells); i++ {
		if dataset.IsMissing(timeCol.Cells[i]) {
			continue
		}
		t, okT := parseDatetime(strings.TrimSpace(timeCol.Cells[i]))
		v, okV := cellNumeric(numCol.Cells[i])
		if !okT || !okV {
			continue
		}
		xs = append(xs, float64(t.Unix()))
		ys = append(ys, v)
	}

	n := float64(len(xs))
	if n < 3 {
		return 0
	}

	var sumX, sumY, sumXX, sumXY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
		sumXX += xs[i] * xs[i]
		sumXY += xs[i] * ys[i]
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	slope := (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n

	meanY := sumY / n
	var ssRes, ssTot float64
	for i := range xs {
		pred := slope*xs[i] + intercept
		ssRes += (ys[i] - pred) * (ys[i] - pred)
		ssTot += (ys[i] - meanY) * (ys[i] - meanY)
	}
	if ssTot == 0 {
		return 0
	}
	return clamp01(1 - ssRes/ssTot)
}

func cellNumeric(cell string) (float64, bool) {
	if dataset.IsMissing(cell) {
		return 0, false
	}
	return parseNumeric(cell)
}

func dedupeCandidates(candidates []RelationshipCandidate) []RelationshipCandidate {
	type key struct {
		a, b string
		kind RelationshipKind
	}
	seen := make(map[key]struct{}, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		k := key{c.ColumnA, c.ColumnB, c.Kind}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
	}
	return out
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
