package analysis

import (
	"sort"
	"strings"
)

// Assemble turns the raw candidate list into the final dashboard: duplicates
// collapsed, slots capped, and a diversity rule that keeps one chart type
// from flooding the board when decent alternatives exist. It never fails; an
// empty candidate list yields an empty dashboard.
func Assemble(candidates []ChartSpec, opts Options) DashboardConfig {
	maxCharts := opts.MaxCharts
	if maxCharts <= 0 {
		maxCharts = 12
	}

	deduped := dedupeSpecs(candidates)

	// Score descending; original recommendation order breaks ties.
	sort.SliceStable(deduped, func(i, j int) bool {
		return deduped[i].Score > deduped[j].Score
	})

	if len(deduped) > 0 && opts.DiversityCap > 0 {
		deduped = applyDiversity(deduped, maxCharts, opts)
	}

	if len(deduped) > maxCharts {
		deduped = deduped[:maxCharts]
	}

	return DashboardConfig{Charts: deduped}
}

func dedupeSpecs(candidates []ChartSpec) []ChartSpec {
	best := make(map[string]int)
	out := make([]ChartSpec, 0, len(candidates))

	for _, spec := range candidates {
		key := specKey(spec)
		idx, seen := best[key]
		if !seen {
			best[key] = len(out)
			out = append(out, spec)
			continue
		}
		if spec.Score > out[idx].Score {
			out[idx] = spec
		}
	}
	return out
}

func specKey(spec ChartSpec) string {
	var b strings.Builder
	b.WriteString(string(spec.Type))
	for _, binding := range spec.Bindings {
		b.WriteString("|")
		b.WriteString(binding.Role)
		b.WriteString("=")
		b.WriteString(binding.Column)
	}
	return b.String()
}

// applyDiversity enforces the per-type slot cap. A spec over its type's cap
// is deferred only while unselected specs of another type remain above the
// score floor; once alternatives run out, deferred specs fill the remaining
// slots in score order.
func applyDiversity(sorted []ChartSpec, maxCharts int, opts Options) []ChartSpec {
	maxPerType := int(opts.DiversityCap * float64(maxCharts))
	if maxPerType < 1 {
		maxPerType = 1
	}

	aboveFloor := make(map[ChartType]int)
	for _, spec := range sorted {
		if spec.Score >= opts.ScoreFloor {
			aboveFloor[spec.Type]++
		}
	}

	selected := make([]ChartSpec, 0, maxCharts)
	deferred := make([]ChartSpec, 0)
	typeCount := make(map[ChartType]int)

	for _, spec := range sorted {
		if len(selected) == maxCharts {
			break
		}
		if typeCount[spec.Type] >= maxPerType && otherTypeAboveFloor(aboveFloor, spec.Type) {
			deferred = append(deferred, spec)
			continue
		}
		selected = append(selected, spec)
		typeCount[spec.Type]++
		if spec.Score >= opts.ScoreFloor {
			aboveFloor[spec.Type]--
		}
	}

	for _, spec := range deferred {
		if len(selected) == maxCharts {
			break
		}
		selected = append(selected, spec)
	}

	// Deferred picks re-enter out of order; restore presentation order.
	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Score > selected[j].Score
	})

	return selected
}

func otherTypeAboveFloor(aboveFloor map[ChartType]int, self ChartType) bool {
	for t, n := range aboveFloor {
		if t != self && n > 0 {
			return true
		}
	}
	return false
}
