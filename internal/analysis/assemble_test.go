package analysis

import (
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spec(chartType ChartType, column string, score float64) ChartSpec {
	return ChartSpec{
		Type:     chartType,
		Bindings: []FieldBinding{{Role: "value", Column: column}},
		Score:    score,
	}
}

func TestAssembleEmptyCandidates(t *testing.T) {
	board := Assemble(nil, DefaultOptions())
	assert.Empty(t, board.Charts)
}

func TestAssembleDedupeKeepsHigherScore(t *testing.T) {
	candidates := []ChartSpec{
		spec(ChartHistogram, "sales", 0.4),
		spec(ChartHistogram, "sales", 0.7),
		spec(ChartHistogram, "cost", 0.5),
	}

	board := Assemble(candidates, DefaultOptions())

	require.Len(t, board.Charts, 2)
	got, ok := findSpec(board.Charts, ChartHistogram, "sales")
	require.True(t, ok)
	assert.InDelta(t, 0.7, got.Score, 1e-9)
}

func TestAssembleOrdersByScoreDescending(t *testing.T) {
	candidates := []ChartSpec{
		spec(ChartHistogram, "a", 0.3),
		spec(ChartBar, "b", 0.9),
		spec(ChartScatter, "c", 0.6),
	}

	board := Assemble(candidates, DefaultOptions())

	require.Len(t, board.Charts, 3)
	assert.True(t, sort.SliceIsSorted(board.Charts, func(i, j int) bool {
		return board.Charts[i].Score > board.Charts[j].Score
	}))
	assert.Equal(t, ChartBar, board.Charts[0].Type)
}

func TestAssembleCapsChartCount(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxCharts = 4
	opts.DiversityCap = 0

	var candidates []ChartSpec
	for i := 0; i < 10; i++ {
		candidates = append(candidates, spec(ChartHistogram, fmt.Sprintf("col%d", i), 0.5))
	}

	board := Assemble(candidates, opts)
	assert.Len(t, board.Charts, 4)
}

func TestAssembleDiversityDefersFloodingType(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxCharts = 5
	opts.DiversityCap = 0.4 // two slots per type
	opts.ScoreFloor = 0.2

	candidates := []ChartSpec{
		spec(ChartHistogram, "h1", 0.9),
		spec(ChartHistogram, "h2", 0.8),
		spec(ChartHistogram, "h3", 0.7),
		spec(ChartHistogram, "h4", 0.6),
		spec(ChartBar, "b1", 0.5),
		spec(ChartBar, "b2", 0.4),
	}

	board := Assemble(candidates, opts)

	require.Len(t, board.Charts, 5)

	// Both bars make the board even though four histograms outscore them.
	_, hasB1 := findSpec(board.Charts, ChartBar, "b1")
	_, hasB2 := findSpec(board.Charts, ChartBar, "b2")
	assert.True(t, hasB1)
	assert.True(t, hasB2)

	// Presentation order stays score-descending after deferral.
	assert.True(t, sort.SliceIsSorted(board.Charts, func(i, j int) bool {
		return board.Charts[i].Score > board.Charts[j].Score
	}))
}

func TestAssembleDeferredSpecsBackfillWhenAlternativesRunOut(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxCharts = 4
	opts.DiversityCap = 0.25 // one slot per type

	// Only one type present: the cap cannot starve the board.
	candidates := []ChartSpec{
		spec(ChartHistogram, "h1", 0.9),
		spec(ChartHistogram, "h2", 0.8),
		spec(ChartHistogram, "h3", 0.7),
	}

	board := Assemble(candidates, opts)
	assert.Len(t, board.Charts, 3)
}

func TestAssembleBelowFloorSpecsDoNotBlockSelection(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxCharts = 3
	opts.DiversityCap = 0.34 // one slot per type
	opts.ScoreFloor = 0.2

	// The second bar sits below the floor, so histograms may keep their
	// extra slots rather than deferring to it.
	candidates := []ChartSpec{
		spec(ChartHistogram, "h1", 0.9),
		spec(ChartHistogram, "h2", 0.8),
		spec(ChartBar, "b1", 0.5),
		spec(ChartBar, "b2", 0.1),
	}

	board := Assemble(candidates, opts)

	require.Len(t, board.Charts, 3)
	_, hasB1 := findSpec(board.Charts, ChartBar, "b1")
	assert.True(t, hasB1)
	_, hasH2 := findSpec(board.Charts, ChartHistogram, "h2")
	assert.True(t, hasH2)
}

func TestAssembleDeterministic(t *testing.T) {
	candidates := []ChartSpec{
		spec(ChartHistogram, "a", 0.5),
		spec(ChartBar, "b", 0.5),
		spec(ChartScatter, "c", 0.5),
	}

	first := Assemble(candidates, DefaultOptions())
	second := Assemble(candidates, DefaultOptions())
	assert.Equal(t, first, second)
}
