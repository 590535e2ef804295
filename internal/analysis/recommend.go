package analysis

import (
	"fmt"
	"math"
)

// The recommender is a fixed rulebook: one scoring rule per relationship
// kind plus shape rules for standalone columns. Every rule is total over the
// shapes it matches and deterministic, and emits scores in [0,1].
// Overlapping specs for the same columns are expected; deduplication belongs
// to the assembler.

type ruleContext struct {
	profiles map[string]*ColumnProfile
	opts     Options
}

type relationshipRule func(RelationshipCandidate, *ruleContext) []ChartSpec

type profileRule struct {
	name  string
	match func(*ColumnProfile, *ruleContext) bool
	build func(*ColumnProfile, *ruleContext) []ChartSpec
}

var relationshipRules = map[RelationshipKind]relationshipRule{
	KindTemporalTrend: recommendLine,
	KindGrouping:      recommendGroupedBar,
	KindCorrelation:   recommendScatter,
}

var profileRules = []profileRule{
	{
		name: "lone-numeric-histogram",
		match: func(p *ColumnProfile, _ *ruleContext) bool {
			return p.Type == TypeNumeric
		},
		build: recommendHistogram,
	},
	{
		name: "lone-categorical-breakdown",
		match: func(p *ColumnProfile, ctx *ruleContext) bool {
			return p.Type == TypeCategorical && !ctx.hasNumericPartner()
		},
		build: recommendCategoryBreakdown,
	},
}

// Recommend maps profiles and relationship candidates to chart spec
// candidates through the rulebook.
func Recommend(profiles []ColumnProfile, relationships []RelationshipCandidate, opts Options) []ChartSpec {
	ctx := &ruleContext{
		profiles: make(map[string]*ColumnProfile, len(profiles)),
		opts:     opts,
	}
	for i := range profiles {
		ctx.profiles[profiles[i].Name] = &profiles[i]
	}

	var specs []ChartSpec
	for _, rel := range relationships {
		if rule, ok := relationshipRules[rel.Kind]; ok {
			specs = append(specs, rule(rel, ctx)...)
		}
	}
	for _, p := range profiles {
		p := p
		for _, rule := range profileRules {
			if rule.match(&p, ctx) {
				specs = append(specs, rule.build(&p, ctx)...)
			}
		}
	}
	return specs
}

func (ctx *ruleContext) hasNumericPartner() bool {
	for _, p := range ctx.profiles {
		if p.Type == TypeNumeric {
			return true
		}
	}
	return false
}

func recommendLine(rel RelationshipCandidate, _ *ruleContext) []ChartSpec {
	return []ChartSpec{{
		Type: ChartLine,
		Bindings: []FieldBinding{
			{Role: "x", Column: rel.ColumnA},
			{Role: "y", Column: rel.ColumnB},
		},
		Aggregation: AggAvg,
		Score:       clamp01(0.5 + 0.5*rel.Strength),
		Title:       fmt.Sprintf("%s over %s", rel.ColumnB, rel.ColumnA),
	}}
}

func recommendGroupedBar(rel RelationshipCandidate, ctx *ruleContext) []ChartSpec {
	score := clamp01(rel.Strength)
	cardinality := 0
	if p, ok := ctx.profiles[rel.ColumnA]; ok {
		cardinality = p.DistinctCount
	}

	specs := []ChartSpec{{
		Type: ChartBar,
		Bindings: []FieldBinding{
			{Role: "x", Column: rel.ColumnA},
			{Role: "y", Column: rel.ColumnB},
		},
		Aggregation: AggAvg,
		Score:       score,
		Title:       fmt.Sprintf("%s by %s", rel.ColumnB, rel.ColumnA),
	}}

	if cardinality > 10 {
		specs[0].Score = clamp01(score * 0.7)
		specs = append(specs, ChartSpec{
			Type: ChartTable,
			Bindings: []FieldBinding{
				{Role: "x", Column: rel.ColumnA},
				{Role: "value", Column: rel.ColumnB},
			},
			Aggregation: AggAvg,
			Score:       clamp01(score * 0.5),
			Title:       fmt.Sprintf("%s by %s (table)", rel.ColumnB, rel.ColumnA),
		})
	}
	return specs
}

func recommendScatter(rel RelationshipCandidate, _ *ruleContext) []ChartSpec {
	return []ChartSpec{{
		Type: ChartScatter,
		Bindings: []FieldBinding{
			{Role: "x", Column: rel.ColumnA},
			{Role: "y", Column: rel.ColumnB},
		},
		Aggregation: AggNone,
		Score:       clamp01(rel.Strength),
		Title:       fmt.Sprintf("%s vs %s", rel.ColumnA, rel.ColumnB),
	}}
}

// recommendHistogram fires for every numeric column; a constant column
// yields a single-bucket histogram, which is a valid degenerate chart.
func recommendHistogram(p *ColumnProfile, _ *ruleContext) []ChartSpec {
	return []ChartSpec{{
		Type: ChartHistogram,
		Bindings: []FieldBinding{
			{Role: "value", Column: p.Name},
		},
		Aggregation: AggCount,
		Score:       clamp01(0.3 + 0.2*p.NonMissingRatio()),
		Title:       fmt.Sprintf("Distribution of %s", p.Name),
	}}
}

func recommendCategoryBreakdown(p *ColumnProfile, _ *ruleContext) []ChartSpec {
	chartType := ChartPie
	title := fmt.Sprintf("Share of %s", p.Name)
	if p.DistinctCount > 8 {
		chartType = ChartBar
		title = fmt.Sprintf("Top values of %s", p.Name)
	}

	score := clamp01((0.25 + 0.25*p.NonMissingRatio()) * cardinalityFit(p.DistinctCount))
	return []ChartSpec{{
		Type: chartType,
		Bindings: []FieldBinding{
			{Role: "x", Column: p.Name},
			{Role: "value", Column: p.Name},
		},
		Aggregation: AggCount,
		Score:       score,
		Title:       title,
	}}
}

// cardinalityFit decays toward zero as a breakdown gets too wide to read.
func cardinalityFit(card int) float64 {
	if card <= 8 {
		return 1
	}
	return math.Max(0.2, 8/float64(card))
}
