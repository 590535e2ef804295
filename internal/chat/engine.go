package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dashgen/backend/internal/analysis"
	"github.com/dashgen/backend/internal/cache/redis"
	"github.com/dashgen/backend/internal/jobs"
	"github.com/dashgen/backend/internal/llm"
	"github.com/dashgen/backend/internal/metrics"
	"github.com/dashgen/backend/pkg/logger"
	"github.com/dashgen/backend/pkg/utils"
)

const systemPrompt = `You are a data analyst assistant. Answer questions about an uploaded dataset
using ONLY the statistical profile provided. Cite concrete numbers from the
profile. If the profile does not contain the answer, say so; never invent
statistics.`

const answerTTL = time.Hour

// Engine answers natural-language questions against a finished analysis
// snapshot. It reads the profile and relationship set read-only and never
// re-runs the pipeline.
type Engine struct {
	manager   *jobs.Manager
	llmClient *llm.Client
	cache     *redis.Client
}

type Answer struct {
	JobID    string
	Question string
	Answer   string
	Cached   bool
}

func NewEngine(manager *jobs.Manager, llmClient *llm.Client, cache *redis.Client) *Engine {
	return &Engine{
		manager:   manager,
		llmClient: llmClient,
		cache:     cache,
	}
}

// Query answers a question about a completed job. It fails with
// analysis.ErrNotReady while the job is still running.
func (e *Engine) Query(ctx context.Context, jobID, question string) (*Answer, error) {
	snap, err := e.manager.ProfileSnapshot(jobID)
	if err != nil {
		metrics.ChatQueries.WithLabelValues("rejected").Inc()
		return nil, err
	}

	// Keyed under the job ID so eviction can invalidate a whole job at once.
	cacheKey := jobID + ":" + utils.HashString(strings.ToLower(strings.TrimSpace(question)))

	if e.cache != nil {
		var cached string
		hit, err := e.cache.GetAnswer(ctx, cacheKey, &cached)
		if err != nil {
			logger.Warn("Chat cache lookup failed", zap.Error(err))
		}
		if hit {
			metrics.ChatCacheHits.Inc()
			metrics.ChatQueries.WithLabelValues("ok").Inc()
			return &Answer{JobID: jobID, Question: question, Answer: cached, Cached: true}, nil
		}
		metrics.ChatCacheMisses.Inc()
	}

	userPrompt := fmt.Sprintf("Dataset profile:\n%s\nQuestion: %s",
		formatProfileContext(snap.Profiles, snap.Relationships), question)

	resp, err := e.llmClient.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
	})
	if err != nil {
		metrics.ChatQueries.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	if e.cache != nil {
		if err := e.cache.SetAnswer(ctx, cacheKey, resp.Content, answerTTL); err != nil {
			logger.Warn("Chat cache store failed", zap.Error(err))
		}
	}

	metrics.ChatQueries.WithLabelValues("ok").Inc()
	logger.Info("Chat query answered",
		zap.String("job_id", jobID),
		zap.Int("tokens", resp.Usage.TotalTokens),
	)

	return &Answer{JobID: jobID, Question: question, Answer: resp.Content}, nil
}

// formatProfileContext renders the profile and relationship set as compact
// structured text for the model.
func formatProfileContext(profiles []analysis.ColumnProfile, relationships []analysis.RelationshipCandidate) string {
	var b strings.Builder

	b.WriteString("Columns:\n")
	for _, p := range profiles {
		b.WriteString(fmt.Sprintf("- %s (%s): %d rows, %d missing, %d distinct",
			p.Name, p.Type, p.RowCount, p.MissingCount, p.DistinctCount))

		switch {
		case p.Numeric != nil:
			b.WriteString(fmt.Sprintf("; min=%.4g max=%.4g mean=%.4g stddev=%.4g median=%.4g",
				p.Numeric.Min, p.Numeric.Max, p.Numeric.Mean, p.Numeric.Stddev, p.Numeric.Median))
		case p.Categorical != nil && len(p.Categorical.TopValues) > 0:
			top := p.Categorical.TopValues
			if len(top) > 5 {
				top = top[:5]
			}
			parts := make([]string, len(top))
			for i, vc := range top {
				parts[i] = fmt.Sprintf("%s (%d)", vc.Value, vc.Count)
			}
			b.WriteString("; top values: " + strings.Join(parts, ", "))
		case p.Datetime != nil:
			b.WriteString(fmt.Sprintf("; range %s to %s, %s granularity",
				p.Datetime.Min.Format("2006-01-02"), p.Datetime.Max.Format("2006-01-02"), p.Datetime.Granularity))
		case p.Text != nil:
			b.WriteString(fmt.Sprintf("; avg length %.1f", p.Text.AvgLength))
		}
		b.WriteString("\n")
	}

	if len(relationships) > 0 {
		b.WriteString("Relationships:\n")
		for _, rel := range relationships {
			b.WriteString(fmt.Sprintf("- %s between %s and %s (strength %.2f)\n",
				rel.Kind, rel.ColumnA, rel.ColumnB, rel.Strength))
		}
	}

	return b.String()
}
