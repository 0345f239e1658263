// Package report runs the full pipeline over a batch of conversations:
// classify, aggregate by primary category, then pick stratified examples.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/sift/internal/classifier"
	"github.com/MikeSquared-Agency/sift/internal/conversation"
	"github.com/MikeSquared-Agency/sift/internal/examples"
	"github.com/MikeSquared-Agency/sift/internal/filter"
	"github.com/MikeSquared-Agency/sift/internal/metrics"
	"github.com/MikeSquared-Agency/sift/internal/taxonomy"
)

// Report is everything produced for one batch.
type Report struct {
	RunID           uuid.UUID             `json:"run_id"`
	BatchID         string                `json:"batch_id,omitempty"`
	TaxonomyVersion string                `json:"taxonomy_version"`
	Sentiment       string                `json:"sentiment,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
	Summary         classifier.Summary    `json:"summary"`
	Classifications []classifier.Result   `json:"classifications"`
	Examples        examples.Stratified   `json:"examples"`
	Troubleshooting []filter.PatternCount `json:"troubleshooting,omitempty"`
	Limitations     []string              `json:"limitations,omitempty"`
	Duration        time.Duration         `json:"-"`
}

// Options tune a single build.
type Options struct {
	BatchID   string
	Sentiment string
}

// Builder is safe for concurrent use.
type Builder struct {
	reg        *taxonomy.Registry
	classifier *classifier.Classifier
	filters    *filter.Engine
	selector   *examples.Selector
	logger     *slog.Logger
	now        func() time.Time
}

func NewBuilder(reg *taxonomy.Registry, selector *examples.Selector, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		reg:        reg,
		classifier: classifier.New(reg),
		filters:    filter.New(reg, logger),
		selector:   selector,
		logger:     logger,
		now:        time.Now,
	}
}

// Classifier exposes the builder's classifier for callers that only need
// per-conversation results.
func (b *Builder) Classifier() *classifier.Classifier { return b.classifier }

// Filters exposes the builder's filter engine.
func (b *Builder) Filters() *filter.Engine { return b.filters }

// Build never fails on bad conversations; it returns an error only when ctx
// is already done.
func (b *Builder) Build(ctx context.Context, convs []conversation.Conversation, opts Options) (*Report, error) {
	if err := ctx.Err(); err != nil {
		metrics.Reports.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("build report: %w", err)
	}
	start := b.now()

	r := &Report{
		RunID:           uuid.New(),
		BatchID:         opts.BatchID,
		TaxonomyVersion: b.reg.Version(),
		Sentiment:       opts.Sentiment,
		CreatedAt:       start.UTC(),
	}

	r.Classifications = b.classifier.ClassifyAll(convs)
	for _, res := range r.Classifications {
		method := string(res.Primary().Method)
		if method == "" {
			method = "none"
		}
		metrics.ConversationsClassified.WithLabelValues(method).Inc()
	}

	r.Summary = classifier.Aggregate(r.Classifications)
	if err := r.Summary.Validate(); err != nil {
		b.logger.Warn("aggregate check failed", "run_id", r.RunID, "error", err)
		r.Limitations = append(r.Limitations, err.Error())
	}

	r.Troubleshooting = filter.SummarizeTechnical(b.filters.FilterByTechnicalPatterns(convs))

	groups := GroupByPrimary(convs, r.Classifications)
	if b.selector != nil && len(groups) > 0 {
		r.Examples = b.selector.SelectStratified(ctx, groups, opts.Sentiment)
		r.Limitations = append(r.Limitations, r.Examples.Limitations...)
	} else if len(convs) > 0 {
		r.Limitations = append(r.Limitations, "no classified conversations to draw examples from")
	}

	r.Duration = b.now().Sub(start)
	metrics.Reports.WithLabelValues("success").Inc()
	metrics.ReportDuration.Observe(r.Duration.Seconds())

	b.logger.Info("report built",
		"run_id", r.RunID,
		"batch_id", opts.BatchID,
		"count", len(convs),
		"categories", len(r.Summary.Categories),
		"examples", len(r.Examples.Examples),
	)
	return r, nil
}

// GroupByPrimary buckets conversations by their primary category in first-seen
// order. Unknown conversations are left out: they never get examples.
func GroupByPrimary(convs []conversation.Conversation, results []classifier.Result) []examples.Group {
	index := make(map[string]int)
	var groups []examples.Group
	for i, res := range results {
		if i >= len(convs) {
			break
		}
		cat := res.Primary().Category
		if cat == classifier.UnknownCategory {
			continue
		}
		pos, ok := index[cat]
		if !ok {
			pos = len(groups)
			index[cat] = pos
			groups = append(groups, examples.Group{Category: cat})
		}
		groups[pos].Conversations = append(groups[pos].Conversations, convs[i])
	}
	return groups
}
