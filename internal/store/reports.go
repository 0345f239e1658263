package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/sift/internal/classifier"
	"github.com/MikeSquared-Agency/sift/internal/report"
)

var ErrNotFound = errors.New("not found")

// WriteReport persists a report run with its classifications, aggregates and
// examples in one transaction.
func (s *Store) WriteReport(ctx context.Context, r *report.Report) error {
	troubleshooting, err := json.Marshal(r.Troubleshooting)
	if err != nil {
		return fmt.Errorf("marshal troubleshooting: %w", err)
	}
	limitations := r.Limitations
	if limitations == nil {
		limitations = []string{}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// 1. Insert run
	_, err = tx.Exec(ctx, `
		INSERT INTO report_runs (id, batch_id, taxonomy_version, sentiment, total, example_count, limitations, troubleshooting, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		r.RunID, r.BatchID, r.TaxonomyVersion, r.Sentiment, r.Summary.Total, len(r.Examples.Examples),
		limitations, troubleshooting, r.Duration.Milliseconds(), r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert report run: %w", err)
	}

	// 2. Copy classifications, rank 0 is the primary
	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"classifications"},
		[]string{"run_id", "ordinal", "conversation_id", "rank", "category", "subcategory", "confidence", "method"},
		pgx.CopyFromRows(classificationRows(r.RunID, r.Classifications)),
	)
	if err != nil {
		return fmt.Errorf("copy classifications: %w", err)
	}

	// 3. Insert aggregates, one row per category plus one per subcategory
	for _, c := range r.Summary.Categories {
		if _, err := tx.Exec(ctx, `
			INSERT INTO category_aggregates (run_id, category, subcategory, volume, percentage)
			VALUES ($1, $2, '', $3, $4)`,
			r.RunID, c.Name, c.Volume, c.Percentage,
		); err != nil {
			return fmt.Errorf("insert aggregate %s: %w", c.Name, err)
		}
		for _, sub := range c.Subcategories {
			if _, err := tx.Exec(ctx, `
				INSERT INTO category_aggregates (run_id, category, subcategory, volume, percentage)
				VALUES ($1, $2, $3, $4, $5)`,
				r.RunID, c.Name, sub.Name, sub.Volume, sub.Percentage,
			); err != nil {
				return fmt.Errorf("insert aggregate %s/%s: %w", c.Name, sub.Name, err)
			}
		}
	}

	// 4. Insert examples in report order
	for i, ex := range r.Examples.Examples {
		if _, err := tx.Exec(ctx, `
			INSERT INTO examples (run_id, position, conversation_id, category, preview, link, language, translation, score)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			r.RunID, i, ex.ConversationID, ex.Category, ex.Preview, ex.Link, ex.Language, ex.Translation, ex.Score,
		); err != nil {
			return fmt.Errorf("insert example %s: %w", ex.ConversationID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// classificationRows keys rows by batch position, so records with a missing
// or repeated id still get distinct keys.
func classificationRows(runID uuid.UUID, results []classifier.Result) [][]any {
	var rows [][]any
	for ordinal, res := range results {
		if len(res.Classifications) == 0 {
			rows = append(rows, []any{runID, ordinal, res.ConversationID, 0, classifier.UnknownCategory, "", 0.0, "none"})
			continue
		}
		for rank, cl := range res.Classifications {
			rows = append(rows, []any{runID, ordinal, res.ConversationID, rank, cl.Category, cl.Subcategory, cl.Confidence, string(cl.Method)})
		}
	}
	return rows
}

// RunRow is a stored report run without its detail rows.
type RunRow struct {
	ID              uuid.UUID `json:"id"`
	BatchID         string    `json:"batch_id"`
	TaxonomyVersion string    `json:"taxonomy_version"`
	Sentiment       string    `json:"sentiment"`
	Total           int       `json:"total"`
	ExampleCount    int       `json:"example_count"`
	Limitations     []string  `json:"limitations"`
	DurationMS      int64     `json:"duration_ms"`
	CreatedAt       time.Time `json:"created_at"`
}

const runColumns = `id, batch_id, taxonomy_version, sentiment, total, example_count, limitations, duration_ms, created_at`

func scanRun(row pgx.Row) (*RunRow, error) {
	var r RunRow
	err := row.Scan(&r.ID, &r.BatchID, &r.TaxonomyVersion, &r.Sentiment, &r.Total, &r.ExampleCount, &r.Limitations, &r.DurationMS, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRun fetches one run by id.
func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (*RunRow, error) {
	r, err := scanRun(s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM report_runs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// RecentRuns lists the newest runs first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `SELECT `+runColumns+` FROM report_runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// AggregatesForRun returns the category-level rows of a run, largest first.
func (s *Store) AggregatesForRun(ctx context.Context, runID uuid.UUID) ([]classifier.CategoryAggregate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT category, subcategory, volume, percentage
		FROM category_aggregates
		WHERE run_id = $1
		ORDER BY subcategory = '' DESC, volume DESC, category, subcategory`, runID)
	if err != nil {
		return nil, fmt.Errorf("list aggregates: %w", err)
	}
	defer rows.Close()

	var out []classifier.CategoryAggregate
	index := make(map[string]int)
	for rows.Next() {
		var cat, sub string
		var volume int
		var pct float64
		if err := rows.Scan(&cat, &sub, &volume, &pct); err != nil {
			return nil, fmt.Errorf("scan aggregate: %w", err)
		}
		if sub == "" {
			index[cat] = len(out)
			out = append(out, classifier.CategoryAggregate{Name: cat, Volume: volume, Percentage: pct})
			continue
		}
		if i, ok := index[cat]; ok {
			out[i].Subcategories = append(out[i].Subcategories, classifier.SubcategoryAggregate{Name: sub, Volume: volume, Percentage: pct})
		}
	}
	return out, rows.Err()
}
