package report

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/sift/internal/classifier"
	"github.com/MikeSquared-Agency/sift/internal/conversation"
	"github.com/MikeSquared-Agency/sift/internal/examples"
	"github.com/MikeSquared-Agency/sift/internal/filter"
	"github.com/MikeSquared-Agency/sift/internal/llm"
	"github.com/MikeSquared-Agency/sift/internal/taxonomy"
)

var fixedNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func fixtureBuilder(t *testing.T) *Builder {
	t.Helper()
	reg, err := taxonomy.New("fixture-1", []taxonomy.Category{
		{Name: "Billing", Keywords: []string{"refund", "invoice", "charge"}, Threshold: 0.25},
		{Name: "Bug", Keywords: []string{"bug", "broken", "error"}, Threshold: 0.25},
	}, nil, nil)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sel := examples.New(llm.Failing{}, nil, examples.Options{
		WorkspaceID: "ws1",
		Now:         func() time.Time { return fixedNow },
	}, logger)
	b := NewBuilder(reg, sel, logger)
	b.now = func() time.Time { return fixedNow }
	return b
}

func fixtureBatch() []conversation.Conversation {
	var convs []conversation.Conversation
	for i := 0; i < 6; i++ {
		convs = append(convs, conversation.Conversation{
			ID:   fmt.Sprintf("bill-%d", i),
			Body: fmt.Sprintf("customer %d was charged twice this month and wants it fixed", i),
			Tags: []string{"billing"},
		})
	}
	for i := 0; i < 2; i++ {
		convs = append(convs, conversation.Conversation{
			ID:   fmt.Sprintf("bug-%d", i),
			Body: fmt.Sprintf("dashboard crashes for customer %d right after logging in", i),
			Tags: []string{"bug"},
		})
	}
	convs = append(convs, conversation.Conversation{
		ID:   "bug-2",
		Body: "i tried another browser and the dashboard still crashes on load",
		Tags: []string{"bug"},
	})
	convs = append(convs, conversation.Conversation{
		ID:   "chatter",
		Body: "hello there, just saying hi to the whole team today",
	})
	return convs
}

func TestBuild_EndToEnd(t *testing.T) {
	b := fixtureBuilder(t)

	r, err := b.Build(context.Background(), fixtureBatch(), Options{BatchID: "batch-7", Sentiment: "frustrated"})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, r.RunID)
	assert.Equal(t, "batch-7", r.BatchID)
	assert.Equal(t, "fixture-1", r.TaxonomyVersion)
	assert.Equal(t, fixedNow, r.CreatedAt)
	require.Len(t, r.Classifications, 10)

	assert.Equal(t, 10, r.Summary.Total)
	require.NoError(t, r.Summary.Validate())
	billing, ok := r.Summary.Category("Billing")
	require.True(t, ok)
	assert.Equal(t, 6, billing.Volume)
	assert.InDelta(t, 60.0, billing.Percentage, 1e-9)
	unknown, ok := r.Summary.Category(classifier.UnknownCategory)
	require.True(t, ok)
	assert.Equal(t, 1, unknown.Volume)

	require.Len(t, r.Examples.Quotas, 2)
	assert.Equal(t, "Billing", r.Examples.Quotas[0].Category)
	assert.Equal(t, 3, r.Examples.Quotas[0].Count)
	assert.Equal(t, "Bug", r.Examples.Quotas[1].Category)
	assert.Equal(t, 3, r.Examples.Quotas[1].Count)
	require.Len(t, r.Examples.Examples, 6)
	for _, ex := range r.Examples.Examples {
		assert.NotEqual(t, "chatter", ex.ConversationID, "unknown conversations never become examples")
		assert.Contains(t, ex.Link, "/ws1/inbox/conversation/")
	}

	assert.Equal(t, []filter.PatternCount{{Pattern: filter.PatternBrowserSwitching, Count: 1}}, r.Troubleshooting)
	assert.Empty(t, r.Limitations)
}

func TestBuild_EmptyBatch(t *testing.T) {
	r, err := fixtureBuilder(t).Build(context.Background(), nil, Options{})
	require.NoError(t, err)
	assert.Zero(t, r.Summary.Total)
	assert.Empty(t, r.Summary.Categories)
	assert.Empty(t, r.Examples.Examples)
	assert.Empty(t, r.Limitations)
}

func TestBuild_OnlyUnknown(t *testing.T) {
	convs := []conversation.Conversation{{ID: "1", Body: "hello there, just saying hi to the whole team today"}}

	r, err := fixtureBuilder(t).Build(context.Background(), convs, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, r.Summary.Total)
	assert.Empty(t, r.Examples.Examples)
	assert.Equal(t, []string{"no classified conversations to draw examples from"}, r.Limitations)
}

func TestBuild_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fixtureBuilder(t).Build(ctx, fixtureBatch(), Options{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestBuild_WithoutSelector(t *testing.T) {
	b := fixtureBuilder(t)
	b.selector = nil

	r, err := b.Build(context.Background(), fixtureBatch(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 10, r.Summary.Total)
	assert.Empty(t, r.Examples.Examples)
}

func TestGroupByPrimary(t *testing.T) {
	convs := []conversation.Conversation{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}
	results := []classifier.Result{
		{ConversationID: "a", Classifications: []classifier.Classification{{Category: "Bug", Confidence: 1}}},
		{ConversationID: "b"},
		{ConversationID: "c", Classifications: []classifier.Classification{
			{Category: "Billing", Confidence: 1},
			{Category: "Bug", Confidence: 0.6},
		}},
		{ConversationID: "d", Classifications: []classifier.Classification{{Category: "Bug", Confidence: 0.5}}},
	}

	groups := GroupByPrimary(convs, results)
	require.Len(t, groups, 2)
	assert.Equal(t, "Bug", groups[0].Category)
	assert.Len(t, groups[0].Conversations, 2)
	assert.Equal(t, "Billing", groups[1].Category)
	assert.Equal(t, "c", groups[1].Conversations[0].ID, "only the primary category receives the conversation")
}
