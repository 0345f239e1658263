package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/sift/internal/conversation"
	"github.com/MikeSquared-Agency/sift/internal/taxonomy"
)

func TestAggregate_PrimaryOnly(t *testing.T) {
	results := []Result{
		{ConversationID: "1", Classifications: []Classification{
			{Category: "Bug", Subcategory: "Export", Confidence: 0.9, Method: MethodTextAnalysis},
			{Category: "Bug", Confidence: 0.9, Method: MethodTextAnalysis},
		}},
		{ConversationID: "2", Classifications: []Classification{
			{Category: "Billing", Confidence: 1, Method: MethodTagged},
			{Category: "Bug", Confidence: 0.6, Method: MethodTextAnalysis},
		}},
		{ConversationID: "3", Classifications: []Classification{
			{Category: "Billing", Confidence: 0.6, Method: MethodTextAnalysis},
			{Category: "Billing", Subcategory: "Refund", Confidence: 0.3, Method: MethodTextAnalysis},
		}},
		{ConversationID: "4"},
	}

	s := Aggregate(results)
	require.NoError(t, s.Validate())
	assert.Equal(t, 4, s.Total)

	require.Len(t, s.Categories, 3)
	assert.Equal(t, "Billing", s.Categories[0].Name)
	assert.Equal(t, 2, s.Categories[0].Volume)
	assert.InDelta(t, 50.0, s.Categories[0].Percentage, 1e-9)
	require.Len(t, s.Categories[0].Subcategories, 1)
	assert.Equal(t, "Refund", s.Categories[0].Subcategories[0].Name)

	bug, ok := s.Category("bug")
	require.True(t, ok)
	assert.Equal(t, 1, bug.Volume, "conversation 2 must not be double-counted under Bug")

	unknown, ok := s.Category(UnknownCategory)
	require.True(t, ok)
	assert.Equal(t, 1, unknown.Volume)

	var pct float64
	for _, c := range s.Categories {
		pct += c.Percentage
	}
	assert.InDelta(t, 100.0, pct, 1e-9)
}

func TestAggregate_SubcategoriesNeverExceedParent(t *testing.T) {
	reg, err := taxonomy.Default()
	require.NoError(t, err)
	c := New(reg)

	convs := []conversation.Conversation{
		{ID: "a", Body: "refund please, I was charged twice", Tags: []string{"refund"}},
		{ID: "b", Body: "cancel my subscription and refund the invoice"},
		{ID: "c", Body: "pdf export broken", Topics: []string{"export"}},
		{ID: "d", Body: "export is slow and the layout is broken"},
		{ID: "e", Body: "love the product"},
		{ID: "f", Tags: []string{"billing", "bug"}},
	}

	s := Aggregate(c.ClassifyAll(convs))
	require.NoError(t, s.Validate())
	for _, cat := range s.Categories {
		sum := 0
		for _, sub := range cat.Subcategories {
			sum += sub.Volume
		}
		assert.LessOrEqual(t, sum, cat.Volume, cat.Name)
	}
}

func TestAggregate_Empty(t *testing.T) {
	s := Aggregate(nil)
	assert.Zero(t, s.Total)
	assert.Empty(t, s.Categories)
	assert.NoError(t, s.Validate())
}

func TestSummary_ValidateDetectsViolations(t *testing.T) {
	s := Summary{
		Total: 3,
		Categories: []CategoryAggregate{{
			Name:          "Billing",
			Volume:        2,
			Subcategories: []SubcategoryAggregate{{Name: "Refund", Volume: 2}, {Name: "Invoice", Volume: 1}},
		}},
	}
	err := s.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
	assert.Contains(t, err.Error(), "sum to 2")
}

func TestResult_PrimarySubcategory(t *testing.T) {
	r := Result{Classifications: []Classification{
		{Category: "Bug", Confidence: 1, Method: MethodTagged},
		{Category: "Billing", Subcategory: "Refund", Confidence: 0.6},
		{Category: "Bug", Subcategory: "Export", Confidence: 0.3},
	}}
	assert.Equal(t, "Export", r.PrimarySubcategory())
	assert.Equal(t, "", Result{}.PrimarySubcategory())
}
