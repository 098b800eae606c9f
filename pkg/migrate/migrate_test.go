package migrate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func rules() []Rule {
	return []Rule{
		{Field: "id", Required: true, Validate: UUID()},
		{Field: "name", Validate: String()},
		{Field: "count", Validate: IntRange(1, 4)},
		{Field: "tags", Validate: List()},
	}
}

func TestValidatesAcceptsWellFormedDoc(t *testing.T) {
	doc := map[string]any{
		"id":    "a2f1c9a0-9f5b-4c6f-8a2e-3d1b5c7e9f01",
		"name":  "mobidik",
		"count": 2,
	}
	assert.True(t, Validates(doc, rules()))
}

func TestValidatesRejectsMissingRequiredField(t *testing.T) {
	doc := map[string]any{"name": "mobidik"}
	assert.False(t, Validates(doc, rules()))
}

func TestValidatesRejectsUnknownField(t *testing.T) {
	doc := map[string]any{
		"id":     "a2f1c9a0-9f5b-4c6f-8a2e-3d1b5c7e9f01",
		"legacy": true,
	}
	assert.False(t, Validates(doc, rules()))
}

func TestApplyNullsMissingRequiredField(t *testing.T) {
	doc := map[string]any{"name": "mobidik"}

	res := Apply(context.Background(), doc, rules())

	assert.True(t, res.Changed())
	assert.Equal(t, []string{"id"}, res.Nulled)
	v, ok := doc["id"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestApplyDropsInvalidAndUnknownFields(t *testing.T) {
	doc := map[string]any{
		"id":     "a2f1c9a0-9f5b-4c6f-8a2e-3d1b5c7e9f01",
		"count":  99,
		"legacy": true,
	}

	res := Apply(context.Background(), doc, rules())

	assert.ElementsMatch(t, []string{"count", "legacy"}, res.Dropped)
	assert.Empty(t, res.Nulled)
	_, hasCount := doc["count"]
	_, hasLegacy := doc["legacy"]
	assert.False(t, hasCount)
	assert.False(t, hasLegacy)
	assert.Equal(t, "a2f1c9a0-9f5b-4c6f-8a2e-3d1b5c7e9f01", doc["id"])
}

func TestApplyLeavesValidDocUntouched(t *testing.T) {
	doc := map[string]any{
		"id":   "a2f1c9a0-9f5b-4c6f-8a2e-3d1b5c7e9f01",
		"tags": []any{"routine"},
	}

	res := Apply(context.Background(), doc, rules())

	assert.False(t, res.Changed())
	assert.Len(t, doc, 2)
}
