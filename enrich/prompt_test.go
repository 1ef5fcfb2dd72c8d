package enrich

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-hq/ABMX/cache"
	"github.com/meridian-hq/ABMX/crm"
)

func TestPromptRendersCompanyContext(t *testing.T) {
	node := NewPromptNode(nil)

	out, err := node.Run(context.Background(), map[string]any{
		"entity": &crm.Entity{
			ID:      "c-1",
			Type:    crm.TypeCompany,
			RawType: "company",
			Properties: map[string]any{
				"name":     "Acme Corp",
				"industry": "saas",
			},
		},
	})
	require.NoError(t, err)

	prompt, ok := out["prompt"].(string)
	require.True(t, ok)
	assert.Contains(t, prompt, "company")
	assert.Contains(t, prompt, "name=Acme Corp")
	assert.Contains(t, prompt, "industry=saas")
	assert.Contains(t, prompt, "id=c-1")
}

func TestPromptRendersContactName(t *testing.T) {
	prompt := Render(&crm.Entity{
		ID:      "p-1",
		Type:    crm.TypeContact,
		RawType: "contact",
		Properties: map[string]any{
			"firstname": "Dana",
			"lastname":  "Reyes",
			"title":     "VP Engineering",
		},
	})

	assert.Contains(t, prompt, "name=Dana Reyes")
	assert.Contains(t, prompt, "title=VP Engineering")
}

func TestPromptUnknownTypeCarriesRawType(t *testing.T) {
	prompt := Render(&crm.Entity{
		ID:         "m-1",
		Type:       crm.TypeUnknown,
		RawType:    "merger",
		Properties: map[string]any{},
	})

	assert.Contains(t, prompt, "type=merger")
	assert.Contains(t, prompt, "id=m-1")
}

func TestPromptCacheHit(t *testing.T) {
	caches := newTestCaches()
	node := NewPromptNode(caches)
	entity := &crm.Entity{
		ID:         "c-1",
		Type:       crm.TypeCompany,
		RawType:    "company",
		Properties: map[string]any{"name": "Acme Corp"},
	}

	first, err := node.Run(context.Background(), map[string]any{"entity": entity})
	require.NoError(t, err)

	// Mutate the entity; a cache hit returns the originally rendered text.
	entity.Properties["name"] = "Renamed Inc"
	second, err := node.Run(context.Background(), map[string]any{"entity": entity})
	require.NoError(t, err)

	assert.Equal(t, first["prompt"], second["prompt"])
	key := cache.Key("c-1", "company", cache.KindPrompt)
	_, ok := caches.Get(key, cache.KindPrompt)
	assert.True(t, ok)
}

func TestPromptRejectsBadInput(t *testing.T) {
	node := NewPromptNode(nil)

	_, err := node.Run(context.Background(), map[string]any{"entity": 42})
	require.Error(t, err)
}
