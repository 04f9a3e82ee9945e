package modelregistry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testRegistry() *Registry {
	return New(DefaultModels(), DefaultAliases())
}

func TestFindModel_ByInternalID(t *testing.T) {
	r := testRegistry()
	m, ok := r.FindModel("gpt-4.1")
	assert.True(t, ok)
	assert.Equal(t, "openai", m.ProviderID)
}

func TestFindModel_ByPublicSlug(t *testing.T) {
	r := testRegistry()
	m, ok := r.FindModel("openai/gpt-4.1")
	assert.True(t, ok)
	assert.Equal(t, "gpt-4.1", m.ID)
}

func TestFindModel_BySuffix(t *testing.T) {
	r := testRegistry()
	m, ok := r.FindModel("gpt-4.1")
	assert.True(t, ok)
	_ = m
	m2, ok2 := r.FindModel("gpt-4o") // suffix of openrouter/openai/gpt-4o
	assert.True(t, ok2)
	assert.Equal(t, "gpt-4o-via-openrouter", m2.ID)
}

func TestFindModel_ByAlias(t *testing.T) {
	r := testRegistry()
	m, ok := r.FindModel("claude")
	assert.True(t, ok)
	assert.Equal(t, "claude-sonnet-4.5", m.ID)
}

func TestFindModel_NotFound(t *testing.T) {
	r := testRegistry()
	_, ok := r.FindModel("nonexistent-xyz")
	assert.False(t, ok)
}

func TestGetModelsForProvider(t *testing.T) {
	r := testRegistry()
	models := r.GetModelsForProvider("openai")
	assert.GreaterOrEqual(t, len(models), 3)
	for _, m := range models {
		assert.Equal(t, "openai", m.ProviderID)
	}
}
