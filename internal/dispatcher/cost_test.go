package dispatcher

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/smart-router/router/internal/modelregistry"
)

func TestEstimateCostUSD_ConvertsPerMillionPricing(t *testing.T) {
	model := &modelregistry.Model{Pricing: &modelregistry.Pricing{Input: 2.0, Output: 6.0}}
	got := estimateCostUSD(model, 1_000_000)
	if assert.NotNil(t, got) {
		assert.InDelta(t, 2.0, *got, 1e-9)
	}
}

func TestActualCostUSD_CombinesBothSides(t *testing.T) {
	model := &modelregistry.Model{Pricing: &modelregistry.Pricing{Input: 1.0, Output: 2.0}}
	got := actualCostUSD(model, 500_000, 250_000)
	if assert.NotNil(t, got) {
		assert.InDelta(t, 0.5+0.5, *got, 1e-9)
	}
}

func TestCostHelpers_NilWithoutPricing(t *testing.T) {
	model := &modelregistry.Model{}
	assert.Nil(t, estimateCostUSD(model, 100))
	assert.Nil(t, actualCostUSD(model, 100, 50))
	assert.Nil(t, estimateCostUSD(nil, 100))
}
