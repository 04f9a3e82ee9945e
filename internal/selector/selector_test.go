package selector

import (
	"testing"

	"github.com/smart-router/router/internal/scoring"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func testConfig() Config {
	return Config{
		TierOrder: []scoring.Tier{scoring.TierSimple, scoring.TierMedium, scoring.TierComplex, scoring.TierReasoning},
		ModelsByTier: map[scoring.Tier][]Candidate{
			scoring.TierSimple:    {{Provider: "google", Model: "gemini-2.0-flash"}, {Provider: "openai", Model: "gpt-4.1-mini"}},
			scoring.TierMedium:    {{Provider: "openai", Model: "gpt-4.1-mini"}, {Provider: "deepseek", Model: "deepseek-chat"}},
			scoring.TierComplex:   {{Provider: "anthropic", Model: "claude-sonnet-4.5"}, {Provider: "openai", Model: "gpt-4.1"}},
			scoring.TierReasoning: {{Provider: "openai", Model: "o4-mini"}, {Provider: "anthropic", Model: "claude-sonnet-4.5"}},
		},
		GlobalFallbackOrder: []string{"openai", "anthropic", "google", "deepseek"},
	}
}

func TestSelect_SimpleTier_SingleAvailable(t *testing.T) {
	result := scoring.Result{Tier: scoring.TierSimple, TotalScore: 0}
	d := Select(result, map[string]bool{"google": true}, testConfig())
	assert.Equal(t, Candidate{Provider: "google", Model: "gemini-2.0-flash"}, d.Primary)
	assert.Empty(t, d.FallbackChain)
}

func TestSelect_FallsBackToOtherTiers(t *testing.T) {
	result := scoring.Result{Tier: scoring.TierReasoning, TotalScore: 20}
	// Availability only has deepseek, which only appears in MEDIUM.
	d := Select(result, map[string]bool{"deepseek": true}, testConfig())
	assert.Equal(t, "deepseek", d.Primary.Provider)
}

func TestSelect_GlobalFallbackFill(t *testing.T) {
	result := scoring.Result{Tier: scoring.TierSimple, TotalScore: 0}
	// google fills the SIMPLE list; anthropic is absent from it and is appended
	// by the global fallback order, with a model drawn from another tier.
	d := Select(result, map[string]bool{"google": true, "anthropic": true}, testConfig())
	assert.Equal(t, "google", d.Primary.Provider)
	assert.Equal(t, []Candidate{{Provider: "anthropic", Model: "claude-sonnet-4.5"}}, d.FallbackChain)
}

func TestSelect_NoneWhenNothingAvailable(t *testing.T) {
	result := scoring.Result{Tier: scoring.TierSimple}
	d := Select(result, map[string]bool{}, testConfig())
	assert.Equal(t, NoneProvider, d.Primary.Provider)
	assert.Empty(t, d.FallbackChain)
}

// Property: primary.provider is always either in A or "none".
func TestSelectProperty_PrimaryInAvailabilityOrNone(t *testing.T) {
	cfg := testConfig()
	tiers := []scoring.Tier{scoring.TierSimple, scoring.TierMedium, scoring.TierComplex, scoring.TierReasoning}
	providers := []string{"openai", "anthropic", "google", "deepseek"}

	rapid.Check(t, func(rt *rapid.T) {
		tier := tiers[rapid.IntRange(0, len(tiers)-1).Draw(rt, "tier")]
		avail := map[string]bool{}
		for _, p := range providers {
			if rapid.Bool().Draw(rt, "avail_"+p) {
				avail[p] = true
			}
		}
		d := Select(scoring.Result{Tier: tier}, avail, cfg)
		if d.Primary.Provider != NoneProvider && !avail[d.Primary.Provider] {
			rt.Fatalf("primary provider %q not in availability set and not none", d.Primary.Provider)
		}
	})
}
