// Package selector combines scoring output, the availability set, and
// the tier→model config into an ordered routing decision.
package selector

import (
	"github.com/smart-router/router/internal/scoring"
)

// Candidate is one {provider, model} pair the dispatcher will try.
type Candidate struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// Decision is the per-request routing outcome.
type Decision struct {
	Tier          scoring.Tier `json:"tier"`
	Score         float64      `json:"score"`
	Confidence    float64      `json:"confidence"`
	Reason        string       `json:"reason"`
	Primary       Candidate    `json:"primary"`
	FallbackChain []Candidate  `json:"fallbackChain"`
}

// NoneProvider is the sentinel used when no candidate can be found.
const NoneProvider = "none"

// Config is the ordered, per-tier model list plus the global provider
// fallback order.
type Config struct {
	TierOrder  []scoring.Tier         // fixed walk order for step 2: SIMPLE, MEDIUM, COMPLEX, REASONING
	ModelsByTier map[scoring.Tier][]Candidate
	GlobalFallbackOrder []string
}

// Select walks the tier candidate list, then other tiers, then the global
// fallback order, filtering to available providers at each step.
func Select(result scoring.Result, availability map[string]bool, cfg Config) Decision {
	d := Decision{Tier: result.Tier, Score: result.TotalScore, Confidence: result.Confidence, Reason: "AUTO"}

	var chain []Candidate

	// Step 1: configured list for the scored tier.
	chain = appendAvailable(chain, cfg.ModelsByTier[result.Tier], availability)

	// Step 2: other tiers in fixed order, skipping the target tier.
	if len(chain) == 0 {
		for _, tier := range cfg.TierOrder {
			if tier == result.Tier {
				continue
			}
			chain = appendAvailable(chain, cfg.ModelsByTier[tier], availability)
			if len(chain) > 0 {
				break
			}
		}
	}

	// Step 3: global fallback order fill, for providers not yet represented.
	represented := make(map[string]bool, len(chain))
	for _, c := range chain {
		represented[c.Provider] = true
	}
	for _, provider := range cfg.GlobalFallbackOrder {
		if represented[provider] || !availability[provider] {
			continue
		}
		if model, ok := anyModelForProvider(cfg.ModelsByTier, provider); ok {
			chain = append(chain, Candidate{Provider: provider, Model: model})
			represented[provider] = true
		}
	}

	// Step 4: nothing found at all.
	if len(chain) == 0 {
		d.Primary = Candidate{Provider: NoneProvider}
		d.FallbackChain = nil
		return d
	}

	d.Primary = chain[0]
	d.FallbackChain = chain[1:]
	return d
}

func appendAvailable(chain []Candidate, candidates []Candidate, availability map[string]bool) []Candidate {
	for _, c := range candidates {
		if availability[c.Provider] {
			chain = append(chain, c)
		}
	}
	return chain
}

func anyModelForProvider(byTier map[scoring.Tier][]Candidate, provider string) (string, bool) {
	for _, candidates := range byTier {
		for _, c := range candidates {
			if c.Provider == provider {
				return c.Model, true
			}
		}
	}
	return "", false
}
