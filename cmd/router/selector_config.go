package main

import (
	"github.com/smart-router/router/config"
	"github.com/smart-router/router/internal/scoring"
	"github.com/smart-router/router/internal/selector"
)

// tierWalkOrder is the fixed tier escalation order the selector walks:
// SIMPLE, MEDIUM, COMPLEX, REASONING.
var tierWalkOrder = []scoring.Tier{scoring.TierSimple, scoring.TierMedium, scoring.TierComplex, scoring.TierReasoning}

// toSelectorConfig converts the hot-reloadable, YAML-facing SelectorConfig
// into the form internal/selector.Select consumes. Tier names not among
// the four known tiers are skipped rather than rejected, so a config typo
// degrades gracefully to "fewer candidates" instead of crashing routing.
func toSelectorConfig(cfg config.SelectorConfig) selector.Config {
	byTier := make(map[scoring.Tier][]selector.Candidate, len(cfg.TierModels))
	for tierName, candidates := range cfg.TierModels {
		tier := scoring.Tier(tierName)
		out := make([]selector.Candidate, 0, len(candidates))
		for _, c := range candidates {
			out = append(out, selector.Candidate{Provider: c.Provider, Model: c.Model})
		}
		byTier[tier] = out
	}
	return selector.Config{
		TierOrder:           tierWalkOrder,
		ModelsByTier:        byTier,
		GlobalFallbackOrder: cfg.GlobalFallbackOrder,
	}
}
