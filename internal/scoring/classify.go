package scoring

import (
	"regexp"
	"sort"
	"sync"

	"github.com/smart-router/router/types"
)

// DimensionScore is one dimension's contribution to a Result.
type DimensionScore struct {
	Dimension  Dimension `json:"dimension"`
	MatchCount int       `json:"matchCount"`
	Score      float64   `json:"score"`
}

// Result is the output of Classify: a pure function of (prompt, Config).
type Result struct {
	Tier       Tier             `json:"tier"`
	TotalScore float64          `json:"totalScore"`
	Dimensions []DimensionScore `json:"dimensions"`
	Confidence float64          `json:"confidence"`
}

// Classifier compiles a Config's keyword lists once and scores prompts
// against them. It holds no per-call state; Classify is safe for
// concurrent use once constructed.
type Classifier struct {
	cfg     *Config
	mu      sync.RWMutex
	pattern map[Dimension][]*regexp.Regexp
}

// New compiles the keyword patterns for cfg. Each keyword becomes a
// case-insensitive whole-word regex with regex metacharacters escaped.
func New(cfg *Config) *Classifier {
	c := &Classifier{cfg: cfg, pattern: make(map[Dimension][]*regexp.Regexp, len(cfg.Keywords))}
	for dim, keywords := range cfg.Keywords {
		res := make([]*regexp.Regexp, 0, len(keywords))
		for _, kw := range keywords {
			res = append(res, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(kw)+`\b`))
		}
		c.pattern[dim] = res
	}
	return c
}

// Classify scores prompt across every configured dimension and assigns a
// tier. It performs no I/O and is deterministic: equal inputs produce
// equal outputs.
func (c *Classifier) Classify(prompt string) Result {
	c.mu.RLock()
	defer c.mu.RUnlock()

	scores := make([]DimensionScore, 0, len(orderedDimensions))
	var total float64
	for _, dim := range orderedDimensions {
		patterns, ok := c.pattern[dim]
		if !ok {
			continue
		}
		matches := 0
		for _, re := range patterns {
			if re.MatchString(prompt) {
				matches++
			}
		}
		weight := c.cfg.Weights[dim]
		score := float64(matches) * weight
		total += score
		scores = append(scores, DimensionScore{Dimension: dim, MatchCount: matches, Score: score})
	}

	// Stable sort descending by score; ties preserve insertion (config) order
	// because sort.SliceStable never reorders equal elements.
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})

	return Result{
		Tier:       tierFor(c.cfg.Tiers, total),
		TotalScore: total,
		Dimensions: scores,
		Confidence: confidence(scores, total),
	}
}

func tierFor(tiers []TierBoundary, total float64) Tier {
	for i, t := range tiers {
		isLast := i == len(tiers)-1
		if total >= t.Min && (isLast || total < t.Max) {
			return t.Tier
		}
	}
	if len(tiers) > 0 {
		return tiers[0].Tier
	}
	return TierSimple
}

func confidence(sorted []DimensionScore, total float64) float64 {
	if total == 0 {
		return 0.5
	}
	var top float64
	for i := 0; i < len(sorted) && i < 3; i++ {
		top += sorted[i].Score
	}
	return top / total
}

// LastUserMessage extracts the text the scoring engine should classify:
// the content of the final message with role "user" in a chat-completion
// request, or the empty string if there is none.
func LastUserMessage(messages []types.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == types.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
