package dispatcher

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/smart-router/router/api"
	"github.com/smart-router/router/internal/modelregistry"
)

// tokenEncoder lazily initializes a single cl100k_base encoding shared by
// every estimate call. Model-specific encodings (o200k_base for the gpt-4o
// family) would change the exact count but not the order of magnitude a
// pre-flight cost estimate needs, so one shared encoder covers every
// provider the router talks to.
var (
	tokenEncOnce sync.Once
	tokenEnc     *tiktoken.Tiktoken
	tokenEncErr  error
)

func getTokenEncoder() (*tiktoken.Tiktoken, error) {
	tokenEncOnce.Do(func() {
		tokenEnc, tokenEncErr = tiktoken.GetEncoding("cl100k_base")
	})
	return tokenEnc, tokenEncErr
}

// estimatePromptTokens counts the tokens a request's messages will cost
// upstream before the call is made, using the same per-message framing
// overhead OpenAI's own token-counting guidance documents.
func estimatePromptTokens(messages []api.Message) int {
	enc, err := getTokenEncoder()
	if err != nil {
		return 0
	}
	total := 3
	for _, m := range messages {
		total += 4
		total += len(enc.Encode(m.Content, nil, nil))
		total += len(enc.Encode(m.Role, nil, nil))
	}
	return total
}

// perTokenUSD is the denominator modelregistry.Pricing is expressed in:
// USD per 1M tokens.
const perTokenUSD = 1_000_000.0

// estimateCostUSD converts a token count into a dollar estimate using the
// model's published pricing (modelregistry.Pricing is USD per 1M tokens).
func estimateCostUSD(model *modelregistry.Model, promptTokens int) *float64 {
	if model == nil || model.Pricing == nil {
		return nil
	}
	cost := float64(promptTokens) * model.Pricing.Input / perTokenUSD
	return &cost
}

// actualCostUSD prices a completed exchange using both sides of the
// model's pricing once real usage counts are known.
func actualCostUSD(model *modelregistry.Model, promptTokens, completionTokens int) *float64 {
	if model == nil || model.Pricing == nil {
		return nil
	}
	cost := (float64(promptTokens)*model.Pricing.Input + float64(completionTokens)*model.Pricing.Output) / perTokenUSD
	return &cost
}
