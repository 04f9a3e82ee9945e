package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestClassify_Deterministic(t *testing.T) {
	c := New(DefaultConfig())
	a := c.Classify("please fix this bug in my function, it keeps crashing")
	b := c.Classify("please fix this bug in my function, it keeps crashing")
	assert.Equal(t, a, b)
}

func TestClassify_SimpleGreeting(t *testing.T) {
	c := New(DefaultConfig())
	r := c.Classify("hi")
	assert.Equal(t, TierSimple, r.Tier)
	assert.Equal(t, 0.0, r.TotalScore)
}

func TestClassify_TierBoundaries(t *testing.T) {
	cfg := &Config{
		Weights: map[Dimension]float64{DimCodeGeneration: 3},
		Keywords: map[Dimension][]string{DimCodeGeneration: {"code"}},
		Tiers:    DefaultConfig().Tiers,
	}
	c := New(cfg)

	r := c.Classify("code")
	require.Equal(t, 3.0, r.TotalScore)
	assert.Equal(t, TierMedium, r.Tier, "exactly 3 must land in MEDIUM (half-open [3,8))")
}

func TestClassify_WholeWordOnly(t *testing.T) {
	c := New(&Config{
		Weights:  map[Dimension]float64{DimCodeGeneration: 1},
		Keywords: map[Dimension][]string{DimCodeGeneration: {"code"}},
		Tiers:    DefaultConfig().Tiers,
	})
	r := c.Classify("encoded message")
	assert.Equal(t, 0.0, r.TotalScore, "substring match inside 'encoded' must not count")
}

func TestClassify_ConfidenceZeroTotal(t *testing.T) {
	c := New(DefaultConfig())
	r := c.Classify("")
	assert.Equal(t, 0.5, r.Confidence)
}

// Property: Classify is a pure function of (prompt, config) — rapid
// generates arbitrary prompts and checks the function is stable across
// repeated calls and that total score is always non-negative.
func TestClassifyProperty_PureAndNonNegative(t *testing.T) {
	c := New(DefaultConfig())
	rapid.Check(t, func(rt *rapid.T) {
		prompt := rapid.StringOfN(rapid.RuneFrom([]rune("abcdefg hijklmn CODE bug fix solve ")), 0, 200, -1).Draw(rt, "prompt")
		r1 := c.Classify(prompt)
		r2 := c.Classify(prompt)
		if r1.TotalScore != r2.TotalScore || r1.Tier != r2.Tier {
			rt.Fatalf("classify is not deterministic for prompt %q", prompt)
		}
		if r1.TotalScore < 0 {
			rt.Fatalf("total score must never be negative, got %f", r1.TotalScore)
		}
	})
}
