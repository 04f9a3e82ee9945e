package dispatcher

import (
	"github.com/smart-router/router/internal/providers"
	"github.com/smart-router/router/internal/providers/anthropic"
	"github.com/smart-router/router/internal/providers/codex"
	"github.com/smart-router/router/internal/providers/gemini"
	"github.com/smart-router/router/internal/providers/openaicompat"
)

// openAICompatUpstreams lists every adapter built from the shared
// openaicompat request builder. Each entry becomes one *providers.Adapter.
var openAICompatUpstreams = []openaicompat.Config{
	{ID: "openai", Name: "OpenAI", BaseURL: "https://api.openai.com/v1"},
	{ID: "deepseek", Name: "DeepSeek", BaseURL: "https://api.deepseek.com/v1"},
	{ID: "xai", Name: "xAI", BaseURL: "https://api.x.ai/v1"},
	{ID: "groq", Name: "Groq", BaseURL: "https://api.groq.com/openai/v1"},
	{ID: "dashscope", Name: "DashScope (Qwen)", BaseURL: "https://dashscope.aliyuncs.com/compatible-mode/v1"},
	{ID: "openrouter", Name: "OpenRouter", BaseURL: "https://openrouter.ai/api/v1"},
}

// NewDefaultRegistry builds the router's static, process-constant adapter
// set: the six OpenAI-compatible upstreams plus the four adapters with
// their own wire formats (gemini, antigravity, anthropic, codex).
func NewDefaultRegistry() *providers.Registry {
	adapters := make([]*providers.Adapter, 0, len(openAICompatUpstreams)+4)
	for _, cfg := range openAICompatUpstreams {
		adapters = append(adapters, openaicompat.New(cfg))
	}
	adapters = append(adapters,
		gemini.Gemini(),
		gemini.Antigravity(),
		anthropic.Anthropic(),
		codex.Codex(),
	)
	return providers.NewRegistry(adapters...)
}

// alwaysStreamsFromUpstream reports whether adapterID always speaks SSE to
// the upstream regardless of the client's requested Stream flag. Gemini and
// Antigravity's BuildURL bakes in the streaming endpoint
// (streamGenerateContent?alt=sse) unconditionally; every other
// non-OpenAI-compatible adapter honors ChatRequest.Stream in FormatRequest.
func alwaysStreamsFromUpstream(adapterID string) bool {
	return adapterID == "google" || adapterID == "antigravity"
}
