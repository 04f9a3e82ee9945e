package modelregistry

// DefaultModels is the router's built-in model catalogue. It intentionally
// stays small and representative rather than exhaustive. The server builds
// its registry from this list and DefaultAliases as they are; no config
// setting adds to it.
func DefaultModels() []Model {
	return []Model{
		{ID: "gpt-4.1", ProviderID: "openai", PublicSlug: "openai/gpt-4.1", Name: "GPT-4.1", ContextWindow: 1047576, Capabilities: []string{"tools", "vision"}, Pricing: &Pricing{Input: 2, Output: 8}},
		{ID: "gpt-4.1-mini", ProviderID: "openai", PublicSlug: "openai/gpt-4.1-mini", Name: "GPT-4.1 Mini", ContextWindow: 1047576, Capabilities: []string{"tools", "vision"}, Pricing: &Pricing{Input: 0.4, Output: 1.6}},
		{ID: "o4-mini", ProviderID: "openai", PublicSlug: "openai/o4-mini", Name: "o4-mini", ContextWindow: 200000, Capabilities: []string{"reasoning", "tools"}, Pricing: &Pricing{Input: 1.1, Output: 4.4}},

		{ID: "claude-sonnet-4.5", ProviderID: "anthropic", PublicSlug: "anthropic/claude-sonnet-4.5", Name: "Claude Sonnet 4.5", ContextWindow: 200000, Capabilities: []string{"tools", "vision", "reasoning"}, Pricing: &Pricing{Input: 3, Output: 15}},
		{ID: "claude-haiku-4.5", ProviderID: "anthropic", PublicSlug: "anthropic/claude-haiku-4.5", Name: "Claude Haiku 4.5", ContextWindow: 200000, Capabilities: []string{"tools", "vision"}, Pricing: &Pricing{Input: 1, Output: 5}},

		{ID: "gemini-2.0-flash", ProviderID: "google", PublicSlug: "google/gemini-2.0-flash", Name: "Gemini 2.0 Flash", ContextWindow: 1048576, Capabilities: []string{"tools", "vision"}, Free: true},
		{ID: "gemini-2.5-pro", ProviderID: "google", PublicSlug: "google/gemini-2.5-pro", Name: "Gemini 2.5 Pro", ContextWindow: 2097152, Capabilities: []string{"tools", "vision", "reasoning"}, Pricing: &Pricing{Input: 1.25, Output: 10}},

		{ID: "gemini-2.5-pro-antigravity", ProviderID: "antigravity", PublicSlug: "antigravity/gemini-2.5-pro", Name: "Gemini 2.5 Pro (Antigravity)", ContextWindow: 2097152, Capabilities: []string{"tools", "vision", "reasoning"}, Free: true},

		{ID: "deepseek-chat", ProviderID: "deepseek", PublicSlug: "deepseek/deepseek-chat", Name: "DeepSeek Chat", ContextWindow: 65536, Capabilities: []string{"tools"}, Pricing: &Pricing{Input: 0.27, Output: 1.1}},
		{ID: "deepseek-reasoner", ProviderID: "deepseek", PublicSlug: "deepseek/deepseek-reasoner", Name: "DeepSeek Reasoner", ContextWindow: 65536, Capabilities: []string{"reasoning"}, Pricing: &Pricing{Input: 0.55, Output: 2.19}},

		{ID: "grok-4", ProviderID: "xai", PublicSlug: "xai/grok-4", Name: "Grok 4", ContextWindow: 256000, Capabilities: []string{"tools", "reasoning"}, Pricing: &Pricing{Input: 3, Output: 15}},

		{ID: "llama-3.3-70b", ProviderID: "groq", PublicSlug: "groq/llama-3.3-70b", Name: "Llama 3.3 70B (Groq)", ContextWindow: 128000, Capabilities: []string{"tools"}, Pricing: &Pricing{Input: 0.59, Output: 0.79}},

		{ID: "qwen-max", ProviderID: "dashscope", PublicSlug: "dashscope/qwen-max", Name: "Qwen Max", ContextWindow: 32768, Capabilities: []string{"tools"}, Pricing: &Pricing{Input: 1.6, Output: 6.4}},

		{ID: "gpt-4o-via-openrouter", ProviderID: "openrouter", PublicSlug: "openrouter/openai/gpt-4o", Name: "GPT-4o (OpenRouter)", ContextWindow: 128000, Capabilities: []string{"tools", "vision"}, Pricing: &Pricing{Input: 2.5, Output: 10}},

		{ID: "codex-mini", ProviderID: "codex", PublicSlug: "codex/codex-mini", Name: "Codex Mini (Responses API)", ContextWindow: 200000, Capabilities: []string{"tools", "reasoning"}, Pricing: &Pricing{Input: 1.5, Output: 6}},
	}
}

// DefaultAliases maps informal names customers type to an internal id.
func DefaultAliases() map[string]string {
	return map[string]string{
		"gpt-4":       "gpt-4.1",
		"gpt-4o-mini": "gpt-4.1-mini",
		"claude":      "claude-sonnet-4.5",
		"gemini":      "gemini-2.0-flash",
		"gemini-pro":  "gemini-2.5-pro",
		"grok":        "grok-4",
		"llama":       "llama-3.3-70b",
		"qwen":        "qwen-max",
	}
}
