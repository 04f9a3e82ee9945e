package openaicompat

import "github.com/smart-router/router/internal/providers"

// OpenAI returns the adapter for api.openai.com.
func OpenAI() *providers.Adapter {
	return New(Config{
		ID:      "openai",
		Name:    "OpenAI",
		BaseURL: "https://api.openai.com/v1",
		RateLimits: &providers.RateLimits{RPM: 500},
	})
}

// Groq returns the adapter for Groq's OpenAI-compatible endpoint.
func Groq() *providers.Adapter {
	return New(Config{
		ID:         "groq",
		Name:       "Groq",
		BaseURL:    "https://api.groq.com/openai/v1",
		RateLimits: &providers.RateLimits{RPM: 30},
	})
}

// OpenRouter returns the adapter for openrouter.ai.
func OpenRouter() *providers.Adapter {
	return New(Config{
		ID:      "openrouter",
		Name:    "OpenRouter",
		BaseURL: "https://openrouter.ai/api/v1",
	})
}

// DeepSeek returns the adapter for api.deepseek.com.
func DeepSeek() *providers.Adapter {
	return New(Config{
		ID:      "deepseek",
		Name:    "DeepSeek",
		BaseURL: "https://api.deepseek.com/v1",
	})
}

// DashScope returns the adapter for Alibaba's Qwen OpenAI-compatible mode.
func DashScope() *providers.Adapter {
	return New(Config{
		ID:      "dashscope",
		Name:    "DashScope (Qwen)",
		BaseURL: "https://dashscope.aliyuncs.com/compatible-mode/v1",
	})
}

// XAI returns the adapter for api.x.ai (Grok).
func XAI() *providers.Adapter {
	return New(Config{
		ID:      "xai",
		Name:    "xAI",
		BaseURL: "https://api.x.ai/v1",
	})
}
