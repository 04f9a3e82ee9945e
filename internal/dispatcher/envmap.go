package dispatcher

// DefaultEnvMap is the well-known provider -> API-key environment variable
// mapping. antigravity and codex are OAuth-only and
// have no entry: a stored profile is the only way to make them available.
func DefaultEnvMap() map[string]string {
	return map[string]string{
		"openai":     "OPENAI_API_KEY",
		"google":     "GEMINI_API_KEY",
		"dashscope":  "DASHSCOPE_API_KEY",
		"anthropic":  "ANTHROPIC_API_KEY",
		"deepseek":   "DEEPSEEK_API_KEY",
		"xai":        "XAI_API_KEY",
		"groq":       "GROQ_API_KEY",
		"openrouter": "OPENROUTER_API_KEY",
	}
}
