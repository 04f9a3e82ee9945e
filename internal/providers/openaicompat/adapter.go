// Package openaicompat builds Adapter instances for every upstream that
// speaks the OpenAI chat-completions wire format natively: openai, groq,
// openrouter, deepseek, dashscope (qwen), and xai (grok). This mirrors
// llm/providers/openaicompat.Provider, which shares one request
// builder and one SSE pass-through across all of these upstreams.
package openaicompat

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/smart-router/router/internal/profile"
	"github.com/smart-router/router/internal/providers"
)

// Config parameterizes one OpenAI-compatible upstream.
type Config struct {
	ID          string
	Name        string
	BaseURL     string
	AuthHeader  string // defaults to "Authorization"
	AuthPrefix  string // defaults to "Bearer "
	ExtraHeader func(cred profile.Credential) http.Header
	RateLimits  *providers.RateLimits
}

// New builds a *providers.Adapter for one OpenAI-compatible upstream.
func New(cfg Config) *providers.Adapter {
	authHeader := cfg.AuthHeader
	if authHeader == "" {
		authHeader = "Authorization"
	}
	authPrefix := cfg.AuthPrefix
	if authPrefix == "" {
		authPrefix = "Bearer "
	}

	return &providers.Adapter{
		ID:                 cfg.ID,
		Name:                cfg.Name,
		BaseURL:             cfg.BaseURL,
		SupportsStreaming:   true,
		IsOpenAICompatible:  true,
		RateLimits:          cfg.RateLimits,
		GetHeaders: func(cred profile.Credential) http.Header {
			h := http.Header{}
			key := resolveKey(cred)
			h.Set(authHeader, authPrefix+key)
			h.Set("Content-Type", "application/json")
			if cfg.ExtraHeader != nil {
				for k, vs := range cfg.ExtraHeader(cred) {
					for _, v := range vs {
						h.Add(k, v)
					}
				}
			}
			return h
		},
		FormatRequest: func(req providers.ChatRequest) ([]byte, error) {
			return json.Marshal(req)
		},
		FormatResponse: func(raw []byte, modelID string) (*providers.ChatResponse, error) {
			var resp providers.ChatResponse
			if err := json.Unmarshal(raw, &resp); err != nil {
				return nil, fmt.Errorf("%s: decode response: %w", cfg.ID, err)
			}
			return &resp, nil
		},
		BuildURL: func(baseURL, modelID string) string {
			return providers.DefaultBuildURL(baseURL, modelID)
		},
	}
}

func resolveKey(cred profile.Credential) string {
	switch cred.Kind {
	case profile.KindAPIKey:
		return cred.APIKey
	case profile.KindOAuth:
		return cred.AccessToken
	case profile.KindToken:
		return cred.BearerToken
	default:
		return ""
	}
}

// ResolveBaseURL honors a per-credential base-URL override:
// metadata.baseUrl for API keys, resourceUrl for OAuth.
func ResolveBaseURL(cred profile.Credential, fallback string) string {
	if cred.Kind == profile.KindAPIKey && cred.BaseURL != "" {
		return cred.BaseURL
	}
	if cred.Kind == profile.KindOAuth && cred.ResourceURL != "" {
		return cred.ResourceURL
	}
	return fallback
}
