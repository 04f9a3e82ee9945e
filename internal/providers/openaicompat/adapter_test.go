package openaicompat

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/smart-router/router/internal/profile"
)

func TestNew_DefaultsAuthHeaderAndPrefix(t *testing.T) {
	a := New(Config{ID: "openai", Name: "OpenAI", BaseURL: "https://api.openai.com/v1"})
	h := a.GetHeaders(profile.Credential{Kind: profile.KindAPIKey, APIKey: "sk-1"})
	assert.Equal(t, "Bearer sk-1", h.Get("Authorization"))
	assert.True(t, a.IsOpenAICompatible)
}

func TestNew_ResolveKey_OAuthUsesAccessToken(t *testing.T) {
	a := New(Config{ID: "x", BaseURL: "https://x"})
	h := a.GetHeaders(profile.Credential{Kind: profile.KindOAuth, AccessToken: "at"})
	assert.Equal(t, "Bearer at", h.Get("Authorization"))
}

func TestNew_ResolveKey_TokenKind(t *testing.T) {
	a := New(Config{ID: "x", BaseURL: "https://x"})
	h := a.GetHeaders(profile.Credential{Kind: profile.KindToken, BearerToken: "bt"})
	assert.Equal(t, "Bearer bt", h.Get("Authorization"))
}

func TestResolveBaseURL_APIKeyOverride(t *testing.T) {
	cred := profile.Credential{Kind: profile.KindAPIKey, BaseURL: "https://custom.example.com"}
	assert.Equal(t, "https://custom.example.com", ResolveBaseURL(cred, "https://default.example.com"))
}

func TestResolveBaseURL_OAuthResourceURLOverride(t *testing.T) {
	cred := profile.Credential{Kind: profile.KindOAuth, ResourceURL: "https://oauth.example.com"}
	assert.Equal(t, "https://oauth.example.com", ResolveBaseURL(cred, "https://default.example.com"))
}

func TestResolveBaseURL_FallsBackToDefault(t *testing.T) {
	cred := profile.Credential{Kind: profile.KindAPIKey}
	assert.Equal(t, "https://default.example.com", ResolveBaseURL(cred, "https://default.example.com"))
}

func TestBuiltins_OpenAI_HasRateLimit(t *testing.T) {
	a := OpenAI()
	assert.Equal(t, "openai", a.ID)
	if assert.NotNil(t, a.RateLimits) {
		assert.Equal(t, 500, a.RateLimits.RPM)
	}
}

func TestBuiltins_Groq_HasRateLimit(t *testing.T) {
	a := Groq()
	assert.Equal(t, "groq", a.ID)
	if assert.NotNil(t, a.RateLimits) {
		assert.Equal(t, 30, a.RateLimits.RPM)
	}
}

func TestBuiltins_OpenRouter_NoRateLimit(t *testing.T) {
	a := OpenRouter()
	assert.Equal(t, "openrouter", a.ID)
	assert.Nil(t, a.RateLimits)
}
