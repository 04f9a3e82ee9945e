package gemini

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smart-router/router/internal/profile"
	"github.com/smart-router/router/internal/providers"
)

func TestGemini_GetHeaders_UsesAPIKeyHeader(t *testing.T) {
	a := Gemini()
	h := a.GetHeaders(profile.Credential{Kind: profile.KindAPIKey, APIKey: "sk-abc"})
	assert.Equal(t, "sk-abc", h.Get("x-goog-api-key"))
	assert.Empty(t, h.Get("Authorization"))
}

func TestAntigravity_GetHeaders_UsesBearerToken(t *testing.T) {
	a := Antigravity()
	h := a.GetHeaders(profile.Credential{Kind: profile.KindOAuth, AccessToken: "tok-123"})
	assert.Equal(t, "Bearer tok-123", h.Get("Authorization"))
}

func TestGemini_BuildURL_StreamingAlwaysOn(t *testing.T) {
	a := Gemini()
	url := a.BuildURL("https://example.com/v1beta", "gemini-2.0-flash")
	assert.Equal(t, "https://example.com/v1beta/models/gemini-2.0-flash:streamGenerateContent?alt=sse", url)
}

func TestGemini_FormatRequest_SplitsSystemInstruction(t *testing.T) {
	a := Gemini()
	body, err := a.FormatRequest(providers.ChatRequest{
		Messages: []providers.ChatMessage{
			{Role: "system", Content: "be nice"},
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
		},
	})
	require.NoError(t, err)
	s := string(body)
	assert.Contains(t, s, `"systemInstruction"`)
	assert.Contains(t, s, `"role":"model"`)
	assert.NotContains(t, s, `"role":"assistant"`)
}

func TestGemini_FormatResponse_DropsThoughtSignatureText(t *testing.T) {
	a := Gemini()
	raw := []byte(`{"candidates":[{"content":{"parts":[{"text":"hidden","thoughtSignature":"x"},{"text":"shown"}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":1,"candidatesTokenCount":2,"totalTokenCount":3}}`)
	resp, err := a.FormatResponse(raw, "gemini-2.0-flash")
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "shown", resp.Choices[0].Message.Content)
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 3, resp.Usage.TotalTokens)
}

func TestRefreshGoogleOAuth_RotatesAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"new-tok","expires_in":3600}`))
	}))
	defer srv.Close()
	orig := googleTokenEndpoint
	googleTokenEndpoint = srv.URL
	defer func() { googleTokenEndpoint = orig }()

	next, err := refreshGoogleOAuth(context.Background(), profile.Credential{Kind: profile.KindOAuth, RefreshToken: "old-refresh"})
	require.NoError(t, err)
	assert.Equal(t, "new-tok", next.AccessToken)
	assert.Equal(t, "old-refresh", next.RefreshToken, "refresh token unchanged when upstream does not rotate it")
	assert.Greater(t, next.ExpiresAt, int64(0))
}

func TestRefreshGoogleOAuth_PropagatesUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()
	orig := googleTokenEndpoint
	googleTokenEndpoint = srv.URL
	defer func() { googleTokenEndpoint = orig }()

	_, err := refreshGoogleOAuth(context.Background(), profile.Credential{Kind: profile.KindOAuth, RefreshToken: "bad"})
	require.Error(t, err)
}
