// Package gemini builds the Google Gemini and Antigravity adapters. Both
// speak the same non-OpenAI-compatible wire format; Antigravity is Gemini
// reached through a Google OAuth profile instead of an API key.
//
// Unlike a per-provider client, this adapter does not own SSE parsing —
// that responsibility moved to the shared internal/streaming translator so
// every non-compatible upstream's events are parsed by one piece of code,
// not N copies of it.
package gemini

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/smart-router/router/internal/profile"
	"github.com/smart-router/router/internal/providers"
)

type geminiPart struct {
	Text             string `json:"text,omitempty"`
	ThoughtSignature string `json:"thoughtSignature,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Project           string          `json:"project,omitempty"` // OAuth creds carrying a projectId (Antigravity)
	GenerationConfig  struct {
		Temperature     *float64 `json:"temperature,omitempty"`
		TopP            *float64 `json:"topP,omitempty"`
		MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
		StopSequences   []string `json:"stopSequences,omitempty"`
	} `json:"generationConfig"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate    `json:"candidates"`
	UsageMetadata *geminiUsageMetadata `json:"usageMetadata,omitempty"`
}

func convertMessages(req providers.ChatRequest) ([]geminiContent, *geminiContent) {
	var system *geminiContent
	contents := make([]geminiContent, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == "system" {
			system = &geminiContent{Parts: []geminiPart{{Text: m.Content}}}
			continue
		}
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		contents = append(contents, geminiContent{Role: role, Parts: []geminiPart{{Text: m.Content}}})
	}
	return contents, system
}

func formatRequest(req providers.ChatRequest) ([]byte, error) {
	contents, system := convertMessages(req)
	gr := geminiRequest{Contents: contents, SystemInstruction: system, Project: req.ProjectID}
	gr.GenerationConfig.Temperature = req.Temperature
	gr.GenerationConfig.TopP = req.TopP
	gr.GenerationConfig.MaxOutputTokens = req.MaxTokens
	gr.GenerationConfig.StopSequences = req.Stop
	return json.Marshal(gr)
}

func formatResponse(raw []byte, modelID string) (*providers.ChatResponse, error) {
	var gr geminiResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return nil, fmt.Errorf("gemini: decode response: %w", err)
	}
	resp := &providers.ChatResponse{Object: "chat.completion", Model: modelID}
	for i, c := range gr.Candidates {
		var text string
		for _, p := range c.Content.Parts {
			if p.ThoughtSignature == "" {
				text += p.Text
			}
		}
		finish := "stop"
		if c.FinishReason != "" && c.FinishReason != "STOP" {
			finish = "length"
		}
		resp.Choices = append(resp.Choices, providers.ChatChoice{
			Index:        i,
			Message:      providers.ChatMessage{Role: "assistant", Content: text},
			FinishReason: finish,
		})
	}
	if gr.UsageMetadata != nil {
		resp.Usage = &providers.ChatUsage{
			PromptTokens:     gr.UsageMetadata.PromptTokenCount,
			CompletionTokens: gr.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      gr.UsageMetadata.TotalTokenCount,
		}
	}
	return resp, nil
}

func buildURL(baseURL, modelID string, stream bool) string {
	method := "generateContent"
	if stream {
		method = "streamGenerateContent?alt=sse"
	}
	return fmt.Sprintf("%s/models/%s:%s", baseURL, modelID, method)
}

// Gemini is the direct Google AI Studio / Vertex API-key adapter.
func Gemini() *providers.Adapter {
	return &providers.Adapter{
		ID:                 "google",
		Name:               "Google Gemini",
		BaseURL:            "https://generativelanguage.googleapis.com/v1beta",
		SupportsStreaming:  true,
		IsOpenAICompatible: false,
		GetHeaders: func(cred profile.Credential) http.Header {
			h := http.Header{}
			h.Set("Content-Type", "application/json")
			h.Set("x-goog-api-key", cred.APIKey)
			return h
		},
		FormatRequest:  formatRequest,
		FormatResponse: formatResponse,
		BuildURL: func(baseURL, modelID string) string {
			return buildURL(baseURL, modelID, true)
		},
	}
}

// Antigravity is Gemini reached via a Google OAuth profile rather than an
// API key; it shares the wire format entirely with Gemini.
func Antigravity() *providers.Adapter {
	return &providers.Adapter{
		ID:                 "antigravity",
		Name:               "Antigravity (Gemini via Google OAuth)",
		BaseURL:            "https://generativelanguage.googleapis.com/v1beta",
		SupportsStreaming:  true,
		IsOpenAICompatible: false,
		GetHeaders: func(cred profile.Credential) http.Header {
			h := http.Header{}
			h.Set("Content-Type", "application/json")
			h.Set("Authorization", "Bearer "+cred.AccessToken)
			return h
		},
		FormatRequest:  formatRequest,
		FormatResponse: formatResponse,
		BuildURL: func(baseURL, modelID string) string {
			return buildURL(baseURL, modelID, true)
		},
		RefreshToken: refreshGoogleOAuth,
	}
}
