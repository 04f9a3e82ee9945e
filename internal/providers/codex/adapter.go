// Package codex builds the adapter for OpenAI's Responses API (used by
// Codex-style CLI/OAuth credentials), trimmed to what the router's
// dispatcher needs; the SSE dialect itself (response.output_text.delta /
// response.completed) is handled by the shared streaming translator, not
// here.
package codex

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/smart-router/router/internal/profile"
	"github.com/smart-router/router/internal/providers"
)

type responsesInput struct {
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type responsesRequest struct {
	Model              string           `json:"model"`
	Input              []responsesInput `json:"input"`
	Stream             bool             `json:"stream"`
	PreviousResponseID string           `json:"previous_response_id,omitempty"`
}

type responsesOutputContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type responsesOutput struct {
	Type    string                    `json:"type"`
	Role    string                    `json:"role"`
	Content []responsesOutputContent  `json:"content"`
}

type responsesUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

type responsesResponse struct {
	ID     string             `json:"id"`
	Output []responsesOutput  `json:"output"`
	Usage  *responsesUsage    `json:"usage,omitempty"`
}

func toInput(messages []providers.ChatMessage) []responsesInput {
	out := make([]responsesInput, 0, len(messages))
	for _, m := range messages {
		ri := responsesInput{Role: m.Role}
		ri.Content = append(ri.Content, struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{Type: "input_text", Text: m.Content})
		out = append(out, ri)
	}
	return out
}

// Codex is the adapter for api.openai.com/v1/responses.
func Codex() *providers.Adapter {
	return &providers.Adapter{
		ID:                 "codex",
		Name:               "OpenAI Responses API (Codex)",
		BaseURL:            "https://api.openai.com/v1",
		SupportsStreaming:  true,
		IsOpenAICompatible: false,
		GetHeaders: func(cred profile.Credential) http.Header {
			h := http.Header{}
			h.Set("Content-Type", "application/json")
			token := cred.AccessToken
			if cred.Kind == profile.KindAPIKey {
				token = cred.APIKey
			}
			h.Set("Authorization", "Bearer "+token)
			h.Set("OpenAI-Beta", "responses=experimental")
			return h
		},
		FormatRequest: func(req providers.ChatRequest) ([]byte, error) {
			rr := responsesRequest{
				Model:  req.Model,
				Input:  toInput(req.Messages),
				Stream: req.Stream,
			}
			return json.Marshal(rr)
		},
		FormatResponse: func(raw []byte, modelID string) (*providers.ChatResponse, error) {
			var rr responsesResponse
			if err := json.Unmarshal(raw, &rr); err != nil {
				return nil, fmt.Errorf("codex: decode response: %w", err)
			}
			resp := &providers.ChatResponse{ID: rr.ID, Object: "chat.completion", Model: modelID}
			var text string
			for _, out := range rr.Output {
				for _, c := range out.Content {
					text += c.Text
				}
			}
			resp.Choices = []providers.ChatChoice{{
				Index:        0,
				Message:      providers.ChatMessage{Role: "assistant", Content: text},
				FinishReason: "stop",
			}}
			if rr.Usage != nil {
				resp.Usage = &providers.ChatUsage{
					PromptTokens:     rr.Usage.InputTokens,
					CompletionTokens: rr.Usage.OutputTokens,
					TotalTokens:      rr.Usage.TotalTokens,
				}
			}
			return resp, nil
		},
		BuildURL: func(baseURL, _ string) string {
			return baseURL + "/responses"
		},
	}
}
