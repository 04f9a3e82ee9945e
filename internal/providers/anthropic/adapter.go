// Package anthropic builds the adapter for Anthropic's Messages API,
// hand-rolling the request/response structs against the public API shape
// rather than importing a client SDK: the adapter needs raw control over
// headers (per-profile credential injection, beta flags) and over the
// response body (byte-level SSE pass-through into internal/streaming)
// that a typed client wraps away. It uses the same capability-set pattern
// the other adapters in this package use. Its SSE dialect
// (content_block_delta/message_delta/message_stop) is parsed by the shared
// internal/streaming translator, not here.
package anthropic

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/smart-router/router/internal/profile"
	"github.com/smart-router/router/internal/providers"
)

const apiVersion = "2023-06-01"

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
	TopP        *float64           `json:"top_p,omitempty"`
	StopSeqs    []string           `json:"stop_sequences,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicResponse struct {
	ID         string                  `json:"id"`
	Content    []anthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
	Usage      anthropicUsage          `json:"usage"`
}

// defaultMaxTokens is Anthropic's required field; the OpenAI wire contract
// treats max_tokens as optional, so this is the fallback when the incoming
// request omits it.
const defaultMaxTokens = 4096

func convertMessages(req providers.ChatRequest) ([]anthropicMessage, string) {
	var system string
	messages := make([]anthropicMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == "system" {
			system = m.Content
			continue
		}
		messages = append(messages, anthropicMessage{
			Role:    m.Role,
			Content: []anthropicContentBlock{{Type: "text", Text: m.Content}},
		})
	}
	return messages, system
}

func formatRequest(req providers.ChatRequest) ([]byte, error) {
	messages, system := convertMessages(req)
	maxTokens := defaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	ar := anthropicRequest{
		Model:       req.Model,
		System:      system,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		StopSeqs:    req.Stop,
		Stream:      req.Stream,
	}
	return json.Marshal(ar)
}

func formatResponse(raw []byte, modelID string) (*providers.ChatResponse, error) {
	var ar anthropicResponse
	if err := json.Unmarshal(raw, &ar); err != nil {
		return nil, fmt.Errorf("anthropic: decode response: %w", err)
	}
	var text string
	for _, b := range ar.Content {
		if b.Type == "text" {
			text += b.Text
		}
	}
	finish := "stop"
	if ar.StopReason == "max_tokens" {
		finish = "length"
	}
	return &providers.ChatResponse{
		ID:     ar.ID,
		Object: "chat.completion",
		Model:  modelID,
		Choices: []providers.ChatChoice{{
			Index:        0,
			Message:      providers.ChatMessage{Role: "assistant", Content: text},
			FinishReason: finish,
		}},
		Usage: &providers.ChatUsage{
			PromptTokens:     ar.Usage.InputTokens,
			CompletionTokens: ar.Usage.OutputTokens,
			TotalTokens:      ar.Usage.InputTokens + ar.Usage.OutputTokens,
		},
	}, nil
}

// Anthropic is the direct api.anthropic.com API-key adapter.
func Anthropic() *providers.Adapter {
	return &providers.Adapter{
		ID:                 "anthropic",
		Name:               "Anthropic Claude",
		BaseURL:            "https://api.anthropic.com/v1",
		SupportsStreaming:  true,
		IsOpenAICompatible: false,
		GetHeaders: func(cred profile.Credential) http.Header {
			h := http.Header{}
			h.Set("Content-Type", "application/json")
			h.Set("anthropic-version", apiVersion)
			h.Set("x-api-key", cred.APIKey)
			return h
		},
		FormatRequest:  formatRequest,
		FormatResponse: formatResponse,
		BuildURL: func(baseURL, _ string) string {
			return baseURL + "/messages"
		},
	}
}
