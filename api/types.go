// Package api provides the wire types for the router's OpenAI-compatible
// HTTP surface.
package api

import (
	"encoding/json"
	"time"
)

// =============================================================================
// Envelope Types
// =============================================================================

// Response is the canonical API envelope every non-OpenAI-shaped endpoint
// (health, admin CRUD) returns.
// @Description Generic API response envelope
type Response struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	RequestID string     `json:"request_id,omitempty"`
}

// ErrorInfo is the structured error body carried by a failed Response.
// @Description Structured error information
type ErrorInfo struct {
	Code       string `json:"code" example:"model_not_found"`
	Message    string `json:"message" example:"Model not found: nonexistent-xyz"`
	Retryable  bool   `json:"retryable,omitempty"`
	HTTPStatus int    `json:"http_status,omitempty"`
}

// =============================================================================
// Chat Completion Types (OpenAI-compatible, )
// =============================================================================

// ChatRequest is an OpenAI chat-completions v1 request, plus the router's
// three extensions: profile, profile_id, enable_thinking.
// @Description OpenAI-compatible chat completion request
type ChatRequest struct {
	// Model name, public slug, alias, "auto", or "*/auto". Missing means auto.
	Model string `json:"model,omitempty" example:"gpt-4.1"`
	// Conversation messages.
	Messages []Message `json:"messages" binding:"required"`
	// Sampling temperature (0-2).
	Temperature *float64 `json:"temperature,omitempty" example:"0.7"`
	// Nucleus sampling parameter (0-1).
	TopP *float64 `json:"top_p,omitempty" example:"1.0"`
	// Maximum tokens to generate.
	MaxTokens *int `json:"max_tokens,omitempty" example:"4096"`
	// Stop sequences.
	Stop []string `json:"stop,omitempty"`
	// Whether to stream the response as SSE.
	Stream bool `json:"stream,omitempty"`
	// Available tools for function calling.
	Tools []ToolSchema `json:"tools,omitempty"`
	// Tool choice mode (auto, none, or specific tool name).
	ToolChoice any `json:"tool_choice,omitempty"`
	// EnableThinking is honored per adapter (router extension).
	EnableThinking bool `json:"enable_thinking,omitempty"`
	// Profile pins the request to one profile id (router extension,
	// equivalent to the X-Smart-Router-Profile header).
	Profile string `json:"profile,omitempty"`
	// ProfileID is an alias for Profile.
	ProfileID string `json:"profile_id,omitempty"`
}

// ChatResponse is an OpenAI chat-completion response, augmented with the
// router's non-stream `_routing` field.
// @Description OpenAI-compatible chat completion response
type ChatResponse struct {
	ID      string       `json:"id" example:"chatcmpl-123"`
	Object  string       `json:"object" example:"chat.completion"`
	Created int64        `json:"created"`
	Model   string       `json:"model" example:"gpt-4.1"`
	Choices []ChatChoice `json:"choices"`
	Usage   ChatUsage    `json:"usage"`
	Routing *RoutingInfo `json:"_routing,omitempty"`
}

// RoutingInfo is the routing decision surfaced in a non-stream response body.
type RoutingInfo struct {
	Tier      string  `json:"tier"`
	Provider  string  `json:"provider"`
	Model     string  `json:"model"`
	Score     float64 `json:"score"`
	ProfileID string  `json:"profileId"`
}

// ChatChoice is a single completion choice.
// @Description Chat choice structure
type ChatChoice struct {
	Index        int     `json:"index" example:"0"`
	FinishReason string  `json:"finish_reason,omitempty" example:"stop"`
	Message      Message `json:"message"`
}

// ChatUsage reports token usage for a completion.
// @Description Token usage statistics
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens" example:"100"`
	CompletionTokens int `json:"completion_tokens" example:"50"`
	TotalTokens      int `json:"total_tokens" example:"150"`
}

// =============================================================================
// Message Types
// =============================================================================

// Message represents a conversation message.
// @Description Conversation message structure
type Message struct {
	Role       string         `json:"role" example:"user" binding:"required"`
	Content    string         `json:"content,omitempty" example:"Hello, how are you?"`
	Name       string         `json:"name,omitempty"`
	ToolCalls  []ToolCall     `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Images     []ImageContent `json:"images,omitempty"`
}

// ToolCall represents a tool invocation request from the LLM.
// @Description Tool call structure
type ToolCall struct {
	ID        string          `json:"id" example:"call_123"`
	Name      string          `json:"name" example:"get_weather"`
	Arguments json.RawMessage `json:"arguments"`
}

// ImageContent represents image data for multimodal messages.
// @Description Image content structure
type ImageContent struct {
	Type string `json:"type" example:"url"`
	URL  string `json:"url,omitempty" example:"https://example.com/image.png"`
	Data string `json:"data,omitempty"`
}

// =============================================================================
// Tool Types
// =============================================================================

// ToolSchema defines a tool's interface for LLM function calling.
// @Description Tool schema structure
type ToolSchema struct {
	Name        string          `json:"name" example:"get_weather"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

// =============================================================================
// Model Listing Types (GET /v1/models, )
// =============================================================================

// ModelsResponse is the GET /v1/models response body.
// @Description List of models currently available for routing
type ModelsResponse struct {
	Object string        `json:"object" example:"list"`
	Data   []ModelObject `json:"data"`
}

// ModelObject is one entry in ModelsResponse.
type ModelObject struct {
	ID            string              `json:"id"`
	Object        string              `json:"object" example:"model"`
	Created       int64               `json:"created"`
	OwnedBy       string              `json:"owned_by"`
	Name          string              `json:"name"`
	Capabilities  []string            `json:"capabilities,omitempty"`
	Free          bool                `json:"free"`
	Pricing       *ModelObjectPricing `json:"pricing,omitempty"`
	ContextWindow int                 `json:"context_window,omitempty"`
}

// ModelObjectPricing is USD per 1M tokens.
type ModelObjectPricing struct {
	Input  float64 `json:"input"`
	Output float64 `json:"output"`
}

// =============================================================================
// Error Types
// =============================================================================

// ErrorResponse is the OpenAI-shaped error body.
// @Description Error response structure
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the router's dispatcher-level error taxonomy.
// @Description Error detail structure
type ErrorDetail struct {
	Code       string `json:"code" example:"model_not_found"`
	Message    string `json:"message" example:"Invalid request parameters"`
	Type       string `json:"type,omitempty" example:"rate_limit_exceeded"`
	HTTPStatus int    `json:"http_status,omitempty" example:"400"`
	Retryable  bool   `json:"retryable,omitempty" example:"false"`
	Provider   string `json:"provider,omitempty" example:"openai"`
}
