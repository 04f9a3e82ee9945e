package handlers

import (
	"net/http"

	"github.com/smart-router/router/api"
	"github.com/smart-router/router/internal/dispatcher"
	"github.com/smart-router/router/types"
	"go.uber.org/zap"
)

// ChatHandler exposes POST /v1/chat/completions, the router's
// single client-facing surface. The routing decision, credential
// acquisition, upstream call, and streaming/buffered response writing all
// live in the dispatcher — this handler is just decode, validate, dispatch.
type ChatHandler struct {
	dispatcher *dispatcher.Dispatcher
	logger     *zap.Logger
}

// NewChatHandler builds a ChatHandler around an already-wired Dispatcher.
func NewChatHandler(d *dispatcher.Dispatcher, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{dispatcher: d, logger: logger}
}

// HandleCompletion is an OpenAI-compatible chat-completions endpoint with
// the router's extensions: auto model routing, profile pinning, and a
// streaming path that always ends with [DONE] regardless of which wire
// dialect the chosen upstream speaks.
// @Summary Chat completion
// @Description OpenAI-compatible chat completions, auto-routed by prompt complexity
// @Tags chat
// @Accept json
// @Produce json
// @Param request body api.ChatRequest true "Chat completion request"
// @Success 200 {object} api.ChatResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 401 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 429 {object} api.ErrorResponse
// @Failure 503 {object} api.ErrorResponse
// @Router /v1/chat/completions [post]
func (h *ChatHandler) HandleCompletion(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.ChatRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	if verr := validateChatRequest(&req); verr != nil {
		WriteOpenAIError(w, verr, h.logger)
		return
	}

	h.dispatcher.Dispatch(r.Context(), w, r, req)
}

func validateChatRequest(req *api.ChatRequest) *types.Error {
	if len(req.Messages) == 0 {
		return types.NewError(types.ErrFormat, "messages cannot be empty").WithHTTPStatus(http.StatusBadRequest)
	}
	if req.Temperature != nil && (*req.Temperature < 0 || *req.Temperature > 2) {
		return types.NewError(types.ErrFormat, "temperature must be between 0 and 2").WithHTTPStatus(http.StatusBadRequest)
	}
	if req.TopP != nil && (*req.TopP < 0 || *req.TopP > 1) {
		return types.NewError(types.ErrFormat, "top_p must be between 0 and 1").WithHTTPStatus(http.StatusBadRequest)
	}
	return nil
}
