package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/smart-router/router/internal/apikeyregistry"
	"github.com/smart-router/router/types"
)

// APIKeyHandler exposes admin CRUD over the client-facing API-key registry
// (validate/create/list/revoke) as an in-process HTTP surface, since the
// router ships no separate dashboard process.
type APIKeyHandler struct {
	registry *apikeyregistry.Registry
	logger   *zap.Logger
}

// NewAPIKeyHandler builds an APIKeyHandler around a registry.
func NewAPIKeyHandler(registry *apikeyregistry.Registry, logger *zap.Logger) *APIKeyHandler {
	return &APIKeyHandler{registry: registry, logger: logger}
}

// apiKeyResponse is the display shape for a Key: the raw secret is never
// echoed back after creation.
type apiKeyResponse struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Prefix    string `json:"prefix"`
	Revoked   bool   `json:"revoked"`
	CreatedAt string `json:"createdAt"`
}

func toAPIKeyResponse(k *apikeyregistry.Key) apiKeyResponse {
	return apiKeyResponse{
		ID:        k.ID,
		Label:     k.Label,
		Prefix:    k.Prefix,
		Revoked:   k.Revoked,
		CreatedAt: k.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// HandleList returns every issued key (including revoked ones).
// @Summary List API keys
// @Tags admin
// @Produce json
// @Success 200 {object} Response
// @Router /api/v1/keys [get]
func (h *APIKeyHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	keys := h.registry.List()
	out := make([]apiKeyResponse, 0, len(keys))
	for _, k := range keys {
		out = append(out, toAPIKeyResponse(k))
	}
	WriteSuccess(w, out)
}

type createAPIKeyRequest struct {
	Label string `json:"label"`
}

type createAPIKeyResponse struct {
	apiKeyResponse
	Key string `json:"key"`
}

// HandleCreate mints a new key and returns the raw secret exactly once.
// @Summary Create an API key
// @Tags admin
// @Accept json
// @Produce json
// @Success 201 {object} Response
// @Router /api/v1/keys [post]
func (h *APIKeyHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createAPIKeyRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if strings.TrimSpace(req.Label) == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrFormat, "label is required", h.logger)
		return
	}

	raw, key := h.registry.Create(req.Label)
	WriteJSON(w, http.StatusCreated, Response{
		Success: true,
		Data:    createAPIKeyResponse{apiKeyResponse: toAPIKeyResponse(key), Key: raw},
	})
}

// HandleRevoke marks a key unusable. id is the path-extracted key id.
// @Summary Revoke an API key
// @Tags admin
// @Produce json
// @Success 200 {object} Response
// @Failure 404 {object} Response
// @Router /api/v1/keys/{id} [delete]
func (h *APIKeyHandler) HandleRevoke(w http.ResponseWriter, r *http.Request, id string) {
	if !h.registry.Revoke(id) {
		WriteErrorMessage(w, http.StatusNotFound, types.ErrProfileNotFound, "unknown key id: "+id, h.logger)
		return
	}
	WriteSuccess(w, map[string]string{"id": id, "status": "revoked"})
}
