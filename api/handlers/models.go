package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/smart-router/router/api"
	"github.com/smart-router/router/internal/modelregistry"
	"github.com/smart-router/router/internal/profile"
)

// ModelsHandler exposes GET /v1/models: the set of models the
// router can currently route to, restricted to providers with at least one
// available credential.
type ModelsHandler struct {
	models   *modelregistry.Registry
	profiles *profile.Store
	envMap   map[string]string
	logger   *zap.Logger
}

// NewModelsHandler builds a ModelsHandler around the process-wide model
// registry and profile store.
func NewModelsHandler(models *modelregistry.Registry, profiles *profile.Store, envMap map[string]string, logger *zap.Logger) *ModelsHandler {
	return &ModelsHandler{models: models, profiles: profiles, envMap: envMap, logger: logger}
}

// HandleList writes the OpenAI-shaped "list" response body.
// @Summary List models
// @Description Models currently available for routing
// @Tags models
// @Produce json
// @Success 200 {object} api.ModelsResponse
// @Router /v1/models [get]
func (h *ModelsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	availability := h.profiles.GetAvailableProviders(h.envMap)

	all := h.models.GetAllModels()
	data := make([]api.ModelObject, 0, len(all))
	for _, m := range all {
		if !availability[m.ProviderID] {
			continue
		}
		obj := api.ModelObject{
			ID:            m.ID,
			Object:        "model",
			Created:       m.CreatedAtEpoch,
			OwnedBy:       m.ProviderID,
			Name:          m.Name,
			Capabilities:  m.Capabilities,
			Free:          m.Free,
			ContextWindow: m.ContextWindow,
		}
		if m.Pricing != nil {
			obj.Pricing = &api.ModelObjectPricing{Input: m.Pricing.Input, Output: m.Pricing.Output}
		}
		data = append(data, obj)
	}

	WriteJSON(w, http.StatusOK, api.ModelsResponse{Object: "list", Data: data})
}
