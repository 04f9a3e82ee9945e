// Package modelregistry is the canonical, process-constant mapping from a
// client-supplied model string (internal id, public slug "provider/model",
// or alias) to a provider id plus display metadata.
package modelregistry

import "strings"

// Pricing is USD per 1M tokens.
type Pricing struct {
	Input  float64 `json:"input"`
	Output float64 `json:"output"`
}

// Model is one entry in the registry.
type Model struct {
	ID             string   `json:"id"`
	ProviderID     string   `json:"providerId"`
	PublicSlug     string   `json:"publicSlug"`
	Name           string   `json:"name"`
	ContextWindow  int      `json:"contextWindow"`
	Capabilities   []string `json:"capabilities"`
	Pricing        *Pricing `json:"pricing,omitempty"`
	Free           bool     `json:"free"`
	CreatedAtEpoch int64    `json:"created"`
}

// Registry holds every known model, read-only after construction.
type Registry struct {
	byID     map[string]*Model
	bySlug   map[string]*Model
	byAlias  map[string]*Model
	byProv   map[string][]*Model
	ordered  []*Model
}

// New builds a Registry from a flat list of models and an alias map
// (alias string -> internal id). Id, slug and alias lookups are map
// lookups; FindModel's suffix fallback scans every model.
func New(models []Model, aliases map[string]string) *Registry {
	r := &Registry{
		byID:    make(map[string]*Model, len(models)),
		bySlug:  make(map[string]*Model, len(models)),
		byAlias: make(map[string]*Model, len(aliases)),
		byProv:  make(map[string][]*Model),
		ordered: make([]*Model, 0, len(models)),
	}
	for i := range models {
		m := &models[i]
		r.byID[m.ID] = m
		r.bySlug[m.PublicSlug] = m
		r.byProv[m.ProviderID] = append(r.byProv[m.ProviderID], m)
		r.ordered = append(r.ordered, m)
	}
	for alias, id := range aliases {
		if m, ok := r.byID[id]; ok {
			r.byAlias[alias] = m
		}
	}
	return r
}

// FindModel resolves a client-supplied string: exact internal id, then
// public slug, then alias, then a suffix match "*/id" against every slug.
func (r *Registry) FindModel(id string) (*Model, bool) {
	if m, ok := r.byID[id]; ok {
		return m, true
	}
	if m, ok := r.bySlug[id]; ok {
		return m, true
	}
	if m, ok := r.byAlias[id]; ok {
		return m, true
	}
	for _, m := range r.ordered {
		if strings.HasSuffix(m.PublicSlug, "/"+id) {
			return m, true
		}
	}
	return nil, false
}

// GetModelsForProvider returns every entry owned by providerID, in
// registration order.
func (r *Registry) GetModelsForProvider(providerID string) []*Model {
	return r.byProv[providerID]
}

// GetAllModels returns the full process-wide list, in registration order.
func (r *Registry) GetAllModels() []*Model {
	return r.ordered
}
