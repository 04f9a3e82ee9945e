package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smart-router/router/internal/apikeyregistry"
)

func TestAPIKeyHandler_HandleCreate(t *testing.T) {
	h := NewAPIKeyHandler(apikeyregistry.New(), zap.NewNop())

	body, _ := json.Marshal(createAPIKeyRequest{Label: "ci-bot"})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/keys", bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	h.HandleCreate(w, r)

	require.Equal(t, http.StatusCreated, w.Code)
	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Success)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ci-bot", data["label"])
	rawKey, _ := data["key"].(string)
	assert.Contains(t, rawKey, "sk-sr-")
}

func TestAPIKeyHandler_HandleCreate_RequiresLabel(t *testing.T) {
	h := NewAPIKeyHandler(apikeyregistry.New(), zap.NewNop())

	body, _ := json.Marshal(createAPIKeyRequest{Label: ""})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/keys", bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	h.HandleCreate(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPIKeyHandler_HandleList(t *testing.T) {
	reg := apikeyregistry.New()
	reg.Create("one")
	reg.Create("two")
	h := NewAPIKeyHandler(reg, zap.NewNop())

	r := httptest.NewRequest(http.MethodGet, "/api/v1/keys", nil)
	w := httptest.NewRecorder()

	h.HandleList(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	items, ok := resp.Data.([]any)
	require.True(t, ok)
	assert.Len(t, items, 2)
}

func TestAPIKeyHandler_HandleRevoke(t *testing.T) {
	reg := apikeyregistry.New()
	raw, key := reg.Create("to-revoke")
	h := NewAPIKeyHandler(reg, zap.NewNop())

	r := httptest.NewRequest(http.MethodDelete, "/api/v1/keys/"+key.ID, nil)
	w := httptest.NewRecorder()

	h.HandleRevoke(w, r, key.ID)

	require.Equal(t, http.StatusOK, w.Code)

	_, live := reg.Validate(raw)
	assert.False(t, live)
}

func TestAPIKeyHandler_HandleRevoke_UnknownID(t *testing.T) {
	h := NewAPIKeyHandler(apikeyregistry.New(), zap.NewNop())

	r := httptest.NewRequest(http.MethodDelete, "/api/v1/keys/does-not-exist", nil)
	w := httptest.NewRecorder()

	h.HandleRevoke(w, r, "does-not-exist")

	assert.Equal(t, http.StatusNotFound, w.Code)
}
