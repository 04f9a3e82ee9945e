// Package apikeyregistry is the client-facing API key store:
// validateKey(raw) -> {label, prefix} plus admin CRUD. This is
// a different concern from internal/profile, which holds the router's own
// credentials toward upstream providers — this package issues and checks
// keys clients present to the router itself (Authorization: Bearer
// sk-sr-...). Follows llm/apikey_pool.go's pattern of an
// in-memory, mutex-guarded map keyed by a generated id, adapted from a
// provider-credential pool to a client-token registry; secrets are never
// persisted or returned in plaintext after creation, mirroring the
// CredentialOverride masking convention used by internal/profile's
// mask in credential.go.
package apikeyregistry

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const keyPrefix = "sk-sr-"

// Key is the durable record for one issued client API key. Secret never
// round-trips after Create: only its SHA-256 hash is kept.
type Key struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	Prefix    string    `json:"prefix"` // first 12 chars of the raw key, for display
	Hash      string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	Revoked   bool      `json:"revoked"`
}

// ValidationResult is what Validate returns for a live key -> {label, prefix}").
type ValidationResult struct {
	Label  string
	Prefix string
}

// Registry is the mutex-guarded, in-memory key store. It has no durable
// backing by default: keys issued before a restart stop validating, which
// is acceptable for the router's single-shared-admin trust model. List()
// exposes every record, but the registry has no import or restore method.
type Registry struct {
	mu   sync.RWMutex
	byID map[string]*Key
}

// New builds an empty registry.
func New() *Registry {
	return &Registry{byID: make(map[string]*Key)}
}

// Create mints a new key, returning the raw secret exactly once.
func (r *Registry) Create(label string) (raw string, key *Key) {
	raw = keyPrefix + randomToken()
	sum := sha256.Sum256([]byte(raw))
	k := &Key{
		ID:        uuid.NewString(),
		Label:     label,
		Prefix:    raw[:len(keyPrefix)+6],
		Hash:      hex.EncodeToString(sum[:]),
		CreatedAt: time.Now(),
	}

	r.mu.Lock()
	r.byID[k.ID] = k
	r.mu.Unlock()
	return raw, k
}

// Validate hashes raw and looks it up among non-revoked keys.
func (r *Registry) Validate(raw string) (*ValidationResult, bool) {
	if !strings.HasPrefix(raw, keyPrefix) {
		return nil, false
	}
	sum := sha256.Sum256([]byte(raw))
	hash := hex.EncodeToString(sum[:])

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, k := range r.byID {
		if k.Revoked || k.Hash != hash {
			continue
		}
		return &ValidationResult{Label: k.Label, Prefix: k.Prefix}, true
	}
	return nil, false
}

// List returns every key (including revoked ones), newest first.
func (r *Registry) List() []*Key {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Key, 0, len(r.byID))
	for _, k := range r.byID {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Revoke marks a key unusable. Returns false if id is unknown.
func (r *Registry) Revoke(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.byID[id]
	if !ok {
		return false
	}
	k.Revoked = true
	return true
}

func randomToken() string {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand.Read only fails if the OS entropy source is
		// unavailable; there is nothing sensible to do but panic rather
		// than hand out a predictable key.
		panic("apikeyregistry: crypto/rand unavailable: " + err.Error())
	}
	return strings.ToLower(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf))
}
