// Package profile implements the profile store: a durable,
// single-writer JSON document mapping profile id -> credential + usage
// stats, with LRU+cooldown+rate-limit-window selection and exponential
// backoff on failure.
//
// The selection algorithm follows sipeed-picoclaw's AuthRotator
// (other_examples/0d593cc7_...rotation.go):
// oldest-lastUsed-first among profiles not currently in cooldown. This
// package generalizes that shape to per-model cooldowns, a rolling RPM
// window, and a wider exponential-backoff table.
package profile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the coarse-grained lifecycle state of a profile.
type State string

const (
	StateActive   State = "ACTIVE"
	StateCooldown State = "COOLDOWN"
	StateDisabled State = "DISABLED"
)

// FailureReason is the taxonomy markProfileFailure accepts.
type FailureReason string

const (
	ReasonAuth           FailureReason = "auth"
	ReasonRateLimit      FailureReason = "rate_limit"
	ReasonBilling        FailureReason = "billing"
	ReasonTimeout        FailureReason = "timeout"
	ReasonFormat         FailureReason = "format"
	ReasonModelNotFound  FailureReason = "model_not_found"
	ReasonUnknown        FailureReason = "unknown"
)

// RateLimitStats is a rolling 60-second request counter.
type RateLimitStats struct {
	WindowStart  int64 `json:"windowStart"`
	RequestCount int   `json:"requestCount"`
}

const rateLimitWindowMs = 60_000

// UsageStats is the mutable half of one profile record.
type UsageStats struct {
	State          State            `json:"state"`
	LastUsed       int64            `json:"lastUsed"`
	CooldownUntil  int64            `json:"cooldownUntil"`
	ModelCooldowns map[string]int64 `json:"modelCooldowns"`
	ErrorCount     int              `json:"errorCount"`
	LastFailureAt  int64            `json:"lastFailureAt,omitempty"`
	FailureReason  string           `json:"failureReason,omitempty"`
	RateLimitStats RateLimitStats   `json:"rateLimitStats"`
}

func freshUsageStats() UsageStats {
	return UsageStats{
		State:          StateActive,
		ModelCooldowns: make(map[string]int64),
	}
}

// document is the on-disk shape: {version, profiles, usageStats}.
type document struct {
	Version     int                   `json:"version"`
	Profiles    map[string]Credential `json:"profiles"`
	UsageStats  map[string]UsageStats `json:"usageStats"`
}

func emptyDocument() document {
	return document{
		Version:    1,
		Profiles:   make(map[string]Credential),
		UsageStats: make(map[string]UsageStats),
	}
}

// exponential-backoff table: immutable sequence of five
// durations, indexing clamps to the last element.
var backoffTable = []time.Duration{
	30 * time.Second,
	60 * time.Second,
	120 * time.Second,
	5 * time.Minute,
	10 * time.Minute,
}

func defaultCooldown(errorCount int) time.Duration {
	idx := errorCount - 1
	if idx < 0 {
		idx = 0
	}
	if idx > len(backoffTable)-1 {
		idx = len(backoffTable) - 1
	}
	return backoffTable[idx]
}

const (
	antigravityProviderID            = "antigravity"
	antigravityRateLimitProfileWide  = 5 * time.Hour
	antigravityRateLimitModelScoped  = 5 * time.Minute
)

// Clock abstracts time for deterministic tests.
type Clock func() time.Time

// Store is the mutex-guarded, write-through profile document.
type Store struct {
	path   string
	mu     sync.Mutex
	doc    document
	now    Clock
	logger *zap.Logger

	// seqCounter/lastSeq give PickNextProfile a tie-break finer than the
	// epoch-millisecond lastUsed field, so round-robin selection under many
	// requests per millisecond still distributes evenly across eligible
	// profiles. They are in-memory only; lastUsed (epoch ms) remains the
	// persisted, externally-visible LRU field.
	seqCounter int64
	lastSeq    map[string]int64
}

// Option configures a Store at construction.
type Option func(*Store)

// WithClock overrides the store's notion of "now", for tests.
func WithClock(c Clock) Option {
	return func(s *Store) { s.now = c }
}

// Open loads path (an empty store if the file does not exist, per )
// and returns a Store ready to serve requests.
func Open(path string, logger *zap.Logger, opts ...Option) (*Store, error) {
	s := &Store{path: path, logger: logger, now: time.Now, lastSeq: make(map[string]int64)}
	for _, o := range opts {
		o(s)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.doc = emptyDocument()
			return s, nil
		}
		return nil, err
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if doc.Profiles == nil {
		doc.Profiles = make(map[string]Credential)
	}
	if doc.UsageStats == nil {
		doc.UsageStats = make(map[string]UsageStats)
	}
	s.doc = doc
	for id := range doc.Profiles {
		s.lastSeq[id] = 0
	}
	return s, nil
}

func (s *Store) nowMs() int64 {
	return s.now().UnixMilli()
}

// persist rewrites the full document; callers must hold s.mu.
func (s *Store) persist() error {
	raw, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return err
	}
	raw = append(raw, '\n')
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return os.WriteFile(s.path, raw, 0o600)
}

// ProfileID formats "<provider>:<label>".
func ProfileID(provider, label string) string {
	return provider + ":" + label
}

// UpsertProfile writes a credential and resets its stats to
// {state: ACTIVE, errorCount: 0}. label defaults to "default", or the
// OAuth email when available and label is empty.
func (s *Store) UpsertProfile(provider string, cred Credential, label string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if label == "" {
		if cred.Kind == KindOAuth && cred.Email != "" {
			label = cred.Email
		} else {
			label = "default"
		}
	}
	id := ProfileID(provider, label)
	cred.ProviderID = provider
	s.doc.Profiles[id] = cred
	s.doc.UsageStats[id] = freshUsageStats()
	s.lastSeq[id] = 0
	if err := s.persist(); err != nil {
		return "", err
	}
	return id, nil
}

// RemoveProfile deletes a credential and its stats.
func (s *Store) RemoveProfile(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.doc.Profiles[id]; !ok {
		return false, nil
	}
	delete(s.doc.Profiles, id)
	delete(s.doc.UsageStats, id)
	delete(s.lastSeq, id)
	if err := s.persist(); err != nil {
		return false, err
	}
	return true, nil
}

// ProfileView is the display shape listAllProfiles returns.
type ProfileView struct {
	ID         string            `json:"id"`
	Credential DisplayCredential `json:"credential"`
	Stats      UsageStats        `json:"stats"`
	InCooldown bool              `json:"inCooldown"`
}

// ListAllProfiles returns every profile with a computed InCooldown flag.
func (s *Store) ListAllProfiles() []ProfileView {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowMs()
	views := make([]ProfileView, 0, len(s.doc.Profiles))
	for id, cred := range s.doc.Profiles {
		stats := s.doc.UsageStats[id]
		views = append(views, ProfileView{
			ID:         id,
			Credential: cred.Display(),
			Stats:      stats,
			InCooldown: now < stats.CooldownUntil || stats.State == StateDisabled,
		})
	}
	return views
}

// GetCredential returns the raw (unmasked) credential for id, for internal
// dispatcher use only — never serialized back to a client.
func (s *Store) GetCredential(id string) (Credential, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.doc.Profiles[id]
	return c, ok
}

// GetAvailableProviders returns the union of providers with a stored
// profile and providers whose API-key environment variable is populated.
func (s *Store) GetAvailableProviders(envMap map[string]string) map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := make(map[string]bool)
	for _, cred := range s.doc.Profiles {
		set[cred.ProviderID] = true
	}
	for provider, envVar := range envMap {
		if os.Getenv(envVar) != "" {
			set[provider] = true
		}
	}
	return set
}

// GetAPIKeyForProvider returns the value of the well-known environment
// variable for provider, or "" if unset.
func (s *Store) GetAPIKeyForProvider(provider string, envMap map[string]string) string {
	envVar, ok := envMap[provider]
	if !ok {
		return ""
	}
	return os.Getenv(envVar)
}

// PickNextProfile returns the least-recently-used eligible profile for
// provider (+ modelID, if given), bumping lastUsed and the rate-limit
// window as a single critical section.
func (s *Store) PickNextProfile(provider string, modelID string, rpm int) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowMs()
	var bestID string
	var bestSeq int64 = -1

	for id, cred := range s.doc.Profiles {
		if cred.ProviderID != provider {
			continue
		}
		stats := s.doc.UsageStats[id]
		if !eligible(stats, modelID, now, rpm) {
			continue
		}
		seq := s.lastSeq[id]
		if bestID == "" || seq < bestSeq {
			bestID = id
			bestSeq = seq
		}
	}
	if bestID == "" {
		return "", false
	}

	s.seqCounter++
	s.lastSeq[bestID] = s.seqCounter

	stats := s.doc.UsageStats[bestID]
	stats.LastUsed = now
	bumpRateLimitWindow(&stats, now)
	s.doc.UsageStats[bestID] = stats
	_ = s.persist()
	return bestID, true
}

func eligible(stats UsageStats, modelID string, now int64, rpm int) bool {
	if stats.State == StateDisabled {
		return false
	}
	if now < stats.CooldownUntil {
		return false
	}
	if modelID != "" {
		if until, ok := stats.ModelCooldowns[modelID]; ok && now < until {
			return false
		}
	}
	if rpm > 0 {
		windowStale := now-stats.RateLimitStats.WindowStart >= rateLimitWindowMs
		if !windowStale && stats.RateLimitStats.RequestCount >= rpm {
			return false
		}
	}
	return true
}

func bumpRateLimitWindow(stats *UsageStats, now int64) {
	if now-stats.RateLimitStats.WindowStart >= rateLimitWindowMs {
		stats.RateLimitStats.WindowStart = now
		stats.RateLimitStats.RequestCount = 1
		return
	}
	stats.RateLimitStats.RequestCount++
}

// IncrementProfileUsage advances the rolling RPM window and lastUsed
// outside of selection (e.g. a transient env-key profile that never went
// through PickNextProfile).
func (s *Store) IncrementProfileUsage(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.doc.UsageStats[id]
	now := s.nowMs()
	stats.LastUsed = now
	bumpRateLimitWindow(&stats, now)
	s.doc.UsageStats[id] = stats
	return s.persist()
}

// MarkProfileUsed records a success: clears cooldown, failure reason, and
// error count, and sets state back to ACTIVE.
func (s *Store) MarkProfileUsed(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats, ok := s.doc.UsageStats[id]
	if !ok {
		stats = freshUsageStats()
	}
	stats.State = StateActive
	stats.ErrorCount = 0
	stats.CooldownUntil = 0
	stats.FailureReason = ""
	s.doc.UsageStats[id] = stats
	return s.persist()
}

// MarkProfileFailure records a failure per the reason taxonomy, scoping
// the cooldown to modelID when given. cooldownOverride, if non-nil, always
// wins over the default backoff table and the Antigravity special case —
// including a zero duration.
func (s *Store) MarkProfileFailure(id string, reason FailureReason, cooldownOverride *time.Duration, modelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, hasCred := s.doc.Profiles[id]
	stats, ok := s.doc.UsageStats[id]
	if !ok {
		stats = freshUsageStats()
	}
	now := s.nowMs()

	modelScoped := modelID != "" && (reason == ReasonRateLimit || reason == ReasonModelNotFound)

	cooldown := s.resolveCooldown(cred, hasCred, reason, stats.ErrorCount+1, modelScoped, cooldownOverride)

	if modelScoped {
		if stats.ModelCooldowns == nil {
			stats.ModelCooldowns = make(map[string]int64)
		}
		stats.ModelCooldowns[modelID] = now + cooldown.Milliseconds()
		// Essential invariant: model-scoped failures never touch state,
		// errorCount, or cooldownUntil.
		s.doc.UsageStats[id] = stats
		return s.persist()
	}

	stats.ErrorCount++
	stats.CooldownUntil = now + cooldown.Milliseconds()
	stats.LastFailureAt = now
	stats.FailureReason = string(reason)
	if reason == ReasonAuth || reason == ReasonBilling {
		stats.State = StateDisabled
	} else {
		stats.State = StateCooldown
	}
	s.doc.UsageStats[id] = stats
	return s.persist()
}

func (s *Store) resolveCooldown(cred Credential, hasCred bool, reason FailureReason, errorCount int, modelScoped bool, override *time.Duration) time.Duration {
	if override != nil {
		return *override
	}
	if hasCred && cred.ProviderID == antigravityProviderID && reason == ReasonRateLimit {
		if modelScoped {
			return antigravityRateLimitModelScoped
		}
		return antigravityRateLimitProfileWide
	}
	return defaultCooldown(errorCount)
}

// ClearProfileCooldown is the admin override.
func (s *Store) ClearProfileCooldown(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats, ok := s.doc.UsageStats[id]
	if !ok {
		return nil
	}
	stats.CooldownUntil = 0
	stats.State = StateActive
	stats.ErrorCount = 0
	stats.FailureReason = ""
	stats.ModelCooldowns = make(map[string]int64)
	s.doc.UsageStats[id] = stats
	return s.persist()
}
