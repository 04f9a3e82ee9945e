// Package dispatcher is the orchestrator: it turns one parsed
// chat-completion request into a routing decision, walks the candidate
// chain acquiring credentials and calling upstreams, classifies failures
// into the profile store's cooldown taxonomy, and writes the client
// response — buffered JSON or a translated SSE stream.
//
// Follows llm/router.go's dispatch loop (sequential
// candidate attempts with per-attempt credential acquisition and upstream
// call), generalized to a five-step failure classification and
// the profile store's model-scoped cooldown bookkeeping.
package dispatcher

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/smart-router/router/api"
	"github.com/smart-router/router/internal/apikeyregistry"
	"github.com/smart-router/router/internal/circuitbreaker"
	"github.com/smart-router/router/internal/metrics"
	"github.com/smart-router/router/internal/modelregistry"
	"github.com/smart-router/router/internal/profile"
	"github.com/smart-router/router/internal/providers"
	"github.com/smart-router/router/internal/requestlog"
	"github.com/smart-router/router/internal/scoring"
	"github.com/smart-router/router/internal/selector"
	"github.com/smart-router/router/internal/tlsutil"
	"github.com/smart-router/router/types"
)

// Dispatcher owns the whole request lifecycle: routing decision, candidate
// walk, upstream call, and response writing.
type Dispatcher struct {
	registry    *providers.Registry
	models      *modelregistry.Registry
	profiles    *profile.Store
	classifier  *scoring.Classifier
	selectorCfg func() selector.Config
	envMap      map[string]string
	apiKeys     *apikeyregistry.Registry
	requestLog  requestlog.Sink
	metrics     *metrics.Collector
	logger      *zap.Logger
	httpClient  *http.Client
	tracer      trace.Tracer

	// breakers gates the upstream HTTP call per provider (not per profile:
	// a provider-wide outage should fast-fail every candidate for that
	// provider without burning through each profile's individual cooldown
	// bookkeeping). Lazily constructed.
	breakersMu sync.Mutex
	breakers   map[string]circuitbreaker.CircuitBreaker
}

func (d *Dispatcher) breakerFor(provider string) circuitbreaker.CircuitBreaker {
	d.breakersMu.Lock()
	defer d.breakersMu.Unlock()
	if d.breakers == nil {
		d.breakers = make(map[string]circuitbreaker.CircuitBreaker)
	}
	cb, ok := d.breakers[provider]
	if !ok {
		cb = circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig(), d.logger)
		d.breakers[provider] = cb
	}
	return cb
}

// Options configures a Dispatcher at construction.
type Options struct {
	Registry      *providers.Registry
	Models        *modelregistry.Registry
	Profiles      *profile.Store
	ScoringConfig *scoring.Config
	// SelectorConfig is read fresh on every request so the hot-reload API
	// can swap tier/model assignments without a restart.
	SelectorConfig func() selector.Config
	EnvMap         map[string]string
	// APIKeys is optional; nil disables Authorization: Bearer sk-sr-...
	// validation entirely.
	APIKeys    *apikeyregistry.Registry
	RequestLog requestlog.Sink
	Metrics    *metrics.Collector
	Logger     *zap.Logger
	HTTPClient *http.Client
}

// New builds a Dispatcher. A nil HTTPClient defaults to
// tlsutil.SecureHTTPClient with no client-imposed timeout.
func New(opts Options) *Dispatcher {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = tlsutil.SecureHTTPClient(0)
	}
	reqLog := opts.RequestLog
	if reqLog == nil {
		reqLog = requestlog.NoopSink{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		registry:    opts.Registry,
		models:      opts.Models,
		profiles:    opts.Profiles,
		classifier:  scoring.New(opts.ScoringConfig),
		selectorCfg: opts.SelectorConfig,
		envMap:      opts.EnvMap,
		apiKeys:     opts.APIKeys,
		requestLog:  reqLog,
		metrics:     opts.Metrics,
		logger:      logger,
		httpClient:  httpClient,
		tracer:      otel.Tracer("smart-router/dispatcher"),
	}
}

// Dispatch runs one chat-completion request end to end and writes the
// outcome directly to w:
// a buffered JSON chat.completion, an SSE chat.completion.chunk stream, or
// an OpenAI-shaped error body. httpReq supplies the Authorization and
// profile-pinning headers; chatReq is the already-decoded body.
func (d *Dispatcher) Dispatch(ctx context.Context, w http.ResponseWriter, httpReq *http.Request, chatReq api.ChatRequest) {
	start := time.Now()
	ctx, span := d.tracer.Start(ctx, "dispatch")
	defer span.End()

	if authErr := d.validateAuth(httpReq); authErr != nil {
		d.writeError(w, authErr)
		return
	}

	availability := d.profiles.GetAvailableProviders(d.envMap)
	if len(availability) == 0 {
		d.writeServiceUnavailable(w)
		return
	}

	decision, derr := d.resolveModel(chatReq, availability)
	if derr != nil {
		d.writeError(w, derr)
		return
	}
	if decision.Primary.Provider == selector.NoneProvider {
		d.writeServiceUnavailable(w)
		return
	}

	span.SetAttributes(
		attribute.String("router.tier", string(decision.Tier)),
		attribute.String("router.reason", decision.Reason),
	)
	if d.metrics != nil {
		d.metrics.RecordRouteCandidates(string(decision.Tier), 1+len(decision.FallbackChain))
	}

	pinned := pinnedProfileID(chatReq, httpReq)
	candidates := append([]selector.Candidate{decision.Primary}, decision.FallbackChain...)

	var attempts []failedAttempt
	for _, cand := range candidates {
		if ctx.Err() != nil {
			// Client cancelled: stop silently, no profile marked.
			return
		}

		outcome := d.attempt(ctx, w, httpReq, chatReq, decision, cand, pinned, start)
		switch {
		case outcome.cancelled:
			return
		case outcome.terminalErr != nil:
			d.writeError(w, outcome.terminalErr)
			return
		case outcome.success:
			return
		case outcome.failed:
			attempts = append(attempts, failedAttempt{
				provider:     cand.Provider,
				reason:       outcome.reason,
				cooldownSecs: outcome.cooldownSecs,
				googleStyle:  outcome.googleStyle,
			})
		}
	}

	d.writeExhausted(w, attempts)
}

type failedAttempt struct {
	provider     string
	reason       profile.FailureReason
	cooldownSecs int64
	googleStyle  bool
}

// writeExhausted writes a 429 if any candidate failed on rate_limit. The
// Google-style RESOURCE_EXHAUSTED body is used, with Retry-After set to the
// dominant Antigravity cooldown, whenever an Antigravity cooldown
// contributed — even if a non-Antigravity candidate's cooldown is shorter
// (§8 "Antigravity dominates"). Otherwise Retry-After is the minimum
// positive wait across the attempted candidates' cooldowns.
func (d *Dispatcher) writeExhausted(w http.ResponseWriter, attempts []failedAttempt) {
	var minPositive int64 = -1
	var minGoogle int64 = -1
	var googleStyle bool
	var sawRateLimit bool
	for _, a := range attempts {
		if a.reason != profile.ReasonRateLimit {
			continue
		}
		sawRateLimit = true
		if a.cooldownSecs > 0 && (minPositive < 0 || a.cooldownSecs < minPositive) {
			minPositive = a.cooldownSecs
		}
		if a.googleStyle {
			googleStyle = true
			if a.cooldownSecs > 0 && (minGoogle < 0 || a.cooldownSecs < minGoogle) {
				minGoogle = a.cooldownSecs
			}
		}
	}
	if !sawRateLimit {
		d.writeServiceUnavailable(w)
		return
	}
	retryAfter := minPositive
	if googleStyle && minGoogle > 0 {
		retryAfter = minGoogle
	}
	if retryAfter < 0 {
		retryAfter = 30
	}
	d.writeRateLimitExhausted(w, retryAfter, googleStyle)
}

// resolveModel runs auto routing through the
// scoring+selector pipeline, or explicit-model resolution with a fallback
// to auto routing when the resolved provider is unavailable.
func (d *Dispatcher) resolveModel(req api.ChatRequest, availability map[string]bool) (selector.Decision, *types.Error) {
	modelStr := strings.TrimSpace(req.Model)
	isAuto := modelStr == "" || modelStr == "auto" || strings.HasSuffix(modelStr, "/auto")

	if isAuto {
		return d.autoDecision(req, availability), nil
	}

	model, ok := d.models.FindModel(modelStr)
	if !ok {
		return selector.Decision{}, types.NewError(types.ErrModelNotFound, "Model not found: "+modelStr).WithHTTPStatus(http.StatusNotFound)
	}
	if !availability[model.ProviderID] {
		return d.autoDecision(req, availability), nil
	}
	return selector.Decision{
		Tier:    scoring.TierSimple,
		Reason:  "EXPLICIT",
		Primary: selector.Candidate{Provider: model.ProviderID, Model: model.ID},
	}, nil
}

func (d *Dispatcher) autoDecision(req api.ChatRequest, availability map[string]bool) selector.Decision {
	result := d.classifier.Classify(lastUserMessageText(req.Messages))
	return selector.Select(result, availability, d.selectorCfg())
}

func lastUserMessageText(messages []api.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	if len(messages) > 0 {
		return messages[len(messages)-1].Content
	}
	return ""
}

func pinnedProfileID(req api.ChatRequest, httpReq *http.Request) string {
	if v := httpReq.Header.Get("X-Smart-Router-Profile"); v != "" {
		return v
	}
	if req.Profile != "" {
		return req.Profile
	}
	return req.ProfileID
}

// validateAuth implements 's optional Bearer sk-sr-... check: absent
// entirely when no registry is configured, and a no-op on any header that
// isn't our own token scheme (so a client's upstream pass-through key in
// the same header is left alone).
func (d *Dispatcher) validateAuth(httpReq *http.Request) *types.Error {
	if d.apiKeys == nil {
		return nil
	}
	authz := httpReq.Header.Get("Authorization")
	if authz == "" {
		return nil
	}
	token := strings.TrimPrefix(authz, "Bearer ")
	if token == authz || !strings.HasPrefix(token, "sk-sr-") {
		return nil
	}
	if _, ok := d.apiKeys.Validate(token); !ok {
		return types.NewError(types.ErrInvalidAPIKey, "invalid API key").WithHTTPStatus(http.StatusUnauthorized)
	}
	return nil
}

// --- response writing ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (d *Dispatcher) writeError(w http.ResponseWriter, err *types.Error) {
	status := err.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	d.logger.Error("dispatch error",
		zap.String("code", string(err.Code)),
		zap.String("message", err.Message),
		zap.Int("status", status),
		zap.Error(err.Cause),
	)
	writeJSON(w, status, api.ErrorResponse{Error: api.ErrorDetail{
		Code:       string(err.Code),
		Message:    err.Message,
		HTTPStatus: status,
		Retryable:  err.Retryable,
		Provider:   err.Provider,
	}})
}

func (d *Dispatcher) writeServiceUnavailable(w http.ResponseWriter) {
	w.Header().Set("Retry-After", "5")
	d.writeError(w, types.NewError(types.ErrServiceUnavailable, "no available provider").WithHTTPStatus(http.StatusServiceUnavailable))
}

func (d *Dispatcher) writeRateLimitExhausted(w http.ResponseWriter, retryAfterSeconds int64, googleStyle bool) {
	w.Header().Set("Retry-After", strconv.FormatInt(retryAfterSeconds, 10))
	if googleStyle {
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error": map[string]any{
				"code":   429,
				"status": "RESOURCE_EXHAUSTED",
				"details": []map[string]any{
					{"@type": "type.googleapis.com/google.rpc.RetryInfo", "retryDelay": strconv.FormatInt(retryAfterSeconds, 10) + "s"},
				},
			},
		})
		return
	}
	writeJSON(w, http.StatusTooManyRequests, map[string]any{
		"error": map[string]any{
			"type":        "rate_limit_exceeded",
			"code":        429,
			"retry_after": retryAfterSeconds,
		},
	})
}
