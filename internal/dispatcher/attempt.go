package dispatcher

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smart-router/router/api"
	"github.com/smart-router/router/internal/circuitbreaker"
	"github.com/smart-router/router/internal/profile"
	"github.com/smart-router/router/internal/providers"
	"github.com/smart-router/router/internal/providers/openaicompat"
	"github.com/smart-router/router/internal/requestlog"
	"github.com/smart-router/router/internal/selector"
	"github.com/smart-router/router/internal/streaming"
	"github.com/smart-router/router/types"
)

// attemptOutcome is what one candidate try produced, read back by Dispatch
// to decide whether to stop (success, cancellation, terminal client error)
// or move on to the next fallback candidate.
type attemptOutcome struct {
	success      bool
	cancelled    bool
	terminalErr  *types.Error
	failed       bool
	reason       profile.FailureReason
	cooldownSecs int64
	googleStyle  bool
}

// attempt runs one candidate through : credential
// acquisition, optional OAuth refresh, request formatting, the upstream
// call, and response handling.
func (d *Dispatcher) attempt(ctx context.Context, w http.ResponseWriter, httpReq *http.Request, chatReq api.ChatRequest, decision selector.Decision, cand selector.Candidate, pinnedProfile string, start time.Time) attemptOutcome {
	adapter, ok := d.registry.Get(cand.Provider)
	if !ok {
		return attemptOutcome{failed: true, reason: profile.ReasonUnknown}
	}

	if cb := d.breakerFor(cand.Provider); cb.State() == circuitbreaker.StateOpen {
		return attemptOutcome{failed: true, reason: profile.ReasonUnknown}
	}

	ac, aerr := d.acquireCredential(adapter, cand, pinnedProfile)
	if aerr != nil {
		return attemptOutcome{terminalErr: aerr}
	}
	if ac == nil {
		return attemptOutcome{failed: true, reason: profile.ReasonUnknown}
	}

	cred := ac.cred
	if cred.IsOAuthExpired(time.Now().UnixMilli()) && adapter.RefreshToken != nil {
		refreshed, rerr := adapter.RefreshToken(ctx, cred)
		if rerr != nil {
			if ac.profileID != "" {
				_ = d.profiles.MarkProfileFailure(ac.profileID, profile.ReasonAuth, nil, cand.Model)
			}
			return attemptOutcome{failed: true, reason: profile.ReasonAuth}
		}
		cred = refreshed
		if ac.profileID != "" {
			if _, err := d.profiles.UpsertProfile(cred.ProviderID, cred, profileLabelFromID(ac.profileID)); err != nil {
				d.logger.Warn("failed to persist refreshed credential", zap.String("profile", ac.profileID), zap.Error(err))
			}
		}
	}

	upstreamStreamed := chatReq.Stream || alwaysStreamsFromUpstream(adapter.ID)
	reqBody, ferr := adapter.FormatRequest(toProviderRequest(chatReq, cand.Model, upstreamStreamed, cred))
	if ferr != nil {
		return attemptOutcome{failed: true, reason: profile.ReasonFormat}
	}

	baseURL := openaicompat.ResolveBaseURL(cred, adapter.BaseURL)
	url := baseURL
	if adapter.BuildURL != nil {
		url = adapter.BuildURL(baseURL, cand.Model)
	} else {
		url = providers.DefaultBuildURL(baseURL, cand.Model)
	}

	upReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return attemptOutcome{failed: true, reason: profile.ReasonUnknown}
	}
	for k, vs := range adapter.GetHeaders(cred) {
		for _, v := range vs {
			upReq.Header.Add(k, v)
		}
	}

	// The circuit breaker only guards the round-trip to response headers
	// (http.Client.Do returns as soon as headers arrive, even for a
	// streaming body), never the body read that follows, so it cannot cut
	// off an in-flight SSE stream.
	resp, doErr := circuitbreaker.CallWithResultTyped[*http.Response](d.breakerFor(cand.Provider), ctx, func() (*http.Response, error) {
		return d.httpClient.Do(upReq)
	})
	if doErr != nil {
		if ctx.Err() != nil {
			return attemptOutcome{cancelled: true}
		}
		if ac.profileID != "" {
			_ = d.profiles.MarkProfileFailure(ac.profileID, profile.ReasonTimeout, nil, cand.Model)
		}
		d.recordFailure(ctx, chatReq, decision, cand, ac.profileID, "upstream unreachable", start)
		return attemptOutcome{failed: true, reason: profile.ReasonTimeout}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if ac.profileID != "" {
			_ = d.profiles.MarkProfileUsed(ac.profileID)
		}
		d.writeSuccess(ctx, w, resp, adapter, chatReq, decision, cand, ac.profileID, upstreamStreamed, start)
		return attemptOutcome{success: true}
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	reason, cooldown, googleStyle := classifyFailure(resp.StatusCode, body, resp.Header, cred.ProviderID)
	if ac.profileID != "" {
		_ = d.profiles.MarkProfileFailure(ac.profileID, reason, cooldown, cand.Model)
	}
	d.recordFailure(ctx, chatReq, decision, cand, ac.profileID, string(reason), start)

	var secs int64
	if cooldown != nil {
		secs = int64(cooldown.Seconds())
	}
	return attemptOutcome{failed: true, reason: reason, cooldownSecs: secs, googleStyle: googleStyle}
}

// acquiredCredential is what acquireCredential hands back: a credential to
// try, plus the store-backed profile id if any (empty for a transient
// environment-variable API key, which nothing in the store tracks).
type acquiredCredential struct {
	profileID string
	cred      profile.Credential
}

// acquireCredential prefers an explicitly pinned
// profile (terminal on not-found or provider mismatch), else the
// least-recently-used stored profile for the candidate's provider, else a
// transient credential built from that provider's environment variable.
func (d *Dispatcher) acquireCredential(adapter *providers.Adapter, cand selector.Candidate, pinnedProfile string) (*acquiredCredential, *types.Error) {
	if pinnedProfile != "" {
		cred, ok := d.profiles.GetCredential(pinnedProfile)
		if !ok {
			return nil, types.NewError(types.ErrProfileNotFound, "Profile not found: "+pinnedProfile).WithHTTPStatus(http.StatusBadRequest)
		}
		if cred.ProviderID != cand.Provider {
			return nil, types.NewError(types.ErrProfileProviderMismatch, "Profile "+pinnedProfile+" belongs to provider "+cred.ProviderID+", not "+cand.Provider).WithHTTPStatus(http.StatusBadRequest)
		}
		return &acquiredCredential{profileID: pinnedProfile, cred: cred}, nil
	}

	rpm := 0
	if adapter.RateLimits != nil {
		rpm = adapter.RateLimits.RPM
	}
	if id, ok := d.profiles.PickNextProfile(cand.Provider, cand.Model, rpm); ok {
		cred, _ := d.profiles.GetCredential(id)
		return &acquiredCredential{profileID: id, cred: cred}, nil
	}

	if envVar := d.envMap[cand.Provider]; envVar != "" {
		if key := apiKeyFromEnv(envVar); key != "" {
			return &acquiredCredential{cred: profile.Credential{Kind: profile.KindAPIKey, ProviderID: cand.Provider, APIKey: key}}, nil
		}
	}
	return nil, nil
}

func apiKeyFromEnv(envVar string) string {
	return os.Getenv(envVar)
}

func profileLabelFromID(id string) string {
	if idx := strings.IndexByte(id, ':'); idx >= 0 {
		return id[idx+1:]
	}
	return id
}

// --- failure classification ---

func classifyFailure(status int, body []byte, header http.Header, providerID string) (profile.FailureReason, *time.Duration, bool) {
	reason := statusToReason(status)
	if refined := refineReasonFromBody(strings.ToLower(string(body))); refined != "" {
		reason = refined
	}
	if header.Get("Retry-After") != "" || hasRateLimitResetHeader(header) {
		reason = profile.ReasonRateLimit
	}
	cooldown := extractCooldown(header)
	googleStyle := providerID == "antigravity" && reason == profile.ReasonRateLimit
	return reason, cooldown, googleStyle
}

func statusToReason(status int) profile.FailureReason {
	switch status {
	case http.StatusTooManyRequests:
		return profile.ReasonRateLimit
	case http.StatusNotFound:
		return profile.ReasonModelNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return profile.ReasonAuth
	case http.StatusPaymentRequired:
		return profile.ReasonBilling
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		return profile.ReasonTimeout
	default:
		return profile.ReasonUnknown
	}
}

func refineReasonFromBody(lower string) profile.FailureReason {
	switch {
	case containsAny(lower, "rate_limit", "too many requests", "quota_exceeded", "usage_limit", "limit_exceeded", "reached your current", "exhausted"):
		return profile.ReasonRateLimit
	case containsAny(lower, "not_found", "model not found"):
		return profile.ReasonModelNotFound
	case containsAny(lower, "invalid_api_key", "unauthorized", "permission_denied"):
		return profile.ReasonAuth
	case containsAny(lower, "billing", "insufficient_balance", "payment_required"):
		return profile.ReasonBilling
	default:
		return ""
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func hasRateLimitResetHeader(h http.Header) bool {
	for k := range h {
		if strings.HasPrefix(strings.ToLower(k), "x-ratelimit-reset") {
			return true
		}
	}
	return false
}

// extractCooldown prefers an explicit Retry-After (seconds, or an HTTP
// date), else the first X-RateLimit-Reset* header, treating large values
// as a Unix timestamp rather than a seconds-remaining count (anything
// above the 1,700,000,000 threshold).
func extractCooldown(h http.Header) *time.Duration {
	if ra := h.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil {
			d := time.Duration(secs) * time.Second
			return &d
		}
		if t, err := http.ParseTime(ra); err == nil {
			d := time.Until(t)
			if d < 0 {
				d = 0
			}
			return &d
		}
	}
	for k, vs := range h {
		if !strings.HasPrefix(strings.ToLower(k), "x-ratelimit-reset") || len(vs) == 0 {
			continue
		}
		n, err := strconv.ParseInt(vs[0], 10, 64)
		if err != nil {
			continue
		}
		var d time.Duration
		if n > 1_700_000_000 {
			d = time.Until(time.Unix(n, 0))
		} else {
			d = time.Duration(n) * time.Second
		}
		if d < 0 {
			d = 0
		}
		return &d
	}
	return nil
}

// --- conversions between the client-facing and adapter-facing shapes ---

func toProviderRequest(req api.ChatRequest, modelID string, stream bool, cred profile.Credential) providers.ChatRequest {
	msgs := make([]providers.ChatMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, providers.ChatMessage{Role: m.Role, Content: m.Content, Name: m.Name})
	}
	pr := providers.ChatRequest{
		Model:          modelID,
		Messages:       msgs,
		Temperature:    req.Temperature,
		TopP:           req.TopP,
		MaxTokens:      req.MaxTokens,
		Stop:           req.Stop,
		Stream:         stream,
		EnableThinking: req.EnableThinking,
	}
	if cred.Kind == profile.KindOAuth && cred.ProjectID != "" {
		pr.ProjectID = cred.ProjectID
	}
	return pr
}

func toAPIResponse(pr *providers.ChatResponse, routing *api.RoutingInfo) api.ChatResponse {
	choices := make([]api.ChatChoice, 0, len(pr.Choices))
	for _, c := range pr.Choices {
		choices = append(choices, api.ChatChoice{
			Index:        c.Index,
			FinishReason: c.FinishReason,
			Message:      api.Message{Role: c.Message.Role, Content: c.Message.Content},
		})
	}
	var usage api.ChatUsage
	if pr.Usage != nil {
		usage = api.ChatUsage{PromptTokens: pr.Usage.PromptTokens, CompletionTokens: pr.Usage.CompletionTokens, TotalTokens: pr.Usage.TotalTokens}
	}
	id := pr.ID
	if id == "" {
		id = "chatcmpl-" + uuid.NewString()
	}
	return api.ChatResponse{
		ID:      id,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   pr.Model,
		Choices: choices,
		Usage:   usage,
		Routing: routing,
	}
}

func dialectFor(adapterID string) streaming.Dialect {
	switch adapterID {
	case "google", "antigravity":
		return streaming.DialectGemini
	case "codex":
		return streaming.DialectResponses
	case "anthropic":
		return streaming.DialectAnthropic
	default:
		return streaming.DialectGemini
	}
}

// --- writing a successful upstream response back to the client ---

type flushWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

func (fw flushWriter) Write(p []byte) (int, error) { return fw.w.Write(p) }
func (fw flushWriter) Flush()                       { fw.f.Flush() }

type noopFlusher struct{}

func (noopFlusher) Flush() {}

func (d *Dispatcher) writeSuccess(ctx context.Context, w http.ResponseWriter, resp *http.Response, adapter *providers.Adapter, chatReq api.ChatRequest, decision selector.Decision, cand selector.Candidate, profileID string, upstreamStreamed bool, start time.Time) {
	routing := &api.RoutingInfo{Tier: string(decision.Tier), Provider: cand.Provider, Model: cand.Model, Score: decision.Score, ProfileID: profileID}

	if chatReq.Stream {
		d.streamToClient(ctx, w, resp, adapter, decision, cand, profileID, start)
		return
	}

	if !upstreamStreamed {
		raw, _ := io.ReadAll(resp.Body)
		pr, ferr := adapter.FormatResponse(raw, cand.Model)
		if ferr != nil {
			d.writeError(w, types.NewError(types.ErrFormat, "failed to parse upstream response").WithCause(ferr).WithHTTPStatus(http.StatusBadGateway))
			return
		}
		out := toAPIResponse(pr, routing)
		var prompt, completion int
		if pr.Usage != nil {
			prompt, completion = pr.Usage.PromptTokens, pr.Usage.CompletionTokens
		}
		d.recordSuccess(ctx, chatReq, decision, cand, profileID, prompt, completion, start)
		writeJSON(w, http.StatusOK, out)
		return
	}

	content, finishReason, usage, err := d.bufferNonStreamFromSSE(ctx, resp.Body, dialectFor(adapter.ID), cand.Model)
	if err != nil {
		d.writeError(w, types.NewError(types.ErrUnknown, "failed to read upstream stream").WithCause(err).WithHTTPStatus(http.StatusBadGateway))
		return
	}
	out := api.ChatResponse{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   cand.Model,
		Choices: []api.ChatChoice{{Index: 0, FinishReason: finishReason, Message: api.Message{Role: "assistant", Content: content}}},
		Usage:   api.ChatUsage{PromptTokens: usage.PromptTokens, CompletionTokens: usage.CompletionTokens, TotalTokens: usage.TotalTokens},
		Routing: routing,
	}
	d.recordSuccess(ctx, chatReq, decision, cand, profileID, usage.PromptTokens, usage.CompletionTokens, start)
	writeJSON(w, http.StatusOK, out)
}

func (d *Dispatcher) streamToClient(ctx context.Context, w http.ResponseWriter, resp *http.Response, adapter *providers.Adapter, decision selector.Decision, cand selector.Candidate, profileID string, start time.Time) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Smart-Router-Provider", cand.Provider)
	h.Set("X-Smart-Router-Model", cand.Model)
	h.Set("X-Smart-Router-Tier", string(decision.Tier))
	h.Set("X-Smart-Router-Score", strconv.FormatFloat(decision.Score, 'f', 2, 64))
	h.Set("X-Smart-Router-Reason", decision.Reason)
	if profileID != "" {
		h.Set("X-Smart-Router-Profile", profileID)
	}
	w.WriteHeader(http.StatusOK)

	var sw streaming.Writer
	if f, ok := w.(http.Flusher); ok {
		sw = flushWriter{w, f}
	} else {
		sw = flushWriter{w, noopFlusher{}}
	}

	var result *streaming.Result
	var err error
	if adapter.IsOpenAICompatible {
		result, err = streaming.PassThrough(ctx, sw, resp.Body)
	} else {
		result, err = streaming.Transform(ctx, sw, resp.Body, dialectFor(adapter.ID), cand.Model)
	}
	success := err == nil
	prompt, completion := 0, 0
	if result != nil {
		prompt, completion = result.PromptTokens, result.CompletionTokens
	}
	if success {
		d.recordSuccess(ctx, api.ChatRequest{}, decision, cand, profileID, prompt, completion, start)
	} else {
		d.recordFailureMsg(ctx, decision, cand, profileID, err.Error(), start)
	}
}

// bufferNonStreamFromSSE drains an upstream SSE stream through the shared
// translator and reassembles one plain-text completion from the emitted
// chunks, for adapters that always speak SSE upstream (Gemini, Antigravity)
// even when the client asked for a single JSON response.
type sseBuffer struct{ buf bytes.Buffer }

func (b *sseBuffer) Write(p []byte) (int, error) { return b.buf.Write(p) }
func (b *sseBuffer) Flush()                       {}

func (d *Dispatcher) bufferNonStreamFromSSE(ctx context.Context, body io.Reader, dialect streaming.Dialect, modelID string) (string, string, providers.ChatUsage, error) {
	var bw sseBuffer
	if _, err := streaming.Transform(ctx, &bw, body, dialect, modelID); err != nil {
		return "", "", providers.ChatUsage{}, err
	}

	var content, finishReason string
	var usage providers.ChatUsage
	scanner := bufio.NewScanner(&bw.buf)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}
		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
				FinishReason *string `json:"finish_reason"`
			} `json:"choices"`
			Usage *providers.ChatUsage `json:"usage"`
		}
		if json.Unmarshal([]byte(payload), &chunk) != nil {
			continue
		}
		for _, c := range chunk.Choices {
			content += c.Delta.Content
			if c.FinishReason != nil {
				finishReason = *c.FinishReason
			}
		}
		if chunk.Usage != nil {
			usage = *chunk.Usage
		}
	}
	return content, finishReason, usage, nil
}

// --- request-log recording ---

func (d *Dispatcher) recordSuccess(ctx context.Context, chatReq api.ChatRequest, decision selector.Decision, cand selector.Candidate, profileID string, promptTokens, completionTokens int, start time.Time) {
	d.record(ctx, chatReq, decision, cand, profileID, promptTokens, completionTokens, true, "", start)
}

func (d *Dispatcher) recordFailure(ctx context.Context, chatReq api.ChatRequest, decision selector.Decision, cand selector.Candidate, profileID, errMsg string, start time.Time) {
	d.record(ctx, chatReq, decision, cand, profileID, 0, 0, false, errMsg, start)
}

func (d *Dispatcher) recordFailureMsg(ctx context.Context, decision selector.Decision, cand selector.Candidate, profileID, errMsg string, start time.Time) {
	d.record(ctx, api.ChatRequest{}, decision, cand, profileID, 0, 0, false, errMsg, start)
}

func (d *Dispatcher) record(ctx context.Context, chatReq api.ChatRequest, decision selector.Decision, cand selector.Candidate, profileID string, promptTokens, completionTokens int, success bool, errMsg string, start time.Time) {
	latency := time.Since(start).Milliseconds()
	if d.metrics != nil {
		status := "success"
		if !success {
			status = "error"
		}
		d.metrics.RecordLLMRequest(cand.Provider, cand.Model, status, time.Since(start), promptTokens, completionTokens, 0)
	}

	model, _ := d.models.FindModel(cand.Model)
	var estimated *float64
	if len(chatReq.Messages) > 0 {
		estimated = estimateCostUSD(model, estimatePromptTokens(chatReq.Messages))
	}
	var actual *float64
	if success {
		actual = actualCostUSD(model, promptTokens, completionTokens)
	}

	d.requestLog.RecordRequest(ctx, requestlog.Stats{
		Provider:         cand.Provider,
		Model:            cand.Model,
		ProfileID:        profileID,
		Tier:             string(decision.Tier),
		TierScore:        decision.Score,
		LatencyMs:        latency,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		EstimatedCostUSD: estimated,
		ActualCostUSD:    actual,
		Success:          success,
		Error:            errMsg,
	})
}
