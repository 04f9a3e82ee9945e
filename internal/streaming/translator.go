// Package streaming converts upstream SSE streams into a uniform OpenAI
// chat.completion.chunk stream. OpenAI-compatible upstreams are
// forwarded byte for byte; non-compatible upstreams (Gemini/Antigravity,
// Codex's Responses API, Anthropic Messages API) are parsed and re-emitted
// one dispatch-by-event-shape case at a time.
//
// Follows llm/providers/gemini/provider.go's SSE handling,
// generalized: that client parsed SSE inline inside the provider's own
// code; here one translator owns every dialect so a provider adapter only
// needs to describe its wire shapes, not reimplement buffering and `[DONE]`
// framing.
package streaming

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/smart-router/router/internal/providers"
)

// Writer is the downstream SSE sink: an http.ResponseWriter wrapped with a
// Flusher, or any io.Writer that flushes after each event (e.g. a test
// buffer with a no-op Flush).
type Writer interface {
	io.Writer
	Flush()
}

// Dialect identifies which non-compatible wire format an upstream speaks.
// OpenAI-compatible upstreams never reach the transform path and have no
// Dialect value.
type Dialect int

const (
	// DialectGemini is Google Gemini / Antigravity's generateContent SSE.
	DialectGemini Dialect = iota
	// DialectResponses is OpenAI's Responses API (Codex).
	DialectResponses
	// DialectAnthropic is Anthropic's Messages API SSE.
	DialectAnthropic
)

// Result accumulates what the translator observed across the whole stream,
// for usage stats and request-log recording.
type Result struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	// BytesSeen is forwarded even on client cancellation, so the caller can
	// still record a stat for a partially-delivered stream.
	BytesSeen int64
}

func writeDataLine(w Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", b); err != nil {
		return err
	}
	w.Flush()
	return nil
}

func writeDone(w Writer) {
	fmt.Fprint(w, "data: [DONE]\n\n")
	w.Flush()
}

// openaiChunk is the uniform chunk shape emitted on the transform path.
type openaiChunk struct {
	Object  string            `json:"object"`
	Model   string            `json:"model"`
	Choices []openaiChunkChoi `json:"choices"`
	Usage   *providers.ChatUsage `json:"usage,omitempty"`
}

type openaiChunkChoi struct {
	Index        int              `json:"index"`
	Delta        openaiChunkDelta `json:"delta"`
	FinishReason *string          `json:"finish_reason"`
}

type openaiChunkDelta struct {
	Content string `json:"content,omitempty"`
}

func stop() *string { s := "stop"; return &s }

// PassThrough forwards bytes verbatim from an OpenAI-compatible upstream
//, opportunistically parsing `data:` lines
// to accumulate token usage without altering a single byte sent downstream.
func PassThrough(ctx context.Context, dst Writer, upstream io.Reader) (*Result, error) {
	res := &Result{}
	reader := bufio.NewReader(upstream)
	buf := make([]byte, 4096)

	var lineAccum bytes.Buffer
	for {
		select {
		case <-ctx.Done():
			return res, nil
		default:
		}

		n, err := reader.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			res.BytesSeen += int64(n)
			if _, werr := dst.Write(chunk); werr != nil {
				return res, werr
			}
			dst.Flush()

			lineAccum.Write(chunk)
			scanCompletedLines(&lineAccum, res)
		}
		if err != nil {
			if err == io.EOF {
				return res, nil
			}
			return res, err
		}
	}
}

// scanCompletedLines extracts whole "data: {...}" lines from buf, feeding
// usage accounting, and retains any trailing partial line in buf.
func scanCompletedLines(buf *bytes.Buffer, res *Result) {
	data := buf.Bytes()
	lastNL := bytes.LastIndexByte(data, '\n')
	if lastNL < 0 {
		return
	}
	complete := data[:lastNL+1]
	rest := append([]byte(nil), data[lastNL+1:]...)

	for _, line := range bytes.Split(complete, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if !bytes.HasPrefix(line, []byte("data:")) {
			continue
		}
		payload := bytes.TrimSpace(line[len("data:"):])
		if bytes.Equal(payload, []byte("[DONE]")) || len(payload) == 0 {
			continue
		}
		var probe struct {
			Usage *providers.ChatUsage `json:"usage"`
		}
		if json.Unmarshal(payload, &probe) == nil && probe.Usage != nil {
			res.PromptTokens = probe.Usage.PromptTokens
			res.CompletionTokens = probe.Usage.CompletionTokens
			res.TotalTokens = probe.Usage.TotalTokens
		}
	}

	buf.Reset()
	buf.Write(rest)
}

// Transform parses a non-compatible upstream's SSE frames and re-emits
// uniform OpenAI chunks. dialect picks the
// event-shape dispatch; modelID is stamped onto every emitted chunk.
func Transform(ctx context.Context, dst Writer, upstream io.Reader, dialect Dialect, modelID string) (*Result, error) {
	res := &Result{}
	var buf bytes.Buffer
	raw := make([]byte, 4096)
	reader := upstream

	for {
		select {
		case <-ctx.Done():
			return res, nil
		default:
		}

		n, err := reader.Read(raw)
		if n > 0 {
			res.BytesSeen += int64(n)
			normalized := bytes.ReplaceAll(raw[:n], []byte("\r\n"), []byte("\n"))
			buf.Write(normalized)
			if perr := processEvents(&buf, dst, dialect, modelID, res); perr != nil {
				return res, perr
			}
		}
		if err != nil {
			if err == io.EOF {
				return res, nil
			}
			return res, err
		}
	}
}

// processEvents slices complete "\n\n"-delimited events off buf and
// dispatches each by dialect, leaving any trailing partial event in buf.
func processEvents(buf *bytes.Buffer, dst Writer, dialect Dialect, modelID string, res *Result) error {
	for {
		data := buf.Bytes()
		idx := bytes.Index(data, []byte("\n\n"))
		if idx < 0 {
			return nil
		}
		event := data[:idx]
		rest := append([]byte(nil), data[idx+2:]...)
		buf.Reset()
		buf.Write(rest)

		if done, err := dispatchEvent(event, dst, dialect, modelID, res); err != nil {
			return err
		} else if done {
			return nil
		}
	}
}

// eventDataPayload joins every `data:` line in an event into one JSON blob
//.
func eventDataPayload(event []byte) ([]byte, bool) {
	var payload bytes.Buffer
	found := false
	for _, line := range bytes.Split(event, []byte("\n")) {
		trimmed := bytes.TrimSpace(line)
		if !bytes.HasPrefix(trimmed, []byte("data:")) {
			continue
		}
		found = true
		payload.Write(bytes.TrimSpace(trimmed[len("data:"):]))
	}
	return payload.Bytes(), found
}

func dispatchEvent(event []byte, dst Writer, dialect Dialect, modelID string, res *Result) (done bool, err error) {
	payload, found := eventDataPayload(event)
	if !found || len(payload) == 0 {
		return false, nil
	}

	switch dialect {
	case DialectGemini:
		return dispatchGemini(payload, dst, modelID, res)
	case DialectResponses:
		return dispatchResponses(payload, dst, modelID, res)
	case DialectAnthropic:
		return dispatchAnthropic(payload, dst, modelID, res)
	default:
		return false, nil
	}
}

// --- Gemini / Antigravity ---

type geminiEventPart struct {
	Text             string `json:"text"`
	ThoughtSignature string `json:"thoughtSignature,omitempty"`
}

type geminiEventCandidate struct {
	Content struct {
		Parts []geminiEventPart `json:"parts"`
	} `json:"content"`
	FinishReason string `json:"finishReason,omitempty"`
}

type geminiEvent struct {
	Candidates []geminiEventCandidate `json:"candidates"`
	Response   *struct {
		Candidates    []geminiEventCandidate `json:"candidates"`
		UsageMetadata *struct {
			PromptTokenCount     int `json:"promptTokenCount"`
			CandidatesTokenCount int `json:"candidatesTokenCount"`
		} `json:"usageMetadata"`
	} `json:"response,omitempty"`
}

func dispatchGemini(payload []byte, dst Writer, modelID string, res *Result) (bool, error) {
	var ev geminiEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return false, nil // unknown shape, silently discarded
	}

	candidates := ev.Candidates
	if ev.Response != nil {
		if len(ev.Response.Candidates) > 0 {
			candidates = ev.Response.Candidates
		}
		if ev.Response.UsageMetadata != nil {
			res.PromptTokens = ev.Response.UsageMetadata.PromptTokenCount
			res.CompletionTokens = ev.Response.UsageMetadata.CandidatesTokenCount
			res.TotalTokens = res.PromptTokens + res.CompletionTokens
		}
	}
	if len(candidates) == 0 {
		return dispatchError(payload, dst, modelID)
	}

	var text strings.Builder
	finishReason := candidates[0].FinishReason
	for _, p := range candidates[0].Content.Parts {
		if p.ThoughtSignature == "" {
			text.WriteString(p.Text)
		}
	}

	chunk := openaiChunk{Object: "chat.completion.chunk", Model: modelID, Choices: []openaiChunkChoi{{
		Delta: openaiChunkDelta{Content: text.String()},
	}}}
	if finishReason == "STOP" {
		chunk.Choices[0].FinishReason = stop()
	}
	if err := writeDataLine(dst, chunk); err != nil {
		return false, err
	}
	if finishReason == "STOP" {
		writeDone(dst)
		return true, nil
	}
	return false, nil
}

// --- Responses API (Codex) ---

type responsesEvent struct {
	Type     string `json:"type"`
	Delta    string `json:"delta"`
	Response *struct {
		Usage *struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
			TotalTokens  int `json:"total_tokens"`
		} `json:"usage"`
	} `json:"response,omitempty"`
}

func dispatchResponses(payload []byte, dst Writer, modelID string, res *Result) (bool, error) {
	var ev responsesEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return false, nil
	}

	switch ev.Type {
	case "response.output_text.delta":
		chunk := openaiChunk{Object: "chat.completion.chunk", Model: modelID, Choices: []openaiChunkChoi{{
			Delta: openaiChunkDelta{Content: ev.Delta},
		}}}
		if err := writeDataLine(dst, chunk); err != nil {
			return false, err
		}
		return false, nil
	case "response.completed", "response.done":
		chunk := openaiChunk{Object: "chat.completion.chunk", Model: modelID, Choices: []openaiChunkChoi{{
			Delta:        openaiChunkDelta{},
			FinishReason: stop(),
		}}}
		if ev.Response != nil && ev.Response.Usage != nil {
			res.PromptTokens = ev.Response.Usage.InputTokens
			res.CompletionTokens = ev.Response.Usage.OutputTokens
			res.TotalTokens = ev.Response.Usage.TotalTokens
			chunk.Usage = &providers.ChatUsage{
				PromptTokens:     res.PromptTokens,
				CompletionTokens: res.CompletionTokens,
				TotalTokens:      res.TotalTokens,
			}
		}
		if err := writeDataLine(dst, chunk); err != nil {
			return false, err
		}
		writeDone(dst)
		return true, nil
	default:
		return dispatchError(payload, dst, modelID)
	}
}

// --- Anthropic Messages API ---

type anthropicEvent struct {
	Type  string `json:"type"`
	Delta *struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		StopReason  string `json:"stop_reason"`
	} `json:"delta,omitempty"`
	Usage *struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage,omitempty"`
	Message *struct {
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	} `json:"message,omitempty"`
}

func dispatchAnthropic(payload []byte, dst Writer, modelID string, res *Result) (bool, error) {
	var ev anthropicEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return false, nil
	}

	switch ev.Type {
	case "content_block_delta":
		if ev.Delta == nil {
			return false, nil
		}
		chunk := openaiChunk{Object: "chat.completion.chunk", Model: modelID, Choices: []openaiChunkChoi{{
			Delta: openaiChunkDelta{Content: ev.Delta.Text},
		}}}
		return false, writeDataLine(dst, chunk)
	case "message_delta":
		if ev.Usage != nil {
			res.CompletionTokens = ev.Usage.OutputTokens
			res.TotalTokens = res.PromptTokens + res.CompletionTokens
		}
		return false, nil
	case "message_start":
		if ev.Message != nil {
			res.PromptTokens = ev.Message.Usage.InputTokens
		}
		return false, nil
	case "message_stop":
		chunk := openaiChunk{Object: "chat.completion.chunk", Model: modelID, Choices: []openaiChunkChoi{{
			Delta:        openaiChunkDelta{},
			FinishReason: stop(),
		}}}
		if res.TotalTokens > 0 || res.PromptTokens > 0 {
			chunk.Usage = &providers.ChatUsage{
				PromptTokens:     res.PromptTokens,
				CompletionTokens: res.CompletionTokens,
				TotalTokens:      res.PromptTokens + res.CompletionTokens,
			}
		}
		if err := writeDataLine(dst, chunk); err != nil {
			return false, err
		}
		writeDone(dst)
		return true, nil
	default:
		return dispatchError(payload, dst, modelID)
	}
}

// --- Error events (shared across dialects, ) ---

type errorEvent struct {
	Type     string `json:"type"`
	Error    any    `json:"error"`
	Response *struct {
		Error any `json:"error"`
	} `json:"response,omitempty"`
}

func dispatchError(payload []byte, dst Writer, modelID string) (bool, error) {
	var ev errorEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return false, nil
	}

	var msg any
	switch {
	case ev.Type == "error" || ev.Type == "response.failed":
		msg = ev.Error
		if msg == nil && ev.Response != nil {
			msg = ev.Response.Error
		}
	case ev.Error != nil:
		msg = ev.Error
	default:
		return false, nil
	}

	chunk := openaiChunk{Object: "chat.completion.chunk", Model: modelID, Choices: []openaiChunkChoi{{
		Delta:        openaiChunkDelta{Content: fmt.Sprintf("\n\n[Error: %v]", msg)},
		FinishReason: stop(),
	}}}
	if err := writeDataLine(dst, chunk); err != nil {
		return false, err
	}
	writeDone(dst)
	return true, nil
}
