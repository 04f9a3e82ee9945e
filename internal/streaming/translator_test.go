package streaming

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bufWriter is a test Writer: an io.Writer with a no-op Flush, for
// capturing SSE output in tests without a real http.ResponseWriter.
type bufWriter struct{ bytes.Buffer }

func (w *bufWriter) Flush() {}

func TestPassThrough_ForwardsBytesVerbatim(t *testing.T) {
	upstream := "data: {\"choices\":[{\"delta\":{\"content\":\"hi\"}}]}\n\ndata: [DONE]\n\n"
	var dst bufWriter
	res, err := PassThrough(context.Background(), &dst, strings.NewReader(upstream))
	require.NoError(t, err)
	assert.Equal(t, upstream, dst.String())
	assert.Equal(t, int64(len(upstream)), res.BytesSeen)
}

func TestPassThrough_AccumulatesUsageOpportunistically(t *testing.T) {
	upstream := "data: {\"usage\":{\"prompt_tokens\":5,\"completion_tokens\":2,\"total_tokens\":7}}\n\n"
	var dst bufWriter
	res, err := PassThrough(context.Background(), &dst, strings.NewReader(upstream))
	require.NoError(t, err)
	assert.Equal(t, 5, res.PromptTokens)
	assert.Equal(t, 2, res.CompletionTokens)
	assert.Equal(t, 7, res.TotalTokens)
}

// TestTransform_Gemini_TwoEvents covers two Gemini SSE events arriving, the
// second carrying finishReason and usage metadata, and checks the translator
// emits exactly two OpenAI chunks followed by a terminating [DONE].
func TestTransform_Gemini_TwoEvents(t *testing.T) {
	upstream := "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"Hel\"}]}}]}\n\n" +
		"data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"lo\"}]},\"finishReason\":\"STOP\"}],\"response\":{\"usageMetadata\":{\"promptTokenCount\":5,\"candidatesTokenCount\":2,\"totalTokenCount\":7}}}\n\n"

	var dst bufWriter
	res, err := Transform(context.Background(), &dst, strings.NewReader(upstream), DialectGemini, "gemini-2.0-flash")
	require.NoError(t, err)

	out := dst.String()
	assert.Contains(t, out, `"content":"Hel"`)
	assert.Contains(t, out, `"content":"lo"`)
	assert.Contains(t, out, `"finish_reason":"stop"`)
	assert.True(t, strings.HasSuffix(out, "data: [DONE]\n\n"))
	assert.Equal(t, 3, strings.Count(out, "data: "), "two chunks plus [DONE]")
	assert.Equal(t, 5, res.PromptTokens)
	assert.Equal(t, 2, res.CompletionTokens)
}

func TestTransform_Gemini_DropsThoughtSignatureParts(t *testing.T) {
	upstream := "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"secret\",\"thoughtSignature\":\"x\"},{\"text\":\"visible\"}]},\"finishReason\":\"STOP\"}]}\n\n"
	var dst bufWriter
	_, err := Transform(context.Background(), &dst, strings.NewReader(upstream), DialectGemini, "m")
	require.NoError(t, err)
	assert.NotContains(t, dst.String(), "secret")
	assert.Contains(t, dst.String(), "visible")
}

func TestTransform_Responses_DeltaThenCompleted(t *testing.T) {
	upstream := "data: {\"type\":\"response.output_text.delta\",\"delta\":\"hi\"}\n\n" +
		"data: {\"type\":\"response.completed\",\"response\":{\"usage\":{\"input_tokens\":3,\"output_tokens\":1,\"total_tokens\":4}}}\n\n"
	var dst bufWriter
	res, err := Transform(context.Background(), &dst, strings.NewReader(upstream), DialectResponses, "codex-mini")
	require.NoError(t, err)
	out := dst.String()
	assert.Contains(t, out, `"content":"hi"`)
	assert.Contains(t, out, `"finish_reason":"stop"`)
	assert.True(t, strings.HasSuffix(out, "data: [DONE]\n\n"))
	assert.Equal(t, 3, res.PromptTokens)
	assert.Equal(t, 1, res.CompletionTokens)
}

func TestTransform_Anthropic_ContentBlockThenStop(t *testing.T) {
	upstream := "data: {\"type\":\"message_start\",\"message\":{\"usage\":{\"input_tokens\":10,\"output_tokens\":0}}}\n\n" +
		"data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"yo\"}}\n\n" +
		"data: {\"type\":\"message_delta\",\"usage\":{\"output_tokens\":1}}\n\n" +
		"data: {\"type\":\"message_stop\"}\n\n"
	var dst bufWriter
	res, err := Transform(context.Background(), &dst, strings.NewReader(upstream), DialectAnthropic, "claude-opus")
	require.NoError(t, err)
	out := dst.String()
	assert.Contains(t, out, `"content":"yo"`)
	assert.True(t, strings.HasSuffix(out, "data: [DONE]\n\n"))
	assert.Equal(t, 10, res.PromptTokens)
	assert.Equal(t, 1, res.CompletionTokens)
}

func TestTransform_ErrorEvent_EmitsSingleChunkThenDone(t *testing.T) {
	upstream := "data: {\"type\":\"error\",\"error\":{\"message\":\"boom\"}}\n\n"
	var dst bufWriter
	_, err := Transform(context.Background(), &dst, strings.NewReader(upstream), DialectGemini, "m")
	require.NoError(t, err)
	out := dst.String()
	assert.Contains(t, out, "[Error:")
	assert.True(t, strings.HasSuffix(out, "data: [DONE]\n\n"))
}

func TestTransform_UnknownEventType_SilentlyDiscarded(t *testing.T) {
	upstream := "data: {\"type\":\"response.in_progress\"}\n\n" +
		"data: {\"type\":\"response.output_text.delta\",\"delta\":\"ok\"}\n\n"
	var dst bufWriter
	_, err := Transform(context.Background(), &dst, strings.NewReader(upstream), DialectResponses, "m")
	require.NoError(t, err)
	// Exactly one chunk emitted for the known event; the unknown one produced
	// no output of its own.
	assert.Equal(t, 1, strings.Count(dst.String(), "data:"))
}

func TestTransform_NormalizesCRLF(t *testing.T) {
	upstream := "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"hi\"}]},\"finishReason\":\"STOP\"}]}\r\n\r\n"
	var dst bufWriter
	_, err := Transform(context.Background(), &dst, strings.NewReader(upstream), DialectGemini, "m")
	require.NoError(t, err)
	assert.Contains(t, dst.String(), `"content":"hi"`)
}

// TestTransform_Idempotent_ByteFraming checks that re-parsing the
// translator's own emitted OpenAI SSE through the pass-through path yields
// the same sequence of deltas it produced.
func TestTransform_Idempotent_ByteFraming(t *testing.T) {
	upstream := "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"Hel\"}]}}]}\n\n" +
		"data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"lo\"}]},\"finishReason\":\"STOP\"}]}\n\n"
	var first bufWriter
	_, err := Transform(context.Background(), &first, strings.NewReader(upstream), DialectGemini, "m")
	require.NoError(t, err)

	var second bufWriter
	_, err = PassThrough(context.Background(), &second, strings.NewReader(first.String()))
	require.NoError(t, err)
	assert.Equal(t, first.String(), second.String())
}
