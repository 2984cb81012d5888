package sse

import (
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/82deutschmark/PlanExe-sub001/protocol"
)

func testTranslator(sessionID string) *translator {
	return newTranslator(sessionID, slog.Default())
}

func parseEnvelope(t *testing.T, frame []byte) protocol.LLMStreamMessage {
	t.Helper()
	msg, err := protocol.ParseMessage(frame)
	require.NoError(t, err)
	env, ok := msg.(protocol.LLMStreamMessage)
	require.True(t, ok, "expected llm_stream frame, got %T", msg)
	return env
}

func TestTranslatorStatusOpensInteractionOnce(t *testing.T) {
	tx := testTranslator("sess-1")

	out := tx.frames(sseEvent{name: "stream.status", data: []byte(
		`{"status":"running","message":"Analysis stream started","interactionId":42}`)})
	require.Len(t, out, 2)

	msg, err := protocol.ParseMessage(out[0])
	require.NoError(t, err)
	status, ok := msg.(protocol.StatusMessage)
	require.True(t, ok)
	assert.Equal(t, "running", status.Status)

	start := parseEnvelope(t, out[1])
	assert.Equal(t, protocol.StreamEventStart, start.Event)
	assert.Equal(t, protocol.InteractionID("42"), start.InteractionID)

	// A second status never reopens the interaction.
	out = tx.frames(sseEvent{name: "stream.status", data: []byte(`{"status":"running"}`)})
	require.Len(t, out, 1)
}

func TestTranslatorChunkKinds(t *testing.T) {
	tests := []struct {
		kind string
		want protocol.StreamEventType
	}{
		{"text", protocol.StreamEventTextDelta},
		{"reasoning", protocol.StreamEventReasoningDelta},
		{"json", protocol.StreamEventJSONDelta},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			tx := testTranslator("sess-1")
			out := tx.frames(sseEvent{name: "stream.chunk", data: []byte(
				`{"kind":"` + tt.kind + `","delta":"abc"}`)})
			require.Len(t, out, 1)

			env := parseEnvelope(t, out[0])
			assert.Equal(t, tt.want, env.Event)

			var payload struct {
				Delta string `json:"delta"`
			}
			require.NoError(t, json.Unmarshal(env.Data, &payload))
			assert.Equal(t, "abc", payload.Delta)
		})
	}
}

func TestTranslatorUnknownChunkKindSkipped(t *testing.T) {
	tx := testTranslator("sess-1")
	out := tx.frames(sseEvent{name: "stream.chunk", data: []byte(`{"kind":"audio","delta":"x"}`)})
	assert.Empty(t, out)
}

func TestTranslatorFallsBackToSessionID(t *testing.T) {
	tx := testTranslator("sess-55")
	out := tx.frames(sseEvent{name: "stream.chunk", data: []byte(`{"kind":"text","delta":"hi"}`)})
	require.Len(t, out, 1)
	env := parseEnvelope(t, out[0])
	assert.Equal(t, protocol.InteractionID("sess-55"), env.InteractionID)
}

func TestTranslatorCompleteEmitsFinalEndAndStreamEnd(t *testing.T) {
	tx := testTranslator("sess-1")
	tx.frames(sseEvent{name: "stream.status", data: []byte(`{"status":"running","interactionId":9}`)})

	out := tx.frames(sseEvent{name: "stream.complete", data: []byte(
		`{"responseSummary":{"analysis":"done","reasoning":"why","tokenUsage":{"input_tokens":8,"output_tokens":2},"parsed":{"ok":true}}}`)})
	require.Len(t, out, 3)

	final := parseEnvelope(t, out[0])
	assert.Equal(t, protocol.StreamEventFinal, final.Event)
	var fp protocol.FinalPayload
	require.NoError(t, json.Unmarshal(final.Data, &fp))
	require.NotNil(t, fp.Text)
	assert.Equal(t, "done", *fp.Text)
	require.NotNil(t, fp.Usage)
	assert.Equal(t, 8, fp.Usage.InputTokens)
	assert.JSONEq(t, `{"ok":true}`, string(fp.RawPayload))

	end := parseEnvelope(t, out[1])
	assert.Equal(t, protocol.StreamEventEnd, end.Event)

	msg, err := protocol.ParseMessage(out[2])
	require.NoError(t, err)
	se, ok := msg.(protocol.StreamEndMessage)
	require.True(t, ok)
	assert.Equal(t, "completed", se.Status)
}

func TestTranslatorErrorText(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"string", `{"error":"rate limited"}`, "rate limited"},
		{"object", `{"error":{"code":"ERR","detail":"boom"}}`, `{"code":"ERR","detail":"boom"}`},
		{"missing", `{}`, "analysis stream failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := testTranslator("sess-1")
			out := tx.frames(sseEvent{name: "stream.error", data: []byte(tt.data)})
			require.Len(t, out, 2)

			end := parseEnvelope(t, out[0])
			assert.Equal(t, protocol.StreamEventEnd, end.Event)
			var ep protocol.EndPayload
			require.NoError(t, json.Unmarshal(end.Data, &ep))
			assert.Equal(t, "failed", ep.Status)
			assert.Equal(t, tt.want, ep.Error)

			msg, err := protocol.ParseMessage(out[1])
			require.NoError(t, err)
			se, ok := msg.(protocol.StreamEndMessage)
			require.True(t, ok)
			assert.Equal(t, "failed", se.Status)
			assert.Equal(t, tt.want, se.Message)
		})
	}
}

func TestTranslatorIgnoresInitAndUnknownEvents(t *testing.T) {
	tx := testTranslator("sess-1")
	assert.Empty(t, tx.frames(sseEvent{name: "stream.init", data: []byte(`{"sessionId":"sess-1"}`)}))
	assert.Empty(t, tx.frames(sseEvent{name: "stream.resumed", data: []byte(`{}`)}))
	assert.Empty(t, tx.frames(sseEvent{name: "stream.chunk", data: []byte(`not json`)}))
}
