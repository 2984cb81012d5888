package planstream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/82deutschmark/PlanExe-sub001/protocol"
)

func TestAccumulatorFirstSeenOrder(t *testing.T) {
	acc := newAccumulator()
	acc.appendText("2", "b", 1, time.Time{})
	acc.appendText("1", "a", 2, time.Time{})
	acc.appendText("2", "b2", 3, time.Time{})

	assert.Equal(t, []protocol.InteractionID{"2", "1"}, acc.order)
	st, _ := acc.lookup("2")
	assert.Equal(t, "bb2", st.text.String())
	assert.Equal(t, 3, st.lastSequence)
}

func TestAccumulatorEmptyDeltaNoOp(t *testing.T) {
	acc := newAccumulator()
	assert.False(t, acc.appendText("1", "", 1, time.Time{}))
	assert.False(t, acc.appendReasoning("1", "", 1, time.Time{}))
	assert.False(t, acc.appendJSON("1", "", 1, time.Time{}))
	// An empty delta does not even register the interaction.
	_, ok := acc.lookup("1")
	assert.False(t, ok)
}

func TestAccumulatorFinalReplacesSymmetrically(t *testing.T) {
	acc := newAccumulator()
	acc.appendText("1", "streamed", 1, time.Time{})
	acc.appendReasoning("1", "thinking", 2, time.Time{})

	text := "authoritative"
	acc.applyFinal("1", protocol.FinalPayload{Text: &text}, 3, time.Time{})

	st, _ := acc.lookup("1")
	assert.Equal(t, "authoritative", st.text.String())
	// Reasoning was absent from the final, so the accumulation stands.
	assert.Equal(t, "thinking", st.reasoningText())
	assert.True(t, st.finalized)

	assert.False(t, acc.appendText("1", "late", 4, time.Time{}))
	assert.Equal(t, "authoritative", st.text.String())
}

func TestStartResetsStaleBuffers(t *testing.T) {
	acc := newAccumulator()
	acc.appendText("1", "stale output", 1, time.Time{})
	acc.start(protocol.LLMStreamMessage{InteractionID: "1", Stage: "plan"},
		protocol.StartPayload{PromptPreview: "retry"}, time.Time{})

	st, _ := acc.lookup("1")
	assert.Empty(t, st.text.String())
	assert.Equal(t, "retry", st.promptPreview)
	assert.Equal(t, []protocol.InteractionID{"1"}, acc.order)
}

func TestAccumulatorEndClearsOnlyMatchingActive(t *testing.T) {
	acc := newAccumulator()
	acc.start(protocol.LLMStreamMessage{InteractionID: "5"}, protocol.StartPayload{}, time.Time{})
	assert.Equal(t, protocol.InteractionID("5"), acc.active)

	acc.end("3", protocol.EndPayload{Status: "completed"}, 1, time.Time{})
	assert.Equal(t, protocol.InteractionID("5"), acc.active)

	acc.end("5", protocol.EndPayload{Status: "completed"}, 2, time.Time{})
	assert.Equal(t, protocol.InteractionID(""), acc.active)
}
