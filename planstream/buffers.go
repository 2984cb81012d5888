package planstream

import (
	"strings"
	"time"

	"github.com/82deutschmark/PlanExe-sub001/protocol"
)

// interactionState accumulates the growing buffers for one LLM
// interaction. Text and JSON deltas concatenate directly; reasoning
// deltas are newline-joined, matching how the server emits reasoning
// summary chunks.
type interactionState struct {
	id            protocol.InteractionID
	stage         string
	promptPreview string

	text      strings.Builder
	reasoning []string
	jsonBuf   strings.Builder

	usage        *protocol.Usage
	lastSequence int
	updatedAt    time.Time

	// finalized is set once a final payload lands; later deltas for
	// this interaction are dropped.
	finalized bool

	ended     bool
	endStatus protocol.StatusClass
	endError  string
}

// accumulator owns all per-interaction buffers for a session. It is not
// safe for concurrent use; the session serializes access.
type accumulator struct {
	order  []protocol.InteractionID
	byID   map[protocol.InteractionID]*interactionState
	active protocol.InteractionID
}

func newAccumulator() *accumulator {
	return &accumulator{byID: make(map[protocol.InteractionID]*interactionState)}
}

// get returns the state for id, creating it on first sight. Interaction
// order is first-seen, so deltas arriving before an explicit start
// still land in the right buffer.
func (a *accumulator) get(id protocol.InteractionID) *interactionState {
	if st, ok := a.byID[id]; ok {
		return st
	}
	st := &interactionState{id: id}
	a.byID[id] = st
	a.order = append(a.order, id)
	return st
}

func (a *accumulator) lookup(id protocol.InteractionID) (*interactionState, bool) {
	st, ok := a.byID[id]
	return st, ok
}

// start begins (or restarts) an interaction. Buffers accumulated for
// the same id before a start are stale and are discarded; the id keeps
// its position in first-seen order.
func (a *accumulator) start(msg protocol.LLMStreamMessage, p protocol.StartPayload, at time.Time) *interactionState {
	if _, ok := a.byID[msg.InteractionID]; !ok {
		a.order = append(a.order, msg.InteractionID)
	}
	st := &interactionState{id: msg.InteractionID}
	a.byID[msg.InteractionID] = st
	st.stage = msg.Stage
	st.promptPreview = p.PromptPreview
	st.touch(msg.Sequence, at)
	a.active = msg.InteractionID
	return st
}

// appendText adds a text delta. Empty deltas and deltas after final are
// no-ops; the return reports whether the buffer changed.
func (a *accumulator) appendText(id protocol.InteractionID, delta string, seq int, at time.Time) bool {
	if delta == "" {
		return false
	}
	st := a.get(id)
	if st.finalized {
		return false
	}
	st.text.WriteString(delta)
	st.touch(seq, at)
	return true
}

func (a *accumulator) appendReasoning(id protocol.InteractionID, delta string, seq int, at time.Time) bool {
	if delta == "" {
		return false
	}
	st := a.get(id)
	if st.finalized {
		return false
	}
	st.reasoning = append(st.reasoning, delta)
	st.touch(seq, at)
	return true
}

func (a *accumulator) appendJSON(id protocol.InteractionID, delta string, seq int, at time.Time) bool {
	if delta == "" {
		return false
	}
	st := a.get(id)
	if st.finalized {
		return false
	}
	st.jsonBuf.WriteString(delta)
	st.touch(seq, at)
	return true
}

// applyFinal replaces the accumulated buffers with the authoritative
// final values. Text and reasoning are treated the same way: a present
// field replaces the buffer, an absent one leaves the accumulation as
// the best available value.
func (a *accumulator) applyFinal(id protocol.InteractionID, p protocol.FinalPayload, seq int, at time.Time) *interactionState {
	st := a.get(id)
	if p.Text != nil {
		st.text.Reset()
		st.text.WriteString(*p.Text)
	}
	if p.Reasoning != nil {
		st.reasoning = []string{*p.Reasoning}
	}
	if p.Usage != nil {
		u := *p.Usage
		st.usage = &u
	}
	st.finalized = true
	st.touch(seq, at)
	return st
}

// end marks the interaction closed. The buffers stay readable; only the
// active pointer is cleared, and only when it points at this
// interaction.
func (a *accumulator) end(id protocol.InteractionID, p protocol.EndPayload, seq int, at time.Time) *interactionState {
	st := a.get(id)
	st.ended = true
	st.endStatus = protocol.NormalizeStatus(p.Status)
	st.endError = p.Error
	st.touch(seq, at)
	if a.active == id {
		a.active = ""
	}
	return st
}

func (a *accumulator) reset() {
	a.order = nil
	a.byID = make(map[protocol.InteractionID]*interactionState)
	a.active = ""
}

func (st *interactionState) touch(seq int, at time.Time) {
	if seq > st.lastSequence {
		st.lastSequence = seq
	}
	if !at.IsZero() {
		st.updatedAt = at
	}
}

func (st *interactionState) reasoningText() string {
	return strings.Join(st.reasoning, "\n")
}
