package planstream

import (
	"time"

	"github.com/82deutschmark/PlanExe-sub001/protocol"
)

// InteractionSnapshot is an immutable view of one interaction's
// accumulated state.
type InteractionSnapshot struct {
	ID            protocol.InteractionID
	Stage         string
	PromptPreview string

	// Text is the accumulated (or final, once finalized) response text.
	Text string
	// Reasoning is the newline-joined reasoning summary.
	Reasoning string
	// JSON is the accumulated structured-output buffer. It may be an
	// incomplete JSON document until the interaction finalizes.
	JSON string

	Usage        *protocol.Usage
	LastSequence int
	UpdatedAt    time.Time

	Finalized bool
	Ended     bool
	EndStatus protocol.StatusClass
	EndError  string
}

// Snapshot is an immutable view of the whole session. Subscribers
// receive snapshots and may retain them; no field aliases engine
// internals.
type Snapshot struct {
	PlanID string
	Status Status

	// Progress is the latest reported completion percentage, nil until
	// the server reports one.
	Progress     *int
	StallWarning bool
	// StatusDetail is the latest raw status string from the server.
	StatusDetail string

	LastHeartbeat   time.Time
	LastServerEvent time.Time

	// Err describes the failure when Status is StatusError.
	Err error

	// Interactions are ordered by first appearance on the stream.
	Interactions []InteractionSnapshot
	// ActiveInteraction is the id of the interaction currently
	// streaming, or empty.
	ActiveInteraction protocol.InteractionID
}

// Interaction returns the snapshot for id, if present.
func (s Snapshot) Interaction(id protocol.InteractionID) (InteractionSnapshot, bool) {
	for _, in := range s.Interactions {
		if in.ID == id {
			return in, true
		}
	}
	return InteractionSnapshot{}, false
}

func snapshotInteraction(st *interactionState) InteractionSnapshot {
	var usage *protocol.Usage
	if st.usage != nil {
		u := *st.usage
		usage = &u
	}
	return InteractionSnapshot{
		ID:            st.id,
		Stage:         st.stage,
		PromptPreview: st.promptPreview,
		Text:          st.text.String(),
		Reasoning:     st.reasoningText(),
		JSON:          st.jsonBuf.String(),
		Usage:         usage,
		LastSequence:  st.lastSequence,
		UpdatedAt:     st.updatedAt,
		Finalized:     st.finalized,
		Ended:         st.ended,
		EndStatus:     st.endStatus,
		EndError:      st.endError,
	}
}
