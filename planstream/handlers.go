package planstream

import "github.com/82deutschmark/PlanExe-sub001/protocol"

// Handlers are optional per-event callbacks for a session. All fields
// may be nil. Callbacks run on the session's read loop, so they must
// not block; they fire before the coalesced snapshot publication for
// the same event.
type Handlers struct {
	OnStatus    func(msg protocol.StatusMessage, class protocol.StatusClass)
	OnLog       func(msg protocol.LogMessage)
	OnHeartbeat func(msg protocol.HeartbeatMessage)

	OnInteractionStart func(id protocol.InteractionID, stage string, p protocol.StartPayload)
	OnTextDelta        func(id protocol.InteractionID, delta string)
	OnReasoningDelta   func(id protocol.InteractionID, delta string)
	OnJSONDelta        func(id protocol.InteractionID, delta string)
	OnFinal            func(id protocol.InteractionID, p protocol.FinalPayload)
	OnInteractionEnd   func(id protocol.InteractionID, p protocol.EndPayload)

	OnStreamEnd func(msg protocol.StreamEndMessage)
	OnError     func(err error)
}
