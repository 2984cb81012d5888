package sse

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"github.com/82deutschmark/PlanExe-sub001/protocol"
)

// translator maps parsed SSE events onto plan stream envelope frames.
// Plain plan streams already speak the envelope and pass through; the
// analysis stream speaks its own vocabulary (stream.init, stream.status,
// stream.chunk, stream.complete, stream.error) and is rewritten into
// the equivalent status / llm_stream / stream_end frames.
type translator struct {
	logger *slog.Logger

	// fallback identifies the analysis interaction when the server has
	// not named one; the session id serves.
	fallback    protocol.InteractionID
	interaction protocol.InteractionID
	started     bool
	seq         int
}

func newTranslator(sessionID string, logger *slog.Logger) *translator {
	return &translator{
		logger:   logger,
		fallback: protocol.InteractionID(sessionID),
	}
}

// frames converts one SSE event into zero or more envelope frames.
func (t *translator) frames(ev sseEvent) [][]byte {
	if len(ev.data) == 0 {
		return nil
	}
	if !json.Valid(ev.data) {
		t.logger.Warn("discarding non-JSON event data", "event", ev.name)
		return nil
	}
	if strings.HasPrefix(ev.name, "stream.") {
		return t.analysisFrames(ev)
	}
	if frame := frameFor(ev); frame != nil {
		return [][]byte{frame}
	}
	return nil
}

func (t *translator) analysisFrames(ev sseEvent) [][]byte {
	switch ev.name {
	case "stream.init":
		// Connection acknowledgment; carries nothing the engine tracks.
		return nil
	case "stream.status":
		return t.statusFrames(ev.data)
	case "stream.chunk":
		return t.chunkFrames(ev.data)
	case "stream.complete":
		return t.completeFrames(ev.data)
	case "stream.error":
		return t.errorFrames(ev.data)
	default:
		t.logger.Warn("skipping unknown analysis event", "event", ev.name)
		return nil
	}
}

func (t *translator) statusFrames(data []byte) [][]byte {
	var p struct {
		Status        string                 `json:"status"`
		Message       string                 `json:"message"`
		StartedAt     string                 `json:"startedAt"`
		InteractionID protocol.InteractionID `json:"interactionId"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		t.logger.Warn("dropping malformed stream.status", "error", err)
		return nil
	}
	if p.InteractionID != "" {
		t.interaction = p.InteractionID
	}

	out := [][]byte{marshalFrame(protocol.StatusMessage{
		Type:      protocol.MessageTypeStatus,
		Status:    p.Status,
		Message:   p.Message,
		Timestamp: p.StartedAt,
	})}

	// The first status opens the analysis interaction so deltas land
	// against a live, active buffer.
	if !t.started {
		t.started = true
		out = append(out, t.envelope(protocol.StreamEventStart, p.StartedAt, protocol.StartPayload{}))
	}
	return out
}

func (t *translator) chunkFrames(data []byte) [][]byte {
	var p struct {
		Kind      string `json:"kind"`
		Delta     string `json:"delta"`
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		t.logger.Warn("dropping malformed stream.chunk", "error", err)
		return nil
	}

	var event protocol.StreamEventType
	switch p.Kind {
	case "text":
		event = protocol.StreamEventTextDelta
	case "reasoning":
		event = protocol.StreamEventReasoningDelta
	case "json":
		event = protocol.StreamEventJSONDelta
	default:
		t.logger.Warn("skipping unknown chunk kind", "kind", p.Kind)
		return nil
	}
	return [][]byte{t.envelope(event, p.Timestamp, protocol.TextDeltaPayload{Delta: p.Delta})}
}

func (t *translator) completeFrames(data []byte) [][]byte {
	var p struct {
		ResponseSummary struct {
			Analysis   *string         `json:"analysis"`
			Reasoning  *string         `json:"reasoning"`
			TokenUsage *protocol.Usage `json:"tokenUsage"`
			Parsed     json.RawMessage `json:"parsed"`
		} `json:"responseSummary"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		t.logger.Warn("dropping malformed stream.complete", "error", err)
		return nil
	}

	final := protocol.FinalPayload{
		Text:      p.ResponseSummary.Analysis,
		Reasoning: p.ResponseSummary.Reasoning,
	}
	if u := p.ResponseSummary.TokenUsage; u != nil && !u.IsZero() {
		final.Usage = u
	}
	if len(p.ResponseSummary.Parsed) > 0 && string(p.ResponseSummary.Parsed) != "null" {
		final.RawPayload = p.ResponseSummary.Parsed
	}

	return [][]byte{
		t.envelope(protocol.StreamEventFinal, "", final),
		t.envelope(protocol.StreamEventEnd, "", protocol.EndPayload{Status: "completed"}),
		marshalFrame(protocol.StreamEndMessage{
			Type:   protocol.MessageTypeStreamEnd,
			Status: "completed",
		}),
	}
}

func (t *translator) errorFrames(data []byte) [][]byte {
	var p struct {
		Error     json.RawMessage `json:"error"`
		Timestamp string          `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		t.logger.Warn("dropping malformed stream.error", "error", err)
		return nil
	}

	message := errorText(p.Error)
	return [][]byte{
		t.envelope(protocol.StreamEventEnd, p.Timestamp, protocol.EndPayload{Status: "failed", Error: message}),
		marshalFrame(protocol.StreamEndMessage{
			Type:      protocol.MessageTypeStreamEnd,
			Status:    "failed",
			Message:   message,
			Timestamp: p.Timestamp,
		}),
	}
}

// errorText normalizes the error field, which the server sends either
// as a plain string or as a structured provider error object.
func errorText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return "analysis stream failed"
	}
	if raw[0] == '"' {
		if s, err := strconv.Unquote(string(raw)); err == nil && s != "" {
			return s
		}
	}
	return string(raw)
}

func (t *translator) envelope(event protocol.StreamEventType, ts string, payload protocol.StreamPayload) []byte {
	id := t.interaction
	if id == "" {
		id = t.fallback
	}
	t.seq++
	data, err := json.Marshal(payload)
	if err != nil {
		data = json.RawMessage("{}")
	}
	return marshalFrame(protocol.LLMStreamMessage{
		Type:          protocol.MessageTypeLLMStream,
		Stage:         "analysis",
		InteractionID: id,
		Event:         event,
		Timestamp:     ts,
		Data:          data,
		Sequence:      t.seq,
	})
}

func marshalFrame(msg protocol.Message) []byte {
	frame, err := json.Marshal(msg)
	if err != nil {
		// All frame types marshal cleanly; this cannot fire for them.
		return []byte(`{}`)
	}
	return frame
}
