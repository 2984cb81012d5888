package protocol

import (
	"encoding/json"
	"log/slog"
)

// StreamEventType discriminates between llm_stream event kinds.
type StreamEventType string

const (
	StreamEventStart          StreamEventType = "start"
	StreamEventTextDelta      StreamEventType = "text_delta"
	StreamEventReasoningDelta StreamEventType = "reasoning_delta"
	StreamEventJSONDelta      StreamEventType = "json_delta"
	StreamEventFinal          StreamEventType = "final"
	StreamEventEnd            StreamEventType = "end"
)

// StreamPayload is the interface for llm_stream payload discrimination.
type StreamPayload interface {
	StreamEvent() StreamEventType
}

// StartPayload announces a fresh interaction. Any buffers previously
// accumulated for the same interaction id are stale after this event.
type StartPayload struct {
	PromptPreview string `json:"prompt_preview,omitempty"`
}

// StreamEvent returns the stream event type.
func (p StartPayload) StreamEvent() StreamEventType { return StreamEventStart }

// TextDeltaPayload is an incremental fragment of response text.
type TextDeltaPayload struct {
	Delta string `json:"delta"`
}

// StreamEvent returns the stream event type.
func (p TextDeltaPayload) StreamEvent() StreamEventType { return StreamEventTextDelta }

// ReasoningDeltaPayload is one discrete reasoning summary chunk. Chunks
// are delivered whole, not character by character, and are joined with
// newlines on accumulation.
type ReasoningDeltaPayload struct {
	Delta string `json:"delta"`
}

// StreamEvent returns the stream event type.
func (p ReasoningDeltaPayload) StreamEvent() StreamEventType { return StreamEventReasoningDelta }

// JSONDeltaPayload is a fragment of structured output.
type JSONDeltaPayload struct {
	Delta string `json:"delta"`
}

// StreamEvent returns the stream event type.
func (p JSONDeltaPayload) StreamEvent() StreamEventType { return StreamEventJSONDelta }

// FinalPayload is the authoritative interaction result. Non-nil Text and
// Reasoning replace whatever the deltas accumulated; they never append.
type FinalPayload struct {
	Text       *string         `json:"text"`
	Reasoning  *string         `json:"reasoning"`
	Usage      *Usage          `json:"usage,omitempty"`
	RawPayload json.RawMessage `json:"raw_payload,omitempty"`
}

// StreamEvent returns the stream event type.
func (p FinalPayload) StreamEvent() StreamEventType { return StreamEventFinal }

// EndPayload closes out an interaction with its terminal status.
type EndPayload struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// StreamEvent returns the stream event type.
func (p EndPayload) StreamEvent() StreamEventType { return StreamEventEnd }

// ParsedPayload parses the data field according to the envelope's event.
// Unknown events return (nil, nil) to tolerate server additions.
func (m LLMStreamMessage) ParsedPayload() (StreamPayload, error) {
	return ParseStreamPayload(m.Event, m.Data)
}

// ParseStreamPayload parses an llm_stream data payload for a known event.
func ParseStreamPayload(event StreamEventType, data json.RawMessage) (StreamPayload, error) {
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}

	switch event {
	case StreamEventStart:
		var p StartPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case StreamEventTextDelta:
		var p TextDeltaPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case StreamEventReasoningDelta:
		var p ReasoningDeltaPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case StreamEventJSONDelta:
		var p JSONDeltaPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case StreamEventFinal:
		var p FinalPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case StreamEventEnd:
		var p EndPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		slog.Warn("skipping unknown llm_stream event", "event", event)
		return nil, nil
	}
}
