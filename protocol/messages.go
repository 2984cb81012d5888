package protocol

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
)

// MessageType discriminates between message kinds on the plan stream.
type MessageType string

const (
	MessageTypeStatus    MessageType = "status"
	MessageTypeLog       MessageType = "log"
	MessageTypeHeartbeat MessageType = "heartbeat"
	MessageTypeStreamEnd MessageType = "stream_end"
	MessageTypeLLMStream MessageType = "llm_stream"
)

// Message is the interface for all stream messages.
type Message interface {
	MsgType() MessageType
}

// InteractionID identifies one LLM interaction within a plan run. The
// backend emits integer ids for pipeline interactions and string ids for
// ad-hoc conversation turns, so the wire value may be either.
type InteractionID string

// UnmarshalJSON accepts a JSON number or string.
func (id *InteractionID) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = InteractionID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("interaction id must be a number or string: %w", err)
	}
	*id = InteractionID(n.String())
	return nil
}

// MarshalJSON writes integer-looking ids back as numbers.
func (id InteractionID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return json.Marshal(n)
	}
	return json.Marshal(string(id))
}

func (id InteractionID) String() string { return string(id) }

// StatusMessage carries pipeline/session status transitions.
type StatusMessage struct {
	ProgressPercentage *int        `json:"progress_percentage,omitempty"`
	Type               MessageType `json:"type"`
	Status             string      `json:"status"`
	Message            string      `json:"message,omitempty"`
	Timestamp          string      `json:"timestamp,omitempty"`
	StallWarning       bool        `json:"stall_warning,omitempty"`
}

// MsgType returns the message type.
func (m StatusMessage) MsgType() MessageType { return MessageTypeStatus }

// LogMessage carries one pipeline log line.
type LogMessage struct {
	Type      MessageType `json:"type"`
	Message   string      `json:"message"`
	Timestamp string      `json:"timestamp,omitempty"`
}

// MsgType returns the message type.
func (m LogMessage) MsgType() MessageType { return MessageTypeLog }

// HeartbeatMessage is a keepalive; it never mutates buffers.
type HeartbeatMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp,omitempty"`
}

// MsgType returns the message type.
func (m HeartbeatMessage) MsgType() MessageType { return MessageTypeHeartbeat }

// StreamEndMessage signals the server is done emitting and is about to
// close the connection. Status is optional; when present and it
// normalizes to a failure bucket the stream ended unsuccessfully.
type StreamEndMessage struct {
	Type      MessageType `json:"type"`
	Status    string      `json:"status,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp string      `json:"timestamp,omitempty"`
}

// MsgType returns the message type.
func (m StreamEndMessage) MsgType() MessageType { return MessageTypeStreamEnd }

// LLMStreamMessage is the envelope for per-interaction streaming events
// (start, deltas, final, end). Data holds the event-specific payload and
// is parsed lazily via ParsedPayload.
type LLMStreamMessage struct {
	Type          MessageType     `json:"type"`
	PlanID        string          `json:"plan_id,omitempty"`
	Stage         string          `json:"stage,omitempty"`
	InteractionID InteractionID   `json:"interaction_id"`
	Event         StreamEventType `json:"event"`
	Timestamp     string          `json:"timestamp,omitempty"`
	Data          json.RawMessage `json:"data,omitempty"`
	Sequence      int             `json:"sequence,omitempty"`
}

// MsgType returns the message type.
func (m LLMStreamMessage) MsgType() MessageType { return MessageTypeLLMStream }

// ParseMessage parses a single JSON frame into a typed message.
// Unknown message types return (nil, nil) so that callers can skip
// forward-compatible server additions without failing.
func ParseMessage(data []byte) (Message, error) {
	var base struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("parse message envelope: %w", err)
	}

	switch base.Type {
	case MessageTypeStatus:
		var m StatusMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case MessageTypeLog:
		var m LogMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case MessageTypeHeartbeat:
		var m HeartbeatMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case MessageTypeStreamEnd:
		var m StreamEndMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case MessageTypeLLMStream:
		var m LLMStreamMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	default:
		slog.Warn("skipping unknown message type", "type", base.Type)
		return nil, nil
	}
}
