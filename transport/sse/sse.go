// Package sse implements the plan stream transport over server-sent
// events. It covers the plain plan progress stream and the structured
// analysis stream, which requires a session-creation POST before the
// event stream is opened.
package sse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/82deutschmark/PlanExe-sub001/schema"
	"github.com/82deutschmark/PlanExe-sub001/transport"
)

// AnalysisRequest configures a structured analysis session. When set on
// the client, Connect creates the session first and then streams its
// events; the plan id passed to Connect becomes the task id.
type AnalysisRequest struct {
	ModelKey string
	Prompt   string
	Context  string
	// Schema, when non-nil, requests structured JSON output conforming
	// to the registered schema.
	Schema *schema.Entry
}

type createSessionRequest struct {
	TaskID       string          `json:"task_id"`
	ModelKey     string          `json:"model_key"`
	Prompt       string          `json:"prompt"`
	Context      string          `json:"context,omitempty"`
	SchemaName   string          `json:"schema_name,omitempty"`
	OutputSchema json.RawMessage `json:"output_schema,omitempty"`
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
}

// Client is an SSE transport.Transport.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	analysis   *AnalysisRequest

	mu     sync.Mutex
	cancel context.CancelFunc
	frames chan []byte
	closed chan transport.CloseInfo
	stop   chan struct{}

	closeOnce sync.Once
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for both session
// creation and the event stream.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithAnalysisSession switches the client into analysis mode: Connect
// creates an analysis session for the request and streams its events.
func WithAnalysisSession(req AnalysisRequest) Option {
	return func(c *Client) { c.analysis = &req }
}

// New creates an SSE transport rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect opens the event stream for the given plan or task id.
func (c *Client) Connect(ctx context.Context, planID string) (*transport.Handshake, error) {
	streamPath := fmt.Sprintf("/api/plans/%s/stream", url.PathEscape(planID))
	sessionID := planID

	if c.analysis != nil {
		id, err := c.createSession(ctx, planID)
		if err != nil {
			return nil, err
		}
		sessionID = id
		streamPath = fmt.Sprintf("/api/analysis/sessions/%s/stream", url.PathEscape(id))
	}

	streamCtx, cancel := context.WithCancel(context.Background())

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, c.baseURL+streamPath, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open event stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("open event stream: unexpected status %s", resp.Status)
	}

	c.mu.Lock()
	c.cancel = cancel
	c.frames = make(chan []byte, 64)
	c.closed = make(chan transport.CloseInfo, 1)
	c.stop = make(chan struct{})
	c.closeOnce = sync.Once{}
	frames, closed, stop := c.frames, c.closed, c.stop
	c.mu.Unlock()

	go c.readPump(resp.Body, frames, closed, stop, newTranslator(sessionID, c.logger))

	return &transport.Handshake{SessionID: sessionID, ClientID: sessionID}, nil
}

func (c *Client) createSession(ctx context.Context, taskID string) (string, error) {
	body := createSessionRequest{
		TaskID:   taskID,
		ModelKey: c.analysis.ModelKey,
		Prompt:   c.analysis.Prompt,
		Context:  c.analysis.Context,
	}
	if c.analysis.Schema != nil {
		body.SchemaName = c.analysis.Schema.Label
		body.OutputSchema = c.analysis.Schema.Schema
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode session request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/analysis/sessions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("create analysis session: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("create analysis session: unexpected status %s", resp.Status)
	}

	var created createSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decode session response: %w", err)
	}
	if created.SessionID == "" {
		return "", fmt.Errorf("create analysis session: empty session_id")
	}
	return created.SessionID, nil
}

// readPump parses the SSE byte stream, translates events into envelope
// frames, and delivers them until EOF or error. A stream_end frame
// marks the stream as complete; EOF after it counts as a clean close.
// Frames are dropped once Disconnect fires so a consumer that stopped
// draining cannot pin this goroutine.
func (c *Client) readPump(body io.ReadCloser, frames chan []byte, closed chan transport.CloseInfo, stop chan struct{}, tx *translator) {
	defer close(frames)
	defer body.Close()

	sawEnd := false
	parser := newEventParser(body)
	for {
		ev, err := parser.next()
		if err != nil {
			if err == io.EOF && sawEnd {
				closed <- transport.CloseInfo{Code: transport.CodeNormalClosure, Reason: "stream complete"}
			} else if err == io.EOF {
				closed <- transport.CloseInfo{Code: transport.CodeAbnormalClosure, Err: io.ErrUnexpectedEOF}
			} else {
				closed <- transport.CloseInfo{Code: transport.CodeAbnormalClosure, Err: err}
			}
			return
		}
		for _, frame := range tx.frames(ev) {
			if frameType(frame) == "stream_end" {
				sawEnd = true
			}
			select {
			case frames <- frame:
			case <-stop:
				closed <- transport.CloseInfo{Code: transport.CodeNormalClosure, Reason: "client disconnect"}
				return
			}
		}
	}
}

// frameFor passes through an event that already speaks the envelope.
// When the data lacks a type field, the SSE event name is injected so
// the frame is self-describing.
func frameFor(ev sseEvent) []byte {
	if len(ev.data) == 0 || !json.Valid(ev.data) {
		return nil
	}
	if ev.name == "" || frameType(ev.data) != "" {
		return ev.data
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(ev.data, &obj); err != nil {
		// Scalar or array payloads pass through untyped.
		return ev.data
	}
	obj["type"] = json.RawMessage(fmt.Sprintf("%q", ev.name))
	merged, err := json.Marshal(obj)
	if err != nil {
		return ev.data
	}
	return merged
}

func frameType(data []byte) string {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return ""
	}
	return envelope.Type
}

// Frames returns the frame channel for the current connection, or nil
// before Connect.
func (c *Client) Frames() <-chan []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames
}

// Closed returns the close notification channel for the current
// connection, or nil before Connect.
func (c *Client) Closed() <-chan transport.CloseInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Disconnect aborts the in-flight stream request.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	cancel, stop := c.cancel, c.stop
	c.mu.Unlock()
	if cancel == nil {
		return nil
	}
	c.closeOnce.Do(func() {
		close(stop)
		cancel()
	})
	return nil
}
