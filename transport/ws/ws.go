// Package ws implements the plan stream transport over WebSocket using
// the /ws/plans/{plan_id} endpoint.
package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/82deutschmark/PlanExe-sub001/transport"
)

const (
	defaultHandshakeTimeout = 10 * time.Second

	// readLimit bounds a single frame. Plan events are small; the final
	// payload carries full text and raw provider output, so leave room.
	readLimit = 8 << 20
)

// Client is a WebSocket transport.Transport. A Client is single-use per
// connection: Connect dials, Disconnect tears down. The zero value is
// not usable; call New.
type Client struct {
	baseURL  string
	clientID string
	dialer   *websocket.Dialer
	header   http.Header
	logger   *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	frames chan []byte
	closed chan transport.CloseInfo
	stop   chan struct{}

	closeOnce sync.Once
}

// Option configures a Client.
type Option func(*Client)

// WithClientID overrides the generated client identifier sent in the
// client_id query parameter.
func WithClientID(id string) Option {
	return func(c *Client) { c.clientID = id }
}

// WithDialer replaces the underlying websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithHeader sets extra headers sent during the upgrade request.
func WithHeader(h http.Header) Option {
	return func(c *Client) { c.header = h }
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a WebSocket transport rooted at baseURL, e.g.
// "http://localhost:8000". The scheme is translated to ws/wss when
// dialing.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:  baseURL,
		clientID: uuid.NewString(),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: defaultHandshakeTimeout,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the plan stream endpoint and starts the read pump.
func (c *Client) Connect(ctx context.Context, planID string) (*transport.Handshake, error) {
	endpoint, err := c.endpoint(planID)
	if err != nil {
		return nil, err
	}

	conn, resp, err := c.dialer.DialContext(ctx, endpoint, c.header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %s)", endpoint, err, resp.Status)
		}
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	conn.SetReadLimit(readLimit)

	c.mu.Lock()
	c.conn = conn
	c.frames = make(chan []byte, 64)
	c.closed = make(chan transport.CloseInfo, 1)
	c.stop = make(chan struct{})
	c.closeOnce = sync.Once{}
	frames, closed, stop := c.frames, c.closed, c.stop
	c.mu.Unlock()

	go c.readPump(conn, frames, closed, stop)

	return &transport.Handshake{SessionID: planID, ClientID: c.clientID}, nil
}

func (c *Client) endpoint(planID string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path, err = url.JoinPath(u.Path, "ws", "plans", planID)
	if err != nil {
		return "", fmt.Errorf("join path: %w", err)
	}
	q := u.Query()
	q.Set("client_id", c.clientID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// readPump reads until the connection ends, then reports the close and
// shuts the frame channel. Frames are dropped once Disconnect fires so
// a consumer that stopped draining cannot pin this goroutine.
func (c *Client) readPump(conn *websocket.Conn, frames chan []byte, closed chan transport.CloseInfo, stop chan struct{}) {
	defer close(frames)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			closed <- classifyClose(err)
			return
		}
		select {
		case frames <- data:
		case <-stop:
			closed <- transport.CloseInfo{Code: transport.CodeNormalClosure, Reason: "client disconnect"}
			return
		}
	}
}

func classifyClose(err error) transport.CloseInfo {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		if ce.Code == websocket.CloseNormalClosure {
			return transport.CloseInfo{Code: transport.CodeNormalClosure, Reason: ce.Text}
		}
		return transport.CloseInfo{Code: ce.Code, Reason: ce.Text, Err: err}
	}
	return transport.CloseInfo{Code: transport.CodeAbnormalClosure, Err: err}
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

// Disconnect sends a close frame and tears down the connection.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	conn, stop := c.conn, c.stop
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	var err error
	c.closeOnce.Do(func() {
		close(stop)
		deadline := time.Now().Add(time.Second)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if werr := conn.WriteControl(websocket.CloseMessage, msg, deadline); werr != nil {
			c.logger.Debug("write close frame", "error", werr)
		}
		err = conn.Close()
	})
	return err
}
