package planstream

import (
	"context"
	"sync"
	"time"

	"github.com/82deutschmark/PlanExe-sub001/protocol"
	"github.com/82deutschmark/PlanExe-sub001/transport"
)

// Session owns one live plan stream connection and turns its frames
// into accumulated, immutable snapshots. A Session is reusable: Close
// returns it to idle and a later Start begins a fresh stream with clean
// buffers.
type Session struct {
	tr     transport.Transport
	cfg    sessionConfig
	status *statusManager
	flush  *flushScheduler

	mu              sync.Mutex
	planID          string
	acc             *accumulator
	handlers        Handlers
	progress        *int
	stallWarning    bool
	statusDetail    string
	lastHeartbeat   time.Time
	lastServerEvent time.Time
	lastErr         error
	subscribers     map[int]func(Snapshot)
	nextSubID       int
	done            chan struct{}
	generation      int
}

// NewSession creates a session over the given transport.
func NewSession(tr transport.Transport, opts ...SessionOption) *Session {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Session{
		tr:          tr,
		cfg:         cfg,
		status:      newStatusManager(),
		acc:         newAccumulator(),
		subscribers: make(map[int]func(Snapshot)),
	}
	s.flush = newFlushScheduler(cfg.flushInterval, s.publishSnapshot)
	return s
}

// Status returns the session's lifecycle state.
func (s *Session) Status() Status {
	return s.status.current()
}

// Start connects to the stream for planID and begins processing. A
// session already streaming is closed first. The returned error is a
// *HandshakeError when the connection could not be established.
func (s *Session) Start(ctx context.Context, planID string, handlers Handlers) error {
	if planID == "" {
		return ErrEmptyPlanID
	}
	if s.status.current() == StatusConnecting || s.status.current() == StatusRunning {
		s.Close()
	}
	if err := s.status.beginConnect(); err != nil {
		return err
	}

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.planID = planID
	s.handlers = handlers
	s.acc = newAccumulator()
	s.progress = nil
	s.stallWarning = false
	s.statusDetail = ""
	s.lastHeartbeat = time.Time{}
	s.lastServerEvent = time.Time{}
	s.lastErr = nil
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	s.flush.resume()
	s.publishSnapshot()

	_, err := s.tr.Connect(ctx, planID)

	s.mu.Lock()
	stale := s.generation != gen
	s.mu.Unlock()
	if stale {
		// Close raced with the dial; the winner already owns the state.
		if err == nil {
			s.tr.Disconnect()
		}
		return ErrSessionClosed
	}
	if err != nil {
		herr := &HandshakeError{PlanID: planID, Cause: err}
		s.mu.Lock()
		s.lastErr = herr
		s.mu.Unlock()
		s.status.set(StatusError)
		s.publishSnapshot()
		return herr
	}

	s.status.set(StatusRunning)
	s.cfg.logger.Debug("stream connected", "plan_id", planID)
	s.publishSnapshot()

	go s.readLoop(s.tr.Frames(), s.tr.Closed(), done)
	return nil
}

// Close tears the session down: pending flushes are dropped first so a
// racing timer cannot publish cleared state, then the transport is
// disconnected and all buffers released. Close is idempotent.
func (s *Session) Close() {
	s.flush.stop()

	s.mu.Lock()
	s.generation++
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
	s.acc = newAccumulator()
	s.handlers = Handlers{}
	s.planID = ""
	s.progress = nil
	s.stallWarning = false
	s.statusDetail = ""
	s.lastHeartbeat = time.Time{}
	s.lastServerEvent = time.Time{}
	s.lastErr = nil
	s.mu.Unlock()

	s.status.set(StatusIdle)
	s.tr.Disconnect()
}

// Snapshot returns an immutable view of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn to receive every published snapshot. It is
// invoked immediately with the current state, and again on each flush.
// The returned function removes the subscription.
func (s *Session) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	snap := s.snapshotLocked()
	s.mu.Unlock()

	fn(snap)

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

func (s *Session) readLoop(frames <-chan []byte, closed <-chan transport.CloseInfo, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case frame, ok := <-frames:
			if !ok {
				frames = nil
				continue
			}
			s.handleFrame(frame)
		case info := <-closed:
			s.handleClose(info, done)
			return
		}
	}
}

func (s *Session) handleFrame(frame []byte) {
	msg, err := protocol.ParseMessage(frame)
	if err != nil {
		s.cfg.logger.Warn("dropping malformed frame", "error", err)
		return
	}
	if msg == nil {
		return
	}

	switch m := msg.(type) {
	case protocol.StatusMessage:
		s.handleStatus(m)
	case protocol.LogMessage:
		s.markServerEvent(m.Timestamp)
		if h := s.currentHandlers().OnLog; h != nil {
			h(m)
		}
		s.flush.schedule()
	case protocol.HeartbeatMessage:
		s.handleHeartbeat(m)
	case protocol.StreamEndMessage:
		s.handleStreamEnd(m)
	case protocol.LLMStreamMessage:
		s.handleLLMStream(m)
	}
}

func (s *Session) handleStatus(m protocol.StatusMessage) {
	class := protocol.NormalizeStatus(m.Status)

	// Terminal states are stable: a late status frame cannot flip
	// completed into error or resurrect a failed session.
	var failed bool
	switch class {
	case protocol.StatusFailed:
		failed = s.status.setIfNotTerminal(StatusError)
	case protocol.StatusCompleted:
		s.status.setIfNotTerminal(StatusCompleted)
	default:
		s.status.compareAndSet(StatusRunning, StatusConnecting)
	}

	s.mu.Lock()
	s.statusDetail = m.Status
	if m.ProgressPercentage != nil {
		p := *m.ProgressPercentage
		s.progress = &p
	}
	s.stallWarning = m.StallWarning
	s.touchServerEventLocked(m.Timestamp)
	if failed {
		s.lastErr = &StreamError{PlanID: s.planID, Message: statusErrMessage(m)}
	} else if !s.status.current().Terminal() {
		// A live status report supersedes a sticky error.
		s.lastErr = nil
	}
	planID := s.planID
	s.mu.Unlock()

	h := s.currentHandlers()
	if h.OnStatus != nil {
		h.OnStatus(m, class)
	}
	if failed && h.OnError != nil {
		h.OnError(&StreamError{PlanID: planID, Message: statusErrMessage(m)})
	}

	s.flush.cancel()
	s.publishSnapshot()
}

func statusErrMessage(m protocol.StatusMessage) string {
	if m.Message != "" {
		return m.Message
	}
	return "plan reported status " + m.Status
}

func (s *Session) handleHeartbeat(m protocol.HeartbeatMessage) {
	s.mu.Lock()
	s.lastHeartbeat = time.Now()
	s.touchServerEventLocked(m.Timestamp)
	s.mu.Unlock()

	if h := s.currentHandlers().OnHeartbeat; h != nil {
		h(m)
	}
	s.flush.schedule()
}

func (s *Session) handleStreamEnd(m protocol.StreamEndMessage) {
	s.markServerEvent(m.Timestamp)

	class := protocol.NormalizeStatus(m.Status)
	switch class {
	case protocol.StatusFailed:
		if s.status.setIfNotTerminal(StatusError) {
			s.mu.Lock()
			err := &StreamError{PlanID: s.planID, Message: streamEndErrMessage(m)}
			s.lastErr = err
			s.mu.Unlock()
			if h := s.currentHandlers().OnError; h != nil {
				h(err)
			}
		}
	case protocol.StatusCompleted:
		s.status.setIfNotTerminal(StatusCompleted)
	}

	if h := s.currentHandlers().OnStreamEnd; h != nil {
		h(m)
	}

	s.flush.cancel()
	s.publishSnapshot()
}

func streamEndErrMessage(m protocol.StreamEndMessage) string {
	if m.Message != "" {
		return m.Message
	}
	return "stream ended with status " + m.Status
}

func (s *Session) handleLLMStream(m protocol.LLMStreamMessage) {
	payload, err := m.ParsedPayload()
	if err != nil {
		s.cfg.logger.Warn("dropping malformed stream payload",
			"event", m.Event, "interaction_id", m.InteractionID, "error", err)
		return
	}
	if payload == nil {
		return
	}

	at, _ := protocol.ParseTimestamp(m.Timestamp)
	h := s.currentHandlers()

	switch p := payload.(type) {
	case protocol.StartPayload:
		s.mu.Lock()
		s.acc.start(m, p, at)
		s.touchServerEventLocked(m.Timestamp)
		s.mu.Unlock()
		s.status.compareAndSet(StatusRunning, StatusConnecting)
		if h.OnInteractionStart != nil {
			h.OnInteractionStart(m.InteractionID, m.Stage, p)
		}
		s.flush.cancel()
		s.publishSnapshot()

	case protocol.TextDeltaPayload:
		s.mu.Lock()
		changed := s.acc.appendText(m.InteractionID, p.Delta, m.Sequence, at)
		s.touchServerEventLocked(m.Timestamp)
		s.mu.Unlock()
		if !changed {
			return
		}
		if h.OnTextDelta != nil {
			h.OnTextDelta(m.InteractionID, p.Delta)
		}
		s.flush.schedule()

	case protocol.ReasoningDeltaPayload:
		s.mu.Lock()
		changed := s.acc.appendReasoning(m.InteractionID, p.Delta, m.Sequence, at)
		s.touchServerEventLocked(m.Timestamp)
		s.mu.Unlock()
		if !changed {
			return
		}
		if h.OnReasoningDelta != nil {
			h.OnReasoningDelta(m.InteractionID, p.Delta)
		}
		s.flush.schedule()

	case protocol.JSONDeltaPayload:
		s.mu.Lock()
		changed := s.acc.appendJSON(m.InteractionID, p.Delta, m.Sequence, at)
		s.touchServerEventLocked(m.Timestamp)
		s.mu.Unlock()
		if !changed {
			return
		}
		if h.OnJSONDelta != nil {
			h.OnJSONDelta(m.InteractionID, p.Delta)
		}
		s.flush.schedule()

	case protocol.FinalPayload:
		s.mu.Lock()
		s.acc.applyFinal(m.InteractionID, p, m.Sequence, at)
		s.touchServerEventLocked(m.Timestamp)
		s.mu.Unlock()
		if h.OnFinal != nil {
			h.OnFinal(m.InteractionID, p)
		}
		s.flush.cancel()
		s.publishSnapshot()

	case protocol.EndPayload:
		var streamErr *StreamError
		s.mu.Lock()
		wasActive := s.acc.active == m.InteractionID
		s.acc.end(m.InteractionID, p, m.Sequence, at)
		s.touchServerEventLocked(m.Timestamp)
		if protocol.NormalizeStatus(p.Status) == protocol.StatusFailed {
			streamErr = &StreamError{
				PlanID:        s.planID,
				InteractionID: m.InteractionID,
				Message:       endErrMessage(p),
			}
			if !s.status.current().Terminal() {
				s.lastErr = streamErr
			}
		}
		s.mu.Unlock()
		if streamErr != nil && wasActive {
			// The unit of work the session was waiting on failed.
			s.status.setIfNotTerminal(StatusError)
		}
		if h.OnInteractionEnd != nil {
			h.OnInteractionEnd(m.InteractionID, p)
		}
		if streamErr != nil && h.OnError != nil {
			h.OnError(streamErr)
		}
		s.flush.cancel()
		s.publishSnapshot()
	}
}

func endErrMessage(p protocol.EndPayload) string {
	if p.Error != "" {
		return p.Error
	}
	return "interaction ended with status " + p.Status
}

// handleClose maps the transport close onto a terminal status. The
// buffers stay readable so a caller can inspect partial output after a
// failure.
func (s *Session) handleClose(info transport.CloseInfo, done chan struct{}) {
	select {
	case <-done:
		// Close already tore the session down.
		return
	default:
	}

	s.flush.cancel()

	if info.Clean() {
		s.status.setIfNotTerminal(StatusCompleted)
	} else if s.status.setIfNotTerminal(StatusError) {
		s.mu.Lock()
		err := &StreamError{PlanID: s.planID, Message: info.Message()}
		s.lastErr = err
		s.mu.Unlock()
		if h := s.currentHandlers().OnError; h != nil {
			h(err)
		}
	}
	s.cfg.logger.Debug("stream closed", "code", info.Code, "clean", info.Clean())
	s.publishSnapshot()
}

func (s *Session) currentHandlers() Handlers {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handlers
}

func (s *Session) markServerEvent(ts string) {
	s.mu.Lock()
	s.touchServerEventLocked(ts)
	s.mu.Unlock()
}

func (s *Session) touchServerEventLocked(ts string) {
	if t, ok := protocol.ParseTimestamp(ts); ok {
		s.lastServerEvent = t
	}
}

// publishSnapshot builds one immutable snapshot and fans it out.
// Subscriber callbacks run outside the lock.
func (s *Session) publishSnapshot() {
	s.mu.Lock()
	snap := s.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		PlanID:            s.planID,
		Status:            s.status.current(),
		StallWarning:      s.stallWarning,
		StatusDetail:      s.statusDetail,
		LastHeartbeat:     s.lastHeartbeat,
		LastServerEvent:   s.lastServerEvent,
		Err:               s.lastErr,
		ActiveInteraction: s.acc.active,
	}
	if s.progress != nil {
		p := *s.progress
		snap.Progress = &p
	}
	if len(s.acc.order) > 0 {
		snap.Interactions = make([]InteractionSnapshot, 0, len(s.acc.order))
		for _, id := range s.acc.order {
			snap.Interactions = append(snap.Interactions, snapshotInteraction(s.acc.byID[id]))
		}
	}
	return snap
}
