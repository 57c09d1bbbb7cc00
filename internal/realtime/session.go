package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"sobre/internal/domain"
)

const (
	// inboxDepth bounds how far the reader loop can run ahead of the consumer.
	inboxDepth = 64
	// handshakeTimeout caps the wait for the subscription ack when the caller
	// context carries no deadline.
	handshakeTimeout = 10 * time.Second
)

// Session is a single-use websocket session against the relay. After the
// session ends it is not reusable; build a new one to reconnect.
type Session struct {
	url    string
	dialer *websocket.Dialer
	log    zerolog.Logger

	mu      sync.Mutex
	state   domain.ConnState
	conn    *websocket.Conn
	looping bool

	inbox     chan domain.Message
	closeOnce sync.Once
}

// New returns a disconnected session for the relay websocket endpoint at url
// (a ws:// or wss:// URL).
func New(url string, log zerolog.Logger) *Session {
	return &Session{
		url:    url,
		dialer: websocket.DefaultDialer,
		log:    log,
		inbox:  make(chan domain.Message, inboxDepth),
	}
}

// Connect dials the relay, subscribes to self's inbound queue and announces
// presence. The session is Connected only once the relay acknowledges the
// subscription.
func (s *Session) Connect(ctx context.Context, self domain.Identity) error {
	s.mu.Lock()
	if s.state != domain.Disconnected || s.conn != nil {
		s.mu.Unlock()
		return fmt.Errorf("connect: session already started")
	}
	s.state = domain.Connecting
	s.mu.Unlock()

	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		s.abortConnect()
		return fmt.Errorf("dial relay %s: %w", s.url, err)
	}

	if err := s.handshake(ctx, conn, self); err != nil {
		conn.Close()
		s.abortConnect()
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.state = domain.Connected
	s.looping = true
	s.mu.Unlock()

	s.log.Info().Str("identity", string(self)).Msg("relay session subscribed")
	go s.readLoop(conn)
	return nil
}

func (s *Session) handshake(ctx context.Context, conn *websocket.Conn, self domain.Identity) error {
	if err := conn.WriteJSON(Frame{Type: FrameSubscribe, Identity: self}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	deadline := time.Now().Add(handshakeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetReadDeadline(deadline)
	var ack Frame
	if err := conn.ReadJSON(&ack); err != nil {
		return fmt.Errorf("await subscription ack: %w", err)
	}
	if ack.Type != FrameSubscribed {
		return fmt.Errorf("await subscription ack: got frame %q", ack.Type)
	}
	_ = conn.SetReadDeadline(time.Time{})

	// Presence is announced exactly once, right after the ack.
	joined := domain.Message{
		SenderID:  self,
		Timestamp: time.Now().UTC(),
		Status:    domain.StatusJoined,
	}
	if err := conn.WriteJSON(Frame{Type: FramePresence, Message: &joined}); err != nil {
		return fmt.Errorf("announce presence: %w", err)
	}
	return nil
}

func (s *Session) abortConnect() {
	s.mu.Lock()
	s.state = domain.Disconnected
	s.mu.Unlock()
}

// Send publishes msg to the relay. Fire-and-forget: a nil return means the
// frame was written, not that it was delivered.
func (s *Session) Send(ctx context.Context, msg domain.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.Connected || s.conn == nil {
		return domain.ErrNotConnected
	}
	if err := s.conn.WriteJSON(Frame{Type: FrameMessage, Message: &msg}); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// Messages yields inbound deliveries in arrival order. Closed when the
// session ends.
func (s *Session) Messages() <-chan domain.Message { return s.inbox }

func (s *Session) State() domain.ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close tears the session down. Safe to call at any point, including before
// Connect or after a failed Connect.
func (s *Session) Close() error {
	s.mu.Lock()
	conn := s.conn
	looping := s.looping
	s.conn = nil
	s.state = domain.Disconnected
	s.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
	// When the reader loop is running it owns closing the inbox; closing the
	// socket above unblocks it.
	if !looping {
		s.closeOnce.Do(func() { close(s.inbox) })
	}
	return nil
}

func (s *Session) readLoop(conn *websocket.Conn) {
	defer func() {
		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		s.state = domain.Disconnected
		s.looping = false
		s.mu.Unlock()
		_ = conn.Close()
		s.closeOnce.Do(func() { close(s.inbox) })
	}()

	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn().Err(err).Msg("relay session closed")
			}
			return
		}
		if f.Type != FrameMessage || f.Message == nil {
			continue
		}
		s.inbox <- *f.Message
	}
}

var _ domain.Transport = (*Session)(nil)
