package realtime_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"sobre/internal/domain"
	"sobre/internal/realtime"
)

var upgrader = websocket.Upgrader{}

// fakeRelay acks subscriptions, records frames and lets the test push
// deliveries to the connected client.
type fakeRelay struct {
	srv    *httptest.Server
	frames chan realtime.Frame
	conns  chan *websocket.Conn
}

func newFakeRelay(t *testing.T, ack bool) *fakeRelay {
	t.Helper()
	r := &fakeRelay{
		frames: make(chan realtime.Frame, 16),
		conns:  make(chan *websocket.Conn, 1),
	}
	r.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		var sub realtime.Frame
		if err := conn.ReadJSON(&sub); err != nil || sub.Type != realtime.FrameSubscribe {
			conn.Close()
			return
		}
		r.frames <- sub
		if !ack {
			// Hold the socket open without acknowledging until the client
			// gives up and closes it.
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					conn.Close()
					return
				}
			}
		}
		if err := conn.WriteJSON(realtime.Frame{Type: realtime.FrameSubscribed}); err != nil {
			conn.Close()
			return
		}
		r.conns <- conn
		for {
			var f realtime.Frame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			r.frames <- f
		}
	}))
	t.Cleanup(r.srv.Close)
	return r
}

func (r *fakeRelay) wsURL() string { return "ws" + strings.TrimPrefix(r.srv.URL, "http") }

func (r *fakeRelay) nextFrame(t *testing.T) realtime.Frame {
	t.Helper()
	select {
	case f := <-r.frames:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return realtime.Frame{}
	}
}

func TestConnectSubscribesAndAnnouncesPresence(t *testing.T) {
	relay := newFakeRelay(t, true)
	s := realtime.New(relay.wsURL(), zerolog.Nop())
	defer s.Close()

	if err := s.Connect(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if got := s.State(); got != domain.Connected {
		t.Fatalf("state = %v, want connected", got)
	}

	sub := relay.nextFrame(t)
	if sub.Type != realtime.FrameSubscribe || sub.Identity != "alice@example.com" {
		t.Fatalf("subscribe frame = %+v", sub)
	}
	presence := relay.nextFrame(t)
	if presence.Type != realtime.FramePresence {
		t.Fatalf("frame after ack = %+v, want presence", presence)
	}
	if presence.Message == nil || presence.Message.SenderID != "alice@example.com" || presence.Message.Status != domain.StatusJoined {
		t.Fatalf("presence payload = %+v", presence.Message)
	}
}

func TestSendWhileDisconnected(t *testing.T) {
	s := realtime.New("ws://127.0.0.1:0/ws", zerolog.Nop())
	err := s.Send(context.Background(), domain.Message{SenderID: "a", ReceiverID: "b"})
	if !errors.Is(err, domain.ErrNotConnected) {
		t.Fatalf("want ErrNotConnected, got %v", err)
	}
}

func TestSendPublishesMessageFrame(t *testing.T) {
	relay := newFakeRelay(t, true)
	s := realtime.New(relay.wsURL(), zerolog.Nop())
	defer s.Close()

	if err := s.Connect(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	relay.nextFrame(t) // subscribe
	relay.nextFrame(t) // presence

	msg := domain.Message{
		ID:         "m-1",
		SenderID:   "alice@example.com",
		ReceiverID: "bob@example.com",
		EncryptedContent: domain.Envelope{
			EncryptedMessage: "bQ==", EncryptedKey: "aw==", IV: "aXY=",
		},
		Timestamp: time.Now().UTC(),
		Status:    domain.StatusSent,
	}
	if err := s.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send: %v", err)
	}
	f := relay.nextFrame(t)
	if f.Type != realtime.FrameMessage || f.Message == nil || f.Message.ID != "m-1" {
		t.Fatalf("published frame = %+v", f)
	}
}

func TestInboundDeliveredInArrivalOrder(t *testing.T) {
	relay := newFakeRelay(t, true)
	s := realtime.New(relay.wsURL(), zerolog.Nop())
	defer s.Close()

	if err := s.Connect(context.Background(), "bob@example.com"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	conn := <-relay.conns
	for _, id := range []string{"m-1", "m-2", "m-3"} {
		err := conn.WriteJSON(realtime.Frame{
			Type:    realtime.FrameMessage,
			Message: &domain.Message{ID: id, SenderID: "alice@example.com", ReceiverID: "bob@example.com"},
		})
		if err != nil {
			t.Fatalf("WriteJSON: %v", err)
		}
	}

	for _, want := range []string{"m-1", "m-2", "m-3"} {
		select {
		case got := <-s.Messages():
			if got.ID != want {
				t.Fatalf("delivery = %q, want %q", got.ID, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestConnectFailsWithoutAck(t *testing.T) {
	relay := newFakeRelay(t, false)
	s := realtime.New(relay.wsURL(), zerolog.Nop())
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if err := s.Connect(ctx, "alice@example.com"); err == nil {
		t.Fatal("Connect succeeded without subscription ack")
	}
	if got := s.State(); got != domain.Disconnected {
		t.Fatalf("state = %v, want disconnected", got)
	}
}

func TestCloseIsSafeWhenNeverConnected(t *testing.T) {
	s := realtime.New("ws://127.0.0.1:0/ws", zerolog.Nop())
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// The inbound channel must be closed so consumers do not hang.
	select {
	case _, ok := <-s.Messages():
		if ok {
			t.Fatal("unexpected delivery")
		}
	case <-time.After(time.Second):
		t.Fatal("Messages not closed after Close")
	}
}

func TestSessionEndsWhenRelayDrops(t *testing.T) {
	relay := newFakeRelay(t, true)
	s := realtime.New(relay.wsURL(), zerolog.Nop())

	if err := s.Connect(context.Background(), "bob@example.com"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	conn := <-relay.conns
	conn.Close()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-s.Messages():
			if !ok {
				if got := s.State(); got != domain.Disconnected {
					t.Fatalf("state = %v, want disconnected", got)
				}
				return
			}
		case <-deadline:
			t.Fatal("session did not end after relay drop")
		}
	}
}
