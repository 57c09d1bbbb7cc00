package relayserver

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"sobre/internal/domain"
	"sobre/internal/realtime"
)

// hub tracks subscribed clients and routes published messages to the
// receiver's socket.
type hub struct {
	log zerolog.Logger

	mu      sync.Mutex
	clients map[domain.Identity]*hubClient
}

type hubClient struct {
	conn *websocket.Conn
	mu   sync.Mutex // serializes writes to conn
}

func newHub(log zerolog.Logger) *hub {
	return &hub{log: log, clients: make(map[domain.Identity]*hubClient)}
}

func (h *hub) subscribe(id domain.Identity, conn *websocket.Conn) *hubClient {
	c := &hubClient{conn: conn}
	h.mu.Lock()
	if prev, ok := h.clients[id]; ok {
		// Newest subscription wins; the stale socket is cut loose.
		prev.conn.Close()
	}
	h.clients[id] = c
	h.mu.Unlock()
	return c
}

func (h *hub) unsubscribe(id domain.Identity, c *hubClient) {
	h.mu.Lock()
	if h.clients[id] == c {
		delete(h.clients, id)
	}
	h.mu.Unlock()
}

// deliver writes msg to the receiver's socket if it is subscribed. Offline
// receivers rely on the store: history picks the message up later.
func (h *hub) deliver(msg domain.Message) {
	h.mu.Lock()
	c, online := h.clients[msg.ReceiverID]
	h.mu.Unlock()
	if !online {
		return
	}
	c.mu.Lock()
	err := c.conn.WriteJSON(realtime.Frame{Type: realtime.FrameMessage, Message: &msg})
	c.mu.Unlock()
	if err != nil {
		h.log.Warn().Err(err).Str("receiver", string(msg.ReceiverID)).Msg("delivery write failed")
	}
}

func (c *hubClient) writeFrame(f realtime.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(f)
}
