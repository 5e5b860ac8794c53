package realtime

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Subscribers only listen.
	maxMessageSize = 512

	// Outbound buffer per session. When it fills the session is dropped.
	sendBufferSize = 64
)

// Session is a single websocket subscription to one channel. It
// implements Subscriber and owns the connection: readPump consumes
// (and discards) client frames to detect disconnects, writePump
// serializes all writes.
type Session struct {
	hub     *Hub
	conn    *websocket.Conn
	channel string
	send    chan Event
	logger  *slog.Logger

	closeOnce sync.Once
}

// NewSession wraps an upgraded connection and registers it on the channel.
func NewSession(hub *Hub, conn *websocket.Conn, channel string, logger *slog.Logger) *Session {
	s := &Session{
		hub:     hub,
		conn:    conn,
		channel: channel,
		send:    make(chan Event, sendBufferSize),
		logger:  logger,
	}
	hub.Subscribe(channel, s)
	return s
}

// Deliver queues an event for the peer. It never blocks: a full buffer
// means the peer is too slow and the hub will detach the session.
func (s *Session) Deliver(event Event) bool {
	select {
	case s.send <- event:
		return true
	default:
		return false
	}
}

// Close terminates the connection. The hub calls it after detaching a
// slow session; closing the connection unblocks both pumps.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		_ = s.conn.Close()
	})
}

// Run services the connection until the peer disconnects or delivery
// fails. It blocks, so handlers call it as the last step.
func (s *Session) Run() {
	done := make(chan struct{})
	go func() {
		s.readPump()
		close(done)
	}()
	s.writePump(done)

	s.hub.Unsubscribe(s.channel, s)
	s.Close()
}

func (s *Session) readPump() {
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("websocket read error", "channel", s.channel, "error", err)
			}
			return
		}
	}
}

func (s *Session) writePump(done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case event := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
