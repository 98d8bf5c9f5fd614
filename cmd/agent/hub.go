package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"collabtext/engine"
	"collabtext/internal/wire"
)

// client represents a single connected peer — a browser UI, a local
// tool, or another agent reached via mDNS discovery. Adapted directly
// from the teacher's Client (agent/main.go): same conn/send split,
// generalized to carry wire.Frame payloads instead of raw broadcast
// bytes so readPump can hand them to the engine instead of echoing
// them blind.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// hub maintains the set of locally connected clients/peers and fans
// out every frame the embedded engine executes, adapted from the
// teacher's Hub (agent/main.go) — generalized from a bare broadcast
// channel of opaque bytes to one driven by engine.Engine.OnExecute.
type hub struct {
	eng *engine.Engine
	log *zap.Logger

	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
}

func newHub(eng *engine.Engine, log *zap.Logger) *hub {
	h := &hub{
		eng:        eng,
		log:        log,
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
	}
	eng.OnExecute(h.onEngineExecute)
	return h
}

// onEngineExecute fans out every locally- or remotely-originated
// operation the engine completes to every connected client — the
// teacher's own "apply then broadcast" shape, with the engine now
// owning the apply half.
func (h *hub) onEngineExecute(f wire.Frame) {
	data, err := wire.Marshal(f)
	if err != nil {
		h.log.Error("marshal executed frame for broadcast", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.log.Warn("broadcast channel full, dropping frame")
	}
}

func (h *hub) run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
			h.log.Info("client registered", zap.Int("total", len(h.clients)))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.log.Info("client unregistered", zap.Int("total", len(h.clients)))
			}
		case message := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- message:
				default:
					close(c.send)
					delete(h.clients, c)
				}
			}
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (h *hub) serveWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	h.adopt(conn)
}

// dialPeer opens an outbound websocket connection to another agent
// discovered via mDNS and adopts it exactly like an inbound client —
// the local hub doesn't distinguish direction once a connection is
// live, per spec.md §1's "transport-agnostic delivery".
func (h *hub) dialPeer(ctx context.Context, addr string) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, "ws://"+addr+"/ws", nil)
	if err != nil {
		return err
	}
	h.adopt(conn)
	return nil
}

func (h *hub) adopt(conn *websocket.Conn) {
	c := &client{conn: conn, send: make(chan []byte, 256)}
	h.register <- c
	go c.writePump()
	go h.readPump(c)

	// Replay everything this engine has already executed to the newly
	// joined peer, so a late joiner converges without a separate
	// catch-up protocol.
	for _, f := range h.eng.Frames() {
		data, err := wire.Marshal(f)
		if err != nil {
			continue
		}
		select {
		case c.send <- data:
		default:
		}
	}
}

func (h *hub) readPump(c *client) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		f, err := wire.Unmarshal(message)
		if err != nil {
			h.log.Warn("dropping malformed message", zap.Error(err))
			continue
		}
		h.eng.Receive(f)
	}
}

func (c *client) writePump() {
	defer c.conn.Close()
	for {
		message, ok := <-c.send
		if !ok {
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}
