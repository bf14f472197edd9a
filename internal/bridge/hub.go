package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	auth "github.com/mind-engage/mindengage-answerbook/internal/auth/middleware"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 << 20 // get-all responses carry every stored answer, images included
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// extension origins (chrome-extension://, moz-extension://) vary per install;
	// peers are authenticated by token instead.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type peer struct {
	sub  string
	conn *websocket.Conn
	wmu  sync.Mutex
	done chan struct{}
}

func (p *peer) write(msgType int, data []byte) error {
	p.wmu.Lock()
	defer p.wmu.Unlock()
	p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return p.conn.WriteMessage(msgType, data)
}

// Hub is the websocket endpoint a single extension peer connects to. A new
// connection replaces the previous one.
type Hub struct {
	log *zap.Logger

	mu      sync.Mutex
	current *peer
	onMsg   func(Envelope)
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{log: log}
}

func (h *Hub) Receive(fn func(Envelope)) {
	h.mu.Lock()
	h.onMsg = fn
	h.mu.Unlock()
}

// Connected reports whether an extension peer is attached.
func (h *Hub) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current != nil
}

// Subject names the connected peer as its token did; "" when none is connected.
func (h *Hub) Subject() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return ""
	}
	return h.current.sub
}

func (h *Hub) Send(ctx context.Context, env Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	p := h.current
	h.mu.Unlock()
	if p == nil {
		return ErrNoPeer
	}
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return p.write(websocket.TextMessage, b)
}

// ServeHTTP upgrades the request and serves the peer until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("bridge upgrade failed", zap.Error(err))
		return
	}
	p := &peer{sub: auth.SubjectFromContext(r.Context()), conn: conn, done: make(chan struct{})}

	h.mu.Lock()
	prev := h.current
	h.current = p
	h.mu.Unlock()
	if prev != nil {
		prev.conn.Close()
	}
	h.log.Info("extension connected", zap.String("sub", p.sub), zap.String("remote", r.RemoteAddr))

	go h.pingLoop(p)
	h.readPump(p)
}

func (h *Hub) readPump(p *peer) {
	defer func() {
		close(p.done)
		p.conn.Close()
		h.mu.Lock()
		if h.current == p {
			h.current = nil
		}
		h.mu.Unlock()
		h.log.Info("extension disconnected", zap.String("sub", p.sub))
	}()
	p.conn.SetReadLimit(maxMessageSize)
	p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error { p.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, message, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("bridge unexpected close", zap.Error(err))
			}
			return
		}
		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			h.log.Warn("bridge: malformed envelope", zap.Error(err))
			continue
		}
		h.mu.Lock()
		fn := h.onMsg
		h.mu.Unlock()
		if fn != nil {
			fn(env)
		}
	}
}

func (h *Hub) pingLoop(p *peer) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			if err := p.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close disconnects the current peer, if any.
func (h *Hub) Close() error {
	h.mu.Lock()
	p := h.current
	h.current = nil
	h.mu.Unlock()
	if p == nil {
		return nil
	}
	_ = p.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"))
	return p.conn.Close()
}
