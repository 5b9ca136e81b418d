package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/brownjh18/SafeTalk-sub000/internal/app"
	"github.com/brownjh18/SafeTalk-sub000/internal/core"
	"github.com/brownjh18/SafeTalk-sub000/internal/domain"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// Controller owns the websocket side of the coordination core: presence,
// mute, peer signaling, and live message subscriptions.
type Controller struct {
	Presence *app.Broker
	Relay    *app.Relay
	Hub      *Hub
	Limiter  *JoinRateLimiter
}

func NewController(presence *app.Broker, relay *app.Relay, hub *Hub, limiter *JoinRateLimiter) *Controller {
	return &Controller{Presence: presence, Relay: relay, Hub: hub, Limiter: limiter}
}

// WsSignalConn adapts one websocket to core.SignalConnection. The
// adapter owns it and must Close() it; the core never does.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu        sync.RWMutex
	closed    bool
	audioSess domain.SessionID
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	if f == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) SendWithin(f core.Frame, d time.Duration) error {
	if f == nil {
		return nil
	}
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return ErrConnClosed
	}
	c.mu.RUnlock()
	select {
	case c.send <- f:
		return nil
	case <-time.After(d):
		return domain.ErrTransportTimeout
	}
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

func (c *WsSignalConn) setAudioSession(sid domain.SessionID) {
	c.mu.Lock()
	c.audioSess = sid
	c.mu.Unlock()
}

func (c *WsSignalConn) audioSession() domain.SessionID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.audioSess
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and runs the connection pumps until
// the client goes away.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	uid := domain.UserID(c.GetString("client_token"))
	log.Info().Str("module", "signal").Str("user", string(uid)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade")
		return
	}

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}
	ctl.Hub.Bind(uid, conn)

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		ctl.writePump(ctx, conn)
		cancel()
	}()
	go ctl.readPump(ctx, uid, conn, cancel)
}
