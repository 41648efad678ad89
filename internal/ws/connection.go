package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/fathima-sithara/graphql-chat/internal/auth"
	"github.com/fathima-sithara/graphql-chat/internal/graph"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	graphql "github.com/graph-gophers/graphql-go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// connection is one socket. Only readPump and writePump touch ws; everything
// else goes through send and closing.
type connection struct {
	h          *Handler
	ws         *websocket.Conn
	id         string
	log        *zap.Logger
	limiter    *rate.Limiter
	send       chan []byte
	closing    chan []byte
	done       chan struct{}
	writerDone chan struct{}
	once       sync.Once

	ctx    context.Context
	cancel context.CancelFunc

	// owned by readPump
	claims *auth.Claims
	inited bool

	mu    sync.Mutex
	acked bool
	subs  map[string]context.CancelFunc
}

func newConnection(h *Handler, conn *websocket.Conn) *connection {
	id := uuid.NewString()
	limit := rate.Inf
	burst := 1
	if h.cfg.RateLimitPerSec > 0 {
		limit = rate.Limit(h.cfg.RateLimitPerSec)
		burst = h.cfg.RateLimitPerSec
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &connection{
		h:          h,
		ws:         conn,
		id:         id,
		log:        h.log.With(zap.String("socket_id", id)),
		limiter:    rate.NewLimiter(limit, burst),
		send:       make(chan []byte, 64),
		closing:    make(chan []byte, 1),
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
		subs:       make(map[string]context.CancelFunc),
	}
}

func (c *connection) readPump() {
	defer c.teardown()

	c.ws.SetReadLimit(c.h.cfg.MaxMessageSize)
	pongWait := 2 * c.h.cfg.PingInterval
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	initTimer := time.AfterFunc(c.h.cfg.InitTimeout, func() {
		c.mu.Lock()
		acked := c.acked
		c.mu.Unlock()
		if !acked {
			c.closeWith(closeInitTimeout, "Connection initialisation timeout")
		}
	})
	defer initTimer.Stop()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				c.log.Debug("ws read failed", zap.Error(err))
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))

		if !c.limiter.Allow() {
			c.log.Warn("ws rate limit exceeded")
			c.closeWith(websocket.ClosePolicyViolation, "Rate limit exceeded")
			return
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			c.closeWith(closeBadRequest, "Invalid message received")
			return
		}
		if !c.handle(msg) {
			return
		}
	}
}

// handle processes one frame and reports whether the connection stays open.
func (c *connection) handle(msg message) bool {
	switch msg.Type {
	case typeConnectionInit:
		if c.inited {
			c.closeWith(closeTooManyInits, "Too many initialisation requests")
			return false
		}
		c.inited = true
		if token := tokenFromParams(msg.Payload); token != "" {
			c.claims = c.h.tokens.Resolve(token)
		}
		c.markOnline()
		c.mu.Lock()
		c.acked = true
		c.mu.Unlock()
		c.write(message{Type: typeConnectionAck})

	case typePing:
		c.write(message{Type: typePong, Payload: msg.Payload})

	case typePong:

	case typeSubscribe:
		c.mu.Lock()
		acked := c.acked
		c.mu.Unlock()
		if !acked {
			c.closeWith(closeUnauthorized, "Unauthorized")
			return false
		}
		var req graph.Request
		if msg.ID == "" || json.Unmarshal(msg.Payload, &req) != nil || req.Query == "" {
			c.closeWith(closeBadRequest, "Invalid subscribe message")
			return false
		}

		c.mu.Lock()
		if _, dup := c.subs[msg.ID]; dup {
			c.mu.Unlock()
			c.closeWith(closeSubscriberExists, "Subscriber for "+msg.ID+" already exists")
			return false
		}
		ctx, cancel := context.WithCancel(auth.WithClaims(c.ctx, c.claims))
		c.subs[msg.ID] = cancel
		c.mu.Unlock()

		go c.stream(ctx, msg.ID, req)

	case typeComplete:
		c.release(msg.ID)

	default:
		c.closeWith(closeBadRequest, "Invalid message received")
		return false
	}
	return true
}

// stream forwards subscription results for id until the operation ends.
func (c *connection) stream(ctx context.Context, id string, req graph.Request) {
	results, err := c.h.exec.Subscribe(ctx, "ws", req)
	if err != nil {
		c.log.Error("subscribe failed", zap.String("operation_id", id), zap.Error(err))
		if c.release(id) {
			c.write(message{ID: id, Type: typeError, Payload: json.RawMessage(`[{"message":"internal server error"}]`)})
		}
		return
	}

	first, failed := true, false
	for v := range results {
		resp, ok := v.(*graphql.Response)
		if !ok || failed {
			continue
		}
		if first && len(resp.Errors) > 0 && isNull(resp.Data) {
			failed = true
			if c.release(id) {
				payload, _ := json.Marshal(resp.Errors)
				c.write(message{ID: id, Type: typeError, Payload: payload})
			}
			continue
		}
		first = false
		payload, err := json.Marshal(resp)
		if err != nil {
			c.log.Error("encode result", zap.String("operation_id", id), zap.Error(err))
			continue
		}
		c.write(message{ID: id, Type: typeNext, Payload: payload})
	}

	if !failed && c.release(id) {
		c.write(message{ID: id, Type: typeComplete})
	}
}

// release cancels and forgets id. It reports whether id was still active.
func (c *connection) release(id string) bool {
	c.mu.Lock()
	cancel, ok := c.subs[id]
	delete(c.subs, id)
	c.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

func (c *connection) write(m message) {
	b, err := json.Marshal(m)
	if err != nil {
		c.log.Error("encode frame", zap.String("type", m.Type), zap.Error(err))
		return
	}
	select {
	case c.send <- b:
	case <-c.done:
	}
}

func (c *connection) closeWith(code int, reason string) {
	c.log.Debug("ws closing", zap.Int("code", code), zap.String("reason", reason))
	select {
	case c.closing <- websocket.FormatCloseMessage(code, reason):
	default:
	}
	c.shutdown()
}

func (c *connection) shutdown() {
	c.once.Do(func() {
		close(c.done)
		c.cancel()
	})
}

func (c *connection) writePump() {
	ticker := time.NewTicker(c.h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
		close(c.writerDone)
	}()

	deadline := func() time.Time { return time.Now().Add(c.h.cfg.WriteDeadline) }
	for {
		select {
		case b := <-c.send:
			_ = c.ws.SetWriteDeadline(deadline())
			if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
				c.shutdown()
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline()); err != nil {
				c.shutdown()
				return
			}
		case <-c.done:
			c.flush(deadline)
			select {
			case frame := <-c.closing:
				_ = c.ws.WriteControl(websocket.CloseMessage, frame, deadline())
			default:
			}
			return
		}
	}
}

// flush writes frames queued before shutdown, such as an error preceding a close.
func (c *connection) flush(deadline func() time.Time) {
	for {
		select {
		case b := <-c.send:
			_ = c.ws.SetWriteDeadline(deadline())
			if c.ws.WriteMessage(websocket.TextMessage, b) != nil {
				return
			}
		default:
			return
		}
	}
}

// teardown ends every subscription on the socket and updates presence.
func (c *connection) teardown() {
	c.shutdown()
	if c.claims == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	last, err := c.h.presence.Disconnect(ctx, c.claims.UserID, c.id)
	if err != nil {
		c.log.Warn("presence disconnect", zap.Error(err))
		return
	}
	if last {
		if err := c.h.exec.Service().SetPresence(ctx, c.claims.UserID, false); err != nil {
			c.log.Warn("mark offline", zap.String("user_id", c.claims.UserID), zap.Error(err))
		}
	}
}

func (c *connection) markOnline() {
	if c.claims == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.ctx, 5*time.Second)
	defer cancel()
	first, err := c.h.presence.Connect(ctx, c.claims.UserID, c.id)
	if err != nil {
		c.log.Warn("presence connect", zap.Error(err))
		return
	}
	if first {
		if err := c.h.exec.Service().SetPresence(ctx, c.claims.UserID, true); err != nil {
			c.log.Warn("mark online", zap.String("user_id", c.claims.UserID), zap.Error(err))
		}
	}
}

func isNull(data json.RawMessage) bool {
	return len(data) == 0 || string(data) == "null"
}
