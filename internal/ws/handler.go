package ws

import (
	"time"

	"github.com/fathima-sithara/graphql-chat/internal/auth"
	"github.com/fathima-sithara/graphql-chat/internal/graph"
	"github.com/fathima-sithara/graphql-chat/internal/metrics"
	"github.com/fathima-sithara/graphql-chat/internal/presence"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

const localsClaims = "ws_claims"

type Config struct {
	PingInterval    time.Duration
	WriteDeadline   time.Duration
	InitTimeout     time.Duration
	MaxMessageSize  int64
	RateLimitPerSec int
}

// Handler serves GraphQL subscriptions over graphql-transport-ws.
type Handler struct {
	exec     *graph.Executor
	tokens   *auth.JWTManager
	presence presence.Tracker
	cfg      Config
	log      *zap.Logger
}

func NewHandler(exec *graph.Executor, tracker presence.Tracker, cfg Config, logger *zap.Logger) *Handler {
	if tracker == nil {
		tracker = presence.NewMemoryTracker()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 25 * time.Second
	}
	if cfg.WriteDeadline <= 0 {
		cfg.WriteDeadline = 10 * time.Second
	}
	if cfg.InitTimeout <= 0 {
		cfg.InitTimeout = 3 * time.Second
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 64 * 1024
	}
	return &Handler{
		exec:     exec,
		tokens:   exec.Service().Tokens(),
		presence: tracker,
		cfg:      cfg,
		log:      logger.Named("ws"),
	}
}

// Upgrade switches websocket requests to the subscription protocol and passes
// everything else to the next handler. An identity already resolved from the
// upgrade request headers is kept as the connection default.
func (h *Handler) Upgrade() fiber.Handler {
	upgrade := websocket.New(h.Serve, websocket.Config{
		Subprotocols: []string{Subprotocol},
	})
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		if claims, ok := auth.ClaimsFromContext(c.UserContext()); ok {
			c.Locals(localsClaims, claims)
		}
		return upgrade(c)
	}
}

// Serve runs one connection until either side closes it.
func (h *Handler) Serve(conn *websocket.Conn) {
	c := newConnection(h, conn)
	if claims, ok := conn.Locals(localsClaims).(*auth.Claims); ok {
		c.claims = claims
	}

	metrics.Connections.Inc()
	defer metrics.Connections.Dec()
	c.log.Debug("ws connected", zap.String("subprotocol", conn.Subprotocol()))

	go c.writePump()
	c.readPump()
	<-c.writerDone
	c.log.Debug("ws disconnected")
}
