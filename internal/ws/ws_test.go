package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/fathima-sithara/graphql-chat/internal/auth"
	"github.com/fathima-sithara/graphql-chat/internal/graph"
	"github.com/fathima-sithara/graphql-chat/internal/models"
	"github.com/fathima-sithara/graphql-chat/internal/presence"
	"github.com/fathima-sithara/graphql-chat/internal/pubsub"
	"github.com/fathima-sithara/graphql-chat/internal/repository"
	"github.com/fathima-sithara/graphql-chat/internal/service"
	"github.com/gofiber/fiber/v2"
	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const subscription = `subscription($r: ID!) { messageAdded(roomId: $r) { id content sender { username } } }`

type env struct {
	url   string
	svc   *service.Service
	ps    *pubsub.PubSub
	store *repository.Store
}

func newEnv(t *testing.T, cfg Config) *env {
	t.Helper()
	store := repository.NewMemoryStore()
	ps := pubsub.New(nil)
	svc := service.New(service.Deps{
		Store:       store,
		Hasher:      auth.NewPasswordHasher(4),
		Tokens:      auth.NewJWTManager("test-secret", time.Hour),
		PubSub:      ps,
		FrontendURL: "http://front.test",
	})
	exec, err := graph.NewExecutor(svc, nil)
	require.NoError(t, err)

	if cfg.InitTimeout == 0 {
		cfg.InitTimeout = 2 * time.Second
	}
	h := NewHandler(exec, presence.NewMemoryTracker(), cfg, nil)
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/graphql", h.Upgrade(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusMethodNotAllowed)
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.ShutdownWithTimeout(time.Second) })

	return &env{url: "ws://" + ln.Addr().String() + "/graphql", svc: svc, ps: ps, store: store}
}

func (e *env) signup(t *testing.T, username string) (string, context.Context, *models.User) {
	t.Helper()
	p, err := e.svc.Signup(context.Background(), service.SignupInput{Username: username, Password: "password123"})
	require.NoError(t, err)
	claims, err := e.svc.Tokens().Verify(p.Token)
	require.NoError(t, err)
	return p.Token, auth.WithClaims(context.Background(), claims), p.User
}

func dial(t *testing.T, url string) *gws.Conn {
	t.Helper()
	d := gws.Dialer{Subprotocols: []string{Subprotocol}, HandshakeTimeout: 2 * time.Second}
	conn, resp, err := d.Dial(url, nil)
	require.NoError(t, err)
	assert.Equal(t, Subprotocol, resp.Header.Get("Sec-WebSocket-Protocol"))
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *gws.Conn, v interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

func recv(t *testing.T, conn *gws.Conn) message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var m message
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

func expectClose(t *testing.T, conn *gws.Conn, code int) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	var ce *gws.CloseError
	require.True(t, errors.As(err, &ce), "expected close frame, got %v", err)
	assert.Equal(t, code, ce.Code)
}

func connect(t *testing.T, e *env, token string) *gws.Conn {
	t.Helper()
	conn := dial(t, e.url)
	payload := map[string]interface{}{}
	if token != "" {
		payload["Authorization"] = "Bearer " + token
	}
	send(t, conn, map[string]interface{}{"type": "connection_init", "payload": payload})
	require.Equal(t, typeConnectionAck, recv(t, conn).Type)
	return conn
}

func subscribe(t *testing.T, conn *gws.Conn, id, roomID string) {
	t.Helper()
	send(t, conn, map[string]interface{}{
		"id":   id,
		"type": "subscribe",
		"payload": map[string]interface{}{
			"query":     subscription,
			"variables": map[string]interface{}{"r": roomID},
		},
	})
}

func TestPingPong(t *testing.T) {
	t.Parallel()
	e := newEnv(t, Config{})
	conn := connect(t, e, "")

	send(t, conn, map[string]interface{}{"type": "ping", "payload": map[string]string{"n": "1"}})
	m := recv(t, conn)
	assert.Equal(t, typePong, m.Type)
	assert.JSONEq(t, `{"n":"1"}`, string(m.Payload))
}

func TestInitTimeout(t *testing.T) {
	t.Parallel()
	e := newEnv(t, Config{InitTimeout: 100 * time.Millisecond})
	conn := dial(t, e.url)
	expectClose(t, conn, closeInitTimeout)
}

func TestSubscribeBeforeInit(t *testing.T) {
	t.Parallel()
	e := newEnv(t, Config{})
	conn := dial(t, e.url)
	subscribe(t, conn, "1", "000000000000000000000000")
	expectClose(t, conn, closeUnauthorized)
}

func TestRepeatedInit(t *testing.T) {
	t.Parallel()
	e := newEnv(t, Config{})
	conn := connect(t, e, "")
	send(t, conn, map[string]interface{}{"type": "connection_init"})
	expectClose(t, conn, closeTooManyInits)
}

func TestInvalidFrame(t *testing.T) {
	t.Parallel()
	e := newEnv(t, Config{})
	conn := connect(t, e, "")
	require.NoError(t, conn.WriteMessage(gws.TextMessage, []byte("not json")))
	expectClose(t, conn, closeBadRequest)
}

func TestUnauthenticatedSubscriptionGetsError(t *testing.T) {
	t.Parallel()
	e := newEnv(t, Config{})
	conn := connect(t, e, "")

	subscribe(t, conn, "op", "000000000000000000000000")
	m := recv(t, conn)
	assert.Equal(t, typeError, m.Type)
	assert.Equal(t, "op", m.ID)

	var errs []struct{ Message string }
	require.NoError(t, json.Unmarshal(m.Payload, &errs))
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Message, "Not authenticated")
}

func TestSubscriptionDelivery(t *testing.T) {
	t.Parallel()
	e := newEnv(t, Config{})
	_, aliceCtx, _ := e.signup(t, "alice")
	bobToken, bobCtx, _ := e.signup(t, "bob")
	carolToken, carolCtx, _ := e.signup(t, "carol")

	team, err := e.svc.CreateGroup(aliceCtx, "Team")
	require.NoError(t, err)
	_, err = e.svc.JoinGroup(bobCtx, "team")
	require.NoError(t, err)
	other, err := e.svc.CreateGroup(carolCtx, "Other")
	require.NoError(t, err)

	bob := connect(t, e, bobToken)
	carol := connect(t, e, carolToken)
	subscribe(t, bob, "1", team.ID.Hex())
	subscribe(t, carol, "1", other.ID.Hex())
	require.Eventually(t, func() bool {
		return e.ps.Subscribers(pubsub.MessageAddedTopic(team.ID.Hex())) == 1 &&
			e.ps.Subscribers(pubsub.MessageAddedTopic(other.ID.Hex())) == 1
	}, 2*time.Second, 10*time.Millisecond)

	sent, err := e.svc.SendMessage(aliceCtx, service.SendMessageInput{Content: "hello team", RoomID: team.ID.Hex()})
	require.NoError(t, err)

	m := recv(t, bob)
	require.Equal(t, typeNext, m.Type)
	assert.Equal(t, "1", m.ID)
	var result struct {
		Data struct {
			MessageAdded struct {
				ID      string
				Content string
				Sender  struct{ Username string }
			}
		}
	}
	require.NoError(t, json.Unmarshal(m.Payload, &result))
	assert.Equal(t, sent.ID.Hex(), result.Data.MessageAdded.ID)
	assert.Equal(t, "hello team", result.Data.MessageAdded.Content)
	assert.Equal(t, "alice", result.Data.MessageAdded.Sender.Username)

	send(t, bob, map[string]interface{}{"id": "1", "type": "complete"})
	require.Eventually(t, func() bool {
		return e.ps.Subscribers(pubsub.MessageAddedTopic(team.ID.Hex())) == 0
	}, 2*time.Second, 10*time.Millisecond)

	// carol listens on another room and must not see the message
	require.NoError(t, carol.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err = carol.ReadMessage()
	var netErr net.Error
	require.True(t, errors.As(err, &netErr) && netErr.Timeout(), "unexpected frame or error: %v", err)
}

func TestDuplicateOperationID(t *testing.T) {
	t.Parallel()
	e := newEnv(t, Config{})
	token, ctx, _ := e.signup(t, "alice")
	room, err := e.svc.CreateGroup(ctx, "Team")
	require.NoError(t, err)

	conn := connect(t, e, token)
	subscribe(t, conn, "same", room.ID.Hex())
	subscribe(t, conn, "same", room.ID.Hex())
	expectClose(t, conn, closeSubscriberExists)
}

func TestDisconnectReleasesSubscriptionsAndPresence(t *testing.T) {
	t.Parallel()
	e := newEnv(t, Config{})
	token, ctx, user := e.signup(t, "bob")
	room, err := e.svc.CreateGroup(ctx, "Team")
	require.NoError(t, err)

	conn := connect(t, e, token)
	u, err := e.store.Users.FindByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, u.IsOnline)

	subscribe(t, conn, "1", room.ID.Hex())
	topic := pubsub.MessageAddedTopic(room.ID.Hex())
	require.Eventually(t, func() bool { return e.ps.Subscribers(topic) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(gws.CloseMessage, gws.FormatCloseMessage(gws.CloseNormalClosure, "")))
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		if e.ps.Subscribers(topic) != 0 {
			return false
		}
		u, err := e.store.Users.FindByID(context.Background(), user.ID)
		return err == nil && !u.IsOnline
	}, 2*time.Second, 10*time.Millisecond)
}
