package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fathima-sithara/graphql-chat/internal/auth"
	"github.com/fathima-sithara/graphql-chat/internal/graph"
	"github.com/fathima-sithara/graphql-chat/internal/middleware"
	"github.com/fathima-sithara/graphql-chat/internal/presence"
	"github.com/fathima-sithara/graphql-chat/internal/pubsub"
	"github.com/fathima-sithara/graphql-chat/internal/repository"
	"github.com/fathima-sithara/graphql-chat/internal/service"
	"github.com/fathima-sithara/graphql-chat/internal/ws"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(t *testing.T, limiter middleware.Limiter, checks map[string]Check) *fiber.App {
	t.Helper()
	svc := service.New(service.Deps{
		Store:       repository.NewMemoryStore(),
		Hasher:      auth.NewPasswordHasher(4),
		Tokens:      auth.NewJWTManager("test-secret", time.Hour),
		PubSub:      pubsub.New(nil),
		FrontendURL: "http://front.test",
	})
	exec, err := graph.NewExecutor(svc, nil)
	require.NoError(t, err)
	return New(Deps{
		FrontendURL: "http://front.test",
		Executor:    exec,
		WS:          ws.NewHandler(exec, presence.NewMemoryTracker(), ws.Config{}, nil),
		Limiter:     limiter,
		Checks:      checks,
	})
}

type gqlResponse struct {
	Data   json.RawMessage
	Errors []struct {
		Message    string
		Extensions map[string]interface{}
	}
}

func post(t *testing.T, app *fiber.App, token, query string) (int, gqlResponse) {
	t.Helper()
	body, err := json.Marshal(map[string]string{"query": query})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out gqlResponse
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return resp.StatusCode, out
}

func TestGraphQLOverHTTP(t *testing.T) {
	t.Parallel()
	app := newApp(t, nil, nil)

	status, resp := post(t, app, "", `mutation { signup(username: "alice", password: "password123") { token } }`)
	require.Equal(t, http.StatusOK, status)
	require.Empty(t, resp.Errors)
	var signup struct{ Signup struct{ Token string } }
	require.NoError(t, json.Unmarshal(resp.Data, &signup))
	require.NotEmpty(t, signup.Signup.Token)

	status, resp = post(t, app, signup.Signup.Token, `{ me { username } }`)
	require.Equal(t, http.StatusOK, status)
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"me":{"username":"alice"}}`, string(resp.Data))

	_, resp = post(t, app, "", `{ me { username } }`)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "Not authenticated", resp.Errors[0].Message)
	assert.Equal(t, "UNAUTHENTICATED", resp.Errors[0].Extensions["code"])

	_, resp = post(t, app, "not-a-token", `{ me { username } }`)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "Not authenticated", resp.Errors[0].Message)
}

func TestGraphQLRejectsEmptyQuery(t *testing.T) {
	t.Parallel()
	app := newApp(t, nil, nil)

	status, resp := post(t, app, "", "  ")
	assert.Equal(t, http.StatusBadRequest, status)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "query is required", resp.Errors[0].Message)

	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	res, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestPlainGetIsNotAllowed(t *testing.T) {
	t.Parallel()
	app := newApp(t, nil, nil)

	res, err := app.Test(httptest.NewRequest(http.MethodGet, "/graphql", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
	assert.Equal(t, http.MethodPost, res.Header.Get("Allow"))
}

func TestRateLimit(t *testing.T) {
	t.Parallel()
	app := newApp(t, middleware.NewIPRateLimiter(1, 1), nil)

	status, _ := post(t, app, "", `{ users { id } }`)
	assert.Equal(t, http.StatusOK, status)

	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":"{ users { id } }"}`))
	req.Header.Set("Content-Type", "application/json")
	res, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, res.StatusCode)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	ok := newApp(t, nil, map[string]Check{"store": func(context.Context) error { return nil }})
	res, err := ok.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	down := newApp(t, nil, map[string]Check{"mongo": func(context.Context) error { return errors.New("no reachable servers") }})
	res, err = down.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)

	var body struct {
		Status string
		Checks map[string]string
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "no reachable servers", body.Checks["mongo"])
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	app := newApp(t, nil, nil)
	post(t, app, "", `{ users { id } }`)

	res, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "graphql_requests_total")
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()
	app := newApp(t, nil, nil)

	req := httptest.NewRequest(http.MethodOptions, "/graphql", nil)
	req.Header.Set("Origin", "http://front.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	res, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, "http://front.test", res.Header.Get("Access-Control-Allow-Origin"))
}
