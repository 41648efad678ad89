package server

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fathima-sithara/graphql-chat/internal/graph"
	"github.com/fathima-sithara/graphql-chat/internal/metrics"
	"github.com/fathima-sithara/graphql-chat/internal/middleware"
	"github.com/fathima-sithara/graphql-chat/internal/ws"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

const bodyLimit = 1 << 20

// Check reports whether a backing dependency is usable.
type Check func(ctx context.Context) error

type Deps struct {
	FrontendURL string
	Executor    *graph.Executor
	WS          *ws.Handler
	Limiter     middleware.Limiter
	Checks      map[string]Check
	Logger      *zap.Logger
}

// New builds the HTTP app: GraphQL over POST and websocket on /graphql,
// plus health and metrics.
func New(d Deps) *fiber.App {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	app := fiber.New(fiber.Config{
		AppName:               "graphql-chat",
		BodyLimit:             bodyLimit,
		ReadTimeout:           30 * time.Second,
		IdleTimeout:           2 * time.Minute,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(d.Logger),
	})

	app.Use(recover.New())
	app.Use(cors.New(corsConfig(d.FrontendURL)))
	app.Use(middleware.RequestLogger(d.Logger))

	app.Get("/health", health(d.Checks))
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	var pre []fiber.Handler
	if d.Limiter != nil {
		pre = append(pre, middleware.RateLimit(d.Limiter, nil, d.Logger))
	}
	pre = append(pre, middleware.Identity(d.Executor.Service().Tokens()))
	route := func(last ...fiber.Handler) []fiber.Handler {
		return append(append([]fiber.Handler{}, pre...), last...)
	}
	app.Post("/graphql", route(graphqlHandler(d.Executor))...)
	app.Get("/graphql", route(d.WS.Upgrade(), wsRequired)...)

	return app
}

func corsConfig(frontendURL string) cors.Config {
	origins := strings.TrimRight(frontendURL, "/")
	if origins == "" {
		origins = "*"
	}
	return cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, " + middleware.RequestIDHeader,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowCredentials: origins != "*",
	}
}

func graphqlHandler(exec *graph.Executor) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req graph.Request
		if err := c.BodyParser(&req); err != nil {
			return requestError(c, "invalid request body")
		}
		if strings.TrimSpace(req.Query) == "" {
			return requestError(c, "query is required")
		}
		return c.JSON(exec.Exec(c.UserContext(), "http", req))
	}
}

// wsRequired answers plain GETs; queries and mutations go over POST.
func wsRequired(c *fiber.Ctx) error {
	c.Set(fiber.HeaderAllow, fiber.MethodPost)
	return c.Status(fiber.StatusMethodNotAllowed).JSON(fiber.Map{
		"errors": []fiber.Map{{"message": "use POST for queries and mutations or a websocket for subscriptions"}},
	})
}

func requestError(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"errors": []fiber.Map{{"message": msg}},
	})
}

func health(checks map[string]Check) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()

		status, code := "ok", fiber.StatusOK
		results := fiber.Map{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				status, code = "degraded", fiber.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}
		return c.Status(code).JSON(fiber.Map{"status": status, "checks": results})
	}
}

func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}
		msg := err.Error()
		if code == fiber.StatusInternalServerError {
			logger.Error("unhandled error", zap.String("path", c.Path()), zap.Error(err))
			msg = "internal server error"
		}
		return c.Status(code).JSON(fiber.Map{"error": msg})
	}
}
