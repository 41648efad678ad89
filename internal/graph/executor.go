package graph

import (
	"context"
	_ "embed"
	"time"

	"github.com/fathima-sithara/graphql-chat/internal/metrics"
	"github.com/fathima-sithara/graphql-chat/internal/service"
	graphql "github.com/graph-gophers/graphql-go"
	"go.uber.org/zap"
)

//go:embed schema.graphql
var schemaSDL string

const maxDepth = 12

// Request is a GraphQL operation as sent by clients over either transport.
type Request struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

// Executor runs operations against the chat schema.
type Executor struct {
	schema *graphql.Schema
	svc    *service.Service
	log    *zap.Logger
}

func NewExecutor(svc *service.Service, logger *zap.Logger) (*Executor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	root := &Resolver{svc: svc, log: logger.Named("graphql")}
	schema, err := graphql.ParseSchema(schemaSDL, root,
		graphql.MaxDepth(maxDepth),
		graphql.Logger(panicLogger{log: root.log}),
	)
	if err != nil {
		return nil, err
	}
	return &Executor{schema: schema, svc: svc, log: root.log}, nil
}

// Service returns the service the resolvers run against.
func (e *Executor) Service() *service.Service { return e.svc }

// Exec runs a query or mutation. The caller identity, if any, must already be on ctx.
func (e *Executor) Exec(ctx context.Context, transport string, req Request) *graphql.Response {
	start := time.Now()
	resp := e.schema.Exec(withLoader(ctx, e.svc), req.Query, req.OperationName, req.Variables)
	observe(transport, start, resp)
	return resp
}

// Subscribe starts a subscription. The returned channel yields *graphql.Response
// values and is closed when the stream ends or ctx is cancelled.
func (e *Executor) Subscribe(ctx context.Context, transport string, req Request) (<-chan interface{}, error) {
	metrics.GraphQLRequests.WithLabelValues(transport, "subscribe").Inc()
	return e.schema.Subscribe(ctx, req.Query, req.OperationName, req.Variables)
}

func observe(transport string, start time.Time, resp *graphql.Response) {
	outcome := "ok"
	if len(resp.Errors) > 0 {
		outcome = "error"
	}
	metrics.GraphQLRequests.WithLabelValues(transport, outcome).Inc()
	metrics.GraphQLDuration.WithLabelValues(transport).Observe(time.Since(start).Seconds())
}

type panicLogger struct{ log *zap.Logger }

func (p panicLogger) LogPanic(_ context.Context, value interface{}) {
	p.log.Error("resolver panic", zap.Any("panic", value), zap.Stack("stack"))
}
