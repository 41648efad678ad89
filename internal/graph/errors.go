package graph

import (
	"context"

	"github.com/fathima-sithara/graphql-chat/internal/service"
	"go.uber.org/zap"
)

const internalMessage = "internal server error"

// gqlError is what clients see: the service message and a machine readable code.
type gqlError struct {
	msg  string
	code string
}

func (e *gqlError) Error() string { return e.msg }

func (e *gqlError) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": e.code}
}

func codeFor(k service.Kind) string {
	switch k {
	case service.KindUnauthenticated:
		return "UNAUTHENTICATED"
	case service.KindInvalid:
		return "BAD_USER_INPUT"
	case service.KindNotFound:
		return "NOT_FOUND"
	case service.KindForbidden:
		return "FORBIDDEN"
	default:
		return "INTERNAL_SERVER_ERROR"
	}
}

// fail hides unexpected errors from clients after logging them.
func (r *Resolver) fail(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	kind := service.KindOf(err)
	if kind == service.KindInternal {
		if ctx.Err() == nil {
			r.log.Error("resolver failed", zap.Error(err))
		}
		return &gqlError{msg: internalMessage, code: codeFor(kind)}
	}
	return &gqlError{msg: err.Error(), code: codeFor(kind)}
}
