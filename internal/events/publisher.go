package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/fathima-sithara/graphql-chat/internal/metrics"
	"github.com/fathima-sithara/graphql-chat/internal/models"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	TypeMessageSent = "message.sent"
	TypeRoomCreated = "room.created"

	sendTimeout = 5 * time.Second
)

// Publisher announces committed changes to systems outside this process.
// Calls never fail the caller; delivery problems are logged.
type Publisher interface {
	MessageSent(ctx context.Context, m *models.Message)
	RoomCreated(ctx context.Context, r *models.Room)
}

// Sink is one external transport, addressed by a topic or subject.
type Sink interface {
	Name() string
	Send(ctx context.Context, destination string, key, payload []byte) error
	Close() error
}

type Envelope struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

type route struct {
	sink        Sink
	destination string
	breaker     *gobreaker.CircuitBreaker
}

// Bus fans domain events out to the configured sinks in the background.
type Bus struct {
	messageSent *route
	roomCreated *route
	log         *zap.Logger
	wg          sync.WaitGroup
}

func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{log: logger}
}

func (b *Bus) newRoute(s Sink, destination string) *route {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        s.Name() + ":" + destination,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 5 },
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.log.Warn("event sink breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return &route{sink: s, destination: destination, breaker: cb}
}

// OnMessageSent routes message.sent events to s.
func (b *Bus) OnMessageSent(s Sink, destination string) *Bus {
	b.messageSent = b.newRoute(s, destination)
	return b
}

// OnRoomCreated routes room.created events to s.
func (b *Bus) OnRoomCreated(s Sink, destination string) *Bus {
	b.roomCreated = b.newRoute(s, destination)
	return b
}

func (b *Bus) MessageSent(ctx context.Context, m *models.Message) {
	b.emit(ctx, b.messageSent, TypeMessageSent, m.RoomID.Hex(), m)
}

func (b *Bus) RoomCreated(ctx context.Context, r *models.Room) {
	b.emit(ctx, b.roomCreated, TypeRoomCreated, r.ID.Hex(), r)
}

func (b *Bus) emit(ctx context.Context, rt *route, typ, key string, data any) {
	if rt == nil {
		return
	}
	env := Envelope{ID: uuid.NewString(), Type: typ, OccurredAt: time.Now().UTC(), Data: data}
	payload, err := json.Marshal(env)
	if err != nil {
		b.log.Error("encode event", zap.String("type", typ), zap.Error(err))
		return
	}

	// The request may finish before the sink answers.
	ctx = context.WithoutCancel(ctx)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		defer cancel()

		_, err := rt.breaker.Execute(func() (interface{}, error) {
			return nil, rt.sink.Send(sendCtx, rt.destination, []byte(key), payload)
		})
		outcome := "ok"
		if err != nil {
			outcome = "error"
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				outcome = "dropped"
			}
			b.log.Warn("event not delivered",
				zap.String("sink", rt.sink.Name()),
				zap.String("type", typ),
				zap.String("event_id", env.ID),
				zap.Error(err),
			)
		}
		metrics.DomainEvents.WithLabelValues(rt.sink.Name(), outcome).Inc()
	}()
}

// Flush waits for in-flight deliveries or until ctx ends.
func (b *Bus) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes and closes every sink.
func (b *Bus) Close(ctx context.Context) error {
	ferr := b.Flush(ctx)
	var errs []error
	seen := map[Sink]bool{}
	for _, rt := range []*route{b.messageSent, b.roomCreated} {
		if rt == nil || seen[rt.sink] {
			continue
		}
		seen[rt.sink] = true
		if err := rt.sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(append([]error{ferr}, errs...)...)
}

// Nop discards every event.
type Nop struct{}

func (Nop) MessageSent(context.Context, *models.Message) {}
func (Nop) RoomCreated(context.Context, *models.Room)    {}
