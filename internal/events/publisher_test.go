package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fathima-sithara/graphql-chat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type sent struct {
	destination string
	key         string
	env         Envelope
}

type fakeSink struct {
	mu     sync.Mutex
	err    error
	calls  int
	sent   []sent
	closed bool
}

func (f *fakeSink) Name() string { return "fake" }

func (f *fakeSink) Send(_ context.Context, destination string, key, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return err
	}
	f.sent = append(f.sent, sent{destination: destination, key: string(key), env: env})
	return nil
}

func (f *fakeSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func flush(t *testing.T, b *Bus) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, b.Flush(ctx))
}

func TestBusRoutesEvents(t *testing.T) {
	t.Parallel()
	kafka, nats := &fakeSink{}, &fakeSink{}
	bus := NewBus(nil).OnMessageSent(kafka, "message.sent").OnRoomCreated(nats, "room.created")

	room := &models.Room{ID: primitive.NewObjectID(), Name: "Team", IsGroup: true}
	msg := &models.Message{ID: primitive.NewObjectID(), RoomID: room.ID, Content: "hi"}

	bus.MessageSent(context.Background(), msg)
	bus.RoomCreated(context.Background(), room)
	flush(t, bus)

	require.Len(t, kafka.sent, 1)
	assert.Equal(t, "message.sent", kafka.sent[0].destination)
	assert.Equal(t, room.ID.Hex(), kafka.sent[0].key)
	assert.Equal(t, TypeMessageSent, kafka.sent[0].env.Type)
	assert.NotEmpty(t, kafka.sent[0].env.ID)

	require.Len(t, nats.sent, 1)
	assert.Equal(t, TypeRoomCreated, nats.sent[0].env.Type)

	require.NoError(t, bus.Close(context.Background()))
	assert.True(t, kafka.closed)
	assert.True(t, nats.closed)
}

func TestBusWithoutRoutesIsSilent(t *testing.T) {
	t.Parallel()
	bus := NewBus(nil)
	bus.MessageSent(context.Background(), &models.Message{})
	bus.RoomCreated(context.Background(), &models.Room{})
	flush(t, bus)
	assert.NoError(t, bus.Close(context.Background()))
}

func TestBusBreakerStopsCallingFailingSink(t *testing.T) {
	t.Parallel()
	sink := &fakeSink{err: errors.New("broker down")}
	bus := NewBus(nil).OnMessageSent(sink, "message.sent")

	for i := 0; i < 10; i++ {
		bus.MessageSent(context.Background(), &models.Message{})
		flush(t, bus)
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, 5, sink.calls, "breaker opens after five consecutive failures")
}

func TestBusSurvivesCancelledRequest(t *testing.T) {
	t.Parallel()
	sink := &fakeSink{}
	bus := NewBus(nil).OnRoomCreated(sink, "room.created")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus.RoomCreated(ctx, &models.Room{ID: primitive.NewObjectID()})
	flush(t, bus)
	assert.Len(t, sink.sent, 1)
}

func TestNopPublisher(t *testing.T) {
	t.Parallel()
	var p Publisher = Nop{}
	p.MessageSent(context.Background(), &models.Message{})
	p.RoomCreated(context.Background(), &models.Room{})
}
