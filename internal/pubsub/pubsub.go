package pubsub

import (
	"context"
	"sync"

	"github.com/fathima-sithara/graphql-chat/internal/metrics"
	"go.uber.org/zap"
)

const messageAddedPrefix = "MESSAGE_ADDED_"

// MessageAddedTopic names the topic new messages of a room are published on.
func MessageAddedTopic(roomID string) string {
	return messageAddedPrefix + roomID
}

// PubSub is an in-process topic registry. Publish hands the payload to every
// subscriber registered on the topic at that moment and waits for each of
// them in turn; nothing is stored or replayed.
type PubSub struct {
	mu     sync.RWMutex
	topics map[string]*topic
	buffer int
	log    *zap.Logger
}

type topic struct {
	// deliver serializes publishes so every subscriber sees them in the same order.
	deliver sync.Mutex
	subs    []*Subscription
}

type Option func(*PubSub)

// WithBuffer sets how many events a subscriber may hold before Publish blocks on it.
func WithBuffer(n int) Option {
	return func(p *PubSub) {
		if n >= 0 {
			p.buffer = n
		}
	}
}

func New(logger *zap.Logger, opts ...Option) *PubSub {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &PubSub{topics: map[string]*topic{}, buffer: 16, log: logger}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Subscription is one registered listener. Events arrive on C until Done is closed.
type Subscription struct {
	topic string
	ch    chan any
	done  chan struct{}
	once  sync.Once
	ps    *PubSub

	mu   sync.Mutex
	stop func() bool
}

func (s *Subscription) C() <-chan any { return s.ch }

func (s *Subscription) Done() <-chan struct{} { return s.done }

func (s *Subscription) Topic() string { return s.topic }

// Close unregisters the subscription. Pending publishes skip it.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.done)
		s.ps.remove(s)

		s.mu.Lock()
		stop := s.stop
		s.mu.Unlock()
		if stop != nil {
			stop()
		}
		metrics.Subscribers.Dec()
	})
}

// Subscribe registers on name until ctx ends or Close is called.
func (p *PubSub) Subscribe(ctx context.Context, name string) *Subscription {
	sub := &Subscription{
		topic: name,
		ch:    make(chan any, p.buffer),
		done:  make(chan struct{}),
		ps:    p,
	}

	p.mu.Lock()
	t, ok := p.topics[name]
	if !ok {
		t = &topic{}
		p.topics[name] = t
	}
	t.subs = append(t.subs[:len(t.subs):len(t.subs)], sub)
	p.mu.Unlock()
	metrics.Subscribers.Inc()

	stop := context.AfterFunc(ctx, sub.Close)
	sub.mu.Lock()
	sub.stop = stop
	sub.mu.Unlock()

	p.log.Debug("subscribed", zap.String("topic", name))
	return sub
}

func (p *PubSub) remove(s *Subscription) {
	p.mu.Lock()
	defer p.mu.Unlock()

	t, ok := p.topics[s.topic]
	if !ok {
		return
	}
	kept := make([]*Subscription, 0, len(t.subs))
	for _, other := range t.subs {
		if other != s {
			kept = append(kept, other)
		}
	}
	t.subs = kept
	if len(kept) == 0 {
		delete(p.topics, s.topic)
	}
	p.log.Debug("unsubscribed", zap.String("topic", s.topic))
}

// Publish delivers payload to the current subscribers of name and returns how
// many received it. It blocks on a full subscriber until that subscriber takes
// the event, closes, or ctx ends.
func (p *PubSub) Publish(ctx context.Context, name string, payload any) int {
	metrics.Published.Inc()

	p.mu.RLock()
	t, ok := p.topics[name]
	p.mu.RUnlock()
	if !ok {
		return 0
	}

	t.deliver.Lock()
	defer t.deliver.Unlock()

	p.mu.RLock()
	subs := t.subs
	p.mu.RUnlock()

	delivered := 0
	for _, s := range subs {
		select {
		case <-s.done:
			continue
		default:
		}
		select {
		case s.ch <- payload:
			delivered++
			metrics.Delivered.Inc()
		case <-s.done:
		case <-ctx.Done():
			p.log.Warn("publish abandoned",
				zap.String("topic", name),
				zap.Int("delivered", delivered),
				zap.Int("subscribers", len(subs)),
				zap.Error(ctx.Err()),
			)
			return delivered
		}
	}
	return delivered
}

// Subscribers reports how many listeners name has.
func (p *PubSub) Subscribers(name string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if t, ok := p.topics[name]; ok {
		return len(t.subs)
	}
	return 0
}

// CloseTopic ends every subscription on name and returns how many there were.
func (p *PubSub) CloseTopic(name string) int {
	p.mu.RLock()
	var subs []*Subscription
	if t, ok := p.topics[name]; ok {
		subs = t.subs
	}
	p.mu.RUnlock()

	for _, s := range subs {
		s.Close()
	}
	return len(subs)
}
