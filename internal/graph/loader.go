package graph

import (
	"context"
	"sync"

	"github.com/fathima-sithara/graphql-chat/internal/models"
	"github.com/fathima-sithara/graphql-chat/internal/service"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type loaderKey struct{}

// loader memoizes nested user and room lookups for the lifetime of one operation.
// Subscriptions run without one so every event sees fresh documents.
type loader struct {
	svc   *service.Service
	mu    sync.Mutex
	users map[primitive.ObjectID]*models.User
	rooms map[primitive.ObjectID]*models.Room
}

func withLoader(ctx context.Context, svc *service.Service) context.Context {
	return context.WithValue(ctx, loaderKey{}, &loader{
		svc:   svc,
		users: make(map[primitive.ObjectID]*models.User),
		rooms: make(map[primitive.ObjectID]*models.Room),
	})
}

func loaderFrom(ctx context.Context, svc *service.Service) *loader {
	if l, ok := ctx.Value(loaderKey{}).(*loader); ok {
		return l
	}
	return &loader{svc: svc}
}

func (l *loader) prime(u *models.User) {
	if l.users == nil || u == nil {
		return
	}
	l.mu.Lock()
	l.users[u.ID] = u
	l.mu.Unlock()
}

func (l *loader) user(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	if l.users != nil {
		l.mu.Lock()
		u, ok := l.users[id]
		l.mu.Unlock()
		if ok {
			return u, nil
		}
	}
	u, err := l.svc.UserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	l.prime(u)
	return u, nil
}

// usersOf returns the users for ids in the same order, skipping ids that no
// longer resolve.
func (l *loader) usersOf(ctx context.Context, ids []primitive.ObjectID) ([]*models.User, error) {
	found := make(map[primitive.ObjectID]*models.User, len(ids))
	var missing []primitive.ObjectID
	l.mu.Lock()
	for _, id := range ids {
		if u, ok := l.users[id]; ok {
			found[id] = u
		} else {
			missing = append(missing, id)
		}
	}
	l.mu.Unlock()

	if len(missing) > 0 {
		fetched, err := l.svc.UsersByIDs(ctx, missing)
		if err != nil {
			return nil, err
		}
		for _, u := range fetched {
			found[u.ID] = u
			l.prime(u)
		}
	}

	out := make([]*models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := found[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (l *loader) room(ctx context.Context, id primitive.ObjectID) (*models.Room, error) {
	if l.rooms != nil {
		l.mu.Lock()
		r, ok := l.rooms[id]
		l.mu.Unlock()
		if ok {
			return r, nil
		}
	}
	r, err := l.svc.RoomByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.rooms != nil {
		l.mu.Lock()
		l.rooms[id] = r
		l.mu.Unlock()
	}
	return r, nil
}
