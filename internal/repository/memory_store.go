package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fathima-sithara/graphql-chat/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NewMemoryStore returns repositories kept in process memory. They honour the
// same uniqueness rules as the Mongo indexes and hand out copies, so callers
// never share state with the store.
func NewMemoryStore() *Store {
	return &Store{
		Users:    &memoryUsers{byID: map[primitive.ObjectID]*models.User{}},
		Rooms:    &memoryRooms{byID: map[primitive.ObjectID]*models.Room{}},
		Messages: &memoryMessages{
			byID:   map[primitive.ObjectID]*models.Message{},
			byRoom: map[primitive.ObjectID][]primitive.ObjectID{},
		},
	}
}

func cloneIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	out := make([]primitive.ObjectID, len(ids))
	copy(out, ids)
	return out
}

type memoryUsers struct {
	mu    sync.RWMutex
	byID  map[primitive.ObjectID]*models.User
	order []primitive.ObjectID
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.Contacts = cloneIDs(u.Contacts)
	if u.Email != nil {
		e := *u.Email
		c.Email = &e
	}
	return &c
}

func (s *memoryUsers) Create(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.byID {
		if existing.Username == u.Username {
			return ErrDuplicateKey
		}
		if u.Email != nil && existing.Email != nil && *existing.Email == *u.Email {
			return ErrDuplicateKey
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	if _, ok := s.byID[u.ID]; ok {
		return ErrDuplicateKey
	}
	if u.Contacts == nil {
		u.Contacts = []primitive.ObjectID{}
	}
	stamp(&u.CreatedAt, &u.UpdatedAt)
	s.byID[u.ID] = cloneUser(u)
	s.order = append(s.order, u.ID)
	return nil
}

func (s *memoryUsers) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *memoryUsers) FindByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.byID {
		if u.Username == username {
			return cloneUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (s *memoryUsers) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.byID[id]; ok {
			out = append(out, cloneUser(u))
		}
	}
	return out, nil
}

func (s *memoryUsers) List(_ context.Context) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.User, 0, len(s.byID))
	for _, id := range s.order {
		out = append(out, cloneUser(s.byID[id]))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *memoryUsers) SetOnline(_ context.Context, id primitive.ObjectID, online bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	at = at.UTC().Truncate(time.Millisecond)
	u.IsOnline = online
	u.LastOnline = at
	u.UpdatedAt = at
	return nil
}

func (s *memoryUsers) UpdateProfile(_ context.Context, id primitive.ObjectID, bio string, notifications bool) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	u.Bio = bio
	u.NotificationsEnabled = notifications
	u.UpdatedAt = now()
	return cloneUser(u), nil
}

type memoryRooms struct {
	mu    sync.RWMutex
	byID  map[primitive.ObjectID]*models.Room
	order []primitive.ObjectID
}

func cloneRoom(r *models.Room) *models.Room {
	c := *r
	c.Members = cloneIDs(r.Members)
	return &c
}

func (s *memoryRooms) Create(_ context.Context, r *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.byID {
		if r.NameKey != "" && existing.NameKey == r.NameKey {
			return ErrDuplicateKey
		}
		if r.PairKey != "" && existing.PairKey == r.PairKey {
			return ErrDuplicateKey
		}
	}
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	if r.Members == nil {
		r.Members = []primitive.ObjectID{}
	}
	stamp(&r.CreatedAt, &r.UpdatedAt)
	s.byID[r.ID] = cloneRoom(r)
	s.order = append(s.order, r.ID)
	return nil
}

func (s *memoryRooms) first(match func(*models.Room) bool) (*models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		if r, ok := s.byID[id]; ok && match(r) {
			return cloneRoom(r), nil
		}
	}
	return nil, ErrNotFound
}

func (s *memoryRooms) FindByID(_ context.Context, id primitive.ObjectID) (*models.Room, error) {
	return s.first(func(r *models.Room) bool { return r.ID == id })
}

func (s *memoryRooms) FindByName(_ context.Context, name string) (*models.Room, error) {
	return s.first(func(r *models.Room) bool { return r.Name == name })
}

func (s *memoryRooms) FindGroupByKey(_ context.Context, key string) (*models.Room, error) {
	return s.first(func(r *models.Room) bool { return r.IsGroup && r.NameKey == key })
}

func (s *memoryRooms) FindDirect(_ context.Context, pairKey string) (*models.Room, error) {
	return s.first(func(r *models.Room) bool { return !r.IsGroup && r.PairKey == pairKey })
}

func (s *memoryRooms) ListByMember(_ context.Context, userID primitive.ObjectID) ([]*models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.Room{}
	for _, id := range s.order {
		if r, ok := s.byID[id]; ok && r.HasMember(userID) {
			out = append(out, cloneRoom(r))
		}
	}
	return out, nil
}

func (s *memoryRooms) AddMember(_ context.Context, roomID, userID primitive.ObjectID) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	if !r.HasMember(userID) {
		r.Members = append(r.Members, userID)
	}
	r.UpdatedAt = now()
	return cloneRoom(r), nil
}

func (s *memoryRooms) RemoveMember(_ context.Context, roomID, userID primitive.ObjectID) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	kept := r.Members[:0]
	for _, m := range r.Members {
		if m != userID {
			kept = append(kept, m)
		}
	}
	r.Members = kept
	r.UpdatedAt = now()
	return cloneRoom(r), nil
}

func (s *memoryRooms) Delete(_ context.Context, roomID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[roomID]; !ok {
		return ErrNotFound
	}
	delete(s.byID, roomID)
	for i, id := range s.order {
		if id == roomID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

type memoryMessages struct {
	mu     sync.RWMutex
	byID   map[primitive.ObjectID]*models.Message
	byRoom map[primitive.ObjectID][]primitive.ObjectID
}

func cloneMessage(m *models.Message) *models.Message {
	c := *m
	c.ReadBy = cloneIDs(m.ReadBy)
	if m.ReplyTo != nil {
		id := *m.ReplyTo
		c.ReplyTo = &id
	}
	return &c
}

func (s *memoryMessages) Create(_ context.Context, m *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
	if _, ok := s.byID[m.ID]; ok {
		return ErrDuplicateKey
	}
	if m.ReadBy == nil {
		m.ReadBy = []primitive.ObjectID{}
	}
	if m.Status == "" {
		m.Status = models.StatusSent
	}
	stamp(&m.CreatedAt, &m.UpdatedAt)
	s.byID[m.ID] = cloneMessage(m)
	s.byRoom[m.RoomID] = append(s.byRoom[m.RoomID], m.ID)
	return nil
}

func (s *memoryMessages) FindByID(_ context.Context, id primitive.ObjectID) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneMessage(m), nil
}

func (s *memoryMessages) ListByRoom(_ context.Context, roomID primitive.ObjectID) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byRoom[roomID]
	out := make([]*models.Message, 0, len(ids))
	for _, id := range ids {
		out = append(out, cloneMessage(s.byID[id]))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.Hex() < out[j].ID.Hex()
	})
	return out, nil
}

func (s *memoryMessages) DeleteByRoom(_ context.Context, roomID primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.byRoom[roomID]
	for _, id := range ids {
		delete(s.byID, id)
	}
	delete(s.byRoom, roomID)
	return int64(len(ids)), nil
}
