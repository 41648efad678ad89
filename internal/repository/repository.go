package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fathima-sithara/graphql-chat/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")
)

type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	// FindByIDs returns the users that exist, in the order of ids.
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	SetOnline(ctx context.Context, id primitive.ObjectID, online bool, at time.Time) error
	UpdateProfile(ctx context.Context, id primitive.ObjectID, bio string, notifications bool) (*models.User, error)
}

type RoomRepository interface {
	Create(ctx context.Context, r *models.Room) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Room, error)
	FindByName(ctx context.Context, name string) (*models.Room, error)
	FindGroupByKey(ctx context.Context, key string) (*models.Room, error)
	FindDirect(ctx context.Context, pairKey string) (*models.Room, error)
	ListByMember(ctx context.Context, userID primitive.ObjectID) ([]*models.Room, error)
	AddMember(ctx context.Context, roomID, userID primitive.ObjectID) (*models.Room, error)
	RemoveMember(ctx context.Context, roomID, userID primitive.ObjectID) (*models.Room, error)
	Delete(ctx context.Context, roomID primitive.ObjectID) error
}

type MessageRepository interface {
	Create(ctx context.Context, m *models.Message) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error)
	// ListByRoom returns the full history oldest first.
	ListByRoom(ctx context.Context, roomID primitive.ObjectID) ([]*models.Message, error)
	DeleteByRoom(ctx context.Context, roomID primitive.ObjectID) (int64, error)
}

// Store groups the repositories the service layer needs.
type Store struct {
	Users    UserRepository
	Rooms    RoomRepository
	Messages MessageRepository
}

func now() time.Time { return time.Now().UTC().Truncate(time.Millisecond) }

func stamp(created, updated *time.Time) {
	t := now()
	if created.IsZero() {
		*created = t
	}
	if updated.IsZero() {
		*updated = *created
	}
}
