package service

import (
	"context"
	"errors"
	"time"

	"github.com/fathima-sithara/graphql-chat/internal/auth"
	"github.com/fathima-sithara/graphql-chat/internal/events"
	"github.com/fathima-sithara/graphql-chat/internal/models"
	"github.com/fathima-sithara/graphql-chat/internal/pubsub"
	"github.com/fathima-sithara/graphql-chat/internal/repository"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type Deps struct {
	Store       *repository.Store
	Hasher      *auth.PasswordHasher
	Tokens      *auth.JWTManager
	PubSub      *pubsub.PubSub
	Events      events.Publisher
	FrontendURL string
	Logger      *zap.Logger
}

// Service holds the chat rules shared by every transport.
type Service struct {
	users       repository.UserRepository
	rooms       repository.RoomRepository
	messages    repository.MessageRepository
	hasher      *auth.PasswordHasher
	tokens      *auth.JWTManager
	pubsub      *pubsub.PubSub
	events      events.Publisher
	validate    *validator.Validate
	frontendURL string
	log         *zap.Logger
	now         func() time.Time
}

func New(d Deps) *Service {
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Service{
		users:       d.Store.Users,
		rooms:       d.Store.Rooms,
		messages:    d.Store.Messages,
		hasher:      d.Hasher,
		tokens:      d.Tokens,
		pubsub:      d.PubSub,
		events:      d.Events,
		validate:    validator.New(),
		frontendURL: d.FrontendURL,
		log:         d.Logger,
		now:         time.Now,
	}
}

// Tokens exposes the JWT manager so transports resolve identities the same way.
func (s *Service) Tokens() *auth.JWTManager { return s.tokens }

func callerID(ctx context.Context) (primitive.ObjectID, error) {
	claims, ok := auth.ClaimsFromContext(ctx)
	if !ok {
		return primitive.NilObjectID, ErrNotAuthenticated
	}
	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return primitive.NilObjectID, ErrNotAuthenticated
	}
	return id, nil
}

// currentUser loads the caller. A token for a user that no longer exists counts as anonymous.
func (s *Service) currentUser(ctx context.Context) (*models.User, error) {
	id, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	u, err := s.users.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotAuthenticated
	}
	return u, err
}

func parseID(hex string, notFound error) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, notFound
	}
	return id, nil
}

// mapNotFound replaces repository.ErrNotFound with the caller-facing error.
func mapNotFound(err, notFound error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return notFound
	}
	return err
}
