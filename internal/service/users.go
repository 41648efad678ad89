package service

import (
	"context"
	"errors"
	"strings"

	"github.com/fathima-sithara/graphql-chat/internal/models"
	"github.com/fathima-sithara/graphql-chat/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type SignupInput struct {
	Username string  `validate:"required,max=64"`
	Email    *string `validate:"omitempty,email,max=254"`
	Password string  `validate:"required,min=6,max=72"`
}

type ProfileInput struct {
	Bio                  *string `validate:"omitempty,max=500"`
	NotificationsEnabled *bool
}

type AuthPayload struct {
	Token string
	User  *models.User
}

func (s *Service) Signup(ctx context.Context, in SignupInput) (*AuthPayload, error) {
	in.Username = strings.TrimSpace(in.Username)
	if in.Email != nil {
		e := strings.ToLower(strings.TrimSpace(*in.Email))
		in.Email = &e
		if e == "" {
			in.Email = nil
		}
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, invalidInput(err)
	}

	if _, err := s.users.FindByUsername(ctx, in.Username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		Username:             in.Username,
		Email:                in.Email,
		PasswordHash:         hash,
		Role:                 models.RoleUser,
		Contacts:             []primitive.ObjectID{},
		NotificationsEnabled: true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			// the username check above passed, so a race or the email index fired
			if _, ferr := s.users.FindByUsername(ctx, u.Username); ferr == nil {
				return nil, ErrUsernameTaken
			}
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	token, err := s.tokens.Generate(u)
	if err != nil {
		return nil, err
	}
	s.log.Info("user signed up", zap.String("user_id", u.ID.Hex()), zap.String("username", u.Username))
	return &AuthPayload{Token: token, User: u}, nil
}

func (s *Service) Login(ctx context.Context, username, password string) (*AuthPayload, error) {
	u, err := s.users.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, mapNotFound(err, ErrUserNotFound)
	}
	if !s.hasher.Verify(password, u.PasswordHash) {
		return nil, ErrInvalidPassword
	}

	at := s.now()
	if err := s.users.SetOnline(ctx, u.ID, true, at); err != nil {
		return nil, err
	}
	u, err = s.users.FindByID(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Generate(u)
	if err != nil {
		return nil, err
	}
	return &AuthPayload{Token: token, User: u}, nil
}

func (s *Service) Me(ctx context.Context) (*models.User, error) {
	return s.currentUser(ctx)
}

func (s *Service) Users(ctx context.Context) ([]*models.User, error) {
	if _, err := callerID(ctx); err != nil {
		return nil, err
	}
	return s.users.List(ctx)
}

// UpdateProfile overwrites both fields; omitted ones fall back to an empty bio
// and notifications on.
func (s *Service) UpdateProfile(ctx context.Context, in ProfileInput) (*models.User, error) {
	id, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, invalidInput(err)
	}
	bio := ""
	if in.Bio != nil {
		bio = strings.TrimSpace(*in.Bio)
	}
	notifications := true
	if in.NotificationsEnabled != nil {
		notifications = *in.NotificationsEnabled
	}
	u, err := s.users.UpdateProfile(ctx, id, bio, notifications)
	return u, mapNotFound(err, ErrNotAuthenticated)
}

// SetPresence records a user's socket presence. Unknown ids are ignored.
func (s *Service) SetPresence(ctx context.Context, userID string, online bool) error {
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil
	}
	err = s.users.SetOnline(ctx, id, online, s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	return err
}

// UserByID backs nested User fields; it does not check the caller.
func (s *Service) UserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	u, err := s.users.FindByID(ctx, id)
	return u, mapNotFound(err, ErrUserNotFound)
}

func (s *Service) UsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*models.User, error) {
	return s.users.FindByIDs(ctx, ids)
}
