package service

import (
	"context"
	"errors"
	"strings"

	"github.com/fathima-sithara/graphql-chat/internal/auth"
	"github.com/fathima-sithara/graphql-chat/internal/models"
	"github.com/fathima-sithara/graphql-chat/internal/pubsub"
	"github.com/fathima-sithara/graphql-chat/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const joinedTheChat = "Joined the chat"

func (s *Service) Rooms(ctx context.Context) ([]*models.Room, error) {
	id, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	return s.rooms.ListByMember(ctx, id)
}

func (s *Service) CreateGroup(ctx context.Context, name string) (*models.Room, error) {
	id, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrGroupNameRequired
	}
	key := models.GroupKey(name)

	if _, err := s.rooms.FindGroupByKey(ctx, key); err == nil {
		return nil, ErrGroupExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	room := &models.Room{
		Name:      name,
		NameKey:   key,
		IsGroup:   true,
		Members:   []primitive.ObjectID{id},
		CreatedBy: id,
	}
	if err := s.rooms.Create(ctx, room); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, ErrGroupExists
		}
		return nil, err
	}

	s.log.Info("group created", zap.String("room_id", room.ID.Hex()), zap.String("name", room.Name))
	s.events.RoomCreated(ctx, room)
	return room, nil
}

// JoinGroup matches the group name case-insensitively; joining twice is a no-op.
func (s *Service) JoinGroup(ctx context.Context, name string) (*models.Room, error) {
	id, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrGroupNameRequired
	}

	room, err := s.rooms.FindGroupByKey(ctx, models.GroupKey(name))
	if errors.Is(err, repository.ErrNotFound) {
		if other, ferr := s.rooms.FindByName(ctx, name); ferr == nil && !other.IsGroup {
			return nil, ErrNotAGroup
		}
		return nil, ErrGroupNotFound
	}
	if err != nil {
		return nil, err
	}
	if room.HasMember(id) {
		return room, nil
	}
	room, err = s.rooms.AddMember(ctx, room.ID, id)
	return room, mapNotFound(err, ErrGroupNotFound)
}

// GetOrCreateChat returns the direct room shared with username, creating it
// and its two "Joined the chat" messages the first time.
func (s *Service) GetOrCreateChat(ctx context.Context, username string) (*models.Room, error) {
	me, err := s.currentUser(ctx)
	if err != nil {
		return nil, err
	}
	username = strings.TrimSpace(username)
	if username == me.Username {
		return nil, ErrSelfChat
	}
	other, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, mapNotFound(err, ErrUserNotFound)
	}

	key := models.PairKey(me.ID, other.ID)
	room, err := s.rooms.FindDirect(ctx, key)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	room = &models.Room{
		Name:      models.DirectChatName(me.Username, other.Username),
		PairKey:   key,
		IsGroup:   false,
		Members:   []primitive.ObjectID{me.ID, other.ID},
		CreatedBy: me.ID,
	}
	if err := s.rooms.Create(ctx, room); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			// lost the race to a concurrent request for the same pair
			return s.rooms.FindDirect(ctx, key)
		}
		return nil, err
	}

	for _, u := range []*models.User{me, other} {
		seed := &models.Message{
			Content: joinedTheChat,
			Sender:  u.ID,
			RoomID:  room.ID,
			Status:  models.StatusSent,
		}
		if err := s.messages.Create(ctx, seed); err != nil {
			s.discardChat(ctx, room)
			return nil, err
		}
	}

	s.log.Info("direct chat created", zap.String("room_id", room.ID.Hex()), zap.String("name", room.Name))
	s.events.RoomCreated(ctx, room)
	return room, nil
}

// discardChat removes a direct room whose seed messages could not all be
// written, so the next call creates it again.
func (s *Service) discardChat(ctx context.Context, room *models.Room) {
	ctx = context.WithoutCancel(ctx)
	if _, err := s.messages.DeleteByRoom(ctx, room.ID); err != nil {
		s.log.Error("discard chat messages", zap.String("room_id", room.ID.Hex()), zap.Error(err))
	}
	if err := s.rooms.Delete(ctx, room.ID); err != nil {
		s.log.Error("discard chat", zap.String("room_id", room.ID.Hex()), zap.Error(err))
	}
}

func (s *Service) groupForCaller(ctx context.Context, roomID string) (primitive.ObjectID, *models.Room, error) {
	id, err := callerID(ctx)
	if err != nil {
		return id, nil, err
	}
	rid, err := parseID(roomID, ErrRoomNotFound)
	if err != nil {
		return id, nil, err
	}
	room, err := s.rooms.FindByID(ctx, rid)
	if err != nil {
		return id, nil, mapNotFound(err, ErrRoomNotFound)
	}
	if !room.IsGroup {
		return id, nil, ErrNotAGroup
	}
	return id, room, nil
}

func (s *Service) LeaveGroup(ctx context.Context, roomID string) (*models.Room, error) {
	id, room, err := s.groupForCaller(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasMember(id) {
		return nil, ErrNotMember
	}
	room, err = s.rooms.RemoveMember(ctx, room.ID, id)
	return room, mapNotFound(err, ErrRoomNotFound)
}

// DeleteGroup removes the group and its history. Only its creator or an admin may.
func (s *Service) DeleteGroup(ctx context.Context, roomID string) (bool, error) {
	id, room, err := s.groupForCaller(ctx, roomID)
	if err != nil {
		return false, err
	}
	if room.CreatedBy != id {
		claims, _ := auth.ClaimsFromContext(ctx)
		if claims == nil || claims.Role != models.RoleAdmin {
			return false, ErrCannotDelete
		}
	}

	if err := s.rooms.Delete(ctx, room.ID); err != nil {
		return false, mapNotFound(err, ErrRoomNotFound)
	}
	n, err := s.messages.DeleteByRoom(ctx, room.ID)
	if err != nil {
		s.log.Error("delete group messages", zap.String("room_id", room.ID.Hex()), zap.Error(err))
	}
	closed := s.pubsub.CloseTopic(pubsub.MessageAddedTopic(room.ID.Hex()))
	s.log.Info("group deleted",
		zap.String("room_id", room.ID.Hex()),
		zap.Int64("messages", n),
		zap.Int("subscriptions", closed),
	)
	return true, nil
}

// RoomByID backs nested Room fields; it does not check the caller.
func (s *Service) RoomByID(ctx context.Context, id primitive.ObjectID) (*models.Room, error) {
	room, err := s.rooms.FindByID(ctx, id)
	return room, mapNotFound(err, ErrRoomNotFound)
}
