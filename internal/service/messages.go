package service

import (
	"context"
	"strings"

	"github.com/fathima-sithara/graphql-chat/internal/models"
	"github.com/fathima-sithara/graphql-chat/internal/pubsub"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type SendMessageInput struct {
	Content string `validate:"max=4000"`
	RoomID  string
	ReplyTo *string
}

// memberRoom loads roomID and checks the caller belongs to it.
func (s *Service) memberRoom(ctx context.Context, roomID string) (primitive.ObjectID, *models.Room, error) {
	id, err := callerID(ctx)
	if err != nil {
		return id, nil, err
	}
	rid, err := parseID(roomID, ErrRoomNotFound)
	if err != nil {
		return id, nil, err
	}
	room, err := s.memberOf(ctx, id, rid)
	return id, room, err
}

func (s *Service) memberOf(ctx context.Context, userID, roomID primitive.ObjectID) (*models.Room, error) {
	room, err := s.rooms.FindByID(ctx, roomID)
	if err != nil {
		return nil, mapNotFound(err, ErrRoomNotFound)
	}
	if !room.HasMember(userID) {
		return nil, ErrNotMember
	}
	return room, nil
}

// CheckMember reports whether the caller still belongs to roomID. Live
// subscriptions call it before every delivery.
func (s *Service) CheckMember(ctx context.Context, roomID primitive.ObjectID) error {
	id, err := callerID(ctx)
	if err != nil {
		return err
	}
	_, err = s.memberOf(ctx, id, roomID)
	return err
}

// Messages returns the whole history of a room, oldest first.
func (s *Service) Messages(ctx context.Context, roomID string) ([]*models.Message, error) {
	_, room, err := s.memberRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return s.messages.ListByRoom(ctx, room.ID)
}

// SendMessage stores the message and only then publishes it to the room's subscribers.
func (s *Service) SendMessage(ctx context.Context, in SendMessageInput) (*models.Message, error) {
	if _, err := callerID(ctx); err != nil {
		return nil, err
	}
	in.Content = strings.TrimSpace(in.Content)
	if in.Content == "" {
		return nil, ErrEmptyMessage
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, invalidInput(err)
	}
	sender, room, err := s.memberRoom(ctx, in.RoomID)
	if err != nil {
		return nil, err
	}

	m := &models.Message{
		Content: in.Content,
		Sender:  sender,
		RoomID:  room.ID,
		ReadBy:  []primitive.ObjectID{},
		Status:  models.StatusSent,
	}
	if in.ReplyTo != nil && *in.ReplyTo != "" {
		rid, err := parseID(*in.ReplyTo, ErrReplyNotFound)
		if err != nil {
			return nil, err
		}
		target, err := s.messages.FindByID(ctx, rid)
		if err != nil {
			return nil, mapNotFound(err, ErrReplyNotFound)
		}
		if target.RoomID != room.ID {
			return nil, ErrReplyNotFound
		}
		m.ReplyTo = &target.ID
	}

	if err := s.messages.Create(ctx, m); err != nil {
		return nil, err
	}

	published := *m
	n := s.pubsub.Publish(ctx, pubsub.MessageAddedTopic(room.ID.Hex()), &published)
	s.log.Debug("message published",
		zap.String("room_id", room.ID.Hex()),
		zap.String("message_id", m.ID.Hex()),
		zap.Int("subscribers", n),
	)
	s.events.MessageSent(ctx, m)
	return m, nil
}

// SubscribeMessages registers the caller for new messages of a room they belong to.
func (s *Service) SubscribeMessages(ctx context.Context, roomID string) (*pubsub.Subscription, error) {
	_, room, err := s.memberRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return s.pubsub.Subscribe(ctx, pubsub.MessageAddedTopic(room.ID.Hex())), nil
}

// MessageByID backs Message.replyTo; it does not check the caller.
func (s *Service) MessageByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error) {
	m, err := s.messages.FindByID(ctx, id)
	return m, mapNotFound(err, ErrReplyNotFound)
}
