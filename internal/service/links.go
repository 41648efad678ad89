package service

import (
	"context"
	"fmt"
)

// RoomShareLink is the frontend URL that lets someone join a room.
func (s *Service) RoomShareLink(ctx context.Context, roomID string) (string, error) {
	if _, err := callerID(ctx); err != nil {
		return "", err
	}
	id, err := parseID(roomID, ErrRoomNotFound)
	if err != nil {
		return "", err
	}
	room, err := s.rooms.FindByID(ctx, id)
	if err != nil {
		return "", mapNotFound(err, ErrRoomNotFound)
	}
	return fmt.Sprintf("%s/join/room/%s", s.frontendURL, room.ID.Hex()), nil
}

// UserChatLink is the frontend URL that opens a direct chat with a user.
func (s *Service) UserChatLink(ctx context.Context, userID string) (string, error) {
	if _, err := callerID(ctx); err != nil {
		return "", err
	}
	id, err := parseID(userID, ErrUserNotFound)
	if err != nil {
		return "", err
	}
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return "", mapNotFound(err, ErrUserNotFound)
	}
	return fmt.Sprintf("%s/chat/user/%s", s.frontendURL, u.ID.Hex()), nil
}
