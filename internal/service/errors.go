package service

import "errors"

type Kind int

const (
	KindInternal Kind = iota
	KindUnauthenticated
	KindInvalid
	KindNotFound
	KindForbidden
)

// Error is a failure the caller is meant to see. Its message is shown to users as is.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func newError(kind Kind, msg string) *Error { return &Error{Kind: kind, Msg: msg} }

// KindOf reports the kind of err, KindInternal for anything not raised here.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

var (
	ErrNotAuthenticated  = newError(KindUnauthenticated, "Not authenticated")
	ErrUsernameTaken     = newError(KindInvalid, "Username already taken")
	ErrEmailTaken        = newError(KindInvalid, "Email already in use")
	ErrUserNotFound      = newError(KindNotFound, "User not found")
	ErrInvalidPassword   = newError(KindInvalid, "Invalid password")
	ErrGroupNameRequired = newError(KindInvalid, "Group name is required")
	ErrGroupExists       = newError(KindInvalid, "Group with this name already exists")
	ErrGroupNotFound     = newError(KindNotFound, "Group not found")
	ErrNotAGroup         = newError(KindInvalid, "Not a group")
	ErrSelfChat          = newError(KindInvalid, "Cannot chat with yourself")
	ErrRoomNotFound      = newError(KindNotFound, "Room not found")
	ErrNotMember         = newError(KindForbidden, "Not a member of this room")
	ErrCannotDelete      = newError(KindForbidden, "Not allowed to delete this group")
	ErrEmptyMessage      = newError(KindInvalid, "Message content is required")
	ErrReplyNotFound     = newError(KindNotFound, "Reply target not found")
)
