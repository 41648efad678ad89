package graph

import (
	"context"
	"time"

	"github.com/fathima-sithara/graphql-chat/internal/models"
	"github.com/fathima-sithara/graphql-chat/internal/service"
	graphql "github.com/graph-gophers/graphql-go"
)

const timeLayout = "2006-01-02T15:04:05.000Z"

func formatTime(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format(timeLayout)
	return &s
}

type UserResolver struct {
	r *Resolver
	u *models.User
}

func (r *Resolver) user(u *models.User) *UserResolver { return &UserResolver{r: r, u: u} }

func (r *Resolver) users(us []*models.User) []*UserResolver {
	out := make([]*UserResolver, len(us))
	for i, u := range us {
		out[i] = r.user(u)
	}
	return out
}

func (u *UserResolver) ID() graphql.ID   { return graphql.ID(u.u.ID.Hex()) }
func (u *UserResolver) Username() string { return u.u.Username }
func (u *UserResolver) Email() *string   { return u.u.Email }
func (u *UserResolver) Bio() *string     { return &u.u.Bio }
func (u *UserResolver) IsOnline() *bool  { return &u.u.IsOnline }

func (u *UserResolver) LastOnline() *string { return formatTime(u.u.LastOnline) }

func (u *UserResolver) Role() *string {
	role := u.u.Role
	if role == "" {
		role = "member"
	}
	return &role
}

func (u *UserResolver) Contacts(ctx context.Context) (*[]*UserResolver, error) {
	us, err := loaderFrom(ctx, u.r.svc).usersOf(ctx, u.u.Contacts)
	if err != nil {
		return nil, u.r.fail(ctx, err)
	}
	out := u.r.users(us)
	return &out, nil
}

func (u *UserResolver) NotificationsEnabled() *bool { return &u.u.NotificationsEnabled }
func (u *UserResolver) EmailVerified() *bool        { return &u.u.EmailVerified }
func (u *UserResolver) CreatedAt() *string          { return formatTime(u.u.CreatedAt) }
func (u *UserResolver) UpdatedAt() *string          { return formatTime(u.u.UpdatedAt) }

type RoomResolver struct {
	r    *Resolver
	room *models.Room
}

func (r *Resolver) room(m *models.Room) *RoomResolver { return &RoomResolver{r: r, room: m} }

func (rr *RoomResolver) ID() graphql.ID { return graphql.ID(rr.room.ID.Hex()) }
func (rr *RoomResolver) Name() string   { return rr.room.Name }
func (rr *RoomResolver) IsGroup() *bool { return &rr.room.IsGroup }

func (rr *RoomResolver) Members(ctx context.Context) ([]*UserResolver, error) {
	us, err := loaderFrom(ctx, rr.r.svc).usersOf(ctx, rr.room.Members)
	if err != nil {
		return nil, rr.r.fail(ctx, err)
	}
	return rr.r.users(us), nil
}

func (rr *RoomResolver) CreatedBy(ctx context.Context) (*UserResolver, error) {
	if rr.room.CreatedBy.IsZero() {
		return nil, nil
	}
	u, err := loaderFrom(ctx, rr.r.svc).user(ctx, rr.room.CreatedBy)
	if service.KindOf(err) == service.KindNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, rr.r.fail(ctx, err)
	}
	return rr.r.user(u), nil
}

func (rr *RoomResolver) CreatedAt() *string { return formatTime(rr.room.CreatedAt) }
func (rr *RoomResolver) UpdatedAt() *string { return formatTime(rr.room.UpdatedAt) }

type MessageResolver struct {
	r *Resolver
	m *models.Message
}

func (r *Resolver) message(m *models.Message) *MessageResolver { return &MessageResolver{r: r, m: m} }

func (mr *MessageResolver) ID() graphql.ID   { return graphql.ID(mr.m.ID.Hex()) }
func (mr *MessageResolver) Content() *string { return &mr.m.Content }

func (mr *MessageResolver) Sender(ctx context.Context) (*UserResolver, error) {
	u, err := loaderFrom(ctx, mr.r.svc).user(ctx, mr.m.Sender)
	if err != nil {
		return nil, mr.r.fail(ctx, err)
	}
	return mr.r.user(u), nil
}

func (mr *MessageResolver) RoomID(ctx context.Context) (*RoomResolver, error) {
	room, err := loaderFrom(ctx, mr.r.svc).room(ctx, mr.m.RoomID)
	if err != nil {
		return nil, mr.r.fail(ctx, err)
	}
	return mr.r.room(room), nil
}

func (mr *MessageResolver) ReadBy(ctx context.Context) (*[]*UserResolver, error) {
	us, err := loaderFrom(ctx, mr.r.svc).usersOf(ctx, mr.m.ReadBy)
	if err != nil {
		return nil, mr.r.fail(ctx, err)
	}
	out := mr.r.users(us)
	return &out, nil
}

func (mr *MessageResolver) ReplyTo(ctx context.Context) (*MessageResolver, error) {
	if mr.m.ReplyTo == nil {
		return nil, nil
	}
	m, err := mr.r.svc.MessageByID(ctx, *mr.m.ReplyTo)
	if service.KindOf(err) == service.KindNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, mr.r.fail(ctx, err)
	}
	return mr.r.message(m), nil
}

func (mr *MessageResolver) Status() *string {
	s := string(mr.m.Status)
	if s == "" {
		s = string(models.StatusSent)
	}
	return &s
}

func (mr *MessageResolver) CreatedAt() *string { return formatTime(mr.m.CreatedAt) }
func (mr *MessageResolver) UpdatedAt() *string { return formatTime(mr.m.UpdatedAt) }

type AuthPayloadResolver struct {
	r *Resolver
	p *service.AuthPayload
}

func (a *AuthPayloadResolver) Token() string       { return a.p.Token }
func (a *AuthPayloadResolver) User() *UserResolver { return a.r.user(a.p.User) }
