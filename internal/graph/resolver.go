package graph

import (
	"context"

	"github.com/fathima-sithara/graphql-chat/internal/models"
	"github.com/fathima-sithara/graphql-chat/internal/service"
	graphql "github.com/graph-gophers/graphql-go"
	"go.uber.org/zap"
)

// Resolver is the root of the schema: queries, mutations and the subscription.
type Resolver struct {
	svc *service.Service
	log *zap.Logger
}

func (r *Resolver) Me(ctx context.Context) (*UserResolver, error) {
	u, err := r.svc.Me(ctx)
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	return r.user(u), nil
}

func (r *Resolver) Messages(ctx context.Context, args struct{ RoomID graphql.ID }) ([]*MessageResolver, error) {
	ms, err := r.svc.Messages(ctx, string(args.RoomID))
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	out := make([]*MessageResolver, len(ms))
	for i, m := range ms {
		out[i] = r.message(m)
	}
	return out, nil
}

func (r *Resolver) Rooms(ctx context.Context) ([]*RoomResolver, error) {
	rooms, err := r.svc.Rooms(ctx)
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	out := make([]*RoomResolver, len(rooms))
	for i, room := range rooms {
		out[i] = r.room(room)
	}
	return out, nil
}

func (r *Resolver) Users(ctx context.Context) ([]*UserResolver, error) {
	us, err := r.svc.Users(ctx)
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	l := loaderFrom(ctx, r.svc)
	for _, u := range us {
		l.prime(u)
	}
	return r.users(us), nil
}

func (r *Resolver) GetRoomShareLink(ctx context.Context, args struct{ RoomID graphql.ID }) (string, error) {
	link, err := r.svc.RoomShareLink(ctx, string(args.RoomID))
	return link, r.fail(ctx, err)
}

func (r *Resolver) GetUserChatLink(ctx context.Context, args struct{ UserID graphql.ID }) (string, error) {
	link, err := r.svc.UserChatLink(ctx, string(args.UserID))
	return link, r.fail(ctx, err)
}

func (r *Resolver) Signup(ctx context.Context, args struct {
	Username string
	Email    *string
	Password string
}) (*AuthPayloadResolver, error) {
	p, err := r.svc.Signup(ctx, service.SignupInput{
		Username: args.Username,
		Email:    args.Email,
		Password: args.Password,
	})
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	return &AuthPayloadResolver{r: r, p: p}, nil
}

func (r *Resolver) Login(ctx context.Context, args struct{ Username, Password string }) (*AuthPayloadResolver, error) {
	p, err := r.svc.Login(ctx, args.Username, args.Password)
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	return &AuthPayloadResolver{r: r, p: p}, nil
}

func (r *Resolver) UpdateProfile(ctx context.Context, args struct {
	Bio                  *string
	NotificationsEnabled *bool
}) (*UserResolver, error) {
	u, err := r.svc.UpdateProfile(ctx, service.ProfileInput{
		Bio:                  args.Bio,
		NotificationsEnabled: args.NotificationsEnabled,
	})
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	return r.user(u), nil
}

func (r *Resolver) CreateGroup(ctx context.Context, args struct{ Name string }) (*RoomResolver, error) {
	room, err := r.svc.CreateGroup(ctx, args.Name)
	return r.roomResult(ctx, room, err)
}

func (r *Resolver) JoinGroup(ctx context.Context, args struct{ Name string }) (*RoomResolver, error) {
	room, err := r.svc.JoinGroup(ctx, args.Name)
	return r.roomResult(ctx, room, err)
}

func (r *Resolver) GetOrCreateChat(ctx context.Context, args struct{ Username string }) (*RoomResolver, error) {
	room, err := r.svc.GetOrCreateChat(ctx, args.Username)
	return r.roomResult(ctx, room, err)
}

func (r *Resolver) LeaveGroup(ctx context.Context, args struct{ RoomID graphql.ID }) (*RoomResolver, error) {
	room, err := r.svc.LeaveGroup(ctx, string(args.RoomID))
	return r.roomResult(ctx, room, err)
}

func (r *Resolver) DeleteGroup(ctx context.Context, args struct{ RoomID graphql.ID }) (bool, error) {
	ok, err := r.svc.DeleteGroup(ctx, string(args.RoomID))
	return ok, r.fail(ctx, err)
}

func (r *Resolver) SendMessage(ctx context.Context, args struct {
	Content string
	RoomID  graphql.ID
	ReplyTo *graphql.ID
}) (*MessageResolver, error) {
	in := service.SendMessageInput{Content: args.Content, RoomID: string(args.RoomID)}
	if args.ReplyTo != nil {
		id := string(*args.ReplyTo)
		in.ReplyTo = &id
	}
	m, err := r.svc.SendMessage(ctx, in)
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	return r.message(m), nil
}

// MessageAdded streams messages sent to a room until the subscriber goes away
// or stops being a member.
func (r *Resolver) MessageAdded(ctx context.Context, args struct{ RoomID graphql.ID }) (<-chan *MessageResolver, error) {
	sub, err := r.svc.SubscribeMessages(ctx, string(args.RoomID))
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	out := make(chan *MessageResolver)
	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case v := <-sub.C():
				m, ok := v.(*models.Message)
				if !ok {
					continue
				}
				if err := r.svc.CheckMember(ctx, m.RoomID); err != nil {
					switch service.KindOf(err) {
					case service.KindForbidden, service.KindNotFound, service.KindUnauthenticated:
						r.log.Debug("subscriber lost access to room",
							zap.String("room_id", m.RoomID.Hex()), zap.Error(err))
						return
					}
					r.log.Warn("membership check", zap.String("room_id", m.RoomID.Hex()), zap.Error(err))
				}
				select {
				case out <- r.message(m):
				case <-ctx.Done():
					return
				}
			case <-sub.Done():
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (r *Resolver) roomResult(ctx context.Context, room *models.Room, err error) (*RoomResolver, error) {
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	return r.room(room), nil
}
