package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/fathima-sithara/graphql-chat/internal/auth"
	"github.com/fathima-sithara/graphql-chat/internal/models"
	"github.com/fathima-sithara/graphql-chat/internal/service"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var defaultFixture []byte

type fixture struct {
	Password string        `yaml:"password"`
	Users    []string      `yaml:"users"`
	Groups   []groupSeed   `yaml:"groups"`
	Chats    [][2]string   `yaml:"chats"`
	Messages []messageSeed `yaml:"messages"`
}

type groupSeed struct {
	Name    string   `yaml:"name"`
	Owner   string   `yaml:"owner"`
	Members []string `yaml:"members"`
}

type messageSeed struct {
	Room string `yaml:"room"`
	From string `yaml:"from"`
	Text string `yaml:"text"`
}

type summary struct {
	Users, Groups, Chats, Messages int
}

func loadFixture(path string) (*fixture, error) {
	raw := defaultFixture
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	var f fixture
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	if f.Password == "" {
		return nil, errors.New("fixture password is empty")
	}
	return &f, nil
}

// apply inserts the fixture through the service so every room and message
// rule is enforced. Existing users and groups are reused; messages are only
// posted into groups created by this run.
func apply(ctx context.Context, svc *service.Service, f *fixture, logger *zap.Logger) (summary, error) {
	var sum summary
	sessions := make(map[string]context.Context, len(f.Users))

	for _, name := range f.Users {
		email := name + "@example.com"
		p, err := svc.Signup(ctx, service.SignupInput{Username: name, Email: &email, Password: f.Password})
		created := err == nil
		if errors.Is(err, service.ErrUsernameTaken) {
			p, err = svc.Login(ctx, name, f.Password)
			if err == nil {
				// logging in marks the user online; the seeder is not a session
				err = svc.SetPresence(ctx, p.User.ID.Hex(), false)
			}
		}
		if err != nil {
			return sum, fmt.Errorf("user %s: %w", name, err)
		}
		claims, err := svc.Tokens().Verify(p.Token)
		if err != nil {
			return sum, fmt.Errorf("user %s: %w", name, err)
		}
		sessions[name] = auth.WithClaims(ctx, claims)
		if created {
			bio := "Hi, I'm " + name
			if _, err := svc.UpdateProfile(sessions[name], service.ProfileInput{Bio: &bio}); err != nil {
				return sum, fmt.Errorf("profile %s: %w", name, err)
			}
			sum.Users++
		}
	}

	session := func(name string) (context.Context, error) {
		s, ok := sessions[name]
		if !ok {
			return nil, fmt.Errorf("unknown user %q", name)
		}
		return s, nil
	}

	rooms := make(map[string]*models.Room, len(f.Groups))
	fresh := make(map[string]bool, len(f.Groups))
	for _, g := range f.Groups {
		owner, err := session(g.Owner)
		if err != nil {
			return sum, fmt.Errorf("group %s: %w", g.Name, err)
		}
		room, err := svc.CreateGroup(owner, g.Name)
		switch {
		case err == nil:
			fresh[g.Name] = true
			sum.Groups++
		case errors.Is(err, service.ErrGroupExists):
			room, err = svc.JoinGroup(owner, g.Name)
			if err != nil {
				return sum, fmt.Errorf("group %s: %w", g.Name, err)
			}
		default:
			return sum, fmt.Errorf("group %s: %w", g.Name, err)
		}
		for _, m := range g.Members {
			member, err := session(m)
			if err != nil {
				return sum, fmt.Errorf("group %s: %w", g.Name, err)
			}
			if room, err = svc.JoinGroup(member, g.Name); err != nil {
				return sum, fmt.Errorf("join %s to %s: %w", m, g.Name, err)
			}
		}
		rooms[g.Name] = room
	}

	for _, pair := range f.Chats {
		from, err := session(pair[0])
		if err != nil {
			return sum, err
		}
		if _, err := svc.GetOrCreateChat(from, pair[1]); err != nil {
			return sum, fmt.Errorf("chat %s-%s: %w", pair[0], pair[1], err)
		}
		sum.Chats++
	}

	for _, m := range f.Messages {
		room, ok := rooms[m.Room]
		if !ok {
			return sum, fmt.Errorf("message for unknown room %q", m.Room)
		}
		if !fresh[m.Room] {
			continue
		}
		from, err := session(m.From)
		if err != nil {
			return sum, err
		}
		if _, err := svc.SendMessage(from, service.SendMessageInput{Content: m.Text, RoomID: room.ID.Hex()}); err != nil {
			return sum, fmt.Errorf("message in %s from %s: %w", m.Room, m.From, err)
		}
		sum.Messages++
	}

	logger.Info("fixture applied",
		zap.Int("users", sum.Users),
		zap.Int("groups", sum.Groups),
		zap.Int("chats", sum.Chats),
		zap.Int("messages", sum.Messages),
	)
	return sum, nil
}
