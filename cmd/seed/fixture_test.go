package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fathima-sithara/graphql-chat/internal/auth"
	"github.com/fathima-sithara/graphql-chat/internal/pubsub"
	"github.com/fathima-sithara/graphql-chat/internal/repository"
	"github.com/fathima-sithara/graphql-chat/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(store *repository.Store) *service.Service {
	return service.New(service.Deps{
		Store:       store,
		Hasher:      auth.NewPasswordHasher(4),
		Tokens:      auth.NewJWTManager("test-secret", time.Hour),
		PubSub:      pubsub.New(nil),
		FrontendURL: "http://front.test",
	})
}

func TestDefaultFixtureLoads(t *testing.T) {
	f, err := loadFixture("")
	require.NoError(t, err)
	assert.Equal(t, "password123", f.Password)
	assert.Len(t, f.Users, 15)
	assert.NotEmpty(t, f.Groups)
	assert.NotEmpty(t, f.Chats)
}

func TestLoadFixtureFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "small.yaml")
	require.NoError(t, os.WriteFile(path, []byte("password: secret1\nusers: [a, b]\nchats:\n  - [a, b]\n"), 0o600))

	f, err := loadFixture(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, f.Users)
	assert.Equal(t, [][2]string{{"a", "b"}}, f.Chats)

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("users: [a]\n"), 0o600))
	_, err = loadFixture(empty)
	assert.Error(t, err)
}

func TestApplyIsRepeatable(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	svc := newService(store)
	f, err := loadFixture("")
	require.NoError(t, err)

	first, err := apply(ctx, svc, f, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, len(f.Users), first.Users)
	assert.Equal(t, len(f.Groups), first.Groups)
	assert.Equal(t, len(f.Chats), first.Chats)
	assert.Equal(t, len(f.Messages), first.Messages)

	users, err := store.Users.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, len(f.Users))
	for _, u := range users {
		assert.Equal(t, "Hi, I'm "+u.Username, u.Bio)
		assert.False(t, u.IsOnline)
	}

	second, err := apply(ctx, svc, f, zap.NewNop())
	require.NoError(t, err)
	assert.Zero(t, second.Users)
	assert.Zero(t, second.Groups)
	assert.Zero(t, second.Messages)

	users, err = store.Users.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, len(f.Users))
	for _, u := range users {
		assert.False(t, u.IsOnline, u.Username)
	}
}

func TestApplyRejectsUnknownUsers(t *testing.T) {
	f := &fixture{
		Password: "password123",
		Users:    []string{"alice"},
		Groups:   []groupSeed{{Name: "Team", Owner: "ghost"}},
	}
	_, err := apply(context.Background(), newService(repository.NewMemoryStore()), f, zap.NewNop())
	assert.ErrorContains(t, err, `unknown user "ghost"`)
}
