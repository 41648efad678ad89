package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

// NewMongoStore wires the Mongo repositories and makes sure their indexes exist.
func NewMongoStore(ctx context.Context, db *mongo.Database) (*Store, error) {
	users := NewMongoUserRepository(db)
	rooms := NewMongoRoomRepository(db)
	messages := NewMongoMessageRepository(db)

	for name, ix := range map[string]interface{ EnsureIndexes(context.Context) error }{
		"users":    users,
		"rooms":    rooms,
		"messages": messages,
	} {
		if err := ix.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("ensure %s indexes: %w", name, err)
		}
	}
	return &Store{Users: users, Rooms: rooms, Messages: messages}, nil
}

// DropAll removes every collection the store owns.
func DropAll(ctx context.Context, db *mongo.Database) error {
	for _, name := range []string{"users", "rooms", "messages"} {
		if err := db.Collection(name).Drop(ctx); err != nil {
			return fmt.Errorf("drop %s: %w", name, err)
		}
	}
	return nil
}
