package repository

import (
	"context"
	"errors"

	"github.com/fathima-sithara/graphql-chat/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoMessageRepository struct {
	col *mongo.Collection
}

func NewMongoMessageRepository(db *mongo.Database) *MongoMessageRepository {
	return &MongoMessageRepository{col: db.Collection("messages")}
}

func (r *MongoMessageRepository) EnsureIndexes(ctx context.Context) error {
	ix := mongo.IndexModel{
		Keys:    bson.D{{Key: "room_id", Value: 1}, {Key: "created_at", Value: 1}},
		Options: options.Index().SetName("room_created_idx"),
	}
	_, err := r.col.Indexes().CreateOne(ctx, ix)
	return err
}

func (r *MongoMessageRepository) Create(ctx context.Context, m *models.Message) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
	if m.ReadBy == nil {
		m.ReadBy = []primitive.ObjectID{}
	}
	if m.Status == "" {
		m.Status = models.StatusSent
	}
	stamp(&m.CreatedAt, &m.UpdatedAt)
	_, err := r.col.InsertOne(ctx, m)
	return err
}

func (r *MongoMessageRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var m models.Message
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *MongoMessageRepository) ListByRoom(ctx context.Context, roomID primitive.ObjectID) ([]*models.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"room_id": roomID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []*models.Message{}
	for cur.Next(ctx) {
		var m models.Message
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, cur.Err()
}

func (r *MongoMessageRepository) DeleteByRoom(ctx context.Context, roomID primitive.ObjectID) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.col.DeleteMany(ctx, bson.M{"room_id": roomID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
