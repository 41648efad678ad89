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

type MongoRoomRepository struct {
	col *mongo.Collection
}

func NewMongoRoomRepository(db *mongo.Database) *MongoRoomRepository {
	return &MongoRoomRepository{col: db.Collection("rooms")}
}

// EnsureIndexes makes group names unique per lower-cased key and direct chats
// unique per member pair.
func (r *MongoRoomRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "name_key", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("group_name_key_unique").
				SetPartialFilterExpression(bson.M{"name_key": bson.M{"$exists": true}}),
		},
		{
			Keys: bson.D{{Key: "pair_key", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("direct_pair_key_unique").
				SetPartialFilterExpression(bson.M{"pair_key": bson.M{"$exists": true}}),
		},
		{Keys: bson.D{{Key: "members", Value: 1}}, Options: options.Index().SetName("members_idx")},
		{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetName("name_idx")},
	})
	return err
}

func (r *MongoRoomRepository) Create(ctx context.Context, room *models.Room) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if room.ID.IsZero() {
		room.ID = primitive.NewObjectID()
	}
	if room.Members == nil {
		room.Members = []primitive.ObjectID{}
	}
	stamp(&room.CreatedAt, &room.UpdatedAt)
	if _, err := r.col.InsertOne(ctx, room); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return err
	}
	return nil
}

func (r *MongoRoomRepository) findOne(ctx context.Context, filter bson.M) (*models.Room, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var room models.Room
	if err := r.col.FindOne(ctx, filter).Decode(&room); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &room, nil
}

func (r *MongoRoomRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Room, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoRoomRepository) FindByName(ctx context.Context, name string) (*models.Room, error) {
	return r.findOne(ctx, bson.M{"name": name})
}

func (r *MongoRoomRepository) FindGroupByKey(ctx context.Context, key string) (*models.Room, error) {
	return r.findOne(ctx, bson.M{"name_key": key, "is_group": true})
}

func (r *MongoRoomRepository) FindDirect(ctx context.Context, pairKey string) (*models.Room, error) {
	return r.findOne(ctx, bson.M{"pair_key": pairKey, "is_group": false})
}

func (r *MongoRoomRepository) ListByMember(ctx context.Context, userID primitive.ObjectID) ([]*models.Room, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"members": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []*models.Room{}
	for cur.Next(ctx) {
		var room models.Room
		if err := cur.Decode(&room); err != nil {
			return nil, err
		}
		out = append(out, &room)
	}
	return out, cur.Err()
}

func (r *MongoRoomRepository) updateMembers(ctx context.Context, roomID primitive.ObjectID, op string, userID primitive.ObjectID) (*models.Room, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	update := bson.M{
		op:     bson.M{"members": userID},
		"$set": bson.M{"updated_at": now()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var room models.Room
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": roomID}, update, opts).Decode(&room); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &room, nil
}

func (r *MongoRoomRepository) AddMember(ctx context.Context, roomID, userID primitive.ObjectID) (*models.Room, error) {
	return r.updateMembers(ctx, roomID, "$addToSet", userID)
}

func (r *MongoRoomRepository) RemoveMember(ctx context.Context, roomID, userID primitive.ObjectID) (*models.Room, error) {
	return r.updateMembers(ctx, roomID, "$pull", userID)
}

func (r *MongoRoomRepository) Delete(ctx context.Context, roomID primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": roomID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
