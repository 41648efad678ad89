package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fathima-sithara/graphql-chat/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const opTimeout = 5 * time.Second

type MongoUserRepository struct {
	col *mongo.Collection
}

func NewMongoUserRepository(db *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{col: db.Collection("users")}
}

func (r *MongoUserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true).SetName("username_unique")},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true).SetName("email_unique")},
	})
	return err
}

func (r *MongoUserRepository) Create(ctx context.Context, u *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	if u.Contacts == nil {
		u.Contacts = []primitive.ObjectID{}
	}
	stamp(&u.CreatedAt, &u.UpdatedAt)
	if _, err := r.col.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return err
	}
	return nil
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var u models.User
	if err := r.col.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *MongoUserRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoUserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *MongoUserRepository) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*models.User, error) {
	if len(ids) == 0 {
		return []*models.User{}, nil
	}
	users, err := r.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, nil)
	if err != nil {
		return nil, err
	}
	byID := make(map[primitive.ObjectID]*models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	out := make([]*models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *MongoUserRepository) List(ctx context.Context) ([]*models.User, error) {
	return r.find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "username", Value: 1}}))
}

func (r *MongoUserRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []*models.User{}
	for cur.Next(ctx) {
		var u models.User
		if err := cur.Decode(&u); err != nil {
			return nil, err
		}
		out = append(out, &u)
	}
	return out, cur.Err()
}

func (r *MongoUserRepository) SetOnline(ctx context.Context, id primitive.ObjectID, online bool, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	at = at.UTC().Truncate(time.Millisecond)
	res, err := r.col.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"is_online":   online,
		"last_online": at,
		"updated_at":  at,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoUserRepository) UpdateProfile(ctx context.Context, id primitive.ObjectID, bio string, notifications bool) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"bio":                   bio,
		"notifications_enabled": notifications,
		"updated_at":            now(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var u models.User
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}
