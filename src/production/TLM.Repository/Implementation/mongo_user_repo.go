package implementation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	tlmmodels "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.Models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoUserRepository struct {
	coll *mongo.Collection
}

func NewMongoUserRepository(coll *mongo.Collection) *MongoUserRepository {
	return &MongoUserRepository{coll: coll}
}

func (r *MongoUserRepository) FindByEmail(ctx context.Context, email string) (*tlmmodels.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var user tlmmodels.User
	err := r.coll.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, tlmmodels.ErrNotFound
		}
		return nil, err
	}

	return &user, nil
}

func (r *MongoUserRepository) Upsert(ctx context.Context, user *tlmmodels.User) (*tlmmodels.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if user.UserID == "" {
		user.UserID = uuid.New().String()
	}

	set := bson.M{"password_hash": user.PasswordHash, "updated_at": time.Now()}
	if user.Role != "" {
		set["role"] = user.Role
	}
	onInsert := bson.M{
		"user_id":    user.UserID,
		"email":      user.Email,
		"created_at": time.Now(),
	}
	if user.Role == "" {
		onInsert["role"] = tlmmodels.RoleMember
	}

	update := bson.M{"$set": set, "$setOnInsert": onInsert}

	var stored tlmmodels.User
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"email": user.Email}, update,
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)).Decode(&stored)
	if err != nil {
		return nil, err
	}

	return &stored, nil
}
