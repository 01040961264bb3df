package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/HSouheill/maksab_backend/models"
)

// ActivationRepo tracks in-flight Whish collects. Attempt rows carry no
// balance effect; they only map the provider's externalId back to a user.
type ActivationRepo struct {
	collection *mongo.Collection
}

func NewActivationRepo(db *mongo.Database) *ActivationRepo {
	return &ActivationRepo{collection: db.Collection("activation_attempts")}
}

func (r *ActivationRepo) Insert(ctx context.Context, attempt *models.ActivationAttempt) (primitive.ObjectID, error) {
	result, err := r.collection.InsertOne(ctx, attempt)
	if err != nil {
		return primitive.NilObjectID, err
	}
	return result.InsertedID.(primitive.ObjectID), nil
}

func (r *ActivationRepo) FindByExternalID(ctx context.Context, externalID int64) (*models.ActivationAttempt, error) {
	var attempt models.ActivationAttempt
	err := r.collection.FindOne(ctx, bson.M{"externalId": externalID}).Decode(&attempt)
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *ActivationRepo) FindLatestByUser(ctx context.Context, userID primitive.ObjectID) (*models.ActivationAttempt, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	var attempt models.ActivationAttempt
	err := r.collection.FindOne(ctx, bson.M{"userId": userID}, opts).Decode(&attempt)
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *ActivationRepo) UpdateStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	update := bson.M{
		"$set": bson.M{"status": status, "updatedAt": time.Now()},
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	return err
}
