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

type ReferralRepo struct {
	collection *mongo.Collection
}

func NewReferralRepo(db *mongo.Database) *ReferralRepo {
	return &ReferralRepo{collection: db.Collection("referrals")}
}

func (r *ReferralRepo) Insert(ctx context.Context, referral *models.Referral) (primitive.ObjectID, error) {
	result, err := r.collection.InsertOne(ctx, referral)
	if err != nil {
		return primitive.NilObjectID, err
	}
	return result.InsertedID.(primitive.ObjectID), nil
}

// FindPendingByReferred returns every edge still owed a bonus for this
// referred user, one per ancestor level. This is the release scan of the
// activation flow.
func (r *ReferralRepo) FindPendingByReferred(ctx context.Context, referredID primitive.ObjectID) ([]models.Referral, error) {
	filter := bson.M{
		"referredId": referredID,
		"status":     models.ReferralStatusPending,
	}
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	var referrals []models.Referral
	if err := cursor.All(ctx, &referrals); err != nil {
		return nil, err
	}
	return referrals, nil
}

func (r *ReferralRepo) FindByReferrer(ctx context.Context, referrerID primitive.ObjectID) ([]models.Referral, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"referrerId": referrerID}, opts)
	if err != nil {
		return nil, err
	}
	var referrals []models.Referral
	if err := cursor.All(ctx, &referrals); err != nil {
		return nil, err
	}
	return referrals, nil
}

// Release flips one edge from pending to available. The status filter is the
// dedup guard: a record can only ever match once, so redelivered callbacks
// find nothing left to release.
func (r *ReferralRepo) Release(ctx context.Context, id primitive.ObjectID) (bool, error) {
	now := time.Now()
	filter := bson.M{"_id": id, "status": models.ReferralStatusPending}
	update := bson.M{
		"$set": bson.M{
			"status":     models.ReferralStatusAvailable,
			"releasedAt": now,
		},
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return result.MatchedCount == 1, nil
}
