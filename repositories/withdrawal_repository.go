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

type WithdrawalRepo struct {
	collection *mongo.Collection
}

func NewWithdrawalRepo(db *mongo.Database) *WithdrawalRepo {
	return &WithdrawalRepo{collection: db.Collection("withdrawals")}
}

func (r *WithdrawalRepo) Insert(ctx context.Context, w *models.Withdrawal) (primitive.ObjectID, error) {
	result, err := r.collection.InsertOne(ctx, w)
	if err != nil {
		return primitive.NilObjectID, err
	}
	return result.InsertedID.(primitive.ObjectID), nil
}

func (r *WithdrawalRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Withdrawal, error) {
	var w models.Withdrawal
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&w)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// FindOutstandingByUser returns the user's pending or processing request if
// one exists; a user may only hold one reservation at a time.
func (r *WithdrawalRepo) FindOutstandingByUser(ctx context.Context, userID primitive.ObjectID) (*models.Withdrawal, error) {
	filter := bson.M{
		"userId": userID,
		"status": bson.M{"$in": []string{models.WithdrawalStatusPending, models.WithdrawalStatusProcessing}},
	}
	var w models.Withdrawal
	err := r.collection.FindOne(ctx, filter).Decode(&w)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WithdrawalRepo) FindByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Withdrawal, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, err
	}
	var withdrawals []models.Withdrawal
	if err := cursor.All(ctx, &withdrawals); err != nil {
		return nil, err
	}
	return withdrawals, nil
}

// BeginProcessing is the compare-and-swap fencing a resolution: only one
// caller can move the request out of pending.
func (r *WithdrawalRepo) BeginProcessing(ctx context.Context, id primitive.ObjectID) (bool, error) {
	filter := bson.M{"_id": id, "status": models.WithdrawalStatusPending}
	update := bson.M{
		"$set": bson.M{"status": models.WithdrawalStatusProcessing, "updatedAt": time.Now()},
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return result.MatchedCount == 1, nil
}

func (r *WithdrawalRepo) Complete(ctx context.Context, id primitive.ObjectID, adminEmail, confirmationCode string) error {
	now := time.Now()
	update := bson.M{
		"$set": bson.M{
			"status":           models.WithdrawalStatusCompleted,
			"confirmationCode": confirmationCode,
			"adminEmail":       adminEmail,
			"processedAt":      now,
			"updatedAt":        now,
		},
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	return err
}

func (r *WithdrawalRepo) Reject(ctx context.Context, id primitive.ObjectID, adminEmail, reason string) error {
	now := time.Now()
	update := bson.M{
		"$set": bson.M{
			"status":          models.WithdrawalStatusRejected,
			"rejectionReason": reason,
			"adminEmail":      adminEmail,
			"processedAt":     now,
			"updatedAt":       now,
		},
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	return err
}

// CancelPending rejects a request on the owner's behalf; valid from pending
// only, so a racing admin resolution wins over a late cancel.
func (r *WithdrawalRepo) CancelPending(ctx context.Context, id primitive.ObjectID, reason string) (bool, error) {
	now := time.Now()
	filter := bson.M{"_id": id, "status": models.WithdrawalStatusPending}
	update := bson.M{
		"$set": bson.M{
			"status":          models.WithdrawalStatusRejected,
			"rejectionReason": reason,
			"processedAt":     now,
			"updatedAt":       now,
		},
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return result.MatchedCount == 1, nil
}

// RetryRejected resets a rejected request to pending and clears the prior
// resolution metadata.
func (r *WithdrawalRepo) RetryRejected(ctx context.Context, id primitive.ObjectID) (bool, error) {
	filter := bson.M{"_id": id, "status": models.WithdrawalStatusRejected}
	update := bson.M{
		"$set": bson.M{"status": models.WithdrawalStatusPending, "updatedAt": time.Now()},
		"$unset": bson.M{
			"rejectionReason":  "",
			"confirmationCode": "",
			"adminEmail":       "",
			"processedAt":      "",
		},
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return result.MatchedCount == 1, nil
}

// ListByStatus pages withdrawal requests for the admin surface, joining the
// owner's name and phone.
func (r *WithdrawalRepo) ListByStatus(ctx context.Context, status string, page, limit int64) ([]models.AdminWithdrawal, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	match := bson.M{}
	if status != "" {
		match["status"] = status
	}

	total, err := r.collection.CountDocuments(ctx, match)
	if err != nil {
		return nil, 0, err
	}

	pipeline := []bson.M{
		{"$match": match},
		{"$sort": bson.M{"createdAt": -1}},
		{"$skip": (page - 1) * limit},
		{"$limit": limit},
		{"$lookup": bson.M{
			"from":         "users",
			"localField":   "userId",
			"foreignField": "_id",
			"as":           "user",
		}},
		{"$unwind": bson.M{"path": "$user", "preserveNullAndEmptyArrays": true}},
		{"$addFields": bson.M{
			"userName":  "$user.fullName",
			"userPhone": "$user.phone",
		}},
		{"$project": bson.M{"user": 0}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, 0, err
	}
	var withdrawals []models.AdminWithdrawal
	if err := cursor.All(ctx, &withdrawals); err != nil {
		return nil, 0, err
	}
	return withdrawals, total, nil
}

// SumOutstanding totals the reserved amounts across all pending and
// processing requests.
func (r *WithdrawalRepo) SumOutstanding(ctx context.Context) (int64, error) {
	pipeline := []bson.M{
		{"$match": bson.M{
			"status": bson.M{"$in": []string{models.WithdrawalStatusPending, models.WithdrawalStatusProcessing}},
		}},
		{"$group": bson.M{
			"_id":   nil,
			"total": bson.M{"$sum": "$amount"},
		}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	var results []struct {
		Total int64 `bson:"total"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, nil
	}
	return results[0].Total, nil
}
