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

type TransactionRepo struct {
	collection *mongo.Collection
}

func NewTransactionRepo(db *mongo.Database) *TransactionRepo {
	return &TransactionRepo{collection: db.Collection("transactions")}
}

func (r *TransactionRepo) Insert(ctx context.Context, txn *models.Transaction) (primitive.ObjectID, error) {
	result, err := r.collection.InsertOne(ctx, txn)
	if err != nil {
		return primitive.NilObjectID, err
	}
	return result.InsertedID.(primitive.ObjectID), nil
}

// UpdateStatus moves one entry between journal states. Both ends of the move
// are in the filter so concurrent updates cannot double-apply.
func (r *TransactionRepo) UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to string) (bool, error) {
	filter := bson.M{"_id": id, "status": from}
	update := bson.M{
		"$set": bson.M{"status": to, "updatedAt": time.Now()},
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return result.MatchedCount == 1, nil
}

// ReopenEntry puts a resolved withdrawal entry back to pending when its
// request is retried. Valid from failed (rejected) and cancelled only.
func (r *TransactionRepo) ReopenEntry(ctx context.Context, id primitive.ObjectID) (bool, error) {
	filter := bson.M{
		"_id":    id,
		"status": bson.M{"$in": []string{models.TransactionStatusFailed, models.TransactionStatusCancelled}},
	}
	update := bson.M{
		"$set": bson.M{"status": models.TransactionStatusPending, "updatedAt": time.Now()},
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return result.MatchedCount == 1, nil
}

// ConfirmBonusEntry confirms the pending bonus journal entry written for a
// referrer at registration time, matched by owner, bonus type and the
// referred user's id carried in the reference field.
func (r *TransactionRepo) ConfirmBonusEntry(ctx context.Context, userID primitive.ObjectID, txType, reference string) (bool, error) {
	filter := bson.M{
		"userId":    userID,
		"type":      txType,
		"reference": reference,
		"status":    models.TransactionStatusPending,
	}
	update := bson.M{
		"$set": bson.M{"status": models.TransactionStatusConfirmed, "updatedAt": time.Now()},
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return result.MatchedCount == 1, nil
}

// HasConfirmed reports whether the user already owns a confirmed entry of the
// given type. The activation flow consults it before writing a second fee entry.
func (r *TransactionRepo) HasConfirmed(ctx context.Context, userID primitive.ObjectID, txType string) (bool, error) {
	filter := bson.M{
		"userId": userID,
		"type":   txType,
		"status": models.TransactionStatusConfirmed,
	}
	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *TransactionRepo) FindByUser(ctx context.Context, userID primitive.ObjectID, page, limit int64) ([]models.Transaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	filter := bson.M{"userId": userID}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	var txns []models.Transaction
	if err := cursor.All(ctx, &txns); err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}

// SumConfirmedByType totals confirmed entries per journal type for the admin
// earnings report.
func (r *TransactionRepo) SumConfirmedByType(ctx context.Context) (map[string]int64, error) {
	pipeline := []bson.M{
		{"$match": bson.M{"status": models.TransactionStatusConfirmed}},
		{"$group": bson.M{
			"_id":   "$type",
			"total": bson.M{"$sum": "$amount"},
		}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var results []struct {
		Type  string `bson:"_id"`
		Total int64  `bson:"total"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}
	totals := make(map[string]int64, len(results))
	for _, row := range results {
		totals[row.Type] = row.Total
	}
	return totals, nil
}

func (r *TransactionRepo) FindBetween(ctx context.Context, from, to time.Time) ([]models.Transaction, error) {
	filter := bson.M{
		"createdAt": bson.M{"$gte": from, "$lt": to},
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var txns []models.Transaction
	if err := cursor.All(ctx, &txns); err != nil {
		return nil, err
	}
	return txns, nil
}
