package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/HSouheill/maksab_backend/models"
)

// UserRepo persists users and applies balance mutations. Every method takes
// the caller's context so calls made inside Store.WithinTransaction join the
// session transaction; repos never spawn their own contexts.
type UserRepo struct {
	collection *mongo.Collection
}

func NewUserRepo(db *mongo.Database) *UserRepo {
	return &UserRepo{collection: db.Collection("users")}
}

func (r *UserRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepo) FindByPhone(ctx context.Context, phone string) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"phone": phone}).Decode(&user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepo) FindByReferralCode(ctx context.Context, code string) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"referralCode": code}).Decode(&user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepo) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepo) Insert(ctx context.Context, user *models.User) (primitive.ObjectID, error) {
	result, err := r.collection.InsertOne(ctx, user)
	if err != nil {
		return primitive.NilObjectID, err
	}
	return result.InsertedID.(primitive.ObjectID), nil
}

// AccrueReferral credits a referrer's pendingEarnings at registration time.
// The referral counter only moves for direct (level 1) referrals.
func (r *UserRepo) AccrueReferral(ctx context.Context, referrerID primitive.ObjectID, amount int64, countReferral bool) error {
	inc := bson.M{"pendingEarnings": amount}
	if countReferral {
		inc["totalReferrals"] = 1
	}
	update := bson.M{
		"$inc": inc,
		"$set": bson.M{"updatedAt": time.Now()},
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": referrerID}, update)
	return err
}

// ReleaseEarnings moves a released bonus from pendingEarnings into
// availableBalance and totalEarned. The pendingEarnings floor in the filter
// keeps the balance from going negative; matched=false means the persisted
// state disagrees with the referral record being released.
func (r *UserRepo) ReleaseEarnings(ctx context.Context, referrerID primitive.ObjectID, amount int64) (bool, error) {
	filter := bson.M{
		"_id":             referrerID,
		"pendingEarnings": bson.M{"$gte": amount},
	}
	update := bson.M{
		"$inc": bson.M{
			"pendingEarnings":  -amount,
			"availableBalance": amount,
			"totalEarned":      amount,
		},
		"$set": bson.M{"updatedAt": time.Now()},
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return result.MatchedCount == 1, nil
}

// Activate flips an unverified account to active. matched=false means the
// account was not in the unverified state (already active or suspended).
func (r *UserRepo) Activate(ctx context.Context, userID primitive.ObjectID) (bool, error) {
	now := time.Now()
	filter := bson.M{"_id": userID, "status": models.UserStatusUnverified}
	update := bson.M{
		"$set": bson.M{
			"status":      models.UserStatusActive,
			"activatedAt": now,
			"updatedAt":   now,
		},
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return result.MatchedCount == 1, nil
}

// ReserveBalance takes a withdrawal reservation out of availableBalance. The
// balance floor sits in the filter so the check and the decrement are one
// atomic step even outside a transaction.
func (r *UserRepo) ReserveBalance(ctx context.Context, userID primitive.ObjectID, amount int64) (bool, error) {
	filter := bson.M{
		"_id":              userID,
		"availableBalance": bson.M{"$gte": amount},
	}
	update := bson.M{
		"$inc": bson.M{"availableBalance": -amount},
		"$set": bson.M{"updatedAt": time.Now()},
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return result.MatchedCount == 1, nil
}

func (r *UserRepo) RefundBalance(ctx context.Context, userID primitive.ObjectID, amount int64) error {
	update := bson.M{
		"$inc": bson.M{"availableBalance": amount},
		"$set": bson.M{"updatedAt": time.Now()},
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": userID}, update)
	return err
}

func (r *UserRepo) AddTotalWithdrawn(ctx context.Context, userID primitive.ObjectID, amount int64) error {
	update := bson.M{
		"$inc": bson.M{"totalWithdrawn": amount},
		"$set": bson.M{"updatedAt": time.Now()},
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": userID}, update)
	return err
}

func (r *UserRepo) SetPayoutAccount(ctx context.Context, userID primitive.ObjectID, account string) error {
	update := bson.M{
		"$set": bson.M{"payoutAccount": account, "updatedAt": time.Now()},
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": userID}, update)
	return err
}

func (r *UserRepo) CountAll(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{})
}

func (r *UserRepo) CountByStatus(ctx context.Context, status string) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"status": status})
}

func (r *UserRepo) SumPendingEarnings(ctx context.Context) (int64, error) {
	pipeline := []bson.M{
		{"$group": bson.M{
			"_id":   nil,
			"total": bson.M{"$sum": "$pendingEarnings"},
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
