package repositories

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/HSouheill/maksab_backend/models"
)

type OTPRepo struct {
	collection *mongo.Collection
}

func NewOTPRepo(db *mongo.Database) *OTPRepo {
	return &OTPRepo{collection: db.Collection("phone_otps")}
}

// Save replaces any previous OTP for the phone so only the latest code is
// ever valid.
func (r *OTPRepo) Save(ctx context.Context, otp *models.PhoneOTP) error {
	if _, err := r.collection.DeleteMany(ctx, bson.M{"phone": otp.Phone}); err != nil {
		return err
	}
	_, err := r.collection.InsertOne(ctx, otp)
	return err
}

func (r *OTPRepo) FindByPhone(ctx context.Context, phone string) (*models.PhoneOTP, error) {
	var otp models.PhoneOTP
	err := r.collection.FindOne(ctx, bson.M{"phone": phone}).Decode(&otp)
	if err != nil {
		return nil, err
	}
	return &otp, nil
}

func (r *OTPRepo) DeleteByPhone(ctx context.Context, phone string) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"phone": phone})
	return err
}
