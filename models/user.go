// models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Account status values
const (
	UserStatusUnverified = "unverified"
	UserStatusActive     = "active"
	UserStatusSuspended  = "suspended"
)

// User model. All monetary fields are whole currency units; they are only
// mutated inside the activation and withdrawal flows, never directly.
type User struct {
	ID               primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	FullName         string             `json:"fullName" bson:"fullName"`
	Phone            string             `json:"phone" bson:"phone"`
	Email            string             `json:"email,omitempty" bson:"email,omitempty"`
	Password         string             `json:"-" bson:"password"`
	Status           string             `json:"status" bson:"status"`
	ReferralCode     string             `json:"referralCode" bson:"referralCode"`
	ReferredBy       string             `json:"referredBy,omitempty" bson:"referredBy,omitempty"`
	PayoutAccount    string             `json:"payoutAccount,omitempty" bson:"payoutAccount,omitempty"`
	PendingEarnings  int64              `json:"pendingEarnings" bson:"pendingEarnings"`
	AvailableBalance int64              `json:"availableBalance" bson:"availableBalance"`
	TotalEarned      int64              `json:"totalEarned" bson:"totalEarned"`
	TotalWithdrawn   int64              `json:"totalWithdrawn" bson:"totalWithdrawn"`
	TotalReferrals   int                `json:"totalReferrals" bson:"totalReferrals"`
	ActivatedAt      *time.Time         `json:"activatedAt,omitempty" bson:"activatedAt,omitempty"`
	CreatedAt        time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// IsActive reports whether the account has completed paid activation.
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

type LoginRequest struct {
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password" validate:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// Response model
type Response struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
