// models/referral.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Referral earnings status values
const (
	ReferralStatusPending   = "pending"
	ReferralStatusAvailable = "available"
)

// MaxReferralLevels caps how far up the referrer chain bonuses reach.
const MaxReferralLevels = 3

// Referral is one edge of the referral graph: referrer earns a fixed bonus
// for the referred user at the given level (1 = direct). The bonus stays
// pending until the referred user activates, then becomes available exactly
// once. Unique per (referrerId, referredId) pair.
type Referral struct {
	ID         primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	ReferrerID primitive.ObjectID `json:"referrerId" bson:"referrerId"`
	ReferredID primitive.ObjectID `json:"referredId" bson:"referredId"`
	Level      int                `json:"level" bson:"level"`
	Amount     int64              `json:"amount" bson:"amount"`
	Status     string             `json:"status" bson:"status"`
	CreatedAt  time.Time          `json:"createdAt" bson:"createdAt"`
	ReleasedAt *time.Time         `json:"releasedAt,omitempty" bson:"releasedAt,omitempty"`
}

// ReferralInfo is the presentation payload for GET /api/users/referral.
type ReferralInfo struct {
	ReferralCode   string          `json:"referralCode"`
	ShareLink      string          `json:"shareLink"`
	TotalReferrals int             `json:"totalReferrals"`
	LevelBonuses   []int64         `json:"levelBonuses"`
	Referrals      []ReferralEntry `json:"referrals"`
}

// ReferralEntry is one row of the user's direct referral list.
type ReferralEntry struct {
	FullName  string    `json:"fullName"`
	Level     int       `json:"level"`
	Amount    int64     `json:"amount"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}
