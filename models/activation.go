// models/activation.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Activation attempt status values
const (
	ActivationAttemptCreated   = "created"
	ActivationAttemptConfirmed = "confirmed"
	ActivationAttemptFailed    = "failed"
)

// ActivationAttempt tracks one in-flight Whish collect for the activation
// fee. It carries no balance effect; its only job is mapping the provider's
// externalId back to the paying user when the callback arrives. A user may
// hold several attempts at once, the first confirmed one activates the
// account and the rest become no-ops.
type ActivationAttempt struct {
	ID         primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	UserID     primitive.ObjectID `json:"userId" bson:"userId"`
	ExternalID int64              `json:"externalId" bson:"externalId"`
	Amount     int64              `json:"amount" bson:"amount"`
	CollectURL string             `json:"collectUrl,omitempty" bson:"collectUrl,omitempty"`
	Status     string             `json:"status" bson:"status"`
	CreatedAt  time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt  time.Time          `json:"updatedAt" bson:"updatedAt"`
}

type InitiateActivationRequest struct {
	Amount        int64  `json:"amount" validate:"required,gt=0"`
	PayoutAccount string `json:"payoutAccount,omitempty"`
}

// ActivationInitiated is the response payload of POST /api/activation/initiate.
type ActivationInitiated struct {
	CollectURL string `json:"collectUrl"`
	ExternalID int64  `json:"externalId"`
	Amount     int64  `json:"amount"`
}
