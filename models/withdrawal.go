// models/withdrawal.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Withdrawal status values. pending -> processing -> completed | rejected;
// a rejected request may be retried back to pending; completed is terminal.
const (
	WithdrawalStatusPending    = "pending"
	WithdrawalStatusProcessing = "processing"
	WithdrawalStatusCompleted  = "completed"
	WithdrawalStatusRejected   = "rejected"
)

// Withdrawal is a payout request. The amount is reserved out of the user's
// availableBalance when the request is created and either consumed
// (completed) or refunded (rejected or cancelled).
type Withdrawal struct {
	ID               primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	UserID           primitive.ObjectID `json:"userId" bson:"userId"`
	Amount           int64              `json:"amount" bson:"amount"`
	PayoutAccount    string             `json:"payoutAccount" bson:"payoutAccount"`
	Status           string             `json:"status" bson:"status"`
	RejectionReason  string             `json:"rejectionReason,omitempty" bson:"rejectionReason,omitempty"`
	ConfirmationCode string             `json:"confirmationCode,omitempty" bson:"confirmationCode,omitempty"`
	TransactionID    primitive.ObjectID `json:"transactionId,omitempty" bson:"transactionId,omitempty"`
	AdminEmail       string             `json:"adminEmail,omitempty" bson:"adminEmail,omitempty"`
	ProcessedAt      *time.Time         `json:"processedAt,omitempty" bson:"processedAt,omitempty"`
	CreatedAt        time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// IsOutstanding reports whether the request still holds a reservation.
func (w *Withdrawal) IsOutstanding() bool {
	return w.Status == WithdrawalStatusPending || w.Status == WithdrawalStatusProcessing
}

type WithdrawalCreateRequest struct {
	Amount        int64  `json:"amount" validate:"required,gt=0"`
	PayoutAccount string `json:"payoutAccount,omitempty"`
}

type WithdrawalApproveRequest struct {
	ConfirmationCode string `json:"confirmationCode" validate:"required"`
}

type WithdrawalRejectRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// AdminWithdrawal decorates a withdrawal with owner info for admin listings.
type AdminWithdrawal struct {
	Withdrawal `bson:",inline"`
	UserName   string `json:"userName" bson:"userName"`
	UserPhone  string `json:"userPhone" bson:"userPhone"`
}
