// models/transaction.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Transaction status values. Status only ever moves forward:
// pending -> confirmed | failed | cancelled.
const (
	TransactionStatusPending   = "pending"
	TransactionStatusConfirmed = "confirmed"
	TransactionStatusFailed    = "failed"
	TransactionStatusCancelled = "cancelled"
)

// Transaction type values
const (
	TransactionTypeActivationFee = "activation_fee"
	TransactionTypeWithdrawal    = "withdrawal"
	TransactionTypeBonusLevel1   = "referral_bonus_level_1"
	TransactionTypeBonusLevel2   = "referral_bonus_level_2"
	TransactionTypeBonusLevel3   = "referral_bonus_level_3"
)

// Transaction is one journal entry. Entries are written in the same Mongo
// transaction as the balance mutation they describe and are immutable apart
// from the one-way status progression. Reference carries the correlation key
// used for idempotent lookups: the Whish external id for activation fees, the
// withdrawal request hex id for withdrawals, the referred user's hex id for
// referral bonuses.
type Transaction struct {
	ID          primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	UserID      primitive.ObjectID `json:"userId" bson:"userId"`
	Type        string             `json:"type" bson:"type"`
	Amount      int64              `json:"amount" bson:"amount"`
	Status      string             `json:"status" bson:"status"`
	Reference   string             `json:"reference,omitempty" bson:"reference,omitempty"`
	Description string             `json:"description,omitempty" bson:"description,omitempty"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// BonusTypeForLevel maps a referral level to its journal entry type.
func BonusTypeForLevel(level int) string {
	switch level {
	case 1:
		return TransactionTypeBonusLevel1
	case 2:
		return TransactionTypeBonusLevel2
	case 3:
		return TransactionTypeBonusLevel3
	}
	return ""
}

// IsEarningType reports whether the entry adds to totalEarned when confirmed.
func IsEarningType(txType string) bool {
	switch txType {
	case TransactionTypeBonusLevel1, TransactionTypeBonusLevel2, TransactionTypeBonusLevel3:
		return true
	}
	return false
}
