// repositories/interfaces.go
package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/maksab_backend/models"
)

// UnitOfWork runs a function inside one atomic storage transaction.
type UnitOfWork interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// UserRepository is the persistence surface the services need for users.
// Conditional mutators return matched=false when the guard in their filter
// did not hold, leaving the caller to decide what that means.
type UserRepository interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByPhone(ctx context.Context, phone string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByReferralCode(ctx context.Context, code string) (*models.User, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
	Insert(ctx context.Context, user *models.User) (primitive.ObjectID, error)
	AccrueReferral(ctx context.Context, referrerID primitive.ObjectID, amount int64, countReferral bool) error
	ReleaseEarnings(ctx context.Context, referrerID primitive.ObjectID, amount int64) (bool, error)
	Activate(ctx context.Context, userID primitive.ObjectID) (bool, error)
	ReserveBalance(ctx context.Context, userID primitive.ObjectID, amount int64) (bool, error)
	RefundBalance(ctx context.Context, userID primitive.ObjectID, amount int64) error
	AddTotalWithdrawn(ctx context.Context, userID primitive.ObjectID, amount int64) error
	SetPayoutAccount(ctx context.Context, userID primitive.ObjectID, account string) error
	CountAll(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context, status string) (int64, error)
	SumPendingEarnings(ctx context.Context) (int64, error)
}

type ReferralRepository interface {
	Insert(ctx context.Context, referral *models.Referral) (primitive.ObjectID, error)
	FindPendingByReferred(ctx context.Context, referredID primitive.ObjectID) ([]models.Referral, error)
	FindByReferrer(ctx context.Context, referrerID primitive.ObjectID) ([]models.Referral, error)
	Release(ctx context.Context, id primitive.ObjectID) (bool, error)
}

type TransactionRepository interface {
	Insert(ctx context.Context, txn *models.Transaction) (primitive.ObjectID, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to string) (bool, error)
	ReopenEntry(ctx context.Context, id primitive.ObjectID) (bool, error)
	ConfirmBonusEntry(ctx context.Context, userID primitive.ObjectID, txType, reference string) (bool, error)
	HasConfirmed(ctx context.Context, userID primitive.ObjectID, txType string) (bool, error)
	FindByUser(ctx context.Context, userID primitive.ObjectID, page, limit int64) ([]models.Transaction, int64, error)
	SumConfirmedByType(ctx context.Context) (map[string]int64, error)
	FindBetween(ctx context.Context, from, to time.Time) ([]models.Transaction, error)
}

type WithdrawalRepository interface {
	Insert(ctx context.Context, w *models.Withdrawal) (primitive.ObjectID, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Withdrawal, error)
	FindOutstandingByUser(ctx context.Context, userID primitive.ObjectID) (*models.Withdrawal, error)
	FindByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Withdrawal, error)
	BeginProcessing(ctx context.Context, id primitive.ObjectID) (bool, error)
	Complete(ctx context.Context, id primitive.ObjectID, adminEmail, confirmationCode string) error
	Reject(ctx context.Context, id primitive.ObjectID, adminEmail, reason string) error
	CancelPending(ctx context.Context, id primitive.ObjectID, reason string) (bool, error)
	RetryRejected(ctx context.Context, id primitive.ObjectID) (bool, error)
	ListByStatus(ctx context.Context, status string, page, limit int64) ([]models.AdminWithdrawal, int64, error)
	SumOutstanding(ctx context.Context) (int64, error)
}

type ActivationRepository interface {
	Insert(ctx context.Context, attempt *models.ActivationAttempt) (primitive.ObjectID, error)
	FindByExternalID(ctx context.Context, externalID int64) (*models.ActivationAttempt, error)
	FindLatestByUser(ctx context.Context, userID primitive.ObjectID) (*models.ActivationAttempt, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status string) error
}

type OTPRepository interface {
	Save(ctx context.Context, otp *models.PhoneOTP) error
	FindByPhone(ctx context.Context, phone string) (*models.PhoneOTP, error)
	DeleteByPhone(ctx context.Context, phone string) error
}
