// services/withdrawal_service.go
package services

import (
	"context"
	"errors"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/HSouheill/maksab_backend/apperrors"
	"github.com/HSouheill/maksab_backend/config"
	"github.com/HSouheill/maksab_backend/models"
	"github.com/HSouheill/maksab_backend/monitoring"
	"github.com/HSouheill/maksab_backend/repositories"
)

const cancelledByUserReason = "cancelled by user"

// WithdrawalService owns the payout request lifecycle. Money only ever moves
// between availableBalance and the reservation a request holds; every
// transition commits the request update, the balance change and the journal
// status in one transaction.
type WithdrawalService struct {
	uow          repositories.UnitOfWork
	users        repositories.UserRepository
	withdrawals  repositories.WithdrawalRepository
	transactions repositories.TransactionRepository
	cfg          config.Earnings
}

func NewWithdrawalService(
	uow repositories.UnitOfWork,
	users repositories.UserRepository,
	withdrawals repositories.WithdrawalRepository,
	transactions repositories.TransactionRepository,
	cfg config.Earnings,
) *WithdrawalService {
	return &WithdrawalService{
		uow:          uow,
		users:        users,
		withdrawals:  withdrawals,
		transactions: transactions,
		cfg:          cfg,
	}
}

// Request reserves the amount and opens a pending withdrawal. The
// one-outstanding-request rule is re-checked inside the transaction, where
// the concurrent writer has either committed or will conflict on the balance
// update and retry against fresh state.
func (s *WithdrawalService) Request(ctx context.Context, userID primitive.ObjectID, amount int64, payoutAccount string) (*models.Withdrawal, error) {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.NotFound("user not found")
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive() {
		return nil, apperrors.Conflict("account must be activated before withdrawing")
	}
	if amount < s.cfg.MinWithdrawal {
		return nil, apperrors.Validation("minimum withdrawal amount is %d %s", s.cfg.MinWithdrawal, s.cfg.Currency)
	}
	if amount > user.AvailableBalance {
		return nil, apperrors.InsufficientFunds("requested %d exceeds available balance %d", amount, user.AvailableBalance)
	}

	account := payoutAccount
	if account == "" {
		account = user.PayoutAccount
	}
	if account == "" {
		return nil, apperrors.Validation("payout account is required")
	}

	now := time.Now()
	withdrawal := &models.Withdrawal{
		ID:            primitive.NewObjectID(),
		UserID:        userID,
		Amount:        amount,
		PayoutAccount: account,
		Status:        models.WithdrawalStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.uow.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.withdrawals.FindOutstandingByUser(ctx, userID); err == nil {
			return apperrors.Conflict("an outstanding withdrawal request already exists")
		} else if !errors.Is(err, mongo.ErrNoDocuments) {
			return err
		}

		reserved, err := s.users.ReserveBalance(ctx, userID, amount)
		if err != nil {
			return err
		}
		if !reserved {
			return apperrors.InsufficientFunds("requested %d exceeds available balance", amount)
		}

		entry := &models.Transaction{
			UserID:      userID,
			Type:        models.TransactionTypeWithdrawal,
			Amount:      amount,
			Status:      models.TransactionStatusPending,
			Reference:   withdrawal.ID.Hex(),
			Description: "Withdrawal request",
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		entryID, err := s.transactions.Insert(ctx, entry)
		if err != nil {
			return err
		}
		withdrawal.TransactionID = entryID

		_, err = s.withdrawals.Insert(ctx, withdrawal)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Withdrawal %s opened: user %s reserved %d", withdrawal.ID.Hex(), userID.Hex(), amount)
	return withdrawal, nil
}

// Approve resolves a pending request as completed. The pending->processing
// compare-and-swap fences concurrent resolutions; the reservation is
// consumed and totalWithdrawn grows by the amount.
func (s *WithdrawalService) Approve(ctx context.Context, requestID primitive.ObjectID, adminEmail, confirmationCode string) (*models.Withdrawal, error) {
	if confirmationCode == "" {
		return nil, apperrors.Validation("payout confirmation code is required")
	}

	err := s.uow.WithinTransaction(ctx, func(ctx context.Context) error {
		w, err := s.withdrawals.FindByID(ctx, requestID)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return apperrors.NotFound("withdrawal request not found")
		}
		if err != nil {
			return err
		}

		fenced, err := s.withdrawals.BeginProcessing(ctx, requestID)
		if err != nil {
			return err
		}
		if !fenced {
			return apperrors.Conflict("withdrawal request already resolved")
		}

		if err := s.withdrawals.Complete(ctx, requestID, adminEmail, confirmationCode); err != nil {
			return err
		}
		if err := s.users.AddTotalWithdrawn(ctx, w.UserID, w.Amount); err != nil {
			return err
		}
		ok, err := s.transactions.UpdateStatus(ctx, w.TransactionID, models.TransactionStatusPending, models.TransactionStatusConfirmed)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.Consistency("journal entry %s not pending for withdrawal %s", w.TransactionID.Hex(), requestID.Hex())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	monitoring.WithdrawalsResolved.WithLabelValues(models.WithdrawalStatusCompleted).Inc()
	log.Printf("Withdrawal %s completed by %s", requestID.Hex(), adminEmail)
	return s.withdrawals.FindByID(ctx, requestID)
}

// Reject resolves a pending request as rejected and refunds the reservation.
func (s *WithdrawalService) Reject(ctx context.Context, requestID primitive.ObjectID, adminEmail, reason string) (*models.Withdrawal, error) {
	if reason == "" {
		return nil, apperrors.Validation("a rejection reason is required")
	}

	err := s.uow.WithinTransaction(ctx, func(ctx context.Context) error {
		w, err := s.withdrawals.FindByID(ctx, requestID)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return apperrors.NotFound("withdrawal request not found")
		}
		if err != nil {
			return err
		}

		fenced, err := s.withdrawals.BeginProcessing(ctx, requestID)
		if err != nil {
			return err
		}
		if !fenced {
			return apperrors.Conflict("withdrawal request already resolved")
		}

		if err := s.withdrawals.Reject(ctx, requestID, adminEmail, reason); err != nil {
			return err
		}
		if err := s.users.RefundBalance(ctx, w.UserID, w.Amount); err != nil {
			return err
		}
		ok, err := s.transactions.UpdateStatus(ctx, w.TransactionID, models.TransactionStatusPending, models.TransactionStatusFailed)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.Consistency("journal entry %s not pending for withdrawal %s", w.TransactionID.Hex(), requestID.Hex())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	monitoring.WithdrawalsResolved.WithLabelValues(models.WithdrawalStatusRejected).Inc()
	log.Printf("Withdrawal %s rejected by %s: %s", requestID.Hex(), adminEmail, reason)
	return s.withdrawals.FindByID(ctx, requestID)
}

// Cancel lets the owner withdraw a still-pending request. Behaves like a
// rejection issued by the system: the reservation flows back and the journal
// entry ends cancelled.
func (s *WithdrawalService) Cancel(ctx context.Context, requestID, userID primitive.ObjectID) error {
	return s.uow.WithinTransaction(ctx, func(ctx context.Context) error {
		w, err := s.withdrawals.FindByID(ctx, requestID)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return apperrors.NotFound("withdrawal request not found")
		}
		if err != nil {
			return err
		}
		if w.UserID != userID {
			return apperrors.NotFound("withdrawal request not found")
		}

		cancelled, err := s.withdrawals.CancelPending(ctx, requestID, cancelledByUserReason)
		if err != nil {
			return err
		}
		if !cancelled {
			return apperrors.Conflict("only pending requests can be cancelled")
		}

		if err := s.users.RefundBalance(ctx, userID, w.Amount); err != nil {
			return err
		}
		ok, err := s.transactions.UpdateStatus(ctx, w.TransactionID, models.TransactionStatusPending, models.TransactionStatusCancelled)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.Consistency("journal entry %s not pending for withdrawal %s", w.TransactionID.Hex(), requestID.Hex())
		}
		return nil
	})
}

// Retry reopens a rejected request: funds are re-reserved against the
// current balance, the rejection metadata is cleared and the journal entry
// returns to pending.
func (s *WithdrawalService) Retry(ctx context.Context, requestID, userID primitive.ObjectID) (*models.Withdrawal, error) {
	err := s.uow.WithinTransaction(ctx, func(ctx context.Context) error {
		w, err := s.withdrawals.FindByID(ctx, requestID)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return apperrors.NotFound("withdrawal request not found")
		}
		if err != nil {
			return err
		}
		if w.UserID != userID {
			return apperrors.NotFound("withdrawal request not found")
		}

		if _, err := s.withdrawals.FindOutstandingByUser(ctx, userID); err == nil {
			return apperrors.Conflict("an outstanding withdrawal request already exists")
		} else if !errors.Is(err, mongo.ErrNoDocuments) {
			return err
		}

		retried, err := s.withdrawals.RetryRejected(ctx, requestID)
		if err != nil {
			return err
		}
		if !retried {
			return apperrors.Conflict("only rejected requests can be retried")
		}

		reserved, err := s.users.ReserveBalance(ctx, userID, w.Amount)
		if err != nil {
			return err
		}
		if !reserved {
			return apperrors.InsufficientFunds("available balance below %d", w.Amount)
		}

		reopened, err := s.transactions.ReopenEntry(ctx, w.TransactionID)
		if err != nil {
			return err
		}
		if !reopened {
			return apperrors.Consistency("journal entry %s not resolvable for retry", w.TransactionID.Hex())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Withdrawal %s reopened by user %s", requestID.Hex(), userID.Hex())
	return s.withdrawals.FindByID(ctx, requestID)
}

// History returns the user's withdrawal requests, newest first.
func (s *WithdrawalService) History(ctx context.Context, userID primitive.ObjectID) ([]models.Withdrawal, error) {
	return s.withdrawals.FindByUser(ctx, userID)
}
