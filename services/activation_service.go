// services/activation_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/HSouheill/maksab_backend/apperrors"
	"github.com/HSouheill/maksab_backend/config"
	"github.com/HSouheill/maksab_backend/models"
	"github.com/HSouheill/maksab_backend/monitoring"
	"github.com/HSouheill/maksab_backend/repositories"
)

// Whish reports a finished collect with this status value.
const collectStatusSuccess = "success"

// ActivationService turns a paid Whish collect into an active account and
// releases the pending bonuses up the referral chain. Initiation never
// touches the ledger; the confirmation callback does all balance work inside
// one transaction gated on persisted state.
type ActivationService struct {
	uow          repositories.UnitOfWork
	users        repositories.UserRepository
	referrals    repositories.ReferralRepository
	transactions repositories.TransactionRepository
	attempts     repositories.ActivationRepository
	collector    PaymentCollector
	cfg          config.Earnings
}

func NewActivationService(
	uow repositories.UnitOfWork,
	users repositories.UserRepository,
	referrals repositories.ReferralRepository,
	transactions repositories.TransactionRepository,
	attempts repositories.ActivationRepository,
	collector PaymentCollector,
	cfg config.Earnings,
) *ActivationService {
	return &ActivationService{
		uow:          uow,
		users:        users,
		referrals:    referrals,
		transactions: transactions,
		attempts:     attempts,
		collector:    collector,
		cfg:          cfg,
	}
}

// Initiate starts a Whish collect for the activation fee and records the
// attempt. No journal or balance row is written here; an attempt that never
// completes leaves no trace in the ledger.
func (s *ActivationService) Initiate(ctx context.Context, userID primitive.ObjectID, payoutAccount string, amount int64) (*models.ActivationInitiated, error) {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.NotFound("user not found")
	}
	if err != nil {
		return nil, err
	}
	if user.IsActive() {
		return nil, apperrors.Conflict("account is already active")
	}
	if user.Status == models.UserStatusSuspended {
		return nil, apperrors.Conflict("account is suspended")
	}
	if amount != s.cfg.ActivationFee {
		return nil, apperrors.Validation("activation fee is %d %s", s.cfg.ActivationFee, s.cfg.Currency)
	}

	baseURL := config.GetEnv("BASE_URL", "https://api.maksab.app")
	appURL := config.GetEnv("APP_URL", baseURL)

	externalID := time.Now().UnixNano()
	amountFloat := float64(amount)
	whishReq := models.WhishRequest{
		Amount:             &amountFloat,
		Currency:           s.cfg.Currency,
		Invoice:            fmt.Sprintf("Maksab account activation - %s", uuid.New().String()),
		ExternalID:         &externalID,
		SuccessCallbackURL: fmt.Sprintf("%s/api/whish/activation/callback/success", baseURL),
		FailureCallbackURL: fmt.Sprintf("%s/api/whish/activation/callback/failure", baseURL),
		SuccessRedirectURL: fmt.Sprintf("%s/activation-success?externalId=%d", appURL, externalID),
		FailureRedirectURL: fmt.Sprintf("%s/activation-failed?externalId=%d", appURL, externalID),
	}

	collectURL, err := s.collector.PostPayment(whishReq)
	if err != nil {
		return nil, apperrors.External(err, "failed to initiate activation payment")
	}

	now := time.Now()
	attempt := &models.ActivationAttempt{
		UserID:     userID,
		ExternalID: externalID,
		Amount:     amount,
		CollectURL: collectURL,
		Status:     models.ActivationAttemptCreated,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := s.attempts.Insert(ctx, attempt); err != nil {
		return nil, err
	}

	if payoutAccount != "" && payoutAccount != user.PayoutAccount {
		if err := s.users.SetPayoutAccount(ctx, userID, payoutAccount); err != nil {
			log.Printf("Failed to store payout account for user %s: %v", userID.Hex(), err)
		}
	}

	return &models.ActivationInitiated{
		CollectURL: collectURL,
		ExternalID: externalID,
		Amount:     amount,
	}, nil
}

// ConfirmSuccess handles the provider's success callback. Delivery is
// at-least-once and may race a duplicate of itself or another attempt by the
// same user, so the payment is verified with the provider first and the
// release is gated purely on persisted state: the account status CAS and
// each referral record's own pending flag. An already-active user makes the
// whole call a no-op.
func (s *ActivationService) ConfirmSuccess(ctx context.Context, externalID int64) error {
	attempt, err := s.attempts.FindByExternalID(ctx, externalID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperrors.NotFound("unknown payment reference %d", externalID)
	}
	if err != nil {
		return err
	}

	status, payerPhone, err := s.collector.GetPaymentStatus(s.cfg.Currency, externalID)
	if err != nil {
		return apperrors.External(err, "could not verify payment %d", externalID)
	}
	if status != collectStatusSuccess {
		log.Printf("Activation callback for %d arrived with collect status %q, ignoring", externalID, status)
		return nil
	}

	user, err := s.users.FindByID(ctx, attempt.UserID)
	if err != nil {
		return err
	}
	if user.IsActive() {
		// duplicate or late callback after a successful activation
		if attempt.Status == models.ActivationAttemptCreated {
			if err := s.attempts.UpdateStatus(ctx, attempt.ID, models.ActivationAttemptConfirmed); err != nil {
				log.Printf("Failed to mark attempt %s confirmed: %v", attempt.ID.Hex(), err)
			}
		}
		return nil
	}
	if user.Status == models.UserStatusSuspended {
		return apperrors.Conflict("account is suspended")
	}

	var activated bool
	err = s.uow.WithinTransaction(ctx, func(ctx context.Context) error {
		activated = false
		ok, err := s.users.Activate(ctx, user.ID)
		if err != nil {
			return err
		}
		if !ok {
			// a concurrent confirmation won the race
			return nil
		}
		activated = true

		already, err := s.transactions.HasConfirmed(ctx, user.ID, models.TransactionTypeActivationFee)
		if err != nil {
			return err
		}
		if already {
			return apperrors.Consistency("confirmed activation entry already exists for user %s", user.ID.Hex())
		}

		now := time.Now()
		fee := &models.Transaction{
			UserID:      user.ID,
			Type:        models.TransactionTypeActivationFee,
			Amount:      attempt.Amount,
			Status:      models.TransactionStatusConfirmed,
			Reference:   strconv.FormatInt(externalID, 10),
			Description: "Account activation fee",
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if _, err := s.transactions.Insert(ctx, fee); err != nil {
			return err
		}

		pending, err := s.referrals.FindPendingByReferred(ctx, user.ID)
		if err != nil {
			return err
		}
		for _, ref := range pending {
			released, err := s.referrals.Release(ctx, ref.ID)
			if err != nil {
				return err
			}
			if !released {
				return apperrors.Consistency("referral %s left pending state mid-release", ref.ID.Hex())
			}
			moved, err := s.users.ReleaseEarnings(ctx, ref.ReferrerID, ref.Amount)
			if err != nil {
				return err
			}
			if !moved {
				return apperrors.Consistency("referrer %s pending earnings below bonus %d", ref.ReferrerID.Hex(), ref.Amount)
			}
			confirmed, err := s.transactions.ConfirmBonusEntry(ctx, ref.ReferrerID, models.BonusTypeForLevel(ref.Level), user.ID.Hex())
			if err != nil {
				return err
			}
			if !confirmed {
				return apperrors.Consistency("pending bonus entry missing for referrer %s level %d", ref.ReferrerID.Hex(), ref.Level)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.attempts.UpdateStatus(ctx, attempt.ID, models.ActivationAttemptConfirmed); err != nil {
		log.Printf("Failed to mark attempt %s confirmed: %v", attempt.ID.Hex(), err)
	}
	if activated {
		monitoring.ActivationsConfirmed.Inc()
		log.Printf("Activated user %s (payer %s, reference %d)", user.ID.Hex(), payerPhone, externalID)
	}
	return nil
}

// MarkFailure handles the provider's failure or timeout callback. The user
// stays unverified and nothing in the ledger moves; only the attempt row is
// annotated.
func (s *ActivationService) MarkFailure(ctx context.Context, externalID int64) error {
	attempt, err := s.attempts.FindByExternalID(ctx, externalID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperrors.NotFound("unknown payment reference %d", externalID)
	}
	if err != nil {
		return err
	}
	if attempt.Status != models.ActivationAttemptCreated {
		return nil
	}
	return s.attempts.UpdateStatus(ctx, attempt.ID, models.ActivationAttemptFailed)
}

// LatestAttempt returns the user's most recent collect, for the app to poll.
func (s *ActivationService) LatestAttempt(ctx context.Context, userID primitive.ObjectID) (*models.ActivationAttempt, error) {
	attempt, err := s.attempts.FindLatestByUser(ctx, userID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.NotFound("no activation attempt found")
	}
	if err != nil {
		return nil, err
	}
	return attempt, nil
}
