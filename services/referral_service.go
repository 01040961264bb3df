// services/referral_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"github.com/HSouheill/maksab_backend/apperrors"
	"github.com/HSouheill/maksab_backend/config"
	"github.com/HSouheill/maksab_backend/models"
	"github.com/HSouheill/maksab_backend/repositories"
	"github.com/HSouheill/maksab_backend/utils"
)

// ReferralService owns registration: resolving the referrer chain, creating
// the user together with its referral edges, and crediting ancestor pending
// earnings, all in one transaction.
type ReferralService struct {
	uow          repositories.UnitOfWork
	users        repositories.UserRepository
	referrals    repositories.ReferralRepository
	transactions repositories.TransactionRepository
	cfg          config.Earnings
}

func NewReferralService(
	uow repositories.UnitOfWork,
	users repositories.UserRepository,
	referrals repositories.ReferralRepository,
	transactions repositories.TransactionRepository,
	cfg config.Earnings,
) *ReferralService {
	return &ReferralService{
		uow:          uow,
		users:        users,
		referrals:    referrals,
		transactions: transactions,
		cfg:          cfg,
	}
}

// ancestor is one resolved link of the referrer chain.
type ancestor struct {
	user   *models.User
	level  int
	amount int64
}

// Register creates the account. When a referral code is present the chain is
// resolved first, then the user insert, the referral edges, the ancestor
// pendingEarnings credits and their pending bonus journal entries all commit
// or roll back together.
func (s *ReferralService) Register(ctx context.Context, req *models.SignupRequest) (*models.User, error) {
	if _, err := s.users.FindByPhone(ctx, req.Phone); err == nil {
		return nil, apperrors.Conflict("phone number already registered")
	} else if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}
	if req.Email != "" {
		if _, err := s.users.FindByEmail(ctx, req.Email); err == nil {
			return nil, apperrors.Conflict("email already registered")
		} else if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}
	}

	var chain []ancestor
	if req.ReferralCode != "" {
		resolved, err := s.resolveChain(ctx, req.ReferralCode, req.Phone, req.Email)
		if err != nil {
			return nil, err
		}
		chain = resolved
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	code, err := s.freshReferralCode(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &models.User{
		FullName:      req.FullName,
		Phone:         req.Phone,
		Email:         req.Email,
		Password:      string(hashedPassword),
		Status:        models.UserStatusUnverified,
		ReferralCode:  code,
		ReferredBy:    req.ReferralCode,
		PayoutAccount: req.PayoutAccount,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.uow.WithinTransaction(ctx, func(ctx context.Context) error {
		userID, err := s.users.Insert(ctx, user)
		if err != nil {
			return err
		}
		user.ID = userID

		for _, a := range chain {
			referral := &models.Referral{
				ReferrerID: a.user.ID,
				ReferredID: userID,
				Level:      a.level,
				Amount:     a.amount,
				Status:     models.ReferralStatusPending,
				CreatedAt:  now,
			}
			if _, err := s.referrals.Insert(ctx, referral); err != nil {
				return err
			}
			if err := s.users.AccrueReferral(ctx, a.user.ID, a.amount, a.level == 1); err != nil {
				return err
			}
			bonus := &models.Transaction{
				UserID:      a.user.ID,
				Type:        models.BonusTypeForLevel(a.level),
				Amount:      a.amount,
				Status:      models.TransactionStatusPending,
				Reference:   userID.Hex(),
				Description: fmt.Sprintf("Level %d referral bonus for %s", a.level, user.FullName),
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if _, err := s.transactions.Insert(ctx, bonus); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, apperrors.Conflict("account already exists")
		}
		return nil, err
	}

	log.Printf("Registered user %s with %d referral level(s)", user.ID.Hex(), len(chain))
	return user, nil
}

// resolveChain looks up the direct referrer and follows referredBy codes for
// at most MaxReferralLevels links. The cap is the loop bound itself.
func (s *ReferralService) resolveChain(ctx context.Context, code, phone, email string) ([]ancestor, error) {
	referrer, err := s.users.FindByReferralCode(ctx, code)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.NotFound("invalid referral code")
	}
	if err != nil {
		return nil, err
	}
	if referrer.Phone == phone || (email != "" && referrer.Email == email) {
		return nil, apperrors.Conflict("cannot use your own referral code")
	}

	chain := make([]ancestor, 0, models.MaxReferralLevels)
	seen := make(map[string]bool, models.MaxReferralLevels)
	current := referrer
	for level := 1; level <= models.MaxReferralLevels; level++ {
		if seen[current.ID.Hex()] {
			// a repeated ancestor means the stored chain has a cycle; stop
			break
		}
		seen[current.ID.Hex()] = true
		chain = append(chain, ancestor{user: current, level: level, amount: s.cfg.BonusForLevel(level)})

		if current.ReferredBy == "" || level == models.MaxReferralLevels {
			break
		}
		next, err := s.users.FindByReferralCode(ctx, current.ReferredBy)
		if errors.Is(err, mongo.ErrNoDocuments) {
			// dangling ancestor code, the chain just ends here
			break
		}
		if err != nil {
			return nil, err
		}
		current = next
	}
	return chain, nil
}

// freshReferralCode generates a code and re-rolls on the rare collision.
func (s *ReferralService) freshReferralCode(ctx context.Context) (string, error) {
	for i := 0; i < 5; i++ {
		code, err := utils.GenerateUserReferralCode()
		if err != nil {
			return "", err
		}
		_, err = s.users.FindByReferralCode(ctx, code)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", errors.New("could not generate a unique referral code")
}

// Info assembles the referral presentation payload: code, share link, level
// bonuses and the referral list with each bonus status.
func (s *ReferralService) Info(ctx context.Context, userID primitive.ObjectID) (*models.ReferralInfo, error) {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.NotFound("user not found")
	}
	if err != nil {
		return nil, err
	}

	referrals, err := s.referrals.FindByReferrer(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := make([]primitive.ObjectID, 0, len(referrals))
	for _, r := range referrals {
		ids = append(ids, r.ReferredID)
	}
	referred, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	nameByID := make(map[string]string, len(referred))
	for _, u := range referred {
		nameByID[u.ID.Hex()] = u.FullName
	}

	entries := make([]models.ReferralEntry, 0, len(referrals))
	for _, r := range referrals {
		entries = append(entries, models.ReferralEntry{
			FullName:  nameByID[r.ReferredID.Hex()],
			Level:     r.Level,
			Amount:    r.Amount,
			Status:    r.Status,
			CreatedAt: r.CreatedAt,
		})
	}

	return &models.ReferralInfo{
		ReferralCode:   user.ReferralCode,
		ShareLink:      fmt.Sprintf("%s/%s", s.cfg.ShareLinkBase, user.ReferralCode),
		TotalReferrals: user.TotalReferrals,
		LevelBonuses:   []int64{s.cfg.BonusLevel1, s.cfg.BonusLevel2, s.cfg.BonusLevel3},
		Referrals:      entries,
	}, nil
}
