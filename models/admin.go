package models

import (
	"time"
)

type AdminLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AdminResetPasswordRequest struct {
	OTP         string `json:"otp" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8"`
}

// EarningsReport aggregates platform-wide ledger totals for the admin
// dashboard. All figures come from the transactions collection plus the
// per-user balance fields; the report never mutates anything.
type EarningsReport struct {
	TotalUsers            int64            `json:"totalUsers"`
	ActiveUsers           int64            `json:"activeUsers"`
	ActivationFeeIncome   int64            `json:"activationFeeIncome"`
	BonusesPaidByLevel    map[string]int64 `json:"bonusesPaidByLevel"`
	TotalBonusesPaid      int64            `json:"totalBonusesPaid"`
	OutstandingPending    int64            `json:"outstandingPendingEarnings"`
	ReservedForWithdrawal int64            `json:"reservedForWithdrawal"`
	CompletedWithdrawals  int64            `json:"completedWithdrawals"`
	ProviderBalance       *float64         `json:"providerBalance,omitempty"`
	GeneratedAt           time.Time        `json:"generatedAt"`
}
