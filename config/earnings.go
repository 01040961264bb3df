// config/earnings.go
package config

import (
	"os"
	"strconv"
)

// Earnings holds the platform money settings. Amounts are whole currency
// units and match what the ledger stores.
type Earnings struct {
	ActivationFee int64
	BonusLevel1   int64
	BonusLevel2   int64
	BonusLevel3   int64
	MinWithdrawal int64
	Currency      string
	ShareLinkBase string
}

// LoadEarnings reads the earnings settings from the environment, falling
// back to the launch defaults.
func LoadEarnings() Earnings {
	return Earnings{
		ActivationFee: getEnvInt64("ACTIVATION_FEE", 1000),
		BonusLevel1:   getEnvInt64("REFERRAL_BONUS_LEVEL_1", 300),
		BonusLevel2:   getEnvInt64("REFERRAL_BONUS_LEVEL_2", 100),
		BonusLevel3:   getEnvInt64("REFERRAL_BONUS_LEVEL_3", 50),
		MinWithdrawal: getEnvInt64("MIN_WITHDRAWAL_AMOUNT", 500),
		Currency:      GetEnv("EARNINGS_CURRENCY", "USD"),
		ShareLinkBase: GetEnv("REFERRAL_SHARE_BASE_URL", "https://maksab.app/r"),
	}
}

// BonusForLevel returns the configured bonus for a referral level, zero for
// levels outside 1..3.
func (e Earnings) BonusForLevel(level int) int64 {
	switch level {
	case 1:
		return e.BonusLevel1
	case 2:
		return e.BonusLevel2
	case 3:
		return e.BonusLevel3
	}
	return 0
}

// GetEnv reads an environment variable with a fallback default.
func GetEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
