package utils

import (
	"crypto/rand"
	"encoding/base32"
	"regexp"
	"strings"
)

// referralCodePrefix tags every code so support can spot one at a glance.
const referralCodePrefix = "MK"

var referralCodePattern = regexp.MustCompile(`^MK-[A-Z0-9]{6}$`)

// GenerateUserReferralCode generates a shareable referral code.
// Format: MK-{RANDOM} where RANDOM is 6 alphanumeric characters.
// Example: MK-ABC123
func GenerateUserReferralCode() (string, error) {
	// 4 random bytes give 6 characters in base32
	randomBytes := make([]byte, 4)
	_, err := rand.Read(randomBytes)
	if err != nil {
		return "", err
	}

	randomStr := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(randomBytes)
	randomStr = strings.ToUpper(randomStr[:6])

	return referralCodePrefix + "-" + randomStr, nil
}

// IsValidReferralCodeFormat reports whether a code has the MK-XXXXXX shape.
// It only checks the shape; existence is a database question.
func IsValidReferralCodeFormat(code string) bool {
	return referralCodePattern.MatchString(code)
}
