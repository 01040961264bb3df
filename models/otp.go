package models

import (
	"time"
)

// PhoneOTP holds a pending signup awaiting phone verification. The signup
// payload is parked here and only becomes a user once the OTP is confirmed.
type PhoneOTP struct {
	Phone      string         `bson:"phone"`
	OTP        string         `bson:"otp"`
	SignupData *SignupRequest `bson:"signupData,omitempty"`
	ExpiresAt  time.Time      `bson:"expiresAt"`
	Verified   bool           `bson:"verified"`
	CreatedAt  time.Time      `bson:"createdAt"`
}
