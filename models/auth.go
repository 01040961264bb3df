// models/auth.go

package models

type SignupRequest struct {
	FullName      string `json:"fullName" validate:"required,min=2"`
	Phone         string `json:"phone" validate:"required"`
	Email         string `json:"email,omitempty" validate:"omitempty,email"`
	Password      string `json:"password" validate:"required,min=8"`
	ReferralCode  string `json:"referralCode,omitempty"`
	PayoutAccount string `json:"payoutAccount,omitempty"`
}

type VerifyOTPRequest struct {
	Phone string `json:"phone" validate:"required"`
	OTP   string `json:"otp" validate:"required,len=6"`
}

type ResendOTPRequest struct {
	Phone string `json:"phone" validate:"required"`
}
