package controllers

import (
	"context"
	"crypto/rand"
	"log"
	"math/big"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/HSouheill/maksab_backend/config"
	"github.com/HSouheill/maksab_backend/middleware"
	"github.com/HSouheill/maksab_backend/models"
	"github.com/HSouheill/maksab_backend/repositories"
	"github.com/HSouheill/maksab_backend/services"
	"github.com/HSouheill/maksab_backend/utils"
)

const otpValidity = 10 * time.Minute

type loginAttempt struct {
	count       int
	lastAttempt time.Time
}

// AuthController contains authentication logic
type AuthController struct {
	store           *repositories.Store
	referralSvc     *services.ReferralService
	logger          *log.Logger
	loginAttempts   map[string]loginAttempt
	loginAttemptsMu sync.RWMutex
}

// NewAuthController creates a new auth controller
func NewAuthController(store *repositories.Store, referralSvc *services.ReferralService) *AuthController {
	return &AuthController{
		store:         store,
		referralSvc:   referralSvc,
		logger:        log.New(os.Stdout, "[AUTH] ", log.LstdFlags),
		loginAttempts: make(map[string]loginAttempt),
	}
}

// generateAuthOTP generates a 6-digit OTP for phone verification
func generateAuthOTP() (string, error) {
	const digits = "0123456789"
	otp := make([]byte, 6)
	for i := range otp {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", err
		}
		otp[i] = digits[n.Int64()]
	}
	return string(otp), nil
}

// Signup validates the registration data, parks it next to a fresh OTP and
// sends the code. No account exists until the OTP is verified.
func (ac *AuthController) Signup(c echo.Context) error {
	var req models.SignupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: err.Error(),
		})
	}

	phone, err := utils.SanitizePhone(req.Phone)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid phone number format",
		})
	}
	req.Phone = phone

	if req.Email != "" {
		email, err := utils.SanitizeEmail(req.Email)
		if err != nil {
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Invalid email format",
			})
		}
		req.Email = email
	}

	req.FullName = utils.SanitizeInput(req.FullName)
	req.PayoutAccount = utils.SanitizeInput(req.PayoutAccount)
	req.ReferralCode = utils.SanitizeInput(req.ReferralCode)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Fail early, before the user types an OTP for nothing
	if _, err := ac.store.Users.FindByPhone(ctx, req.Phone); err == nil {
		return c.JSON(http.StatusConflict, models.Response{
			Status:  http.StatusConflict,
			Message: "Phone number already registered",
		})
	} else if err != mongo.ErrNoDocuments {
		return respondError(c, err)
	}
	if req.Email != "" {
		if _, err := ac.store.Users.FindByEmail(ctx, req.Email); err == nil {
			return c.JSON(http.StatusConflict, models.Response{
				Status:  http.StatusConflict,
				Message: "Email already registered",
			})
		} else if err != mongo.ErrNoDocuments {
			return respondError(c, err)
		}
	}

	if req.ReferralCode != "" {
		if !utils.IsValidReferralCodeFormat(req.ReferralCode) {
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Invalid referral code format",
			})
		}
		referrer, err := ac.store.Users.FindByReferralCode(ctx, req.ReferralCode)
		if err == mongo.ErrNoDocuments {
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "Invalid referral code",
			})
		}
		if err != nil {
			return respondError(c, err)
		}
		if referrer.Phone == req.Phone {
			return c.JSON(http.StatusConflict, models.Response{
				Status:  http.StatusConflict,
				Message: "Cannot use your own referral code",
			})
		}
	}

	otp, err := generateAuthOTP()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to generate OTP",
		})
	}
	ac.logger.Printf("Generated signup OTP for phone %s", req.Phone)

	otpDoc := &models.PhoneOTP{
		Phone:      req.Phone,
		OTP:        otp,
		SignupData: &req,
		ExpiresAt:  time.Now().Add(otpValidity),
		Verified:   false,
		CreatedAt:  time.Now(),
	}
	if err := ac.store.OTPs.Save(ctx, otpDoc); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to store OTP",
		})
	}

	if smsErr := utils.SendOTPViaSMS(req.Phone, otp); smsErr != nil {
		ac.logger.Printf("SMS OTP failed: %v", smsErr)
		return c.JSON(http.StatusBadGateway, models.Response{
			Status:  http.StatusBadGateway,
			Message: "Failed to send OTP",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "OTP sent successfully via SMS. Please verify your phone number.",
		Data: map[string]interface{}{
			"phone":     req.Phone,
			"expiresAt": otpDoc.ExpiresAt,
		},
	})
}

// VerifyOTP checks the code and creates the account. Registration itself,
// referral chain included, happens in the referral service.
func (ac *AuthController) VerifyOTP(c echo.Context) error {
	var req models.VerifyOTPRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request",
		})
	}

	phone, err := utils.SanitizePhone(req.Phone)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid phone number format",
		})
	}
	req.Phone = phone
	req.OTP = utils.SanitizeInput(req.OTP)

	// Throttle brute-force attempts when Redis is around
	if rdb := config.GetRedisClient(); rdb != nil {
		if err := utils.ValidateOTPAttempts(req.Phone, rdb); err != nil {
			return c.JSON(http.StatusTooManyRequests, models.Response{
				Status:  http.StatusTooManyRequests,
				Message: "Too many OTP attempts. Please try again later.",
			})
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	otpDoc, err := ac.store.OTPs.FindByPhone(ctx, req.Phone)
	if err == mongo.ErrNoDocuments {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid OTP",
		})
	}
	if err != nil {
		return respondError(c, err)
	}

	if otpDoc.OTP != req.OTP {
		ac.logger.Printf("Invalid OTP for phone: %s", req.Phone)
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid OTP",
		})
	}
	if time.Now().After(otpDoc.ExpiresAt) {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "OTP expired",
		})
	}
	if otpDoc.SignupData == nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid signup data",
		})
	}

	user, err := ac.referralSvc.Register(ctx, otpDoc.SignupData)
	if err != nil {
		return respondError(c, err)
	}

	if err := ac.store.OTPs.DeleteByPhone(ctx, req.Phone); err != nil {
		ac.logger.Printf("Failed to delete used OTP for %s: %v", req.Phone, err)
	}

	token, refreshToken, err := middleware.GenerateJWT(user.ID.Hex(), user.Email, "user")
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to generate token",
		})
	}

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Account created successfully. Pay the activation fee to start earning.",
		Data: map[string]interface{}{
			"token":        token,
			"refreshToken": refreshToken,
			"user":         user,
		},
	})
}

// ResendOTP rotates the code on the parked signup
func (ac *AuthController) ResendOTP(c echo.Context) error {
	var req models.ResendOTPRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request",
		})
	}

	phone, err := utils.SanitizePhone(req.Phone)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid phone number format",
		})
	}
	req.Phone = phone

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	otpDoc, err := ac.store.OTPs.FindByPhone(ctx, req.Phone)
	if err == mongo.ErrNoDocuments {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "No pending signup for this phone number",
		})
	}
	if err != nil {
		return respondError(c, err)
	}

	otp, err := generateAuthOTP()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to generate OTP",
		})
	}

	otpDoc.OTP = otp
	otpDoc.ExpiresAt = time.Now().Add(otpValidity)
	otpDoc.CreatedAt = time.Now()
	if err := ac.store.OTPs.Save(ctx, otpDoc); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to store OTP",
		})
	}

	if smsErr := utils.SendOTPViaSMS(req.Phone, otp); smsErr != nil {
		ac.logger.Printf("SMS OTP failed: %v", smsErr)
		return c.JSON(http.StatusBadGateway, models.Response{
			Status:  http.StatusBadGateway,
			Message: "Failed to send OTP",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "OTP resent successfully",
		Data: map[string]interface{}{
			"phone":     req.Phone,
			"expiresAt": otpDoc.ExpiresAt,
		},
	})
}

// Login authenticates by email or phone
func (ac *AuthController) Login(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var loginReq models.LoginRequest
	if err := c.Bind(&loginReq); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	if loginReq.Email == "" && loginReq.Phone == "" {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Either email or phone number is required",
		})
	}

	identifier := loginReq.Email
	if identifier == "" {
		identifier = loginReq.Phone
	}

	ac.loginAttemptsMu.RLock()
	attempts, exists := ac.loginAttempts[identifier]
	ac.loginAttemptsMu.RUnlock()

	if exists && attempts.count >= 5 && time.Since(attempts.lastAttempt) < 30*time.Minute {
		return c.JSON(http.StatusTooManyRequests, models.Response{
			Status:  http.StatusTooManyRequests,
			Message: "Too many failed login attempts. Please try again later.",
		})
	}

	if loginReq.Email != "" {
		email, err := utils.SanitizeEmail(loginReq.Email)
		if err != nil {
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Invalid email format",
			})
		}
		loginReq.Email = email
	}
	if loginReq.Phone != "" {
		phone, err := utils.SanitizePhone(loginReq.Phone)
		if err != nil {
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Invalid phone number format",
			})
		}
		loginReq.Phone = phone
	}

	var user *models.User
	var err error
	if loginReq.Email != "" {
		user, err = ac.store.Users.FindByEmail(ctx, loginReq.Email)
	} else {
		user, err = ac.store.Users.FindByPhone(ctx, loginReq.Phone)
	}
	if err == mongo.ErrNoDocuments {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid credentials",
		})
	}
	if err != nil {
		return respondError(c, err)
	}

	if err := utils.CheckPassword(loginReq.Password, user.Password); err != nil {
		ac.loginAttemptsMu.Lock()
		ac.loginAttempts[identifier] = loginAttempt{count: attempts.count + 1, lastAttempt: time.Now()}
		ac.loginAttemptsMu.Unlock()

		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid credentials",
		})
	}

	ac.loginAttemptsMu.Lock()
	delete(ac.loginAttempts, identifier)
	ac.loginAttemptsMu.Unlock()

	token, refreshToken, err := middleware.GenerateJWT(user.ID.Hex(), user.Email, "user")
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to generate token",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Login successful",
		Data: map[string]interface{}{
			"token":        token,
			"refreshToken": refreshToken,
			"user":         user,
		},
	})
}

// RefreshToken exchanges a valid refresh token for a fresh pair
func (ac *AuthController) RefreshToken(c echo.Context) error {
	var req models.RefreshTokenRequest
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Refresh token is required",
		})
	}

	claims, err := middleware.ParseToken(req.RefreshToken)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid or expired refresh token",
		})
	}

	token, refreshToken, err := middleware.GenerateJWT(claims.UserID, claims.Email, claims.UserType)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to generate new tokens",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Token refreshed successfully",
		Data: map[string]interface{}{
			"token":        token,
			"refreshToken": refreshToken,
		},
	})
}
