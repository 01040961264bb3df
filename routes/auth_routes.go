package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/HSouheill/maksab_backend/controllers"
)

// RegisterAuthRoutes sets up all authentication and public routes
func RegisterAuthRoutes(e *echo.Echo, authController *controllers.AuthController, referralController *controllers.ReferralController, activationController *controllers.ActivationController) {
	// Public authentication routes
	e.POST("/api/auth/signup", authController.Signup)
	e.POST("/api/auth/verify-otp", authController.VerifyOTP)
	e.POST("/api/auth/resend-otp", authController.ResendOTP)
	e.POST("/api/auth/login", authController.Login)
	e.POST("/api/auth/refresh-token", authController.RefreshToken)

	// Public referral QR code
	e.GET("/api/qrcode/referral/:code", referralController.GetReferralQRCode)

	// Whish calls these after a collect attempt settles; they must stay public
	e.GET("/api/whish/activation/callback/success", activationController.HandleWhishActivationSuccess)
	e.GET("/api/whish/activation/callback/failure", activationController.HandleWhishActivationFailure)
}
