package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/HSouheill/maksab_backend/controllers"
)

// SetupRoutes configures all API routes by calling individual route registration functions
func SetupRoutes(e *echo.Echo, authController *controllers.AuthController, userController *controllers.UserController, referralController *controllers.ReferralController, activationController *controllers.ActivationController, withdrawalController *controllers.WithdrawalController) {
	// Register all route groups
	RegisterAuthRoutes(e, authController, referralController, activationController)
	RegisterUserRoutes(e, userController, referralController, activationController, withdrawalController)
	// Note: Admin routes are registered in main.go after the general routes
}
