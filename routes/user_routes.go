package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/HSouheill/maksab_backend/controllers"
	"github.com/HSouheill/maksab_backend/middleware"
)

// RegisterUserRoutes sets up all user-related protected routes
func RegisterUserRoutes(e *echo.Echo, userController *controllers.UserController, referralController *controllers.ReferralController, activationController *controllers.ActivationController, withdrawalController *controllers.WithdrawalController) {
	// Protected routes group
	r := e.Group("/api")
	r.Use(middleware.JWTMiddleware())
	r.Use(middleware.RequireUserType("user"))

	// Profile and ledger routes
	r.GET("/users/me", userController.GetMe)
	r.GET("/users/transactions", userController.GetTransactions)

	// Referral routes
	r.GET("/users/referral-data", referralController.GetReferralData)

	// Activation routes
	r.POST("/activation/initiate", activationController.InitiateActivation)
	r.GET("/activation/status", activationController.GetActivationStatus)

	// Withdrawal routes
	r.POST("/withdrawals", withdrawalController.RequestWithdrawal)
	r.GET("/withdrawals", withdrawalController.GetWithdrawals)
	r.PUT("/withdrawals/:id/cancel", withdrawalController.CancelWithdrawal)
	r.PUT("/withdrawals/:id/retry", withdrawalController.RetryWithdrawal)
}
