package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/HSouheill/maksab_backend/controllers"
	"github.com/HSouheill/maksab_backend/middleware"
)

// RegisterAdminRoutes sets up all admin-related routes
func RegisterAdminRoutes(e *echo.Echo, adminController *controllers.AdminController) {
	// Admin routes group
	admin := e.Group("/api/admin")

	// Public routes (no auth required)
	admin.POST("/login", adminController.UnifiedLogin)
	admin.POST("/forgot-password", adminController.ForgotPassword)
	admin.POST("/verify-otp-reset", adminController.VerifyOTPAndResetPassword)

	// Protected routes (require admin authentication)
	protected := admin.Group("")
	protected.Use(middleware.JWTMiddleware())
	protected.Use(middleware.RequireUserType("admin"))

	// Withdrawal review routes
	protected.GET("/withdrawals", adminController.GetWithdrawals)
	protected.PUT("/withdrawals/:id/approve", adminController.ApproveWithdrawal)
	protected.PUT("/withdrawals/:id/reject", adminController.RejectWithdrawal)

	// Report routes
	protected.GET("/reports/earnings", adminController.GetEarningsReport)
	protected.GET("/reports/transactions/export", adminController.ExportTransactions)
}
