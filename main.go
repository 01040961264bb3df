package main

import (
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HSouheill/maksab_backend/config"
	"github.com/HSouheill/maksab_backend/controllers"
	"github.com/HSouheill/maksab_backend/middleware"
	"github.com/HSouheill/maksab_backend/repositories"
	"github.com/HSouheill/maksab_backend/routes"
	"github.com/HSouheill/maksab_backend/services"
)

// CustomValidator is a custom validator for Echo
type CustomValidator struct {
	validator *validator.Validate
}

// Validate validates the request body
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

func main() {
	// Load .env file
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: .env file not found")
	}

	// Connect to Redis
	config.ConnectRedis()

	// Connect to database
	client := config.ConnectDB()

	// Initialize repositories and configuration
	store := repositories.NewStore(client)
	earnings := config.LoadEarnings()

	// Initialize services
	whishService := services.NewWhishService()
	referralService := services.NewReferralService(store, store.Users, store.Referrals, store.Transactions, earnings)
	activationService := services.NewActivationService(store, store.Users, store.Referrals, store.Transactions, store.Activations, whishService, earnings)
	withdrawalService := services.NewWithdrawalService(store, store.Users, store.Withdrawals, store.Transactions, earnings)

	// Create a new Echo instance
	e := echo.New()

	// Initialize custom validator
	customValidator := &CustomValidator{validator: validator.New()}
	e.Validator = customValidator

	// Middleware
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(middleware.GlobalCORS())
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.Metrics())

	e.Match([]string{"GET", "HEAD"}, "/", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"status":  "OK",
			"message": "Maksab Backend is running",
			"version": "1.0",
		})
	})

	e.Match([]string{"GET", "HEAD"}, "/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"status":   "healthy",
			"database": "connected",
		})
	})

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.Use(httpsRedirect())

	// Initialize controllers
	authController := controllers.NewAuthController(store, referralService)
	userController := controllers.NewUserController(store, activationService)
	referralController := controllers.NewReferralController(store, referralService, earnings)
	activationController := controllers.NewActivationController(activationService)
	withdrawalController := controllers.NewWithdrawalController(withdrawalService)
	adminController := controllers.NewAdminController(store, withdrawalService, whishService)

	// Setup routes
	routes.SetupRoutes(e, authController, userController, referralController, activationController, withdrawalController)

	// Register admin routes AFTER general routes to avoid conflicts
	routes.RegisterAdminRoutes(e, adminController)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	e.Logger.Fatal(e.Start(":" + port))
}

func httpsRedirect() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get("X-Forwarded-Proto") == "http" {
				return c.Redirect(301, "https://"+c.Request().Host+c.Request().RequestURI)
			}
			return next(c)
		}
	}
}
