// controllers/user_controller.go
package controllers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/HSouheill/maksab_backend/models"
	"github.com/HSouheill/maksab_backend/repositories"
	"github.com/HSouheill/maksab_backend/services"
	"github.com/HSouheill/maksab_backend/utils"
)

// UserController serves the account's own profile and ledger views
type UserController struct {
	store         *repositories.Store
	activationSvc *services.ActivationService
}

func NewUserController(store *repositories.Store, activationSvc *services.ActivationService) *UserController {
	return &UserController{store: store, activationSvc: activationSvc}
}

// GetMe returns the profile with all balance counters
func (uc *UserController) GetMe(c echo.Context) error {
	userID, err := utils.GetUserIDFromToken(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Authentication failed",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	user, err := uc.store.Users.FindByID(ctx, userID)
	if err == mongo.ErrNoDocuments {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "User not found",
		})
	}
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "User retrieved successfully",
		Data:    user,
	})
}

// GetTransactions returns the account's journal page by page
func (uc *UserController) GetTransactions(c echo.Context) error {
	userID, err := utils.GetUserIDFromToken(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Authentication failed",
		})
	}

	page, _ := strconv.ParseInt(c.QueryParam("page"), 10, 64)
	limit, _ := strconv.ParseInt(c.QueryParam("limit"), 10, 64)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	transactions, total, err := uc.store.Transactions.FindByUser(ctx, userID, page, limit)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Transactions retrieved successfully",
		Data: map[string]interface{}{
			"transactions": transactions,
			"total":        total,
			"page":         page,
			"limit":        limit,
		},
	})
}
