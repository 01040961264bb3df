// controllers/activation_controller.go
package controllers

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/HSouheill/maksab_backend/models"
	"github.com/HSouheill/maksab_backend/services"
	"github.com/HSouheill/maksab_backend/utils"
)

// ActivationController exposes the fee payment flow: initiation from the app
// and the two Whish callbacks.
type ActivationController struct {
	activationSvc *services.ActivationService
}

func NewActivationController(activationSvc *services.ActivationService) *ActivationController {
	return &ActivationController{activationSvc: activationSvc}
}

// InitiateActivation starts a Whish collect for the activation fee
func (ctrl *ActivationController) InitiateActivation(c echo.Context) error {
	userID, err := utils.GetUserIDFromToken(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Authentication failed",
		})
	}

	var req models.InitiateActivationRequest
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

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	initiated, err := ctrl.activationSvc.Initiate(ctx, userID, req.PayoutAccount, req.Amount)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Activation payment initiated. Complete the payment to activate your account.",
		Data:    initiated,
	})
}

// GetActivationStatus reports the latest payment attempt for the account
func (ctrl *ActivationController) GetActivationStatus(c echo.Context) error {
	userID, err := utils.GetUserIDFromToken(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Authentication failed",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	attempt, err := ctrl.activationSvc.LatestAttempt(ctx, userID)
	if err == mongo.ErrNoDocuments {
		return c.JSON(http.StatusOK, models.Response{
			Status:  http.StatusOK,
			Message: "No activation attempt yet",
		})
	}
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Activation status retrieved successfully",
		Data:    attempt,
	})
}

// HandleWhishActivationSuccess processes the provider's success callback.
// Whish retries on non-200, so the handler acknowledges receipt no matter
// what happened internally; failures are logged and the payment stays
// claimable through a later callback or manual replay.
func (ctrl *ActivationController) HandleWhishActivationSuccess(c echo.Context) error {
	externalIDStr := c.QueryParam("externalId")
	if externalIDStr == "" {
		log.Printf("Whish success callback without externalId parameter")
		return c.String(http.StatusOK, "Missing externalId parameter")
	}

	externalID, err := strconv.ParseInt(externalIDStr, 10, 64)
	if err != nil {
		log.Printf("Whish success callback with bad externalId %q: %v", externalIDStr, err)
		return c.String(http.StatusOK, "Invalid externalId")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := ctrl.activationSvc.ConfirmSuccess(ctx, externalID); err != nil {
		log.Printf("Activation confirmation failed for externalId %d: %v", externalID, err)
		return c.String(http.StatusOK, "Callback received")
	}

	return c.String(http.StatusOK, "Payment processed")
}

// HandleWhishActivationFailure records the provider's failure callback
func (ctrl *ActivationController) HandleWhishActivationFailure(c echo.Context) error {
	externalIDStr := c.QueryParam("externalId")
	if externalIDStr == "" {
		return c.String(http.StatusOK, "Missing externalId parameter")
	}

	externalID, err := strconv.ParseInt(externalIDStr, 10, 64)
	if err != nil {
		return c.String(http.StatusOK, "Invalid externalId")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := ctrl.activationSvc.MarkFailure(ctx, externalID); err != nil {
		log.Printf("Failed to record payment failure for externalId %d: %v", externalID, err)
		return c.String(http.StatusOK, "Callback received")
	}

	log.Printf("Payment failed for externalId: %d", externalID)
	return c.String(http.StatusOK, "Payment failure recorded")
}
