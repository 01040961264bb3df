// controllers/referral_controller.go
package controllers

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/png"
	"net/http"
	"time"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/HSouheill/maksab_backend/config"
	"github.com/HSouheill/maksab_backend/models"
	"github.com/HSouheill/maksab_backend/repositories"
	"github.com/HSouheill/maksab_backend/services"
	"github.com/HSouheill/maksab_backend/utils"
)

// ReferralController serves the referral presentation surface: code, share
// link, QR image and the per-referral bonus list.
type ReferralController struct {
	store       *repositories.Store
	referralSvc *services.ReferralService
	cfg         config.Earnings
}

func NewReferralController(store *repositories.Store, referralSvc *services.ReferralService, cfg config.Earnings) *ReferralController {
	return &ReferralController{store: store, referralSvc: referralSvc, cfg: cfg}
}

// GetReferralData returns the caller's code, share link, QR code and referrals
func (rc *ReferralController) GetReferralData(c echo.Context) error {
	userID, err := utils.GetUserIDFromToken(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Authentication failed",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	info, err := rc.referralSvc.Info(ctx, userID)
	if err != nil {
		return respondError(c, err)
	}

	qrCode, err := generateReferralQRCode(info.ShareLink)
	if err != nil {
		c.Logger().Warnf("Failed to generate QR code: %v", err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Referral data retrieved successfully",
		Data: map[string]interface{}{
			"referralCode":   info.ReferralCode,
			"referralLink":   info.ShareLink,
			"qrCode":         qrCode,
			"totalReferrals": info.TotalReferrals,
			"levelBonuses":   info.LevelBonuses,
			"referrals":      info.Referrals,
		},
	})
}

// GetReferralQRCode returns the QR image for any existing referral code.
// Public: share pages render it without a session.
func (rc *ReferralController) GetReferralQRCode(c echo.Context) error {
	code := utils.SanitizeInput(c.Param("code"))
	if !utils.IsValidReferralCodeFormat(code) {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid referral code format",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := rc.store.Users.FindByReferralCode(ctx, code); err != nil {
		if err == mongo.ErrNoDocuments {
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "Invalid referral code",
			})
		}
		return respondError(c, err)
	}

	qrCode, err := generateReferralQRCode(fmt.Sprintf("%s/%s", rc.cfg.ShareLinkBase, code))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to generate QR code",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "QR code generated successfully",
		Data: map[string]interface{}{
			"qrCode":       qrCode,
			"referralCode": code,
		},
	})
}

// generateReferralQRCode renders the share link as a 300x300 PNG data URI
func generateReferralQRCode(content string) (string, error) {
	qrCode, err := qr.Encode(content, qr.M, qr.Auto)
	if err != nil {
		return "", err
	}

	qrCode, err = barcode.Scale(qrCode, 300, 300)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qrCode); err != nil {
		return "", err
	}

	base64QR := base64.StdEncoding.EncodeToString(buf.Bytes())
	return "data:image/png;base64," + base64QR, nil
}
