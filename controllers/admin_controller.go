package controllers

import (
	"context"
	"crypto/rand"
	"encoding/csv"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"gopkg.in/gomail.v2"

	"github.com/HSouheill/maksab_backend/middleware"
	"github.com/HSouheill/maksab_backend/models"
	"github.com/HSouheill/maksab_backend/repositories"
	"github.com/HSouheill/maksab_backend/services"
)

// AdminController serves the back-office: withdrawal review, earnings
// reports and the admin's own credential flow.
type AdminController struct {
	store         *repositories.Store
	withdrawalSvc *services.WithdrawalService
	whishSvc      *services.WhishService
}

// OTPData stores OTP information
type OTPData struct {
	OTP       string
	ExpiresAt time.Time
}

// Admin reset OTPs live in memory; there is a single admin account
var (
	otpStore   = make(map[string]OTPData)
	otpStoreMu sync.Mutex
)

func NewAdminController(store *repositories.Store, withdrawalSvc *services.WithdrawalService, whishSvc *services.WhishService) *AdminController {
	return &AdminController{
		store:         store,
		withdrawalSvc: withdrawalSvc,
		whishSvc:      whishSvc,
	}
}

// rgenerateOTP creates a 4-digit OTP
func rgenerateOTP() (string, error) {
	otp := ""
	for i := 0; i < 4; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		otp += fmt.Sprintf("%d", num)
	}
	return otp, nil
}

// sendOTPEmail sends OTP to admin's email using SMTP2GO
func sendOTPEmail(email, otp string) error {
	smtpHost := os.Getenv("SMTP_HOST")
	smtpUser := os.Getenv("SMTP_USER")
	smtpPass := os.Getenv("SMTP_PASS")
	fromEmail := os.Getenv("FROM_EMAIL")

	senderEmail := fromEmail
	if senderEmail == "" {
		senderEmail = smtpUser
	}

	if smtpHost == "" {
		smtpHost = "mail.smtp2go.com"
	}
	if smtpUser == "" || smtpPass == "" {
		return fmt.Errorf("SMTP2GO configuration is incomplete: check SMTP_USER and SMTP_PASS")
	}

	smtpPort := 2525
	if smtpPortStr := os.Getenv("SMTP_PORT"); smtpPortStr != "" {
		if portNum, err := strconv.Atoi(smtpPortStr); err == nil && portNum > 0 {
			smtpPort = portNum
		}
	}

	m := gomail.NewMessage()
	m.SetHeader("From", senderEmail)
	m.SetHeader("To", email)
	m.SetHeader("Subject", "Password Reset OTP")
	m.SetBody("text/plain", fmt.Sprintf("Your OTP for password reset is: %s\nThis OTP will expire in 10 minutes.", otp))

	d := gomail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPass)

	if err := d.DialAndSend(m); err != nil {
		log.Printf("Failed to send email: %v", err)
		return err
	}

	return nil
}

// UnifiedLogin handles the admin dashboard login
func (ac *AdminController) UnifiedLogin(c echo.Context) error {
	var loginReq models.AdminLoginRequest
	if err := c.Bind(&loginReq); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	if loginReq.Email == "" || loginReq.Password == "" {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Email and password are required",
		})
	}

	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		log.Printf("Admin credentials not configured")
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Admin login not configured",
		})
	}

	if loginReq.Email != adminEmail || loginReq.Password != adminPassword {
		log.Printf("Failed admin login attempt for email: %s", loginReq.Email)
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid admin credentials",
		})
	}

	token, refreshToken, err := middleware.GenerateJWT("admin", loginReq.Email, "admin")
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to generate token",
		})
	}

	cookie := new(http.Cookie)
	cookie.Name = "admin_token"
	cookie.Value = token
	cookie.Expires = time.Now().Add(24 * time.Hour)
	cookie.HttpOnly = true
	cookie.Secure = false // Set to true in production
	cookie.SameSite = http.SameSiteStrictMode
	c.SetCookie(cookie)

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Admin login successful",
		Data: map[string]interface{}{
			"token":        token,
			"refreshToken": refreshToken,
			"user": map[string]interface{}{
				"email": loginReq.Email,
				"role":  "admin",
			},
		},
	})
}

// ForgotPassword handles the forgot password request
func (ac *AdminController) ForgotPassword(c echo.Context) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	if adminEmail == "" {
		log.Println("Admin email not configured")
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Admin email not configured",
		})
	}

	otp, err := rgenerateOTP()
	if err != nil {
		log.Printf("Failed to generate OTP: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to generate OTP",
		})
	}

	otpStoreMu.Lock()
	otpStore[adminEmail] = OTPData{
		OTP:       otp,
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}
	otpStoreMu.Unlock()

	if err := sendOTPEmail(adminEmail, otp); err != nil {
		log.Printf("Failed to send OTP email: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to send OTP email: " + err.Error(),
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "OTP sent successfully",
	})
}

// VerifyOTPAndResetPassword handles OTP verification and password reset
func (ac *AdminController) VerifyOTPAndResetPassword(c echo.Context) error {
	var req models.AdminResetPasswordRequest
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

	adminEmail := os.Getenv("ADMIN_EMAIL")
	otpStoreMu.Lock()
	otpData, exists := otpStore[adminEmail]
	otpStoreMu.Unlock()
	if !exists {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "No OTP request found",
		})
	}

	if time.Now().After(otpData.ExpiresAt) {
		otpStoreMu.Lock()
		delete(otpStore, adminEmail)
		otpStoreMu.Unlock()
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "OTP has expired",
		})
	}

	if req.OTP != otpData.OTP {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid OTP",
		})
	}

	// Single admin account, password lives in the environment
	os.Setenv("ADMIN_PASSWORD", req.NewPassword)

	otpStoreMu.Lock()
	delete(otpStore, adminEmail)
	otpStoreMu.Unlock()

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Password reset successful",
	})
}

// GetWithdrawals lists withdrawal requests for review, optionally by status
func (ac *AdminController) GetWithdrawals(c echo.Context) error {
	status := c.QueryParam("status")
	switch status {
	case "", models.WithdrawalStatusPending, models.WithdrawalStatusProcessing,
		models.WithdrawalStatusCompleted, models.WithdrawalStatusRejected:
	default:
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid status filter",
		})
	}

	page, _ := strconv.ParseInt(c.QueryParam("page"), 10, 64)
	limit, _ := strconv.ParseInt(c.QueryParam("limit"), 10, 64)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	withdrawals, total, err := ac.store.Withdrawals.ListByStatus(ctx, status, page, limit)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Withdrawals retrieved successfully",
		Data: map[string]interface{}{
			"withdrawals": withdrawals,
			"total":       total,
			"page":        page,
			"limit":       limit,
		},
	})
}

// ApproveWithdrawal records a completed payout
func (ac *AdminController) ApproveWithdrawal(c echo.Context) error {
	requestID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid withdrawal ID",
		})
	}

	var req models.WithdrawalApproveRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	adminEmail, _ := c.Get("email").(string)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	withdrawal, err := ac.withdrawalSvc.Approve(ctx, requestID, adminEmail, req.ConfirmationCode)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Withdrawal approved",
		Data:    withdrawal,
	})
}

// RejectWithdrawal refuses a payout and releases the reserved amount
func (ac *AdminController) RejectWithdrawal(c echo.Context) error {
	requestID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid withdrawal ID",
		})
	}

	var req models.WithdrawalRejectRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	adminEmail, _ := c.Get("email").(string)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	withdrawal, err := ac.withdrawalSvc.Reject(ctx, requestID, adminEmail, req.Reason)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Withdrawal rejected",
		Data:    withdrawal,
	})
}

// GetEarningsReport aggregates platform income, liabilities and payouts
func (ac *AdminController) GetEarningsReport(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	totalUsers, err := ac.store.Users.CountAll(ctx)
	if err != nil {
		return respondError(c, err)
	}
	activeUsers, err := ac.store.Users.CountByStatus(ctx, models.UserStatusActive)
	if err != nil {
		return respondError(c, err)
	}
	outstandingPending, err := ac.store.Users.SumPendingEarnings(ctx)
	if err != nil {
		return respondError(c, err)
	}
	confirmedByType, err := ac.store.Transactions.SumConfirmedByType(ctx)
	if err != nil {
		return respondError(c, err)
	}
	reserved, err := ac.store.Withdrawals.SumOutstanding(ctx)
	if err != nil {
		return respondError(c, err)
	}

	bonusesByLevel := map[string]int64{
		"level1": confirmedByType[models.TransactionTypeBonusLevel1],
		"level2": confirmedByType[models.TransactionTypeBonusLevel2],
		"level3": confirmedByType[models.TransactionTypeBonusLevel3],
	}
	var totalBonuses int64
	for _, amount := range bonusesByLevel {
		totalBonuses += amount
	}

	report := models.EarningsReport{
		TotalUsers:            totalUsers,
		ActiveUsers:           activeUsers,
		ActivationFeeIncome:   confirmedByType[models.TransactionTypeActivationFee],
		BonusesPaidByLevel:    bonusesByLevel,
		TotalBonusesPaid:      totalBonuses,
		OutstandingPending:    outstandingPending,
		ReservedForWithdrawal: reserved,
		CompletedWithdrawals:  confirmedByType[models.TransactionTypeWithdrawal],
		GeneratedAt:           time.Now(),
	}

	// Provider balance is informational; the report still renders without it
	if balance, err := ac.whishSvc.GetBalance(); err != nil {
		log.Printf("Failed to fetch Whish balance for report: %v", err)
	} else {
		report.ProviderBalance = &balance
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Earnings report generated successfully",
		Data:    report,
	})
}

// ExportTransactions streams the journal for a date range as CSV
func (ac *AdminController) ExportTransactions(c echo.Context) error {
	from, to, err := parseReportRange(c.QueryParam("from"), c.QueryParam("to"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: err.Error(),
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	transactions, err := ac.store.Transactions.FindBetween(ctx, from, to)
	if err != nil {
		return respondError(c, err)
	}

	filename := fmt.Sprintf("transactions_%s_%s.csv", from.Format("2006-01-02"), to.Format("2006-01-02"))
	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	c.Response().WriteHeader(http.StatusOK)

	w := csv.NewWriter(c.Response())
	if err := w.Write([]string{"id", "userId", "type", "amount", "status", "reference", "description", "createdAt"}); err != nil {
		return err
	}
	for _, t := range transactions {
		record := []string{
			t.ID.Hex(),
			t.UserID.Hex(),
			t.Type,
			strconv.FormatInt(t.Amount, 10),
			t.Status,
			t.Reference,
			t.Description,
			t.CreatedAt.Format(time.RFC3339),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// parseReportRange interprets from/to dates; to is inclusive, so the query
// upper bound is the following midnight. Defaults to the last 30 days.
func parseReportRange(fromStr, toStr string) (time.Time, time.Time, error) {
	now := time.Now()
	from := now.AddDate(0, 0, -30)
	to := now

	if fromStr != "" {
		parsed, err := time.Parse("2006-01-02", fromStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid from date, expected YYYY-MM-DD")
		}
		from = parsed
	}
	if toStr != "" {
		parsed, err := time.Parse("2006-01-02", toStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid to date, expected YYYY-MM-DD")
		}
		to = parsed.AddDate(0, 0, 1)
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("from date must be before to date")
	}
	return from, to, nil
}
