package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/maksab_backend/apperrors"
	"github.com/HSouheill/maksab_backend/models"
)

// registerReferredUser registers a referrer and a referred account and
// returns both, the referred still unverified with a pending level-1 bonus.
func registerReferredUser(t *testing.T, ctx context.Context, store *fakeStore) (*models.User, *models.User) {
	t.Helper()
	svc := newReferralServiceForTest(store)
	referrer, err := svc.Register(ctx, signup("Rami Ayoub", "+96170000001", ""))
	if err != nil {
		t.Fatalf("Register referrer: %v", err)
	}
	referred, err := svc.Register(ctx, signup("Nour Haddad", "+96170000002", referrer.ReferralCode))
	if err != nil {
		t.Fatalf("Register referred: %v", err)
	}
	return referrer, referred
}

func findByType(store *fakeStore, userID primitive.ObjectID, txType string) []models.Transaction {
	var out []models.Transaction
	for _, txn := range store.transactions {
		if txn.UserID == userID && txn.Type == txType {
			out = append(out, *txn)
		}
	}
	return out
}

func TestInitiateCreatesAttempt(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	collector := &fakeCollector{collectURL: "https://whish.money/collect/abc"}
	svc := newActivationServiceForTest(store, collector)
	_, user := registerReferredUser(t, ctx, store)

	initiated, err := svc.Initiate(ctx, user.ID, "", 1000)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	if initiated.CollectURL != "https://whish.money/collect/abc" {
		t.Errorf("collectUrl = %q", initiated.CollectURL)
	}
	if initiated.ExternalID == 0 {
		t.Error("externalId is zero")
	}
	if initiated.Amount != 1000 {
		t.Errorf("amount = %d, want 1000", initiated.Amount)
	}

	attempt, err := store.FindByExternalID(ctx, initiated.ExternalID)
	if err != nil {
		t.Fatalf("FindByExternalID: %v", err)
	}
	if attempt.Status != models.ActivationAttemptCreated {
		t.Errorf("attempt status = %q, want created", attempt.Status)
	}
	if attempt.UserID != user.ID {
		t.Errorf("attempt userId = %s, want %s", attempt.UserID.Hex(), user.ID.Hex())
	}

	req := collector.lastRequest
	if req.Currency != "USD" {
		t.Errorf("collect currency = %q, want USD", req.Currency)
	}
	if req.Amount == nil || *req.Amount != 1000 {
		t.Errorf("collect amount = %v, want 1000", req.Amount)
	}
	if req.ExternalID == nil || *req.ExternalID != initiated.ExternalID {
		t.Errorf("collect externalId = %v, want %d", req.ExternalID, initiated.ExternalID)
	}
	if !strings.Contains(req.SuccessCallbackURL, "/api/whish/activation/callback/success") {
		t.Errorf("success callback = %q", req.SuccessCallbackURL)
	}
	if !strings.Contains(req.FailureCallbackURL, "/api/whish/activation/callback/failure") {
		t.Errorf("failure callback = %q", req.FailureCallbackURL)
	}
}

func TestInitiateRejections(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newActivationServiceForTest(store, &fakeCollector{})
	_, user := registerReferredUser(t, ctx, store)
	active := seedActiveUser(store, "Karim Saab", "+96170000003", "MK-ACT111", 0)

	suspended := seedActiveUser(store, "Ziad Fares", "+96170000004", "MK-SUS111", 0)
	store.users[suspended.ID].Status = models.UserStatusSuspended

	tests := []struct {
		name   string
		userID primitive.ObjectID
		amount int64
		kind   apperrors.Kind
	}{
		{"wrong amount", user.ID, 999, apperrors.KindValidation},
		{"unknown user", primitive.NewObjectID(), 1000, apperrors.KindNotFound},
		{"already active", active.ID, 1000, apperrors.KindConflict},
		{"suspended", suspended.ID, 1000, apperrors.KindConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Initiate(ctx, tt.userID, "", tt.amount)
			if !apperrors.IsKind(err, tt.kind) {
				t.Fatalf("Initiate error = %v, want kind %v", err, tt.kind)
			}
		})
	}

	if len(store.attempts) != 0 {
		t.Errorf("attempts = %d after rejected initiations, want 0", len(store.attempts))
	}
}

func TestInitiateProviderDown(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	collector := &fakeCollector{postErr: errors.New("gateway timeout")}
	svc := newActivationServiceForTest(store, collector)
	_, user := registerReferredUser(t, ctx, store)

	_, err := svc.Initiate(ctx, user.ID, "", 1000)
	if !apperrors.IsKind(err, apperrors.KindExternalService) {
		t.Fatalf("Initiate error = %v, want external service", err)
	}
	if len(store.attempts) != 0 {
		t.Errorf("attempts = %d, want 0 when the collect never started", len(store.attempts))
	}
}

func TestInitiateStoresPayoutAccount(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newActivationServiceForTest(store, &fakeCollector{})
	_, user := registerReferredUser(t, ctx, store)

	if _, err := svc.Initiate(ctx, user.ID, "+96171111111", 1000); err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if got := store.users[user.ID].PayoutAccount; got != "+96171111111" {
		t.Errorf("payoutAccount = %q, want +96171111111", got)
	}
}

func TestConfirmSuccessActivatesAndReleases(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newActivationServiceForTest(store, &fakeCollector{payerPhone: "+96170000002"})
	referrer, user := registerReferredUser(t, ctx, store)

	initiated, err := svc.Initiate(ctx, user.ID, "", 1000)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if err := svc.ConfirmSuccess(ctx, initiated.ExternalID); err != nil {
		t.Fatalf("ConfirmSuccess: %v", err)
	}

	gotUser := store.users[user.ID]
	if gotUser.Status != models.UserStatusActive {
		t.Errorf("user status = %q, want active", gotUser.Status)
	}
	if gotUser.ActivatedAt == nil {
		t.Error("activatedAt not set")
	}

	gotReferrer := store.users[referrer.ID]
	if gotReferrer.PendingEarnings != 0 {
		t.Errorf("referrer pendingEarnings = %d, want 0", gotReferrer.PendingEarnings)
	}
	if gotReferrer.AvailableBalance != 300 {
		t.Errorf("referrer availableBalance = %d, want 300", gotReferrer.AvailableBalance)
	}
	if gotReferrer.TotalEarned != 300 {
		t.Errorf("referrer totalEarned = %d, want 300", gotReferrer.TotalEarned)
	}

	edges, err := store.FindByReferrer(ctx, referrer.ID)
	if err != nil {
		t.Fatalf("FindByReferrer: %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("edges = %d, want 1", len(edges))
	}
	if edges[0].Status != models.ReferralStatusAvailable {
		t.Errorf("edge status = %q, want available", edges[0].Status)
	}
	if edges[0].ReleasedAt == nil {
		t.Error("edge releasedAt not set")
	}

	bonuses := findByType(store, referrer.ID, models.TransactionTypeBonusLevel1)
	if len(bonuses) != 1 {
		t.Fatalf("bonus entries = %d, want 1", len(bonuses))
	}
	if bonuses[0].Status != models.TransactionStatusConfirmed {
		t.Errorf("bonus status = %q, want confirmed", bonuses[0].Status)
	}

	fees := findByType(store, user.ID, models.TransactionTypeActivationFee)
	if len(fees) != 1 {
		t.Fatalf("activation fee entries = %d, want 1", len(fees))
	}
	fee := fees[0]
	if fee.Status != models.TransactionStatusConfirmed || fee.Amount != 1000 {
		t.Errorf("fee = %q %d, want confirmed 1000", fee.Status, fee.Amount)
	}
	if fee.Reference != strconv.FormatInt(initiated.ExternalID, 10) {
		t.Errorf("fee reference = %q, want %d", fee.Reference, initiated.ExternalID)
	}

	attempt, err := store.FindByExternalID(ctx, initiated.ExternalID)
	if err != nil {
		t.Fatalf("FindByExternalID: %v", err)
	}
	if attempt.Status != models.ActivationAttemptConfirmed {
		t.Errorf("attempt status = %q, want confirmed", attempt.Status)
	}
}

func TestConfirmSuccessIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newActivationServiceForTest(store, &fakeCollector{})
	referrer, user := registerReferredUser(t, ctx, store)

	initiated, err := svc.Initiate(ctx, user.ID, "", 1000)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if err := svc.ConfirmSuccess(ctx, initiated.ExternalID); err != nil {
		t.Fatalf("first ConfirmSuccess: %v", err)
	}
	if err := svc.ConfirmSuccess(ctx, initiated.ExternalID); err != nil {
		t.Fatalf("duplicate ConfirmSuccess: %v", err)
	}

	if got := store.users[referrer.ID].AvailableBalance; got != 300 {
		t.Errorf("referrer availableBalance = %d after duplicate callback, want 300", got)
	}
	if fees := findByType(store, user.ID, models.TransactionTypeActivationFee); len(fees) != 1 {
		t.Errorf("activation fee entries = %d, want 1", len(fees))
	}
}

func TestConfirmSuccessThreeLevelRelease(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	refSvc := newReferralServiceForTest(store)
	svc := newActivationServiceForTest(store, &fakeCollector{})

	a, _ := refSvc.Register(ctx, signup("Ali", "+96170000001", ""))
	b, _ := refSvc.Register(ctx, signup("Bilal", "+96170000002", a.ReferralCode))
	c, _ := refSvc.Register(ctx, signup("Carla", "+96170000003", b.ReferralCode))
	d, err := refSvc.Register(ctx, signup("Dana", "+96170000004", c.ReferralCode))
	if err != nil {
		t.Fatalf("Register D: %v", err)
	}

	initiated, err := svc.Initiate(ctx, d.ID, "", 1000)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if err := svc.ConfirmSuccess(ctx, initiated.ExternalID); err != nil {
		t.Fatalf("ConfirmSuccess: %v", err)
	}

	// only D's own edges release; bonuses owed for B and C stay pending
	wantBalances := []struct {
		id        primitive.ObjectID
		name      string
		pending   int64
		available int64
	}{
		{c.ID, "Carla", 0, 300},
		{b.ID, "Bilal", 300, 100},
		{a.ID, "Ali", 400, 50},
	}
	for _, want := range wantBalances {
		u := store.users[want.id]
		if u.PendingEarnings != want.pending || u.AvailableBalance != want.available {
			t.Errorf("%s = pending %d available %d, want pending %d available %d",
				want.name, u.PendingEarnings, u.AvailableBalance, want.pending, want.available)
		}
	}

	released, err := store.FindPendingByReferred(ctx, d.ID)
	if err != nil {
		t.Fatalf("FindPendingByReferred: %v", err)
	}
	if len(released) != 0 {
		t.Errorf("pending edges for D = %d after activation, want 0", len(released))
	}
}

func TestConfirmSuccessSecondAttemptIsNoOp(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newActivationServiceForTest(store, &fakeCollector{})
	_, user := registerReferredUser(t, ctx, store)

	first, err := svc.Initiate(ctx, user.ID, "", 1000)
	if err != nil {
		t.Fatalf("first Initiate: %v", err)
	}
	second, err := svc.Initiate(ctx, user.ID, "", 1000)
	if err != nil {
		t.Fatalf("second Initiate: %v", err)
	}

	if err := svc.ConfirmSuccess(ctx, first.ExternalID); err != nil {
		t.Fatalf("ConfirmSuccess first: %v", err)
	}
	if err := svc.ConfirmSuccess(ctx, second.ExternalID); err != nil {
		t.Fatalf("ConfirmSuccess second: %v", err)
	}

	if fees := findByType(store, user.ID, models.TransactionTypeActivationFee); len(fees) != 1 {
		t.Errorf("activation fee entries = %d, want 1", len(fees))
	}
	attempt, err := store.FindByExternalID(ctx, second.ExternalID)
	if err != nil {
		t.Fatalf("FindByExternalID: %v", err)
	}
	if attempt.Status != models.ActivationAttemptConfirmed {
		t.Errorf("second attempt status = %q, want confirmed", attempt.Status)
	}
}

func TestConfirmUnknownReference(t *testing.T) {
	ctx := context.Background()
	svc := newActivationServiceForTest(newFakeStore(), &fakeCollector{})

	err := svc.ConfirmSuccess(ctx, 123456789)
	if !apperrors.IsKind(err, apperrors.KindNotFound) {
		t.Fatalf("ConfirmSuccess error = %v, want not found", err)
	}
}

func TestConfirmIgnoresUnsettledCollect(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	collector := &fakeCollector{}
	svc := newActivationServiceForTest(store, collector)
	_, user := registerReferredUser(t, ctx, store)

	initiated, err := svc.Initiate(ctx, user.ID, "", 1000)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	collector.status = "pending"
	if err := svc.ConfirmSuccess(ctx, initiated.ExternalID); err != nil {
		t.Fatalf("ConfirmSuccess: %v", err)
	}

	if got := store.users[user.ID].Status; got != models.UserStatusUnverified {
		t.Errorf("user status = %q, want unverified", got)
	}
	if fees := findByType(store, user.ID, models.TransactionTypeActivationFee); len(fees) != 0 {
		t.Errorf("activation fee entries = %d, want 0", len(fees))
	}
}

func TestConfirmVerificationFailure(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	collector := &fakeCollector{}
	svc := newActivationServiceForTest(store, collector)
	_, user := registerReferredUser(t, ctx, store)

	initiated, err := svc.Initiate(ctx, user.ID, "", 1000)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	collector.statusErr = errors.New("whish unavailable")
	err = svc.ConfirmSuccess(ctx, initiated.ExternalID)
	if !apperrors.IsKind(err, apperrors.KindExternalService) {
		t.Fatalf("ConfirmSuccess error = %v, want external service", err)
	}
	if got := store.users[user.ID].Status; got != models.UserStatusUnverified {
		t.Errorf("user status = %q, want unverified", got)
	}
}

func TestConfirmRollsBackOnLedgerInconsistency(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newActivationServiceForTest(store, &fakeCollector{})
	referrer, user := registerReferredUser(t, ctx, store)

	initiated, err := svc.Initiate(ctx, user.ID, "", 1000)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	// corrupt the referrer's pending balance below the owed bonus
	store.users[referrer.ID].PendingEarnings = 100

	err = svc.ConfirmSuccess(ctx, initiated.ExternalID)
	if !apperrors.IsKind(err, apperrors.KindConsistency) {
		t.Fatalf("ConfirmSuccess error = %v, want consistency", err)
	}

	if got := store.users[user.ID].Status; got != models.UserStatusUnverified {
		t.Errorf("user status = %q after rollback, want unverified", got)
	}
	if fees := findByType(store, user.ID, models.TransactionTypeActivationFee); len(fees) != 0 {
		t.Errorf("activation fee entries = %d after rollback, want 0", len(fees))
	}
	edges, _ := store.FindPendingByReferred(ctx, user.ID)
	if len(edges) != 1 {
		t.Errorf("pending edges = %d after rollback, want 1", len(edges))
	}
	attempt, _ := store.FindByExternalID(ctx, initiated.ExternalID)
	if attempt.Status != models.ActivationAttemptCreated {
		t.Errorf("attempt status = %q after rollback, want created", attempt.Status)
	}
}

func TestMarkFailure(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newActivationServiceForTest(store, &fakeCollector{})
	_, user := registerReferredUser(t, ctx, store)

	initiated, err := svc.Initiate(ctx, user.ID, "", 1000)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	if err := svc.MarkFailure(ctx, initiated.ExternalID); err != nil {
		t.Fatalf("MarkFailure: %v", err)
	}
	attempt, _ := store.FindByExternalID(ctx, initiated.ExternalID)
	if attempt.Status != models.ActivationAttemptFailed {
		t.Errorf("attempt status = %q, want failed", attempt.Status)
	}
	if got := store.users[user.ID].Status; got != models.UserStatusUnverified {
		t.Errorf("user status = %q, want unverified", got)
	}

	// repeated failure callback changes nothing
	if err := svc.MarkFailure(ctx, initiated.ExternalID); err != nil {
		t.Fatalf("repeated MarkFailure: %v", err)
	}

	err = svc.MarkFailure(ctx, 987654321)
	if !apperrors.IsKind(err, apperrors.KindNotFound) {
		t.Fatalf("MarkFailure unknown error = %v, want not found", err)
	}
}

func TestLatestAttempt(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newActivationServiceForTest(store, &fakeCollector{})
	_, user := registerReferredUser(t, ctx, store)

	if _, err := svc.LatestAttempt(ctx, user.ID); !apperrors.IsKind(err, apperrors.KindNotFound) {
		t.Fatalf("LatestAttempt error = %v, want not found", err)
	}

	if _, err := svc.Initiate(ctx, user.ID, "", 1000); err != nil {
		t.Fatalf("first Initiate: %v", err)
	}
	second, err := svc.Initiate(ctx, user.ID, "", 1000)
	if err != nil {
		t.Fatalf("second Initiate: %v", err)
	}

	latest, err := svc.LatestAttempt(ctx, user.ID)
	if err != nil {
		t.Fatalf("LatestAttempt: %v", err)
	}
	if latest.ExternalID != second.ExternalID {
		t.Errorf("latest externalId = %d, want %d", latest.ExternalID, second.ExternalID)
	}
}
