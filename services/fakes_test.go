package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/HSouheill/maksab_backend/config"
	"github.com/HSouheill/maksab_backend/models"
)

// fakeStore is an in-memory stand-in for the Mongo repositories. Its
// WithinTransaction snapshots all state and restores it when the callback
// errors, so the all-or-nothing behavior of the real store holds in tests.
type fakeStore struct {
	mu           sync.Mutex
	users        map[primitive.ObjectID]*models.User
	referrals    map[primitive.ObjectID]*models.Referral
	transactions map[primitive.ObjectID]*models.Transaction
	withdrawals  map[primitive.ObjectID]*models.Withdrawal
	attempts     map[primitive.ObjectID]*models.ActivationAttempt
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:        make(map[primitive.ObjectID]*models.User),
		referrals:    make(map[primitive.ObjectID]*models.Referral),
		transactions: make(map[primitive.ObjectID]*models.Transaction),
		withdrawals:  make(map[primitive.ObjectID]*models.Withdrawal),
		attempts:     make(map[primitive.ObjectID]*models.ActivationAttempt),
	}
}

type storeSnapshot struct {
	users        map[primitive.ObjectID]*models.User
	referrals    map[primitive.ObjectID]*models.Referral
	transactions map[primitive.ObjectID]*models.Transaction
	withdrawals  map[primitive.ObjectID]*models.Withdrawal
	attempts     map[primitive.ObjectID]*models.ActivationAttempt
}

func (f *fakeStore) snapshot() storeSnapshot {
	s := storeSnapshot{
		users:        make(map[primitive.ObjectID]*models.User, len(f.users)),
		referrals:    make(map[primitive.ObjectID]*models.Referral, len(f.referrals)),
		transactions: make(map[primitive.ObjectID]*models.Transaction, len(f.transactions)),
		withdrawals:  make(map[primitive.ObjectID]*models.Withdrawal, len(f.withdrawals)),
		attempts:     make(map[primitive.ObjectID]*models.ActivationAttempt, len(f.attempts)),
	}
	for id, u := range f.users {
		c := *u
		s.users[id] = &c
	}
	for id, r := range f.referrals {
		c := *r
		s.referrals[id] = &c
	}
	for id, t := range f.transactions {
		c := *t
		s.transactions[id] = &c
	}
	for id, w := range f.withdrawals {
		c := *w
		s.withdrawals[id] = &c
	}
	for id, a := range f.attempts {
		c := *a
		s.attempts[id] = &c
	}
	return s
}

func (f *fakeStore) restore(s storeSnapshot) {
	f.users = s.users
	f.referrals = s.referrals
	f.transactions = s.transactions
	f.withdrawals = s.withdrawals
	f.attempts = s.attempts
}

func (f *fakeStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := f.snapshot()
	if err := fn(ctx); err != nil {
		f.restore(snap)
		return err
	}
	return nil
}

// --- UserRepository ---

func (f *fakeStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		c := *u
		return &c, nil
	}
	return nil, mongo.ErrNoDocuments
}

func (f *fakeStore) FindByPhone(ctx context.Context, phone string) (*models.User, error) {
	for _, u := range f.users {
		if u.Phone == phone {
			c := *u
			return &c, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (f *fakeStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (f *fakeStore) FindByReferralCode(ctx context.Context, code string) (*models.User, error) {
	for _, u := range f.users {
		if u.ReferralCode == code {
			c := *u
			return &c, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (f *fakeStore) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	var out []models.User
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeStore) Insert(ctx context.Context, user *models.User) (primitive.ObjectID, error) {
	id := user.ID
	if id.IsZero() {
		id = primitive.NewObjectID()
	}
	c := *user
	c.ID = id
	f.users[id] = &c
	return id, nil
}

func (f *fakeStore) AccrueReferral(ctx context.Context, referrerID primitive.ObjectID, amount int64, countReferral bool) error {
	u, ok := f.users[referrerID]
	if !ok {
		return mongo.ErrNoDocuments
	}
	u.PendingEarnings += amount
	if countReferral {
		u.TotalReferrals++
	}
	return nil
}

func (f *fakeStore) ReleaseEarnings(ctx context.Context, referrerID primitive.ObjectID, amount int64) (bool, error) {
	u, ok := f.users[referrerID]
	if !ok || u.PendingEarnings < amount {
		return false, nil
	}
	u.PendingEarnings -= amount
	u.AvailableBalance += amount
	u.TotalEarned += amount
	return true, nil
}

func (f *fakeStore) Activate(ctx context.Context, userID primitive.ObjectID) (bool, error) {
	u, ok := f.users[userID]
	if !ok || u.Status != models.UserStatusUnverified {
		return false, nil
	}
	now := time.Now()
	u.Status = models.UserStatusActive
	u.ActivatedAt = &now
	return true, nil
}

func (f *fakeStore) ReserveBalance(ctx context.Context, userID primitive.ObjectID, amount int64) (bool, error) {
	u, ok := f.users[userID]
	if !ok || u.AvailableBalance < amount {
		return false, nil
	}
	u.AvailableBalance -= amount
	return true, nil
}

func (f *fakeStore) RefundBalance(ctx context.Context, userID primitive.ObjectID, amount int64) error {
	u, ok := f.users[userID]
	if !ok {
		return mongo.ErrNoDocuments
	}
	u.AvailableBalance += amount
	return nil
}

func (f *fakeStore) AddTotalWithdrawn(ctx context.Context, userID primitive.ObjectID, amount int64) error {
	u, ok := f.users[userID]
	if !ok {
		return mongo.ErrNoDocuments
	}
	u.TotalWithdrawn += amount
	return nil
}

func (f *fakeStore) SetPayoutAccount(ctx context.Context, userID primitive.ObjectID, account string) error {
	u, ok := f.users[userID]
	if !ok {
		return mongo.ErrNoDocuments
	}
	u.PayoutAccount = account
	return nil
}

func (f *fakeStore) CountAll(ctx context.Context) (int64, error) {
	return int64(len(f.users)), nil
}

func (f *fakeStore) CountByStatus(ctx context.Context, status string) (int64, error) {
	var n int64
	for _, u := range f.users {
		if u.Status == status {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) SumPendingEarnings(ctx context.Context) (int64, error) {
	var total int64
	for _, u := range f.users {
		total += u.PendingEarnings
	}
	return total, nil
}

// --- ReferralRepository ---

func (f *fakeStore) InsertReferral(ctx context.Context, referral *models.Referral) (primitive.ObjectID, error) {
	for _, r := range f.referrals {
		if r.ReferrerID == referral.ReferrerID && r.ReferredID == referral.ReferredID {
			return primitive.NilObjectID, mongo.WriteException{}
		}
	}
	id := primitive.NewObjectID()
	c := *referral
	c.ID = id
	f.referrals[id] = &c
	return id, nil
}

func (f *fakeStore) FindPendingByReferred(ctx context.Context, referredID primitive.ObjectID) ([]models.Referral, error) {
	var out []models.Referral
	for _, r := range f.referrals {
		if r.ReferredID == referredID && r.Status == models.ReferralStatusPending {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Level < out[j].Level })
	return out, nil
}

func (f *fakeStore) FindByReferrer(ctx context.Context, referrerID primitive.ObjectID) ([]models.Referral, error) {
	var out []models.Referral
	for _, r := range f.referrals {
		if r.ReferrerID == referrerID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) Release(ctx context.Context, id primitive.ObjectID) (bool, error) {
	r, ok := f.referrals[id]
	if !ok || r.Status != models.ReferralStatusPending {
		return false, nil
	}
	now := time.Now()
	r.Status = models.ReferralStatusAvailable
	r.ReleasedAt = &now
	return true, nil
}

// --- TransactionRepository ---

func (f *fakeStore) InsertTransaction(ctx context.Context, txn *models.Transaction) (primitive.ObjectID, error) {
	id := primitive.NewObjectID()
	c := *txn
	c.ID = id
	f.transactions[id] = &c
	return id, nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to string) (bool, error) {
	t, ok := f.transactions[id]
	if !ok || t.Status != from {
		return false, nil
	}
	t.Status = to
	return true, nil
}

func (f *fakeStore) ReopenEntry(ctx context.Context, id primitive.ObjectID) (bool, error) {
	t, ok := f.transactions[id]
	if !ok {
		return false, nil
	}
	if t.Status != models.TransactionStatusFailed && t.Status != models.TransactionStatusCancelled {
		return false, nil
	}
	t.Status = models.TransactionStatusPending
	return true, nil
}

func (f *fakeStore) ConfirmBonusEntry(ctx context.Context, userID primitive.ObjectID, txType, reference string) (bool, error) {
	for _, t := range f.transactions {
		if t.UserID == userID && t.Type == txType && t.Reference == reference && t.Status == models.TransactionStatusPending {
			t.Status = models.TransactionStatusConfirmed
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) HasConfirmed(ctx context.Context, userID primitive.ObjectID, txType string) (bool, error) {
	for _, t := range f.transactions {
		if t.UserID == userID && t.Type == txType && t.Status == models.TransactionStatusConfirmed {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) FindByUser(ctx context.Context, userID primitive.ObjectID, page, limit int64) ([]models.Transaction, int64, error) {
	var out []models.Transaction
	for _, t := range f.transactions {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

func (f *fakeStore) SumConfirmedByType(ctx context.Context) (map[string]int64, error) {
	totals := make(map[string]int64)
	for _, t := range f.transactions {
		if t.Status == models.TransactionStatusConfirmed {
			totals[t.Type] += t.Amount
		}
	}
	return totals, nil
}

func (f *fakeStore) FindBetween(ctx context.Context, from, to time.Time) ([]models.Transaction, error) {
	var out []models.Transaction
	for _, t := range f.transactions {
		if !t.CreatedAt.Before(from) && t.CreatedAt.Before(to) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// --- WithdrawalRepository ---

func (f *fakeStore) InsertWithdrawal(ctx context.Context, w *models.Withdrawal) (primitive.ObjectID, error) {
	id := w.ID
	if id.IsZero() {
		id = primitive.NewObjectID()
	}
	c := *w
	c.ID = id
	f.withdrawals[id] = &c
	return id, nil
}

func (f *fakeStore) FindWithdrawalByID(ctx context.Context, id primitive.ObjectID) (*models.Withdrawal, error) {
	if w, ok := f.withdrawals[id]; ok {
		c := *w
		return &c, nil
	}
	return nil, mongo.ErrNoDocuments
}

func (f *fakeStore) FindOutstandingByUser(ctx context.Context, userID primitive.ObjectID) (*models.Withdrawal, error) {
	for _, w := range f.withdrawals {
		if w.UserID == userID && w.IsOutstanding() {
			c := *w
			return &c, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (f *fakeStore) FindWithdrawalsByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Withdrawal, error) {
	var out []models.Withdrawal
	for _, w := range f.withdrawals {
		if w.UserID == userID {
			out = append(out, *w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) BeginProcessing(ctx context.Context, id primitive.ObjectID) (bool, error) {
	w, ok := f.withdrawals[id]
	if !ok || w.Status != models.WithdrawalStatusPending {
		return false, nil
	}
	w.Status = models.WithdrawalStatusProcessing
	return true, nil
}

func (f *fakeStore) Complete(ctx context.Context, id primitive.ObjectID, adminEmail, confirmationCode string) error {
	w, ok := f.withdrawals[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	now := time.Now()
	w.Status = models.WithdrawalStatusCompleted
	w.ConfirmationCode = confirmationCode
	w.AdminEmail = adminEmail
	w.ProcessedAt = &now
	return nil
}

func (f *fakeStore) Reject(ctx context.Context, id primitive.ObjectID, adminEmail, reason string) error {
	w, ok := f.withdrawals[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	now := time.Now()
	w.Status = models.WithdrawalStatusRejected
	w.RejectionReason = reason
	w.AdminEmail = adminEmail
	w.ProcessedAt = &now
	return nil
}

func (f *fakeStore) CancelPending(ctx context.Context, id primitive.ObjectID, reason string) (bool, error) {
	w, ok := f.withdrawals[id]
	if !ok || w.Status != models.WithdrawalStatusPending {
		return false, nil
	}
	now := time.Now()
	w.Status = models.WithdrawalStatusRejected
	w.RejectionReason = reason
	w.ProcessedAt = &now
	return true, nil
}

func (f *fakeStore) RetryRejected(ctx context.Context, id primitive.ObjectID) (bool, error) {
	w, ok := f.withdrawals[id]
	if !ok || w.Status != models.WithdrawalStatusRejected {
		return false, nil
	}
	w.Status = models.WithdrawalStatusPending
	w.RejectionReason = ""
	w.ConfirmationCode = ""
	w.AdminEmail = ""
	w.ProcessedAt = nil
	return true, nil
}

func (f *fakeStore) ListByStatus(ctx context.Context, status string, page, limit int64) ([]models.AdminWithdrawal, int64, error) {
	var out []models.AdminWithdrawal
	for _, w := range f.withdrawals {
		if status != "" && w.Status != status {
			continue
		}
		row := models.AdminWithdrawal{Withdrawal: *w}
		if u, ok := f.users[w.UserID]; ok {
			row.UserName = u.FullName
			row.UserPhone = u.Phone
		}
		out = append(out, row)
	}
	return out, int64(len(out)), nil
}

func (f *fakeStore) SumOutstanding(ctx context.Context) (int64, error) {
	var total int64
	for _, w := range f.withdrawals {
		if w.IsOutstanding() {
			total += w.Amount
		}
	}
	return total, nil
}

// --- ActivationRepository ---

func (f *fakeStore) InsertAttempt(ctx context.Context, attempt *models.ActivationAttempt) (primitive.ObjectID, error) {
	id := primitive.NewObjectID()
	c := *attempt
	c.ID = id
	f.attempts[id] = &c
	return id, nil
}

func (f *fakeStore) FindByExternalID(ctx context.Context, externalID int64) (*models.ActivationAttempt, error) {
	for _, a := range f.attempts {
		if a.ExternalID == externalID {
			c := *a
			return &c, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (f *fakeStore) FindLatestByUser(ctx context.Context, userID primitive.ObjectID) (*models.ActivationAttempt, error) {
	var latest *models.ActivationAttempt
	for _, a := range f.attempts {
		if a.UserID != userID {
			continue
		}
		if latest == nil || a.CreatedAt.After(latest.CreatedAt) {
			latest = a
		}
	}
	if latest == nil {
		return nil, mongo.ErrNoDocuments
	}
	c := *latest
	return &c, nil
}

func (f *fakeStore) UpdateAttemptStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	a, ok := f.attempts[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	a.Status = status
	return nil
}

// --- adapters pinning the fake to the repository interfaces ---

type fakeReferralRepo struct{ *fakeStore }

func (f fakeReferralRepo) Insert(ctx context.Context, r *models.Referral) (primitive.ObjectID, error) {
	return f.InsertReferral(ctx, r)
}

type fakeTransactionRepo struct{ *fakeStore }

func (f fakeTransactionRepo) Insert(ctx context.Context, t *models.Transaction) (primitive.ObjectID, error) {
	return f.InsertTransaction(ctx, t)
}

type fakeWithdrawalRepo struct{ *fakeStore }

func (f fakeWithdrawalRepo) Insert(ctx context.Context, w *models.Withdrawal) (primitive.ObjectID, error) {
	return f.InsertWithdrawal(ctx, w)
}

func (f fakeWithdrawalRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Withdrawal, error) {
	return f.FindWithdrawalByID(ctx, id)
}

func (f fakeWithdrawalRepo) FindByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Withdrawal, error) {
	return f.FindWithdrawalsByUser(ctx, userID)
}

type fakeActivationRepo struct{ *fakeStore }

func (f fakeActivationRepo) Insert(ctx context.Context, a *models.ActivationAttempt) (primitive.ObjectID, error) {
	return f.InsertAttempt(ctx, a)
}

func (f fakeActivationRepo) UpdateStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	return f.UpdateAttemptStatus(ctx, id, status)
}

// fakeCollector substitutes the Whish API.
type fakeCollector struct {
	collectURL  string
	postErr     error
	status      string
	payerPhone  string
	statusErr   error
	lastRequest models.WhishRequest
}

func (f *fakeCollector) PostPayment(req models.WhishRequest) (string, error) {
	f.lastRequest = req
	if f.postErr != nil {
		return "", f.postErr
	}
	if f.collectURL == "" {
		return "https://pay.example/collect/1", nil
	}
	return f.collectURL, nil
}

func (f *fakeCollector) GetPaymentStatus(currency string, externalID int64) (string, string, error) {
	if f.statusErr != nil {
		return "", "", f.statusErr
	}
	if f.status == "" {
		return collectStatusSuccess, f.payerPhone, nil
	}
	return f.status, f.payerPhone, nil
}

// testEarnings is the money configuration the scenario tests assume.
func testEarnings() config.Earnings {
	return config.Earnings{
		ActivationFee: 1000,
		BonusLevel1:   300,
		BonusLevel2:   100,
		BonusLevel3:   50,
		MinWithdrawal: 500,
		Currency:      "USD",
		ShareLinkBase: "https://maksab.app/r",
	}
}

func newReferralServiceForTest(store *fakeStore) *ReferralService {
	return NewReferralService(store, store, fakeReferralRepo{store}, fakeTransactionRepo{store}, testEarnings())
}

func newActivationServiceForTest(store *fakeStore, collector *fakeCollector) *ActivationService {
	return NewActivationService(store, store, fakeReferralRepo{store}, fakeTransactionRepo{store}, fakeActivationRepo{store}, collector, testEarnings())
}

func newWithdrawalServiceForTest(store *fakeStore) *WithdrawalService {
	return NewWithdrawalService(store, store, fakeWithdrawalRepo{store}, fakeTransactionRepo{store}, testEarnings())
}

// seedActiveUser inserts a ready-to-withdraw account.
func seedActiveUser(f *fakeStore, name, phone, code string, available int64) *models.User {
	id := primitive.NewObjectID()
	now := time.Now()
	u := &models.User{
		ID:               id,
		FullName:         name,
		Phone:            phone,
		Status:           models.UserStatusActive,
		ReferralCode:     code,
		PayoutAccount:    phone,
		AvailableBalance: available,
		TotalEarned:      available,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	f.users[id] = u
	return u
}
