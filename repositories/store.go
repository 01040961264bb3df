// repositories/store.go
package repositories

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/HSouheill/maksab_backend/config"
)

// Store bundles the collection repositories and the unit of work. Services
// receive it injected instead of reaching for a shared client, so tests can
// swap in fakes.
type Store struct {
	client       *mongo.Client
	Users        *UserRepo
	Referrals    *ReferralRepo
	Transactions *TransactionRepo
	Withdrawals  *WithdrawalRepo
	Activations  *ActivationRepo
	OTPs         *OTPRepo
}

func NewStore(client *mongo.Client) *Store {
	db := client.Database(config.DatabaseName())
	return &Store{
		client:       client,
		Users:        NewUserRepo(db),
		Referrals:    NewReferralRepo(db),
		Transactions: NewTransactionRepo(db),
		Withdrawals:  NewWithdrawalRepo(db),
		Activations:  NewActivationRepo(db),
		OTPs:         NewOTPRepo(db),
	}
}

// WithinTransaction runs fn inside one MongoDB transaction. The context
// passed to fn is a session context; every repository call made with it joins
// the transaction, and any error from fn rolls the whole thing back. Requires
// the server to run as a replica set.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	txnOptions := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	}, txnOptions)
	return err
}
