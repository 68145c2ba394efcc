package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"

	"github.com/workloy/workloy/internal/config"
	"github.com/workloy/workloy/internal/ledger"
	"github.com/workloy/workloy/internal/logging"
	"github.com/workloy/workloy/internal/models"
)

// Service errors
var (
	ErrUnknownPackage  = errors.New("unknown coin package")
	ErrUserNotFound    = errors.New("user not found")
	ErrPaymentNotFound = errors.New("payment not found")
	ErrStripeDisabled  = errors.New("stripe is not configured")
)

// Service handles coin purchases. Payments are charged externally through
// Stripe; the server's job is to create the intent for a known package and,
// on confirmation, credit the purchased coins exactly once per gateway
// transaction ID.
type Service struct {
	db        *pgxpool.Pool
	stripeCfg *config.StripeConfig
}

// NewService creates a new payment service
func NewService(db *pgxpool.Pool, stripeCfg *config.StripeConfig) *Service {
	if stripeCfg.SecretKey != "" {
		stripe.Key = stripeCfg.SecretKey
	}
	return &Service{db: db, stripeCfg: stripeCfg}
}

// CreateIntentRequest selects a coin package to purchase
type CreateIntentRequest struct {
	PackageID string `json:"package_id" binding:"required"`
}

// CreateIntentResponse carries the client secret the frontend needs to
// collect the card payment
type CreateIntentResponse struct {
	ClientSecret string `json:"client_secret"`
	PackageID    string `json:"package_id"`
	Coins        int64  `json:"coins"`
	AmountCents  int64  `json:"amount_cents"`
}

// CreateIntent creates a Stripe payment intent for a coin package. The price
// always comes from the server-side package table, never from the client.
func (s *Service) CreateIntent(ctx context.Context, email string, req *CreateIntentRequest) (*CreateIntentResponse, error) {
	if s.stripeCfg.SecretKey == "" {
		return nil, ErrStripeDisabled
	}

	pkg := models.PackageByID(req.PackageID)
	if pkg == nil {
		return nil, ErrUnknownPackage
	}

	var exists bool
	err := s.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)", email).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check user existence: %w", err)
	}
	if !exists {
		return nil, ErrUserNotFound
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(pkg.PriceCents),
		Currency: stripe.String(string(stripe.CurrencyUSD)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: map[string]string{
			"email":      email,
			"package_id": pkg.ID,
			"coins":      fmt.Sprintf("%d", pkg.Coins),
		},
	}

	intent, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	return &CreateIntentResponse{
		ClientSecret: intent.ClientSecret,
		PackageID:    pkg.ID,
		Coins:        pkg.Coins,
		AmountCents:  pkg.PriceCents,
	}, nil
}

// RecordRequest confirms a completed purchase
type RecordRequest struct {
	PackageID     string `json:"package_id" binding:"required"`
	PaymentMethod string `json:"payment_method" binding:"required"`
	TransactionID string `json:"transaction_id" binding:"required"`
}

// Record writes the payment and credits the coins in one transaction. The
// transaction_id column is unique and the insert uses ON CONFLICT DO
// NOTHING, so a replayed confirmation credits nothing and gets the
// previously recorded payment back.
func (s *Service) Record(ctx context.Context, email string, req *RecordRequest) (*models.Payment, bool, error) {
	pkg := models.PackageByID(req.PackageID)
	if pkg == nil {
		return nil, false, ErrUnknownPackage
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var p models.Payment
	err = tx.QueryRow(ctx, `
		INSERT INTO payments (email, amount_usd, coins_purchased, payment_method, transaction_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (transaction_id) DO NOTHING
		RETURNING id, email, amount_usd, coins_purchased, payment_method, transaction_id, paid_at
	`, email, pkg.PriceUSD, pkg.Coins, req.PaymentMethod, req.TransactionID).Scan(
		&p.ID, &p.Email, &p.AmountUSD, &p.CoinsPurchased,
		&p.PaymentMethod, &p.TransactionID, &p.PaidAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Conflict: this transaction ID was already recorded. Return the
			// existing record without touching any balance.
			return s.replay(ctx, req.TransactionID)
		}
		return nil, false, fmt.Errorf("failed to record payment: %w", err)
	}

	if err := ledger.Credit(ctx, tx, email, pkg.Coins); err != nil {
		if errors.Is(err, ledger.ErrUserNotFound) {
			return nil, false, ErrUserNotFound
		}
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	logging.LogPayment(email, req.TransactionID, req.PaymentMethod, pkg.Coins)
	return &p, true, nil
}

// replay fetches the payment previously recorded under the same transaction
// ID. The false return tells the caller no coins moved this time.
func (s *Service) replay(ctx context.Context, transactionID string) (*models.Payment, bool, error) {
	var p models.Payment
	err := s.db.QueryRow(ctx, `
		SELECT id, email, amount_usd, coins_purchased, payment_method, transaction_id, paid_at
		FROM payments WHERE transaction_id = $1
	`, transactionID).Scan(
		&p.ID, &p.Email, &p.AmountUSD, &p.CoinsPurchased,
		&p.PaymentMethod, &p.TransactionID, &p.PaidAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, ErrPaymentNotFound
		}
		return nil, false, fmt.Errorf("failed to get payment: %w", err)
	}
	return &p, false, nil
}

// Packages returns the purchasable coin bundles
func (s *Service) Packages() []models.CoinPackage {
	return models.CoinPackages
}

// History retrieves a buyer's payment history, newest first
func (s *Service) History(ctx context.Context, email string) ([]models.Payment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, email, amount_usd, coins_purchased, payment_method, transaction_id, paid_at
		FROM payments
		WHERE email = $1
		ORDER BY paid_at DESC
	`, email)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		var p models.Payment
		err := rows.Scan(
			&p.ID, &p.Email, &p.AmountUSD, &p.CoinsPurchased,
			&p.PaymentMethod, &p.TransactionID, &p.PaidAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, nil
}
