package withdrawal

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/workloy/workloy/internal/ledger"
	"github.com/workloy/workloy/internal/logging"
	"github.com/workloy/workloy/internal/models"
)

// Service errors
var (
	ErrBelowMinimum       = errors.New("withdrawal amount below minimum threshold")
	ErrInsufficientFunds  = errors.New("insufficient coin balance for withdrawal")
	ErrWithdrawalNotFound = errors.New("withdrawal not found")
	ErrNotPending         = errors.New("withdrawal is not in pending status")
	ErrUserNotFound       = errors.New("user not found")
)

// Service handles the withdrawal lifecycle. Coins are reserved (moved to the
// worker's locked balance) when the request is placed, so a worker cannot
// spend or double-request the same coins while an admin decides. Approval
// pays out of the reserve; rejection releases it back.
type Service struct {
	db *pgxpool.Pool
}

// NewService creates a new withdrawal service
func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

// CreateRequest represents a worker's withdrawal request
type CreateRequest struct {
	CoinAmount    int64  `json:"withdrawal_coin" binding:"required"`
	PaymentSystem string `json:"payment_system" binding:"required"`
	AccountNumber string `json:"account_number" binding:"required"`
}

// Request reserves the coins and records a pending withdrawal. The reserve
// and the insert share one transaction: a failed reserve leaves no record,
// a failed insert leaves no locked coins.
func (s *Service) Request(ctx context.Context, workerEmail string, req *CreateRequest) (*models.Withdrawal, error) {
	if req.CoinAmount < models.MinWithdrawalCoins {
		return nil, ErrBelowMinimum
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var workerName string
	err = tx.QueryRow(ctx, `
		SELECT name FROM users WHERE email = $1
	`, workerEmail).Scan(&workerName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := ledger.Reserve(ctx, tx, workerEmail, req.CoinAmount); err != nil {
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			return nil, ErrInsufficientFunds
		}
		return nil, err
	}

	var w models.Withdrawal
	err = tx.QueryRow(ctx, `
		INSERT INTO withdrawals (worker_email, worker_name, coin_amount, amount_usd,
		                         payment_system, account_number)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, worker_email, worker_name, coin_amount, amount_usd,
		          payment_system, account_number, status, requested_at,
		          decided_at, decided_by
	`, workerEmail, workerName, req.CoinAmount, models.CoinsToUSD(req.CoinAmount),
		req.PaymentSystem, req.AccountNumber).Scan(
		&w.ID, &w.WorkerEmail, &w.WorkerName, &w.CoinAmount, &w.AmountUSD,
		&w.PaymentSystem, &w.AccountNumber, &w.Status, &w.RequestedAt,
		&w.DecidedAt, &w.DecidedBy,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create withdrawal: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	logging.LogWithdrawal(workerEmail, string(models.WithdrawalStatusPending), req.CoinAmount)
	return &w, nil
}

// Approve pays a pending withdrawal out of the worker's reserve. The status
// flip is conditional on pending, so a second approve matches no rows and
// repeats no side effects.
func (s *Service) Approve(ctx context.Context, adminEmail string, withdrawalID uuid.UUID) error {
	return s.decide(ctx, adminEmail, withdrawalID, models.WithdrawalStatusApproved)
}

// Reject releases the reserved coins back to the worker's spendable balance.
func (s *Service) Reject(ctx context.Context, adminEmail string, withdrawalID uuid.UUID) error {
	return s.decide(ctx, adminEmail, withdrawalID, models.WithdrawalStatusRejected)
}

func (s *Service) decide(ctx context.Context, adminEmail string, withdrawalID uuid.UUID, status models.WithdrawalStatus) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var workerEmail string
	var coinAmount int64
	err = tx.QueryRow(ctx, `
		UPDATE withdrawals
		SET status = $1, decided_at = NOW(), decided_by = $2
		WHERE id = $3 AND status = $4
		RETURNING worker_email, coin_amount
	`, status, adminEmail, withdrawalID, models.WithdrawalStatusPending).Scan(
		&workerEmail, &coinAmount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s.classifyDecisionMiss(ctx, withdrawalID)
		}
		return fmt.Errorf("failed to update withdrawal: %w", err)
	}

	switch status {
	case models.WithdrawalStatusApproved:
		err = ledger.DebitReserved(ctx, tx, workerEmail, coinAmount)
	case models.WithdrawalStatusRejected:
		err = ledger.Release(ctx, tx, workerEmail, coinAmount)
	}
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	logging.LogWithdrawal(workerEmail, string(status), coinAmount)
	return nil
}

// classifyDecisionMiss distinguishes a missing withdrawal from a terminal one
func (s *Service) classifyDecisionMiss(ctx context.Context, withdrawalID uuid.UUID) error {
	var exists bool
	if err := s.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM withdrawals WHERE id = $1)
	`, withdrawalID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check withdrawal existence: %w", err)
	}
	if !exists {
		return ErrWithdrawalNotFound
	}
	return ErrNotPending
}

// GetByID retrieves a withdrawal by ID
func (s *Service) GetByID(ctx context.Context, withdrawalID uuid.UUID) (*models.Withdrawal, error) {
	var w models.Withdrawal
	err := s.db.QueryRow(ctx, `
		SELECT id, worker_email, worker_name, coin_amount, amount_usd,
		       payment_system, account_number, status, requested_at,
		       decided_at, decided_by
		FROM withdrawals WHERE id = $1
	`, withdrawalID).Scan(
		&w.ID, &w.WorkerEmail, &w.WorkerName, &w.CoinAmount, &w.AmountUSD,
		&w.PaymentSystem, &w.AccountNumber, &w.Status, &w.RequestedAt,
		&w.DecidedAt, &w.DecidedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, fmt.Errorf("failed to get withdrawal: %w", err)
	}
	return &w, nil
}

// ListPending retrieves all pending withdrawals, oldest first (admin queue)
func (s *Service) ListPending(ctx context.Context) ([]models.Withdrawal, error) {
	return s.list(ctx, `
		SELECT id, worker_email, worker_name, coin_amount, amount_usd,
		       payment_system, account_number, status, requested_at,
		       decided_at, decided_by
		FROM withdrawals
		WHERE status = 'pending'
		ORDER BY requested_at ASC
	`)
}

// ListByWorker retrieves a worker's withdrawal history, newest first
func (s *Service) ListByWorker(ctx context.Context, workerEmail string) ([]models.Withdrawal, error) {
	return s.list(ctx, `
		SELECT id, worker_email, worker_name, coin_amount, amount_usd,
		       payment_system, account_number, status, requested_at,
		       decided_at, decided_by
		FROM withdrawals
		WHERE worker_email = $1
		ORDER BY requested_at DESC
	`, workerEmail)
}

// ApprovedTotalUSD sums the paid-out dollar amounts for a worker
func (s *Service) ApprovedTotalUSD(ctx context.Context, workerEmail string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount_usd), 0)
		FROM withdrawals
		WHERE worker_email = $1 AND status = 'approved'
	`, workerEmail).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum withdrawals: %w", err)
	}
	return total, nil
}

func (s *Service) list(ctx context.Context, query string, args ...any) ([]models.Withdrawal, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query withdrawals: %w", err)
	}
	defer rows.Close()

	var withdrawals []models.Withdrawal
	for rows.Next() {
		var w models.Withdrawal
		err := rows.Scan(
			&w.ID, &w.WorkerEmail, &w.WorkerName, &w.CoinAmount, &w.AmountUSD,
			&w.PaymentSystem, &w.AccountNumber, &w.Status, &w.RequestedAt,
			&w.DecidedAt, &w.DecidedBy,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan withdrawal: %w", err)
		}
		withdrawals = append(withdrawals, w)
	}
	return withdrawals, nil
}
