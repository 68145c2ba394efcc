package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/workloy/workloy/internal/logging"
	"github.com/workloy/workloy/internal/monitoring"
)

// Service errors
var (
	ErrInsufficientFunds = errors.New("insufficient coin balance")
	ErrUserNotFound      = errors.New("user not found")
	ErrInvalidAmount     = errors.New("amount must be positive")
)

// Querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx. Lifecycle
// services pass their own transaction so a ledger movement commits or rolls
// back together with the record change that caused it.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Service is the sole authority over user coin balances. Every mutation is a
// single conditional UPDATE; RowsAffected is the success signal. No caller may
// read a balance, decide, and write in separate round trips.
type Service struct {
	db *pgxpool.Pool
}

// NewService creates a new ledger service
func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

// Balance is a point-in-time snapshot of a user's coin position.
type Balance struct {
	Coins       int64 `json:"coins"`
	CoinsLocked int64 `json:"coins_locked"`
}

// Total returns spendable plus reserved coins.
func (b Balance) Total() int64 {
	return b.Coins + b.CoinsLocked
}

// Credit increases a user's spendable balance.
func Credit(ctx context.Context, q Querier, email string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	tag, err := q.Exec(ctx, `
		UPDATE users SET coins = coins + $1 WHERE email = $2
	`, amount, email)
	if err != nil {
		return fmt.Errorf("failed to credit user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	observe("credit", email, amount, nil)
	return nil
}

// Debit decreases a user's spendable balance. The balance check and the
// decrement are one statement, so two debits racing for the last coins
// cannot both succeed.
func Debit(ctx context.Context, q Querier, email string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	tag, err := q.Exec(ctx, `
		UPDATE users SET coins = coins - $1
		WHERE email = $2 AND coins >= $1
	`, amount, email)
	if err != nil {
		return fmt.Errorf("failed to debit user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		err := classifyMiss(ctx, q, email)
		observe("debit", email, amount, err)
		return err
	}
	observe("debit", email, amount, nil)
	return nil
}

// Reserve moves coins from the spendable balance into the locked balance,
// where pending withdrawal requests hold them.
func Reserve(ctx context.Context, q Querier, email string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	tag, err := q.Exec(ctx, `
		UPDATE users SET coins = coins - $1, coins_locked = coins_locked + $1
		WHERE email = $2 AND coins >= $1
	`, amount, email)
	if err != nil {
		return fmt.Errorf("failed to reserve coins: %w", err)
	}
	if tag.RowsAffected() == 0 {
		err := classifyMiss(ctx, q, email)
		observe("reserve", email, amount, err)
		return err
	}
	observe("reserve", email, amount, nil)
	return nil
}

// Release returns previously reserved coins to the spendable balance.
func Release(ctx context.Context, q Querier, email string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	tag, err := q.Exec(ctx, `
		UPDATE users SET coins = coins + $1, coins_locked = coins_locked - $1
		WHERE email = $2 AND coins_locked >= $1
	`, amount, email)
	if err != nil {
		return fmt.Errorf("failed to release coins: %w", err)
	}
	if tag.RowsAffected() == 0 {
		err := classifyMiss(ctx, q, email)
		observe("release", email, amount, err)
		return err
	}
	observe("release", email, amount, nil)
	return nil
}

// DebitReserved removes coins from the locked balance. Used when an approved
// withdrawal pays out: the coins left the spendable balance at request time.
func DebitReserved(ctx context.Context, q Querier, email string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	tag, err := q.Exec(ctx, `
		UPDATE users SET coins_locked = coins_locked - $1
		WHERE email = $2 AND coins_locked >= $1
	`, amount, email)
	if err != nil {
		return fmt.Errorf("failed to debit reserved coins: %w", err)
	}
	if tag.RowsAffected() == 0 {
		err := classifyMiss(ctx, q, email)
		observe("debit_reserved", email, amount, err)
		return err
	}
	observe("debit_reserved", email, amount, nil)
	return nil
}

// GetBalance reads a user's coin position.
func GetBalance(ctx context.Context, q Querier, email string) (*Balance, error) {
	var b Balance
	err := q.QueryRow(ctx, `
		SELECT coins, coins_locked FROM users WHERE email = $1
	`, email).Scan(&b.Coins, &b.CoinsLocked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return &b, nil
}

// observe logs a ledger movement and feeds the coin metrics.
func observe(op, email string, amount int64, err error) {
	logging.LogLedgerOp(op, email, amount, err)
	if err == nil {
		monitoring.RecordCoinsMoved(op, amount)
		return
	}
	reason := "insufficient_funds"
	if errors.Is(err, ErrUserNotFound) {
		reason = "user_not_found"
	}
	monitoring.RecordLedgerError(op, reason)
}

// classifyMiss distinguishes a missing user from an insufficient balance after
// a conditional update matched no rows. Diagnostic only; the outcome of the
// mutation was already decided by the single conditional statement.
func classifyMiss(ctx context.Context, q Querier, email string) error {
	var exists bool
	if err := q.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)
	`, email).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check user existence: %w", err)
	}
	if !exists {
		return ErrUserNotFound
	}
	return ErrInsufficientFunds
}

// Credit increases a user's spendable balance using the service pool.
func (s *Service) Credit(ctx context.Context, email string, amount int64) error {
	return Credit(ctx, s.db, email, amount)
}

// Debit decreases a user's spendable balance using the service pool.
func (s *Service) Debit(ctx context.Context, email string, amount int64) error {
	return Debit(ctx, s.db, email, amount)
}

// Reserve locks coins for a pending withdrawal using the service pool.
func (s *Service) Reserve(ctx context.Context, email string, amount int64) error {
	return Reserve(ctx, s.db, email, amount)
}

// Release unlocks previously reserved coins using the service pool.
func (s *Service) Release(ctx context.Context, email string, amount int64) error {
	return Release(ctx, s.db, email, amount)
}

// DebitReserved pays out previously reserved coins using the service pool.
func (s *Service) DebitReserved(ctx context.Context, email string, amount int64) error {
	return DebitReserved(ctx, s.db, email, amount)
}

// Balance reads a user's coin position using the service pool.
func (s *Service) Balance(ctx context.Context, email string) (*Balance, error) {
	return GetBalance(ctx, s.db, email)
}

// Transfer moves coins between two users as a unit: the debit and the credit
// commit together or not at all.
func (s *Service) Transfer(ctx context.Context, fromEmail, toEmail string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := Debit(ctx, tx, fromEmail, amount); err != nil {
		return err
	}
	if err := Credit(ctx, tx, toEmail, amount); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
