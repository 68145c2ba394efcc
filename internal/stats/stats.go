package stats

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Service aggregates read-only dashboard figures. All numbers come from
// single queries over the authoritative tables; nothing here mutates state.
type Service struct {
	db *pgxpool.Pool
}

// NewService creates a new stats service
func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

// PlatformStats is the admin dashboard summary
type PlatformStats struct {
	TotalWorkers       int64           `json:"total_workers"`
	TotalBuyers        int64           `json:"total_buyers"`
	TotalCoins         int64           `json:"total_coins"`
	TotalLockedCoins   int64           `json:"total_locked_coins"`
	OpenTasks          int64           `json:"open_tasks"`
	PendingSubmissions int64           `json:"pending_submissions"`
	PendingWithdrawals int64           `json:"pending_withdrawals"`
	TotalRevenueUSD    decimal.Decimal `json:"total_revenue_usd"`
	TotalPaidOutUSD    decimal.Decimal `json:"total_paid_out_usd"`
}

// Platform computes the admin summary. Total coins include locked coins so
// the figure holds steady across withdrawal requests.
func (s *Service) Platform(ctx context.Context) (*PlatformStats, error) {
	var st PlatformStats
	err := s.db.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users WHERE role = 'Worker'),
			(SELECT COUNT(*) FROM users WHERE role = 'Buyer'),
			(SELECT COALESCE(SUM(coins), 0) FROM users),
			(SELECT COALESCE(SUM(coins_locked), 0) FROM users),
			(SELECT COUNT(*) FROM tasks WHERE slots > 0),
			(SELECT COUNT(*) FROM submissions WHERE status = 'pending'),
			(SELECT COUNT(*) FROM withdrawals WHERE status = 'pending'),
			(SELECT COALESCE(SUM(amount_usd), 0) FROM payments),
			(SELECT COALESCE(SUM(amount_usd), 0) FROM withdrawals WHERE status = 'approved')
	`).Scan(
		&st.TotalWorkers, &st.TotalBuyers, &st.TotalCoins, &st.TotalLockedCoins,
		&st.OpenTasks, &st.PendingSubmissions, &st.PendingWithdrawals,
		&st.TotalRevenueUSD, &st.TotalPaidOutUSD,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute platform stats: %w", err)
	}
	return &st, nil
}

// WorkerStats is a worker's home page summary
type WorkerStats struct {
	TotalSubmissions    int64           `json:"total_submissions"`
	PendingSubmissions  int64           `json:"pending_submissions"`
	ApprovedSubmissions int64           `json:"approved_submissions"`
	RejectedSubmissions int64           `json:"rejected_submissions"`
	TotalEarnedCoins    int64           `json:"total_earned_coins"`
	WithdrawnUSD        decimal.Decimal `json:"withdrawn_usd"`
}

// Worker computes a worker's activity summary
func (s *Service) Worker(ctx context.Context, email string) (*WorkerStats, error) {
	var st WorkerStats
	err := s.db.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM submissions WHERE worker_email = $1),
			(SELECT COUNT(*) FROM submissions WHERE worker_email = $1 AND status = 'pending'),
			(SELECT COUNT(*) FROM submissions WHERE worker_email = $1 AND status = 'approved'),
			(SELECT COUNT(*) FROM submissions WHERE worker_email = $1 AND status = 'rejected'),
			(SELECT COALESCE(SUM(payable_amount), 0) FROM submissions WHERE worker_email = $1 AND status = 'approved'),
			(SELECT COALESCE(SUM(amount_usd), 0) FROM withdrawals WHERE worker_email = $1 AND status = 'approved')
	`, email).Scan(
		&st.TotalSubmissions, &st.PendingSubmissions, &st.ApprovedSubmissions,
		&st.RejectedSubmissions, &st.TotalEarnedCoins, &st.WithdrawnUSD,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute worker stats: %w", err)
	}
	return &st, nil
}

// BuyerStats is a buyer's home page summary
type BuyerStats struct {
	TotalTasks         int64 `json:"total_tasks"`
	OpenSlots          int64 `json:"open_slots"`
	TotalEscrowedCoins int64 `json:"total_escrowed_coins"`
	PendingSubmissions int64 `json:"pending_submissions"`
	TotalPaidCoins     int64 `json:"total_paid_coins"`
}

// Buyer computes a buyer's activity summary. Escrow counts remaining
// liability only: open slots times the per-slot payout.
func (s *Service) Buyer(ctx context.Context, email string) (*BuyerStats, error) {
	var st BuyerStats
	err := s.db.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM tasks WHERE created_by = $1),
			(SELECT COALESCE(SUM(slots), 0) FROM tasks WHERE created_by = $1),
			(SELECT COALESCE(SUM(slots * payable_amount), 0) FROM tasks WHERE created_by = $1),
			(SELECT COUNT(*) FROM submissions WHERE buyer_email = $1 AND status = 'pending'),
			(SELECT COALESCE(SUM(payable_amount), 0) FROM submissions WHERE buyer_email = $1 AND status = 'approved')
	`, email).Scan(
		&st.TotalTasks, &st.OpenSlots, &st.TotalEscrowedCoins,
		&st.PendingSubmissions, &st.TotalPaidCoins,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute buyer stats: %w", err)
	}
	return &st, nil
}
