package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WithdrawalStatus represents the status of a withdrawal request
type WithdrawalStatus string

const (
	WithdrawalStatusPending  WithdrawalStatus = "pending"
	WithdrawalStatusApproved WithdrawalStatus = "approved"
	WithdrawalStatusRejected WithdrawalStatus = "rejected"
)

// Withdrawal represents a worker's request to convert coins to currency.
// The coins are reserved (moved to the worker's locked balance) at request
// time; approval pays them out of the reserve, rejection releases them back.
type Withdrawal struct {
	ID            uuid.UUID        `json:"id" db:"id"`
	WorkerEmail   string           `json:"worker_email" db:"worker_email"`
	WorkerName    string           `json:"worker_name" db:"worker_name"`
	CoinAmount    int64            `json:"withdrawal_coin" db:"coin_amount"`
	AmountUSD     decimal.Decimal  `json:"withdrawal_amount" db:"amount_usd"`
	PaymentSystem string           `json:"payment_system" db:"payment_system"`
	AccountNumber string           `json:"account_number" db:"account_number"`
	Status        WithdrawalStatus `json:"status" db:"status"`
	RequestedAt   time.Time        `json:"withdraw_date" db:"requested_at"`
	DecidedAt     *time.Time       `json:"decided_at,omitempty" db:"decided_at"`
	DecidedBy     *string          `json:"decided_by,omitempty" db:"decided_by"`
}
