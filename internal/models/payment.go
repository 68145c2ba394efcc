package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment represents a confirmed coin purchase. TransactionID is the payment
// gateway's identifier and is unique: replaying a confirmation with the same
// ID credits nothing. Records are immutable once written.
type Payment struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	Email          string          `json:"email" db:"email"`
	AmountUSD      decimal.Decimal `json:"amount" db:"amount_usd"`
	CoinsPurchased int64           `json:"coins_purchased" db:"coins_purchased"`
	PaymentMethod  string          `json:"paymentMethod" db:"payment_method"`
	TransactionID  string          `json:"transactionId" db:"transaction_id"`
	PaidAt         time.Time       `json:"paid_at" db:"paid_at"`
}
