package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	StatusPendingPayment TransactionStatus = "pending_payment"
	StatusFunded         TransactionStatus = "funded"
	StatusDelivered      TransactionStatus = "delivered"
	StatusCompleted      TransactionStatus = "completed"
	StatusDisputed       TransactionStatus = "disputed"
	StatusCancelled      TransactionStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed out of s.
// Disputed transactions can still be refunded.
func (s TransactionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Transaction is the aggregate root of an escrow deal. Payments and the
// commission reference it by its human-readable reference.
type Transaction struct {
	Reference   string            `json:"reference"`
	BuyerID     string            `json:"buyer_id"`
	BuyerPhone  string            `json:"buyer_phone"`
	SellerPhone string            `json:"seller_phone"`
	Amount      decimal.Decimal   `json:"amount"`
	Fee         decimal.Decimal   `json:"fee"`
	Status      TransactionStatus `json:"status"`
	Description string            `json:"description"`
	CreatedAt   time.Time         `json:"created_at"`
}
