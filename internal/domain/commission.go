package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CommissionStatus string

const (
	CommissionPending CommissionStatus = "pending"
	CommissionPaid    CommissionStatus = "paid"
)

// Commission is the operator's cut of a transaction. Exactly one exists per
// transaction, created in the same store transaction, with amount equal to
// the transaction fee. It flips to paid when funds are released.
type Commission struct {
	ID             string           `json:"id"`
	TransactionRef string           `json:"transaction_ref"`
	Amount         decimal.Decimal  `json:"amount"`
	Status         CommissionStatus `json:"status"`
	Wallet         string           `json:"wallet"`
	CreatedAt      time.Time        `json:"created_at"`
}
