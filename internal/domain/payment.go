package domain

import "time"

// Payment records a buyer's claim of having paid into escrow, identified by
// the mobile-money reference they supply. Multiple submissions per
// transaction are allowed; only an admin verification marks one as verified.
type Payment struct {
	ID             string    `json:"id"`
	TransactionRef string    `json:"transaction_ref"`
	MomoReference  string    `json:"momo_reference"`
	Verified       bool      `json:"verified"`
	CreatedAt      time.Time `json:"created_at"`
}
