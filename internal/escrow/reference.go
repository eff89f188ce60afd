package escrow

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// ReferencePrefix starts every transaction reference.
const ReferencePrefix = "KS1-"

// referenceSpan covers the 6-digit suffix range 100000-999999.
var referenceSpan = big.NewInt(900000)

// NewReference generates a short human-readable transaction reference of the
// form KS1-123456. Randomness alone does not guarantee uniqueness; callers
// must treat the store's primary-key constraint as the authoritative guard
// and retry with a fresh reference on collision.
func NewReference() string {
	n, err := rand.Int(rand.Reader, referenceSpan)
	if err != nil {
		// crypto/rand only fails if the OS entropy source is broken.
		panic(fmt.Sprintf("escrow: reference entropy unavailable: %v", err))
	}
	return fmt.Sprintf("%s%d", ReferencePrefix, n.Int64()+100000)
}
