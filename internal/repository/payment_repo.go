package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/kudisafe/escrow/internal/domain"
)

type PaymentRepo struct {
	db *sql.DB
}

func NewPaymentRepo(db *sql.DB) *PaymentRepo {
	return &PaymentRepo{db: db}
}

// Insert records a payment submission. Submissions are append-only; repeat
// submissions for the same transaction are allowed.
func (r *PaymentRepo) Insert(p *domain.Payment) error {
	_, err := r.db.Exec(
		`INSERT INTO payments
		(id, transaction_ref, momo_reference, verified, created_at)
		VALUES (?,?,?,?,?)`,
		p.ID, p.TransactionRef, p.MomoReference, boolToInt(p.Verified),
		p.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// GetByTransaction returns a transaction's payment submissions, newest first.
func (r *PaymentRepo) GetByTransaction(ref string) ([]domain.Payment, error) {
	rows, err := r.db.Query(
		"SELECT * FROM payments WHERE transaction_ref = ? ORDER BY created_at DESC, rowid DESC",
		ref,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	return scanPayments(rows)
}

// List returns payments newest first. A limit <= 0 returns everything.
func (r *PaymentRepo) List(limit, page int) ([]domain.Payment, error) {
	q := "SELECT * FROM payments ORDER BY created_at DESC, rowid DESC"
	var args []any
	if limit > 0 {
		if page <= 0 {
			page = 1
		}
		q += " LIMIT ? OFFSET ?"
		args = append(args, limit, (page-1)*limit)
	}

	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	return scanPayments(rows)
}

// --- helpers ---

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func scanPayments(rows *sql.Rows) ([]domain.Payment, error) {
	var payments []domain.Payment
	for rows.Next() {
		var p domain.Payment
		var verified int
		var createdAt string

		err := rows.Scan(&p.ID, &p.TransactionRef, &p.MomoReference, &verified, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}

		p.Verified = verified != 0
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
