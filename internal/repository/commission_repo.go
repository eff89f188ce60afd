package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kudisafe/escrow/internal/domain"
)

type CommissionRepo struct {
	db *sql.DB
}

func NewCommissionRepo(db *sql.DB) *CommissionRepo {
	return &CommissionRepo{db: db}
}

// GetByTransaction returns the commission paired with a transaction.
func (r *CommissionRepo) GetByTransaction(ref string) (*domain.Commission, error) {
	row := r.db.QueryRow("SELECT * FROM commissions WHERE transaction_ref = ?", ref)
	c, err := scanCommissionRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return c, err
}

// List returns commissions newest first. A limit <= 0 returns everything.
func (r *CommissionRepo) List(limit, page int) ([]domain.Commission, error) {
	q := "SELECT * FROM commissions ORDER BY created_at DESC, rowid DESC"
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

	var commissions []domain.Commission
	for rows.Next() {
		c, err := scanCommissionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		commissions = append(commissions, *c)
	}
	return commissions, rows.Err()
}

// PendingTotal sums the amounts of commissions not yet paid out.
func (r *CommissionRepo) PendingTotal() (decimal.Decimal, error) {
	rows, err := r.db.Query(
		"SELECT amount FROM commissions WHERE status = ?",
		string(domain.CommissionPending),
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, fmt.Errorf("scan: %w", err)
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return decimal.Zero, fmt.Errorf("parse amount: %w", err)
		}
		total = total.Add(d)
	}
	return total, rows.Err()
}

// --- helpers ---

func scanCommissionRow(row rowScanner) (*domain.Commission, error) {
	var c domain.Commission
	var amount, status, createdAt string

	err := row.Scan(&c.ID, &c.TransactionRef, &amount, &status, &c.Wallet, &createdAt)
	if err != nil {
		return nil, err
	}

	if c.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	c.Status = domain.CommissionStatus(status)
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	return &c, nil
}
