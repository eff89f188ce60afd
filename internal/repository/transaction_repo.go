package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kudisafe/escrow/internal/domain"
)

type TransactionRepo struct {
	db *sql.DB
}

func NewTransactionRepo(db *sql.DB) *TransactionRepo {
	return &TransactionRepo{db: db}
}

// CreateWithCommission inserts a transaction and its commission row in a
// single store transaction, so a transaction never exists without its
// commission. Returns domain.ErrAlreadyExists if the reference is taken.
func (r *TransactionRepo) CreateWithCommission(t *domain.Transaction, c *domain.Commission) error {
	sqlTx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer sqlTx.Rollback()

	res, err := sqlTx.Exec(
		`INSERT OR IGNORE INTO transactions
		(reference, buyer_id, buyer_phone, seller_phone, amount, fee, status,
		 description, created_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		t.Reference, t.BuyerID, t.BuyerPhone, t.SellerPhone,
		t.Amount.String(), t.Fee.String(), string(t.Status), t.Description,
		t.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	if ra, _ := res.RowsAffected(); ra == 0 {
		return domain.ErrAlreadyExists
	}

	_, err = sqlTx.Exec(
		`INSERT INTO commissions
		(id, transaction_ref, amount, status, wallet, created_at)
		VALUES (?,?,?,?,?,?)`,
		c.ID, c.TransactionRef, c.Amount.String(), string(c.Status), c.Wallet,
		c.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert commission: %w", err)
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *TransactionRepo) GetByReference(ref string) (*domain.Transaction, error) {
	row := r.db.QueryRow("SELECT * FROM transactions WHERE reference = ?", ref)
	t, err := scanTransactionRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return t, err
}

// ListByBuyer returns all of a buyer's transactions, newest first.
func (r *TransactionRepo) ListByBuyer(buyerID string) ([]domain.Transaction, error) {
	rows, err := r.db.Query(
		"SELECT * FROM transactions WHERE buyer_id = ? ORDER BY created_at DESC, reference DESC",
		buyerID,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// List returns transactions newest first. A limit <= 0 returns everything.
func (r *TransactionRepo) List(limit, page int) ([]domain.Transaction, error) {
	q := "SELECT * FROM transactions ORDER BY created_at DESC, reference DESC"
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
	return scanTransactions(rows)
}

func (r *TransactionRepo) Count() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM transactions").Scan(&count)
	return count, err
}

// UpdateStatus transitions a transaction to the given status only if its
// current status is one of the allowed prior states. The conditional update
// is the lost-update guard: concurrent transitions race on the store row,
// and the loser's update matches zero rows.
func (r *TransactionRepo) UpdateStatus(ref string, to domain.TransactionStatus, from ...domain.TransactionStatus) error {
	where, args := statusGuard(ref, from)
	res, err := r.db.Exec("UPDATE transactions SET status = ?"+where,
		append([]any{string(to)}, args...)...)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if ra, _ := res.RowsAffected(); ra == 0 {
		return r.classifyMissedUpdate(ref)
	}
	return nil
}

// MarkFunded verifies the most recent payment submission and moves the
// transaction from pending_payment to funded, atomically. A transaction
// without any payment rows can still be funded; the source system allowed
// this and verification simply has nothing to flag.
func (r *TransactionRepo) MarkFunded(ref string) error {
	sqlTx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer sqlTx.Rollback()

	res, err := sqlTx.Exec(
		"UPDATE transactions SET status = ? WHERE reference = ? AND status = ?",
		string(domain.StatusFunded), ref, string(domain.StatusPendingPayment),
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if ra, _ := res.RowsAffected(); ra == 0 {
		return r.classifyMissedUpdate(ref)
	}

	_, err = sqlTx.Exec(
		`UPDATE payments SET verified = 1 WHERE id = (
			SELECT id FROM payments WHERE transaction_ref = ?
			ORDER BY created_at DESC, rowid DESC LIMIT 1
		)`, ref,
	)
	if err != nil {
		return fmt.Errorf("verify payment: %w", err)
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Release completes a delivered transaction and marks its commission paid,
// atomically.
func (r *TransactionRepo) Release(ref string) error {
	sqlTx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer sqlTx.Rollback()

	res, err := sqlTx.Exec(
		"UPDATE transactions SET status = ? WHERE reference = ? AND status = ?",
		string(domain.StatusCompleted), ref, string(domain.StatusDelivered),
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if ra, _ := res.RowsAffected(); ra == 0 {
		return r.classifyMissedUpdate(ref)
	}

	_, err = sqlTx.Exec(
		"UPDATE commissions SET status = ? WHERE transaction_ref = ?",
		string(domain.CommissionPaid), ref,
	)
	if err != nil {
		return fmt.Errorf("mark commission paid: %w", err)
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// DeleteCascade removes a transaction together with its payments and
// commission. Irreversible and not guarded by status.
func (r *TransactionRepo) DeleteCascade(ref string) error {
	sqlTx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer sqlTx.Rollback()

	if _, err := sqlTx.Exec("DELETE FROM payments WHERE transaction_ref = ?", ref); err != nil {
		return fmt.Errorf("delete payments: %w", err)
	}
	if _, err := sqlTx.Exec("DELETE FROM commissions WHERE transaction_ref = ?", ref); err != nil {
		return fmt.Errorf("delete commission: %w", err)
	}

	res, err := sqlTx.Exec("DELETE FROM transactions WHERE reference = ?", ref)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if ra, _ := res.RowsAffected(); ra == 0 {
		return domain.ErrNotFound
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// --- helpers ---

// classifyMissedUpdate distinguishes a missing transaction from one in a
// state the guard rejected.
func (r *TransactionRepo) classifyMissedUpdate(ref string) error {
	var status string
	err := r.db.QueryRow("SELECT status FROM transactions WHERE reference = ?", ref).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup status: %w", err)
	}
	return fmt.Errorf("%w: status is %q", domain.ErrInvalidTransition, status)
}

func statusGuard(ref string, from []domain.TransactionStatus) (string, []any) {
	args := []any{ref}
	if len(from) == 0 {
		return " WHERE reference = ?", args
	}
	marks := make([]string, len(from))
	for i, s := range from {
		marks[i] = "?"
		args = append(args, string(s))
	}
	return " WHERE reference = ? AND status IN (" + strings.Join(marks, ",") + ")", args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransactionRow(row rowScanner) (*domain.Transaction, error) {
	var t domain.Transaction
	var amount, fee, status, createdAt string

	err := row.Scan(
		&t.Reference, &t.BuyerID, &t.BuyerPhone, &t.SellerPhone,
		&amount, &fee, &status, &t.Description, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	if t.Fee, err = decimal.NewFromString(fee); err != nil {
		return nil, fmt.Errorf("parse fee: %w", err)
	}
	t.Status = domain.TransactionStatus(status)
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	return &t, nil
}

func scanTransactions(rows *sql.Rows) ([]domain.Transaction, error) {
	var txns []domain.Transaction
	for rows.Next() {
		t, err := scanTransactionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		txns = append(txns, *t)
	}
	return txns, rows.Err()
}
