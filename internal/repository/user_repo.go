package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kudisafe/escrow/internal/domain"
)

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

// Insert creates a user. The UNIQUE constraint on phone_number is the
// authoritative duplicate guard; a second registration for the same phone
// returns domain.ErrAlreadyExists.
func (r *UserRepo) Insert(u *domain.User) error {
	res, err := r.db.Exec(
		`INSERT OR IGNORE INTO users
		(id, phone_number, password_hash, role, created_at)
		VALUES (?,?,?,?,?)`,
		u.ID, u.PhoneNumber, u.PasswordHash, string(u.Role),
		u.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	if ra, _ := res.RowsAffected(); ra == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

func (r *UserRepo) GetByID(id string) (*domain.User, error) {
	row := r.db.QueryRow("SELECT * FROM users WHERE id = ?", id)
	return scanUserRow(row)
}

func (r *UserRepo) GetByPhone(phone string) (*domain.User, error) {
	row := r.db.QueryRow("SELECT * FROM users WHERE phone_number = ?", phone)
	return scanUserRow(row)
}

// --- helpers ---

func scanUserRow(row rowScanner) (*domain.User, error) {
	var u domain.User
	var role, createdAt string

	err := row.Scan(&u.ID, &u.PhoneNumber, &u.PasswordHash, &role, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	u.Role = domain.Role(role)
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	return &u, nil
}
