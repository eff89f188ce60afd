package identity

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/kudisafe/escrow/internal/domain"
	"github.com/kudisafe/escrow/internal/repository"
)

// Service handles registration and login. Passwords are stored as bcrypt
// hashes; administrative access comes from the role column, never from a
// comparison against a built-in credential.
type Service struct {
	userRepo *repository.UserRepo
	tokens   *TokenIssuer
	logger   *slog.Logger
}

func NewService(logger *slog.Logger, userRepo *repository.UserRepo, tokens *TokenIssuer) *Service {
	return &Service{userRepo: userRepo, tokens: tokens, logger: logger}
}

// Register creates a regular user. A second registration for the same phone
// number fails with domain.ErrAlreadyExists.
func (s *Service) Register(phone, password string) (*domain.User, error) {
	return s.register(phone, password, domain.RoleUser)
}

// EnsureAdmin creates the administrator account if it does not exist yet.
// Called at startup from deployment configuration.
func (s *Service) EnsureAdmin(phone, password string) error {
	_, err := s.register(phone, password, domain.RoleAdmin)
	if errors.Is(err, domain.ErrAlreadyExists) {
		return nil
	}
	if err != nil {
		return err
	}
	s.logger.Info("admin account created", "phone_number", phone)
	return nil
}

func (s *Service) register(phone, password string, role domain.Role) (*domain.User, error) {
	if phone == "" {
		return nil, domain.ValidationError{Field: "phone_number", Message: "required"}
	}
	if password == "" {
		return nil, domain.ValidationError{Field: "password", Message: "required"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		PhoneNumber:  phone,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.userRepo.Insert(user); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	s.logger.Info("user registered", "phone_number", phone, "role", role)
	return user, nil
}

// Login checks the password against the stored hash and issues a token
// carrying the user's role. Unknown phone numbers and wrong passwords both
// surface as domain.ErrInvalidCredentials.
func (s *Service) Login(phone, password string) (*domain.User, string, error) {
	user, err := s.userRepo.GetByPhone(phone)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, "", domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", fmt.Errorf("lookup user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", domain.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}

	s.logger.Info("user logged in", "phone_number", phone, "role", user.Role)
	return user, token, nil
}
