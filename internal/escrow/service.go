package escrow

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kudisafe/escrow/internal/domain"
	"github.com/kudisafe/escrow/internal/repository"
)

// createAttempts bounds reference-collision retries on CreateTransaction.
const createAttempts = 5

// Service is the transaction lifecycle manager. It owns the status state
// machine, fee computation, and the cross-entity consistency between a
// transaction, its payments, and its commission.
type Service struct {
	txnRepo        *repository.TransactionRepo
	paymentRepo    *repository.PaymentRepo
	commissionRepo *repository.CommissionRepo
	userRepo       *repository.UserRepo
	wallet         string
	logger         *slog.Logger
}

// NewService creates a lifecycle manager. wallet is the operator payout
// target recorded on every commission.
func NewService(
	logger *slog.Logger,
	txnRepo *repository.TransactionRepo,
	paymentRepo *repository.PaymentRepo,
	commissionRepo *repository.CommissionRepo,
	userRepo *repository.UserRepo,
	wallet string,
) *Service {
	return &Service{
		txnRepo:        txnRepo,
		paymentRepo:    paymentRepo,
		commissionRepo: commissionRepo,
		userRepo:       userRepo,
		wallet:         wallet,
		logger:         logger,
	}
}

// CreateTransactionInput carries the buyer's request to open an escrow deal.
type CreateTransactionInput struct {
	BuyerID     string
	SellerPhone string
	Amount      decimal.Decimal
	Description string
}

// CreateTransaction opens a new escrow transaction in pending_payment and
// atomically creates its commission (amount = fee, status pending). The
// buyer's phone number is snapshotted onto the transaction; a failed lookup
// records "Unknown" rather than failing the creation.
func (s *Service) CreateTransaction(in CreateTransactionInput) (*domain.Transaction, error) {
	if in.BuyerID == "" {
		return nil, domain.ValidationError{Field: "buyer_id", Message: "required"}
	}
	if in.SellerPhone == "" {
		return nil, domain.ValidationError{Field: "seller_phone", Message: "required"}
	}
	if !in.Amount.IsPositive() {
		return nil, domain.ValidationError{Field: "amount", Message: "must be greater than zero"}
	}

	buyerPhone := "Unknown"
	if buyer, err := s.userRepo.GetByID(in.BuyerID); err == nil {
		buyerPhone = buyer.PhoneNumber
	} else {
		s.logger.Warn("buyer lookup failed, recording unknown phone",
			"buyer_id", in.BuyerID, "error", err)
	}

	now := time.Now().UTC()
	fee := ComputeFee(in.Amount)

	for attempt := 1; attempt <= createAttempts; attempt++ {
		txn := &domain.Transaction{
			Reference:   NewReference(),
			BuyerID:     in.BuyerID,
			BuyerPhone:  buyerPhone,
			SellerPhone: in.SellerPhone,
			Amount:      in.Amount,
			Fee:         fee,
			Status:      domain.StatusPendingPayment,
			Description: in.Description,
			CreatedAt:   now,
		}
		commission := &domain.Commission{
			ID:             uuid.NewString(),
			TransactionRef: txn.Reference,
			Amount:         fee,
			Status:         domain.CommissionPending,
			Wallet:         s.wallet,
			CreatedAt:      now,
		}

		err := s.txnRepo.CreateWithCommission(txn, commission)
		if err == nil {
			s.logger.Info("transaction created",
				"reference", txn.Reference, "buyer_id", txn.BuyerID,
				"amount", txn.Amount.String(), "fee", txn.Fee.String())
			return txn, nil
		}
		if err == domain.ErrAlreadyExists {
			s.logger.Warn("reference collision, retrying",
				"reference", txn.Reference, "attempt", attempt)
			continue
		}
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	return nil, fmt.Errorf("create transaction: no free reference after %d attempts", createAttempts)
}

// SubmitPayment records a buyer's payment claim against a transaction.
// Submissions are unverified until an admin confirms them, and repeat
// submissions are allowed.
func (s *Service) SubmitPayment(ref, momoReference string) (*domain.Payment, error) {
	if ref == "" {
		return nil, domain.ValidationError{Field: "transaction_id", Message: "required"}
	}
	if momoReference == "" {
		return nil, domain.ValidationError{Field: "momo_reference", Message: "required"}
	}

	if _, err := s.txnRepo.GetByReference(ref); err != nil {
		return nil, fmt.Errorf("lookup transaction: %w", err)
	}

	payment := &domain.Payment{
		ID:             uuid.NewString(),
		TransactionRef: ref,
		MomoReference:  momoReference,
		Verified:       false,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.paymentRepo.Insert(payment); err != nil {
		return nil, fmt.Errorf("submit payment: %w", err)
	}

	s.logger.Info("payment submitted", "reference", ref, "momo_reference", momoReference)
	return payment, nil
}

// ConfirmDelivery moves a funded transaction to delivered. Repeating the
// call on an already delivered transaction is a no-op.
func (s *Service) ConfirmDelivery(ref string) error {
	err := s.txnRepo.UpdateStatus(ref, domain.StatusDelivered,
		domain.StatusFunded, domain.StatusDelivered)
	if err != nil {
		return fmt.Errorf("confirm delivery: %w", err)
	}
	s.logger.Info("delivery confirmed", "reference", ref)
	return nil
}

// OpenDispute marks a transaction disputed. Allowed from any non-terminal
// state; disputing an already disputed transaction is a no-op.
func (s *Service) OpenDispute(ref string) error {
	err := s.txnRepo.UpdateStatus(ref, domain.StatusDisputed,
		domain.StatusPendingPayment, domain.StatusFunded,
		domain.StatusDelivered, domain.StatusDisputed)
	if err != nil {
		return fmt.Errorf("open dispute: %w", err)
	}
	s.logger.Info("dispute opened", "reference", ref)
	return nil
}

// VerifyPayment is the admin action that confirms escrow funding: the most
// recent payment submission is marked verified and the transaction moves
// from pending_payment to funded, as one atomic store transaction.
func (s *Service) VerifyPayment(ref string) error {
	if err := s.txnRepo.MarkFunded(ref); err != nil {
		return fmt.Errorf("verify payment: %w", err)
	}
	s.logger.Info("payment verified", "reference", ref)
	return nil
}

// ReleaseFunds completes a delivered transaction and marks its commission
// paid, as one atomic store transaction.
func (s *Service) ReleaseFunds(ref string) error {
	if err := s.txnRepo.Release(ref); err != nil {
		return fmt.Errorf("release funds: %w", err)
	}
	s.logger.Info("funds released", "reference", ref)
	return nil
}

// Refund cancels a transaction. Permitted from any state except completed or
// cancelled; a dispute is resolved by refunding. The commission row is left
// untouched: the fee is not reversed.
func (s *Service) Refund(ref string) error {
	err := s.txnRepo.UpdateStatus(ref, domain.StatusCancelled,
		domain.StatusPendingPayment, domain.StatusFunded,
		domain.StatusDelivered, domain.StatusDisputed)
	if err != nil {
		return fmt.Errorf("refund: %w", err)
	}
	s.logger.Info("transaction refunded", "reference", ref)
	return nil
}

// DeleteTransaction removes a transaction and everything hanging off it:
// payments and commission included. No status guard; irreversible.
func (s *Service) DeleteTransaction(ref string) error {
	if err := s.txnRepo.DeleteCascade(ref); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.logger.Info("transaction deleted", "reference", ref)
	return nil
}

// ListUserTransactions returns a buyer's transactions, newest first.
func (s *Service) ListUserTransactions(buyerID string) ([]domain.Transaction, error) {
	txns, err := s.txnRepo.ListByBuyer(buyerID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txns, nil
}

// Snapshot is the admin view over the full ledger.
type Snapshot struct {
	Transactions []domain.Transaction `json:"transactions"`
	Payments     []domain.Payment     `json:"payments"`
	Commissions  []domain.Commission  `json:"commissions"`
	PendingFees  decimal.Decimal      `json:"pending_fees"`
}

// AdminSnapshot returns the transactions, payments, and commissions
// collections, newest first. A limit <= 0 returns everything; the working
// set is assumed small enough for that to be acceptable.
func (s *Service) AdminSnapshot(limit, page int) (*Snapshot, error) {
	txns, err := s.txnRepo.List(limit, page)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	payments, err := s.paymentRepo.List(limit, page)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	commissions, err := s.commissionRepo.List(limit, page)
	if err != nil {
		return nil, fmt.Errorf("list commissions: %w", err)
	}
	pending, err := s.commissionRepo.PendingTotal()
	if err != nil {
		return nil, fmt.Errorf("sum pending commissions: %w", err)
	}

	return &Snapshot{
		Transactions: txns,
		Payments:     payments,
		Commissions:  commissions,
		PendingFees:  pending,
	}, nil
}
