// Command seed populates a database with deterministic demo data: a handful
// of buyers, an administrator, and transactions spread across the lifecycle
// states. Useful for local development and dashboard demos.
package main

import (
	"fmt"
	"log/slog"
	"math/rand"
	"os"

	"github.com/shopspring/decimal"

	"github.com/kudisafe/escrow/internal/domain"
	"github.com/kudisafe/escrow/internal/escrow"
	"github.com/kudisafe/escrow/internal/identity"
	"github.com/kudisafe/escrow/internal/repository"
)

func main() {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "kudisafe.db"
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	db, err := repository.InitDB(dbPath)
	if err != nil {
		logger.Error("init db", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	userRepo := repository.NewUserRepo(db)
	txnRepo := repository.NewTransactionRepo(db)
	paymentRepo := repository.NewPaymentRepo(db)
	commissionRepo := repository.NewCommissionRepo(db)

	tokens := identity.NewTokenIssuer("seed-only", 0)
	identitySvc := identity.NewService(logger, userRepo, tokens)
	escrowSvc := escrow.NewService(logger, txnRepo, paymentRepo, commissionRepo,
		userRepo, "KUDISAFE-OPERATIONS")

	if count, err := txnRepo.Count(); err != nil {
		logger.Error("count transactions", "error", err)
		os.Exit(1)
	} else if count > 0 {
		logger.Info("database already seeded", "transactions", count)
		return
	}

	if err := identitySvc.EnsureAdmin("0200000001", "change-me"); err != nil {
		logger.Error("seed admin", "error", err)
		os.Exit(1)
	}

	rng := rand.New(rand.NewSource(42))

	buyers := make([]*domain.User, 0, 5)
	for i := 0; i < 5; i++ {
		phone := fmt.Sprintf("02411122%02d", i)
		user, err := identitySvc.Register(phone, "demo-password")
		if err != nil {
			logger.Error("seed buyer", "phone", phone, "error", err)
			os.Exit(1)
		}
		buyers = append(buyers, user)
	}

	descriptions := []string{
		"Samsung Galaxy A15", "Used laptop", "Sneakers size 43",
		"Hair dryer", "Office chair", "PlayStation controller",
	}

	// Drive each transaction a random distance through the lifecycle.
	for i := 0; i < 30; i++ {
		buyer := buyers[rng.Intn(len(buyers))]
		amount := decimal.NewFromInt(int64(rng.Intn(4900)+100)).
			Add(decimal.NewFromInt(int64(rng.Intn(100))).Div(decimal.NewFromInt(100)))

		txn, err := escrowSvc.CreateTransaction(escrow.CreateTransactionInput{
			BuyerID:     buyer.ID,
			SellerPhone: fmt.Sprintf("0551000%03d", rng.Intn(1000)),
			Amount:      amount,
			Description: descriptions[rng.Intn(len(descriptions))],
		})
		if err != nil {
			logger.Error("seed transaction", "error", err)
			os.Exit(1)
		}

		stage := rng.Intn(6)
		if stage >= 1 {
			momo := fmt.Sprintf("MP%08d", rng.Intn(100000000))
			if _, err := escrowSvc.SubmitPayment(txn.Reference, momo); err != nil {
				logger.Error("seed payment", "error", err)
				os.Exit(1)
			}
		}
		if stage >= 2 {
			must(logger, escrowSvc.VerifyPayment(txn.Reference))
		}
		if stage >= 3 {
			must(logger, escrowSvc.ConfirmDelivery(txn.Reference))
		}
		if stage == 4 {
			must(logger, escrowSvc.ReleaseFunds(txn.Reference))
		}
		if stage == 5 {
			must(logger, escrowSvc.OpenDispute(txn.Reference))
		}
	}

	count, _ := txnRepo.Count()
	logger.Info("seed complete", "transactions", count)
}

func must(logger *slog.Logger, err error) {
	if err != nil {
		logger.Error("seed lifecycle step", "error", err)
		os.Exit(1)
	}
}
