package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/kudisafe/escrow/internal/api"
	"github.com/kudisafe/escrow/internal/config"
	"github.com/kudisafe/escrow/internal/escrow"
	"github.com/kudisafe/escrow/internal/identity"
	"github.com/kudisafe/escrow/internal/logging"
	"github.com/kudisafe/escrow/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	logger.Info("initializing database", "path", cfg.DB.Path)
	db, err := repository.InitDB(cfg.DB.Path)
	if err != nil {
		logger.Error("init db", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Create repositories.
	userRepo := repository.NewUserRepo(db)
	txnRepo := repository.NewTransactionRepo(db)
	paymentRepo := repository.NewPaymentRepo(db)
	commissionRepo := repository.NewCommissionRepo(db)

	// Create services.
	tokens := identity.NewTokenIssuer(cfg.Auth.Secret, cfg.Auth.TokenTTL)
	identitySvc := identity.NewService(logger, userRepo, tokens)
	escrowSvc := escrow.NewService(logger, txnRepo, paymentRepo, commissionRepo,
		userRepo, cfg.Escrow.CommissionWallet)

	// Seed the administrator account from deployment configuration.
	if cfg.Auth.AdminPhone != "" && cfg.Auth.AdminPassword != "" {
		if err := identitySvc.EnsureAdmin(cfg.Auth.AdminPhone, cfg.Auth.AdminPassword); err != nil {
			logger.Error("seed admin", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("no admin account configured; admin routes will be unreachable")
	}

	router := api.NewRouter(logger, db, escrowSvc, identitySvc, tokens,
		cfg.HTTP.AllowedOrigins())

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("kudisafe escrow backend listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Error("server failed", "error", err)
		os.Exit(1)
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown", "error", err)
		os.Exit(1)
	}
}
