package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/kudisafe/escrow/internal/domain"
	"github.com/kudisafe/escrow/internal/escrow"
	"github.com/kudisafe/escrow/internal/identity"
)

// Handlers groups all HTTP handler methods and their dependencies.
type Handlers struct {
	escrowSvc   *escrow.Service
	identitySvc *identity.Service
	db          *sql.DB
	logger      *slog.Logger
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

// writeServiceError maps the domain error taxonomy onto HTTP statuses.
// Anything unrecognized is a storage or runtime fault and becomes a generic
// 500; the underlying error is logged, not exposed.
func (h *Handlers) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusBadRequest, "already exists")
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.ValidationError{Field: "body", Message: "invalid JSON"}
	}
	return nil
}

// --- identity ---

type credentialsRequest struct {
	PhoneNumber string `json:"phone_number"`
	Password    string `json:"password"`
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeServiceError(w, err)
		return
	}

	if _, err := h.identitySvc.Register(req.PhoneNumber, req.Password); err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeServiceError(w, err)
		return
	}

	user, token, err := h.identitySvc.Login(req.PhoneNumber, req.Password)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user": map[string]any{
			"id":           user.ID,
			"phone_number": user.PhoneNumber,
			"role":         user.Role,
		},
		"token": token,
	})
}

// --- transactions ---

type createTransactionRequest struct {
	BuyerID     string          `json:"buyer_id"`
	SellerPhone string          `json:"seller_phone"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

func (h *Handlers) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeServiceError(w, err)
		return
	}

	txn, err := h.escrowSvc.CreateTransaction(escrow.CreateTransactionInput{
		BuyerID:     req.BuyerID,
		SellerPhone: req.SellerPhone,
		Amount:      req.Amount,
		Description: req.Description,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "transaction": txn})
}

func (h *Handlers) ListUserTransactions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	txns, err := h.escrowSvc.ListUserTransactions(userID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if txns == nil {
		txns = []domain.Transaction{}
	}

	writeJSON(w, http.StatusOK, txns)
}

func (h *Handlers) ConfirmDelivery(w http.ResponseWriter, r *http.Request) {
	if err := h.escrowSvc.ConfirmDelivery(chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handlers) OpenDispute(w http.ResponseWriter, r *http.Request) {
	if err := h.escrowSvc.OpenDispute(chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// --- payments ---

type submitPaymentRequest struct {
	TransactionID string `json:"transaction_id"`
	MomoReference string `json:"momo_reference"`
}

func (h *Handlers) SubmitPayment(w http.ResponseWriter, r *http.Request) {
	var req submitPaymentRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeServiceError(w, err)
		return
	}

	if _, err := h.escrowSvc.SubmitPayment(req.TransactionID, req.MomoReference); err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// --- admin ---

type adminActionRequest struct {
	TransactionID string `json:"transaction_id"`
}

func (h *Handlers) AdminData(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	snapshot, err := h.escrowSvc.AdminSnapshot(
		parseIntDefault(q.Get("limit"), 0),
		parseIntDefault(q.Get("page"), 1),
	)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

func (h *Handlers) AdminVerify(w http.ResponseWriter, r *http.Request) {
	h.adminAction(w, r, h.escrowSvc.VerifyPayment)
}

func (h *Handlers) AdminRelease(w http.ResponseWriter, r *http.Request) {
	h.adminAction(w, r, h.escrowSvc.ReleaseFunds)
}

func (h *Handlers) AdminRefund(w http.ResponseWriter, r *http.Request) {
	h.adminAction(w, r, h.escrowSvc.Refund)
}

func (h *Handlers) adminAction(w http.ResponseWriter, r *http.Request, action func(string) error) {
	var req adminActionRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeServiceError(w, err)
		return
	}
	if req.TransactionID == "" {
		h.writeServiceError(w, domain.ValidationError{Field: "transaction_id", Message: "required"})
		return
	}

	if err := action(req.TransactionID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handlers) AdminDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.escrowSvc.DeleteTransaction(chi.URLParam(r, "txId")); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// --- health ---

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	dbStatus := "up"
	if err := h.db.PingContext(r.Context()); err != nil {
		dbStatus = "down"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"db":        dbStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return def
	}
	return v
}
