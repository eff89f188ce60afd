package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/kudisafe/escrow/internal/escrow"
	"github.com/kudisafe/escrow/internal/identity"
	"github.com/kudisafe/escrow/internal/repository"
)

const (
	adminPhone    = "0200000001"
	adminPassword = "admin-test-pw"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	db, err := repository.InitDB(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("init db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	userRepo := repository.NewUserRepo(db)
	txnRepo := repository.NewTransactionRepo(db)
	paymentRepo := repository.NewPaymentRepo(db)
	commissionRepo := repository.NewCommissionRepo(db)

	tokens := identity.NewTokenIssuer("test-secret", time.Hour)
	identitySvc := identity.NewService(logger, userRepo, tokens)
	escrowSvc := escrow.NewService(logger, txnRepo, paymentRepo, commissionRepo,
		userRepo, "KUDISAFE-OPERATIONS")

	if err := identitySvc.EnsureAdmin(adminPhone, adminPassword); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	return NewRouter(logger, db, escrowSvc, identitySvc, tokens, nil)
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return payload
}

func login(t *testing.T, router http.Handler, phone, password string) (userID, token string) {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/login", "",
		map[string]string{"phone_number": phone, "password": password})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", phone, rec.Code, rec.Body.String())
	}
	payload := decode(t, rec)
	user := payload["user"].(map[string]any)
	return user["id"].(string), payload["token"].(string)
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	payload := decode(t, rec)
	if payload["status"] != "ok" || payload["db"] != "up" {
		t.Errorf("unexpected health payload: %v", payload)
	}
	if payload["timestamp"] == "" {
		t.Error("missing timestamp")
	}
}

func TestRegisterAndLogin(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/register", "",
		map[string]string{"phone_number": "0241112233", "password": "hunter2"})
	if rec.Code != http.StatusOK {
		t.Fatalf("register: status %d body %s", rec.Code, rec.Body.String())
	}
	if payload := decode(t, rec); payload["success"] != true {
		t.Errorf("register payload: %v", payload)
	}

	// Duplicate phone number is rejected.
	rec = doJSON(t, router, http.MethodPost, "/api/register", "",
		map[string]string{"phone_number": "0241112233", "password": "other"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("duplicate register: status %d, want 400", rec.Code)
	}

	// Missing fields are rejected.
	rec = doJSON(t, router, http.MethodPost, "/api/register", "",
		map[string]string{"phone_number": "0241112234"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing password: status %d, want 400", rec.Code)
	}

	// Wrong password and unknown phone both yield 401.
	rec = doJSON(t, router, http.MethodPost, "/api/login", "",
		map[string]string{"phone_number": "0241112233", "password": "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: status %d, want 401", rec.Code)
	}
	rec = doJSON(t, router, http.MethodPost, "/api/login", "",
		map[string]string{"phone_number": "0209999999", "password": "hunter2"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unknown phone: status %d, want 401", rec.Code)
	}

	userID, token := login(t, router, "0241112233", "hunter2")
	if userID == "" || token == "" {
		t.Fatal("login returned empty id or token")
	}
}

func TestTransactionLifecycleOverHTTP(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/register", "",
		map[string]string{"phone_number": "0241112233", "password": "hunter2"})
	if rec.Code != http.StatusOK {
		t.Fatalf("register: %d", rec.Code)
	}
	buyerID, _ := login(t, router, "0241112233", "hunter2")
	_, adminToken := login(t, router, adminPhone, adminPassword)

	// Create.
	rec = doJSON(t, router, http.MethodPost, "/api/transactions", "", map[string]any{
		"buyer_id":     buyerID,
		"seller_phone": "0551234567",
		"amount":       1000,
		"description":  "widget",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("create: status %d body %s", rec.Code, rec.Body.String())
	}
	txn := decode(t, rec)["transaction"].(map[string]any)
	ref := txn["reference"].(string)
	if !regexp.MustCompile(`^KS1-\d{6}$`).MatchString(ref) {
		t.Fatalf("reference %q does not match KS1-\\d{6}", ref)
	}
	if txn["status"] != "pending_payment" {
		t.Errorf("status = %v, want pending_payment", txn["status"])
	}
	if txn["fee"] != "10" {
		t.Errorf("fee = %v, want 10", txn["fee"])
	}

	// The buyer's listing shows it.
	rec = doJSON(t, router, http.MethodGet, "/api/transactions/"+buyerID, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d", rec.Code)
	}
	var listed []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 1 || listed[0]["reference"] != ref {
		t.Fatalf("listing = %v", listed)
	}

	// Submit payment.
	rec = doJSON(t, router, http.MethodPost, "/api/payments/confirm", "",
		map[string]string{"transaction_id": ref, "momo_reference": "MP12345678"})
	if rec.Code != http.StatusOK {
		t.Fatalf("submit payment: status %d body %s", rec.Code, rec.Body.String())
	}

	// Admin verifies funding.
	rec = doJSON(t, router, http.MethodPut, "/api/admin/verify", adminToken,
		map[string]string{"transaction_id": ref})
	if rec.Code != http.StatusOK {
		t.Fatalf("verify: status %d body %s", rec.Code, rec.Body.String())
	}

	// Buyer confirms delivery; a repeat is harmless.
	for i := 0; i < 2; i++ {
		rec = doJSON(t, router, http.MethodPut, "/api/transactions/"+ref+"/confirm-delivery", "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("confirm delivery (call %d): status %d body %s", i+1, rec.Code, rec.Body.String())
		}
	}

	// Admin releases funds.
	rec = doJSON(t, router, http.MethodPut, "/api/admin/release", adminToken,
		map[string]string{"transaction_id": ref})
	if rec.Code != http.StatusOK {
		t.Fatalf("release: status %d body %s", rec.Code, rec.Body.String())
	}

	// The admin snapshot reflects the finished deal.
	rec = doJSON(t, router, http.MethodGet, "/api/admin/data", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin data: status %d", rec.Code)
	}
	snapshot := decode(t, rec)
	txns := snapshot["transactions"].([]any)
	payments := snapshot["payments"].([]any)
	commissions := snapshot["commissions"].([]any)
	if len(txns) != 1 || len(payments) != 1 || len(commissions) != 1 {
		t.Fatalf("snapshot sizes: %d/%d/%d", len(txns), len(payments), len(commissions))
	}
	if status := txns[0].(map[string]any)["status"]; status != "completed" {
		t.Errorf("transaction status = %v, want completed", status)
	}
	if verified := payments[0].(map[string]any)["verified"]; verified != true {
		t.Errorf("payment verified = %v, want true", verified)
	}
	if status := commissions[0].(map[string]any)["status"]; status != "paid" {
		t.Errorf("commission status = %v, want paid", status)
	}

	// Admin deletes the record; the buyer's listing empties out.
	rec = doJSON(t, router, http.MethodDelete, "/api/admin/delete-payment/"+ref, adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: status %d body %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, router, http.MethodGet, "/api/transactions/"+buyerID, "", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 0 {
		t.Errorf("expected empty listing after delete, got %v", listed)
	}
}

func TestCreateTransactionValidationOverHTTP(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/transactions", "", map[string]any{
		"seller_phone": "0551234567",
		"amount":       100,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing buyer_id: status %d, want 400", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/transactions", "", map[string]any{
		"buyer_id":     "someone",
		"seller_phone": "0551234567",
		"amount":       0,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("zero amount: status %d, want 400", rec.Code)
	}
}

func TestAdminRoutesRequireAdminToken(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/register", "",
		map[string]string{"phone_number": "0241112233", "password": "hunter2"})
	if rec.Code != http.StatusOK {
		t.Fatalf("register: %d", rec.Code)
	}
	_, userToken := login(t, router, "0241112233", "hunter2")

	// No token.
	rec = doJSON(t, router, http.MethodGet, "/api/admin/data", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status %d, want 401", rec.Code)
	}

	// Garbage token.
	rec = doJSON(t, router, http.MethodGet, "/api/admin/data", "not-a-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status %d, want 401", rec.Code)
	}

	// Valid token, wrong role.
	rec = doJSON(t, router, http.MethodGet, "/api/admin/data", userToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("user token: status %d, want 403", rec.Code)
	}
}

func TestAdminActionsOnUnknownTransaction(t *testing.T) {
	router := newTestRouter(t)
	_, adminToken := login(t, router, adminPhone, adminPassword)

	rec := doJSON(t, router, http.MethodPut, "/api/admin/verify", adminToken,
		map[string]string{"transaction_id": "KS1-000000"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("verify unknown: status %d, want 404", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPut, "/api/admin/verify", adminToken,
		map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("verify without transaction_id: status %d, want 400", rec.Code)
	}
}

func TestGuardedTransitionConflictOverHTTP(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/register", "",
		map[string]string{"phone_number": "0241112233", "password": "hunter2"})
	if rec.Code != http.StatusOK {
		t.Fatalf("register: %d", rec.Code)
	}
	buyerID, _ := login(t, router, "0241112233", "hunter2")

	rec = doJSON(t, router, http.MethodPost, "/api/transactions", "", map[string]any{
		"buyer_id":     buyerID,
		"seller_phone": "0551234567",
		"amount":       "250.50",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("create: %d", rec.Code)
	}
	ref := decode(t, rec)["transaction"].(map[string]any)["reference"].(string)

	// Delivery cannot be confirmed before funding.
	rec = doJSON(t, router, http.MethodPut, "/api/transactions/"+ref+"/confirm-delivery", "", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("premature delivery: status %d, want 409", rec.Code)
	}
}
