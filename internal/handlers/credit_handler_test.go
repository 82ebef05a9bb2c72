package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/navid-f/TutorAppBack/internal/models"
	"github.com/navid-f/TutorAppBack/internal/repository"
	"github.com/navid-f/TutorAppBack/internal/services"
)

type stubCreditService struct {
	balance      decimal.Decimal
	transaction  *models.CreditTransaction
	transactions []models.CreditTransaction
	total        int
	err          error

	lastMethod      string
	lastUserID      int64
	lastAmount      decimal.Decimal
	lastReason      string
	lastPerformedBy string
	lastFilter      repository.HistoryFilter
}

func (s *stubCreditService) Add(ctx context.Context, userID int64, amount decimal.Decimal, reason, performedBy string) (*models.CreditTransaction, error) {
	s.lastMethod = "add"
	s.lastUserID = userID
	s.lastAmount = amount
	s.lastReason = reason
	s.lastPerformedBy = performedBy
	return s.transaction, s.err
}

func (s *stubCreditService) Deduct(ctx context.Context, userID int64, amount decimal.Decimal, reason, performedBy string) (*models.CreditTransaction, error) {
	s.lastMethod = "deduct"
	s.lastUserID = userID
	s.lastAmount = amount
	s.lastReason = reason
	s.lastPerformedBy = performedBy
	return s.transaction, s.err
}

func (s *stubCreditService) GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	s.lastUserID = userID
	return s.balance, s.err
}

func (s *stubCreditService) GetHistory(ctx context.Context, userID int64, filter repository.HistoryFilter) ([]models.CreditTransaction, int, error) {
	s.lastUserID = userID
	s.lastFilter = filter
	return s.transactions, s.total, s.err
}

func creditTestApp(service creditApplicationService, role, userID string) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("role", role)
		c.Locals("user_id", userID)
		return c.Next()
	})

	handler := &CreditHandler{service: service}
	app.Get("/api/v1/credits/balance", handler.GetBalance)
	app.Get("/api/v1/credits/history", handler.GetHistory)
	app.Post("/api/v1/admin/credits/adjust", handler.AdminAdjust)
	return app
}

func TestGetBalanceReturnsDecimal(t *testing.T) {
	service := &stubCreditService{balance: decimal.NewFromFloat(4.5)}
	app := creditTestApp(service, models.RoleStudent, "42")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/credits/balance", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastUserID != 42 {
		t.Errorf("userID = %d, want 42", service.lastUserID)
	}

	payload, _ := io.ReadAll(resp.Body)
	var parsed struct {
		Balance string `json:"balance"`
	}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if parsed.Balance != "4.5" {
		t.Errorf("balance = %q, want %q", parsed.Balance, "4.5")
	}
}

func TestGetBalanceMissingAccount(t *testing.T) {
	service := &stubCreditService{err: services.ErrAccountNotFound}
	app := creditTestApp(service, models.RoleStudent, "42")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/credits/balance", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestGetHistoryValidatesType(t *testing.T) {
	app := creditTestApp(&stubCreditService{}, models.RoleStudent, "42")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/credits/history?type=transfer", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGetHistoryPaginationDefaults(t *testing.T) {
	service := &stubCreditService{transactions: []models.CreditTransaction{}, total: 0}
	app := creditTestApp(service, models.RoleStudent, "42")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/credits/history?page=0&limit=999", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastFilter.Page != 1 {
		t.Errorf("page = %d, want 1", service.lastFilter.Page)
	}
	if service.lastFilter.Limit != defaultPageLimit {
		t.Errorf("limit = %d, want %d", service.lastFilter.Limit, defaultPageLimit)
	}
}

func TestAdminAdjustRequiresAdmin(t *testing.T) {
	app := creditTestApp(&stubCreditService{}, models.RoleStudent, "42")

	body := `{"user_id": 5, "amount": "2.5", "direction": "add", "reason": "package purchase"}`
	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/admin/credits/adjust", body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestAdminAdjustAdd(t *testing.T) {
	service := &stubCreditService{transaction: &models.CreditTransaction{UserID: 5}}
	app := creditTestApp(service, models.RoleAdmin, "1")

	body := `{"user_id": 5, "amount": "2.5", "direction": "add", "reason": "package purchase"}`
	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/admin/credits/adjust", body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastMethod != "add" || service.lastUserID != 5 {
		t.Errorf("service called with method=%q userID=%d", service.lastMethod, service.lastUserID)
	}
	if !service.lastAmount.Equal(decimal.NewFromFloat(2.5)) {
		t.Errorf("amount = %s, want 2.5", service.lastAmount)
	}
	if service.lastPerformedBy != "1" {
		t.Errorf("performedBy = %q, want admin id", service.lastPerformedBy)
	}
}

func TestAdminAdjustDeductInsufficient(t *testing.T) {
	service := &stubCreditService{err: services.ErrInsufficientCredits}
	app := creditTestApp(service, models.RoleAdmin, "1")

	body := `{"user_id": 5, "amount": "10", "direction": "deduct", "reason": "correction"}`
	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/admin/credits/adjust", body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", resp.StatusCode)
	}
}

func TestAdminAdjustInvalidDirection(t *testing.T) {
	app := creditTestApp(&stubCreditService{}, models.RoleAdmin, "1")

	body := `{"user_id": 5, "amount": "1", "direction": "transfer", "reason": "x"}`
	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/admin/credits/adjust", body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestAdminAdjustBadAmount(t *testing.T) {
	app := creditTestApp(&stubCreditService{}, models.RoleAdmin, "1")

	body := `{"user_id": 5, "amount": "two", "direction": "add", "reason": "x"}`
	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/admin/credits/adjust", body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
