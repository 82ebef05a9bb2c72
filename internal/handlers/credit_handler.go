package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/navid-f/TutorAppBack/internal/models"
	"github.com/navid-f/TutorAppBack/internal/repository"
	"github.com/navid-f/TutorAppBack/internal/services"
)

type CreditHandler struct {
	service creditApplicationService
}

type creditApplicationService interface {
	Add(ctx context.Context, userID int64, amount decimal.Decimal, reason, performedBy string) (*models.CreditTransaction, error)
	Deduct(ctx context.Context, userID int64, amount decimal.Decimal, reason, performedBy string) (*models.CreditTransaction, error)
	GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error)
	GetHistory(ctx context.Context, userID int64, filter repository.HistoryFilter) ([]models.CreditTransaction, int, error)
}

func NewCreditHandler(service *services.CreditService) *CreditHandler {
	return &CreditHandler{service: service}
}

func (h *CreditHandler) GetBalance(c *fiber.Ctx) error {
	userID, err := parseProfileUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	balance, err := h.service.GetBalance(c.Context(), userID)
	if err != nil {
		return mapCreditError(c, err)
	}

	return c.JSON(fiber.Map{"balance": balance})
}

func (h *CreditHandler) GetHistory(c *fiber.Ctx) error {
	userID, err := parseProfileUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	txnType := strings.TrimSpace(c.Query("type"))
	switch txnType {
	case "", string(models.TransactionTypeAdd), string(models.TransactionTypeDeduct), string(models.TransactionTypeRefund):
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "type must be add, deduct or refund"})
	}

	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", defaultPageLimit)
	if limit < 1 || limit > maxPageLimit {
		limit = defaultPageLimit
	}

	transactions, total, err := h.service.GetHistory(c.Context(), userID, repository.HistoryFilter{
		Type:  txnType,
		Page:  page,
		Limit: limit,
	})
	if err != nil {
		return mapCreditError(c, err)
	}

	return c.JSON(fiber.Map{
		"transactions": transactions,
		"pagination":   buildPaginationMeta(page, limit, total),
	})
}

type adjustCreditsRequest struct {
	UserID    int64  `json:"user_id"`
	Amount    string `json:"amount"`
	Direction string `json:"direction"`
	Reason    string `json:"reason"`
}

// AdminAdjust is the manual credit adjustment endpoint; the reason is
// mandatory because it goes straight into the audit trail.
func (h *CreditHandler) AdminAdjust(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || role != models.RoleAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	adminID, err := parseProfileUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req adjustCreditsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.UserID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id is required"})
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "amount must be a decimal number"})
	}

	performedBy := strconv.FormatInt(adminID, 10)

	var txn *models.CreditTransaction
	switch strings.TrimSpace(req.Direction) {
	case "add":
		txn, err = h.service.Add(c.Context(), req.UserID, amount, req.Reason, performedBy)
	case "deduct":
		txn, err = h.service.Deduct(c.Context(), req.UserID, amount, req.Reason, performedBy)
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "direction must be add or deduct"})
	}
	if err != nil {
		return mapCreditError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"transaction": txn})
}

func mapCreditError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidAmount), errors.Is(err, services.ErrReasonRequired):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrInsufficientCredits):
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": "Insufficient credit balance"})
	case errors.Is(err, services.ErrAccountNotFound), errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Credit account not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process credit request"})
	}
}
