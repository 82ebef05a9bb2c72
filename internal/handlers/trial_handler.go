package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/navid-f/TutorAppBack/internal/models"
	"github.com/navid-f/TutorAppBack/internal/services"
)

type TrialHandler struct {
	service trialStatusService
}

type trialStatusService interface {
	CheckStatus(ctx context.Context, userID int64) (*models.TrialStatus, error)
}

func NewTrialHandler(service *services.TrialService) *TrialHandler {
	return &TrialHandler{service: service}
}

// Status tells the dashboard whether to route a freshly converted student
// away from the trial-only view.
func (h *TrialHandler) Status(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || role != models.RoleStudent {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	userID, err := parseProfileUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	status, err := h.service.CheckStatus(c.Context(), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Profile not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load trial status"})
	}

	return c.JSON(fiber.Map{"trial": status})
}
