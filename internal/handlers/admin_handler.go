package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/navid-f/TutorAppBack/internal/models"
	"github.com/navid-f/TutorAppBack/internal/repository"
	"github.com/navid-f/TutorAppBack/internal/services"
)

type AdminHandler struct {
	sweeper  statusSweeper
	trial    trialAdminService
	settings *repository.SettingsRepository
}

type statusSweeper interface {
	UpdateClassStatuses(ctx context.Context) (services.StatusSweepResult, error)
}

type trialAdminService interface {
	ManualConversion(ctx context.Context, userID, performedBy int64, role string) (*models.StudentProfile, error)
	ProcessCompletedTrialLessons(ctx context.Context) (services.TrialSweepResult, error)
}

func NewAdminHandler(
	sweeper *services.SweeperService,
	trial *services.TrialService,
	settings *repository.SettingsRepository,
) *AdminHandler {
	return &AdminHandler{sweeper: sweeper, trial: trial, settings: settings}
}

func requireAdmin(c *fiber.Ctx) (int64, bool) {
	role, ok := c.Locals("role").(string)
	if !ok || role != models.RoleAdmin {
		return 0, false
	}
	adminID, err := parseProfileUserID(c)
	if err != nil {
		return 0, false
	}
	return adminID, true
}

// UpdateClassStatuses runs the time-based session status sweep and returns
// the counts of transitions it applied.
func (h *AdminHandler) UpdateClassStatuses(c *fiber.Ctx) error {
	if _, ok := requireAdmin(c); !ok {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	result, err := h.sweeper.UpdateClassStatuses(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Status sweep failed"})
	}

	return c.JSON(fiber.Map{"result": result})
}

func (h *AdminHandler) ProcessTrialConversions(c *fiber.Ctx) error {
	if _, ok := requireAdmin(c); !ok {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	result, err := h.trial.ProcessCompletedTrialLessons(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Trial conversion sweep failed"})
	}

	return c.JSON(fiber.Map{"result": result})
}

func (h *AdminHandler) ConvertStudent(c *fiber.Ctx) error {
	adminID, ok := requireAdmin(c)
	if !ok {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	studentID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || studentID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid student id"})
	}

	profile, err := h.trial.ManualConversion(c.Context(), studentID, adminID, models.RoleAdmin)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAlreadyConverted):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, services.ErrNotAuthorized):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
		case errors.Is(err, pgx.ErrNoRows):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Student not found"})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to convert student"})
		}
	}

	return c.JSON(fiber.Map{"profile": profile})
}

func (h *AdminHandler) GetSettings(c *fiber.Ctx) error {
	if _, ok := requireAdmin(c); !ok {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	settings, err := h.settings.All(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load settings"})
	}

	return c.JSON(fiber.Map{"settings": settings})
}

var editableSettings = map[string]bool{
	repository.SettingJoinWindowMinutes:       true,
	repository.SettingJoinGraceMinutes:        true,
	repository.SettingNoShowGraceMinutes:      true,
	repository.SettingCancellationCutoffHours: true,
}

func (h *AdminHandler) UpdateSettings(c *fiber.Ctx) error {
	if _, ok := requireAdmin(c); !ok {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	var req map[string]string
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if len(req) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No settings provided"})
	}

	for key, value := range req {
		if !editableSettings[key] {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unknown setting: " + key})
		}
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || parsed < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": key + " must be a non-negative integer"})
		}
	}

	for key, value := range req {
		if err := h.settings.Set(c.Context(), key, strings.TrimSpace(value)); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update settings"})
		}
	}

	settings, err := h.settings.All(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load settings"})
	}

	return c.JSON(fiber.Map{"settings": settings})
}
