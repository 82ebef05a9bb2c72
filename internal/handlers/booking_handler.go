package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/navid-f/TutorAppBack/internal/models"
	"github.com/navid-f/TutorAppBack/internal/repository"
	"github.com/navid-f/TutorAppBack/internal/services"
)

type BookingHandler struct {
	service bookingApplicationService
}

type bookingApplicationService interface {
	BookSession(ctx context.Context, studentID int64, input services.BookSessionInput) (*models.ClassSession, error)
	CancelSession(ctx context.Context, sessionID, actorID int64, role, reason string) (*models.ClassSession, services.CancellationDecision, error)
	RescheduleSession(ctx context.Context, sessionID, actorID int64, role string, newStart time.Time) (*models.ClassSession, error)
	JoinSession(ctx context.Context, sessionID, actorID int64, role string) (*models.ClassSession, error)
	GetSession(ctx context.Context, actorID int64, role string, sessionID int64) (*models.ClassSession, error)
	ListSessions(ctx context.Context, actorID int64, role string, filter repository.SessionListFilter) ([]models.ClassSession, error)
}

func NewBookingHandler(service *services.BookingService) *BookingHandler {
	return &BookingHandler{service: service}
}

type bookSessionRequest struct {
	TeacherID       int64   `json:"teacher_id"`
	ScheduledAt     string  `json:"scheduled_at"`
	DurationMinutes int     `json:"duration_minutes"`
	MeetingLink     *string `json:"meeting_link"`
	IsTrial         bool    `json:"is_trial"`
}

type cancelSessionRequest struct {
	Reason string `json:"reason"`
}

type rescheduleSessionRequest struct {
	ScheduledAt string `json:"scheduled_at"`
}

func (h *BookingHandler) BookSession(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || role != models.RoleStudent {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	studentID, err := parseProfileUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req bookSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	scheduledAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.ScheduledAt))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "scheduled_at must be a valid RFC3339 timestamp"})
	}
	if req.DurationMinutes <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "duration_minutes must be greater than 0"})
	}
	if req.MeetingLink != nil && strings.TrimSpace(*req.MeetingLink) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "meeting_link must not be empty"})
	}

	session, err := h.service.BookSession(c.Context(), studentID, services.BookSessionInput{
		TeacherID:       req.TeacherID,
		ScheduledAt:     scheduledAt,
		DurationMinutes: req.DurationMinutes,
		MeetingLink:     req.MeetingLink,
		IsTrial:         req.IsTrial,
	})
	if err != nil {
		return mapBookingError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"session": session})
}

func (h *BookingHandler) ListSessions(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || (role != models.RoleStudent && role != models.RoleTeacher) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	userID, err := parseProfileUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	timeframe := strings.TrimSpace(c.Query("timeframe"))
	if timeframe != "" && timeframe != "upcoming" && timeframe != "past" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "timeframe must be upcoming or past"})
	}

	sessions, err := h.service.ListSessions(c.Context(), userID, role, repository.SessionListFilter{
		Status:    strings.TrimSpace(c.Query("status")),
		Timeframe: timeframe,
	})
	if err != nil {
		return mapBookingError(c, err)
	}

	return c.JSON(fiber.Map{"sessions": sessions})
}

func (h *BookingHandler) GetSession(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	userID, err := parseProfileUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	sessionID, err := parseSessionID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	session, err := h.service.GetSession(c.Context(), userID, role, sessionID)
	if err != nil {
		return mapBookingError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *BookingHandler) CancelSession(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || (role != models.RoleStudent && role != models.RoleAdmin) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	actorID, err := parseProfileUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	sessionID, err := parseSessionID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	var req cancelSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if strings.TrimSpace(req.Reason) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "reason is required"})
	}

	session, decision, err := h.service.CancelSession(c.Context(), sessionID, actorID, role, req.Reason)
	if err != nil {
		return mapBookingError(c, err)
	}

	return c.JSON(fiber.Map{
		"session":       session,
		"refund_issued": session.RefundIssued,
		"message":       decision.Message,
	})
}

func (h *BookingHandler) RescheduleSession(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || (role != models.RoleStudent && role != models.RoleAdmin) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	actorID, err := parseProfileUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	sessionID, err := parseSessionID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	var req rescheduleSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	scheduledAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.ScheduledAt))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "scheduled_at must be a valid RFC3339 timestamp"})
	}

	session, err := h.service.RescheduleSession(c.Context(), sessionID, actorID, role, scheduledAt)
	if err != nil {
		return mapBookingError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"session": session})
}

func (h *BookingHandler) JoinSession(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || (role != models.RoleStudent && role != models.RoleTeacher) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	actorID, err := parseProfileUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	sessionID, err := parseSessionID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	session, err := h.service.JoinSession(c.Context(), sessionID, actorID, role)
	if err != nil {
		return mapBookingError(c, err)
	}

	return c.JSON(fiber.Map{
		"session":      session,
		"meeting_link": session.MeetingLink,
	})
}

func parseSessionID(c *fiber.Ctx) (int64, error) {
	sessionID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || sessionID <= 0 {
		return 0, strconv.ErrSyntax
	}
	return sessionID, nil
}

func parseProfileUserID(c *fiber.Ctx) (int64, error) {
	userIDValue := c.Locals("user_id")
	userIDStr, ok := userIDValue.(string)
	if !ok {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseInt(userIDStr, 10, 64)
}

func mapBookingError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrReasonRequired):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrInsufficientCredits):
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": "Insufficient credit balance"})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Requested time conflicts with another session"})
	case errors.Is(err, services.ErrConcurrencyConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidStateTransition),
		errors.Is(err, services.ErrReschedulePenalized),
		errors.Is(err, services.ErrTrialNotAvailable),
		errors.Is(err, services.ErrJoinWindowClosed):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrTeacherNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Teacher not found"})
	case errors.Is(err, services.ErrAccountNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Credit account not found"})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process session request"})
	}
}
