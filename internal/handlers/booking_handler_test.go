package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/navid-f/TutorAppBack/internal/models"
	"github.com/navid-f/TutorAppBack/internal/repository"
	"github.com/navid-f/TutorAppBack/internal/services"
)

type stubBookingService struct {
	session  *models.ClassSession
	sessions []models.ClassSession
	decision services.CancellationDecision
	err      error

	lastStudentID int64
	lastInput     services.BookSessionInput
	lastSessionID int64
	lastActorID   int64
	lastRole      string
	lastReason    string
	lastNewStart  time.Time
	lastFilter    repository.SessionListFilter
}

func (s *stubBookingService) BookSession(ctx context.Context, studentID int64, input services.BookSessionInput) (*models.ClassSession, error) {
	s.lastStudentID = studentID
	s.lastInput = input
	return s.session, s.err
}

func (s *stubBookingService) CancelSession(ctx context.Context, sessionID, actorID int64, role, reason string) (*models.ClassSession, services.CancellationDecision, error) {
	s.lastSessionID = sessionID
	s.lastActorID = actorID
	s.lastRole = role
	s.lastReason = reason
	return s.session, s.decision, s.err
}

func (s *stubBookingService) RescheduleSession(ctx context.Context, sessionID, actorID int64, role string, newStart time.Time) (*models.ClassSession, error) {
	s.lastSessionID = sessionID
	s.lastActorID = actorID
	s.lastRole = role
	s.lastNewStart = newStart
	return s.session, s.err
}

func (s *stubBookingService) JoinSession(ctx context.Context, sessionID, actorID int64, role string) (*models.ClassSession, error) {
	s.lastSessionID = sessionID
	s.lastActorID = actorID
	s.lastRole = role
	return s.session, s.err
}

func (s *stubBookingService) GetSession(ctx context.Context, actorID int64, role string, sessionID int64) (*models.ClassSession, error) {
	s.lastActorID = actorID
	s.lastRole = role
	s.lastSessionID = sessionID
	return s.session, s.err
}

func (s *stubBookingService) ListSessions(ctx context.Context, actorID int64, role string, filter repository.SessionListFilter) ([]models.ClassSession, error) {
	s.lastActorID = actorID
	s.lastRole = role
	s.lastFilter = filter
	return s.sessions, s.err
}

func bookingTestApp(service bookingApplicationService, role, userID string) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("role", role)
		c.Locals("user_id", userID)
		return c.Next()
	})

	handler := &BookingHandler{service: service}
	app.Post("/api/v1/sessions/book", handler.BookSession)
	app.Get("/api/v1/sessions", handler.ListSessions)
	app.Get("/api/v1/sessions/:id", handler.GetSession)
	app.Post("/api/v1/sessions/:id/cancel", handler.CancelSession)
	app.Post("/api/v1/sessions/:id/reschedule", handler.RescheduleSession)
	app.Post("/api/v1/sessions/:id/join", handler.JoinSession)
	return app
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestBookSessionSuccess(t *testing.T) {
	service := &stubBookingService{
		session: &models.ClassSession{ID: 11, StudentID: 42, TeacherID: 9, Status: models.SessionStatusScheduled},
	}
	app := bookingTestApp(service, models.RoleStudent, "42")

	body := `{"teacher_id": 9, "scheduled_at": "2026-04-01T10:00:00Z", "duration_minutes": 60}`
	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/sessions/book", body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastStudentID != 42 {
		t.Errorf("studentID = %d, want 42", service.lastStudentID)
	}
	if service.lastInput.TeacherID != 9 || service.lastInput.DurationMinutes != 60 {
		t.Errorf("unexpected booking input: %+v", service.lastInput)
	}
}

func TestBookSessionRejectsNonStudents(t *testing.T) {
	app := bookingTestApp(&stubBookingService{}, models.RoleTeacher, "9")

	body := `{"teacher_id": 9, "scheduled_at": "2026-04-01T10:00:00Z", "duration_minutes": 60}`
	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/sessions/book", body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestBookSessionRejectsBadTimestamp(t *testing.T) {
	app := bookingTestApp(&stubBookingService{}, models.RoleStudent, "42")

	body := `{"teacher_id": 9, "scheduled_at": "tomorrow", "duration_minutes": 60}`
	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/sessions/book", body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestBookSessionInsufficientCredits(t *testing.T) {
	service := &stubBookingService{err: services.ErrInsufficientCredits}
	app := bookingTestApp(service, models.RoleStudent, "42")

	body := `{"teacher_id": 9, "scheduled_at": "2026-04-01T10:00:00Z", "duration_minutes": 60}`
	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/sessions/book", body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", resp.StatusCode)
	}
}

func TestBookSessionTeacherConflict(t *testing.T) {
	service := &stubBookingService{err: services.ErrConflict}
	app := bookingTestApp(service, models.RoleStudent, "42")

	body := `{"teacher_id": 9, "scheduled_at": "2026-04-01T10:00:00Z", "duration_minutes": 60}`
	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/sessions/book", body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestCancelSessionSuccess(t *testing.T) {
	service := &stubBookingService{
		session: &models.ClassSession{
			ID:           11,
			StudentID:    42,
			Status:       models.SessionStatusCancelled,
			RefundIssued: true,
		},
		decision: services.CancellationDecision{Message: "cancelled with full refund"},
	}
	app := bookingTestApp(service, models.RoleStudent, "42")

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/sessions/11/cancel", `{"reason": "sick"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	payload, _ := io.ReadAll(resp.Body)
	var parsed struct {
		RefundIssued bool   `json:"refund_issued"`
		Message      string `json:"message"`
	}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if !parsed.RefundIssued {
		t.Error("expected refund_issued true in response")
	}
	if parsed.Message == "" {
		t.Error("expected decision message in response")
	}
	if service.lastSessionID != 11 || service.lastReason != "sick" {
		t.Errorf("service called with sessionID=%d reason=%q", service.lastSessionID, service.lastReason)
	}
}

func TestCancelSessionRequiresReason(t *testing.T) {
	app := bookingTestApp(&stubBookingService{}, models.RoleStudent, "42")

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/sessions/11/cancel", `{"reason": "  "}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCancelSessionAlreadyCancelled(t *testing.T) {
	service := &stubBookingService{err: services.ErrInvalidStateTransition}
	app := bookingTestApp(service, models.RoleStudent, "42")

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/sessions/11/cancel", `{"reason": "sick"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestCancelSessionNotFound(t *testing.T) {
	service := &stubBookingService{err: pgx.ErrNoRows}
	app := bookingTestApp(service, models.RoleStudent, "42")

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/sessions/11/cancel", `{"reason": "sick"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestRescheduleSessionPenalized(t *testing.T) {
	service := &stubBookingService{err: services.ErrReschedulePenalized}
	app := bookingTestApp(service, models.RoleStudent, "42")

	body := `{"scheduled_at": "2026-04-02T10:00:00Z"}`
	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/sessions/11/reschedule", body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestRescheduleSessionSuccess(t *testing.T) {
	service := &stubBookingService{
		session: &models.ClassSession{ID: 12, Status: models.SessionStatusScheduled},
	}
	app := bookingTestApp(service, models.RoleStudent, "42")

	body := `{"scheduled_at": "2026-04-02T10:00:00Z"}`
	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/sessions/11/reschedule", body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	want, _ := time.Parse(time.RFC3339, "2026-04-02T10:00:00Z")
	if !service.lastNewStart.Equal(want) {
		t.Errorf("newStart = %v, want %v", service.lastNewStart, want)
	}
}

func TestJoinSessionOutsideWindow(t *testing.T) {
	service := &stubBookingService{err: services.ErrJoinWindowClosed}
	app := bookingTestApp(service, models.RoleStudent, "42")

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/sessions/11/join", ""))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestJoinSessionReturnsMeetingLink(t *testing.T) {
	link := "https://meet.example.com/abc"
	service := &stubBookingService{
		session: &models.ClassSession{ID: 11, Status: models.SessionStatusInProgress, MeetingLink: &link},
	}
	app := bookingTestApp(service, models.RoleTeacher, "9")

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/sessions/11/join", ""))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	payload, _ := io.ReadAll(resp.Body)
	var parsed struct {
		MeetingLink string `json:"meeting_link"`
	}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if parsed.MeetingLink != link {
		t.Errorf("meeting_link = %q, want %q", parsed.MeetingLink, link)
	}
	if service.lastRole != models.RoleTeacher {
		t.Errorf("role = %q, want teacher", service.lastRole)
	}
}

func TestListSessionsPassesFilter(t *testing.T) {
	service := &stubBookingService{sessions: []models.ClassSession{}}
	app := bookingTestApp(service, models.RoleStudent, "42")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/sessions?status=scheduled&timeframe=upcoming", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastFilter.Status != "scheduled" || service.lastFilter.Timeframe != "upcoming" {
		t.Errorf("filter = %+v", service.lastFilter)
	}
}

func TestListSessionsRejectsBadTimeframe(t *testing.T) {
	app := bookingTestApp(&stubBookingService{}, models.RoleStudent, "42")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/sessions?timeframe=yesterday", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGetSessionInvalidID(t *testing.T) {
	app := bookingTestApp(&stubBookingService{}, models.RoleStudent, "42")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/sessions/abc", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
