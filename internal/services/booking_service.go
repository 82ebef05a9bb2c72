package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/navid-f/TutorAppBack/internal/models"
	"github.com/navid-f/TutorAppBack/internal/repository"
)

var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrForbidden              = errors.New("forbidden")
	ErrTeacherNotFound        = errors.New("teacher not found")
	ErrConflict               = errors.New("conflict")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrConcurrencyConflict    = errors.New("concurrent update, retry with fresh state")
	ErrReschedulePenalized    = errors.New("reschedule not allowed inside the cancellation penalty window")
	ErrJoinWindowClosed       = errors.New("meeting link is not active right now")
	ErrTrialNotAvailable      = errors.New("trial lesson not available for this student")
)

// Durations a lesson may take; one credit funds 60 minutes, so every allowed
// duration prices to an exact half-credit multiple.
var allowedDurations = map[int]bool{30: true, 60: true, 90: true, 120: true}

type userReader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type profileReader interface {
	GetByID(ctx context.Context, userID int64) (*models.StudentProfile, error)
}

type settingsReader interface {
	GetInt(ctx context.Context, key string, fallback int) int
}

// BookingService owns the class session lifecycle. Every transition out of
// scheduled is a conditional write, and every credit consequence shares a
// transaction with the status change that caused it.
type BookingService struct {
	db          *pgxpool.Pool
	sessionRepo *repository.SessionRepository
	userRepo    userReader
	profileRepo profileReader
	settings    settingsReader
}

func NewBookingService(
	db *pgxpool.Pool,
	sessionRepo *repository.SessionRepository,
	userRepo userReader,
	profileRepo profileReader,
	settings settingsReader,
) *BookingService {
	return &BookingService{
		db:          db,
		sessionRepo: sessionRepo,
		userRepo:    userRepo,
		profileRepo: profileRepo,
		settings:    settings,
	}
}

type BookSessionInput struct {
	TeacherID       int64
	ScheduledAt     time.Time
	DurationMinutes int
	MeetingLink     *string
	IsTrial         bool
}

// SessionPrice converts a duration to credits on the one-credit-per-hour
// scale: 30min = 0.5, 60min = 1.0, 90min = 1.5.
func SessionPrice(durationMinutes int) decimal.Decimal {
	return decimal.NewFromInt(int64(durationMinutes)).Div(decimal.NewFromInt(60))
}

func (s *BookingService) BookSession(
	ctx context.Context,
	studentID int64,
	input BookSessionInput,
) (*models.ClassSession, error) {
	if input.TeacherID <= 0 || !allowedDurations[input.DurationMinutes] {
		return nil, ErrInvalidInput
	}
	if !input.ScheduledAt.After(time.Now()) {
		return nil, ErrInvalidInput
	}
	if studentID == input.TeacherID {
		return nil, ErrInvalidInput
	}

	teacher, err := s.userRepo.GetByID(ctx, input.TeacherID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTeacherNotFound
		}
		return nil, err
	}
	if teacher.Role != models.RoleTeacher {
		return nil, ErrInvalidInput
	}

	if input.IsTrial {
		profile, err := s.profileRepo.GetByID(ctx, studentID)
		if err != nil {
			return nil, err
		}
		if !profile.IsTrial {
			return nil, ErrTrialNotAvailable
		}
	}

	price := decimal.Zero
	if !input.IsTrial {
		price = SessionPrice(input.DurationMinutes)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txSessionRepo := repository.NewSessionRepository(tx)
	txCreditRepo := repository.NewCreditRepository(tx)

	// Serializes a student's racing bookings so two requests cannot both
	// grab the last half credit.
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", studentID); err != nil {
		return nil, err
	}

	hasConflict, err := txSessionRepo.HasTeacherConflict(
		ctx,
		input.TeacherID,
		input.ScheduledAt.UTC(),
		input.DurationMinutes,
	)
	if err != nil {
		return nil, err
	}
	if hasConflict {
		return nil, ErrConflict
	}

	session, err := txSessionRepo.Create(ctx, repository.CreateSessionInput{
		StudentID:       studentID,
		TeacherID:       input.TeacherID,
		ScheduledAt:     input.ScheduledAt.UTC(),
		DurationMinutes: input.DurationMinutes,
		MeetingLink:     input.MeetingLink,
		IsTrial:         input.IsTrial,
		Price:           price,
	})
	if err != nil {
		return nil, err
	}

	if !input.IsTrial {
		reason := fmt.Sprintf("booking for session %d", session.ID)
		if _, err := deductFromAccount(ctx, txCreditRepo, studentID, price, reason, strconv.FormatInt(studentID, 10)); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return session, nil
}

// CancelSession moves a scheduled session to cancelled and refunds at most
// once, both inside one transaction. Double cancels lose the FOR UPDATE race
// and surface as ErrInvalidStateTransition.
func (s *BookingService) CancelSession(
	ctx context.Context,
	sessionID int64,
	actorID int64,
	role string,
	reason string,
) (*models.ClassSession, CancellationDecision, error) {
	var decision CancellationDecision

	if strings.TrimSpace(reason) == "" {
		return nil, decision, ErrInvalidInput
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, decision, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txSessionRepo := repository.NewSessionRepository(tx)
	txCreditRepo := repository.NewCreditRepository(tx)

	session, err := txSessionRepo.GetByIDForUpdate(ctx, sessionID)
	if err != nil {
		return nil, decision, err
	}
	if !canCancelSession(role, actorID, session) {
		return nil, decision, ErrForbidden
	}
	if session.Status != models.SessionStatusScheduled {
		return nil, decision, ErrInvalidStateTransition
	}

	now := time.Now().UTC()
	if !now.Before(session.ScheduledAt) {
		// Past the start it is no-show territory, handled by the sweep.
		return nil, decision, ErrInvalidStateTransition
	}

	policy := NewCancellationPolicy(
		s.settings.GetInt(ctx, repository.SettingCancellationCutoffHours, DefaultCancellationCutoffHours),
	)
	decision = policy.Decide(session.ScheduledAt, now)

	refundDue := !decision.Penalized && !session.RefundIssued && session.Price.IsPositive()

	cancelled, err := txSessionRepo.CancelIfScheduled(ctx, sessionID, reason, refundDue)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, decision, ErrConcurrencyConflict
		}
		return nil, decision, err
	}

	if refundDue {
		refundReason := fmt.Sprintf("refund for cancelled session %d", sessionID)
		if _, err := creditAccount(
			ctx,
			txCreditRepo,
			models.TransactionTypeRefund,
			session.StudentID,
			session.Price,
			refundReason,
			strconv.FormatInt(actorID, 10),
		); err != nil {
			return nil, decision, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, decision, err
	}

	return cancelled, decision, nil
}

// RescheduleSession retires the old row and spawns a replacement in one
// transaction, with no ledger movement: the credits deducted at booking time
// carry over to the new session.
func (s *BookingService) RescheduleSession(
	ctx context.Context,
	sessionID int64,
	actorID int64,
	role string,
	newStart time.Time,
) (*models.ClassSession, error) {
	if !newStart.After(time.Now()) {
		return nil, ErrInvalidInput
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txSessionRepo := repository.NewSessionRepository(tx)

	session, err := txSessionRepo.GetByIDForUpdate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !canCancelSession(role, actorID, session) {
		return nil, ErrForbidden
	}
	if session.Status != models.SessionStatusScheduled {
		return nil, ErrInvalidStateTransition
	}

	now := time.Now().UTC()
	if !now.Before(session.ScheduledAt) {
		return nil, ErrInvalidStateTransition
	}

	policy := NewCancellationPolicy(
		s.settings.GetInt(ctx, repository.SettingCancellationCutoffHours, DefaultCancellationCutoffHours),
	)
	if policy.Decide(session.ScheduledAt, now).Penalized {
		return nil, ErrReschedulePenalized
	}

	hasConflict, err := txSessionRepo.HasTeacherConflictExcludingSession(
		ctx,
		session.TeacherID,
		newStart.UTC(),
		session.DurationMinutes,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	if hasConflict {
		return nil, ErrConflict
	}

	if _, err := txSessionRepo.UpdateStatusIfCurrent(
		ctx,
		sessionID,
		models.SessionStatusScheduled,
		models.SessionStatusRescheduled,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConcurrencyConflict
		}
		return nil, err
	}

	replacement, err := txSessionRepo.Create(ctx, repository.CreateSessionInput{
		StudentID:       session.StudentID,
		TeacherID:       session.TeacherID,
		ScheduledAt:     newStart.UTC(),
		DurationMinutes: session.DurationMinutes,
		MeetingLink:     session.MeetingLink,
		IsTrial:         session.IsTrial,
		Price:           session.Price,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return replacement, nil
}

// JoinSession gates the meeting link by the admin-configured join window and
// records attendance; the first join at or after the start advances the
// session to in_progress.
func (s *BookingService) JoinSession(
	ctx context.Context,
	sessionID int64,
	actorID int64,
	role string,
) (*models.ClassSession, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !canAccessSession(role, actorID, session) {
		return nil, ErrForbidden
	}
	if session.Status != models.SessionStatusScheduled && session.Status != models.SessionStatusInProgress {
		return nil, ErrInvalidStateTransition
	}

	window := NewJoinWindow(
		s.settings.GetInt(ctx, repository.SettingJoinWindowMinutes, DefaultJoinWindowMinutes),
		s.settings.GetInt(ctx, repository.SettingJoinGraceMinutes, DefaultJoinGraceMinutes),
	)
	now := time.Now().UTC()
	if !window.CanJoin(session.ScheduledAt, now) {
		return nil, ErrJoinWindowClosed
	}

	session, err = s.sessionRepo.RecordFirstJoin(ctx, sessionID, now)
	if err != nil {
		return nil, err
	}

	if session.Status == models.SessionStatusScheduled && !now.Before(session.ScheduledAt) {
		updated, err := s.sessionRepo.UpdateStatusIfCurrent(
			ctx,
			sessionID,
			models.SessionStatusScheduled,
			models.SessionStatusInProgress,
		)
		if err == nil {
			session = updated
		} else if !errors.Is(err, pgx.ErrNoRows) {
			// A lost race means the sweep got there first; anything else is real.
			return nil, err
		}
	}

	return session, nil
}

func (s *BookingService) GetSession(
	ctx context.Context,
	actorID int64,
	role string,
	sessionID int64,
) (*models.ClassSession, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !canAccessSession(role, actorID, session) {
		return nil, ErrForbidden
	}
	return session, nil
}

func (s *BookingService) ListSessions(
	ctx context.Context,
	actorID int64,
	role string,
	filter repository.SessionListFilter,
) ([]models.ClassSession, error) {
	return s.sessionRepo.List(ctx, repository.SessionListFilter{
		ActorID:   actorID,
		Role:      role,
		Status:    filter.Status,
		Timeframe: filter.Timeframe,
	})
}

func canAccessSession(role string, actorID int64, session *models.ClassSession) bool {
	switch role {
	case models.RoleStudent:
		return session.StudentID == actorID
	case models.RoleTeacher:
		return session.TeacherID == actorID
	case models.RoleAdmin:
		return true
	default:
		return false
	}
}

// canCancelSession: the student who booked, or an admin. Teachers do not
// cancel through this flow.
func canCancelSession(role string, actorID int64, session *models.ClassSession) bool {
	if role == models.RoleAdmin {
		return true
	}
	return role == models.RoleStudent && session.StudentID == actorID
}
