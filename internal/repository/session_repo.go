package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/navid-f/TutorAppBack/internal/models"
)

type CreateSessionInput struct {
	StudentID       int64
	TeacherID       int64
	ScheduledAt     time.Time
	DurationMinutes int
	MeetingLink     *string
	IsTrial         bool
	Price           decimal.Decimal
}

type SessionListFilter struct {
	ActorID   int64
	Role      string
	Status    string
	Timeframe string
}

const sessionColumns = `id, student_id, teacher_id, scheduled_at, duration_min, meeting_link,
		is_trial, price, status, cancellation_reason, refund_issued, first_joined_at,
		created_at, updated_at`

type SessionRepository struct {
	db DBTX
}

func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

func scanSession(row pgx.Row) (*models.ClassSession, error) {
	var session models.ClassSession
	err := row.Scan(
		&session.ID,
		&session.StudentID,
		&session.TeacherID,
		&session.ScheduledAt,
		&session.DurationMinutes,
		&session.MeetingLink,
		&session.IsTrial,
		&session.Price,
		&session.Status,
		&session.CancellationReason,
		&session.RefundIssued,
		&session.FirstJoinedAt,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepository) Create(
	ctx context.Context,
	input CreateSessionInput,
) (*models.ClassSession, error) {
	query := `
		INSERT INTO class_sessions (student_id, teacher_id, scheduled_at, duration_min, meeting_link, is_trial, price, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'scheduled')
		RETURNING ` + sessionColumns

	return scanSession(r.db.QueryRow(
		ctx,
		query,
		input.StudentID,
		input.TeacherID,
		input.ScheduledAt,
		input.DurationMinutes,
		input.MeetingLink,
		input.IsTrial,
		input.Price,
	))
}

func (r *SessionRepository) GetByID(ctx context.Context, sessionID int64) (*models.ClassSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM class_sessions
		WHERE id = $1
	`
	return scanSession(r.db.QueryRow(ctx, query, sessionID))
}

func (r *SessionRepository) GetByIDForUpdate(
	ctx context.Context,
	sessionID int64,
) (*models.ClassSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM class_sessions
		WHERE id = $1
		FOR UPDATE
	`
	return scanSession(r.db.QueryRow(ctx, query, sessionID))
}

func (r *SessionRepository) List(
	ctx context.Context,
	filter SessionListFilter,
) ([]models.ClassSession, error) {
	actorColumn := "student_id"
	if filter.Role == models.RoleTeacher {
		actorColumn = "teacher_id"
	}

	args := []any{filter.ActorID}
	whereParts := []string{fmt.Sprintf("%s = $1", actorColumn)}

	if status := strings.TrimSpace(filter.Status); status != "" {
		args = append(args, status)
		whereParts = append(whereParts, fmt.Sprintf("status = $%d", len(args)))
	}

	switch strings.TrimSpace(filter.Timeframe) {
	case "upcoming":
		whereParts = append(
			whereParts,
			"(scheduled_at + (duration_min * INTERVAL '1 minute')) > NOW()",
		)
	case "past":
		whereParts = append(
			whereParts,
			"(scheduled_at + (duration_min * INTERVAL '1 minute')) <= NOW()",
		)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM class_sessions
		WHERE %s
		ORDER BY scheduled_at ASC, id ASC
	`, sessionColumns, strings.Join(whereParts, " AND "))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]models.ClassSession, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

// UpdateStatusIfCurrent is a compare-and-swap on the status column. A lost
// race surfaces as pgx.ErrNoRows, never as a double-applied transition.
func (r *SessionRepository) UpdateStatusIfCurrent(
	ctx context.Context,
	sessionID int64,
	currentStatus models.SessionStatus,
	nextStatus models.SessionStatus,
) (*models.ClassSession, error) {
	query := `
		UPDATE class_sessions
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + sessionColumns

	return scanSession(r.db.QueryRow(ctx, query, sessionID, currentStatus, nextStatus))
}

// CancelIfScheduled flips a scheduled session to cancelled, recording the
// reason and whether a refund accompanies it, in one conditional write.
func (r *SessionRepository) CancelIfScheduled(
	ctx context.Context,
	sessionID int64,
	reason string,
	refundIssued bool,
) (*models.ClassSession, error) {
	query := `
		UPDATE class_sessions
		SET status = 'cancelled', cancellation_reason = $2, refund_issued = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'scheduled'
		RETURNING ` + sessionColumns

	return scanSession(r.db.QueryRow(ctx, query, sessionID, reason, refundIssued))
}

// RecordFirstJoin stamps the first successful join; later joins keep the
// original timestamp.
func (r *SessionRepository) RecordFirstJoin(
	ctx context.Context,
	sessionID int64,
	joinedAt time.Time,
) (*models.ClassSession, error) {
	query := `
		UPDATE class_sessions
		SET first_joined_at = COALESCE(first_joined_at, $2), updated_at = NOW()
		WHERE id = $1
		RETURNING ` + sessionColumns

	return scanSession(r.db.QueryRow(ctx, query, sessionID, joinedAt))
}

// ListDue returns sessions the status sweep may need to advance: scheduled
// sessions whose start has passed and in-progress sessions whose end has.
func (r *SessionRepository) ListDue(ctx context.Context, now time.Time) ([]models.ClassSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM class_sessions
		WHERE (status = 'scheduled' AND scheduled_at <= $1)
		   OR (status = 'in_progress' AND (scheduled_at + (duration_min * INTERVAL '1 minute')) <= $1)
		ORDER BY scheduled_at ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]models.ClassSession, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

func (r *SessionRepository) HasTeacherConflict(
	ctx context.Context,
	teacherID int64,
	requestedTime time.Time,
	durationMinutes int,
) (bool, error) {
	return r.hasConflict(ctx, teacherID, requestedTime, durationMinutes, 0)
}

func (r *SessionRepository) HasTeacherConflictExcludingSession(
	ctx context.Context,
	teacherID int64,
	requestedTime time.Time,
	durationMinutes int,
	excludedSessionID int64,
) (bool, error) {
	return r.hasConflict(ctx, teacherID, requestedTime, durationMinutes, excludedSessionID)
}

func (r *SessionRepository) hasConflict(
	ctx context.Context,
	teacherID int64,
	requestedTime time.Time,
	durationMinutes int,
	excludedSessionID int64,
) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM class_sessions
			WHERE teacher_id = $1
			  AND id <> $4
			  AND status IN ('scheduled', 'in_progress')
			  AND scheduled_at < ($2::timestamptz + ($3::int * INTERVAL '1 minute'))
			  AND (scheduled_at + (duration_min * INTERVAL '1 minute')) > $2::timestamptz
		)
	`
	var hasConflict bool
	if err := r.db.QueryRow(ctx, query, teacherID, requestedTime, durationMinutes, excludedSessionID).Scan(&hasConflict); err != nil {
		return false, err
	}
	return hasConflict, nil
}
