package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type SessionStatus string

const (
	SessionStatusScheduled   SessionStatus = "scheduled"
	SessionStatusInProgress  SessionStatus = "in_progress"
	SessionStatusCompleted   SessionStatus = "completed"
	SessionStatusCancelled   SessionStatus = "cancelled"
	SessionStatusNoShow      SessionStatus = "no_show"
	SessionStatusRescheduled SessionStatus = "rescheduled"
)

// ClassSession is one bookable lesson instance. Cancellation is a status,
// never a row removal.
type ClassSession struct {
	ID                 int64           `json:"id"`
	StudentID          int64           `json:"student_id"`
	TeacherID          int64           `json:"teacher_id"`
	ScheduledAt        time.Time       `json:"scheduled_at"`
	DurationMinutes    int             `json:"duration_minutes"`
	MeetingLink        *string         `json:"meeting_link"`
	IsTrial            bool            `json:"is_trial"`
	Price              decimal.Decimal `json:"price"`
	Status             SessionStatus   `json:"status"`
	CancellationReason *string         `json:"cancellation_reason"`
	RefundIssued       bool            `json:"refund_issued"`
	FirstJoinedAt      *time.Time      `json:"first_joined_at"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// EndsAt is the computed session end used by the status sweep.
func (s *ClassSession) EndsAt() time.Time {
	return s.ScheduledAt.Add(time.Duration(s.DurationMinutes) * time.Minute)
}

type PaginationMeta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}
