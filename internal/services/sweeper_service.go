package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/navid-f/TutorAppBack/internal/metrics"
	"github.com/navid-f/TutorAppBack/internal/models"
	"github.com/navid-f/TutorAppBack/internal/repository"
)

const DefaultNoShowGraceMinutes = 30

type sweepSessionStore interface {
	ListDue(ctx context.Context, now time.Time) ([]models.ClassSession, error)
	UpdateStatusIfCurrent(ctx context.Context, sessionID int64, currentStatus, nextStatus models.SessionStatus) (*models.ClassSession, error)
}

type sweepProfileStore interface {
	ConvertIfTrial(ctx context.Context, userID int64, convertedAt time.Time) (bool, error)
	MarkTrialCompleted(ctx context.Context, userID int64) error
}

// SweeperService advances session statuses on wall-clock time. Nothing else
// drives scheduled -> in_progress -> completed, so it runs on a timer and
// from the admin endpoint; conditional writes make overlapping runs harmless.
type SweeperService struct {
	sessionRepo sweepSessionStore
	profileRepo sweepProfileStore
	settings    settingsReader
	logger      *slog.Logger
}

func NewSweeperService(
	sessionRepo sweepSessionStore,
	profileRepo sweepProfileStore,
	settings settingsReader,
	logger *slog.Logger,
) *SweeperService {
	return &SweeperService{
		sessionRepo: sessionRepo,
		profileRepo: profileRepo,
		settings:    settings,
		logger:      logger,
	}
}

type StatusSweepResult struct {
	Started         int `json:"started"`
	Completed       int `json:"completed"`
	NoShows         int `json:"no_shows"`
	ConvertedTrials int `json:"converted_trials"`
	Skipped         int `json:"skipped"`
	Failures        int `json:"failures"`
}

// planTransition decides the next status for one session from time alone.
// A session someone joined runs its course; a session nobody joined becomes a
// no-show once the grace period after its start has passed.
func planTransition(session *models.ClassSession, now time.Time, noShowGrace time.Duration) (models.SessionStatus, bool) {
	switch session.Status {
	case models.SessionStatusScheduled:
		if session.FirstJoinedAt == nil {
			if !now.Before(session.ScheduledAt.Add(noShowGrace)) {
				return models.SessionStatusNoShow, true
			}
			return "", false
		}
		if !now.Before(session.EndsAt()) {
			return models.SessionStatusCompleted, true
		}
		if !now.Before(session.ScheduledAt) {
			return models.SessionStatusInProgress, true
		}
		return "", false
	case models.SessionStatusInProgress:
		if !now.Before(session.EndsAt()) {
			return models.SessionStatusCompleted, true
		}
		return "", false
	default:
		return "", false
	}
}

// UpdateClassStatuses walks every actionable session once. Row failures are
// counted and logged, never fatal to the rest of the batch.
func (s *SweeperService) UpdateClassStatuses(ctx context.Context) (StatusSweepResult, error) {
	var result StatusSweepResult

	now := time.Now().UTC()
	grace := time.Duration(s.settings.GetInt(ctx, repository.SettingNoShowGraceMinutes, DefaultNoShowGraceMinutes)) * time.Minute

	due, err := s.sessionRepo.ListDue(ctx, now)
	if err != nil {
		return result, err
	}

	for i := range due {
		session := &due[i]
		next, ok := planTransition(session, now, grace)
		if !ok {
			continue
		}

		if _, err := s.sessionRepo.UpdateStatusIfCurrent(ctx, session.ID, session.Status, next); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// Another sweep or a user action moved the row first.
				result.Skipped++
				continue
			}
			result.Failures++
			metrics.SweepFailures.Inc()
			s.logger.Error("status sweep failed on session",
				slog.Int64("session_id", session.ID),
				slog.String("from", string(session.Status)),
				slog.String("to", string(next)),
				slog.Any("error", err),
			)
			continue
		}

		metrics.SweepTransitions.WithLabelValues(string(next)).Inc()
		switch next {
		case models.SessionStatusInProgress:
			result.Started++
		case models.SessionStatusNoShow:
			result.NoShows++
		case models.SessionStatusCompleted:
			result.Completed++
			if session.IsTrial {
				if err := s.profileRepo.MarkTrialCompleted(ctx, session.StudentID); err != nil {
					result.Failures++
					metrics.SweepFailures.Inc()
					s.logger.Error("trial conversion failed after completed session",
						slog.Int64("session_id", session.ID),
						slog.Int64("student_id", session.StudentID),
						slog.Any("error", err),
					)
					continue
				}
				converted, err := s.profileRepo.ConvertIfTrial(ctx, session.StudentID, now)
				if err != nil {
					result.Failures++
					metrics.SweepFailures.Inc()
					s.logger.Error("trial conversion failed after completed session",
						slog.Int64("session_id", session.ID),
						slog.Int64("student_id", session.StudentID),
						slog.Any("error", err),
					)
					continue
				}
				if converted {
					result.ConvertedTrials++
					metrics.TrialConversions.Inc()
				}
			}
		}
	}

	return result, nil
}
