package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/navid-f/TutorAppBack/internal/metrics"
	"github.com/navid-f/TutorAppBack/internal/models"
)

var (
	ErrAlreadyConverted = errors.New("student is already a regular student")
	ErrNotAuthorized    = errors.New("not authorized to convert students")
)

type trialProfileStore interface {
	GetByID(ctx context.Context, userID int64) (*models.StudentProfile, error)
	ConvertIfTrial(ctx context.Context, userID int64, convertedAt time.Time) (bool, error)
	ListPendingTrialConversions(ctx context.Context) ([]int64, error)
}

// TrialService flips students from trial to regular. Both entry points go
// through the same conditional update, so a student converts exactly once no
// matter how many sweeps and admins race for it.
type TrialService struct {
	profileRepo trialProfileStore
	logger      *slog.Logger
}

func NewTrialService(profileRepo trialProfileStore, logger *slog.Logger) *TrialService {
	return &TrialService{profileRepo: profileRepo, logger: logger}
}

// ManualConversion is the admin-triggered path. An already-converted profile
// reports ErrAlreadyConverted rather than silently succeeding.
func (s *TrialService) ManualConversion(
	ctx context.Context,
	userID int64,
	performedBy int64,
	role string,
) (*models.StudentProfile, error) {
	if role != models.RoleAdmin {
		return nil, ErrNotAuthorized
	}

	converted, err := s.profileRepo.ConvertIfTrial(ctx, userID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if !converted {
		// Either missing or already regular; GetByID tells them apart.
		if _, err := s.profileRepo.GetByID(ctx, userID); err != nil {
			return nil, err
		}
		return nil, ErrAlreadyConverted
	}

	metrics.TrialConversions.Inc()
	s.logger.Info("student manually converted from trial",
		slog.Int64("student_id", userID),
		slog.Int64("performed_by", performedBy),
	)

	return s.profileRepo.GetByID(ctx, userID)
}

type TrialSweepResult struct {
	Converted int `json:"converted"`
	Failures  int `json:"failures"`
}

// ProcessCompletedTrialLessons back-fills conversions for students whose
// trial lesson completed without the status sweep converting them. Safe to
// run concurrently with itself: the per-row conditional update picks one
// winner and the loser just counts nothing.
func (s *TrialService) ProcessCompletedTrialLessons(ctx context.Context) (TrialSweepResult, error) {
	var result TrialSweepResult

	pending, err := s.profileRepo.ListPendingTrialConversions(ctx)
	if err != nil {
		return result, err
	}

	now := time.Now().UTC()
	for _, studentID := range pending {
		converted, err := s.profileRepo.ConvertIfTrial(ctx, studentID, now)
		if err != nil {
			result.Failures++
			s.logger.Error("trial conversion sweep failed on student",
				slog.Int64("student_id", studentID),
				slog.Any("error", err),
			)
			continue
		}
		if converted {
			result.Converted++
			metrics.TrialConversions.Inc()
		}
	}

	return result, nil
}

// CheckStatus backs the dashboard routing decision for freshly converted
// students.
func (s *TrialService) CheckStatus(ctx context.Context, userID int64) (*models.TrialStatus, error) {
	profile, err := s.profileRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &models.TrialStatus{
		IsTrial:        profile.IsTrial,
		TrialCompleted: profile.TrialCompleted,
		ConvertedAt:    profile.ConvertedAt,
		ShouldRedirect: !profile.IsTrial && profile.TrialCompleted,
	}, nil
}
