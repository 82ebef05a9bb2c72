package repository

import (
	"context"
	"time"

	"github.com/navid-f/TutorAppBack/internal/models"
)

type ProfileRepository struct {
	db DBTX
}

func NewProfileRepository(db DBTX) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// CreateEmpty inserts a fresh trial profile for a newly registered student.
func (r *ProfileRepository) CreateEmpty(ctx context.Context, userID int64) error {
	query := `
		INSERT INTO profiles (id, is_trial, trial_completed)
		VALUES ($1, TRUE, FALSE)
	`
	_, err := r.db.Exec(ctx, query, userID)
	return err
}

func (r *ProfileRepository) GetByID(ctx context.Context, userID int64) (*models.StudentProfile, error) {
	query := `
		SELECT id, is_trial, trial_completed, converted_at, created_at, updated_at
		FROM profiles
		WHERE id = $1
	`
	var profile models.StudentProfile
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&profile.ID,
		&profile.IsTrial,
		&profile.TrialCompleted,
		&profile.ConvertedAt,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// ConvertIfTrial flips is_trial exactly once. The is_trial guard in the WHERE
// clause makes concurrent conversion attempts converge on a single winner;
// callers learn the outcome from the returned flag.
func (r *ProfileRepository) ConvertIfTrial(ctx context.Context, userID int64, convertedAt time.Time) (bool, error) {
	query := `
		UPDATE profiles
		SET is_trial = FALSE, trial_completed = TRUE, converted_at = $2, updated_at = NOW()
		WHERE id = $1 AND is_trial
	`
	tag, err := r.db.Exec(ctx, query, userID, convertedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkTrialCompleted records that the student's trial lesson finished, even
// when the profile was already converted manually.
func (r *ProfileRepository) MarkTrialCompleted(ctx context.Context, userID int64) error {
	query := `
		UPDATE profiles
		SET trial_completed = TRUE, updated_at = NOW()
		WHERE id = $1 AND NOT trial_completed
	`
	_, err := r.db.Exec(ctx, query, userID)
	return err
}

// ListPendingTrialConversions finds students who completed their trial lesson
// but whose profile is still marked trial.
func (r *ProfileRepository) ListPendingTrialConversions(ctx context.Context) ([]int64, error) {
	query := `
		SELECT DISTINCT p.id
		FROM profiles p
		JOIN class_sessions s ON s.student_id = p.id
		WHERE p.is_trial
		  AND s.is_trial
		  AND s.status = 'completed'
		ORDER BY p.id
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ids, nil
}
