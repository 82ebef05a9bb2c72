package models

import "time"

// StudentProfile tracks a student's trial standing. Once IsTrial flips to
// false it never flips back; ConvertedAt is set in the same write.
type StudentProfile struct {
	ID             int64      `json:"id"`
	IsTrial        bool       `json:"is_trial"`
	TrialCompleted bool       `json:"trial_completed"`
	ConvertedAt    *time.Time `json:"converted_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type TrialStatus struct {
	IsTrial        bool       `json:"is_trial"`
	TrialCompleted bool       `json:"trial_completed"`
	ConvertedAt    *time.Time `json:"converted_at"`
	ShouldRedirect bool       `json:"should_redirect"`
}
