package services

import (
	"fmt"
	"time"
)

const DefaultCancellationCutoffHours = 12

// CancellationDecision says whether a cancellation forfeits its credits.
type CancellationDecision struct {
	Penalized bool   `json:"penalized"`
	Message   string `json:"message"`
}

// CancellationPolicy is a pure function of "now" against the session start.
// Callers must ensure now < sessionStart; a session whose start has passed is
// a no-show, not a cancellation.
type CancellationPolicy struct {
	cutoff time.Duration
}

func NewCancellationPolicy(cutoffHours int) CancellationPolicy {
	if cutoffHours <= 0 {
		cutoffHours = DefaultCancellationCutoffHours
	}
	return CancellationPolicy{cutoff: time.Duration(cutoffHours) * time.Hour}
}

func (p CancellationPolicy) Decide(sessionStart, now time.Time) CancellationDecision {
	hours := int(p.cutoff / time.Hour)
	if sessionStart.Sub(now) <= p.cutoff {
		return CancellationDecision{
			Penalized: true,
			Message: fmt.Sprintf(
				"Cancelled less than %d hours before the lesson: the teacher is still compensated, so no credits are refunded.",
				hours,
			),
		}
	}
	return CancellationDecision{
		Penalized: false,
		Message: fmt.Sprintf(
			"Cancelled more than %d hours before the lesson: credits are refunded in full.",
			hours,
		),
	}
}
