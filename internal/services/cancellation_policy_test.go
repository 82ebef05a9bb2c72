package services

import (
	"testing"
	"time"
)

func TestCancellationPolicyRefundsOutsideCutoff(t *testing.T) {
	policy := NewCancellationPolicy(12)
	start := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)

	decision := policy.Decide(start, start.Add(-13*time.Hour))
	if decision.Penalized {
		t.Fatalf("expected free cancellation 13h before start, got penalized: %s", decision.Message)
	}
	if decision.Message == "" {
		t.Fatal("expected a message explaining the refund")
	}
}

func TestCancellationPolicyPenalizesInsideCutoff(t *testing.T) {
	policy := NewCancellationPolicy(12)
	start := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)

	decision := policy.Decide(start, start.Add(-11*time.Hour))
	if !decision.Penalized {
		t.Fatal("expected penalized cancellation 11h before start")
	}
}

func TestCancellationPolicyPenalizesAtExactCutoff(t *testing.T) {
	policy := NewCancellationPolicy(12)
	start := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)

	// sessionStart - now <= 12h penalizes, so exactly 12h is penalized.
	decision := policy.Decide(start, start.Add(-12*time.Hour))
	if !decision.Penalized {
		t.Fatal("expected penalized cancellation at exactly 12h before start")
	}

	decision = policy.Decide(start, start.Add(-12*time.Hour-time.Second))
	if decision.Penalized {
		t.Fatal("expected free cancellation one second outside the cutoff")
	}
}

func TestCancellationPolicyDefaultsCutoff(t *testing.T) {
	policy := NewCancellationPolicy(0)
	start := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)

	if !policy.Decide(start, start.Add(-11*time.Hour)).Penalized {
		t.Fatal("expected the default 12h cutoff to apply when configured as 0")
	}
}
