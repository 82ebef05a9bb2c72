package services

import (
	"testing"
	"time"
)

func TestJoinWindowBoundsAreInclusive(t *testing.T) {
	window := NewJoinWindow(10, 30)
	start := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"one second before window opens", start.Add(-10*time.Minute - time.Second), false},
		{"exactly at window open", start.Add(-10 * time.Minute), true},
		{"at session start", start, true},
		{"mid grace period", start.Add(15 * time.Minute), true},
		{"exactly at grace end", start.Add(30 * time.Minute), true},
		{"one second after grace end", start.Add(30*time.Minute + time.Second), false},
		{"hours early", start.Add(-2 * time.Hour), false},
		{"hours late", start.Add(2 * time.Hour), false},
	}

	for _, tc := range cases {
		if got := window.CanJoin(start, tc.now); got != tc.want {
			t.Errorf("%s: CanJoin = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestJoinWindowNegativeConfigFallsBackToDefaults(t *testing.T) {
	window := NewJoinWindow(-1, -1)
	start := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)

	if !window.CanJoin(start, start.Add(-10*time.Minute)) {
		t.Fatal("expected default 10 minute pre-start window")
	}
	if !window.CanJoin(start, start.Add(30*time.Minute)) {
		t.Fatal("expected default 30 minute grace period")
	}
	if window.CanJoin(start, start.Add(-11*time.Minute)) {
		t.Fatal("expected join rejected 11 minutes before start")
	}
}
