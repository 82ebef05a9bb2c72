package services

import "time"

const (
	DefaultJoinWindowMinutes = 10
	DefaultJoinGraceMinutes  = 30
)

// JoinWindow decides whether a participant may open the meeting link right
// now. The window runs from `before` minutes ahead of the start through
// `grace` minutes after it, inclusive at both edges.
type JoinWindow struct {
	before time.Duration
	grace  time.Duration
}

func NewJoinWindow(beforeMinutes, graceMinutes int) JoinWindow {
	if beforeMinutes < 0 {
		beforeMinutes = DefaultJoinWindowMinutes
	}
	if graceMinutes < 0 {
		graceMinutes = DefaultJoinGraceMinutes
	}
	return JoinWindow{
		before: time.Duration(beforeMinutes) * time.Minute,
		grace:  time.Duration(graceMinutes) * time.Minute,
	}
}

func (w JoinWindow) CanJoin(sessionStart, now time.Time) bool {
	opens := sessionStart.Add(-w.before)
	closes := sessionStart.Add(w.grace)
	return !now.Before(opens) && !now.After(closes)
}
