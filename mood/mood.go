// Package mood turns logged health activities into the clip a pet should
// show.
package mood

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Activity is something a user logs.
type Activity string

const (
	Meals    Activity = "meals"
	Water    Activity = "water"
	Exercise Activity = "exercise"
	Sleep    Activity = "sleep"
)

// Clip names produced by the default rules.
const (
	ClipIdle      = "idle"
	ClipSick      = "sick"
	ClipCelebrate = "celebrate"
	ClipEat       = "eat"
	ClipWalk      = "walk"
)

// ErrUnknownActivity is returned by Record for unsupported activities.
var ErrUnknownActivity = errors.New("mood: unknown activity")

// decayPerHour is the XP lost for every hour without a logged activity.
const decayPerHour = 5.0

// Goals are the daily targets.
type Goals struct {
	Meals      int
	Water      int
	Exercise   int
	SleepHours float64
}

// DefaultGoals: three meals, eight glasses of water, one workout and eight
// hours of sleep.
var DefaultGoals = Goals{Meals: 3, Water: 8, Exercise: 1, SleepHours: 8}

// Log is one pet's activity record for the day.
type Log struct {
	Meals        int
	Water        int
	Exercise     int
	SleepHours   float64
	LastActivity time.Time
}

// ParseActivity accepts the activity names used in URLs and forms.
func ParseActivity(s string) (Activity, error) {
	switch a := Activity(strings.ToLower(strings.TrimSpace(s))); a {
	case Meals, Water, Exercise, Sleep:
		return a, nil
	case "meal":
		return Meals, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownActivity, s)
	}
}

// Record adds amount of activity a. Sleep replaces the logged hours; the other
// activities accumulate.
func (l *Log) Record(a Activity, amount float64, now time.Time) error {
	if amount < 0 {
		return fmt.Errorf("mood: negative amount %v", amount)
	}
	switch a {
	case Meals:
		l.Meals += int(amount)
	case Water:
		l.Water += int(amount)
	case Exercise:
		l.Exercise += int(amount)
	case Sleep:
		l.SleepHours = amount
	default:
		return fmt.Errorf("%w: %q", ErrUnknownActivity, a)
	}
	l.LastActivity = now
	return nil
}

// XP scores progress towards g out of 100, less decayPerHour for every hour
// since the last activity.
func (l Log) XP(now time.Time, g Goals) int {
	xp := progress(float64(l.Meals), float64(g.Meals))*25 +
		progress(float64(l.Water), float64(g.Water))*25 +
		progress(float64(l.Exercise), float64(g.Exercise))*30 +
		progress(l.SleepHours, g.SleepHours)*20

	if !l.LastActivity.IsZero() && now.After(l.LastActivity) {
		xp -= now.Sub(l.LastActivity).Hours() * decayPerHour
	}
	return int(math.Round(math.Max(0, xp)))
}

// GoalsMet counts the goals reached.
func (l Log) GoalsMet(g Goals) int {
	met := 0
	if l.Meals >= g.Meals {
		met++
	}
	if l.Water >= g.Water {
		met++
	}
	if l.Exercise >= g.Exercise {
		met++
	}
	if l.SleepHours >= g.SleepHours {
		met++
	}
	return met
}

func progress(done, goal float64) float64 {
	if goal <= 0 {
		return 1
	}
	return math.Min(done/goal, 1)
}

// ActivityClip returns the clip shown briefly while an activity happens.
// Activities without their own animation report false.
func ActivityClip(a Activity) (string, bool) {
	switch a {
	case Meals:
		return ClipEat, true
	case Exercise:
		return ClipWalk, true
	default:
		return "", false
	}
}

// Result is an evaluated mood.
type Result struct {
	Clip string
	XP   int
}

// Evaluator derives a pet's resting clip from its log.
type Evaluator interface {
	Evaluate(l Log, now time.Time) (Result, error)
}

// Rules is the built-in threshold evaluator.
type Rules struct {
	Goals Goals
	// SickAt and below shows the sick clip.
	SickAt int
	// CelebrateAt and above shows the celebrate clip.
	CelebrateAt int
	// CelebrateGoals met goals also celebrate regardless of XP.
	CelebrateGoals int
}

// DefaultRules returns the standard thresholds.
func DefaultRules() Rules {
	return Rules{Goals: DefaultGoals, SickAt: 30, CelebrateAt: 90, CelebrateGoals: 3}
}

func (r Rules) Evaluate(l Log, now time.Time) (Result, error) {
	xp := l.XP(now, r.Goals)
	return Result{Clip: r.clipFor(xp, l.GoalsMet(r.Goals)), XP: xp}, nil
}

func (r Rules) clipFor(xp, goalsMet int) string {
	switch {
	case goalsMet >= r.CelebrateGoals:
		return ClipCelebrate
	case xp <= r.SickAt:
		return ClipSick
	case xp >= r.CelebrateAt:
		return ClipCelebrate
	default:
		return ClipIdle
	}
}
