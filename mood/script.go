package mood

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
)

// Script evaluates a tengo rule script. The script sees xp, goals_met, meals,
// water, exercise and sleep and must assign the clip name to state:
//
//	state = xp < 50 ? "sick" : "idle"
type Script struct {
	Goals Goals

	mu       sync.Mutex
	compiled *tengo.Compiled
}

// NewScript compiles src.
func NewScript(src []byte, goals Goals) (*Script, error) {
	script := tengo.NewScript(src)
	_ = script.Add("xp", 0)
	_ = script.Add("goals_met", 0)
	_ = script.Add("meals", 0)
	_ = script.Add("water", 0)
	_ = script.Add("exercise", 0)
	_ = script.Add("sleep", 0.0)
	_ = script.Add("state", "")

	script.SetImports(stdlib.GetModuleMap("math", "text", "times"))

	compiled, err := script.Compile()
	if err != nil {
		return nil, fmt.Errorf("mood: compile script: %w", err)
	}
	return &Script{Goals: goals, compiled: compiled}, nil
}

// LoadScript reads and compiles a rule script from disk.
func LoadScript(path string, goals Goals) (*Script, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mood: load script %s: %w", path, err)
	}
	return NewScript(src, goals)
}

func (s *Script) Evaluate(l Log, now time.Time) (Result, error) {
	xp := l.XP(now, s.Goals)

	s.mu.Lock()
	defer s.mu.Unlock()

	vars := map[string]any{
		"xp":        xp,
		"goals_met": l.GoalsMet(s.Goals),
		"meals":     l.Meals,
		"water":     l.Water,
		"exercise":  l.Exercise,
		"sleep":     l.SleepHours,
		"state":     "",
	}
	for name, value := range vars {
		if err := s.compiled.Set(name, value); err != nil {
			return Result{}, fmt.Errorf("mood: set %s: %w", name, err)
		}
	}
	if err := s.compiled.Run(); err != nil {
		return Result{}, fmt.Errorf("mood: run script: %w", err)
	}

	clip := strings.TrimSpace(s.compiled.Get("state").String())
	if clip == "" {
		return Result{}, fmt.Errorf("mood: script did not set state")
	}
	return Result{Clip: clip, XP: xp}, nil
}
