package server

import (
	"log"
	"sync"
	"time"

	"github.com/milk9111/petsprite/channel"
	"github.com/milk9111/petsprite/mood"
)

// petStore keeps one activity log per group and schedules the return from an
// activity clip to the derived state.
type petStore struct {
	eval    mood.Evaluator
	hold    time.Duration
	now     func() time.Time
	publish func(group string, cmd channel.Command)

	mu     sync.Mutex
	pets   map[string]*petMood
	closed bool
}

type petMood struct {
	log     mood.Log
	pending *time.Timer
	// seq invalidates a timer that fired while a newer activity was being
	// recorded.
	seq uint64
}

type activityOutcome struct {
	playing  string
	result   mood.Result
	goalsMet int
}

func newPetStore(eval mood.Evaluator, hold time.Duration, now func() time.Time, publish func(string, channel.Command)) *petStore {
	return &petStore{
		eval:    eval,
		hold:    hold,
		now:     now,
		publish: publish,
		pets:    make(map[string]*petMood),
	}
}

func (s *petStore) record(group string, activity mood.Activity, amount float64) (activityOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pets[group]
	if !ok {
		p = &petMood{}
		s.pets[group] = p
	}
	now := s.now()
	next := p.log
	if err := next.Record(activity, amount, now); err != nil {
		return activityOutcome{}, err
	}
	result, err := s.eval.Evaluate(next, now)
	if err != nil {
		return activityOutcome{}, err
	}
	p.log = next

	p.seq++
	if p.pending != nil {
		p.pending.Stop()
		p.pending = nil
	}

	outcome := activityOutcome{playing: result.Clip, result: result, goalsMet: next.GoalsMet(goalsOf(s.eval))}
	clip, animated := mood.ActivityClip(activity)
	if !animated || s.hold < 0 || s.closed {
		s.publish(group, channel.Command{Clip: result.Clip, XP: result.XP})
		return outcome, nil
	}

	outcome.playing = clip
	s.publish(group, channel.Command{Clip: clip, XP: result.XP})
	seq := p.seq
	p.pending = time.AfterFunc(s.hold, func() { s.settle(group, seq) })
	return outcome, nil
}

// settle publishes the derived state once an activity clip has played.
func (s *petStore) settle(group string, seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pets[group]
	if !ok || s.closed || p.seq != seq {
		return
	}
	p.pending = nil
	result, err := s.eval.Evaluate(p.log, s.now())
	if err != nil {
		log.Printf("server: settle failed group=%q err=%v", group, err)
		return
	}
	s.publish(group, channel.Command{Clip: result.Clip, XP: result.XP})
}

// status evaluates group's log without recording anything.
func (s *petStore) status(group string) (mood.Log, mood.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var l mood.Log
	if p, ok := s.pets[group]; ok {
		l = p.log
	}
	result, err := s.eval.Evaluate(l, s.now())
	if err != nil {
		return mood.Log{}, mood.Result{}, err
	}
	return l, result, nil
}

func (s *petStore) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for _, p := range s.pets {
		if p.pending != nil {
			p.pending.Stop()
			p.pending = nil
		}
	}
}

func goalsOf(eval mood.Evaluator) mood.Goals {
	switch e := eval.(type) {
	case mood.Rules:
		return e.Goals
	case *mood.Script:
		return e.Goals
	default:
		return mood.DefaultGoals
	}
}
