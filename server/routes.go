package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"golang.org/x/net/websocket"

	"github.com/milk9111/petsprite/assets"
	"github.com/milk9111/petsprite/channel"
	"github.com/milk9111/petsprite/mood"
)

func (s *Server) routes(assetFiles http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	wsHandler := websocket.Handler(s.handleWSConn)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		wsHandler.ServeHTTP(w, r)
	})

	mux.HandleFunc("GET /trigger/{state}", s.handleTrigger)
	mux.HandleFunc("POST /trigger/{state}", s.handleTrigger)
	mux.HandleFunc("POST /activity/{kind}", s.handleActivity)
	mux.HandleFunc("GET /mood", s.handleMood)
	mux.Handle("GET /assets/", http.StripPrefix("/assets/", cacheFor(assetFiles)))
	return mux
}

type triggerResponse struct {
	OK    bool   `json:"ok"`
	State string `json:"state"`
	Group string `json:"group"`
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	state := strings.TrimSpace(r.PathValue("state"))
	if state == "" {
		writeError(w, http.StatusBadRequest, "state is required")
		return
	}
	query := r.URL.Query()
	xp, err := optionalInt(query.Get("xp"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "xp must be an integer")
		return
	}
	level, err := optionalInt(query.Get("level"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "level must be an integer")
		return
	}

	group := s.group(query.Get("group"))
	cmd := channel.Command{Clip: state, XP: xp, Level: level}
	if err := s.bus.Publish(r.Context(), group, cmd); err != nil {
		log.Printf("server: trigger publish failed group=%q state=%q err=%v", group, state, err)
		writeError(w, http.StatusServiceUnavailable, "publish failed")
		return
	}
	writeJSON(w, http.StatusOK, triggerResponse{OK: true, State: state, Group: group})
}

type activityResponse struct {
	OK       bool   `json:"ok"`
	Activity string `json:"activity"`
	Group    string `json:"group"`
	// Playing is the clip published right away; State is where the pet
	// settles once the activity clip has played.
	Playing  string `json:"playing"`
	State    string `json:"state"`
	XP       int    `json:"xp"`
	GoalsMet int    `json:"goals_met"`
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	activity, err := mood.ParseActivity(r.PathValue("kind"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	query := r.URL.Query()
	amount := 1.0
	if raw := strings.TrimSpace(query.Get("amount")); raw != "" {
		amount, err = strconv.ParseFloat(raw, 64)
		if err != nil || amount < 0 {
			writeError(w, http.StatusBadRequest, "amount must be a non-negative number")
			return
		}
	} else if activity == mood.Sleep {
		writeError(w, http.StatusBadRequest, "amount is required for sleep")
		return
	}

	group := s.group(query.Get("group"))
	outcome, err := s.pets.record(group, activity, amount)
	if err != nil {
		log.Printf("server: activity failed group=%q activity=%s err=%v", group, activity, err)
		writeError(w, http.StatusInternalServerError, "mood evaluation failed")
		return
	}
	writeJSON(w, http.StatusOK, activityResponse{
		OK:       true,
		Activity: string(activity),
		Group:    group,
		Playing:  outcome.playing,
		State:    outcome.result.Clip,
		XP:       outcome.result.XP,
		GoalsMet: outcome.goalsMet,
	})
}

type moodResponse struct {
	Group      string  `json:"group"`
	Meals      int     `json:"meals"`
	Water      int     `json:"water"`
	Exercise   int     `json:"exercise"`
	SleepHours float64 `json:"sleep_hours"`
	State      string  `json:"state"`
	XP         int     `json:"xp"`
	GoalsMet   int     `json:"goals_met"`
}

func (s *Server) handleMood(w http.ResponseWriter, r *http.Request) {
	group := s.group(r.URL.Query().Get("group"))
	l, result, err := s.pets.status(group)
	if err != nil {
		log.Printf("server: mood evaluation failed group=%q err=%v", group, err)
		writeError(w, http.StatusInternalServerError, "mood evaluation failed")
		return
	}
	writeJSON(w, http.StatusOK, moodResponse{
		Group:      group,
		Meals:      l.Meals,
		Water:      l.Water,
		Exercise:   l.Exercise,
		SleepHours: l.SleepHours,
		State:      result.Clip,
		XP:         result.XP,
		GoalsMet:   l.GoalsMet(goalsOf(s.pets.eval)),
	})
}

func assetsHandler(dir string) (http.Handler, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return http.FileServerFS(assets.FS()), nil
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("assets dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("assets dir %s is not a directory", dir)
	}
	return http.FileServer(http.Dir(dir)), nil
}

func cacheFor(next http.Handler) http.Handler {
	value := fmt.Sprintf("public, max-age=%d", int(assetsMaxAge.Seconds()))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", value)
		next.ServeHTTP(w, r)
	})
}

func optionalInt(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("not an integer")
	}
	return n, nil
}

type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: write response: %v", err)
	}
}
