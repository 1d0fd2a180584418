// Package server is the realtime relay: websocket clients join a group and
// receive pet_update frames, while HTTP triggers and activity logs publish to
// the group through a channel.Bus.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/milk9111/petsprite/channel"
	"github.com/milk9111/petsprite/mood"
)

const (
	defaultReadHeaderTimeout = 5 * time.Second
	defaultShutdownTimeout   = 10 * time.Second
	defaultActivityHold      = 3 * time.Second

	assetsMaxAge = 30 * 24 * time.Hour
)

// Config holds relay settings.
type Config struct {
	HTTPAddr string
	// Bus carries commands between connections. Defaults to an in-process
	// channel.Hub.
	Bus channel.Bus
	// DefaultGroup replaces channel.DefaultGroup for requests that name no
	// group.
	DefaultGroup string
	// AssetsDir serves /assets/ from disk instead of the embedded atlas.
	AssetsDir string
	// Evaluator derives resting clips from activity logs. Defaults to
	// mood.DefaultRules.
	Evaluator mood.Evaluator
	// ActivityHold is how long an activity clip plays before the derived
	// state is published. Zero uses the default; negative publishes the
	// derived state immediately.
	ActivityHold time.Duration

	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration

	// Now is the clock used for activity logs. Defaults to time.Now.
	Now func() time.Time
}

// Server is a configured relay.
type Server struct {
	httpAddr        string
	shutdownTimeout time.Duration
	httpServer      *http.Server
	handler         http.Handler

	bus          channel.Bus
	ownsBus      bool
	defaultGroup string
	pets         *petStore
}

// New builds a relay from config.
func New(config Config) (*Server, error) {
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = defaultReadHeaderTimeout
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = defaultShutdownTimeout
	}
	if config.ActivityHold == 0 {
		config.ActivityHold = defaultActivityHold
	}
	if config.Evaluator == nil {
		config.Evaluator = mood.DefaultRules()
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	s := &Server{
		httpAddr:        httpAddr,
		shutdownTimeout: config.ShutdownTimeout,
		bus:             config.Bus,
		defaultGroup:    strings.TrimSpace(config.DefaultGroup),
	}
	if s.bus == nil {
		s.bus = channel.NewHub()
		s.ownsBus = true
	}
	if s.defaultGroup == "" {
		s.defaultGroup = channel.DefaultGroup
	}
	s.pets = newPetStore(config.Evaluator, config.ActivityHold, config.Now, s.publish)

	assets, err := assetsHandler(config.AssetsDir)
	if err != nil {
		return nil, err
	}
	s.handler = s.routes(assets)
	s.httpServer = &http.Server{
		Addr:              httpAddr,
		Handler:           s.handler,
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}
	return s, nil
}

// Handler returns the relay routes.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run creates a relay and serves it until ctx ends.
func Run(ctx context.Context, config Config) error {
	server, err := New(config)
	if err != nil {
		return fmt.Errorf("init relay: %w", err)
	}
	defer server.Close()

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve relay: %w", err)
	}
	return nil
}

// ListenAndServe runs the HTTP server until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.httpAddr == "" {
		return errors.New("http address is required")
	}

	serveErr := make(chan error, 1)
	log.Printf("server: listening addr=%s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close stops pending activity timers and, if the relay created its own hub,
// closes it.
func (s *Server) Close() {
	s.pets.close()
	if s.ownsBus {
		if closer, ok := s.bus.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	}
}

func (s *Server) group(name string) string {
	if name = strings.TrimSpace(name); name == "" {
		return s.defaultGroup
	}
	return name
}

func (s *Server) publish(group string, cmd channel.Command) {
	if err := s.bus.Publish(context.Background(), group, cmd); err != nil {
		log.Printf("server: publish failed group=%q state=%q err=%v", group, cmd.Clip, err)
	}
}
