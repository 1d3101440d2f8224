// Copyright 2025 Takhin Data, Inc.

// Package adminapi exposes the throttle group's live stats, config, and
// throughput-metrics feed over HTTP. It sits outside the core's public API (§6 of
// the core spec draws no HTTP surface into scope) and is wired the way
// Takhin's console package wires its own operator-facing API: chi
// routing, go-chi/cors, a bearer-token gate, and a swaggo-served OpenAPI
// document.
package adminapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/streamcap/throttle/pkg/audit"
	"github.com/streamcap/throttle/pkg/governor"
	"github.com/streamcap/throttle/pkg/logger"
	"github.com/streamcap/throttle/pkg/profiler"
	"github.com/streamcap/throttle/pkg/throttle"
)

// Config tunes the admin API's HTTP surface.
type Config struct {
	Addr           string        `koanf:"addr"`
	GroupID        string        `koanf:"group_id"`
	OperatorSecret string        `koanf:"operator_secret"`
	JWTKey         string        `koanf:"jwt_key"`
	TokenTTL       time.Duration `koanf:"token_ttl"`
	AllowedOrigins []string      `koanf:"allowed_origins"`
}

// DefaultConfig returns the defaults: the listener binds port 9091 on all
// interfaces, and CORS admits only localhost origins.
func DefaultConfig() Config {
	return Config{
		Addr:           ":9091",
		GroupID:        "default",
		TokenTTL:       24 * time.Hour,
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
	}
}

// Server is the admin HTTP API for a single throttle Group.
type Server struct {
	router  *chi.Mux
	log     *logger.Logger
	addr    string
	groupID string

	group *throttle.Group
	gov   *governor.Governor
	auth  *Authenticator
	audit *audit.Logger

	profiler *profiler.Profiler
	analyzer *profiler.Analyzer

	wsHub    *wsHub
	loginLim *loginLimiter
	server   *http.Server

	startedAt time.Time
}

// NewServer wires routes for group, optionally reporting gov's current
// rate alongside group stats. auditLog may be nil, in which case login
// attempts and config changes are not recorded.
func NewServer(cfg Config, group *throttle.Group, gov *governor.Governor, auditLog *audit.Logger, log *logger.Logger) (*Server, error) {
	if log == nil {
		log = logger.Default()
	}
	auth, err := NewAuthenticator(cfg.OperatorSecret, cfg.JWTKey, cfg.TokenTTL)
	if err != nil {
		return nil, err
	}
	groupID := cfg.GroupID
	if groupID == "" {
		groupID = "default"
	}

	s := &Server{
		router:    chi.NewRouter(),
		log:       log.WithComponent("adminapi"),
		addr:      cfg.Addr,
		groupID:   groupID,
		group:     group,
		gov:       gov,
		auth:      auth,
		audit:     auditLog,
		profiler:  profiler.New(),
		analyzer:  profiler.NewAnalyzer(),
		wsHub:     newWSHub(),
		loginLim:  newLoginLimiter(),
		startedAt: time.Now(),
	}

	go s.wsHub.run()
	group.SetOnThroughputMetrics(s.wsHub.broadcastMetrics)

	s.setupMiddleware(cfg.AllowedOrigins)
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupMiddleware(allowedOrigins []string) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.router.Get("/v1/healthz", s.handleHealthz)
	s.router.With(s.loginLim.Middleware).Post("/v1/auth/login", s.handleLogin)

	s.router.Group(func(r chi.Router) {
		r.Use(s.auth.Middleware)
		r.Get("/v1/groups/{id}/stats", s.handleStats)
		r.Patch("/v1/groups/{id}/config", s.handleConfigure)
		r.Get("/v1/groups/{id}/stream", s.handleStream)
		r.Post("/v1/debug/profile", s.handleProfile)
	})
}

// Start begins serving in the background and returns immediately.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    s.addr,
		Handler: s.router,
	}

	s.log.Info("starting admin API", "addr", s.addr)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("admin API server error", "error", err)
		}
	}()
	return nil
}

// Shutdown gracefully stops the HTTP listener and the websocket hub.
func (s *Server) Shutdown() {
	s.log.Info("shutting down admin API")
	s.wsHub.stop()
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			s.log.Error("admin API shutdown error", "error", err)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
