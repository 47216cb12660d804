package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/timemachine-ai/retrospect/internal/auth"
	"github.com/timemachine-ai/retrospect/internal/report"
	"github.com/timemachine-ai/retrospect/internal/store"
)

// UserStore is the account persistence surface used by the handlers.
type UserStore interface {
	CreateUser(ctx context.Context, username string, email *string, loginID, passwordHash string) (store.User, error)
	GetUser(ctx context.Context, id int64) (store.User, error)
	GetUserByLoginID(ctx context.Context, loginID string) (store.User, error)
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	ListUsers(ctx context.Context, skip, limit int) ([]store.User, error)
	UpdateUser(ctx context.Context, id int64, username, email, passwordHash *string) (store.User, error)
	DeleteUser(ctx context.Context, id int64) error
}

// ReportStore covers report rows and chat transcripts.
type ReportStore interface {
	CreateReport(ctx context.Context, sessionID string, requestor *string) (uuid.UUID, error)
	GetReport(ctx context.Context, reportID uuid.UUID) (report.Record, error)
	DeleteReport(ctx context.Context, reportID uuid.UUID) error
	CountChatMessages(ctx context.Context, sessionID string) (int, error)
	InsertChatMessage(ctx context.Context, m report.ChatMessage) (int64, error)
}

// Runner executes a report pipeline run inline (sync mode).
type Runner interface {
	Run(ctx context.Context, reportID uuid.UUID, sessionID string) error
}

// JobPublisher hands a report job to the queue (deferred mode).
type JobPublisher interface {
	Publish(subject string, data any) error
}

type Options struct {
	Port    int
	Users   UserStore
	Reports ReportStore
	Runner  Runner
	Jobs    JobPublisher
	Tokens  *auth.TokenIssuer
	Mode    string // "sync" or "deferred"
	Logger  *slog.Logger
}

type Server struct {
	router  *chi.Mux
	port    int
	users   UserStore
	reports ReportStore
	runner  Runner
	jobs    JobPublisher
	tokens  *auth.TokenIssuer
	mode    string
	logger  *slog.Logger
}

func NewServer(opts Options) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:  router,
		port:    opts.Port,
		users:   opts.Users,
		reports: opts.Reports,
		runner:  opts.Runner,
		jobs:    opts.Jobs,
		tokens:  opts.Tokens,
		mode:    opts.Mode,
		logger:  opts.Logger,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/retrospect/status", s.status)

	router.Post("/api/v1/auth/login", s.login)

	router.Route("/api/v1/users", func(r chi.Router) {
		r.Post("/", s.createUser)
		r.Get("/", s.listUsers)
		r.Get("/{userID}", s.getUser)
		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Put("/{userID}", s.updateUser)
			r.Delete("/{userID}", s.deleteUser)
		})
	})

	router.Post("/api/v1/sessions/{sessionID}/messages", s.ingestMessage)
	router.Post("/api/v1/sessions/{sessionID}/reports", s.requestReport)
	router.Get("/api/v1/reports/{reportID}", s.getReport)

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"service": "retrospect",
		"mode":    s.mode,
	})
}

func respondJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, code int, msg string) {
	respondJSON(w, code, map[string]string{"error": msg})
}
