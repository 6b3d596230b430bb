// Package http serves the platform routes behind the authentication,
// role and ownership gates, using a chi router and a graceful-shutdown server.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/tutogate/pkg/auth"
	"github.com/rhuss/tutogate/pkg/observability"
	"github.com/rhuss/tutogate/pkg/storage"
	"github.com/rhuss/tutogate/pkg/transport"
)

// maxBodySize caps request bodies on the tutorial endpoints.
const maxBodySize = 1 << 20

// Store is the persistence the router needs: identity and ownership lookups
// for the gates plus the tutorial records that establish ownership.
type Store interface {
	auth.UserStore
	auth.OwnershipStore
	CreateTutorial(ctx context.Context, t storage.Tutorial) error
	DeleteTutorial(ctx context.Context, id string) error
	HealthCheck(ctx context.Context) error
}

// RouterConfig holds everything the router wires together.
type RouterConfig struct {
	// Authenticator runs the authentication gate. Required.
	Authenticator *auth.Authenticator

	// Store backs readiness, ownership and tutorial records. Required.
	Store Store

	// Limiter enables per-identity rate limiting when non-nil.
	Limiter auth.RateLimiter

	MetricsEnabled bool
	MetricsPath    string

	// LookupTimeout bounds ownership lookups. Default: auth.DefaultLookupTimeout.
	LookupTimeout time.Duration

	Logger *slog.Logger
}

// NewRouter builds the HTTP handler with the platform routes behind the
// gates. Every response passes through recovery, request ID, logging and
// metrics middleware.
func NewRouter(cfg RouterConfig) (http.Handler, error) {
	if cfg.Authenticator == nil {
		return nil, errors.New("router: authenticator is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("router: store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}

	h := &handlers{store: cfg.Store, logger: cfg.Logger}
	gates := auth.Gates{Logger: cfg.Logger}
	owner := auth.RequireOwnerOrAdmin(cfg.Store,
		auth.WithLookupTimeout(cfg.LookupTimeout),
		auth.WithLogger(cfg.Logger),
	)
	stepOwner := auth.RequireOwnerOrAdmin(cfg.Store,
		auth.WithResourceParam("tutorialId"),
		auth.WithLookupTimeout(cfg.LookupTimeout),
		auth.WithLogger(cfg.Logger),
	)

	r := chi.NewRouter()
	r.Use(
		transport.Recovery(cfg.Logger),
		transport.RequestID(),
		transport.Logging(cfg.Logger),
		observability.MetricsMiddleware,
	)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	r.Get("/readyz", h.ready)
	if cfg.MetricsEnabled {
		r.Handle(cfg.MetricsPath, promhttp.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(cfg.Authenticator.Middleware)
		if cfg.Limiter != nil {
			r.Use(gates.RateLimit(cfg.Limiter))
		}

		r.Get("/me", h.me)

		r.With(gates.RequireRoles(auth.RoleAuthor, auth.RoleAdmin)).Post("/tutorials", h.createTutorial)
		r.With(owner).Put("/tutorials/{id}", h.updateTutorial)
		r.With(owner).Delete("/tutorials/{id}", h.deleteTutorial)
		r.With(stepOwner).Put("/tutorials/{tutorialId}/steps/{stepId}", h.updateStep)

		r.With(gates.RequireAdmin()).Get("/admin/ping", func(w http.ResponseWriter, r *http.Request) {
			transport.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		transport.WriteError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		transport.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r, nil
}

type handlers struct {
	store  Store
	logger *slog.Logger
}

func (h *handlers) ready(w http.ResponseWriter, r *http.Request) {
	if err := h.store.HealthCheck(r.Context()); err != nil {
		h.logger.Warn("readiness check failed", "error", err)
		transport.WriteError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())
	transport.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "user": id})
}

type tutorialRequest struct {
	Title string `json:"title"`
}

func (h *handlers) createTutorial(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())

	var req tutorialRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		transport.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" {
		transport.WriteError(w, http.StatusBadRequest, "title is required")
		return
	}

	t := storage.Tutorial{ID: uuid.NewString(), Title: req.Title, AuthorID: id.ID}
	if err := h.store.CreateTutorial(r.Context(), t); err != nil {
		h.logger.Error("creating tutorial", "error", err, "author_id", id.ID)
		transport.WriteError(w, http.StatusInternalServerError, "error creating tutorial")
		return
	}

	transport.WriteJSON(w, http.StatusCreated, map[string]any{
		"success":  true,
		"tutorial": map[string]string{"id": t.ID, "title": t.Title, "author_id": t.AuthorID},
	})
}

func (h *handlers) updateTutorial(w http.ResponseWriter, r *http.Request) {
	transport.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "id": chi.URLParam(r, "id")})
}

func (h *handlers) deleteTutorial(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "id")
	if err := h.store.DeleteTutorial(r.Context(), tid); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			transport.WriteError(w, http.StatusNotFound, "resource not found")
			return
		}
		h.logger.Error("deleting tutorial", "error", err, "tutorial_id", tid)
		transport.WriteError(w, http.StatusInternalServerError, "error deleting tutorial")
		return
	}
	transport.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "id": tid})
}

func (h *handlers) updateStep(w http.ResponseWriter, r *http.Request) {
	transport.WriteJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"tutorial_id": chi.URLParam(r, "tutorialId"),
		"step_id":     chi.URLParam(r, "stepId"),
	})
}
