// Package transport serves the read-only surfaces over REST alongside the
// MCP streamable HTTP endpoint.
package transport

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rpggio/interview/internal/auth"
	"github.com/rpggio/interview/internal/domain/capability"
	"github.com/rpggio/interview/internal/domain/query"
	"github.com/rpggio/interview/internal/observability"
	"github.com/rpggio/interview/internal/viewer"
)

// Viewer answers the read-only surfaces.
type Viewer interface {
	ResolveStatus(ctx context.Context, q query.ScopedQuery, caps capability.Set) (*viewer.StatusResult, error)
	SearchReceipts(ctx context.Context, q query.ScopedQuery, caps capability.Set) (*viewer.ReceiptsResult, error)
	GetReceipt(ctx context.Context, q query.ScopedQuery, caps capability.Set) (*viewer.ReceiptResult, error)
	PollHealth(ctx context.Context, q query.ScopedQuery, caps capability.Set) (*viewer.HealthResult, error)
	PollQueue(ctx context.Context, q query.ScopedQuery, caps capability.Set) (*viewer.QueueResult, error)
	ListArtifactInventory(ctx context.Context, q query.ScopedQuery, caps capability.Set) (*viewer.ArtifactsResult, error)
	SearchGlobalLedger(ctx context.Context, q query.ScopedQuery, caps capability.Set) (*viewer.ReceiptsResult, error)
}

// Authorizer resolves the capabilities a principal holds for a tenant.
type Authorizer interface {
	Authorize(p *auth.Principal, tenant string) (capability.Set, error)
}

// Config wires the HTTP surface.
type Config struct {
	Viewer     Viewer
	Auth       Authenticator
	Authorizer Authorizer
	// Limiter admits REST requests per API key. Nil disables API limiting.
	Limiter Admitter
	Info    viewer.Info
	// MCP is mounted at /mcp when set.
	MCP    http.Handler
	Logger *slog.Logger
}

// Server wires HTTP handlers.
type Server struct {
	viewer Viewer
	authz  Authorizer
	info   viewer.Info
	logger *slog.Logger
}

// NewServer creates the HTTP router.
func NewServer(cfg Config) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	srv := &Server{viewer: cfg.Viewer, authz: cfg.Authorizer, info: cfg.Info, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(observability.RequestMetrics)

	r.Get("/", srv.handleInfo)
	r.Get("/health", srv.handleHealth)
	r.Handle("/metrics", observability.Handler())
	if cfg.MCP != nil {
		r.Handle("/mcp", cfg.MCP)
		r.Handle("/mcp/*", cfg.MCP)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Auth))
		if cfg.Limiter != nil {
			r.Use(RateLimitMiddleware(cfg.Limiter))
		}
		r.Get("/status", srv.handleStatus)
		r.Get("/receipts", srv.handleSearchReceipts)
		r.Get("/receipts/{receiptID}", srv.handleGetReceipt)
		r.Get("/health", srv.handlePollHealth)
		r.Get("/queue", srv.handlePollQueue)
		r.Get("/artifacts", srv.handleArtifacts)
		r.Get("/global-ledger/receipts", srv.handleGlobalLedger)
	})

	return r
}

func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.info)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, func(ctx context.Context, q query.ScopedQuery, caps capability.Set) (any, error) {
		return s.viewer.ResolveStatus(ctx, q, caps)
	})
}

func (s *Server) handleSearchReceipts(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, func(ctx context.Context, q query.ScopedQuery, caps capability.Set) (any, error) {
		return s.viewer.SearchReceipts(ctx, q, caps)
	})
}

func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, func(ctx context.Context, q query.ScopedQuery, caps capability.Set) (any, error) {
		q.ReceiptID = chi.URLParam(r, "receiptID")
		return s.viewer.GetReceipt(ctx, q, caps)
	})
}

func (s *Server) handlePollHealth(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, func(ctx context.Context, q query.ScopedQuery, caps capability.Set) (any, error) {
		return s.viewer.PollHealth(ctx, q, caps)
	})
}

func (s *Server) handlePollQueue(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, func(ctx context.Context, q query.ScopedQuery, caps capability.Set) (any, error) {
		return s.viewer.PollQueue(ctx, q, caps)
	})
}

func (s *Server) handleArtifacts(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, func(ctx context.Context, q query.ScopedQuery, caps capability.Set) (any, error) {
		return s.viewer.ListArtifactInventory(ctx, q, caps)
	})
}

func (s *Server) handleGlobalLedger(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, func(ctx context.Context, q query.ScopedQuery, caps capability.Set) (any, error) {
		return s.viewer.SearchGlobalLedger(ctx, q, caps)
	})
}

type surfaceFunc func(ctx context.Context, q query.ScopedQuery, caps capability.Set) (any, error)

// serve parses the query, authorizes the principal for its tenant and runs fn.
func (s *Server) serve(w http.ResponseWriter, r *http.Request, fn surfaceFunc) {
	q, err := parseQuery(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		WriteError(w, auth.ErrUnauthorized)
		return
	}
	var caps capability.Set
	if strings.TrimSpace(q.TenantID) != "" {
		caps, err = s.authz.Authorize(p, q.TenantID)
		if err != nil {
			WriteError(w, err)
			return
		}
	}

	out, err := fn(r.Context(), q, caps)
	if err != nil {
		status, body := statusFor(err)
		if status >= http.StatusInternalServerError {
			requestID, _ := RequestIDFromContext(r.Context())
			s.logger.Warn("request failed", "path", r.URL.Path, "request_id", requestID, "error", err)
		}
		writeJSON(w, status, body)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
