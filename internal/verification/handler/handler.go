// Package handler exposes the verification flow over HTTP. It decodes and
// validates transport payloads, delegates to the verification service, and
// translates domain errors into JSON responses; no business rules live here.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"firmo/internal/platform/metrics"
	"firmo/internal/platform/middleware"
	"firmo/internal/platform/ratelimit"
	"firmo/internal/verification"
	id "firmo/pkg/domain"
	dErrors "firmo/pkg/domain-errors"
	"firmo/pkg/platform/httputil"
	"firmo/pkg/platform/middleware/auth"
	"firmo/pkg/platform/middleware/device"
	"firmo/pkg/platform/middleware/metadata"
	"firmo/pkg/platform/middleware/requesttime"
	"firmo/pkg/platform/middleware/version"
	"firmo/pkg/requestcontext"
)

// requestTimeout bounds one verification request end to end, including the
// analyzer calls a step submission fans out.
const requestTimeout = 30 * time.Second

// Service defines the verification operations the HTTP layer needs.
type Service interface {
	Start(ctx context.Context, contractID id.ContractID) (*verification.Session, bool, error)
	SubmitStep(ctx context.Context, sessionID id.SessionID, kind verification.StepKind, payload verification.StepPayload) (*verification.StepResult, error)
	Complete(ctx context.Context, sessionID id.SessionID) (*verification.CompletionResult, error)
	Status(ctx context.Context, contractID id.ContractID) (*verification.StatusView, error)
}

// Handler wires verification endpoints to the verification service.
type Handler struct {
	service      Service
	logger       *slog.Logger
	metrics      *metrics.Metrics
	jwtValidator auth.JWTValidator
	limiter      *ratelimit.Limiter
}

// Option configures optional handler behavior.
type Option func(*Handler)

// WithRateLimit throttles the verification routes per caller. Without it the
// routes run unthrottled.
func WithRateLimit(l *ratelimit.Limiter) Option {
	return func(h *Handler) {
		h.limiter = l
	}
}

// New constructs a verification handler with its dependencies.
func New(service Service, logger *slog.Logger, m *metrics.Metrics, jwtValidator auth.JWTValidator, opts ...Option) *Handler {
	h := &Handler{
		service:      service,
		logger:       logger,
		metrics:      m,
		jwtValidator: jwtValidator,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the verification routes with their middleware chain.
func (h *Handler) Register(r chi.Router) {
	vr := chi.NewRouter()
	vr.Use(middleware.Recovery(h.logger))
	vr.Use(middleware.RequestID)
	vr.Use(middleware.Logger(h.logger))
	vr.Use(middleware.Timeout(requestTimeout))
	vr.Use(middleware.ContentTypeJSON)
	vr.Use(middleware.LatencyMiddleware(h.metrics))
	vr.Use(metadata.ClientMetadata)
	vr.Use(device.Middleware)
	vr.Use(requesttime.Middleware)
	vr.Use(version.ExtractVersion(id.APIVersionV1))
	vr.Use(auth.RequireAuth(h.jwtValidator, h.logger))
	vr.Use(version.ValidateTokenVersion(h.logger))
	vr.Use(ratelimit.Middleware(h.limiter))

	vr.Post("/contracts/{contractID}/verification/session", h.handleStart)
	vr.Get("/contracts/{contractID}/verification/status", h.handleStatus)
	vr.Post("/verification/sessions/{sessionID}/steps/{kind}", h.handleSubmitStep)
	vr.Post("/verification/sessions/{sessionID}/complete", h.handleComplete)

	r.Mount("/", vr)
}

// handleStart handles POST /contracts/{contractID}/verification/session.
// Creating returns 201; resuming the party's open session returns 200.
func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	contractID, err := id.ParseContractID(chi.URLParam(r, "contractID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	session, created, err := h.service.Start(ctx, contractID)
	if err != nil {
		h.logRejection(ctx, "session start rejected", err,
			"contract_id", contractID,
		)
		httputil.WriteError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, FromSession(session, requestcontext.Now(ctx)))
}

// handleSubmitStep handles POST /verification/sessions/{sessionID}/steps/{kind}.
func (h *Handler) handleSubmitStep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	kind, err := verification.ParseStepKind(chi.URLParam(r, "kind"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[StepRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.SubmitStep(ctx, sessionID, kind, req.Payload())
	if err != nil {
		h.logRejection(ctx, "step submission rejected", err,
			"session_id", sessionID,
			"kind", kind,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromStepResult(result))
}

// handleComplete handles POST /verification/sessions/{sessionID}/complete.
// A failed verdict is still a 200: the outcome and scores are the answer.
func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Complete(ctx, sessionID)
	if err != nil {
		h.logRejection(ctx, "session completion rejected", err,
			"session_id", sessionID,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromCompletionResult(result))
}

// handleStatus handles GET /contracts/{contractID}/verification/status.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	contractID, err := id.ParseContractID(chi.URLParam(r, "contractID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	view, err := h.service.Status(ctx, contractID)
	if err != nil {
		h.logRejection(ctx, "status query rejected", err,
			"contract_id", contractID,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromStatusView(view))
}

// logRejection logs a failed service call at a severity matching the error:
// client-side rejections warn, server-side failures error.
func (h *Handler) logRejection(ctx context.Context, msg string, err error, attrs ...any) {
	attrs = append(attrs,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	if dErrors.ToHTTPStatus(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg, attrs...)
		return
	}
	h.logger.WarnContext(ctx, msg, attrs...)
}
