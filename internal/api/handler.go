// internal/api/handler.go
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"mergington-activities/internal/activities"
	apperrors "mergington-activities/internal/common/errors"
	"mergington-activities/internal/common/logger"
	"mergington-activities/internal/common/metrics"
	"mergington-activities/internal/common/observability"
)

const defaultSideEffectTimeout = 3 * time.Second

// ListingCache stores the rendered activity listing per registry version.
type ListingCache interface {
	Get(ctx context.Context, version uint64) ([]byte, bool, error)
	Set(ctx context.Context, version uint64, body []byte) error
	Invalidate(ctx context.Context, version uint64) error
}

type AuditRecorder interface {
	Record(ctx context.Context, change activities.Change, requestID string) error
}

type Notifier interface {
	MembershipChanged(ctx context.Context, change activities.Change, requestID string) error
}

// ReadinessCheck reports whether one dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// HandlerOptions wires the registry and its optional side channels. Only
// Registry is required; nil Cache, Audit, Notifier or Observability disable
// the corresponding feature.
type HandlerOptions struct {
	Registry          *activities.Registry
	Logger            logger.Logger
	Cache             ListingCache
	Audit             AuditRecorder
	Notifier          Notifier
	Observability     *observability.Observability
	StaticDir         string
	SideEffectTimeout time.Duration
	Readiness         map[string]ReadinessCheck
}

type Handler struct {
	registry          *activities.Registry
	logger            logger.Logger
	errors            *apperrors.ErrorHandler
	cache             ListingCache
	audit             AuditRecorder
	notifier          Notifier
	obs               *observability.Observability
	staticDir         string
	sideEffectTimeout time.Duration
	readiness         map[string]ReadinessCheck
}

// MessageResponse is the body of a successful signup or unregister.
type MessageResponse struct {
	Message string `json:"message"`
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	log = log.WithFields(map[string]interface{}{"component": "api"})

	timeout := opts.SideEffectTimeout
	if timeout <= 0 {
		timeout = defaultSideEffectTimeout
	}

	h := &Handler{
		registry:          opts.Registry,
		logger:            log,
		errors:            apperrors.NewErrorHandler(log),
		cache:             opts.Cache,
		audit:             opts.Audit,
		notifier:          opts.Notifier,
		obs:               opts.Observability,
		staticDir:         opts.StaticDir,
		sideEffectTimeout: timeout,
		readiness:         opts.Readiness,
	}

	return h, nil
}

// ListActivities serves the full catalog, from the listing cache when one is
// configured and holds the current version.
func (h *Handler) ListActivities(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, h.registry.List())
		return
	}

	ctx, cancel := h.sideEffectContext(r)
	defer cancel()

	version := h.registry.Version()
	body, ok, err := h.cache.Get(ctx, version)
	switch {
	case err != nil:
		metrics.ListingCacheLookups.WithLabelValues("error").Inc()
		h.logger.Warn("listing cache read failed", map[string]interface{}{
			"error":     err,
			"requestId": RequestIDFromContext(r.Context()),
		})
	case ok:
		metrics.ListingCacheLookups.WithLabelValues("hit").Inc()
		h.writeRaw(w, http.StatusOK, body)
		return
	default:
		metrics.ListingCacheLookups.WithLabelValues("miss").Inc()
	}

	catalog, version := h.registry.ListWithVersion()
	body, err = json.Marshal(catalog)
	if err != nil {
		h.errors.WriteError(w, r, apperrors.NewInternalError(err))
		return
	}
	if err := h.cache.Set(ctx, version, body); err != nil {
		h.logger.Warn("listing cache write failed", map[string]interface{}{
			"error":   err,
			"version": version,
		})
	}
	h.writeRaw(w, http.StatusOK, body)
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	h.changeMembership(w, r, activities.OpSignup, h.registry.Signup)
}

func (h *Handler) Unregister(w http.ResponseWriter, r *http.Request) {
	h.changeMembership(w, r, activities.OpUnregister, h.registry.Unregister)
}

func (h *Handler) changeMembership(
	w http.ResponseWriter,
	r *http.Request,
	op activities.Operation,
	apply func(name, email string) (activities.Change, error),
) {
	name := r.PathValue("activity_name")
	query := r.URL.Query()
	if !query.Has("email") {
		h.errors.WriteError(w, r, apperrors.NewMissingParameterError("email"))
		return
	}
	email := query.Get("email")

	start := time.Now()
	ctx, span := h.obs.StartSpan(r.Context(), string(op), name)
	change, err := apply(name, email)
	observability.EndSpan(span, err)

	result := resultLabel(err)
	metrics.MembershipChanges.WithLabelValues(string(op), result).Inc()
	h.obs.RecordOperation(ctx, string(op), result, time.Since(start))

	if err != nil {
		h.errors.WriteError(w, r, err)
		return
	}

	h.logger.Info("membership changed", map[string]interface{}{
		"operation":    string(change.Operation),
		"activity":     change.Activity,
		"email":        change.Email,
		"participants": change.Participants,
		"requestId":    RequestIDFromContext(r.Context()),
	})

	h.afterChange(r, change)
	h.writeJSON(w, http.StatusOK, MessageResponse{Message: change.Message()})
}

// afterChange runs the derived side effects of a committed change. Failures
// are logged only; the registry is already updated.
func (h *Handler) afterChange(r *http.Request, change activities.Change) {
	ctx, cancel := h.sideEffectContext(r)
	defer cancel()
	requestID := RequestIDFromContext(r.Context())
	fields := map[string]interface{}{
		"operation": string(change.Operation),
		"activity":  change.Activity,
		"requestId": requestID,
	}

	if h.cache != nil {
		if err := h.cache.Invalidate(ctx, change.Version-1); err != nil {
			h.logger.WithError(err).Warn("listing cache invalidation failed", fields)
		}
	}
	if h.audit != nil {
		if err := h.audit.Record(ctx, change, requestID); err != nil {
			h.logger.WithError(err).Warn("audit record failed", fields)
		}
	}
	if h.notifier != nil {
		if err := h.notifier.MembershipChanged(ctx, change, requestID); err != nil {
			h.logger.WithError(err).Warn("membership notification failed", fields)
		}
	}
}

// sideEffectContext keeps request values but not request cancellation, so
// a client hanging up does not abort work for a committed change.
func (h *Handler) sideEffectContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(r.Context()), h.sideEffectTimeout)
}

// RedirectRoot sends the browser to the static front end.
func (h *Handler) RedirectRoot(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/static/index.html", http.StatusTemporaryRedirect)
}

func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	return strings.ToLower(string(apperrors.Normalize(err).Code))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("failed to encode response", map[string]interface{}{"error": err})
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	h.writeRaw(w, status, body)
}

func (h *Handler) writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
