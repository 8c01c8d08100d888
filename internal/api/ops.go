package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "finance-notifier/internal/common/errors"
	"finance-notifier/internal/common/logger"
	"finance-notifier/internal/common/validation"
	"finance-notifier/internal/delivery"
	"finance-notifier/internal/models"
	"finance-notifier/internal/rules"

	"github.com/google/uuid"
)

// OpsIdentity is the rate-limit key shared by every operator call.
const OpsIdentity = "ops"

const maxBroadcastBody = 16 << 10

// Sweeper triggers an immediate rule engine sweep.
type Sweeper interface {
	RunOnce(ctx context.Context) (rules.SweepResult, error)
}

// Ops serves the operator endpoints on their own listener. Every route needs
// the bearer token and passes the admission gate.
type Ops struct {
	sweeper Sweeper
	channel delivery.Channel
	gate    *Gate
	token   []byte
	errors  *apperrors.ErrorHandler
	logger  logger.Logger
	now     func() time.Time
	mux     *http.ServeMux
}

func NewOps(sweeper Sweeper, channel delivery.Channel, gate *Gate, token string, log logger.Logger) *Ops {
	l := log.WithFields(map[string]interface{}{"component": "ops-api"})
	o := &Ops{
		sweeper: sweeper,
		channel: channel,
		gate:    gate,
		token:   []byte(token),
		errors:  apperrors.NewErrorHandler(l),
		logger:  l,
		now:     func() time.Time { return time.Now().UTC() },
		mux:     http.NewServeMux(),
	}

	o.mux.Handle("POST /internal/sweep", o.protect(o.sweep))
	o.mux.Handle("POST /internal/broadcast", o.protect(o.broadcast))
	return o
}

func (o *Ops) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	o.mux.ServeHTTP(w, r)
}

// protect authenticates before the gate so unauthenticated calls never spend
// operator tokens.
func (o *Ops) protect(fn http.HandlerFunc) http.Handler {
	var next http.Handler = fn
	if o.gate != nil {
		next = o.gate.Wrap(fn)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !o.authorized(r) {
			o.logger.Warn("operator call rejected", map[string]interface{}{
				"path":   r.URL.Path,
				"remote": r.RemoteAddr,
			})
			o.errors.WriteHTTPError(w, apperrors.NewUnauthorizedError("invalid operator token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (o *Ops) authorized(r *http.Request) bool {
	if len(o.token) == 0 {
		return false
	}
	got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), o.token) == 1
}

// POST /internal/sweep
func (o *Ops) sweep(w http.ResponseWriter, r *http.Request) {
	if o.sweeper == nil {
		o.errors.WriteHTTPError(w, apperrors.NewInvalidRequestError("rule engine is not configured"))
		return
	}
	// A disconnecting caller must not abort a sweep halfway.
	res, err := o.sweeper.RunOnce(context.WithoutCancel(r.Context()))
	if errors.Is(err, rules.ErrSweepInProgress) {
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:   err.Error(),
			Message: "A sweep is already running",
		})
		return
	}
	if err != nil {
		o.errors.WriteHTTPError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type broadcastRequest struct {
	Type        models.NotificationKind `json:"type"`
	Urgency     models.Urgency          `json:"urgency"`
	Title       string                  `json:"title"`
	Message     string                  `json:"message"`
	ReferenceID string                  `json:"referenceId"`
}

type broadcastResponse struct {
	ID     string    `json:"id"`
	SentAt time.Time `json:"sentAt"`
}

// POST /internal/broadcast
func (o *Ops) broadcast(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBroadcastBody))
	if err != nil {
		o.errors.WriteHTTPError(w, apperrors.NewInvalidRequestError("unreadable body"))
		return
	}

	res, err := validation.ValidateJSON(BroadcastRequestSchema, body)
	if err != nil {
		o.errors.WriteHTTPError(w, apperrors.NewInvalidRequestError("body is not valid JSON"))
		return
	}
	if !res.Valid {
		writeJSON(w, http.StatusBadRequest, validationResponse{
			Error:   string(apperrors.ErrCodeInvalidRequest),
			Message: "Broadcast request does not match the schema",
			Fields:  res.Errors,
		})
		return
	}

	var req broadcastRequest
	if err := decodeJSON(body, &req); err != nil {
		o.errors.WriteHTTPError(w, apperrors.NewInvalidRequestError(err.Error()))
		return
	}

	event := &models.NotificationEvent{
		ID:          uuid.NewString(),
		Kind:        req.Type,
		Urgency:     req.Urgency,
		Title:       req.Title,
		Message:     req.Message,
		ReferenceID: req.ReferenceID,
		CreatedAt:   o.now(),
	}
	if err := o.channel.Broadcast(r.Context(), event); err != nil {
		o.errors.WriteHTTPError(w, err)
		return
	}

	o.logger.Info("broadcast sent", map[string]interface{}{
		"notificationId": event.ID,
		"kind":           string(event.Kind),
	})
	writeJSON(w, http.StatusAccepted, broadcastResponse{ID: event.ID, SentAt: event.CreatedAt})
}
