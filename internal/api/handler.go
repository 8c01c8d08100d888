// Package api exposes the notification inbox over HTTP.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	apperrors "finance-notifier/internal/common/errors"
	"finance-notifier/internal/common/logger"
	"finance-notifier/internal/delivery"
	"finance-notifier/internal/models"
	"finance-notifier/internal/notification"

	"github.com/shopspring/decimal"
)

const maxListLimit = 200

type Handler struct {
	store   notification.Store
	channel delivery.Channel
	gate    *Gate
	errors  *apperrors.ErrorHandler
	logger  logger.Logger
	mux     *http.ServeMux
}

// New registers the notification routes on a fresh mux. Operator routes live
// on Ops.
func New(store notification.Store, channel delivery.Channel, gate *Gate, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"component": "api"})
	h := &Handler{
		store:   store,
		channel: channel,
		gate:    gate,
		errors:  apperrors.NewErrorHandler(l),
		logger:  l,
		mux:     http.NewServeMux(),
	}

	h.mux.Handle("GET /api/notifications", h.gated(h.listNotifications))
	h.mux.Handle("GET /api/notifications/unread-count", h.gated(h.unreadCount))
	h.mux.HandleFunc("PATCH /api/notifications/read-all", h.markAllRead)
	h.mux.HandleFunc("PATCH /api/notifications/{id}/read", h.markRead)
	h.mux.HandleFunc("DELETE /api/notifications/{id}", h.deleteNotification)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// Handle mounts an extra route, used for health and metrics endpoints.
func (h *Handler) Handle(pattern string, handler http.Handler) {
	h.mux.Handle(pattern, handler)
}

func (h *Handler) gated(fn http.HandlerFunc) http.Handler {
	if h.gate == nil {
		return fn
	}
	return h.gate.Wrap(fn)
}

// notificationView is the wire form of an event.
type notificationView struct {
	ID           string                  `json:"id"`
	Type         models.NotificationKind `json:"type"`
	Urgency      models.Urgency          `json:"urgency,omitempty"`
	Title        string                  `json:"title"`
	Message      string                  `json:"message"`
	ReferenceID  string                  `json:"referenceId"`
	Amount       decimal.Decimal         `json:"amount"`
	CategoryName string                  `json:"categoryName,omitempty"`
	CreatedAt    time.Time               `json:"createdAt"`
	Read         bool                    `json:"read"`
	ReadAt       *time.Time              `json:"readAt,omitempty"`
	Deleted      bool                    `json:"deleted,omitempty"`
}

func toView(ev models.NotificationEvent) notificationView {
	return notificationView{
		ID:           ev.ID,
		Type:         ev.Kind,
		Urgency:      ev.Urgency,
		Title:        ev.Title,
		Message:      ev.Message,
		ReferenceID:  ev.ReferenceID,
		Amount:       ev.Amount.Round(2),
		CategoryName: ev.Label,
		CreatedAt:    ev.CreatedAt,
		Read:         ev.Read,
		ReadAt:       ev.ReadAt,
		Deleted:      ev.Deleted,
	}
}

func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := UserIDFromHeader(r)
	if userID == "" {
		h.errors.WriteHTTPError(w, apperrors.NewUnauthorizedError("missing "+HeaderUserID))
		return "", false
	}
	return userID, true
}

// GET /api/notifications?limit=N&includeDeleted=true
func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	opts := notification.ListOptions{}
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxListLimit {
			h.errors.WriteHTTPError(w, apperrors.NewInvalidRequestError("limit must be between 1 and 200"))
			return
		}
		opts.Limit = n
	}
	if v := q.Get("includeDeleted"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			h.errors.WriteHTTPError(w, apperrors.NewInvalidRequestError("includeDeleted must be a boolean"))
			return
		}
		opts.IncludeDeleted = b
	}

	events, err := h.store.ListForUser(r.Context(), userID, opts)
	if err != nil {
		h.errors.WriteHTTPError(w, err)
		return
	}

	views := make([]notificationView, 0, len(events))
	for _, ev := range events {
		views = append(views, toView(ev))
	}
	writeJSON(w, http.StatusOK, notificationList{Notifications: views})
}

// GET /api/notifications/unread-count
func (h *Handler) unreadCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	count, err := h.store.CountUnread(r.Context(), userID)
	if err != nil {
		h.errors.WriteHTTPError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.UnreadCount{UserID: userID, Count: count})
}

// PATCH /api/notifications/{id}/read
func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	if err := h.store.MarkRead(r.Context(), r.PathValue("id"), userID); err != nil {
		h.errors.WriteHTTPError(w, err)
		return
	}
	h.pushUnreadCount(r.Context(), userID)
	w.WriteHeader(http.StatusNoContent)
}

// PATCH /api/notifications/read-all
func (h *Handler) markAllRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	n, err := h.store.MarkAllRead(r.Context(), userID)
	if err != nil {
		h.errors.WriteHTTPError(w, err)
		return
	}
	h.pushUnreadCount(r.Context(), userID)
	writeJSON(w, http.StatusOK, markAllResponse{Updated: n})
}

// DELETE /api/notifications/{id}
func (h *Handler) deleteNotification(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	if err := h.store.SoftDelete(r.Context(), r.PathValue("id"), userID); err != nil {
		h.errors.WriteHTTPError(w, err)
		return
	}
	h.pushUnreadCount(r.Context(), userID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pushUnreadCount(ctx context.Context, userID string) {
	if h.channel == nil {
		return
	}
	count, err := h.store.CountUnread(ctx, userID)
	if err == nil {
		err = h.channel.SendUnreadCount(ctx, userID, count)
	}
	if err != nil {
		h.logger.Warn("unread count push failed", map[string]interface{}{
			"userId": userID,
			"error":  err,
		})
	}
}
