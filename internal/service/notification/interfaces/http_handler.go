// internal/service/notification/interfaces/http_handler.go
package interfaces

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"ordercore/internal/pkg/identity"
	"ordercore/internal/pkg/logger"
	"ordercore/internal/service/notification/application"
	"ordercore/internal/service/notification/domain"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// NotificationHandler 暴露收件箱接口，只操作调用者自己的通知。
type NotificationHandler struct {
	dispatcher *application.Dispatcher
}

func NewNotificationHandler(dispatcher *application.Dispatcher) *NotificationHandler {
	return &NotificationHandler{dispatcher: dispatcher}
}

func (h *NotificationHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /notifications", h.list)
	mux.HandleFunc("GET /notifications/unread-count", h.unreadCount)
	mux.HandleFunc("POST /notifications/{id}/read", h.markRead)
	mux.HandleFunc("POST /notifications/read-all", h.markAllRead)
}

type notificationView struct {
	ID            string     `json:"id"`
	Module        string     `json:"module"`
	Type          string     `json:"type"`
	Title         string     `json:"title"`
	Message       string     `json:"message"`
	Status        string     `json:"status"`
	Priority      string     `json:"priority"`
	ReferenceID   string     `json:"referenceId,omitempty"`
	ReferenceType string     `json:"referenceType,omitempty"`
	ActionURL     string     `json:"actionUrl,omitempty"`
	ActionLabel   string     `json:"actionLabel,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	ReadAt        *time.Time `json:"readAt,omitempty"`
}

type listResponse struct {
	Items    []notificationView `json:"items"`
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"pageSize"`
}

func toView(n *domain.Notification) notificationView {
	return notificationView{
		ID:            n.ID,
		Module:        string(n.Module),
		Type:          string(n.Type),
		Title:         n.Title,
		Message:       n.Message,
		Status:        string(n.Status),
		Priority:      string(n.Priority),
		ReferenceID:   n.ReferenceID,
		ReferenceType: n.ReferenceType,
		ActionURL:     n.ActionURL,
		ActionLabel:   n.ActionLabel,
		CreatedAt:     n.CreatedAt,
		ReadAt:        n.ReadAt,
	}
}

func (h *NotificationHandler) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("pageSize"))
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	items, total, err := h.dispatcher.List(r.Context(), actor,
		domain.Status(q.Get("status")), domain.Module(q.Get("module")), (page-1)*size, size)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := listResponse{Items: make([]notificationView, 0, len(items)), Total: total, Page: page, PageSize: size}
	for i := range items {
		resp.Items = append(resp.Items, toView(&items[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *NotificationHandler) unreadCount(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	n, err := h.dispatcher.UnreadCount(r.Context(), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"unread": n})
}

func (h *NotificationHandler) markRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	n, err := h.dispatcher.MarkRead(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toView(n))
}

func (h *NotificationHandler) markAllRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	n, err := h.dispatcher.MarkAllRead(r.Context(), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

func requireActor(w http.ResponseWriter, r *http.Request) (identity.Actor, bool) {
	actor, ok := identity.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "sign in required"})
	}
	return actor, ok
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": domain.ErrNotFound.Error()})
	case errors.Is(err, domain.ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": domain.ErrForbidden.Error()})
	default:
		logger.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("notification request failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
