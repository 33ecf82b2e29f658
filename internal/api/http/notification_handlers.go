package http

import (
	"net/http"

	"teambilling/internal/domain"
)

type sendNotificationRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type notificationsResponse struct {
	Notifications []domain.Notification `json:"notifications"`
	Total         int32                 `json:"total"`
}

// ListNotifications handles GET /tenants/{tenantID}/notifications?page=&page_size=
func (h *Handlers) ListNotifications(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := pathID(w, r, "tenantID")
	if !ok {
		return
	}
	notes, total, err := h.svc.Notifications.GetNotifications(r.Context(), tenantID, queryInt(r, "page"), queryInt(r, "page_size"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if notes == nil {
		notes = []domain.Notification{}
	}
	writeJSON(w, http.StatusOK, notificationsResponse{Notifications: notes, Total: total})
}

// SendNotification handles POST /tenants/{tenantID}/notifications
func (h *Handlers) SendNotification(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := pathID(w, r, "tenantID")
	if !ok {
		return
	}
	var req sendNotificationRequest
	if !decode(w, r, &req) {
		return
	}
	note, err := h.svc.Notifications.Send(r.Context(), tenantID, req.Title, req.Body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// MarkNotificationRead handles POST /tenants/{tenantID}/notifications/{notificationID}/read
func (h *Handlers) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := pathID(w, r, "tenantID")
	if !ok {
		return
	}
	notificationID, ok := pathID(w, r, "notificationID")
	if !ok {
		return
	}
	if err := h.svc.Notifications.MarkAsRead(r.Context(), tenantID, notificationID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
