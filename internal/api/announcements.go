package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"stationpa/pkg/announcement"
	"stationpa/pkg/model"
)

const (
	defaultPendingLimit = 20
	maxPendingLimit     = 200
)

// AnnouncementService is the part of announcement.Service the handlers use.
type AnnouncementService interface {
	Snapshot(ctx context.Context, allTemplates bool) (*announcement.Snapshot, error)
	CreateTemplate(ctx context.Context, req announcement.CreateTemplateRequest) (*model.Template, error)
	Trigger(ctx context.Context, req announcement.TriggerRequest) (*model.Record, error)
	GetRecord(ctx context.Context, id string) (*model.Record, error)
	MarkAnnounced(ctx context.Context, id, audioURL string) (*model.Record, error)
	MarkFailed(ctx context.Context, id string) (*model.Record, error)
	Pending(ctx context.Context, limit int) ([]model.Record, error)
}

// AnnouncementHandler serves templates, triggers and delivery status.
type AnnouncementHandler struct {
	svc AnnouncementService
}

// NewAnnouncementHandler creates a new AnnouncementHandler.
func NewAnnouncementHandler(svc AnnouncementService) *AnnouncementHandler {
	return &AnnouncementHandler{svc: svc}
}

// MarkAnnouncedRequest is the optional body of the announced transition.
type MarkAnnouncedRequest struct {
	AudioURL string `json:"audioUrl"`
}

// HandleList handles GET /api/announcements
func (h *AnnouncementHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Snapshot(r.Context(), false)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HandleCreateTemplate handles POST /api/announcements/templates
func (h *AnnouncementHandler) HandleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req announcement.CreateTemplateRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		writeServiceError(w, err)
		return
	}
	tpl, err := h.svc.CreateTemplate(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tpl)
}

// HandleTrigger handles POST /api/announcements/trigger
func (h *AnnouncementHandler) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	var req announcement.TriggerRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		writeServiceError(w, err)
		return
	}
	rec, err := h.svc.Trigger(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// HandleGet handles GET /api/announcements/{id}
func (h *AnnouncementHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.GetRecord(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandlePending handles GET /api/announcements/pending
func (h *AnnouncementHandler) HandlePending(w http.ResponseWriter, r *http.Request) {
	limit := defaultPendingLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", raw))
			return
		}
		limit = min(n, maxPendingLimit)
	}

	recs, err := h.svc.Pending(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if recs == nil {
		recs = []model.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": recs})
}

// HandleAnnounced handles POST /api/announcements/{id}/announced
func (h *AnnouncementHandler) HandleAnnounced(w http.ResponseWriter, r *http.Request) {
	var req MarkAnnouncedRequest
	if err := decodeBody(w, r, &req, true); err != nil {
		writeServiceError(w, err)
		return
	}
	rec, err := h.svc.MarkAnnounced(r.Context(), r.PathValue("id"), req.AudioURL)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleFailed handles POST /api/announcements/{id}/failed
func (h *AnnouncementHandler) HandleFailed(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.MarkFailed(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
