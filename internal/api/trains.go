package api

import (
	"context"
	"net/http"

	"stationpa/pkg/model"
)

// TrainRegistry is the part of trains.Registry the handlers use.
type TrainRegistry interface {
	List(ctx context.Context) ([]model.Train, error)
	Get(ctx context.Context, id string) (*model.Train, error)
	Update(ctx context.Context, id string, patch model.TrainPatch) (*model.Train, error)
}

// TrainHandler serves the train board.
type TrainHandler struct {
	registry TrainRegistry
}

// NewTrainHandler creates a new TrainHandler.
func NewTrainHandler(reg TrainRegistry) *TrainHandler {
	return &TrainHandler{registry: reg}
}

// HandleList handles GET /api/trains
func (h *TrainHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.registry.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if list == nil {
		list = []model.Train{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"trains": list})
}

// HandleGet handles GET /api/trains/{id}
func (h *TrainHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	t, err := h.registry.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// HandleUpdate handles PUT /api/trains/{id}. Only fields present in the body change.
func (h *TrainHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var patch model.TrainPatch
	if err := decodeBody(w, r, &patch, false); err != nil {
		writeServiceError(w, err)
		return
	}
	t, err := h.registry.Update(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}
