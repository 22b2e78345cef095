// Package api implements the small HTTP status/update surface this daemon
// exposes, standing in for spec.md §6's host "progress/status surface":
// current device version/flags, an SSE stream of progress events, and the
// endpoint that accepts a firmware image and drives an update.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dpmst/rtd2142fw/internal/models"
)

// Controller is the interface the handlers drive updates and read status
// through; satisfied by *controller.Controller.
type Controller interface {
	Status() (models.DeviceInfo, models.Progress)
	RunUpdate(ctx context.Context, image []byte) error
}

// EventBus is the interface for subscribing to progress events.
type EventBus interface {
	Subscribe(id string) <-chan models.Progress
	Unsubscribe(id string)
}

// Handlers holds the dependencies shared by all HTTP handlers.
type Handlers struct {
	ctrl   Controller
	events EventBus
}

// statusResponse is the JSON shape returned by GET /api/status and
// POST /api/update.
type statusResponse struct {
	models.DeviceInfo
	Progress models.Progress `json:"progress"`
}

func (h *Handlers) status() statusResponse {
	info, progress := h.ctrl.Status()
	return statusResponse{DeviceInfo: info, Progress: progress}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an AppError (or any error) as a JSON response, using
// the error's advertised HTTP status when available.
func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	if appErr, ok := err.(*models.AppError); ok {
		w.WriteHeader(appErr.Status)
		_ = json.NewEncoder(w).Encode(appErr)
		return
	}
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(models.ErrInternal(err.Error()))
}
