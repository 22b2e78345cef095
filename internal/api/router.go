package api

import (
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dpmst/rtd2142fw/internal/models"
	"github.com/dpmst/rtd2142fw/internal/mst"
)

// maxUploadMemory bounds the multipart form parser's in-memory buffer; the
// one accepted field is a fixed 0x70000-byte image so this is generous
// headroom rather than a tuned limit.
const maxUploadMemory = 8 << 20

// NewRouter creates and returns the status/update HTTP router.
func NewRouter(ctrl Controller, bus EventBus) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware)
	r.Use(middleware.CleanPath)

	h := &Handlers{ctrl: ctrl, events: bus}

	r.Get("/api/status", h.getStatus)
	r.Get("/api/subscribe", h.sseEvents)
	r.Post("/api/update", h.postUpdate)

	return r
}

// getStatus reports the device's current version/flags and the most recent
// progress snapshot.
func (h *Handlers) getStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.status())
}

// postUpdate accepts a multipart firmware upload under the "firmware" field,
// requires it be exactly mst.FirmwareSize bytes, and drives detach -> write
// -> attach -> reload against it.
func (h *Handlers) postUpdate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, models.ErrBadRequest("invalid multipart upload: "+err.Error()))
		return
	}

	file, _, err := r.FormFile("firmware")
	if err != nil {
		writeError(w, models.ErrBadRequest(`missing "firmware" file field`))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, mst.FirmwareSize+1))
	if err != nil {
		writeError(w, models.ErrInternal("reading upload: "+err.Error()))
		return
	}
	if len(data) != mst.FirmwareSize {
		writeError(w, models.ErrBadRequest(fmt.Sprintf("firmware image is %d bytes, want %d", len(data), mst.FirmwareSize)))
		return
	}

	if err := h.ctrl.RunUpdate(r.Context(), data); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.status())
}

// corsMiddleware adds permissive CORS headers for local network access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
