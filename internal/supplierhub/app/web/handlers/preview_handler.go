package handlers

import (
	"net/http"
	"strconv"

	"supplierhub_api/internal/supplierhub/business/services/preview"
	"supplierhub_api/pkg/logger"
)

// PreviewHandler shows the mapped head of a feed without touching the
// catalog.
type PreviewHandler struct {
	preview *preview.Service
	log     logger.Logger
}

func NewPreviewHandler(p *preview.Service, log logger.Logger) *PreviewHandler {
	return &PreviewHandler{preview: p, log: log}
}

func (h *PreviewHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sourceID, err := strconv.Atoi(r.URL.Query().Get("source"))
	if err != nil || sourceID <= 0 {
		writeError(w, http.StatusBadRequest, "source must be a positive integer")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	res, err := h.preview.Preview(r.Context(), sourceID, limit)
	if err != nil {
		h.log.Log("preview of source %d failed: %v", sourceID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}
