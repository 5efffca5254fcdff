package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"supplierhub_api/internal/supplierhub/business/services/run"
	"supplierhub_api/pkg/logger"
)

// CronHandler triggers runs over HTTP, the way schedulers call in.
type CronHandler struct {
	runner *run.Service
	token  string
	log    logger.Logger
}

func NewCronHandler(runner *run.Service, token string, log logger.Logger) *CronHandler {
	return &CronHandler{runner: runner, token: token, log: log}
}

type runResponse struct {
	RunID   int    `json:"run_id"`
	Status  string `json:"status"`
	DryRun  bool   `json:"dry_run"`
	Total   int    `json:"total"`
	Updated int    `json:"updated"`
	Skipped int    `json:"skipped"`
	Errors  int    `json:"errors"`
}

func (h *CronHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.token)) != 1 {
		writeError(w, http.StatusForbidden, "invalid token")
		return
	}

	sourceID, err := strconv.Atoi(r.URL.Query().Get("source"))
	if err != nil || sourceID <= 0 {
		writeError(w, http.StatusBadRequest, "source must be a positive integer")
		return
	}
	dryRun := r.URL.Query().Get("dry") == "1"

	res, err := h.runner.Execute(r.Context(), sourceID, dryRun)
	if err != nil {
		if errors.Is(err, run.ErrLocked) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.log.Log("run for source %d failed: %v", sourceID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, runResponse{
		RunID:   res.ID,
		Status:  string(res.Status),
		DryRun:  res.DryRun,
		Total:   res.Total,
		Updated: res.Updated,
		Skipped: res.Skipped,
		Errors:  res.Errors,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
