package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"supplierhub_api/internal/supplierhub/business/models"
	"supplierhub_api/internal/supplierhub/business/services/rollback"
	"supplierhub_api/pkg/logger"
)

// RunReader looks up a run row; returns (nil, nil) when it does not exist.
type RunReader interface {
	GetRun(runID int) (*models.Run, error)
}

// RollbackHandler restores a finished run's snapshots on demand.
type RollbackHandler struct {
	rollback *rollback.Service
	runs     RunReader
	log      logger.Logger
}

func NewRollbackHandler(rb *rollback.Service, runs RunReader, log logger.Logger) *RollbackHandler {
	return &RollbackHandler{rollback: rb, runs: runs, log: log}
}

type rollbackResponse struct {
	RunID    int `json:"run_id"`
	Restored int `json:"restored"`
}

func (h *RollbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	runID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || runID <= 0 {
		writeError(w, http.StatusBadRequest, "run id must be a positive integer")
		return
	}

	runRow, err := h.runs.GetRun(runID)
	if err != nil {
		h.log.Log("run %d lookup failed: %v", runID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runRow == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if runRow.Status == models.RunStatusRunning {
		writeError(w, http.StatusConflict, "run is still in progress")
		return
	}

	restored, err := h.rollback.Rollback(r.Context(), runID)
	if err != nil {
		h.log.Log("rollback of run %d failed: %v", runID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, rollbackResponse{RunID: runID, Restored: restored})
}
