package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"supplierhub_api/internal/supplierhub/business/services/run"
	"supplierhub_api/pkg/logger"
)

// LogsHandler exports a run's audit log as CSV.
type LogsHandler struct {
	runner *run.Service
	log    logger.Logger
}

func NewLogsHandler(runner *run.Service, log logger.Logger) *LogsHandler {
	return &LogsHandler{runner: runner, log: log}
}

func (h *LogsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	runID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || runID <= 0 {
		writeError(w, http.StatusBadRequest, "run id must be a positive integer")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="run-%d-logs.csv"`, runID))
	if err := h.runner.ExportLogsCSV(runID, w); err != nil {
		// headers are out by now; log and cut the stream
		h.log.Log("csv export of run %d failed: %v", runID, err)
	}
}
