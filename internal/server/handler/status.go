package handler

import (
	"net/http"
	"time"
)

// StatusHandler serves the runtime status of this replica.
type StatusHandler struct {
	Mode          string
	StorageDriver string
	StartedAt     time.Time
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(mode, storageDriver string, startedAt time.Time) *StatusHandler {
	return &StatusHandler{Mode: mode, StorageDriver: storageDriver, StartedAt: startedAt}
}

// GetStatus responds with the run mode, storage driver and uptime.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":           h.Mode,
		"storage_driver": h.StorageDriver,
		"started_at":     h.StartedAt.UTC().Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(h.StartedAt).Seconds()),
	})
}
