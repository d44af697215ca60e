package handlers

import (
	"context"
	"net/http"

	"melodex/internal/logging"
)

// TriggerScan starts a library scan in the background
func (h *Handlers) TriggerScan(w http.ResponseWriter, _ *http.Request) {
	if h.scanner.IsScanning() {
		writeJSONStatus(w, "already_scanning")
		return
	}

	// The scan outlives the request
	h.scanner.TriggerScan(context.Background())
	writeJSONStatus(w, "scan_started")
}

// GetScanProgress returns the progress of the running scan
func (h *Handlers) GetScanProgress(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, h.scanner.GetProgress())
}

// Reset clears all filesystem-derived catalog data and starts a fresh
// scan. Playlists, user annotations, and accounts survive.
func (h *Handlers) Reset(w http.ResponseWriter, r *http.Request) {
	if h.scanner.IsScanning() {
		writeJSONError(w, "scan in progress, try again later", http.StatusConflict)
		return
	}

	logging.Warn("Hard reset requested from %s", r.RemoteAddr)
	if err := h.scanner.Sweeper().HardReset(r.Context()); err != nil {
		logging.Error("hard reset failed: %v", err)
		writeJSONError(w, "reset failed", http.StatusInternalServerError)
		return
	}

	h.scanner.TriggerScan(context.Background())
	writeJSONStatus(w, "reset_complete")
}
