package handlers

import (
	"errors"
	"net/http"

	"melodex/internal/catalog"
	"melodex/internal/logging"

	"github.com/gorilla/mux"
)

// GetStats returns record counts across all collections
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.catalog.CountAll(r.Context())
	if err != nil {
		logging.Error("stats query failed: %v", err)
		writeJSONError(w, "failed to collect stats", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, stats)
}

// GetGenres returns the aggregated genre listing
func (h *Handlers) GetGenres(w http.ResponseWriter, r *http.Request) {
	genres, err := h.catalog.Genres(r.Context())
	if err != nil {
		logging.Error("genre aggregation failed: %v", err)
		writeJSONError(w, "failed to aggregate genres", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, genres)
}

// GetTrack returns a single track by id
func (h *Handlers) GetTrack(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	t, err := h.catalog.GetTrack(r.Context(), id)
	if err != nil {
		writeLookupError(w, "track", id, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, t)
}

// GetAlbum returns a single album by id
func (h *Handlers) GetAlbum(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	a, err := h.catalog.GetAlbum(r.Context(), id)
	if err != nil {
		writeLookupError(w, "album", id, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, a)
}

// GetArtist returns a single artist by id
func (h *Handlers) GetArtist(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	a, err := h.catalog.GetArtist(r.Context(), id)
	if err != nil {
		writeLookupError(w, "artist", id, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, a)
}

// GetPlaylist returns a single playlist by id
func (h *Handlers) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	p, err := h.catalog.GetPlaylist(r.Context(), id)
	if err != nil {
		writeLookupError(w, "playlist", id, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, p)
}

// GetCoverShare returns the public share for a cover, creating it if an
// admin account exists.
func (h *Handlers) GetCoverShare(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if _, err := h.catalog.GetCover(r.Context(), id); err != nil {
		writeLookupError(w, "cover", id, err)
		return
	}

	s, err := h.shares.GetOrCreate(r.Context(), id)
	if err != nil {
		logging.Error("share lookup for cover %s failed: %v", id, err)
		writeJSONError(w, "failed to resolve share", http.StatusInternalServerError)
		return
	}
	if s == nil {
		writeJSONError(w, "no admin account available for sharing", http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, s)
}

func writeLookupError(w http.ResponseWriter, kind, id string, err error) {
	if errors.Is(err, catalog.ErrNotFound) || catalog.IsMalformed(err) {
		writeJSONError(w, kind+" not found", http.StatusNotFound)
		return
	}
	logging.Error("%s lookup %s failed: %v", kind, id, err)
	writeJSONError(w, "lookup failed", http.StatusInternalServerError)
}
