package handlers

import (
	"melodex/internal/catalog"
	"melodex/internal/scanner"
	"melodex/internal/share"

	"github.com/gorilla/mux"
)

type Handlers struct {
	catalog *catalog.Catalog
	scanner *scanner.Service
	shares  *share.Manager
}

func New(c *catalog.Catalog, svc *scanner.Service, shares *share.Manager) *Handlers {
	return &Handlers{
		catalog: c,
		scanner: svc,
		shares:  shares,
	}
}

// RegisterRoutes attaches all API and health endpoints to the router.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/stats", h.GetStats).Methods("GET")
	api.HandleFunc("/genres", h.GetGenres).Methods("GET")
	api.HandleFunc("/tracks/{id}", h.GetTrack).Methods("GET")
	api.HandleFunc("/albums/{id}", h.GetAlbum).Methods("GET")
	api.HandleFunc("/artists/{id}", h.GetArtist).Methods("GET")
	api.HandleFunc("/playlists/{id}", h.GetPlaylist).Methods("GET")
	api.HandleFunc("/covers/{id}/share", h.GetCoverShare).Methods("GET")
	api.HandleFunc("/scan", h.TriggerScan).Methods("POST")
	api.HandleFunc("/scan/progress", h.GetScanProgress).Methods("GET")
	api.HandleFunc("/reset", h.Reset).Methods("POST")
}
