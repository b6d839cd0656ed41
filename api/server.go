package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"immo_scrooper/logging"
	"immo_scrooper/models"
	"immo_scrooper/scraper"
	"immo_scrooper/storage"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

type StatusSource interface {
	Status() scraper.Status
}

// OpsStore is the read side of the operational SQLite store.
type OpsStore interface {
	ListRuns(limit int) ([]models.ScrapeRun, error)
	RunLogs(runID int64) ([]models.ScrapeLog, error)
	ListRejections(limit int) ([]models.Rejection, error)
	ListSiteStats() ([]models.SiteStats, error)
}

// Server exposes a read-only view of the pipeline for the dashboard.
type Server struct {
	status   StatusSource
	ops      OpsStore
	listings storage.ListingStore
}

func NewServer(status StatusSource, ops OpsStore, listings storage.ListingStore) *Server {
	return &Server{status: status, ops: ops, listings: listings}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/runs", s.handleRuns).Methods(http.MethodGet)
	r.HandleFunc("/runs/{id:[0-9]+}/logs", s.handleRunLogs).Methods(http.MethodGet)
	r.HandleFunc("/rejections", s.handleRejections).Methods(http.MethodGet)
	r.HandleFunc("/listings", s.handleListings).Methods(http.MethodGet)
	return r
}

type statusResponse struct {
	scraper.Status
	SiteStats []models.SiteStats `json:"site_stats"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Status: s.status.Status(), SiteStats: []models.SiteStats{}}
	if s.ops != nil {
		stats, err := s.ops.ListSiteStats()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if stats != nil {
			resp.SiteStats = stats
		}
	}
	writeJSON(w, resp)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	runs := []models.ScrapeRun{}
	if s.ops != nil {
		got, err := s.ops.ListRuns(limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if got != nil {
			runs = got
		}
	}
	writeJSON(w, runs)
}

func (s *Server) handleRunLogs(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid run id", http.StatusBadRequest)
		return
	}
	logs := []models.ScrapeLog{}
	if s.ops != nil {
		got, err := s.ops.RunLogs(id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if got != nil {
			logs = got
		}
	}
	writeJSON(w, logs)
}

func (s *Server) handleRejections(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	rejections := []models.Rejection{}
	if s.ops != nil {
		got, err := s.ops.ListRejections(limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if got != nil {
			rejections = got
		}
	}
	writeJSON(w, rejections)
}

func (s *Server) handleListings(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	listings, err := s.listings.ListRecent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if listings == nil {
		listings = []*models.NormalizedListing{}
	}
	writeJSON(w, listings)
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
		return 0, false
	}
	return min(n, maxLimit), true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warnf("api", "encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	logging.Errorf("api", "%v", err)
	http.Error(w, http.StatusText(code), code)
}
