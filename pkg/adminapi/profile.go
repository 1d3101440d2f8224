// Copyright 2025 Takhin Data, Inc.

package adminapi

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/streamcap/throttle/pkg/profiler"
)

// profileRequest captures a runtime profile and returns its analysis
// in one round trip, rather than requiring an operator to pull a raw
// .prof file off disk and run go tool pprof by hand.
type profileRequest struct {
	Type       string `json:"type"`
	DurationMs int    `json:"duration_ms"`
}

type profileResponse struct {
	Type        string                             `json:"type"`
	Path        string                             `json:"path,omitempty"`
	Stats       *profiler.ProfileStats             `json:"stats,omitempty"`
	Report      string                             `json:"report,omitempty"`
	Paths       map[string]string                  `json:"paths,omitempty"`
	StatsByType map[string]*profiler.ProfileStats  `json:"stats_by_type,omitempty"`
}

// handleProfile captures a runtime profile for the process and, unless
// the type is "trace", analyzes it immediately so the response carries
// top functions/allocations/goroutine stacks instead of just a file path.
// type "all" captures the same set as ProfileAll and returns each
// profile's analysis in stats_by_type, skipping any that fail to parse.
// For a single type, passing ?format=report renders the analysis as the
// analyzer's tabular text report instead of structured stats.
//
// @Summary Capture and analyze a runtime profile
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param body body profileRequest true "profile type and duration"
// @Success 200 {object} profileResponse
// @Failure 400 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /v1/debug/profile [post]
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	duration := time.Duration(req.DurationMs) * time.Millisecond
	if duration <= 0 {
		duration = time.Second
	}
	asReport := r.URL.Query().Get("format") == "report"

	if req.Type == "all" {
		dir, err := os.MkdirTemp("", "streamcap-profile-")
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to allocate profile directory")
			return
		}
		paths, err := s.profiler.ProfileAll(r.Context(), dir, duration)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp := profileResponse{Type: "all", Paths: map[string]string{}, StatsByType: map[string]*profiler.ProfileStats{}}
		for ptype, path := range paths {
			resp.Paths[string(ptype)] = path
			if stats, err := s.analyzer.Analyze(path, ptype); err == nil {
				resp.StatsByType[string(ptype)] = stats
			}
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	ptype := profiler.ProfileType(req.Type)
	path, err := s.profiler.Profile(r.Context(), &profiler.ProfileOptions{
		Type:     ptype,
		Duration: duration,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := profileResponse{Type: req.Type, Path: path}
	if ptype != profiler.ProfileTypeTrace {
		stats, err := s.analyzer.Analyze(path, ptype)
		if err != nil {
			s.log.Error("profile analysis failed", "type", req.Type, "error", err)
		} else if asReport {
			resp.Report = s.analyzer.GenerateReport(stats, ptype)
		} else {
			resp.Stats = stats
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
