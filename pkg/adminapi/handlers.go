// Copyright 2025 Takhin Data, Inc.

package adminapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/streamcap/throttle/pkg/throttle"
)

// groupStats is the JSON body returned by GET /v1/groups/{id}/stats.
type groupStats struct {
	GroupID             string  `json:"group_id"`
	Throttled           bool    `json:"throttled"`
	BytesPerSecond      int     `json:"bytes_per_second"`
	InFlightCount       int     `json:"in_flight_count"`
	TotalBytesProcessed uint64  `json:"total_bytes_processed"`
	GovernorRate        int     `json:"governor_rate,omitempty"`
	UptimeSeconds       float64 `json:"uptime_seconds"`
}

// findGroup validates the {id} path param against the single group this
// server wraps. The admin API fronts one streamcapd process and therefore
// one Group; a mismatched id is a 404 rather than silently serving the
// wrong group.
func (s *Server) findGroup(w http.ResponseWriter, r *http.Request) bool {
	if chi.URLParam(r, "id") != s.groupID {
		writeError(w, http.StatusNotFound, "no such group")
		return false
	}
	return true
}

// handleHealthz reports process liveness. It never depends on the
// throttle.Group so a wedged tick clock cannot itself fail the health
// check; pkg/health's readiness probe is the one that checks group state.
//
// @Summary Liveness check
// @Produce json
// @Success 200 {object} map[string]string
// @Router /v1/healthz [get]
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type loginRequest struct {
	Secret string `json:"secret"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// handleLogin exchanges the operator secret for a bearer token.
//
// @Summary Operator login
// @Description Exchanges the shared operator secret for a bearer token
// @Accept json
// @Produce json
// @Param body body loginRequest true "operator secret"
// @Success 200 {object} loginResponse
// @Failure 401 {object} map[string]string
// @Router /v1/auth/login [post]
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	token, err := s.auth.Login(req.Secret)
	if s.audit != nil {
		result := "success"
		if err != nil {
			result = "failure"
		}
		s.audit.LogAuth("operator", r.RemoteAddr, result, err)
	}
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}

// handleStats reports the group's current config and throughput.
//
// @Summary Group statistics
// @Security BearerAuth
// @Produce json
// @Param id path string true "group id"
// @Success 200 {object} groupStats
// @Failure 404 {object} map[string]string
// @Router /v1/groups/{id}/stats [get]
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if !s.findGroup(w, r) {
		return
	}
	cfg := s.group.ConfigSnapshot()
	stats := groupStats{
		GroupID:             s.groupID,
		Throttled:           cfg.IsThrottled,
		BytesPerSecond:      cfg.BytesPerSecond,
		InFlightCount:       s.group.InFlightCount(),
		TotalBytesProcessed: s.group.TotalBytesProcessed(),
		UptimeSeconds:       time.Since(s.startedAt).Seconds(),
	}
	if s.gov != nil {
		stats.GovernorRate = s.gov.CurrentRate()
	}
	writeJSON(w, http.StatusOK, stats)
}

// configureRequest is a partial update; a field left nil is unchanged.
type configureRequest struct {
	BytesPerSecond *int  `json:"bytes_per_second"`
	IsThrottled    *bool `json:"is_throttled"`
}

// handleConfigure applies a partial config update to the group, taking
// effect no later than the next tick.
//
// @Summary Reconfigure a group
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "group id"
// @Param body body configureRequest true "partial config update"
// @Success 200 {object} groupStats
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /v1/groups/{id}/config [patch]
func (s *Server) handleConfigure(w http.ResponseWriter, r *http.Request) {
	if !s.findGroup(w, r) {
		return
	}
	var req configureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	update := throttle.ConfigUpdate{
		BytesPerSecond: req.BytesPerSecond,
		IsThrottled:    req.IsThrottled,
	}
	err := s.group.Configure(update)
	if s.audit != nil {
		changes := map[string]interface{}{}
		if req.BytesPerSecond != nil {
			changes["bytes_per_second"] = *req.BytesPerSecond
		}
		if req.IsThrottled != nil {
			changes["is_throttled"] = *req.IsThrottled
		}
		s.audit.LogConfigChange("operator", r.RemoteAddr, s.groupID, changes, err)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.handleStats(w, r)
}

// handleStream upgrades to a websocket and streams Metrics samples as the
// sampler produces them until the client disconnects.
//
// @Summary Stream live throughput metrics
// @Security BearerAuth
// @Param id path string true "group id"
// @Success 101 {string} string "switching protocols"
// @Failure 404 {object} map[string]string
// @Router /v1/groups/{id}/stream [get]
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if !s.findGroup(w, r) {
		return
	}
	s.wsHub.serveWS(w, r, s.log)
}
