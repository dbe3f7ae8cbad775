// Bibliograph - Reading Analytics and Book Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/bibliograph/internal/recommend"
)

// recommendationsResponse is the JSON envelope for both endpoints.
type recommendationsResponse struct {
	Recommendations []recommend.Recommendation `json:"recommendations"`
	Count           int                        `json:"count"`
}

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Error string `json:"error"`
}

// userRecommendations serves GET /api/v1/recommendations/users/{userID}.
// Query params: limit (optional), explain (optional bool).
func (rt *Router) userRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID <= 0 {
		rt.writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	limit, explain, ok := rt.listParams(w, r)
	if !ok {
		return
	}

	recs, err := rt.engine.GetRecommendations(r.Context(), userID, limit, explain)
	if err != nil {
		rt.logger.Error().Err(err).Int64("user_id", userID).Msg("recommendation request failed")
		rt.writeError(w, http.StatusInternalServerError, "recommendations unavailable")
		return
	}

	rt.writeJSON(w, http.StatusOK, recommendationsResponse{
		Recommendations: recs,
		Count:           len(recs),
	})
}

// sessionRecommendations serves GET /api/v1/recommendations/sessions/{token}.
// An unknown or expired session yields an empty list with 200, matching the
// engine's contract.
func (rt *Router) sessionRecommendations(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		rt.writeError(w, http.StatusBadRequest, "missing session token")
		return
	}
	limit, explain, ok := rt.listParams(w, r)
	if !ok {
		return
	}

	recs, err := rt.engine.GetRecommendationsAnonymous(r.Context(), token, limit, explain)
	if err != nil {
		rt.logger.Error().Err(err).Msg("anonymous recommendation request failed")
		rt.writeError(w, http.StatusInternalServerError, "recommendations unavailable")
		return
	}

	rt.writeJSON(w, http.StatusOK, recommendationsResponse{
		Recommendations: recs,
		Count:           len(recs),
	})
}

// health serves GET /api/v1/health with a database liveness probe.
func (rt *Router) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	if err := rt.db.Ping(ctx); err != nil {
		rt.logger.Warn().Err(err).Msg("health check database ping failed")
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	rt.writeJSON(w, code, map[string]string{"status": status})
}

// listParams parses the shared limit/explain query parameters. A malformed
// limit is a client error; out-of-range limits are clamped by the engine.
func (rt *Router) listParams(w http.ResponseWriter, r *http.Request) (limit int, explain, ok bool) {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			rt.writeError(w, http.StatusBadRequest, "invalid limit")
			return 0, false, false
		}
		limit = n
	}
	explain = r.URL.Query().Get("explain") == "true"
	return limit, explain, true
}

// writeJSON writes a JSON response body.
func (rt *Router) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		rt.logger.Error().Err(err).Msg("encode response failed")
	}
}

// writeError writes a JSON error body.
func (rt *Router) writeError(w http.ResponseWriter, code int, msg string) {
	rt.writeJSON(w, code, errorResponse{Error: msg})
}
