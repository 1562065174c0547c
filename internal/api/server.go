// Package api exposes the pipeline over HTTP: the synchronous message
// ingress, tracking beacons, an SSE event stream, and a bearer-protected
// management surface.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/yalor/ace/internal/bridge"
	"github.com/yalor/ace/internal/bus"
	"github.com/yalor/ace/internal/journal"
	"github.com/yalor/ace/internal/profile"
)

const maxRequestBodySize = 1 << 20 // 1MB

// DefaultSessionID is assumed when the ingress caller sends no session id.
const DefaultSessionID = "global-demo-session"

// TurnHandler runs one conversational turn to completion.
type TurnHandler interface {
	Handle(ctx context.Context, sessionID, message string) (*bus.Offer, error)
}

// Deps holds everything the HTTP surface needs.
type Deps struct {
	Bus      *bus.Bus
	Bridge   TurnHandler
	Profiles *profile.Store
	Journal  *journal.Store // optional; stats and recent offers 404 without it
	Token    string         // management surface bearer token
}

// NewHandler builds the full router: public ingress plus the protected
// management routes.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Post("/v1/message", handleMessage(deps))
	r.Get("/v1/events", handleEventStream(deps.Bus))
	r.Get("/track/{action}", handleTrack)
	r.Post("/mock-partners/coupon-network", handleCouponNetwork)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Get("/v1/sessions/{id}/profile", handleGetProfile(deps))
		r.Get("/v1/offers/recent", handleRecentOffers(deps))
		r.Get("/v1/stats", handleStats(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// MessageRequest is one ingress turn.
type MessageRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// MessageResponse carries at most one offer. A null offer means the turn
// was not commercial or no partner bid in time.
type MessageResponse struct {
	Offer *bus.Offer `json:"offer"`
}

func handleMessage(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req MessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.SessionID == "" {
			req.SessionID = DefaultSessionID
		}

		offer, err := deps.Bridge.Handle(r.Context(), req.SessionID, req.Message)
		switch {
		case errors.Is(err, bridge.ErrEmptyMessage):
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message is required")
			return
		case errors.Is(err, bridge.ErrSessionBusy):
			httpError(w, http.StatusConflict, "conflict_error", "session %s already has a turn in flight", req.SessionID)
			return
		case err != nil:
			httpError(w, http.StatusInternalServerError, "api_error", "processing turn: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(MessageResponse{Offer: offer})
	}
}

// trackActions are the client-reported ad lifecycle beacons.
var trackActions = map[string]bool{
	"render":  true,
	"click":   true,
	"inquiry": true,
	"dismiss": true,
}

func handleTrack(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")
	if !trackActions[action] {
		httpError(w, http.StatusNotFound, "not_found", "unknown tracking action %q", action)
		return
	}
	// Beacons are fire-and-forget; an opp id is all we need to attribute.
	slog.Info("ad tracking beacon",
		"action", action,
		"opportunity_id", r.URL.Query().Get("opp"),
	)
	w.WriteHeader(http.StatusNoContent)
}

func handleGetProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		p := deps.Profiles.Get(id)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(p)
	}
}

func handleRecentOffers(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Journal == nil {
			httpError(w, http.StatusNotFound, "not_found", "journal not configured")
			return
		}

		limit := parseIntParam(r, "limit", 10, 100)
		offers, err := deps.Journal.RecentOffers(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing offers: %v", err)
			return
		}
		if offers == nil {
			offers = []bus.Offer{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(offers)
	}
}

func handleStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Journal == nil {
			httpError(w, http.StatusNotFound, "not_found", "journal not configured")
			return
		}

		counts, err := deps.Journal.Counts()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "counting events: %v", err)
			return
		}

		stats := make(map[string]int64, len(counts))
		for kind, n := range counts {
			stats[string(kind)] = n
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
