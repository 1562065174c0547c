package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yalor/ace/internal/bridge"
	"github.com/yalor/ace/internal/bus"
	"github.com/yalor/ace/internal/journal"
	"github.com/yalor/ace/internal/profile"
)

// mockBridge implements TurnHandler, recording the last turn it handled.
type mockBridge struct {
	offer     *bus.Offer
	err       error
	sessionID string
	message   string
}

func (m *mockBridge) Handle(_ context.Context, sessionID, message string) (*bus.Offer, error) {
	m.sessionID = sessionID
	m.message = message
	if m.err != nil {
		return nil, m.err
	}
	return m.offer, nil
}

func newTestDeps(t *testing.T, br TurnHandler) Deps {
	t.Helper()
	store, err := journal.Open(":memory:")
	if err != nil {
		t.Fatalf("opening journal: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return Deps{
		Bus:      bus.New(),
		Bridge:   br,
		Profiles: profile.NewStore(),
		Journal:  store,
		Token:    "test-token",
	}
}

func postMessage(t *testing.T, h http.Handler, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshaling request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/message", bytes.NewReader(b))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHandleMessage_ReturnsOffer(t *testing.T) {
	var offer bus.Offer
	offer.Protocol = "AdCP"
	offer.Creative.Title = "$2 off Premium Wagyu Burgers"

	br := &mockBridge{offer: &offer}
	h := NewHandler(newTestDeps(t, br))

	w := postMessage(t, h, MessageRequest{SessionID: "sess", Message: "I need steaks"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp MessageResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Offer == nil || resp.Offer.Creative.Title != "$2 off Premium Wagyu Burgers" {
		t.Errorf("offer = %+v", resp.Offer)
	}
	if br.sessionID != "sess" || br.message != "I need steaks" {
		t.Errorf("bridge saw %q / %q", br.sessionID, br.message)
	}
}

func TestHandleMessage_NullOfferForQuietTurn(t *testing.T) {
	h := NewHandler(newTestDeps(t, &mockBridge{}))

	w := postMessage(t, h, MessageRequest{SessionID: "sess", Message: "hello"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp MessageResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Offer != nil {
		t.Errorf("offer = %+v, want null", resp.Offer)
	}
}

func TestHandleMessage_DefaultsSessionID(t *testing.T) {
	br := &mockBridge{}
	h := NewHandler(newTestDeps(t, br))

	postMessage(t, h, MessageRequest{Message: "hello"})
	if br.sessionID != DefaultSessionID {
		t.Errorf("session id = %q, want %q", br.sessionID, DefaultSessionID)
	}
}

func TestHandleMessage_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"empty message", bridge.ErrEmptyMessage, http.StatusBadRequest},
		{"session busy", bridge.ErrSessionBusy, http.StatusConflict},
		{"context canceled", context.Canceled, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(newTestDeps(t, &mockBridge{err: tt.err}))
			w := postMessage(t, h, MessageRequest{SessionID: "sess", Message: "x"})
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestHandleMessage_RejectsBadJSON(t *testing.T) {
	h := NewHandler(newTestDeps(t, &mockBridge{}))

	req := httptest.NewRequest(http.MethodPost, "/v1/message", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleTrack(t *testing.T) {
	h := NewHandler(newTestDeps(t, &mockBridge{}))

	for _, action := range []string{"render", "click", "inquiry", "dismiss"} {
		req := httptest.NewRequest(http.MethodGet, "/track/"+action+"?opp=opp_1", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusNoContent {
			t.Errorf("track %s: status = %d, want 204", action, w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/track/convert?opp=opp_1", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown action: status = %d, want 404", w.Code)
	}
}

func TestManagementRoutes_RequireBearerToken(t *testing.T) {
	h := NewHandler(newTestDeps(t, &mockBridge{}))

	for _, path := range []string{"/v1/sessions/sess/profile", "/v1/offers/recent", "/v1/stats"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s without token: status = %d, want 401", path, w.Code)
		}

		req = httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer wrong-token")
		w = httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s with wrong token: status = %d, want 401", path, w.Code)
		}
	}
}

func TestHandleGetProfile(t *testing.T) {
	deps := newTestDeps(t, &mockBridge{})
	deps.Profiles.MergeDelta("sess", profile.Delta{Location: "Portland"}, nil)
	h := NewHandler(deps)

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/sess/profile", nil)
	req.Header.Set("Authorization", "Bearer test-token")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var p profile.Profile
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("decoding profile: %v", err)
	}
	if p.Location != "Portland" {
		t.Errorf("profile = %+v", p)
	}
}

func TestHandleStats(t *testing.T) {
	deps := newTestDeps(t, &mockBridge{})
	deps.Journal.RecordEvent(bus.InputReceived{SessionID: "sess", Message: "hi"})
	h := NewHandler(deps)

	req := httptest.NewRequest(http.MethodGet, "/v1/stats", nil)
	req.Header.Set("Authorization", "Bearer test-token")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var stats map[string]int64
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decoding stats: %v", err)
	}
	if stats["INPUT_RECEIVED"] != 1 {
		t.Errorf("stats = %v", stats)
	}
}

func TestHandleHealth(t *testing.T) {
	h := NewHandler(newTestDeps(t, &mockBridge{}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}
