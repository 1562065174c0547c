package partner

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/yalor/ace/internal/bus"
	"github.com/yalor/ace/internal/profile"
)

func TestIABCode(t *testing.T) {
	tests := []struct {
		category string
		want     string
	}{
		{"IAB8-18 (Food & Drink)", "IAB8-18"},
		{"IAB20 (Travel)", "IAB20"},
		{"custom-taxonomy", "custom-taxonomy"},
	}
	for _, tt := range tests {
		if got := iabCode(tt.category); got != tt.want {
			t.Errorf("iabCode(%q) = %q, want %q", tt.category, got, tt.want)
		}
	}
}

func TestPropensity(t *testing.T) {
	tests := []struct {
		stage bus.FunnelStage
		want  float64
	}{
		{bus.FunnelUpper, 0.3},
		{bus.FunnelMid, 0.6},
		{bus.FunnelLower, 0.9},
		{"", 0.5},
	}
	for _, tt := range tests {
		if got := propensity(tt.stage); got != tt.want {
			t.Errorf("propensity(%s) = %v, want %v", tt.stage, got, tt.want)
		}
	}
}

func TestNewBidRequest(t *testing.T) {
	opp := bus.Opportunity{
		ID:          "opp_1",
		SessionID:   "sess",
		Topic:       "Looking for BBQ meats",
		FunnelStage: bus.FunnelLower,
		Category:    "IAB8-18 (Food & Drink)",
		Score:       85,
		ProfileSnapshot: profile.Profile{
			BudgetTier: profile.BudgetHigh,
			Hobbies:    []string{"grilling"},
			LifeEvents: []string{"moved house"},
		},
	}

	req := NewBidRequest(opp)

	if !strings.HasPrefix(req.ID, "bid_") {
		t.Errorf("request id = %q, want bid_ prefix", req.ID)
	}
	if req.TMax != 500 {
		t.Errorf("tmax = %d, want 500", req.TMax)
	}
	if len(req.Site.Cat) != 1 || req.Site.Cat[0] != "IAB8-18" {
		t.Errorf("site.cat = %v", req.Site.Cat)
	}
	if req.Site.Ext.Data.IntentSummary != opp.Topic || req.Site.Ext.Data.OpportunityScore != 85 {
		t.Errorf("site.ext.data = %+v", req.Site.Ext.Data)
	}

	// The native request is itself a JSON document.
	var native map[string]any
	if err := json.Unmarshal([]byte(req.Imp[0].Native.Request), &native); err != nil {
		t.Fatalf("imp.native.request is not valid JSON: %v", err)
	}

	segs := map[string]string{}
	for _, s := range req.User.Data[0].Segment {
		segs[s.ID] = s.Value
	}
	if segs["funnel"] != "LOWER" || segs["propensity_score"] != "0.9" {
		t.Errorf("segments = %v", segs)
	}
	if segs["spending_power"] != "HIGH" {
		t.Errorf("spending_power segment = %q, want HIGH", segs["spending_power"])
	}
	if got := req.User.Ext.Ace.InferredHobbies; len(got) != 1 || got[0] != "grilling" {
		t.Errorf("inferred_hobbies = %v", got)
	}
}

func TestNewBidRequest_OmitsSpendingPowerWhenUnknown(t *testing.T) {
	req := NewBidRequest(bus.Opportunity{ID: "opp_1", FunnelStage: bus.FunnelUpper})
	for _, s := range req.User.Data[0].Segment {
		if s.ID == "spending_power" {
			t.Errorf("unexpected spending_power segment: %v", s)
		}
	}
}
