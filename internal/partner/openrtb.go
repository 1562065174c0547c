// Package partner fans qualified opportunities out to advertising partners
// and translates their responses into bids.
package partner

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/google/uuid"

	"github.com/yalor/ace/internal/bus"
)

// BidRequest is the OpenRTB 2.6 request sent to every partner webhook.
type BidRequest struct {
	ID     string   `json:"id"`
	Imp    []Imp    `json:"imp"`
	Site   Site     `json:"site"`
	Device Device   `json:"device"`
	User   User     `json:"user"`
	TMax   int      `json:"tmax"`
	BCat   []string `json:"bcat"`
	WSeat  []string `json:"wseat"`
}

type Imp struct {
	ID     string `json:"id"`
	Native Native `json:"native"`
}

// Native carries the rendering requirements as a JSON-encoded string, per
// the OpenRTB Native spec.
type Native struct {
	Request string `json:"request"`
}

type Site struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Cat    []string `json:"cat"`
	CatTax int      `json:"cattax"`
	Ext    SiteExt  `json:"ext"`
}

type SiteExt struct {
	Data SiteExtData `json:"data"`
}

type SiteExtData struct {
	IntentSummary    string  `json:"ace_intent_summary"`
	OpportunityScore float64 `json:"ace_opportunity_score"`
}

type Device struct {
	UA         string `json:"ua"`
	IP         string `json:"ip"`
	DeviceType int    `json:"devicetype"`
}

type User struct {
	ID   string     `json:"id"`
	Data []UserData `json:"data"`
	Ext  UserExt    `json:"ext"`
}

type UserData struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Segment []Segment `json:"segment"`
}

type Segment struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

type UserExt struct {
	Ace UserExtAce `json:"ace"`
}

type UserExtAce struct {
	InferredHobbies []string `json:"inferred_hobbies"`
	LifeEvents      []string `json:"life_events"`
}

var iabCodeRE = regexp.MustCompile(`IAB\d+(-\d+)?`)

// iabCode extracts the bare code from a category tag like
// "IAB8-18 (Food & Drink)". Unparseable tags pass through whole.
func iabCode(category string) string {
	if code := iabCodeRE.FindString(category); code != "" {
		return code
	}
	return category
}

// propensity maps the funnel stage to a 0..1 purchase-readiness signal for
// partner targeting.
func propensity(stage bus.FunnelStage) float64 {
	switch stage {
	case bus.FunnelUpper:
		return 0.3
	case bus.FunnelMid:
		return 0.6
	case bus.FunnelLower:
		return 0.9
	default:
		return 0.5
	}
}

// NewBidRequest maps an opportunity to an OpenRTB 2.6 native bid request.
// Only inferred commercial traits cross this boundary; the conversation text
// itself never leaves the pipeline.
func NewBidRequest(opp bus.Opportunity) BidRequest {
	nativeReq, _ := json.Marshal(map[string]any{
		"native": map[string]any{
			"ver":       "1.2",
			"context":   1, // content-centric
			"plcmttype": 4, // chat / messaging
			"assets": []map[string]any{
				{"id": 1, "required": 1, "title": map[string]any{"len": 140}},
				{"id": 2, "required": 1, "img": map[string]any{"type": 3, "w": 1200, "h": 627}},
				{"id": 3, "required": 0, "data": map[string]any{"type": 2}},
			},
		},
	})

	segments := []Segment{
		{ID: "funnel", Value: string(opp.FunnelStage)},
		{ID: "propensity_score", Value: fmt.Sprintf("%.1f", propensity(opp.FunnelStage))},
	}
	if opp.ProfileSnapshot.BudgetTier != "" {
		segments = append(segments, Segment{ID: "spending_power", Value: string(opp.ProfileSnapshot.BudgetTier)})
	}

	return BidRequest{
		ID: fmt.Sprintf("bid_%s", uuid.New()),
		Imp: []Imp{{
			ID:     "1",
			Native: Native{Request: string(nativeReq)},
		}},
		Site: Site{
			ID:     "ace_chat_network",
			Name:   "ACE AI Commerce",
			Cat:    []string{iabCode(opp.Category)},
			CatTax: 2,
			Ext: SiteExt{Data: SiteExtData{
				IntentSummary:    opp.Topic,
				OpportunityScore: opp.Score,
			}},
		},
		Device: Device{
			UA:         "ACE-AI-Agent/1.0",
			IP:         "192.168.1.1",
			DeviceType: 1,
		},
		User: User{
			ID: "user_anonymous",
			Data: []UserData{{
				ID:      "ace_intent_provider",
				Name:    "ACE Conversational Insights",
				Segment: segments,
			}},
			Ext: UserExt{Ace: UserExtAce{
				InferredHobbies: opp.ProfileSnapshot.Hobbies,
				LifeEvents:      opp.ProfileSnapshot.LifeEvents,
			}},
		},
		TMax:  500,
		BCat:  []string{},
		WSeat: []string{},
	}
}
