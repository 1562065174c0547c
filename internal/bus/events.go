package bus

import (
	"time"

	"github.com/yalor/ace/internal/profile"
)

// Kind identifies one event type on the bus.
type Kind string

const (
	KindInputReceived         Kind = "INPUT_RECEIVED"
	KindIntentsDetected       Kind = "INTENTS_DETECTED"
	KindOpportunityIdentified Kind = "OPPORTUNITY_IDENTIFIED"
	KindOpportunityObsoleted  Kind = "OPPORTUNITY_OBSOLETED"
	KindOpportunityFannedOut  Kind = "OPPORTUNITY_FANNED_OUT"
	KindBidReceived           Kind = "BID_RECEIVED"
	KindBidAccepted           Kind = "BID_ACCEPTED"
	KindOfferReady            Kind = "OFFER_READY"
)

// Kinds lists every event kind, in pipeline order.
func Kinds() []Kind {
	return []Kind{
		KindInputReceived,
		KindIntentsDetected,
		KindOpportunityIdentified,
		KindOpportunityObsoleted,
		KindOpportunityFannedOut,
		KindBidReceived,
		KindBidAccepted,
		KindOfferReady,
	}
}

// Event is the closed union of payloads carried on the bus. Each payload
// struct below implements it for exactly one kind.
type Event interface {
	EventKind() Kind
}

// IntentType distinguishes an explicitly stated wish from one implied by
// surrounding context.
type IntentType string

const (
	IntentDirect IntentType = "DIRECT"
	IntentLatent IntentType = "LATENT"
)

// IntentTiming distinguishes a need the user wants met now from one that
// sits somewhere in the future.
type IntentTiming string

const (
	TimingImmediate IntentTiming = "IMMEDIATE"
	TimingDeferred  IntentTiming = "DEFERRED"
)

// FunnelStage is the coarse buying-readiness classification.
type FunnelStage string

const (
	FunnelUpper FunnelStage = "UPPER"
	FunnelMid   FunnelStage = "MID"
	FunnelLower FunnelStage = "LOWER"
)

// Intent is one extraction result: a transient candidate consumed once by
// the synthesizer, never persisted.
type Intent struct {
	Type       IntentType   `json:"type"`
	Timing     IntentTiming `json:"timing"`
	Topic      string       `json:"topic"`
	Evidence   []string     `json:"evidence"`
	Confidence float64      `json:"confidence"` // 0-100
}

// Opportunity is a qualified, scored candidate for a sponsored offer tied
// to one session.
type Opportunity struct {
	ID              string          `json:"opportunity_id"`
	SessionID       string          `json:"session_id"`
	Topic           string          `json:"topic"`
	FunnelStage     FunnelStage     `json:"funnel_stage"`
	Category        string          `json:"category"`
	Score           float64         `json:"qualification_score"`
	ProfileSnapshot profile.Profile `json:"profile_snapshot"`
}

// NativeAsset is one asset of an OpenRTB native creative.
type NativeAsset struct {
	ID    int              `json:"id"`
	Title *NativeTitle     `json:"title,omitempty"`
	Img   *NativeImage     `json:"img,omitempty"`
	Data  *NativeDataValue `json:"data,omitempty"`
}

type NativeTitle struct {
	Text string `json:"text"`
}

type NativeImage struct {
	URL    string `json:"url"`
	Width  int    `json:"w,omitempty"`
	Height int    `json:"h,omitempty"`
}

type NativeDataValue struct {
	Type  int    `json:"type"`
	Value string `json:"value"`
}

type NativeLink struct {
	URL string `json:"url"`
}

// NativeMarkup is the inner "native" object of an OpenRTB native creative.
type NativeMarkup struct {
	Assets      []NativeAsset `json:"assets"`
	Link        NativeLink    `json:"link"`
	ImpTrackers []string      `json:"imptrackers,omitempty"`
}

// NativeAd is the OpenRTB native creative payload a partner returns with a
// bid. It is treated as opaque by everything except the egress mapping.
type NativeAd struct {
	Native NativeMarkup `json:"native"`
}

// Bid belongs to exactly one opportunity.
type Bid struct {
	SessionID     string   `json:"session_id"`
	OpportunityID string   `json:"opportunity_id"`
	PartnerID     string   `json:"partner_id"`
	Amount        float64  `json:"bid_amount"`
	Creative      NativeAd `json:"creative"`
}

// Offer is the AdCP egress payload: the sole externally-visible output of a
// successful auction.
type Offer struct {
	Protocol      string `json:"protocol"` // always "AdCP"
	SessionID     string `json:"session_id"`
	OpportunityID string `json:"opportunity_id"`

	Creative struct {
		Title       string `json:"title"`
		ImageURL    string `json:"image_url,omitempty"`
		BrandName   string `json:"brand_name,omitempty"`
		Description string `json:"description,omitempty"`
		ClickURL    string `json:"click_url"`
	} `json:"creative"`

	Directives struct {
		Tone        string `json:"tone"`
		MustInclude string `json:"must_include,omitempty"`
	} `json:"conversational_directives"`

	Tracking struct {
		OnRendered  string `json:"on_ad_rendered"`
		OnClicked   string `json:"on_ad_clicked"`
		OnFollowUp  string `json:"on_user_follow_up"`
		OnDismissed string `json:"on_ad_dismissed"`
	} `json:"tracking"`
}

// InputReceived kicks off the pipeline for one conversational turn.
type InputReceived struct {
	SessionID string    `json:"session_id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func (InputReceived) EventKind() Kind { return KindInputReceived }

// IntentsDetected carries the extraction result for one turn: the intent
// stack (most recent first) plus the extractor's overall confidence.
type IntentsDetected struct {
	SessionID  string   `json:"session_id"`
	Intents    []Intent `json:"intents"`
	Confidence float64  `json:"confidence"` // 0-100
}

func (IntentsDetected) EventKind() Kind { return KindIntentsDetected }

// OpportunityIdentified announces a qualified opportunity to the partner
// router and the auction engine.
type OpportunityIdentified struct {
	Opportunity Opportunity `json:"opportunity"`
}

func (OpportunityIdentified) EventKind() Kind { return KindOpportunityIdentified }

// OpportunityObsoleted invalidates a previously active opportunity when new
// conversational context supersedes it.
type OpportunityObsoleted struct {
	SessionID     string `json:"session_id"`
	OpportunityID string `json:"opportunity_id"`
	Reason        string `json:"reason"`
}

func (OpportunityObsoleted) EventKind() Kind { return KindOpportunityObsoleted }

// OpportunityFannedOut records that the router started fan-out; it reports
// connector count, not results.
type OpportunityFannedOut struct {
	SessionID      string `json:"session_id"`
	OpportunityID  string `json:"opportunity_id"`
	ConnectorCount int    `json:"connector_count"`
}

func (OpportunityFannedOut) EventKind() Kind { return KindOpportunityFannedOut }

// BidReceived carries one partner bid toward the auction engine.
type BidReceived struct {
	Bid Bid `json:"bid"`
}

func (BidReceived) EventKind() Kind { return KindBidReceived }

// BidAccepted announces the auction winner. It carries the full winning bid
// because the egress offer surfaces the winning creative.
type BidAccepted struct {
	SessionID     string  `json:"session_id"`
	OpportunityID string  `json:"opportunity_id"`
	PartnerID     string  `json:"winning_partner_id"`
	Amount        float64 `json:"winning_bid_amount"`
	WinningBid    Bid     `json:"winning_bid"`
}

func (BidAccepted) EventKind() Kind { return KindBidAccepted }

// OfferReady mirrors the egress payload onto the bus for observers; the
// bridge resolves the waiting call with the same Offer.
type OfferReady struct {
	Offer Offer `json:"offer"`
}

func (OfferReady) EventKind() Kind { return KindOfferReady }
