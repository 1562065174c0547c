package bridge

import (
	"fmt"

	"github.com/yalor/ace/internal/bus"
)

// OpenRTB native data asset types surfaced in the offer creative.
const (
	dataTypeSponsored = 1 // brand name
	dataTypeDesc      = 2 // description
)

// NewOffer builds the AdCP egress payload from a winning bid, flattening
// the OpenRTB native creative into the fields a chat client can render.
// First asset of each role wins when a partner sends duplicates.
func NewOffer(win bus.BidAccepted) bus.Offer {
	var o bus.Offer
	o.Protocol = "AdCP"
	o.SessionID = win.SessionID
	o.OpportunityID = win.OpportunityID

	native := win.WinningBid.Creative.Native
	for _, a := range native.Assets {
		switch {
		case a.Title != nil:
			if o.Creative.Title == "" {
				o.Creative.Title = a.Title.Text
			}
		case a.Img != nil:
			if o.Creative.ImageURL == "" {
				o.Creative.ImageURL = a.Img.URL
			}
		case a.Data != nil:
			switch a.Data.Type {
			case dataTypeSponsored:
				if o.Creative.BrandName == "" {
					o.Creative.BrandName = a.Data.Value
				}
			case dataTypeDesc:
				if o.Creative.Description == "" {
					o.Creative.Description = a.Data.Value
				}
			}
		}
	}
	o.Creative.ClickURL = native.Link.URL

	o.Directives.Tone = "helpful"
	o.Directives.MustInclude = "I found a great deal you might like."

	o.Tracking.OnRendered = fmt.Sprintf("/track/render?opp=%s", win.OpportunityID)
	o.Tracking.OnClicked = fmt.Sprintf("/track/click?opp=%s", win.OpportunityID)
	o.Tracking.OnFollowUp = fmt.Sprintf("/track/inquiry?opp=%s", win.OpportunityID)
	o.Tracking.OnDismissed = fmt.Sprintf("/track/dismiss?opp=%s", win.OpportunityID)

	return o
}
