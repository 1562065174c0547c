package partner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/yalor/ace/internal/bus"
)

// DefaultDeadline bounds how long a partner gets to answer a bid request.
const DefaultDeadline = 200 * time.Millisecond

// Connector requests a bid from one advertising partner. A nil bid with a
// nil error means the partner passed.
type Connector interface {
	ID() string
	RequestBid(ctx context.Context, opp bus.Opportunity) (*bus.Bid, error)
}

// bidResponse is what a partner webhook returns. A zero or negative amount
// is a pass.
type bidResponse struct {
	BidAmount float64      `json:"bid_amount"`
	NativeAd  bus.NativeAd `json:"native_ad"`
}

// WebhookConnector speaks OpenRTB over HTTP to an external partner endpoint.
type WebhookConnector struct {
	id       string
	url      string
	deadline time.Duration
	client   *http.Client
}

// NewWebhookConnector creates a connector for one partner webhook.
// deadline <= 0 falls back to DefaultDeadline.
func NewWebhookConnector(id, url string, deadline time.Duration) *WebhookConnector {
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	return &WebhookConnector{
		id:       id,
		url:      url,
		deadline: deadline,
		// Timeout stays on the per-request context so the deadline is
		// configurable per connector.
		client: &http.Client{},
	}
}

func (c *WebhookConnector) ID() string { return c.id }

// RequestBid posts the OpenRTB request and translates the response. The
// deadline covers the whole exchange; a partner that misses it is treated
// as having passed, reported through the error.
func (c *WebhookConnector) RequestBid(ctx context.Context, opp bus.Opportunity) (*bus.Bid, error) {
	ctx, cancel := context.WithTimeout(ctx, c.deadline)
	defer cancel()

	body, err := json.Marshal(NewBidRequest(opp))
	if err != nil {
		return nil, fmt.Errorf("encoding bid request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating bid request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling partner %s: %w", c.id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("partner %s returned status %d", c.id, resp.StatusCode)
	}

	var br bidResponse
	if err := json.NewDecoder(resp.Body).Decode(&br); err != nil {
		return nil, fmt.Errorf("decoding partner %s response: %w", c.id, err)
	}

	if br.BidAmount <= 0 {
		return nil, nil
	}
	return &bus.Bid{
		SessionID:     opp.SessionID,
		OpportunityID: opp.ID,
		PartnerID:     c.id,
		Amount:        br.BidAmount,
		Creative:      br.NativeAd,
	}, nil
}
