package partner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yalor/ace/internal/bus"
)

// stubConnector implements Connector with a canned outcome.
type stubConnector struct {
	id    string
	bid   *bus.Bid
	err   error
	delay time.Duration
}

func (s *stubConnector) ID() string { return s.id }

func (s *stubConnector) RequestBid(ctx context.Context, opp bus.Opportunity) (*bus.Bid, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	if s.bid == nil {
		return nil, nil
	}
	b := *s.bid
	b.OpportunityID = opp.ID
	b.SessionID = opp.SessionID
	return &b, nil
}

func collectBids(b *bus.Bus) chan bus.BidReceived {
	ch := make(chan bus.BidReceived, 8)
	bus.Subscribe(b, func(e bus.BidReceived) { ch <- e })
	return ch
}

func TestRouter_AnnouncesFanOutImmediately(t *testing.T) {
	b := bus.New()
	slow := &stubConnector{id: "slow", delay: 500 * time.Millisecond}
	r := NewRouter(b, []Connector{slow, &stubConnector{id: "pass"}})
	defer r.Start(context.Background())()

	fanned := make(chan bus.OpportunityFannedOut, 1)
	bus.Subscribe(b, func(e bus.OpportunityFannedOut) { fanned <- e })

	start := time.Now()
	b.Publish(bus.OpportunityIdentified{Opportunity: bus.Opportunity{ID: "opp_1", SessionID: "sess"}})

	select {
	case e := <-fanned:
		if e.ConnectorCount != 2 || e.OpportunityID != "opp_1" {
			t.Errorf("fan-out event = %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no fan-out event")
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("fan-out announcement waited on connectors: %v", elapsed)
	}
}

func TestRouter_PublishesBidsFromWillingPartners(t *testing.T) {
	b := bus.New()
	r := NewRouter(b, []Connector{
		&stubConnector{id: "bidder", bid: &bus.Bid{PartnerID: "bidder", Amount: 1.50}},
		&stubConnector{id: "passer"},
	})
	defer r.Start(context.Background())()

	bids := collectBids(b)
	b.Publish(bus.OpportunityIdentified{Opportunity: bus.Opportunity{ID: "opp_1", SessionID: "sess"}})

	select {
	case e := <-bids:
		if e.Bid.PartnerID != "bidder" || e.Bid.OpportunityID != "opp_1" {
			t.Errorf("bid = %+v", e.Bid)
		}
	case <-time.After(time.Second):
		t.Fatal("no bid published")
	}

	select {
	case e := <-bids:
		t.Fatalf("unexpected second bid: %+v", e)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRouter_FailureIsolation(t *testing.T) {
	b := bus.New()
	r := NewRouter(b, []Connector{
		&stubConnector{id: "broken", err: errors.New("connection refused")},
		&stubConnector{id: "healthy", bid: &bus.Bid{PartnerID: "healthy", Amount: 2.00}},
	})
	defer r.Start(context.Background())()

	bids := collectBids(b)
	b.Publish(bus.OpportunityIdentified{Opportunity: bus.Opportunity{ID: "opp_1", SessionID: "sess"}})

	select {
	case e := <-bids:
		if e.Bid.PartnerID != "healthy" {
			t.Errorf("bid from %s, want healthy", e.Bid.PartnerID)
		}
	case <-time.After(time.Second):
		t.Fatal("healthy partner's bid lost to sibling failure")
	}
}
