package partner

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/yalor/ace/internal/bus"
)

// Router fans each qualified opportunity out to every registered connector
// in parallel and publishes the bids that come back. A connector failure
// never affects its siblings.
type Router struct {
	bus        *bus.Bus
	connectors []Connector
	logger     *slog.Logger
}

// NewRouter creates a Router over a fixed connector set. Call Start to
// attach it to the bus.
func NewRouter(b *bus.Bus, connectors []Connector) *Router {
	return &Router{
		bus:        b,
		connectors: connectors,
		logger:     slog.Default(),
	}
}

// Start subscribes to OPPORTUNITY_IDENTIFIED and returns an unsubscribe
// function. ctx bounds all in-flight partner calls.
func (r *Router) Start(ctx context.Context) func() {
	return bus.Subscribe(r.bus, func(e bus.OpportunityIdentified) {
		r.handleOpportunity(ctx, e.Opportunity)
	})
}

func (r *Router) handleOpportunity(ctx context.Context, opp bus.Opportunity) {
	// Fan-out is announced up front; it reports dispatch, not results.
	r.bus.Publish(bus.OpportunityFannedOut{
		SessionID:      opp.SessionID,
		OpportunityID:  opp.ID,
		ConnectorCount: len(r.connectors),
	})

	go r.fanOut(ctx, opp)
}

func (r *Router) fanOut(ctx context.Context, opp bus.Opportunity) {
	g, ctx := errgroup.WithContext(ctx)
	for _, c := range r.connectors {
		g.Go(func() error {
			bid, err := c.RequestBid(ctx, opp)
			if err != nil {
				// Swallowed so one slow or broken partner cannot sink
				// the rest of the fan-out.
				r.logger.Warn("partner bid request failed",
					"partner_id", c.ID(),
					"opportunity_id", opp.ID,
					"error", err,
				)
				return nil
			}
			if bid == nil {
				r.logger.Debug("partner passed",
					"partner_id", c.ID(),
					"opportunity_id", opp.ID,
				)
				return nil
			}
			r.bus.Publish(bus.BidReceived{Bid: *bid})
			return nil
		})
	}
	// Connector errors are logged above, never returned.
	_ = g.Wait()
}
