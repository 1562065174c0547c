// Package auction collects bids per opportunity over a fixed window and
// selects a single winner. Each opportunity runs through an explicit state
// machine (open -> closed{won|unsold|obsoleted}); late or unknown bids are
// rejected by state check, never by map absence.
package auction

import (
	"log/slog"
	"sync"
	"time"

	"github.com/yalor/ace/internal/bus"
)

// DefaultWindow is how long the engine waits for bids after the first one
// arrives.
const DefaultWindow = 250 * time.Millisecond

type state uint8

const (
	stateOpen state = iota
	stateWon
	stateUnsold
	stateObsoleted
)

// ledger holds the bids collected for one open opportunity plus its single
// close timer. Owned exclusively by the Engine; destroyed on close.
type ledger struct {
	bids  []bus.Bid
	timer *time.Timer
}

// Engine runs at most one auction per opportunity.
type Engine struct {
	bus    *bus.Bus
	window time.Duration
	logger *slog.Logger

	mu sync.Mutex
	// states covers every opportunity the engine has ever seen; entries are
	// process-lifetime (a real deployment needs TTL eviction, like the
	// session stores).
	states  map[string]state
	ledgers map[string]*ledger
}

// New creates an Engine. window <= 0 falls back to DefaultWindow. Call
// Start to attach it to the bus.
func New(b *bus.Bus, window time.Duration) *Engine {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Engine{
		bus:     b,
		window:  window,
		logger:  slog.Default(),
		states:  make(map[string]state),
		ledgers: make(map[string]*ledger),
	}
}

// Start subscribes the engine to the bus and returns an unsubscribe
// function.
func (e *Engine) Start() func() {
	unsubOpp := bus.Subscribe(e.bus, e.handleIdentified)
	unsubBid := bus.Subscribe(e.bus, e.handleBid)
	unsubObs := bus.Subscribe(e.bus, e.handleObsoleted)
	return func() {
		unsubOpp()
		unsubBid()
		unsubObs()
	}
}

func (e *Engine) handleIdentified(ev bus.OpportunityIdentified) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := ev.Opportunity.ID
	if _, ok := e.states[id]; !ok {
		e.states[id] = stateOpen
	}
}

func (e *Engine) handleBid(ev bus.BidReceived) {
	bid := ev.Bid

	e.mu.Lock()
	st, known := e.states[bid.OpportunityID]
	if !known || st != stateOpen {
		e.mu.Unlock()
		e.logger.Debug("dropping bid for unknown or closed opportunity",
			"opportunity_id", bid.OpportunityID,
			"partner_id", bid.PartnerID,
		)
		return
	}

	l, ok := e.ledgers[bid.OpportunityID]
	if !ok {
		// First bid opens the ledger and arms the close timer. Later bids
		// append without resetting it, so auction latency is bounded by
		// the window.
		id := bid.OpportunityID
		l = &ledger{
			timer: time.AfterFunc(e.window, func() { e.closeAuction(id) }),
		}
		e.ledgers[id] = l
	}
	l.bids = append(l.bids, bid)
	e.mu.Unlock()

	e.logger.Info("bid registered",
		"opportunity_id", bid.OpportunityID,
		"partner_id", bid.PartnerID,
		"amount", bid.Amount,
	)
}

func (e *Engine) handleObsoleted(ev bus.OpportunityObsoleted) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.states[ev.OpportunityID] != stateOpen {
		return
	}
	e.states[ev.OpportunityID] = stateObsoleted
	if l, ok := e.ledgers[ev.OpportunityID]; ok {
		l.timer.Stop()
		delete(e.ledgers, ev.OpportunityID)
	}
}

func (e *Engine) closeAuction(opportunityID string) {
	e.mu.Lock()

	if e.states[opportunityID] != stateOpen {
		// Obsoleted between timer fire and lock acquisition.
		e.mu.Unlock()
		return
	}
	l := e.ledgers[opportunityID]
	delete(e.ledgers, opportunityID)

	if l == nil || len(l.bids) == 0 {
		e.states[opportunityID] = stateUnsold
		e.mu.Unlock()
		return
	}

	// Strictly highest amount wins; ties break to the first received.
	winner := l.bids[0]
	for _, b := range l.bids[1:] {
		if b.Amount > winner.Amount {
			winner = b
		}
	}
	e.states[opportunityID] = stateWon
	e.mu.Unlock()

	e.logger.Info("auction closed",
		"opportunity_id", opportunityID,
		"bids", len(l.bids),
		"winning_partner_id", winner.PartnerID,
		"winning_amount", winner.Amount,
	)

	e.bus.Publish(bus.BidAccepted{
		SessionID:     winner.SessionID,
		OpportunityID: winner.OpportunityID,
		PartnerID:     winner.PartnerID,
		Amount:        winner.Amount,
		WinningBid:    winner,
	})
}
