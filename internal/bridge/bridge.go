// Package bridge converts the asynchronous pipeline into a synchronous
// request/response surface: one conversational turn in, at most one
// sponsored offer out.
package bridge

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/yalor/ace/internal/bus"
)

// DefaultDeadline is how long a turn waits for an auction to settle before
// giving up and answering with no offer. It has to cover LLM extraction,
// fan-out, and the auction window.
const DefaultDeadline = 8 * time.Second

var (
	// ErrEmptyMessage is returned when the turn carries no text.
	ErrEmptyMessage = errors.New("empty message")

	// ErrSessionBusy is returned when a session already has a turn in
	// flight. Correlation is keyed by session, so overlapping turns would
	// race for the same winning bid.
	ErrSessionBusy = errors.New("session already has a turn in flight")
)

// Bridge publishes incoming turns onto the bus and blocks the caller until
// a winning bid arrives for that session or the deadline passes.
type Bridge struct {
	bus      *bus.Bus
	deadline time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]struct{} // sessions with a turn in flight
}

// New creates a Bridge. deadline <= 0 falls back to DefaultDeadline.
func New(b *bus.Bus, deadline time.Duration) *Bridge {
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	return &Bridge{
		bus:      b,
		deadline: deadline,
		logger:   slog.Default(),
		pending:  make(map[string]struct{}),
	}
}

// Handle runs one conversational turn end to end. It returns a non-nil
// Offer when an auction settled for this session within the deadline, and
// (nil, nil) when the turn produced no offer. Every returned Offer is also
// mirrored onto the bus as OFFER_READY.
func (br *Bridge) Handle(ctx context.Context, sessionID, message string) (*bus.Offer, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}

	br.mu.Lock()
	if _, busy := br.pending[sessionID]; busy {
		br.mu.Unlock()
		return nil, ErrSessionBusy
	}
	br.pending[sessionID] = struct{}{}
	br.mu.Unlock()

	defer func() {
		br.mu.Lock()
		delete(br.pending, sessionID)
		br.mu.Unlock()
	}()

	// Subscribe before publishing so a fast auction cannot slip past the
	// correlation. The channel is buffered; the handler never blocks the
	// bus.
	won := make(chan bus.BidAccepted, 1)
	unsub := bus.Subscribe(br.bus, func(e bus.BidAccepted) {
		if e.SessionID != sessionID {
			return
		}
		select {
		case won <- e:
		default:
		}
	})
	defer unsub()

	ctx, cancel := context.WithTimeout(ctx, br.deadline)
	defer cancel()

	br.bus.Publish(bus.InputReceived{
		SessionID: sessionID,
		Message:   message,
		Timestamp: time.Now(),
	})

	select {
	case e := <-won:
		offer := NewOffer(e)
		br.bus.Publish(bus.OfferReady{Offer: offer})
		br.logger.Info("turn resolved with offer",
			"session_id", sessionID,
			"opportunity_id", e.OpportunityID,
			"winning_partner_id", e.PartnerID,
		)
		return &offer, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			// No auction settled in time. Not an error; most turns are
			// not commercial.
			br.logger.Debug("turn resolved without offer", "session_id", sessionID)
			return nil, nil
		}
		return nil, ctx.Err()
	}
}
