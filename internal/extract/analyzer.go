package extract

import (
	"context"
	"log/slog"

	"github.com/yalor/ace/internal/bus"
	"github.com/yalor/ace/internal/history"
	"github.com/yalor/ace/internal/profile"
	"github.com/yalor/ace/internal/scrub"
)

// Analyzer drives one turn's NLP pipeline off the bus: scrub the inbound
// message, append it to the session history, run extraction, merge the
// profile delta, and publish the detected intents.
type Analyzer struct {
	bus       *bus.Bus
	extractor Extractor
	profiles  *profile.Store
	history   *history.Store
	logger    *slog.Logger
}

// NewAnalyzer wires an Analyzer to its collaborators. Call Start to attach
// it to the bus.
func NewAnalyzer(b *bus.Bus, extractor Extractor, profiles *profile.Store, hist *history.Store) *Analyzer {
	return &Analyzer{
		bus:       b,
		extractor: extractor,
		profiles:  profiles,
		history:   hist,
		logger:    slog.Default(),
	}
}

// Start subscribes to INPUT_RECEIVED and returns an unsubscribe function.
// Extraction has real latency, so the handler hands each turn to its own
// goroutine rather than blocking the publishing caller; ctx bounds the
// lifetime of those goroutines.
func (a *Analyzer) Start(ctx context.Context) func() {
	return bus.Subscribe(a.bus, func(e bus.InputReceived) {
		go a.processTurn(ctx, e)
	})
}

func (a *Analyzer) processTurn(ctx context.Context, e bus.InputReceived) {
	a.logger.Debug("processing turn", "session_id", e.SessionID)

	safe := scrub.Text(e.Message)
	a.history.Append(e.SessionID, history.RoleUser, safe)
	digest := a.history.Digest(e.SessionID)

	res := a.extractor.Extract(ctx, e.SessionID, digest)

	a.profiles.MergeDelta(e.SessionID, res.Delta, res.Confidences)

	if len(res.Intents) == 0 {
		a.logger.Debug("non-commercial turn", "session_id", e.SessionID)
	}

	a.bus.Publish(bus.IntentsDetected{
		SessionID:  e.SessionID,
		Intents:    res.Intents,
		Confidence: res.Confidence,
	})
}
