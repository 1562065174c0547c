// Package synth turns detected intents into qualified opportunities. It owns
// the per-session active-opportunity set and the obsoletion of superseded
// opportunities.
package synth

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/yalor/ace/internal/bus"
	"github.com/yalor/ace/internal/profile"
)

// QualificationThreshold is the minimum score (inclusive) an intent must
// reach before it becomes an opportunity.
const QualificationThreshold = 30.0

// ObsoletedReason is attached to every OPPORTUNITY_OBSOLETED the
// synthesizer publishes.
const ObsoletedReason = "superseded by new context"

// Synthesizer consumes INTENTS_DETECTED events and emits qualified
// opportunities, obsoleting a session's previous batch when a new one
// arrives.
type Synthesizer struct {
	bus      *bus.Bus
	profiles *profile.Store
	logger   *slog.Logger

	mu     sync.Mutex
	active map[string][]string // session id -> active opportunity ids
}

// New creates a Synthesizer. Call Start to attach it to the bus.
func New(b *bus.Bus, profiles *profile.Store) *Synthesizer {
	return &Synthesizer{
		bus:      b,
		profiles: profiles,
		logger:   slog.Default(),
		active:   make(map[string][]string),
	}
}

// Start subscribes to INTENTS_DETECTED and returns an unsubscribe function.
// Synthesis is pure computation, so it runs on the publishing goroutine.
func (s *Synthesizer) Start() func() {
	return bus.Subscribe(s.bus, s.handleIntents)
}

func (s *Synthesizer) handleIntents(e bus.IntentsDetected) {
	snapshot := s.profiles.Get(e.SessionID)

	var batch []bus.Opportunity
	for _, intent := range e.Intents {
		score := Score(intent, e.Confidence, snapshot)
		if score < QualificationThreshold {
			s.logger.Info("intent failed qualification gate",
				"session_id", e.SessionID,
				"topic", intent.Topic,
				"score", score,
			)
			continue
		}

		batch = append(batch, bus.Opportunity{
			ID:              fmt.Sprintf("opp_%s", uuid.New()),
			SessionID:       e.SessionID,
			Topic:           intent.Topic,
			FunnelStage:     Funnel(intent),
			Category:        Categorize(intent.Topic),
			Score:           score,
			ProfileSnapshot: snapshot,
		})
	}

	// A turn with zero qualifying intents leaves the session's active set
	// untouched; only a new batch supersedes the old one.
	if len(batch) == 0 {
		return
	}

	s.mu.Lock()
	previous := s.active[e.SessionID]
	ids := make([]string, len(batch))
	for i, opp := range batch {
		ids[i] = opp.ID
	}
	s.active[e.SessionID] = ids
	s.mu.Unlock()

	for _, oppID := range previous {
		s.bus.Publish(bus.OpportunityObsoleted{
			SessionID:     e.SessionID,
			OpportunityID: oppID,
			Reason:        ObsoletedReason,
		})
	}

	for _, opp := range batch {
		s.logger.Info("opportunity qualified",
			"session_id", opp.SessionID,
			"opportunity_id", opp.ID,
			"score", opp.Score,
			"funnel_stage", string(opp.FunnelStage),
			"category", opp.Category,
		)
		s.bus.Publish(bus.OpportunityIdentified{Opportunity: opp})
	}
}

// Active returns the session's current active opportunity ids.
func (s *Synthesizer) Active(sessionID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.active[sessionID]...)
}

// Score computes the qualification heuristic for one intent against the
// session's profile snapshot, clamped to [0,100].
func Score(intent bus.Intent, extractionConfidence float64, p profile.Profile) float64 {
	score := 0.5 * extractionConfidence

	if intent.Timing == bus.TimingImmediate {
		score += 15
	}
	if intent.Type == bus.IntentDirect {
		score += 10
	}
	if p.Location != "" {
		score += 5
	}
	switch p.BudgetTier {
	case profile.BudgetHigh:
		score += 15
	case profile.BudgetMedium:
		score += 5
	}
	if len(p.Hobbies) >= 1 {
		score += 5
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Funnel maps intent type and timing to a buying-readiness stage: an
// explicit immediate need is ready-to-buy, an implied future one is
// awareness, everything in between is consideration.
func Funnel(intent bus.Intent) bus.FunnelStage {
	switch {
	case intent.Type == bus.IntentDirect && intent.Timing == bus.TimingImmediate:
		return bus.FunnelLower
	case intent.Type == bus.IntentLatent && intent.Timing == bus.TimingDeferred:
		return bus.FunnelUpper
	default:
		return bus.FunnelMid
	}
}
