// Package profile holds the in-memory session profile store. Profiles live
// for the process lifetime; a production deployment needs TTL eviction here.
package profile

import (
	"log/slog"
	"sync"
)

// Store accumulates inferred traits per session. All access is by value:
// callers get deep copies and can never mutate shared state.
type Store struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{profiles: make(map[string]*Profile)}
}

// Get returns a copy of the session's profile, creating an empty one on
// first access.
func (s *Store) Get(sessionID string) Profile {
	s.mu.RLock()
	p, ok := s.profiles[sessionID]
	if ok {
		cp := copyProfile(p)
		s.mu.RUnlock()
		return cp
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	return copyProfile(s.getOrCreate(sessionID))
}

// MergeDelta unions list traits, overwrites scalar traits for non-empty
// incoming values, and merges confidence scores last-write-wins per key.
// Applying the same delta twice yields the same state as applying it once.
func (s *Store) MergeDelta(sessionID string, d Delta, confidences map[string]float64) {
	if d.Empty() && len(confidences) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.getOrCreate(sessionID)

	if d.Location != "" {
		p.Location = d.Location
	}
	if d.BudgetTier != "" {
		p.BudgetTier = d.BudgetTier
	}

	p.Interests = unionInto(p.Interests, d.Interests)
	p.Hobbies = unionInto(p.Hobbies, d.Hobbies)
	p.LifeEvents = unionInto(p.LifeEvents, d.LifeEvents)
	p.Household = unionInto(p.Household, d.Household)

	for k, v := range confidences {
		p.Confidence[k] = v
	}

	slog.Debug("profile delta merged",
		"session_id", sessionID,
		"interests", len(p.Interests),
		"hobbies", len(p.Hobbies),
	)
}

// getOrCreate must be called with the write lock held.
func (s *Store) getOrCreate(sessionID string) *Profile {
	if p, ok := s.profiles[sessionID]; ok {
		return p
	}
	p := &Profile{
		SessionID:  sessionID,
		Interests:  []string{},
		Hobbies:    []string{},
		LifeEvents: []string{},
		Household:  []string{},
		Confidence: make(map[string]float64),
	}
	s.profiles[sessionID] = p
	return p
}

// unionInto appends the elements of add not already present in dst,
// preserving first-seen order.
func unionInto(dst, add []string) []string {
	if len(add) == 0 {
		return dst
	}
	seen := make(map[string]struct{}, len(dst))
	for _, v := range dst {
		seen[v] = struct{}{}
	}
	for _, v := range add {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		dst = append(dst, v)
	}
	return dst
}

func copyProfile(p *Profile) Profile {
	cp := *p

	cp.Interests = append([]string(nil), p.Interests...)
	cp.Hobbies = append([]string(nil), p.Hobbies...)
	cp.LifeEvents = append([]string(nil), p.LifeEvents...)
	cp.Household = append([]string(nil), p.Household...)

	cp.Confidence = make(map[string]float64, len(p.Confidence))
	for k, v := range p.Confidence {
		cp.Confidence[k] = v
	}
	return cp
}
