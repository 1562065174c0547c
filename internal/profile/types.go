package profile

// BudgetTier is the coarse spending-power classification inferred from the
// conversation. Extraction is instructed to be conservative about it.
type BudgetTier string

const (
	BudgetLow    BudgetTier = "LOW"
	BudgetMedium BudgetTier = "MEDIUM"
	BudgetHigh   BudgetTier = "HIGH"
)

// Profile is the per-session trait accumulator. List-valued traits are sets
// merged by union; scalar traits hold the most recent non-empty extraction.
// Traits are monotonically additive within a session's lifetime.
type Profile struct {
	SessionID  string     `json:"session_id"`
	Location   string     `json:"location,omitempty"`
	BudgetTier BudgetTier `json:"budget_tier,omitempty"`

	Interests  []string `json:"interests"`
	Hobbies    []string `json:"hobbies"`
	LifeEvents []string `json:"life_events"`
	Household  []string `json:"household_context"`

	// Confidence holds per-trait confidence scores (0.0-1.0); last write
	// wins per key.
	Confidence map[string]float64 `json:"confidence_scores"`
}

// Delta is one turn's worth of inferred trait changes. Empty scalar fields
// mean "no new information", never "clear".
type Delta struct {
	Location   string     `json:"location,omitempty"`
	BudgetTier BudgetTier `json:"budget_tier,omitempty"`

	Interests  []string `json:"interests,omitempty"`
	Hobbies    []string `json:"hobbies,omitempty"`
	LifeEvents []string `json:"life_events,omitempty"`
	Household  []string `json:"household_context,omitempty"`
}

// Empty reports whether the delta carries no information at all.
func (d Delta) Empty() bool {
	return d.Location == "" && d.BudgetTier == "" &&
		len(d.Interests) == 0 && len(d.Hobbies) == 0 &&
		len(d.LifeEvents) == 0 && len(d.Household) == 0
}
