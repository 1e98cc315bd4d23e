package packs

// Flow states
const (
	StateSelect     = "select"
	StatePurchasing = "purchasing"
	StateOpening    = "opening"
	StateRevealed   = "revealed"
	StatePlaying    = "playing"
)

// Valid state transitions: from -> []to. Every non-select state can fall
// back to select on failure or reset.
var ValidTransitions = map[string][]string{
	StateSelect:     {StatePurchasing, StateOpening},
	StatePurchasing: {StateOpening, StateSelect},
	StateOpening:    {StateRevealed, StateSelect},
	StateRevealed:   {StatePlaying, StateSelect},
	StatePlaying:    {StateSelect},
}

func IsValidTransition(from, to string) bool {
	allowed, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}
