package workflows

// StateMachine enforces registry project status transitions
type StateMachine struct {
	allowedTransitions map[string][]string
}

// NewStateMachine creates a new state machine with allowed transitions
func NewStateMachine() *StateMachine {
	return &StateMachine{
		allowedTransitions: map[string][]string{
			"PENDING":   {"VERIFYING", "REJECTED", "LOCKED"},
			"VERIFYING": {"VERIFIED", "PENDING"}, // back to PENDING on aborted issuance
			"VERIFIED":  {"LOCKED"},
			"REJECTED":  {"LOCKED"},
			"LOCKED":    {"PENDING", "VERIFIED", "REJECTED"}, // unlock restores the saved prior status
		},
	}
}

// CanTransition checks if a status transition is allowed
func (sm *StateMachine) CanTransition(from, to string) bool {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return false
	}
	for _, allowedTo := range allowed {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// GetAllowedTransitions returns the allowed next statuses for a given status
func (sm *StateMachine) GetAllowedTransitions(from string) []string {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return []string{}
	}
	return allowed
}
