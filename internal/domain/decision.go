package domain

// Decision is the outcome of an access-control evaluation for a
// (path, caller address) pair. Evaluation failures are reported as a
// separate error value, never folded into a Decision.
type Decision int

const (
	// DecisionDeny blocks the request
	DecisionDeny Decision = iota
	// DecisionAllow lets the request through
	DecisionAllow
)

// Allowed reports whether the decision lets the request through
func (d Decision) Allowed() bool {
	return d == DecisionAllow
}

// String returns the lowercase wire representation of the decision
func (d Decision) String() string {
	if d == DecisionAllow {
		return "allow"
	}
	return "deny"
}
