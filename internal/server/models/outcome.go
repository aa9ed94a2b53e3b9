package models

// Outcome classifies how a multi-step coordinator protocol finished. It is
// internal bookkeeping, never persisted.
type Outcome int

const (
	// OutcomeCommitted: every step succeeded.
	OutcomeCommitted Outcome = iota
	// OutcomeCompensated: a step failed and the preceding steps were rolled
	// back cleanly. The system is consistent.
	OutcomeCompensated
	// OutcomeDiverged: a step failed and rollback failed too. An
	// inconsistency persists and has been flagged for audit.
	OutcomeDiverged
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCommitted:
		return "committed"
	case OutcomeCompensated:
		return "compensated"
	case OutcomeDiverged:
		return "diverged"
	default:
		return "unknown"
	}
}
