package pipeline

type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseFetching      Phase = "fetching"
	PhaseExtracting    Phase = "extracting"
	PhaseScoring       Phase = "scoring"
	PhaseDeduplicating Phase = "deduplicating"
	PhaseComplete      Phase = "complete"
)

// PhaseEvent is emitted on every phase transition. Term is empty for transitions
// of the run itself and set for those of a term's sub-pipeline.
type PhaseEvent struct {
	RunID string
	Term  string
	Phase Phase
}

// PhaseHook observes phase transitions, it is called concurrently from every
// sub-pipeline and must not block.
type PhaseHook func(event PhaseEvent)

type Outcome string

const (
	// OutcomeResults means at least one listing survived.
	OutcomeResults Outcome = "results"
	// OutcomeNoMatches means listings were extracted but none survived scoring.
	OutcomeNoMatches Outcome = "no-matches"
	// OutcomeNoData means no term yielded a single listing.
	OutcomeNoData Outcome = "no-data"
)
