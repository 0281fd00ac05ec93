package trust

import (
	"time"

	"github.com/tistis/secure-booking/internal/policy"
)

// DeltaFor returns the configured signed adjustment for an outcome.
func DeltaFor(o Outcome, d policy.OutcomeDeltas) int {
	switch o {
	case OutcomeCompleted:
		return d.Completed
	case OutcomeCancelledEarly:
		return d.CancelledEarly
	case OutcomeCancelledLate:
		return d.CancelledLate
	case OutcomeNoShow:
		return d.NoShow
	case OutcomeFraudSignal:
		return d.FraudSignal
	}
	return 0
}

// DecayedDelta shrinks a negative delta linearly to zero over window.
// Positive deltas keep their full value.
func DecayedDelta(delta int, age, window time.Duration) int {
	if delta >= 0 {
		return delta
	}
	if window <= 0 {
		return delta
	}
	if age < 0 {
		age = 0
	}
	if age >= window {
		return 0
	}
	remaining := int64(window - age)
	return int(int64(delta) * remaining / int64(window))
}

// Replay recomputes a score from the ledger, oldest event first, clamping after every step.
func Replay(events []Event, window time.Duration, now time.Time) int {
	score := NeutralScore
	for _, e := range events {
		score = clamp(score + DecayedDelta(e.Delta, now.Sub(e.OccurredAt), window))
	}
	return score
}

func clamp(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}
