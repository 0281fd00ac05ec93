package penalty

import (
	"time"

	"github.com/tistis/secure-booking/internal/policy"
)

// WeightFor returns the configured weight of a violation.
func WeightFor(v ViolationType, p *policy.VerticalBookingPolicy) int {
	switch v {
	case ViolationNoShow:
		return p.NoShowPenaltyWeight
	case ViolationLateCancel:
		return p.LateCancelPenaltyWeight
	case ViolationFraudSignal:
		return p.FraudPenaltyWeight
	}
	return 0
}

// DecayedWeight scales weight linearly by the time left in the window, truncating toward zero.
func DecayedWeight(weight int, age, window time.Duration) int {
	if window <= 0 || age >= window {
		return 0
	}
	if age < 0 {
		age = 0
	}
	return int(int64(weight) * int64(window-age) / int64(window))
}

// WeightedPoints sums the decayed weights of penalties inside the rolling window ending at now.
func WeightedPoints(penalties []Penalty, window time.Duration, now time.Time) int {
	total := 0
	for _, p := range penalties {
		total += DecayedWeight(p.Weight, now.Sub(p.OccurredAt), window)
	}
	return total
}

func reasonFor(v ViolationType) BlockReason {
	switch v {
	case ViolationFraudSignal:
		return ReasonFraud
	case ViolationLateCancel:
		return ReasonRepeatedLateCancel
	}
	return ReasonRepeatedNoShow
}

// evaluation is the block decision for one newly recorded penalty.
type evaluation struct {
	block     bool
	permanent bool
	reason    BlockReason
}

func evaluate(v ViolationType, points, trustScore int, p *policy.VerticalBookingPolicy) evaluation {
	if v == ViolationFraudSignal && p.FraudBlockPermanent {
		return evaluation{block: true, permanent: true, reason: ReasonFraud}
	}
	if points >= p.BlockThresholdScore {
		return evaluation{block: true, reason: reasonFor(v)}
	}
	if p.MinTrustScore > 0 && trustScore < p.MinTrustScore {
		return evaluation{block: true, reason: ReasonLowTrustScore}
	}
	return evaluation{}
}
