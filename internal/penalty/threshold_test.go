package penalty

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tistis/secure-booking/internal/policy"
)

const day = 24 * time.Hour

func TestDecayedWeight(t *testing.T) {
	window := 30 * day

	assert.Equal(t, 35, DecayedWeight(35, 0, window))
	assert.Equal(t, 17, DecayedWeight(35, 15*day, window))
	assert.Equal(t, 0, DecayedWeight(35, window, window))
	assert.Equal(t, 0, DecayedWeight(35, 40*day, window))
	assert.Equal(t, 35, DecayedWeight(35, -time.Minute, window))
	assert.Equal(t, 0, DecayedWeight(35, 0, 0))
}

func TestWeightedPoints_LateCancelNearWindowEdgeCountsZero(t *testing.T) {
	now := time.Date(2025, 4, 30, 12, 0, 0, 0, time.UTC)
	penalties := []Penalty{
		{ViolationType: ViolationLateCancel, Weight: 10, OccurredAt: now.Add(-29 * day)},
	}

	assert.Equal(t, 0, WeightedPoints(penalties, 30*day, now))
}

func TestWeightedPoints_Sums(t *testing.T) {
	now := time.Date(2025, 4, 30, 12, 0, 0, 0, time.UTC)
	penalties := []Penalty{
		{Weight: 35, OccurredAt: now},
		{Weight: 35, OccurredAt: now.Add(-15 * day)},
		{Weight: 35, OccurredAt: now.Add(-31 * day)},
	}

	assert.Equal(t, 35+17, WeightedPoints(penalties, 30*day, now))
}

func TestEvaluate(t *testing.T) {
	p := policy.DefaultFor("t", policy.VerticalGeneral)

	ev := evaluate(ViolationNoShow, 105, 40, &p)
	assert.Equal(t, evaluation{block: true, reason: ReasonRepeatedNoShow}, ev)

	ev = evaluate(ViolationLateCancel, 99, 40, &p)
	assert.False(t, ev.block)

	ev = evaluate(ViolationFraudSignal, 0, 70, &p)
	assert.Equal(t, evaluation{block: true, permanent: true, reason: ReasonFraud}, ev)

	p.MinTrustScore = 50
	ev = evaluate(ViolationLateCancel, 10, 45, &p)
	assert.Equal(t, evaluation{block: true, reason: ReasonLowTrustScore}, ev)

	p.FraudBlockPermanent = false
	ev = evaluate(ViolationFraudSignal, 100, 60, &p)
	assert.Equal(t, evaluation{block: true, reason: ReasonFraud}, ev)
}

func TestBlockStatusAt(t *testing.T) {
	now := time.Date(2025, 4, 30, 12, 0, 0, 0, time.UTC)
	until := now.Add(time.Hour)
	b := &Block{BlockedUntil: &until}

	assert.Equal(t, BlockActive, b.StatusAt(now))
	assert.Equal(t, BlockActive, b.StatusAt(until.Add(-time.Nanosecond)))
	assert.Equal(t, BlockExpired, b.StatusAt(until))

	permanent := &Block{}
	assert.True(t, permanent.IsActive(now.Add(100*365*day)))

	lifted := now
	permanent.LiftedAt = &lifted
	assert.Equal(t, BlockLifted, permanent.StatusAt(now))
}
