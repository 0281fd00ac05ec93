package trust

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tistis/secure-booking/internal/policy"
)

func TestLevelFor(t *testing.T) {
	assert.Equal(t, LevelExcellent, LevelFor(100))
	assert.Equal(t, LevelExcellent, LevelFor(85))
	assert.Equal(t, LevelGood, LevelFor(84))
	assert.Equal(t, LevelGood, LevelFor(NeutralScore))
	assert.Equal(t, LevelFair, LevelFor(50))
	assert.Equal(t, LevelPoor, LevelFor(49))
	assert.Equal(t, LevelPoor, LevelFor(0))
}

func TestDecayedDelta(t *testing.T) {
	window := 90 * 24 * time.Hour

	assert.Equal(t, 3, DecayedDelta(3, 200*24*time.Hour, window), "positive deltas never decay")
	assert.Equal(t, -20, DecayedDelta(-20, 0, window))
	assert.Equal(t, -10, DecayedDelta(-20, 45*24*time.Hour, window))
	assert.Equal(t, 0, DecayedDelta(-20, window, window))
	assert.Equal(t, 0, DecayedDelta(-20, 2*window, window))
	assert.Equal(t, -20, DecayedDelta(-20, -time.Hour, window), "future-dated events count in full")
}

func TestReplay_CompletedFromNeutral(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	deltas := policy.DefaultFor("t", policy.VerticalRestaurant).ScoreDeltas

	events := []Event{{Outcome: OutcomeCompleted, Delta: DeltaFor(OutcomeCompleted, deltas), OccurredAt: now}}
	assert.Equal(t, NeutralScore+deltas.Completed, Replay(events, 90*24*time.Hour, now))
}

func TestReplay_ClampsAtEveryStep(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	window := 90 * 24 * time.Hour

	var events []Event
	for i := 0; i < 20; i++ {
		events = append(events, Event{Delta: 5, OccurredAt: now})
	}
	assert.Equal(t, MaxScore, Replay(events, window, now))

	// A no-show after saturation subtracts from 100, not from the raw sum.
	events = append(events, Event{Delta: -20, OccurredAt: now})
	assert.Equal(t, 80, Replay(events, window, now))
}

func TestReplay_DecayRestoresStanding(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	window := 90 * 24 * time.Hour
	events := []Event{{Outcome: OutcomeNoShow, Delta: -20, OccurredAt: start}}

	assert.Equal(t, 50, Replay(events, window, start))
	assert.Equal(t, 60, Replay(events, window, start.Add(45*24*time.Hour)))
	assert.Equal(t, NeutralScore, Replay(events, window, start.Add(window)))
}

func TestReplay_AlwaysBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	window := 30 * 24 * time.Hour

	for run := 0; run < 500; run++ {
		n := rng.Intn(60)
		events := make([]Event, n)
		for i := range events {
			events[i] = Event{
				Delta:      rng.Intn(121) - 60,
				OccurredAt: now.Add(-time.Duration(rng.Intn(60*24)) * time.Hour),
			}
		}
		got := Replay(events, window, now)
		assert.GreaterOrEqual(t, got, MinScore)
		assert.LessOrEqual(t, got, MaxScore)
	}
}
