package trust

import (
	"net/http"
	"time"

	"github.com/tistis/secure-booking/internal/pkg/apperror"
	"github.com/tistis/secure-booking/internal/policy"
)

var (
	ErrNotFound           = apperror.New(http.StatusNotFound, "TRUST_SCORE_NOT_FOUND", "trust score not found")
	ErrInvalidOutcome     = apperror.New(http.StatusBadRequest, "INVALID_TRUST_OUTCOME", "invalid trust outcome")
	ErrInvalidFingerprint = apperror.New(http.StatusBadRequest, "INVALID_FINGERPRINT", "customer fingerprint is required")
)

const (
	MinScore     = 0
	MaxScore     = 100
	NeutralScore = 70
)

type Outcome string

const (
	OutcomeCompleted      Outcome = "completed"
	OutcomeCancelledEarly Outcome = "cancelled_early"
	OutcomeCancelledLate  Outcome = "cancelled_late"
	OutcomeNoShow         Outcome = "no_show"
	OutcomeFraudSignal    Outcome = "fraud_signal"
)

func (o Outcome) Valid() bool {
	switch o {
	case OutcomeCompleted, OutcomeCancelledEarly, OutcomeCancelledLate, OutcomeNoShow, OutcomeFraudSignal:
		return true
	}
	return false
}

type Level string

const (
	LevelExcellent Level = "excellent"
	LevelGood      Level = "good"
	LevelFair      Level = "fair"
	LevelPoor      Level = "poor"
)

// LevelFor maps a score onto its fixed band.
func LevelFor(score int) Level {
	switch {
	case score >= 85:
		return LevelExcellent
	case score >= 70:
		return LevelGood
	case score >= 50:
		return LevelFair
	default:
		return LevelPoor
	}
}

// Score is the cached reputation row for one customer of one tenant.
type Score struct {
	TenantID            string
	CustomerFingerprint string
	Vertical            policy.Vertical
	Score               int
	CompletedCount      int
	CancelledCount      int
	NoShowCount         int
	LastUpdatedAt       time.Time
}

// Event is one entry of the append-only outcome ledger. Delta is fixed at record time.
type Event struct {
	ID                  string
	TenantID            string
	CustomerFingerprint string
	Outcome             Outcome
	Delta               int
	OccurredAt          time.Time
}

// View is the read model returned to callers.
type View struct {
	CustomerFingerprint string
	Score               int
	Level               Level
	CompletedCount      int
	CancelledCount      int
	NoShowCount         int
	LastUpdatedAt       *time.Time
}

func neutralView(fingerprint string) *View {
	return &View{
		CustomerFingerprint: fingerprint,
		Score:               NeutralScore,
		Level:               LevelFor(NeutralScore),
	}
}

func newView(s *Score, score int) *View {
	updated := s.LastUpdatedAt
	return &View{
		CustomerFingerprint: s.CustomerFingerprint,
		Score:               score,
		Level:               LevelFor(score),
		CompletedCount:      s.CompletedCount,
		CancelledCount:      s.CancelledCount,
		NoShowCount:         s.NoShowCount,
		LastUpdatedAt:       &updated,
	}
}

// StaleKey identifies a score row due for a decay pass.
type StaleKey struct {
	TenantID            string
	CustomerFingerprint string
	Vertical            policy.Vertical
}
