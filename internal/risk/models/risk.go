package models

import (
	"time"

	"rollcall/pkg/domain"
)

// Trend compares the newer half of the window with the older half.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDeclining Trend = "declining"
)

type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Rank orders levels so transitions can be compared.
func (l Level) Rank() int {
	switch l {
	case LevelHigh:
		return 2
	case LevelMedium:
		return 1
	default:
		return 0
	}
}

// Factor names one reason a participant is at risk.
type Factor string

const (
	FactorDecliningTrend      Factor = "declining_trend"
	FactorBelowThreshold      Factor = "below_threshold"
	FactorConsecutiveAbsences Factor = "consecutive_absences"
)

// Profile is derived from ledger history and can be recomputed at any time.
// It is advisory and never feeds back into the ledger.
type Profile struct {
	ParticipantID       domain.ParticipantID `json:"participant_id"`
	WindowedRate        float64              `json:"windowed_rate"`
	Trend               Trend                `json:"trend_direction"`
	Level               Level                `json:"level"`
	Factors             []Factor             `json:"factors"`
	SessionsConsidered  int                  `json:"sessions_considered"`
	ConsecutiveAbsences int                  `json:"consecutive_absences"`
	LastUpdated         time.Time            `json:"last_updated"`
}

// HasFactor reports whether f contributed to the level.
func (p *Profile) HasFactor(f Factor) bool {
	for _, x := range p.Factors {
		if x == f {
			return true
		}
	}
	return false
}
