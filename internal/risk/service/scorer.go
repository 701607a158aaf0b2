package service

import (
	ledgerModels "rollcall/internal/ledger/models"
	"rollcall/internal/risk/models"
	"rollcall/pkg/domain"
)

// Policy configures scoring.
type Policy struct {
	// Window is how many trailing sessions are considered.
	Window int
	// TrendDelta is the rate change between half-windows that counts as a trend.
	TrendDelta float64
	// Threshold is the attendance rate below which a participant is flagged.
	Threshold float64
	// ConsecutiveAbsences flags a streak of this many trailing absences.
	ConsecutiveAbsences int
}

// DefaultPolicy flags attendance below 75% and three missed sessions in a row.
func DefaultPolicy() Policy {
	return Policy{Window: 10, TrendDelta: 0.10, Threshold: 0.75, ConsecutiveAbsences: 3}
}

// Score derives a risk profile from effective ledger entries, one per
// session, oldest first. Excused sessions are left out of every measure.
func Score(pid domain.ParticipantID, history []*ledgerModels.Record, policy Policy) *models.Profile {
	var counted []bool
	for _, r := range history {
		if r.Outcome == ledgerModels.OutcomeExcused {
			continue
		}
		counted = append(counted, r.Outcome.Attended())
	}
	if policy.Window > 0 && len(counted) > policy.Window {
		counted = counted[len(counted)-policy.Window:]
	}

	p := &models.Profile{
		ParticipantID:      pid,
		Trend:              models.TrendStable,
		Level:              models.LevelLow,
		Factors:            []models.Factor{},
		SessionsConsidered: len(counted),
	}
	if len(counted) == 0 {
		return p
	}
	p.WindowedRate = rate(counted)

	if half := len(counted) / 2; half > 0 {
		older := rate(counted[:half])
		newer := rate(counted[len(counted)-half:])
		switch diff := newer - older; {
		case diff < -policy.TrendDelta:
			p.Trend = models.TrendDeclining
		case diff > policy.TrendDelta:
			p.Trend = models.TrendImproving
		}
	}

	for i := len(counted) - 1; i >= 0 && !counted[i]; i-- {
		p.ConsecutiveAbsences++
	}

	below := p.WindowedRate < policy.Threshold
	declining := p.Trend == models.TrendDeclining
	streak := policy.ConsecutiveAbsences > 0 && p.ConsecutiveAbsences >= policy.ConsecutiveAbsences
	if declining {
		p.Factors = append(p.Factors, models.FactorDecliningTrend)
	}
	if below {
		p.Factors = append(p.Factors, models.FactorBelowThreshold)
	}
	if streak {
		p.Factors = append(p.Factors, models.FactorConsecutiveAbsences)
	}
	switch {
	case below && (declining || streak):
		p.Level = models.LevelHigh
	case len(p.Factors) > 0:
		p.Level = models.LevelMedium
	}
	return p
}

func rate(attended []bool) float64 {
	n := 0
	for _, a := range attended {
		if a {
			n++
		}
	}
	return float64(n) / float64(len(attended))
}
