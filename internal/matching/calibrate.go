package matching

import (
	"math"
	"slices"

	dErrors "rollcall/pkg/domain-errors"
)

// Calibration reports a threshold chosen from labeled scores and the error
// rates it produces on that data.
type Calibration struct {
	Threshold       float64 `json:"threshold"`
	FalseAcceptRate float64 `json:"false_accept_rate"`
	FalseRejectRate float64 `json:"false_reject_rate"`
}

// CalibrateThreshold returns the lowest threshold whose impostor accept rate
// is at most maxFalseAccept. Scores at or above the threshold are accepted.
func CalibrateThreshold(genuine, impostor []float64, maxFalseAccept float64) (Calibration, error) {
	if len(impostor) == 0 {
		return Calibration{}, dErrors.New(dErrors.CodeValidation, "impostor scores are required")
	}
	if maxFalseAccept < 0 || maxFalseAccept > 1 || math.IsNaN(maxFalseAccept) {
		return Calibration{}, dErrors.New(dErrors.CodeValidation, "max false accept rate must be within [0, 1]")
	}

	sorted := slices.Clone(impostor)
	slices.Sort(sorted)
	slices.Reverse(sorted)

	allowed := int(math.Floor(maxFalseAccept * float64(len(sorted))))
	var threshold float64
	if allowed >= len(sorted) {
		threshold = sorted[len(sorted)-1]
		if len(genuine) > 0 {
			threshold = min(threshold, slices.Min(genuine))
		}
	} else {
		// The (allowed+1)th highest impostor score must be rejected.
		threshold = math.Nextafter(sorted[allowed], math.Inf(1))
	}

	return Calibration{
		Threshold:       threshold,
		FalseAcceptRate: rate(impostor, func(s float64) bool { return s >= threshold }),
		FalseRejectRate: rate(genuine, func(s float64) bool { return s < threshold }),
	}, nil
}

func rate(scores []float64, hit func(float64) bool) float64 {
	if len(scores) == 0 {
		return 0
	}
	n := 0
	for _, s := range scores {
		if hit(s) {
			n++
		}
	}
	return float64(n) / float64(len(scores))
}
