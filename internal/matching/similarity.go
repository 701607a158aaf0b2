package matching

import (
	"fmt"
	"math"
	"strings"
)

// Similarity scores two descriptors of equal length; higher means more alike.
type Similarity func(a, b []float64) (float64, error)

// Cosine is the default similarity. Zero vectors score 0.
func Cosine(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("dimension mismatch: %d vs %d", len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}

// Euclidean maps L2 distance into (0, 1] as 1/(1+d).
func Euclidean(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("dimension mismatch: %d vs %d", len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return 1 / (1 + math.Sqrt(sum)), nil
}

// SimilarityByName resolves a configured metric name.
func SimilarityByName(name string) (Similarity, error) {
	switch strings.ToLower(name) {
	case "", "cosine":
		return Cosine, nil
	case "euclidean":
		return Euclidean, nil
	default:
		return nil, fmt.Errorf("unknown similarity %q", name)
	}
}

// Aggregate folds per-sample scores into one profile score.
type Aggregate string

const (
	AggregateMean Aggregate = "mean"
	AggregateMax  Aggregate = "max"
)

func (a Aggregate) apply(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	if a == AggregateMax {
		best := scores[0]
		for _, s := range scores[1:] {
			best = max(best, s)
		}
		return best
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}
