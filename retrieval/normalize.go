package retrieval

import (
	"slices"

	"github.com/Devcavi19/adal-4naga-app/core"
)

// Normalize rescales scores to [0,1] with min-max normalization.
// When every score is equal each output is 1.0. Empty input yields empty output.
func Normalize(scores []float64) []float64 {
	out := make([]float64, len(scores))
	if len(scores) == 0 {
		return out
	}

	lo, hi := slices.Min(scores), slices.Max(scores)
	span := hi - lo
	for i, s := range scores {
		if span > 0 {
			out[i] = (s - lo) / span
		} else {
			out[i] = 1.0
		}
	}
	return out
}

// normalizeDocuments fills NormalizedScore from RawScore in place.
func normalizeDocuments(docs []core.ScoredDocument) {
	raw := make([]float64, len(docs))
	for i := range docs {
		raw[i] = docs[i].RawScore
	}
	for i, n := range Normalize(raw) {
		docs[i].NormalizedScore = n
	}
}
